package model

import "github.com/shopspring/decimal"

// ChainBalance is one chain's view of an account, raw and formatted.
type ChainBalance struct {
	Chain    string          `json:"chain"`
	Address  string          `json:"address"`
	Symbol   string          `json:"symbol"`
	Free     decimal.Decimal `json:"free"`
	Reserved decimal.Decimal `json:"reserved"`
	Display  string          `json:"display"`
	Error    string          `json:"error,omitempty"`
}

// Balances merges the Unique and Kusama balances of one account.
type Balances struct {
	Unique ChainBalance `json:"unique"`
	Kusama ChainBalance `json:"kusama"`
}
