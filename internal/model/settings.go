package model

import "github.com/shopspring/decimal"

// AuctionSettings is what the marketplace backend publishes at
// /api/settings. It is fetched once and never mutated afterwards.
type AuctionSettings struct {
	// Marketplace fee in percent applied to trades.
	Commission    decimal.Decimal   `json:"commission"`
	EscrowAddress string            `json:"escrowAddress" validate:"required"`
	Auction       AuctionEndpoint   `json:"auction"`
	Blockchain    BlockchainSummary `json:"blockchain"`
}

type AuctionEndpoint struct {
	Address string `json:"address" validate:"omitempty,url"`
	Socket  string `json:"socket" validate:"omitempty,url"`
}

type BlockchainSummary struct {
	Unique ChainEndpoint `json:"unique"`
	Kusama ChainEndpoint `json:"kusama"`
}

type ChainEndpoint struct {
	WSEndpoint    string   `json:"wsEndpoint"`
	CollectionIDs []uint64 `json:"collectionIds,omitempty"`
	SS58Format    *uint16  `json:"ss58Format,omitempty"`
}
