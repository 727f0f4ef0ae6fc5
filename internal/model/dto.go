package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/unique-nft/marketgate/internal/pagination"
)

// TokenRef identifies an NFT within a collection.
type TokenRef struct {
	CollectionID uint64 `json:"collectionId" binding:"required"`
	TokenID      uint64 `json:"tokenId" binding:"required"`
}

// CalculateRequest is the body of POST /auction/calculate.
type CalculateRequest struct {
	CollectionID  uint64 `json:"collectionId" binding:"required"`
	TokenID       uint64 `json:"tokenId" binding:"required"`
	BidderAddress string `json:"bidderAddress" binding:"required"`
}

// BidQuote is the backend's view of what a bidder owes on a token.
type BidQuote struct {
	BidderPendingAmount  decimal.Decimal `json:"bidderPendingAmount"`
	MinBidderAmount      decimal.Decimal `json:"minBidderAmount"`
	ContractPendingPrice decimal.Decimal `json:"contractPendingPrice"`
	PriceStep            decimal.Decimal `json:"priceStep"`
}

// QuoteResponse adds the derived start bid to a BidQuote.
type QuoteResponse struct {
	BidQuote
	StartBid decimal.Decimal `json:"startBid"`
}

// PlaceBidRequest is accepted by the gateway. Transfer is the escrow
// balance transfer extrinsic, already signed by the bidder's wallet.
type PlaceBidRequest struct {
	CollectionID  uint64          `json:"collectionId" binding:"required"`
	TokenID       uint64          `json:"tokenId" binding:"required"`
	BidderAddress string          `json:"bidderAddress" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Transfer      string          `json:"transfer" binding:"required"`
}

// BidRecord is the body of POST /auction/place_bid.
type BidRecord struct {
	CollectionID  uint64          `json:"collectionId"`
	TokenID       uint64          `json:"tokenId"`
	BidderAddress string          `json:"bidderAddress"`
	Amount        decimal.Decimal `json:"amount"`
	TxHash        string          `json:"txHash"`
	Timestamp     int64           `json:"timestamp"`
}

// SignedTokenRequest is a withdraw / cancel request signed by the
// account's wallet. When Signature is empty the gateway signs with its own
// key, if one is configured.
type SignedTokenRequest struct {
	CollectionID uint64 `json:"collectionId" form:"collectionId" binding:"required"`
	TokenID      uint64 `json:"tokenId" form:"tokenId" binding:"required"`
	Address      string `json:"address" form:"address"`
	Timestamp    int64  `json:"timestamp" form:"timestamp"`
	Signature    string `json:"signature" form:"signature"`
}

// TradeRecord is a historical sale, read-only.
type TradeRecord struct {
	CollectionID uint64          `json:"collectionId"`
	TokenID      uint64          `json:"tokenId"`
	Price        decimal.Decimal `json:"price"`
	Buyer        string          `json:"buyer"`
	Seller       string          `json:"seller"`
	TradeDate    time.Time       `json:"tradeDate"`
}

// TradeQuery selects a page of trade history. Account filters to trades
// where the account is buyer or seller.
type TradeQuery struct {
	Page    int
	PerPage int
	Sort    pagination.Sort
	Account string
}

// TradePage is one page of trade history plus the page strip.
type TradePage struct {
	Items      []TradeRecord     `json:"items"`
	ItemsCount int               `json:"itemsCount"`
	Page       int               `json:"page"`
	PerPage    int               `json:"perPage"`
	Pages      []pagination.Item `json:"pages"`
	// Source is "backend" or "mirror".
	Source string `json:"source"`
}
