package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type BidStatus string

const (
	// BidPending: journaled, escrow transfer not yet submitted.
	BidPending BidStatus = "pending"
	// BidTransferred: escrow transfer is on chain, backend not told yet.
	BidTransferred BidStatus = "transferred"
	BidRecorded    BidStatus = "recorded"
	BidFailed      BidStatus = "failed"
)

// Bid is a bid as tracked by the gateway's journal.
type Bid struct {
	ID            string          `json:"id" db:"id"`
	CollectionID  uint64          `json:"collectionId" db:"collection_id"`
	TokenID       uint64          `json:"tokenId" db:"token_id"`
	BidderAddress string          `json:"bidderAddress" db:"bidder_address"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	TxHash        string          `json:"txHash,omitempty" db:"tx_hash"`
	Status        BidStatus       `json:"status" db:"status"`
	Error         string          `json:"error,omitempty" db:"error"`
	Attempts      int             `json:"attempts" db:"attempts"`
	Timestamp     time.Time       `json:"timestamp" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// Record converts a transferred bid into the backend payload.
func (b *Bid) Record() BidRecord {
	return BidRecord{
		CollectionID:  b.CollectionID,
		TokenID:       b.TokenID,
		BidderAddress: b.BidderAddress,
		Amount:        b.Amount,
		TxHash:        b.TxHash,
		Timestamp:     b.Timestamp.UnixMilli(),
	}
}
