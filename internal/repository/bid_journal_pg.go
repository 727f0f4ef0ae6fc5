package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/unique-nft/marketgate/internal/model"
)

// PostgresBidJournal persists bids across the transfer / record steps so
// a crash between them can be reconciled.
type PostgresBidJournal struct {
	db *sqlx.DB
}

func NewPostgresBidJournal(db *sqlx.DB) *PostgresBidJournal {
	j := &PostgresBidJournal{db: db}
	_ = j.ensureSchema(context.Background())
	return j
}

const bidColumns = `id, collection_id, token_id, bidder_address, amount, tx_hash, status, error, attempts, created_at, updated_at`

func (j *PostgresBidJournal) Create(ctx context.Context, bid *model.Bid) error {
	now := time.Now().UTC()
	if bid.Timestamp.IsZero() {
		bid.Timestamp = now
	}
	bid.UpdatedAt = now

	_, err := j.db.NamedExecContext(ctx, `
		INSERT INTO bids (`+bidColumns+`)
		VALUES (:id, :collection_id, :token_id, :bidder_address, :amount, :tx_hash, :status, :error, :attempts, :created_at, :updated_at)
	`, bid)
	return err
}

func (j *PostgresBidJournal) Update(ctx context.Context, bid *model.Bid) error {
	bid.UpdatedAt = time.Now().UTC()
	res, err := j.db.NamedExecContext(ctx, `
		UPDATE bids
		SET tx_hash = :tx_hash, status = :status, error = :error, attempts = :attempts, updated_at = :updated_at
		WHERE id = :id
	`, bid)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrBidNotFound
	}
	return nil
}

func (j *PostgresBidJournal) Get(ctx context.Context, id string) (*model.Bid, error) {
	var bid model.Bid
	err := j.db.GetContext(ctx, &bid, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// ListByStatus returns the oldest bids in status first.
func (j *PostgresBidJournal) ListByStatus(ctx context.Context, status model.BidStatus, limit int) ([]*model.Bid, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	bids := make([]*model.Bid, 0, limit)
	err := j.db.SelectContext(ctx, &bids,
		`SELECT `+bidColumns+` FROM bids WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		status, limit)
	return bids, err
}

// ListByBidder returns an account's most recent bids.
func (j *PostgresBidJournal) ListByBidder(ctx context.Context, bidder string, limit int) ([]*model.Bid, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	bids := make([]*model.Bid, 0, limit)
	err := j.db.SelectContext(ctx, &bids,
		`SELECT `+bidColumns+` FROM bids WHERE bidder_address = $1 ORDER BY created_at DESC LIMIT $2`,
		bidder, limit)
	return bids, err
}

func (j *PostgresBidJournal) ensureSchema(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bids (
			id TEXT PRIMARY KEY,
			collection_id BIGINT NOT NULL,
			token_id BIGINT NOT NULL,
			bidder_address TEXT NOT NULL,
			amount NUMERIC(78, 18) NOT NULL,
			tx_hash TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return err
	}
	_, _ = j.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_bids_status ON bids (status, created_at)`)
	_, _ = j.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_bids_bidder ON bids (bidder_address, created_at DESC)`)
	return nil
}

// Cleanup drops recorded bids older than olderThan.
func (j *PostgresBidJournal) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := j.db.ExecContext(ctx, `DELETE FROM bids WHERE status = $1 AND updated_at < $2`, model.BidRecorded, cutoff)
	return err
}
