package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/unique-nft/marketgate/internal/model"
)

var errBidNotFound = errors.New("bid not found")

// MemoryBidJournal keeps the bid journal in process memory. Bids survive
// only as long as the process; use the Postgres journal in production.
type MemoryBidJournal struct {
	mu   sync.RWMutex
	bids map[string]model.Bid
}

func NewMemoryBidJournal() *MemoryBidJournal {
	return &MemoryBidJournal{bids: make(map[string]model.Bid)}
}

func (j *MemoryBidJournal) Create(_ context.Context, bid *model.Bid) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.bids[bid.ID]; exists {
		return errors.New("bid already journaled")
	}
	now := time.Now().UTC()
	if bid.Timestamp.IsZero() {
		bid.Timestamp = now
	}
	bid.UpdatedAt = now
	j.bids[bid.ID] = *bid
	return nil
}

func (j *MemoryBidJournal) Update(_ context.Context, bid *model.Bid) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.bids[bid.ID]; !exists {
		return errBidNotFound
	}
	bid.UpdatedAt = time.Now().UTC()
	j.bids[bid.ID] = *bid
	return nil
}

func (j *MemoryBidJournal) Get(_ context.Context, id string) (*model.Bid, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	bid, ok := j.bids[id]
	if !ok {
		return nil, errBidNotFound
	}
	return &bid, nil
}

func (j *MemoryBidJournal) ListByStatus(_ context.Context, status model.BidStatus, limit int) ([]*model.Bid, error) {
	return j.list(limit, false, func(b *model.Bid) bool { return b.Status == status }), nil
}

func (j *MemoryBidJournal) ListByBidder(_ context.Context, bidder string, limit int) ([]*model.Bid, error) {
	return j.list(limit, true, func(b *model.Bid) bool { return b.BidderAddress == bidder }), nil
}

func (j *MemoryBidJournal) list(limit int, newestFirst bool, keep func(*model.Bid) bool) []*model.Bid {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	j.mu.RLock()
	out := make([]*model.Bid, 0)
	for _, b := range j.bids {
		b := b
		if keep(&b) {
			out = append(out, &b)
		}
	}
	j.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if newestFirst {
			return out[a].Timestamp.After(out[b].Timestamp)
		}
		return out[a].Timestamp.Before(out[b].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
