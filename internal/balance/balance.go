// Package balance merges an account's Unique and Kusama balances.
package balance

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unique-nft/marketgate/internal/amount"
	"github.com/unique-nft/marketgate/internal/cache"
	"github.com/unique-nft/marketgate/internal/chain"
	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
	"github.com/unique-nft/marketgate/internal/pkg/logger"
	"github.com/unique-nft/marketgate/internal/pkg/metrics"
	"github.com/unique-nft/marketgate/internal/ss58"
)

// ChainReader is the part of chain.Client the service needs.
type ChainReader interface {
	Name() string
	SS58Prefix() uint16
	Decimals() int32
	Symbol() string
	AccountBalance(ctx context.Context, address string) (chain.Balance, error)
}

type Service struct {
	unique ChainReader
	kusama ChainReader
	cache  cache.Cache
	ttl    time.Duration
	digits int
}

func NewService(unique, kusama ChainReader, c cache.Cache, ttl time.Duration, displayDigits int) *Service {
	if displayDigits <= 0 {
		displayDigits = 4
	}
	return &Service{
		unique: unique,
		kusama: kusama,
		cache:  c,
		ttl:    ttl,
		digits: displayDigits,
	}
}

func cacheKey(accountID []byte) string {
	return "balance:" + hex.EncodeToString(accountID)
}

// Fetch returns both balances of address. One failing chain is reported in
// its entry; only when both fail is an error returned.
func (s *Service) Fetch(ctx context.Context, address string) (model.Balances, error) {
	accountID, _, err := ss58.Decode(address)
	if err != nil {
		return model.Balances{}, apperrors.New(apperrors.ErrInvalidRequest, "invalid address", err)
	}

	key := cacheKey(accountID)
	var out model.Balances
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, key, &out); err == nil && ok {
			return out, nil
		} else if err != nil {
			logger.Warn("balance cache read failed", logger.Err(err))
		}
	}

	var g errgroup.Group
	g.Go(func() error {
		out.Unique = s.fetchOne(ctx, s.unique, accountID)
		return nil
	})
	g.Go(func() error {
		out.Kusama = s.fetchOne(ctx, s.kusama, accountID)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return model.Balances{}, err
	}
	if out.Unique.Error != "" && out.Kusama.Error != "" {
		return out, apperrors.New(apperrors.ErrChain, "balances unavailable on both chains", nil)
	}

	if s.cache != nil && out.Unique.Error == "" && out.Kusama.Error == "" {
		if err := s.cache.Set(ctx, key, out, s.ttl); err != nil {
			logger.Warn("balance cache write failed", logger.Err(err))
		}
	}
	return out, nil
}

func (s *Service) fetchOne(ctx context.Context, c ChainReader, accountID []byte) model.ChainBalance {
	res := model.ChainBalance{Chain: c.Name(), Symbol: c.Symbol()}

	addr, err := ss58.Encode(accountID, c.SS58Prefix())
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Address = addr

	bal, err := c.AccountBalance(ctx, addr)
	if err != nil {
		metrics.BalanceErrors.WithLabelValues(c.Name()).Inc()
		logger.Warn("balance lookup failed", "chain", c.Name(), logger.Err(err))
		res.Error = err.Error()
		return res
	}

	res.Free = amount.FromPlanck(bal.Free, c.Decimals())
	res.Reserved = amount.FromPlanck(bal.Reserved, c.Decimals())
	res.Display = amount.AdaptiveFixed(res.Free, s.digits)
	return res
}

// Invalidate drops the cached balances of address, e.g. after a transfer.
func (s *Service) Invalidate(ctx context.Context, address string) {
	if s.cache == nil {
		return
	}
	accountID, _, err := ss58.Decode(address)
	if err != nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(accountID)); err != nil {
		logger.Warn("balance cache delete failed", logger.Err(err))
	}
}

// Watch calls fn with fresh balances every interval until ctx is done. The
// first call happens immediately.
func (s *Service) Watch(ctx context.Context, address string, interval time.Duration, fn func(model.Balances, error)) {
	if interval <= 0 {
		interval = 12 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		b, err := s.Fetch(ctx, address)
		if ctx.Err() != nil {
			return
		}
		fn(b, err)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
