// Package settings resolves the marketplace settings published by the
// backend. They are fetched once, exposed through an explicit ready signal
// and never mutated afterwards.
package settings

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
	"github.com/unique-nft/marketgate/internal/pkg/httpx"
	"github.com/unique-nft/marketgate/internal/pkg/logger"
)

const settingsPath = "/api/settings"

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // skip

// Fetcher loads settings from the marketplace backend.
type Fetcher interface {
	Fetch(ctx context.Context) (*model.AuctionSettings, error)
}

// HTTPFetcher reads GET {baseURL}/api/settings.
type HTTPFetcher struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPFetcher(baseURL string, httpClient *http.Client) *HTTPFetcher {
	return &HTTPFetcher{baseURL: baseURL, httpClient: httpClient}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (*model.AuctionSettings, error) {
	var s model.AuctionSettings
	err := httpx.DoJSON(ctx, f.httpClient, httpx.Request{
		Method: http.MethodGet,
		URL:    httpx.JoinURL(f.baseURL, settingsPath),
	}, &s)
	if err != nil {
		return nil, err
	}
	if err := validate.StructCtx(ctx, &s); err != nil {
		return nil, apperrors.New(apperrors.ErrUpstream, "invalid marketplace settings", err)
	}
	return &s, nil
}

// Store holds the resolved settings.
type Store struct {
	fetcher Fetcher
	group   singleflight.Group

	mu       sync.RWMutex
	settings *model.AuctionSettings
	ready    chan struct{}
}

func NewStore(fetcher Fetcher) *Store {
	return &Store{
		fetcher: fetcher,
		ready:   make(chan struct{}),
	}
}

// Resolve returns the settings, fetching them if nobody has yet.
// Concurrent callers share one request.
func (s *Store) Resolve(ctx context.Context) (*model.AuctionSettings, error) {
	if cur, ok := s.Get(); ok {
		return cur, nil
	}

	v, err, _ := s.group.Do("settings", func() (any, error) {
		if cur, ok := s.Get(); ok {
			return cur, nil
		}
		fetched, err := s.fetcher.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.settings = fetched
		close(s.ready)
		s.mu.Unlock()
		logger.Info("marketplace settings resolved",
			"escrow", fetched.EscrowAddress,
			"auction", fetched.Auction.Address,
			"commission", fetched.Commission.String(),
		)
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.AuctionSettings), nil
}

// Get returns the settings without blocking.
func (s *Store) Get() (*model.AuctionSettings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, s.settings != nil
}

// Ready is closed once settings are available.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until settings are resolved or ctx is done.
func (s *Store) Wait(ctx context.Context) (*model.AuctionSettings, error) {
	select {
	case <-s.ready:
		cur, _ := s.Get()
		return cur, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Require returns the settings or a NOT_READY error.
func (s *Store) Require() (*model.AuctionSettings, error) {
	cur, ok := s.Get()
	if !ok {
		return nil, apperrors.NewNotReady("marketplace settings not loaded yet")
	}
	return cur, nil
}

// AuctionURL is the auction REST endpoint announced by the backend.
func (s *Store) AuctionURL(context.Context) (string, error) {
	cur, err := s.Require()
	if err != nil {
		return "", err
	}
	if cur.Auction.Address == "" {
		return "", apperrors.New(apperrors.ErrNotFound, "marketplace does not announce an auction endpoint", nil)
	}
	return cur.Auction.Address, nil
}

const (
	resolveBaseDelay = 1 * time.Second
	resolveMaxDelay  = 30 * time.Second
)

// ResolveInBackground keeps calling Resolve with exponential backoff until
// it succeeds or ctx is done.
func (s *Store) ResolveInBackground(ctx context.Context) {
	go s.resolveLoop(ctx, resolveBaseDelay, resolveMaxDelay)
}

func (s *Store) resolveLoop(ctx context.Context, delay, maxDelay time.Duration) {
	for {
		_, err := s.Resolve(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}
		logger.Warn("settings fetch failed", logger.Err(err), "retry_in", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
