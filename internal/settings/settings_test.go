package settings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
)

const settingsBody = `{
	"commission": "10",
	"escrowAddress": "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
	"auction": {"address": "https://auction.example", "socket": "wss://auction.example"},
	"blockchain": {
		"unique": {"wsEndpoint": "wss://ws.unique.network", "collectionIds": [1, 2]},
		"kusama": {"wsEndpoint": "wss://kusama-rpc.polkadot.io"}
	}
}`

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/settings", r.URL.Path)
		_, _ = w.Write([]byte(settingsBody))
	}))
	defer srv.Close()

	s, err := NewHTTPFetcher(srv.URL, srv.Client()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10", s.Commission.String())
	assert.Equal(t, "https://auction.example", s.Auction.Address)
	assert.Equal(t, []uint64{1, 2}, s.Blockchain.Unique.CollectionIDs)
}

func TestHTTPFetcherRejectsIncompleteSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"commission": "10"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL, srv.Client()).Fetch(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrUpstream))
}

type stubFetcher struct {
	calls atomic.Int32
	fail  atomic.Int32
	delay time.Duration
}

func (f *stubFetcher) Fetch(ctx context.Context) (*model.AuctionSettings, error) {
	f.calls.Add(1)
	if f.fail.Load() > 0 {
		f.fail.Add(-1)
		return nil, errors.New("backend down")
	}
	time.Sleep(f.delay)
	return &model.AuctionSettings{
		EscrowAddress: "escrow",
		Auction:       model.AuctionEndpoint{Address: "https://auction.example"},
	}, nil
}

func TestStoreNotReadyUntilResolved(t *testing.T) {
	store := NewStore(&stubFetcher{})

	_, ok := store.Get()
	assert.False(t, ok)
	_, err := store.Require()
	assert.True(t, apperrors.Is(err, apperrors.ErrNotReady))
	_, err = store.AuctionURL(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotReady))

	select {
	case <-store.Ready():
		t.Fatal("ready before resolve")
	default:
	}

	s, err := store.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "escrow", s.EscrowAddress)

	<-store.Ready()
	url, err := store.AuctionURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://auction.example", url)
}

func TestStoreResolveCoalesces(t *testing.T) {
	fetcher := &stubFetcher{delay: 50 * time.Millisecond}
	store := NewStore(fetcher)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Resolve(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())

	_, err := store.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestStoreResolveLoopRetries(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.fail.Store(2)
	store := NewStore(fetcher)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go store.resolveLoop(ctx, time.Millisecond, 5*time.Millisecond)

	s, err := store.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "escrow", s.EscrowAddress)
	assert.Equal(t, int32(3), fetcher.calls.Load())
}

func TestStoreWaitHonoursContext(t *testing.T) {
	store := NewStore(&stubFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
