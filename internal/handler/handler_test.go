package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unique-nft/marketgate/internal/middleware"
	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pagination"
	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
)

const adminKey = "test-admin"

type fakeSettings struct {
	s *model.AuctionSettings
}

func (f *fakeSettings) Get() (*model.AuctionSettings, bool) {
	return f.s, f.s != nil
}

type fakeBalances struct{}

func (fakeBalances) Fetch(_ context.Context, address string) (model.Balances, error) {
	if address == "bad" {
		return model.Balances{}, apperrors.NewInvalidRequest("invalid address")
	}
	return model.Balances{
		Unique: model.ChainBalance{Chain: "unique", Address: address, Symbol: "UNQ", Display: "1.5"},
		Kusama: model.ChainBalance{Chain: "kusama", Address: address, Symbol: "KSM", Display: "0.00012"},
	}, nil
}

func (f fakeBalances) Watch(ctx context.Context, address string, _ time.Duration, fn func(model.Balances, error)) {
	b, err := f.Fetch(ctx, address)
	fn(b, err)
	<-ctx.Done()
}

type fakeBids struct {
	mu         sync.Mutex
	placeErr   error
	status     model.BidStatus
	withdrawn  []model.SignedTokenRequest
	canceled   []model.SignedTokenRequest
	paused     bool
	reconciled int
}

func (f *fakeBids) Quote(_ context.Context, collectionID, tokenID uint64, bidder string) (model.QuoteResponse, error) {
	return model.QuoteResponse{
		BidQuote: model.BidQuote{
			MinBidderAmount:      decimal.NewFromInt(5),
			ContractPendingPrice: decimal.NewFromInt(10),
			PriceStep:            decimal.NewFromInt(1),
		},
		StartBid: decimal.NewFromInt(11),
	}, nil
}

func (f *fakeBids) PlaceBid(_ context.Context, req model.PlaceBidRequest) (*model.Bid, error) {
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	return &model.Bid{
		ID:            "bid-1",
		CollectionID:  req.CollectionID,
		TokenID:       req.TokenID,
		BidderAddress: req.BidderAddress,
		Amount:        req.Amount,
		Status:        f.status,
	}, nil
}

func (f *fakeBids) GetBid(_ context.Context, id string) (*model.Bid, error) {
	if id != "bid-1" {
		return nil, apperrors.New(apperrors.ErrNotFound, "bid not found", nil)
	}
	return &model.Bid{ID: id, Status: model.BidRecorded}, nil
}

func (f *fakeBids) ListBids(_ context.Context, bidder string, limit int) ([]*model.Bid, error) {
	return []*model.Bid{{ID: "bid-1", BidderAddress: bidder}}, nil
}

func (f *fakeBids) Withdraw(_ context.Context, req model.SignedTokenRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrawn = append(f.withdrawn, req)
	return nil
}

func (f *fakeBids) Cancel(_ context.Context, req model.SignedTokenRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Signature == "" {
		return apperrors.New(apperrors.ErrAuthFailed, "signature required", nil)
	}
	f.canceled = append(f.canceled, req)
	return nil
}

func (f *fakeBids) Reconcile(context.Context) (int, error) { return f.reconciled, nil }
func (f *fakeBids) Pause()                                 { f.paused = true }
func (f *fakeBids) Resume()                                { f.paused = false }
func (f *fakeBids) Paused() bool                           { return f.paused }

type fakeTrades struct {
	last model.TradeQuery
}

func (f *fakeTrades) List(_ context.Context, q model.TradeQuery) (model.TradePage, error) {
	f.last = q
	res, err := pagination.Pages(45, 10, q.Page)
	if err != nil {
		return model.TradePage{}, err
	}
	return model.TradePage{ItemsCount: 45, Page: q.Page, PerPage: 10, Pages: res.Items, Source: "backend"}, nil
}

type fixture struct {
	router   *gin.Engine
	settings *fakeSettings
	bids     *fakeBids
	trades   *fakeTrades
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		settings: &fakeSettings{},
		bids:     &fakeBids{status: model.BidRecorded},
		trades:   &fakeTrades{},
	}
	f.router = NewRouter(Handlers{
		Settings: NewSettingsHandler(f.settings, f.bids),
		Balance:  NewBalanceHandler(fakeBalances{}, time.Second),
		Auction:  NewAuctionHandler(f.bids),
		Trades:   NewTradeHandler(f.trades),
		Admin:    NewAdminHandler(f.bids),
	}, RouterOptions{
		AdminKey:    adminKey,
		Idempotency: middleware.NewInMemIdempotencyStore(time.Hour),
	})
	return f
}

func (f *fixture) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func TestSettingsNotReady(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/v1/settings", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_READY")

	f.settings.s = &model.AuctionSettings{EscrowAddress: "5Escrow"}
	w = f.do(http.MethodGet, "/v1/settings", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"escrowAddress":"5Escrow"`)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"marketgate","settingsReady":false,"biddingPaused":false}`, w.Body.String())
}

func TestBalances(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/v1/accounts/5Grw/balances", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"display":"0.00012"`)

	w = f.do(http.MethodGet, "/v1/accounts/bad/balances", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
}

func TestBalanceStream(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/5Grw/balances/stream", nil).WithContext(ctx)
	f.router.ServeHTTP(w, req)

	assert.Contains(t, w.Body.String(), "event:balances")
	assert.Contains(t, w.Body.String(), `"symbol":"KSM"`)
}

func TestCalculate(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/v1/auction/calculate", `{"collectionId":1,"tokenId":2,"bidderAddress":"5Grw"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"startBid":"11"`)

	w = f.do(http.MethodPost, "/v1/auction/calculate", `{"collectionId":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlaceBidStatusCodes(t *testing.T) {
	f := newFixture(t)
	body := `{"collectionId":1,"tokenId":2,"bidderAddress":"5Grw","amount":"12","transfer":"0x01"}`

	w := f.do(http.MethodPost, "/v1/auction/bids", body, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"recorded"`)

	f.bids.status = model.BidTransferred
	w = f.do(http.MethodPost, "/v1/auction/bids", body, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	f.bids.placeErr = apperrors.New(apperrors.ErrConflict, "bid in progress", nil)
	w = f.do(http.MethodPost, "/v1/auction/bids", body, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPlaceBidIdempotent(t *testing.T) {
	f := newFixture(t)
	body := `{"collectionId":1,"tokenId":2,"bidderAddress":"5Grw","amount":"12","transfer":"0x01"}`
	h := map[string]string{middleware.HeaderIdempotencyKey: "retry-1"}

	first := f.do(http.MethodPost, "/v1/auction/bids", body, h)
	f.bids.status = model.BidFailed
	second := f.do(http.MethodPost, "/v1/auction/bids", body, h)

	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestBidQueries(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/v1/auction/bids/bid-1", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/v1/auction/bids/nope", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/auction/bids", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/auction/bids?bidder=5Grw&limit=x", "", nil).Code)

	w := f.do(http.MethodGet, "/v1/auction/bids?bidder=5Grw", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"bidderAddress":"5Grw"`)
}

func TestWithdrawAndCancel(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodDelete, "/v1/auction/bids?collectionId=1&tokenId=2&address=5Grw&timestamp=1700000000000&signature=0xab", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.bids.withdrawn, 1)
	assert.Equal(t, model.SignedTokenRequest{
		CollectionID: 1, TokenID: 2, Address: "5Grw", Timestamp: 1700000000000, Signature: "0xab",
	}, f.bids.withdrawn[0])

	w = f.do(http.MethodDelete, "/v1/auction/auctions", `{"collectionId":1,"tokenId":2}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodDelete, "/v1/auction/auctions", `{"collectionId":1,"tokenId":2,"address":"5Grw","timestamp":1,"signature":"0xcd"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.bids.canceled, 1)

	w = f.do(http.MethodDelete, "/v1/auction/bids?tokenId=2", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrades(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/v1/trades?page=3&perPage=10&sort=asc(Price)&account=5Grw", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.TradeQuery{
		Page: 3, PerPage: 10, Sort: pagination.Sort{Field: "Price"}, Account: "5Grw",
	}, f.trades.last)
	assert.Contains(t, w.Body.String(), `"pages":[1,2,3,4,5]`)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/trades?sort=drop%20table", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/trades?page=one", "", nil).Code)
}

func TestPages(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/v1/pages?items=500&perPage=20&page=13", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"page":13,"perPage":20,"lastPage":25,"pages":[1,2,"...",12,13,14,"...",24,25]}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/pages?items=5&perPage=0", "", nil).Code)

	w = f.do(http.MethodGet, "/v1/pages?items=9223372036854775807&perPage=1&page=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"page":2,"perPage":1,"lastPage":9223372036854775807,`+
		`"pages":[1,2,3,"...",9223372036854775806,9223372036854775807]}`, w.Body.String())
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)
	f.bids.reconciled = 2

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/v1/admin/bidding/pause", "", nil).Code)

	h := map[string]string{middleware.HeaderAdminKey: adminKey}
	w := f.do(http.MethodPost, "/v1/admin/bidding/pause", "", h)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.bids.paused)

	w = f.do(http.MethodPost, "/v1/admin/reconcile", "", h)
	assert.JSONEq(t, `{"recorded":2}`, w.Body.String())

	f.do(http.MethodPost, "/v1/admin/bidding/resume", "", h)
	assert.False(t, f.bids.paused)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/v1/nope", "", nil).Code)
}
