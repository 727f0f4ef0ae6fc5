package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/unique-nft/marketgate/internal/amount"
	"github.com/unique-nft/marketgate/internal/auction"
	"github.com/unique-nft/marketgate/internal/cache"
	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
	"github.com/unique-nft/marketgate/internal/pkg/logger"
	"github.com/unique-nft/marketgate/internal/pkg/metrics"
	"github.com/unique-nft/marketgate/internal/signer"
	"github.com/unique-nft/marketgate/internal/ss58"
)

// maxReconcileAttempts bounds how often a transferred bid is re-posted.
const maxReconcileAttempts = 10

type AuctionAPI interface {
	CalculateBid(ctx context.Context, collectionID, tokenID uint64, bidder string) (model.BidQuote, error)
	PlaceBid(ctx context.Context, rec model.BidRecord) error
	WithdrawBidsSigned(ctx context.Context, q auction.SignedQuery, opts ...auction.CallOption) error
	CancelAuctionSigned(ctx context.Context, q auction.SignedQuery, opts ...auction.CallOption) error
}

type ExtrinsicSubmitter interface {
	SubmitExtrinsic(ctx context.Context, extrinsic string) (string, error)
}

type BidJournal interface {
	Create(ctx context.Context, bid *model.Bid) error
	Update(ctx context.Context, bid *model.Bid) error
	Get(ctx context.Context, id string) (*model.Bid, error)
	ListByStatus(ctx context.Context, status model.BidStatus, limit int) ([]*model.Bid, error)
	ListByBidder(ctx context.Context, bidder string, limit int) ([]*model.Bid, error)
}

type SettingsSource interface {
	Require() (*model.AuctionSettings, error)
}

type BalanceInvalidator interface {
	Invalidate(ctx context.Context, address string)
}

// TokenWatcher follows live auction events for a token.
type TokenWatcher interface {
	Subscribe(collectionID, tokenID uint64)
}

// BidService runs the bid, withdraw and cancel flows on top of the auction
// backend and the Unique chain.
type BidService struct {
	auction  AuctionAPI
	chain    ExtrinsicSubmitter
	journal  BidJournal
	settings SettingsSource
	quotes   cache.Cache
	quoteTTL time.Duration
	signer   signer.Signer
	balances BalanceInvalidator
	watcher  TokenWatcher
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	paused   atomic.Bool
}

type BidServiceOption func(*BidService)

// WithGatewaySigner lets the gateway sign withdraw / cancel requests for
// its own account when the caller sends no signature.
func WithGatewaySigner(s signer.Signer) BidServiceOption {
	return func(b *BidService) { b.signer = s }
}

func WithBalanceInvalidator(inv BalanceInvalidator) BidServiceOption {
	return func(b *BidService) { b.balances = inv }
}

// WithTokenWatcher subscribes to socket events for every token that gets
// quoted or bid on, so cached quotes are dropped as soon as they go stale.
func WithTokenWatcher(w TokenWatcher) BidServiceOption {
	return func(b *BidService) { b.watcher = w }
}

func WithBidClock(now func() time.Time) BidServiceOption {
	return func(b *BidService) { b.now = now }
}

func NewBidService(
	auctionAPI AuctionAPI,
	chain ExtrinsicSubmitter,
	journal BidJournal,
	settings SettingsSource,
	quotes cache.Cache,
	quoteTTL time.Duration,
	opts ...BidServiceOption,
) *BidService {
	if journal == nil {
		journal = NewMemoryBidJournal()
	}
	if quotes == nil {
		quotes = cache.NewMemory(quoteTTL)
	}
	s := &BidService{
		auction:  auctionAPI,
		chain:    chain,
		journal:  journal,
		settings: settings,
		quotes:   quotes,
		quoteTTL: quoteTTL,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func quotePrefix(collectionID, tokenID uint64) string {
	return fmt.Sprintf("quote:%d:%d:", collectionID, tokenID)
}

// Quote returns the backend's bid quote plus the smallest bid worth
// proposing.
func (s *BidService) Quote(ctx context.Context, collectionID, tokenID uint64, bidder string) (model.QuoteResponse, error) {
	if !ss58.Valid(bidder) {
		return model.QuoteResponse{}, apperrors.NewInvalidRequest("bidder address is not a valid SS58 address")
	}

	s.watch(collectionID, tokenID)

	key := quotePrefix(collectionID, tokenID) + bidder
	var cached model.QuoteResponse
	if ok, err := s.quotes.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	q, err := s.auction.CalculateBid(ctx, collectionID, tokenID, bidder)
	if err != nil {
		return model.QuoteResponse{}, err
	}
	resp := model.QuoteResponse{
		BidQuote: q,
		StartBid: amount.StartBid(q.ContractPendingPrice, q.PriceStep, q.MinBidderAmount),
	}
	if err := s.quotes.Set(ctx, key, resp, s.quoteTTL); err != nil {
		logger.Warn("quote cache write failed", logger.Err(err))
	}
	return resp, nil
}

// InvalidateToken drops cached quotes for every bidder of a token.
func (s *BidService) InvalidateToken(ctx context.Context, collectionID, tokenID uint64) {
	if err := s.quotes.DeletePrefix(ctx, quotePrefix(collectionID, tokenID)); err != nil {
		logger.Warn("quote cache invalidation failed", logger.Err(err))
	}
}

func (s *BidService) watch(collectionID, tokenID uint64) {
	if s.watcher != nil {
		s.watcher.Subscribe(collectionID, tokenID)
	}
}

// HandleFeedEvent invalidates what an auction socket event made stale.
func (s *BidService) HandleFeedEvent(ev auction.Event) {
	s.InvalidateToken(context.Background(), ev.CollectionID, ev.TokenID)
}

// Pause stops new bids from being accepted. Withdrawals stay available.
func (s *BidService) Pause() {
	s.paused.Store(true)
	logger.Warn("bidding paused")
}

func (s *BidService) Resume() {
	s.paused.Store(false)
	logger.Info("bidding resumed")
}

func (s *BidService) Paused() bool {
	return s.paused.Load()
}

func (s *BidService) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *BidService) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

// PlaceBid relays the bidder's signed escrow transfer and then records the
// bid with the auction backend. Each step is journaled; a bid whose
// transfer landed but whose record failed with a retryable error stays
// "transferred" for the reconciler.
func (s *BidService) PlaceBid(ctx context.Context, req model.PlaceBidRequest) (*model.Bid, error) {
	if s.paused.Load() {
		return nil, apperrors.New(apperrors.ErrReadOnly, "bidding is paused", nil)
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.NewInvalidRequest("amount must be positive")
	}
	if !ss58.Valid(req.BidderAddress) {
		return nil, apperrors.NewInvalidRequest("bidder address is not a valid SS58 address")
	}
	if strings.TrimSpace(req.Transfer) == "" {
		return nil, apperrors.NewInvalidRequest("signed escrow transfer is required")
	}

	settings, err := s.settings.Require()
	if err != nil {
		return nil, err
	}

	guard := fmt.Sprintf("%s/%d/%d", req.BidderAddress, req.CollectionID, req.TokenID)
	if !s.acquire(guard) {
		return nil, apperrors.New(apperrors.ErrConflict, "a bid on this token is already being placed", nil)
	}
	defer s.release(guard)

	s.watch(req.CollectionID, req.TokenID)
	s.checkHint(ctx, req)

	bid := &model.Bid{
		ID:            uuid.NewString(),
		CollectionID:  req.CollectionID,
		TokenID:       req.TokenID,
		BidderAddress: req.BidderAddress,
		Amount:        req.Amount,
		Status:        model.BidPending,
		Timestamp:     s.now().UTC(),
	}
	if err := s.journal.Create(ctx, bid); err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "journal bid", err)
	}

	log := logger.With("bid", bid.ID, "collection", bid.CollectionID, "token", bid.TokenID)
	log.Info("submitting escrow transfer", "escrow", settings.EscrowAddress, "amount", bid.Amount.String())

	txHash, err := s.chain.SubmitExtrinsic(ctx, req.Transfer)
	if err != nil {
		s.fail(context.WithoutCancel(ctx), bid, err)
		return bid, err
	}

	// The transfer is on chain now; finish the bookkeeping even if the
	// caller goes away.
	ctx = context.WithoutCancel(ctx)

	bid.TxHash = txHash
	bid.Status = model.BidTransferred
	if err := s.journal.Update(ctx, bid); err != nil {
		log.Error("journal update failed after transfer", logger.Err(err), "tx", txHash)
	}

	if err := s.record(ctx, bid); err != nil {
		if apperrors.IsRetryable(err) {
			log.Warn("bid transferred but not recorded, will reconcile", logger.Err(err))
			return bid, nil
		}
		return bid, err
	}
	return bid, nil
}

// record posts a transferred bid to the backend and moves it to its next
// journal state.
func (s *BidService) record(ctx context.Context, bid *model.Bid) error {
	bid.Attempts++
	err := s.auction.PlaceBid(ctx, bid.Record())
	switch {
	case err == nil:
		bid.Status = model.BidRecorded
		bid.Error = ""
	case apperrors.IsRetryable(err) && bid.Attempts < maxReconcileAttempts:
		bid.Error = err.Error()
	default:
		bid.Status = model.BidFailed
		bid.Error = err.Error()
	}

	if uerr := s.journal.Update(ctx, bid); uerr != nil {
		logger.Error("journal update failed", "bid", bid.ID, logger.Err(uerr))
	}
	metrics.BidsTotal.WithLabelValues(string(bid.Status)).Inc()

	if bid.Status == model.BidRecorded {
		s.InvalidateToken(ctx, bid.CollectionID, bid.TokenID)
		if s.balances != nil {
			s.balances.Invalidate(ctx, bid.BidderAddress)
		}
	}
	return err
}

func (s *BidService) fail(ctx context.Context, bid *model.Bid, cause error) {
	bid.Status = model.BidFailed
	bid.Error = cause.Error()
	if err := s.journal.Update(ctx, bid); err != nil {
		logger.Error("journal update failed", "bid", bid.ID, logger.Err(err))
	}
	metrics.BidsTotal.WithLabelValues(string(model.BidFailed)).Inc()
}

// checkHint logs bids below the start bid. The backend stays authoritative
// on minimums, so nothing is rejected here.
func (s *BidService) checkHint(ctx context.Context, req model.PlaceBidRequest) {
	q, err := s.Quote(ctx, req.CollectionID, req.TokenID, req.BidderAddress)
	if err != nil {
		logger.Debug("no quote for bid hint", logger.Err(err))
		return
	}
	if req.Amount.LessThan(q.StartBid) {
		logger.Warn("bid below suggested start bid",
			"bidder", req.BidderAddress,
			"amount", req.Amount.String(),
			"start_bid", q.StartBid.String(),
		)
	}
}

// Reconcile re-posts transferred bids that never reached the backend and
// returns how many got recorded.
func (s *BidService) Reconcile(ctx context.Context) (int, error) {
	pending, err := s.journal.ListByStatus(ctx, model.BidTransferred, 100)
	if err != nil {
		return 0, apperrors.New(apperrors.ErrInternal, "list transferred bids", err)
	}

	recorded := 0
	for _, bid := range pending {
		if ctx.Err() != nil {
			return recorded, ctx.Err()
		}
		guard := fmt.Sprintf("%s/%d/%d", bid.BidderAddress, bid.CollectionID, bid.TokenID)
		if !s.acquire(guard) {
			continue
		}
		err := s.record(ctx, bid)
		s.release(guard)

		if err == nil {
			recorded++
			logger.Info("reconciled bid", "bid", bid.ID, "attempts", bid.Attempts)
		}
	}
	return recorded, nil
}

// RunReconciler calls Reconcile every interval until ctx is done.
func (s *BidService) RunReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
				logger.Error("reconcile failed", logger.Err(err))
			} else if n > 0 {
				logger.Info("reconcile pass", "recorded", n)
			}
		}
	}
}

func (s *BidService) GetBid(ctx context.Context, id string) (*model.Bid, error) {
	bid, err := s.journal.Get(ctx, id)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "bid not found", err)
	}
	return bid, nil
}

func (s *BidService) ListBids(ctx context.Context, bidder string, limit int) ([]*model.Bid, error) {
	if !ss58.Valid(bidder) {
		return nil, apperrors.NewInvalidRequest("bidder address is not a valid SS58 address")
	}
	bids, err := s.journal.ListByBidder(ctx, bidder, limit)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "list bids", err)
	}
	return bids, nil
}

// Withdraw forwards a withdraw request, signing it with the gateway key
// when the caller did not.
func (s *BidService) Withdraw(ctx context.Context, req model.SignedTokenRequest) error {
	q, err := s.resolveQuery(ctx, req)
	if err != nil {
		return err
	}
	if err := s.auction.WithdrawBidsSigned(ctx, q); err != nil {
		return err
	}
	s.afterTokenChange(ctx, req.CollectionID, req.TokenID, q.Address)
	return nil
}

// Cancel forwards a cancel-auction request like Withdraw.
func (s *BidService) Cancel(ctx context.Context, req model.SignedTokenRequest) error {
	q, err := s.resolveQuery(ctx, req)
	if err != nil {
		return err
	}
	if err := s.auction.CancelAuctionSigned(ctx, q); err != nil {
		return err
	}
	s.afterTokenChange(ctx, req.CollectionID, req.TokenID, q.Address)
	return nil
}

func (s *BidService) afterTokenChange(ctx context.Context, collectionID, tokenID uint64, address string) {
	s.InvalidateToken(ctx, collectionID, tokenID)
	if s.balances != nil {
		s.balances.Invalidate(ctx, address)
	}
}

// resolveQuery picks the non-custodial path (caller signature) or the
// custodial one (gateway key).
func (s *BidService) resolveQuery(ctx context.Context, req model.SignedTokenRequest) (auction.SignedQuery, error) {
	if strings.TrimSpace(req.Signature) == "" {
		if s.signer == nil {
			return auction.SignedQuery{}, apperrors.New(apperrors.ErrAuthFailed,
				"signature required or gateway key not configured", nil)
		}
		if req.Address != "" && !sameAccount(req.Address, s.signer.Address()) {
			return auction.SignedQuery{}, apperrors.New(apperrors.ErrAuthFailed,
				"gateway can only sign for its own account", nil)
		}
		return auction.Sign(ctx, s.signer, req.CollectionID, req.TokenID, s.now())
	}

	if !ss58.Valid(req.Address) {
		return auction.SignedQuery{}, apperrors.NewInvalidRequest("address is required with a signature")
	}
	q := auction.SignedQuery{
		CollectionID: req.CollectionID,
		TokenID:      req.TokenID,
		Timestamp:    req.Timestamp,
		Address:      req.Address,
		Signature:    req.Signature,
	}
	return q, q.Validate()
}

// sameAccount compares two addresses regardless of their SS58 prefix.
func sameAccount(a, b string) bool {
	idA, _, errA := ss58.Decode(a)
	idB, _, errB := ss58.Decode(b)
	return errA == nil && errB == nil && string(idA) == string(idB)
}
