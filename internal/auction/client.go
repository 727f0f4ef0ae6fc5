// Package auction talks to the auction backend: bid quotes, bid
// placement, withdrawals and auction cancellation.
package auction

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
	"github.com/unique-nft/marketgate/internal/pkg/httpx"
	"github.com/unique-nft/marketgate/internal/pkg/logger"
	"github.com/unique-nft/marketgate/internal/pkg/metrics"
	"github.com/unique-nft/marketgate/internal/signer"
)

const (
	pathCalculate     = "/auction/calculate"
	pathPlaceBid      = "/auction/place_bid"
	pathWithdrawBid   = "/auction/withdraw_bid"
	pathCancelAuction = "/auction/cancel_auction"
)

const (
	OpCalculate = "calculate"
	OpPlaceBid  = "place_bid"
	OpWithdraw  = "withdraw_bid"
	OpCancel    = "cancel_auction"
)

// Endpoint resolves the auction REST base URL.
type Endpoint func(ctx context.Context) (string, error)

// StaticEndpoint always resolves to u.
func StaticEndpoint(u string) Endpoint {
	return func(context.Context) (string, error) {
		return u, nil
	}
}

type Client struct {
	endpoint   Endpoint
	httpClient *http.Client
	limiter    *rate.Limiter
	quotes     singleflight.Group
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit caps outbound calls. qps <= 0 disables the limiter.
func WithRateLimit(qps float64, burst int) Option {
	return func(c *Client) {
		if qps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func NewClient(endpoint Endpoint, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type callOptions struct {
	onWaitingChange func(bool)
}

// CallOption tunes a single withdraw / cancel call.
type CallOption func(*callOptions)

// WithWaiting is told true before the request goes out and false once it
// has finished, successfully or not.
func WithWaiting(fn func(waiting bool)) CallOption {
	return func(o *callOptions) {
		o.onWaitingChange = fn
	}
}

// CalculateBid asks the backend what bidder owes on a token. Identical
// concurrent calls share one request.
func (c *Client) CalculateBid(ctx context.Context, collectionID, tokenID uint64, bidder string) (model.BidQuote, error) {
	key := fmt.Sprintf("%d/%d/%s", collectionID, tokenID, bidder)
	// The shared request outlives any single caller; the http client
	// timeout bounds it.
	shared := context.WithoutCancel(ctx)
	ch := c.quotes.DoChan(key, func() (any, error) {
		var quote model.BidQuote
		err := c.do(shared, OpCalculate, http.MethodPost, pathCalculate, nil, nil, model.CalculateRequest{
			CollectionID:  collectionID,
			TokenID:       tokenID,
			BidderAddress: bidder,
		}, &quote)
		return quote, err
	})

	select {
	case <-ctx.Done():
		return model.BidQuote{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.BidQuote{}, res.Err
		}
		return res.Val.(model.BidQuote), nil
	}
}

// PlaceBid records a bid whose escrow transfer is already on chain.
func (c *Client) PlaceBid(ctx context.Context, rec model.BidRecord) error {
	return c.do(ctx, OpPlaceBid, http.MethodPost, pathPlaceBid, nil, nil, rec, nil)
}

// WithdrawBids signs and sends a withdraw request for the signer's bids on
// a token. The waiting callback covers signing as well as the request.
func (c *Client) WithdrawBids(ctx context.Context, s signer.Signer, collectionID, tokenID uint64, opts ...CallOption) error {
	defer startWaiting(opts)()

	q, err := Sign(ctx, s, collectionID, tokenID, c.now())
	if err != nil {
		return err
	}
	return c.signedDelete(ctx, OpWithdraw, pathWithdrawBid, q)
}

// WithdrawBidsSigned forwards a withdraw request signed elsewhere.
func (c *Client) WithdrawBidsSigned(ctx context.Context, q SignedQuery, opts ...CallOption) error {
	defer startWaiting(opts)()
	return c.signedDelete(ctx, OpWithdraw, pathWithdrawBid, q)
}

// CancelAuction signs and sends a cancel request for the signer's auction.
func (c *Client) CancelAuction(ctx context.Context, s signer.Signer, collectionID, tokenID uint64, opts ...CallOption) error {
	defer startWaiting(opts)()

	q, err := Sign(ctx, s, collectionID, tokenID, c.now())
	if err != nil {
		return err
	}
	return c.signedDelete(ctx, OpCancel, pathCancelAuction, q)
}

// CancelAuctionSigned forwards a cancel request signed elsewhere.
func (c *Client) CancelAuctionSigned(ctx context.Context, q SignedQuery, opts ...CallOption) error {
	defer startWaiting(opts)()
	return c.signedDelete(ctx, OpCancel, pathCancelAuction, q)
}

// startWaiting reports waiting=true right away and returns the func that
// reports false.
func startWaiting(opts []CallOption) func() {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.onWaitingChange == nil {
		return func() {}
	}
	o.onWaitingChange(true)
	return func() { o.onWaitingChange(false) }
}

func (c *Client) signedDelete(ctx context.Context, op, path string, q SignedQuery) error {
	if err := q.Validate(); err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Authorization", q.Authorization())

	return c.do(ctx, op, http.MethodDelete, path, q.Values(), header, nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, header http.Header, body, dest any) (err error) {
	metrics.InFlight.WithLabelValues(op).Inc()
	defer metrics.InFlight.WithLabelValues(op).Dec()
	defer func() {
		metrics.AuctionRequests.WithLabelValues(op, statusLabel(err)).Inc()
	}()

	base, err := c.endpoint(ctx)
	if err != nil {
		return err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return apperrors.New(apperrors.ErrRateLimited, "auction request budget exhausted", err)
		}
	}

	u := httpx.JoinURL(base, path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	err = httpx.DoJSON(ctx, c.httpClient, httpx.Request{
		Method: method,
		URL:    u,
		Header: header,
		Body:   body,
	}, dest)
	if err != nil && !httpx.IsCanceled(err) {
		logger.Warn("auction request failed", "op", op, logger.Err(err))
	}
	return err
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if httpx.IsCanceled(err) {
		return "canceled"
	}
	return string(apperrors.Wrap(err).Type)
}

// SignedQuery is the payload the backend authenticates withdraw and cancel
// requests with.
type SignedQuery struct {
	CollectionID uint64
	TokenID      uint64
	Timestamp    int64
	Address      string
	Signature    string
}

// Message is the exact string an account signs.
func Message(collectionID, tokenID uint64, timestamp int64) string {
	return "collectionId=" + strconv.FormatUint(collectionID, 10) +
		"&tokenId=" + strconv.FormatUint(tokenID, 10) +
		"&timestamp=" + strconv.FormatInt(timestamp, 10)
}

// Sign builds a SignedQuery for s at now.
func Sign(ctx context.Context, s signer.Signer, collectionID, tokenID uint64, now time.Time) (SignedQuery, error) {
	if s == nil {
		return SignedQuery{}, apperrors.New(apperrors.ErrAuthFailed, "no signer available", nil)
	}
	ts := now.UnixMilli()
	sig, err := s.Sign(ctx, []byte(Message(collectionID, tokenID, ts)))
	if err != nil {
		return SignedQuery{}, apperrors.New(apperrors.ErrAuthFailed, "sign request", err)
	}
	return SignedQuery{
		CollectionID: collectionID,
		TokenID:      tokenID,
		Timestamp:    ts,
		Address:      s.Address(),
		Signature:    sig,
	}, nil
}

func (q SignedQuery) Message() string {
	return Message(q.CollectionID, q.TokenID, q.Timestamp)
}

// Authorization is the header value "address:signature".
func (q SignedQuery) Authorization() string {
	return q.Address + ":" + q.Signature
}

func (q SignedQuery) Values() url.Values {
	v := url.Values{}
	v.Set("collectionId", strconv.FormatUint(q.CollectionID, 10))
	v.Set("tokenId", strconv.FormatUint(q.TokenID, 10))
	v.Set("timestamp", strconv.FormatInt(q.Timestamp, 10))
	return v
}

func (q SignedQuery) Validate() error {
	switch {
	case q.Address == "":
		return apperrors.NewInvalidRequest("address is required")
	case q.Signature == "":
		return apperrors.NewInvalidRequest("signature is required")
	case q.Timestamp <= 0:
		return apperrors.NewInvalidRequest("timestamp is required")
	}
	return nil
}
