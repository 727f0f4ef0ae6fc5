package auction

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unique-nft/marketgate/internal/pkg/logger"
	"github.com/unique-nft/marketgate/internal/pkg/metrics"
)

const (
	ReconnBaseDelay = 1 * time.Second
	ReconnMaxDelay  = 30 * time.Second
	PingPeriod      = 15 * time.Second // Keep-alive interval

	// MaxSubscriptions caps the watched token set. Tokens past it rely on
	// cache expiry alone.
	MaxSubscriptions = 10000
)

// Event types pushed by the auction socket.
const (
	EventBidPlaced       = "bidPlaced"
	EventBidWithdrawn    = "bidWithdrawn"
	EventAuctionStarted  = "auctionStarted"
	EventAuctionStopped  = "auctionStopped"
	EventAuctionClosed   = "auctionClosed"
	EventAuctionCanceled = "auctionCanceled"
)

// Event is one auction socket notification.
type Event struct {
	Type         string `json:"type"`
	CollectionID uint64 `json:"collectionId"`
	TokenID      uint64 `json:"tokenId"`
}

type tokenKey struct {
	collectionID uint64
	tokenID      uint64
}

// Feed keeps a websocket to the auction socket open and fans events out to
// handlers. An empty subscription set receives every event.
type Feed struct {
	url       string
	dialer    *websocket.Dialer
	baseDelay time.Duration
	maxDelay  time.Duration

	mu          sync.RWMutex
	writeMu     sync.Mutex
	conn        *websocket.Conn
	isConnected bool
	subs        map[tokenKey]struct{}
	handlers    []func(Event)

	// send writes a subscribe frame; replaced in tests.
	send func(keys []tokenKey) error
}

func NewFeed(url string) *Feed {
	f := &Feed{
		url:       url,
		dialer:    websocket.DefaultDialer,
		baseDelay: ReconnBaseDelay,
		maxDelay:  ReconnMaxDelay,
		subs:      make(map[tokenKey]struct{}),
	}
	f.send = f.sendSubscribe
	return f
}

// SetURL points the feed at a socket resolved after construction. It takes
// effect on the next connect.
func (f *Feed) SetURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
}

// OnEvent registers fn for every received event. Handlers run on the read
// goroutine and must not block.
func (f *Feed) OnEvent(fn func(Event)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, fn)
}

// Subscribe asks the socket for updates on a token.
func (f *Feed) Subscribe(collectionID, tokenID uint64) {
	key := tokenKey{collectionID, tokenID}

	f.mu.Lock()
	if _, ok := f.subs[key]; ok || len(f.subs) >= MaxSubscriptions {
		f.mu.Unlock()
		return
	}
	f.subs[key] = struct{}{}
	connected := f.isConnected
	f.mu.Unlock()

	if connected {
		if err := f.send([]tokenKey{key}); err != nil {
			logger.Warn("auction feed subscribe failed", logger.Err(err))
		}
	}
}

// Run connects and reconnects with backoff until ctx is done.
func (f *Feed) Run(ctx context.Context) {
	delay := f.baseDelay

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := f.connect(ctx)
		if err != nil {
			logger.Error("auction feed connection failed", logger.Err(err), "retry_in", delay)
			if !f.backoff(ctx, &delay) {
				return
			}
			continue
		}
		metrics.FeedEvents.WithLabelValues("connected").Inc()

		if err := f.send(f.subscriptions()); err != nil {
			logger.Error("auction feed resubscribe failed", logger.Err(err), "retry_in", delay)
			f.disconnect(conn)
			if !f.backoff(ctx, &delay) {
				return
			}
			continue
		}
		delay = f.baseDelay

		connCtx, cancel := context.WithCancel(ctx)
		go f.pingLoop(connCtx, conn)
		go func() {
			<-connCtx.Done()
			_ = conn.Close()
		}()

		f.readLoop(conn)
		cancel()
		f.disconnect(conn)
	}
}

// backoff waits for delay and doubles it up to maxDelay. It reports false
// once ctx is done.
func (f *Feed) backoff(ctx context.Context, delay *time.Duration) bool {
	if !sleep(ctx, *delay) {
		return false
	}
	*delay *= 2
	if *delay > f.maxDelay {
		*delay = f.maxDelay
	}
	return true
}

func (f *Feed) connect(ctx context.Context) (*websocket.Conn, error) {
	f.mu.RLock()
	url := f.url
	f.mu.RUnlock()

	conn, _, err := f.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	// If nothing (not even a pong) arrives within PingPeriod + buffer the
	// connection is treated as dead.
	readTimeout := PingPeriod + 10*time.Second
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	f.mu.Lock()
	f.conn = conn
	f.isConnected = true
	f.mu.Unlock()
	return conn, nil
}

func (f *Feed) disconnect(conn *websocket.Conn) {
	_ = conn.Close()
	f.mu.Lock()
	if f.conn == conn {
		f.conn = nil
		f.isConnected = false
	}
	f.mu.Unlock()
	metrics.FeedEvents.WithLabelValues("disconnected").Inc()
}

func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			f.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (f *Feed) readLoop(conn *websocket.Conn) {
	readTimeout := PingPeriod + 10*time.Second

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			logger.Debug("auction feed read stopped", logger.Err(err))
			return
		}

		var events []Event
		// The socket sends either a batch or a single event.
		if err := json.Unmarshal(message, &events); err != nil {
			var single Event
			if err2 := json.Unmarshal(message, &single); err2 != nil || single.Type == "" {
				continue
			}
			events = []Event{single}
		}

		for _, ev := range events {
			f.dispatch(ev)
		}
	}
}

func (f *Feed) dispatch(ev Event) {
	f.mu.RLock()
	_, subscribed := f.subs[tokenKey{ev.CollectionID, ev.TokenID}]
	filtered := len(f.subs) > 0
	handlers := f.handlers
	f.mu.RUnlock()

	if filtered && !subscribed {
		return
	}
	metrics.FeedEvents.WithLabelValues(ev.Type).Inc()
	for _, fn := range handlers {
		fn(ev)
	}
}

func (f *Feed) subscriptions() []tokenKey {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]tokenKey, 0, len(f.subs))
	for k := range f.subs {
		out = append(out, k)
	}
	return out
}

type subscribeMessage struct {
	Type   string  `json:"type"`
	Tokens []Token `json:"tokens"`
}

// Token is a collection / token pair on the wire.
type Token struct {
	CollectionID uint64 `json:"collectionId"`
	TokenID      uint64 `json:"tokenId"`
}

func (f *Feed) sendSubscribe(keys []tokenKey) error {
	if len(keys) == 0 {
		return nil
	}
	msg := subscribeMessage{Type: "subscribe", Tokens: make([]Token, 0, len(keys))}
	for _, k := range keys {
		msg.Tokens = append(msg.Tokens, Token{CollectionID: k.collectionID, TokenID: k.tokenID})
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()
	if conn == nil {
		return errNotConnected
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
