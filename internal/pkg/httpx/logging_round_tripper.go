package httpx

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/rs/xid"

	"github.com/unique-nft/marketgate/internal/pkg/logger"
)

// LoggingRoundTripper implements http.RoundTripper interface and executes HTTP
// requests with logging.
type LoggingRoundTripper struct {
	next                http.RoundTripper
	sensitiveDataMasker sensitiveDataMasker
	logFieldMaxLen      int
}

// NewLoggingRoundTripper returns a new logging RoundTripper instance.
func NewLoggingRoundTripper(
	next http.RoundTripper,
	opts ...Option,
) LoggingRoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	rt := LoggingRoundTripper{
		next:                next,
		sensitiveDataMasker: nopSensitiveDataMasker{},
		logFieldMaxLen:      0,
	}

	for _, opt := range opts {
		opt(&rt)
	}

	return rt
}

// RoundTrip implements http.RoundTripper interface.
func (rt LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	requestID := xid.New().String()
	log := logger.Get()

	reqBytes, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		log.ErrorContext(ctx, "httputil.DumpRequestOut",
			slog.String("request-id", requestID),
			logger.Err(err),
		)
	}

	log.DebugContext(ctx, "http-request",
		slog.String("request-id", requestID),
		slog.String("request-body", rt.truncate(rt.sensitiveDataMasker.Mask(reqBytes))),
	)

	start := time.Now()

	resp, err := rt.next.RoundTrip(req)
	if err != nil {
		log.WarnContext(ctx, "http-request failed",
			slog.String("request-id", requestID),
			slog.String("url", req.URL.Redacted()),
			logger.Err(err),
		)
		return nil, fmt.Errorf("next.RoundTrip: %w", err)
	}

	respBytes, err := httputil.DumpResponse(resp, true)
	if err != nil {
		log.ErrorContext(ctx, "httputil.DumpResponse",
			slog.String("request-id", requestID),
			logger.Err(err),
		)
	}

	log.DebugContext(ctx, "http-response",
		slog.String("request-id", requestID),
		slog.String("response-body", rt.truncate(rt.sensitiveDataMasker.Mask(respBytes))),
		slog.Int("response-status", resp.StatusCode),
		slog.Int64("duration-ms", time.Since(start).Milliseconds()),
	)

	return resp, nil
}

func (rt LoggingRoundTripper) truncate(b []byte) string {
	if rt.logFieldMaxLen != 0 && len(b) > rt.logFieldMaxLen {
		b = b[:rt.logFieldMaxLen]
	}
	return string(b)
}

// NewClient builds the HTTP client used for backend calls.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{
		Transport: NewLoggingRoundTripper(transport,
			WithSensitiveDataMasker(NewSensitiveDataMasker()),
			WithLogFieldMaxLen(4096),
		),
		Timeout: timeout,
	}
}
