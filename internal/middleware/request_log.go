package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/unique-nft/marketgate/internal/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

const (
	HeaderRequestID  = "X-Request-ID"
	ContextRequestID = "request_id"
)

// maxLoggedBody keeps log lines bounded.
const maxLoggedBody = 2048

// bodyLogWriter captures the response body
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestLogMiddleware tags each request with an id and logs it once it
// has been served, with signatures and signed transfers redacted.
func RequestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Header(HeaderRequestID, reqID)
		c.Set(ContextRequestID, reqID)

		// Read the body and put it back for binding.
		var reqBodyBytes []byte
		if c.Request.Body != nil {
			reqBodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(reqBodyBytes))
		}

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("request_id", reqID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.String("client_ip", c.ClientIP()),
			slog.Int64("latency_ms", time.Since(start).Milliseconds()),
		}
		if logger.Get().Enabled(c.Request.Context(), slog.LevelDebug) {
			attrs = append(attrs,
				slog.String("request_body", redactBody(c.Request.URL.Path, reqBodyBytes)),
				slog.String("response_body", redactBody(c.Request.URL.Path, blw.body.Bytes())),
			)
		}

		switch {
		case status >= 500:
			logger.Get().ErrorContext(c.Request.Context(), "request", attrs...)
		case strings.HasPrefix(c.Request.URL.Path, "/health"), c.Request.URL.Path == "/metrics":
			logger.Get().DebugContext(c.Request.Context(), "request", attrs...)
		default:
			logger.Get().InfoContext(c.Request.Context(), "request", attrs...)
		}
	}
}

func redactBody(path string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if !isSensitivePath(path) {
		return truncate(string(body))
	}
	redacted, ok := redactJSON(body)
	if !ok {
		return "[redacted]"
	}
	return truncate(string(redacted))
}

func truncate(s string) string {
	if len(s) > maxLoggedBody {
		return s[:maxLoggedBody]
	}
	return s
}

func isSensitivePath(path string) bool {
	switch {
	case strings.HasPrefix(path, "/v1/auction"):
		return true
	case strings.HasPrefix(path, "/v1/admin"):
		return true
	default:
		return false
	}
}

func redactJSON(body []byte) ([]byte, bool) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false
	}
	redactValue(&data)
	out, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	return out, true
}

func redactValue(v *interface{}) {
	switch raw := (*v).(type) {
	case map[string]interface{}:
		for key, val := range raw {
			if isSensitiveKey(key) {
				raw[key] = "***"
				continue
			}
			vv := val
			redactValue(&vv)
			raw[key] = vv
		}
	case []interface{}:
		for i, val := range raw {
			vv := val
			redactValue(&vv)
			raw[i] = vv
		}
	}
}

func isSensitiveKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "signature",
		"sig",
		"transfer",
		"extrinsic",
		"private_key",
		"privatekey",
		"admin_key":
		return true
	default:
		return false
	}
}
