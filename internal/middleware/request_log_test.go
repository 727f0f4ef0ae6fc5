package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactBodyBids(t *testing.T) {
	body := []byte(`{"tokenId":1,"signature":"0xdead","transfer":"0x4502","nested":{"privateKey":"k"}}`)
	out := redactBody("/v1/auction/bids", body)

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if data["signature"] == "0xdead" {
		t.Fatalf("signature not redacted")
	}
	if data["transfer"] == "0x4502" {
		t.Fatalf("transfer not redacted")
	}
	if nested, ok := data["nested"].(map[string]interface{}); ok {
		if nested["privateKey"] == "k" {
			t.Fatalf("nested key not redacted")
		}
	}
}

func TestRedactBodyNonSensitivePath(t *testing.T) {
	body := []byte(`{"ok":true}`)
	out := redactBody("/health", body)
	if out != string(body) {
		t.Fatalf("unexpected redaction on non-sensitive path")
	}
}

func TestRedactBodyInvalidJSON(t *testing.T) {
	body := []byte("not-json")
	out := redactBody("/v1/auction/bids", body)
	if out != "[redacted]" {
		t.Fatalf("expected redacted placeholder for invalid json")
	}
}

func TestRequestLogMiddlewareKeepsBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogMiddleware())
	r.POST("/echo", func(c *gin.Context) {
		var in map[string]any
		require.NoError(t, c.ShouldBindJSON(&in))
		c.JSON(http.StatusOK, in)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"a":1}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{}`))
	req.Header.Set(HeaderRequestID, "abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(HeaderRequestID))
}
