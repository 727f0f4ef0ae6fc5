package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
)

func TestDoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "v", r.Header.Get("X-Test"))
			var in map[string]int
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			_, _ = w.Write([]byte(`{"sum":` + itoa(in["a"]+in["b"]) + `}`))
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		case "/bad-request":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":["amount too low","step"]}`))
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"bad signature"}`))
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("upstream exploded"))
		case "/garbage":
			_, _ = w.Write([]byte("{"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	var out struct {
		Sum int `json:"sum"`
	}
	err := DoJSON(ctx, srv.Client(), Request{
		Method: http.MethodPost,
		URL:    JoinURL(srv.URL+"/", "/ok"),
		Header: http.Header{"X-Test": []string{"v"}},
		Body:   map[string]int{"a": 2, "b": 3},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Sum)

	require.NoError(t, DoJSON(ctx, nil, Request{Method: http.MethodDelete, URL: srv.URL + "/empty"}, &out))

	err = DoJSON(ctx, srv.Client(), Request{Method: http.MethodGet, URL: srv.URL + "/bad-request"}, nil)
	require.True(t, apperrors.Is(err, apperrors.ErrUpstreamRejected))
	assert.Contains(t, err.Error(), "amount too low; step")
	assert.False(t, apperrors.IsRetryable(err))

	err = DoJSON(ctx, srv.Client(), Request{Method: http.MethodGet, URL: srv.URL + "/forbidden"}, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrAuthFailed))
	assert.Equal(t, http.StatusForbidden, apperrors.Wrap(err).HTTPStatus)

	err = DoJSON(ctx, srv.Client(), Request{Method: http.MethodGet, URL: srv.URL + "/boom"}, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrUpstream))
	assert.True(t, apperrors.IsRetryable(err))

	err = DoJSON(ctx, srv.Client(), Request{Method: http.MethodGet, URL: srv.URL + "/garbage"}, &out)
	assert.True(t, apperrors.Is(err, apperrors.ErrUpstream))

	err = DoJSON(ctx, srv.Client(), Request{Method: http.MethodGet, URL: "http://127.0.0.1:1/"}, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrNetwork))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err = DoJSON(short, srv.Client(), Request{Method: http.MethodGet, URL: srv.URL + "/slow"}, nil)
	assert.True(t, IsCanceled(err))
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
