package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

// maxErrorBody caps how much of a failed response ends up in an error.
const maxErrorBody = 512

// Request describes a single JSON call against a backend.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   any
}

// DoJSON sends req, decodes a 2xx body into dest (when non-nil) and maps
// everything else onto apperrors: non-2xx by status class, transport
// failures as network errors. Context cancellation is returned as is.
func DoJSON(ctx context.Context, httpClient *http.Client, req Request, dest any) error {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	body := io.Reader(http.NoBody)
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return apperrors.New(apperrors.ErrInternal, "encode request", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return apperrors.New(apperrors.ErrInternal, "build request", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperrors.New(apperrors.ErrNetwork, fmt.Sprintf("%s %s", req.Method, req.URL), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.New(apperrors.ErrNetwork, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.FromStatus(resp.StatusCode, errorMessage(resp.StatusCode, raw))
	}

	if dest == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return apperrors.New(apperrors.ErrUpstream, "malformed response", err)
	}
	return nil
}

// errorMessage pulls a readable message out of an error body.
func errorMessage(status int, raw []byte) string {
	var wire struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &wire); err == nil {
		switch m := wire.Message.(type) {
		case string:
			if m != "" {
				return m
			}
		case []any:
			parts := make([]string, 0, len(m))
			for _, p := range m {
				parts = append(parts, fmt.Sprint(p))
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
		if wire.Error != "" {
			return wire.Error
		}
	}

	text := strings.TrimSpace(string(raw))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	if text == "" {
		text = http.StatusText(status)
	}
	return text
}

// JoinURL appends path to base without doubling slashes.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// IsCanceled reports whether err is a context cancellation or deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
