package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
)

// ReadOnlyMiddleware rejects writes while the gateway runs in read-only
// mode. Admin routes stay reachable so bidding can be resumed.
func ReadOnlyMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		if strings.HasPrefix(c.FullPath(), "/v1/admin/") {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		default:
			_ = c.Error(apperrors.New(apperrors.ErrReadOnly, "read-only mode enabled", nil))
			c.Abort()
			return
		}
	}
}
