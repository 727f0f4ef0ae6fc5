package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unique-nft/marketgate/internal/pkg/logger"
)

type AdminHandler struct {
	bids BidFlow
}

func NewAdminHandler(bids BidFlow) *AdminHandler {
	return &AdminHandler{bids: bids}
}

// Reconcile re-posts transferred bids right away instead of waiting for
// the next reconciler tick.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	n, err := h.bids.Reconcile(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": n})
}

func (h *AdminHandler) PauseBidding(c *gin.Context) {
	h.bids.Pause()
	logger.Warn("bidding paused", "client_ip", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (h *AdminHandler) ResumeBidding(c *gin.Context) {
	h.bids.Resume()
	logger.Info("bidding resumed", "client_ip", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"paused": false})
}
