package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
)

type SettingsHandler struct {
	settings SettingsReader
	bids     BidFlow
}

func NewSettingsHandler(settings SettingsReader, bids BidFlow) *SettingsHandler {
	return &SettingsHandler{settings: settings, bids: bids}
}

func (h *SettingsHandler) Health(c *gin.Context) {
	_, ready := h.settings.Get()
	resp := gin.H{
		"status":        "ok",
		"service":       "marketgate",
		"settingsReady": ready,
	}
	if h.bids != nil {
		resp["biddingPaused"] = h.bids.Paused()
	}
	c.JSON(http.StatusOK, resp)
}

// Get serves the resolved marketplace settings, or NOT_READY while they
// are still loading.
func (h *SettingsHandler) Get(c *gin.Context) {
	s, ok := h.settings.Get()
	if !ok {
		fail(c, apperrors.NewNotReady("marketplace settings are not loaded yet"))
		return
	}
	c.JSON(http.StatusOK, s)
}
