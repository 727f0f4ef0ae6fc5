package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
)

type BalanceHandler struct {
	svc          BalanceFetcher
	pollInterval time.Duration
}

func NewBalanceHandler(svc BalanceFetcher, pollInterval time.Duration) *BalanceHandler {
	if pollInterval <= 0 {
		pollInterval = 12 * time.Second
	}
	return &BalanceHandler{svc: svc, pollInterval: pollInterval}
}

func (h *BalanceHandler) Get(c *gin.Context) {
	balances, err := h.svc.Fetch(c.Request.Context(), c.Param("address"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

type balanceUpdate struct {
	balances model.Balances
	err      error
}

// Stream pushes balances as server-sent events until the client goes away.
func (h *BalanceHandler) Stream(c *gin.Context) {
	address := c.Param("address")
	updates := make(chan balanceUpdate, 1)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go h.svc.Watch(ctx, address, h.pollInterval, func(b model.Balances, err error) {
		select {
		case updates <- balanceUpdate{balances: b, err: err}:
		case <-ctx.Done():
		}
	})

	c.Header("Cache-Control", "no-cache")
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			if u.err != nil {
				c.SSEvent("error", apperrors.Wrap(u.err))
				c.Writer.Flush()
				if apperrors.Is(u.err, apperrors.ErrInvalidRequest) {
					return
				}
				continue
			}
			c.SSEvent("balances", u.balances)
			c.Writer.Flush()
		}
	}
}
