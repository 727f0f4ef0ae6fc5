package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pagination"
)

type TradeHandler struct {
	svc TradeLister
}

func NewTradeHandler(svc TradeLister) *TradeHandler {
	return &TradeHandler{svc: svc}
}

func (h *TradeHandler) List(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		fail(c, err)
		return
	}
	perPage, err := queryInt(c, "perPage", 0)
	if err != nil {
		fail(c, err)
		return
	}
	sort, err := pagination.ParseSort(c.Query("sort"))
	if err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.svc.List(c.Request.Context(), model.TradeQuery{
		Page:    page,
		PerPage: perPage,
		Sort:    sort,
		Account: c.Query("account"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Pages computes a page strip without touching trade history.
func (h *TradeHandler) Pages(c *gin.Context) {
	items, err := queryInt(c, "items", 0)
	if err != nil {
		fail(c, err)
		return
	}
	perPage, err := queryInt(c, "perPage", 10)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		fail(c, err)
		return
	}

	res, err := pagination.Pages(items, perPage, page)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
