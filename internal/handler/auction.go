package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
)

const defaultBidListLimit = 50

type AuctionHandler struct {
	svc BidFlow
}

func NewAuctionHandler(svc BidFlow) *AuctionHandler {
	return &AuctionHandler{svc: svc}
}

func (h *AuctionHandler) Calculate(c *gin.Context) {
	var req model.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	quote, err := h.svc.Quote(c.Request.Context(), req.CollectionID, req.TokenID, req.BidderAddress)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// PlaceBid answers 201 once the backend recorded the bid and 202 when the
// transfer is on chain but recording is still pending.
func (h *AuctionHandler) PlaceBid(c *gin.Context) {
	var req model.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	bid, err := h.svc.PlaceBid(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	status := http.StatusCreated
	if bid.Status != model.BidRecorded {
		status = http.StatusAccepted
	}
	c.JSON(status, bid)
}

func (h *AuctionHandler) GetBid(c *gin.Context) {
	bid, err := h.svc.GetBid(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bid)
}

func (h *AuctionHandler) ListBids(c *gin.Context) {
	bidder := c.Query("bidder")
	if bidder == "" {
		fail(c, apperrors.NewInvalidRequest("bidder is required"))
		return
	}
	limit, err := queryInt(c, "limit", defaultBidListLimit)
	if err != nil {
		fail(c, err)
		return
	}

	bids, err := h.svc.ListBids(c.Request.Context(), bidder, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": bids})
}

func (h *AuctionHandler) Withdraw(c *gin.Context) {
	var req model.SignedTokenRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.Withdraw(c.Request.Context(), req); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "withdrawn"})
}

func (h *AuctionHandler) Cancel(c *gin.Context) {
	var req model.SignedTokenRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.Cancel(c.Request.Context(), req); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}
