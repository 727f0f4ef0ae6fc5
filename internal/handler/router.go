package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unique-nft/marketgate/internal/middleware"
)

type Handlers struct {
	Settings *SettingsHandler
	Balance  *BalanceHandler
	Auction  *AuctionHandler
	Trades   *TradeHandler
	Admin    *AdminHandler
}

type RouterOptions struct {
	ReadOnly    bool
	AdminKey    string
	Limiter     *middleware.IPRateLimiter
	Idempotency middleware.IdempotencyStore
	// MetricsPath mounts the Prometheus handler when non-empty.
	MetricsPath string
}

func NewRouter(h Handlers, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RequestLogMiddleware())

	r.GET("/health", h.Settings.Health)
	if opts.MetricsPath != "" {
		r.GET(opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.RateLimitMiddleware(opts.Limiter))
	v1.Use(middleware.ReadOnlyMiddleware(opts.ReadOnly))
	{
		v1.GET("/settings", h.Settings.Get)
		v1.GET("/accounts/:address/balances", h.Balance.Get)
		v1.GET("/accounts/:address/balances/stream", h.Balance.Stream)
		v1.GET("/trades", h.Trades.List)
		v1.GET("/pages", h.Trades.Pages)

		a := v1.Group("/auction")
		a.POST("/calculate", h.Auction.Calculate)
		a.GET("/bids", h.Auction.ListBids)
		a.GET("/bids/:id", h.Auction.GetBid)
		a.POST("/bids", middleware.IdempotencyMiddleware(opts.Idempotency), h.Auction.PlaceBid)
		a.DELETE("/bids", h.Auction.Withdraw)
		a.DELETE("/auctions", h.Auction.Cancel)

		admin := v1.Group("/admin")
		admin.Use(middleware.AdminMiddleware(opts.AdminKey))
		admin.POST("/reconcile", h.Admin.Reconcile)
		admin.POST("/bidding/pause", h.Admin.PauseBidding)
		admin.POST("/bidding/resume", h.Admin.ResumeBidding)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "message": "route not found"})
	})

	return r
}
