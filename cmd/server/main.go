package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/unique-nft/marketgate/internal/auction"
	"github.com/unique-nft/marketgate/internal/balance"
	"github.com/unique-nft/marketgate/internal/cache"
	"github.com/unique-nft/marketgate/internal/chain"
	"github.com/unique-nft/marketgate/internal/config"
	"github.com/unique-nft/marketgate/internal/handler"
	"github.com/unique-nft/marketgate/internal/marketplace"
	"github.com/unique-nft/marketgate/internal/middleware"
	"github.com/unique-nft/marketgate/internal/pkg/httpx"
	"github.com/unique-nft/marketgate/internal/pkg/logger"
	"github.com/unique-nft/marketgate/internal/repository"
	"github.com/unique-nft/marketgate/internal/service"
	"github.com/unique-nft/marketgate/internal/settings"
	"github.com/unique-nft/marketgate/internal/signer"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	httpClient := httpx.NewClient(cfg.Auction.RequestTimeout())

	// 2. Remote settings resolve in the background; the gateway answers
	// NOT_READY until they arrive.
	store := settings.NewStore(settings.NewHTTPFetcher(cfg.Marketplace.APIURL, httpClient))
	store.ResolveInBackground(ctx)

	// 3. Chains
	dialCtx, cancelDial := context.WithTimeout(ctx, 15*time.Second)
	uniqueChain, err := chain.Dial(dialCtx, chainOptions("unique", cfg.Chains.Unique))
	if err != nil {
		cancelDial()
		log.Fatalf("Failed to dial unique chain: %v", err)
	}
	defer uniqueChain.Close()
	kusamaChain, err := chain.Dial(dialCtx, chainOptions("kusama", cfg.Chains.Kusama))
	cancelDial()
	if err != nil {
		log.Fatalf("Failed to dial kusama chain: %v", err)
	}
	defer kusamaChain.Close()

	// 4. Persistence (Redis > Memory, Postgres > Memory)
	var (
		redisClient *redis.Client
		quoteCache  cache.Cache
		balCache    cache.Cache
		idemStore   middleware.IdempotencyStore
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = repository.NewRedisClient(cfg)
		if err != nil {
			logger.Error("Failed to connect to Redis, falling back to memory", logger.Err(err))
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer redisClient.Close()
		quoteCache = cache.NewRedis(redisClient, cfg.Redis.KeyPrefix)
		balCache = cache.NewRedis(redisClient, cfg.Redis.KeyPrefix)
		idemStore = repository.NewRedisIdempotencyStore(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.IdempotencyTTL())
	} else {
		quoteCache = cache.NewMemory(cfg.Auction.QuoteTTL())
		balCache = cache.NewMemory(cfg.Balance.CacheTTL())
		idemStore = middleware.NewInMemIdempotencyStore(cfg.Redis.IdempotencyTTL())
	}

	var (
		journal service.BidJournal
		mirror  service.TradeMirror
	)
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()
		logger.Info("Connected to PostgreSQL")
		pgJournal := repository.NewPostgresBidJournal(db)
		journal = pgJournal
		go cleanupJournal(ctx, pgJournal)

		gdb, err := repository.NewGormDB(db)
		if err != nil {
			log.Fatalf("Failed to open trade mirror: %v", err)
		}
		tradeStore, err := repository.NewGormTradeStore(gdb)
		if err != nil {
			log.Fatalf("Failed to migrate trade mirror: %v", err)
		}
		mirror = tradeStore
	} else {
		logger.Warn("No database configured, bids are journaled in memory")
	}

	// 5. Core services
	balances := balance.NewService(uniqueChain, kusamaChain, balCache, cfg.Balance.CacheTTL(), cfg.Balance.DisplayDigits)

	endpoint := store.AuctionURL
	if cfg.Auction.APIURL != "" {
		endpoint = auction.StaticEndpoint(cfg.Auction.APIURL)
	}
	auctionClient := auction.NewClient(endpoint,
		auction.WithHTTPClient(httpClient),
		auction.WithRateLimit(cfg.Auction.QPS, cfg.Auction.Burst),
	)

	// Created up front so quoted tokens can subscribe before the socket
	// URL is known.
	feed := auction.NewFeed(cfg.Auction.SocketURL)
	bidOpts := []service.BidServiceOption{
		service.WithBalanceInvalidator(balances),
		service.WithTokenWatcher(feed),
	}
	if cfg.Signer.PrivateKey != "" {
		gatewaySigner, err := signer.NewKeySigner(cfg.Signer.PrivateKey, cfg.Chains.Unique.SS58Prefix)
		if err != nil {
			log.Fatalf("Invalid signer key: %v", err)
		}
		logger.Info("Gateway signer enabled", "address", gatewaySigner.Address())
		bidOpts = append(bidOpts, service.WithGatewaySigner(gatewaySigner))
	}
	bids := service.NewBidService(auctionClient, uniqueChain, journal, store, quoteCache, cfg.Auction.QuoteTTL(), bidOpts...)
	go bids.RunReconciler(ctx, cfg.Auction.ReconcileInterval())

	feed.OnEvent(bids.HandleFeedEvent)
	go runFeed(ctx, feed, cfg.Auction.SocketURL, store)

	trades := service.NewTradeService(
		marketplace.NewClient(cfg.Marketplace.APIURL, cfg.Marketplace.TradesPath, httpClient),
		mirror,
		cfg.Pagination.PerPage,
		cfg.Pagination.MaxPerPage,
	)

	// 6. Router
	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.QPS, cfg.RateLimit.Burst)
	go sweepLimiter(ctx, limiter)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handler.NewRouter(handler.Handlers{
		Settings: handler.NewSettingsHandler(store, bids),
		Balance:  handler.NewBalanceHandler(balances, cfg.Balance.PollInterval()),
		Auction:  handler.NewAuctionHandler(bids),
		Trades:   handler.NewTradeHandler(trades),
		Admin:    handler.NewAdminHandler(bids),
	}, handler.RouterOptions{
		ReadOnly:    cfg.Server.ReadOnly,
		AdminKey:    cfg.Auth.AdminKey,
		Limiter:     limiter,
		Idempotency: idemStore,
		MetricsPath: metricsPath,
	})

	// 7. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("marketgate started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", logger.Err(err))
	}

	logger.Info("Server exiting")
}

func chainOptions(name string, c config.ChainConfig) chain.Options {
	return chain.Options{
		Name:       name,
		URL:        c.RPCURL,
		SS58Prefix: c.SS58Prefix,
		Decimals:   c.Decimals,
		Symbol:     c.Symbol,
	}
}

// runFeed follows the auction socket, taking its URL from the remote
// settings when none is configured.
func runFeed(ctx context.Context, feed *auction.Feed, socketURL string, store *settings.Store) {
	if socketURL == "" {
		s, err := store.Wait(ctx)
		if err != nil {
			return
		}
		socketURL = s.Auction.Socket
		feed.SetURL(socketURL)
	}
	if socketURL == "" {
		logger.Warn("No auction socket configured, quotes expire by TTL only")
		return
	}

	feed.Run(ctx)
}

// recordedRetention is how long recorded bids stay in the journal.
const recordedRetention = 30 * 24 * time.Hour

func cleanupJournal(ctx context.Context, j *repository.PostgresBidJournal) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Cleanup(ctx, recordedRetention); err != nil {
				logger.Warn("bid journal cleanup failed", logger.Err(err))
			}
		}
	}
}

func sweepLimiter(ctx context.Context, l *middleware.IPRateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
