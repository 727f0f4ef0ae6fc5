package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/unique-nft/marketgate/internal/auction"
	"github.com/unique-nft/marketgate/internal/chain"
	"github.com/unique-nft/marketgate/internal/config"
	"github.com/unique-nft/marketgate/internal/pkg/httpx"
	"github.com/unique-nft/marketgate/internal/pkg/logger"
	"github.com/unique-nft/marketgate/internal/settings"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

var (
	cliName  = "marketctl"
	cfg      *config.Config
	validate = validator.New()

	flagMarketplace string
	flagAuction     string
	flagLogLevel    string
	flagTimeout     time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMarketplace, "marketplace", "", "Marketplace API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagAuction, "auction", "", "Auction API base URL (overrides config and remote settings)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "Overall command timeout")

	rootCmd.AddCommand(
		settingsCmd,
		balanceCmd,
		quoteCmd,
		bidCmd,
		withdrawCmd,
		cancelCmd,
		tradesCmd,
		pagesCmd,
	)
}

var rootCmd = &cobra.Command{
	Use:   cliName,
	Short: "marketctl talks to the Unique marketplace from a terminal",
	Long: `marketctl talks to the Unique marketplace from a terminal.

It reads the same configuration as the gateway (config.yaml, .env and
MARKETGATE_* variables) and calls the marketplace, auction and chain
endpoints directly.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		logger.Init(flagLogLevel, "text")

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if flagMarketplace != "" {
			cfg.Marketplace.APIURL = flagMarketplace
		}
		if flagAuction != "" {
			cfg.Auction.APIURL = flagAuction
		}
		return nil
	},
}

// commandContext is cancelled on interrupt or after --timeout.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, flagTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func settingsStore() *settings.Store {
	return settings.NewStore(settings.NewHTTPFetcher(cfg.Marketplace.APIURL, httpx.NewClient(cfg.Auction.RequestTimeout())))
}

// auctionClient resolves the auction URL from remote settings unless one
// was configured.
func auctionClient(store *settings.Store) *auction.Client {
	endpoint := auction.StaticEndpoint(cfg.Auction.APIURL)
	if cfg.Auction.APIURL == "" {
		endpoint = func(ctx context.Context) (string, error) {
			if _, err := store.Resolve(ctx); err != nil {
				return "", err
			}
			return store.AuctionURL(ctx)
		}
	}
	return auction.NewClient(endpoint,
		auction.WithHTTPClient(httpx.NewClient(cfg.Auction.RequestTimeout())),
		auction.WithRateLimit(cfg.Auction.QPS, cfg.Auction.Burst),
	)
}

func dialChain(ctx context.Context, name string, c config.ChainConfig) (*chain.Client, error) {
	return chain.Dial(ctx, chain.Options{
		Name:       name,
		URL:        c.RPCURL,
		SS58Prefix: c.SS58Prefix,
		Decimals:   c.Decimals,
		Symbol:     c.Symbol,
	})
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
