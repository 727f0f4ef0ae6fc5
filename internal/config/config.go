package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Auction     AuctionConfig     `mapstructure:"auction"`
	Chains      ChainsConfig      `mapstructure:"chains"`
	Balance     BalanceConfig     `mapstructure:"balance"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Signer      SignerConfig      `mapstructure:"signer"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Pagination  PaginationConfig  `mapstructure:"pagination"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	ReadOnly bool   `mapstructure:"read_only"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	AdminKey string `mapstructure:"admin_key"`
}

type MarketplaceConfig struct {
	// Base URL of the marketplace REST API (settings, trades).
	APIURL     string `mapstructure:"api_url"`
	TradesPath string `mapstructure:"trades_path"`
}

type AuctionConfig struct {
	// Empty values are taken from the remote settings once resolved.
	APIURL           string  `mapstructure:"api_url"`
	SocketURL        string  `mapstructure:"socket_url"`
	RequestTimeoutMs int     `mapstructure:"request_timeout_ms"`
	QPS              float64 `mapstructure:"qps"`
	Burst            int     `mapstructure:"burst"`
	QuoteTTLSeconds  int     `mapstructure:"quote_ttl_seconds"`
	ReconcileSeconds int     `mapstructure:"reconcile_seconds"`
}

type ChainsConfig struct {
	Unique ChainConfig `mapstructure:"unique"`
	Kusama ChainConfig `mapstructure:"kusama"`
}

type ChainConfig struct {
	RPCURL     string `mapstructure:"rpc_url"`
	SS58Prefix uint16 `mapstructure:"ss58_prefix"`
	Decimals   int32  `mapstructure:"decimals"`
	Symbol     string `mapstructure:"symbol"`
}

type BalanceConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	CacheTTLSeconds     int `mapstructure:"cache_ttl_seconds"`
	DisplayDigits       int `mapstructure:"display_digits"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
	KeyPrefix             string `mapstructure:"key_prefix"`
}

type SignerConfig struct {
	// Optional secp256k1 key (hex). When set the gateway can sign
	// withdraw / cancel requests for its own account.
	PrivateKey string `mapstructure:"private_key"`
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type PaginationConfig struct {
	PerPage    int `mapstructure:"per_page"`
	MaxPerPage int `mapstructure:"max_per_page"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func (c AuctionConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c AuctionConfig) QuoteTTL() time.Duration {
	return time.Duration(c.QuoteTTLSeconds) * time.Second
}

func (c AuctionConfig) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileSeconds) * time.Second
}

func (c BalanceConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c BalanceConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c RedisConfig) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLSeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_only", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("marketplace.api_url", "https://api.unqnft.io")
	v.SetDefault("marketplace.trades_path", "/api/trades")
	v.SetDefault("auth.admin_key", "")
	v.SetDefault("auction.api_url", "")
	v.SetDefault("auction.socket_url", "")
	v.SetDefault("auction.request_timeout_ms", 10000)
	v.SetDefault("auction.qps", 5)
	v.SetDefault("auction.burst", 10)
	v.SetDefault("auction.quote_ttl_seconds", 10)
	v.SetDefault("auction.reconcile_seconds", 60)
	v.SetDefault("chains.unique.rpc_url", "wss://ws.unique.network")
	v.SetDefault("chains.unique.ss58_prefix", 7391)
	v.SetDefault("chains.unique.decimals", 18)
	v.SetDefault("chains.unique.symbol", "UNQ")
	v.SetDefault("chains.kusama.rpc_url", "wss://kusama-rpc.polkadot.io")
	v.SetDefault("chains.kusama.ss58_prefix", 2)
	v.SetDefault("chains.kusama.decimals", 12)
	v.SetDefault("chains.kusama.symbol", "KSM")
	v.SetDefault("balance.poll_interval_seconds", 12)
	v.SetDefault("balance.cache_ttl_seconds", 6)
	v.SetDefault("balance.display_digits", 4)
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.idempotency_ttl_seconds", 86400)
	v.SetDefault("redis.key_prefix", "marketgate:")
	v.SetDefault("signer.private_key", "")
	v.SetDefault("rate_limit.qps", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("pagination.per_page", 10)
	v.SetDefault("pagination.max_per_page", 100)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load resolves the configuration once. The returned value is never
// mutated afterwards; remote marketplace settings live in settings.Store.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// e.g. MARKETGATE_AUCTION_API_URL
	v.SetEnvPrefix("marketgate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
