// Package config defines the top-level configuration for the auricex
// trading backend and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by AURICEX_* environment
// variables.
type Config struct {
	Database Postgres       `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Trading  TradingConfig  `toml:"trading"`
	Feed     FeedConfig     `toml:"feed"`
	Sweep    SweepConfig    `toml:"sweep"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// Postgres holds PostgreSQL connection parameters.
type Postgres struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the trade
// archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// TradingConfig holds trade lifecycle parameters.
type TradingConfig struct {
	// MinStake and MaxStake bound the accepted stake per trade; zero
	// MaxStake disables the upper bound.
	MinStake float64 `toml:"min_stake"`
	MaxStake float64 `toml:"max_stake"`

	// DefaultPayoutRate is the payout percentage applied when the open
	// request does not carry one.
	DefaultPayoutRate float64 `toml:"default_payout_rate"`

	// MaxPriceAge is how old a cached feed price may be and still serve as
	// the reference price at open.
	MaxPriceAge duration `toml:"max_price_age"`

	// TimeFrames is the set of accepted trade durations.
	TimeFrames []duration `toml:"time_frames"`

	// OpenLockTTL bounds how long the per-user open lock is held.
	OpenLockTTL duration `toml:"open_lock_ttl"`
}

// FeedConfig holds price feed parameters.
type FeedConfig struct {
	Enabled      bool     `toml:"enabled"`
	WsURL        string   `toml:"ws_url"`
	RestURL      string   `toml:"rest_url"`
	Assets       []string `toml:"assets"`
	PollInterval duration `toml:"poll_interval"`
}

// SweepConfig holds expiry-settlement sweep and archival parameters.
type SweepConfig struct {
	Interval             duration `toml:"interval"`
	BatchSize            int      `toml:"batch_size"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ArchiveInterval      duration `toml:"archive_interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled        bool     `toml:"enabled"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	APIKey         string   `toml:"api_key"`
	AdminAPIKey    string   `toml:"admin_api_key"`
	RateLimit      int      `toml:"rate_limit"`
	RateLimitBurst duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// TimeFrameDurations returns the configured trade durations as
// time.Duration values.
func (t TradingConfig) TimeFrameDurations() []time.Duration {
	out := make([]time.Duration, 0, len(t.TimeFrames))
	for _, tf := range t.TimeFrames {
		out = append(out, tf.Duration)
	}
	return out
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Database: Postgres{
			Host:          "localhost",
			Port:          5432,
			Database:      "auricex",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "auricex-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Trading: TradingConfig{
			MinStake:          1,
			MaxStake:          0,
			DefaultPayoutRate: 80,
			MaxPriceAge:       duration{5 * time.Minute},
			TimeFrames: []duration{
				{time.Minute},
				{5 * time.Minute},
				{15 * time.Minute},
				{time.Hour},
				{24 * time.Hour},
			},
			OpenLockTTL: duration{10 * time.Second},
		},
		Feed: FeedConfig{
			Enabled:      true,
			WsURL:        "wss://stream.binance.com:9443/ws",
			RestURL:      "https://api.binance.com",
			Assets:       []string{"BTCUSDT", "ETHUSDT", "PAXGUSDT"},
			PollInterval: duration{15 * time.Second},
		},
		Sweep: SweepConfig{
			Interval:             duration{10 * time.Second},
			BatchSize:            100,
			ArchiveRetentionDays: 90,
			ArchiveInterval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:        true,
			Port:           8000,
			CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:      30,
			RateLimitBurst: duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_opened", "trade_settled", "trade_rejected", "balance_adjusted", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"sweep":  true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, sweep, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 (only when the archive is enabled)
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Trading
	if c.Trading.MinStake <= 0 {
		errs = append(errs, "trading: min_stake must be > 0")
	}
	if c.Trading.MaxStake != 0 && c.Trading.MaxStake < c.Trading.MinStake {
		errs = append(errs, "trading: max_stake must be >= min_stake (or 0 to disable)")
	}
	if c.Trading.DefaultPayoutRate <= 0 {
		errs = append(errs, "trading: default_payout_rate must be > 0")
	}
	if len(c.Trading.TimeFrames) == 0 {
		errs = append(errs, "trading: at least one time frame is required")
	}
	for _, tf := range c.Trading.TimeFrames {
		if tf.Duration <= 0 {
			errs = append(errs, fmt.Sprintf("trading: time frame %q must be positive", tf.Duration))
		}
	}
	if c.Trading.MaxPriceAge.Duration <= 0 {
		errs = append(errs, "trading: max_price_age must be positive")
	}
	if c.Trading.OpenLockTTL.Duration <= 0 {
		errs = append(errs, "trading: open_lock_ttl must be positive")
	}

	// Feed
	if c.Feed.Enabled {
		if c.Feed.WsURL == "" && c.Feed.RestURL == "" {
			errs = append(errs, "feed: ws_url or rest_url must be set when enabled")
		}
		if len(c.Feed.Assets) == 0 {
			errs = append(errs, "feed: at least one asset is required when enabled")
		}
	}

	// Sweep
	if c.Sweep.Interval.Duration <= 0 {
		errs = append(errs, "sweep: interval must be positive")
	}
	if c.Sweep.BatchSize < 1 {
		errs = append(errs, "sweep: batch_size must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0 (0 disables)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
