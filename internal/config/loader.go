package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies AURICEX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known AURICEX_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "AURICEX_DATABASE_DSN")
	setStr(&cfg.Database.Host, "AURICEX_DATABASE_HOST")
	setInt(&cfg.Database.Port, "AURICEX_DATABASE_PORT")
	setStr(&cfg.Database.Database, "AURICEX_DATABASE_NAME")
	setStr(&cfg.Database.User, "AURICEX_DATABASE_USER")
	setStr(&cfg.Database.Password, "AURICEX_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "AURICEX_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "AURICEX_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "AURICEX_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "AURICEX_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AURICEX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AURICEX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AURICEX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AURICEX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AURICEX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AURICEX_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "AURICEX_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "AURICEX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AURICEX_S3_REGION")
	setStr(&cfg.S3.Bucket, "AURICEX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AURICEX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AURICEX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AURICEX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AURICEX_S3_FORCE_PATH_STYLE")

	// ── Trading ──
	setFloat64(&cfg.Trading.MinStake, "AURICEX_TRADING_MIN_STAKE")
	setFloat64(&cfg.Trading.MaxStake, "AURICEX_TRADING_MAX_STAKE")
	setFloat64(&cfg.Trading.DefaultPayoutRate, "AURICEX_TRADING_DEFAULT_PAYOUT_RATE")
	setDuration(&cfg.Trading.MaxPriceAge, "AURICEX_TRADING_MAX_PRICE_AGE")
	setDuration(&cfg.Trading.OpenLockTTL, "AURICEX_TRADING_OPEN_LOCK_TTL")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "AURICEX_FEED_ENABLED")
	setStr(&cfg.Feed.WsURL, "AURICEX_FEED_WS_URL")
	setStr(&cfg.Feed.RestURL, "AURICEX_FEED_REST_URL")
	setStringSlice(&cfg.Feed.Assets, "AURICEX_FEED_ASSETS")
	setDuration(&cfg.Feed.PollInterval, "AURICEX_FEED_POLL_INTERVAL")

	// ── Sweep ──
	setDuration(&cfg.Sweep.Interval, "AURICEX_SWEEP_INTERVAL")
	setInt(&cfg.Sweep.BatchSize, "AURICEX_SWEEP_BATCH_SIZE")
	setInt(&cfg.Sweep.ArchiveRetentionDays, "AURICEX_SWEEP_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Sweep.ArchiveInterval, "AURICEX_SWEEP_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AURICEX_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AURICEX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AURICEX_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "AURICEX_SERVER_API_KEY")
	setStr(&cfg.Server.AdminAPIKey, "AURICEX_SERVER_ADMIN_API_KEY")
	setInt(&cfg.Server.RateLimit, "AURICEX_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitBurst, "AURICEX_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AURICEX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AURICEX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AURICEX_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AURICEX_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AURICEX_MODE")
	setStr(&cfg.LogLevel, "AURICEX_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
