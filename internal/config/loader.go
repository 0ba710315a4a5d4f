package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CLAIMKEEPER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CLAIMKEEPER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// Ledger
	setStr(&cfg.Ledger.RPCURL, "CLAIMKEEPER_LEDGER_RPC_URL")
	setStr(&cfg.Ledger.WSURL, "CLAIMKEEPER_LEDGER_WS_URL")
	setInt64(&cfg.Ledger.ChainID, "CLAIMKEEPER_LEDGER_CHAIN_ID")
	setStr(&cfg.Ledger.MarketContract, "CLAIMKEEPER_LEDGER_MARKET_CONTRACT")
	setStr(&cfg.Ledger.RaffleContract, "CLAIMKEEPER_LEDGER_RAFFLE_CONTRACT")

	// Submitter
	setStr(&cfg.Submitter.PrivateKey, "CLAIMKEEPER_SUBMITTER_PRIVATE_KEY")
	setStr(&cfg.Submitter.KeyfilePath, "CLAIMKEEPER_SUBMITTER_KEYFILE_PATH")
	setStr(&cfg.Submitter.KeyPassphrase, "CLAIMKEEPER_SUBMITTER_KEY_PASSPHRASE")
	setStr(&cfg.Submitter.Account, "CLAIMKEEPER_SUBMITTER_ACCOUNT")

	// Claims
	setInt(&cfg.Claims.MaxParallelReads, "CLAIMKEEPER_CLAIMS_MAX_PARALLEL_READS")
	setInt(&cfg.Claims.ReadTimeoutSec, "CLAIMKEEPER_CLAIMS_READ_TIMEOUT_SEC")
	setInt(&cfg.Claims.SubmitTimeoutSec, "CLAIMKEEPER_CLAIMS_SUBMIT_TIMEOUT_SEC")
	setInt(&cfg.Claims.PendingGraceSec, "CLAIMKEEPER_CLAIMS_PENDING_GRACE_SEC")
	setInt(&cfg.Claims.CacheTTLSec, "CLAIMKEEPER_CLAIMS_CACHE_TTL_SEC")

	// Redis
	setStr(&cfg.Redis.Addr, "CLAIMKEEPER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CLAIMKEEPER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CLAIMKEEPER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CLAIMKEEPER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CLAIMKEEPER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CLAIMKEEPER_REDIS_TLS_ENABLED")

	// Postgres
	setStr(&cfg.Postgres.DSN, "CLAIMKEEPER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CLAIMKEEPER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CLAIMKEEPER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CLAIMKEEPER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CLAIMKEEPER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CLAIMKEEPER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CLAIMKEEPER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.MaxConns, "CLAIMKEEPER_POSTGRES_MAX_CONNS")
	setInt(&cfg.Postgres.MinConns, "CLAIMKEEPER_POSTGRES_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CLAIMKEEPER_POSTGRES_RUN_MIGRATIONS")

	// Archive
	setBool(&cfg.Archive.Enabled, "CLAIMKEEPER_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "CLAIMKEEPER_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "CLAIMKEEPER_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "CLAIMKEEPER_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "CLAIMKEEPER_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "CLAIMKEEPER_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "CLAIMKEEPER_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "CLAIMKEEPER_ARCHIVE_FORCE_PATH_STYLE")
	setInt(&cfg.Archive.RetentionDays, "CLAIMKEEPER_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.Archive.IntervalHours, "CLAIMKEEPER_ARCHIVE_INTERVAL_HOURS")

	// Server
	setStr(&cfg.Server.Addr, "CLAIMKEEPER_SERVER_ADDR")
	setStringSlice(&cfg.Server.CORSOrigins, "CLAIMKEEPER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CLAIMKEEPER_SERVER_API_KEY")

	// Notify
	setStr(&cfg.Notify.TelegramToken, "CLAIMKEEPER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CLAIMKEEPER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CLAIMKEEPER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CLAIMKEEPER_NOTIFY_EVENTS")

	// Top-level
	setStr(&cfg.Mode, "CLAIMKEEPER_MODE")
	setStr(&cfg.LogLevel, "CLAIMKEEPER_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
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
