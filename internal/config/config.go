// Package config defines the top-level configuration for claimkeeper and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by CLAIMKEEPER_* environment
// variables.
type Config struct {
	Ledger    LedgerConfig    `toml:"ledger"`
	Submitter SubmitterConfig `toml:"submitter"`
	Claims    ClaimsConfig    `toml:"claims"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// LedgerConfig holds the EVM endpoints and contract addresses.
type LedgerConfig struct {
	RPCURL         string `toml:"rpc_url"`
	WSURL          string `toml:"ws_url"`
	ChainID        int64  `toml:"chain_id"`
	MarketContract string `toml:"market_contract"`
	RaffleContract string `toml:"raffle_contract"`
}

// SubmitterConfig holds the key material and the account the session
// operates for. Account may be left empty, in which case it is derived from
// the signing key.
type SubmitterConfig struct {
	PrivateKey    string `toml:"private_key"`
	KeyfilePath   string `toml:"keyfile_path"`
	KeyPassphrase string `toml:"key_passphrase"`
	Account       string `toml:"account"`
}

// ClaimsConfig tunes discovery and submission behavior.
type ClaimsConfig struct {
	MaxParallelReads int `toml:"max_parallel_reads"`
	ReadTimeoutSec   int `toml:"read_timeout_sec"`
	SubmitTimeoutSec int `toml:"submit_timeout_sec"`
	PendingGraceSec  int `toml:"pending_grace_sec"`
	CacheTTLSec      int `toml:"cache_ttl_sec"`
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

// PostgresConfig holds PostgreSQL connection parameters for the settlement
// history store. Leaving both DSN and Host empty disables history.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	MaxConns      int    `toml:"max_conns"`
	MinConns      int    `toml:"min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ArchiveConfig holds S3-compatible object storage parameters for cold
// settlement history archival.
type ArchiveConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
	IntervalHours  int    `toml:"interval_hours"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Addr        string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			RPCURL:  "http://localhost:8545",
			ChainID: 1,
		},
		Claims: ClaimsConfig{
			MaxParallelReads: 8,
			ReadTimeoutSec:   10,
			SubmitTimeoutSec: 30,
			PendingGraceSec:  90,
			CacheTTLSec:      120,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Port:          5432,
			SSLMode:       "disable",
			MaxConns:      10,
			MinConns:      2,
			RunMigrations: true,
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "claimkeeper-archive",
			ForcePathStyle: true,
			RetentionDays:  90,
			IntervalHours:  24,
		},
		Server: ServerConfig{
			Addr:        ":8000",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"claim_settled", "claim_failed"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve": true,
	"watch": true,
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
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, watch)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Ledger
	if c.Ledger.RPCURL == "" {
		errs = append(errs, "ledger: rpc_url must not be empty")
	}
	if c.Ledger.ChainID <= 0 {
		errs = append(errs, "ledger: chain_id must be positive")
	}
	if c.Ledger.MarketContract == "" {
		errs = append(errs, "ledger: market_contract must not be empty")
	}
	if c.Ledger.RaffleContract == "" {
		errs = append(errs, "ledger: raffle_contract must not be empty")
	}

	// Submitter needs a key source so claims can actually be submitted.
	if c.Submitter.PrivateKey == "" && c.Submitter.KeyfilePath == "" {
		errs = append(errs, "submitter: either private_key or keyfile_path must be set")
	}
	if c.Submitter.KeyfilePath != "" && c.Submitter.KeyPassphrase == "" {
		errs = append(errs, "submitter: key_passphrase is required when keyfile_path is set")
	}

	// Claims
	if c.Claims.MaxParallelReads < 1 {
		errs = append(errs, "claims: max_parallel_reads must be >= 1")
	}
	if c.Claims.ReadTimeoutSec < 1 {
		errs = append(errs, "claims: read_timeout_sec must be >= 1")
	}
	if c.Claims.SubmitTimeoutSec < 1 {
		errs = append(errs, "claims: submit_timeout_sec must be >= 1")
	}
	if c.Claims.PendingGraceSec < 1 {
		errs = append(errs, "claims: pending_grace_sec must be >= 1")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres, only when configured at all.
	if c.HistoryEnabled() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.MaxConns < 1 {
			errs = append(errs, "postgres: max_conns must be >= 1")
		}
		if c.Postgres.MinConns < 0 {
			errs = append(errs, "postgres: min_conns must be >= 0")
		}
		if c.Postgres.MinConns > c.Postgres.MaxConns {
			errs = append(errs, "postgres: min_conns must not exceed max_conns")
		}
	}

	// Archive
	if c.Archive.Enabled {
		if !c.HistoryEnabled() {
			errs = append(errs, "archive: requires postgres history to be configured")
		}
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.IntervalHours < 1 {
			errs = append(errs, "archive: interval_hours must be >= 1")
		}
	}

	// Server
	if strings.ToLower(c.Mode) == "serve" && c.Server.Addr == "" {
		errs = append(errs, "server: addr must not be empty in serve mode")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// HistoryEnabled reports whether a settlement history store is configured.
func (c *Config) HistoryEnabled() bool {
	return strings.TrimSpace(c.Postgres.DSN) != "" || c.Postgres.Host != ""
}
