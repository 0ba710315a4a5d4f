package config

import (
	"strings"
	"testing"
)

// validConfig returns a Defaults-based config with the required fields set.
func validConfig() *Config {
	cfg := Defaults()
	cfg.Ledger.MarketContract = "0x1111111111111111111111111111111111111111"
	cfg.Ledger.RaffleContract = "0x2222222222222222222222222222222222222222"
	cfg.Submitter.PrivateKey = "0xabc"
	return &cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "dance" }, "unknown mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"missing rpc url", func(c *Config) { c.Ledger.RPCURL = "" }, "rpc_url"},
		{"missing market contract", func(c *Config) { c.Ledger.MarketContract = "" }, "market_contract"},
		{"missing raffle contract", func(c *Config) { c.Ledger.RaffleContract = "" }, "raffle_contract"},
		{"no key source", func(c *Config) { c.Submitter.PrivateKey = "" }, "private_key or keyfile_path"},
		{"keyfile without passphrase", func(c *Config) {
			c.Submitter.PrivateKey = ""
			c.Submitter.KeyfilePath = "/tmp/key.json"
		}, "key_passphrase"},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis"},
		{"archive without history", func(c *Config) { c.Archive.Enabled = true }, "archive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CLAIMKEEPER_LEDGER_RPC_URL", "https://rpc.example")
	t.Setenv("CLAIMKEEPER_LEDGER_CHAIN_ID", "8453")
	t.Setenv("CLAIMKEEPER_CLAIMS_MAX_PARALLEL_READS", "16")
	t.Setenv("CLAIMKEEPER_REDIS_TLS_ENABLED", "true")
	t.Setenv("CLAIMKEEPER_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CLAIMKEEPER_MODE", "watch")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Ledger.RPCURL != "https://rpc.example" {
		t.Errorf("rpc url = %q", cfg.Ledger.RPCURL)
	}
	if cfg.Ledger.ChainID != 8453 {
		t.Errorf("chain id = %d", cfg.Ledger.ChainID)
	}
	if cfg.Claims.MaxParallelReads != 16 {
		t.Errorf("max parallel reads = %d", cfg.Claims.MaxParallelReads)
	}
	if !cfg.Redis.TLSEnabled {
		t.Error("redis tls override not applied")
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Mode != "watch" {
		t.Errorf("mode = %q", cfg.Mode)
	}
}

func TestHistoryEnabled(t *testing.T) {
	cfg := Defaults()
	if cfg.HistoryEnabled() {
		t.Error("defaults must not enable history")
	}
	cfg.Postgres.Host = "localhost"
	if !cfg.HistoryEnabled() {
		t.Error("host alone should enable history")
	}
	cfg.Postgres.Host = ""
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	if !cfg.HistoryEnabled() {
		t.Error("dsn alone should enable history")
	}
}
