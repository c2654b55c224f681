// Package config loads server configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr        string `yaml:"addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`
	Storage struct {
		Backend       string `yaml:"backend"` // "memory" or "db"
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickhouseDSN string `yaml:"clickhouse_dsn"`
	} `yaml:"storage"`
	Marker struct {
		FeedURL string `yaml:"feed_url"` // empty disables the feed
	} `yaml:"marker"`
	Schedule struct {
		CheckpointCron string `yaml:"checkpoint_cron"`
		FlushCron      string `yaml:"flush_cron"`
	} `yaml:"schedule"`
	Escrow struct {
		Vault     string   `yaml:"vault"`     // vault address holding locked tokens
		Whitelist []string `yaml:"whitelist"` // contract callers allowed to lock
	} `yaml:"escrow"`
	Token struct {
		// Mints seed the token ledger at boot. Each seeded account also
		// approves the vault for the minted amount, so it can deposit
		// without a separate approve call.
		Mints []Mint `yaml:"mints"`
	} `yaml:"token"`
}

// Mint is one seeded token balance.
type Mint struct {
	Account string `yaml:"account"`
	Amount  uint64 `yaml:"amount"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("VEL_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("VEL_METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v := os.Getenv("VEL_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("VEL_MARKER_FEED_URL"); v != "" {
		cfg.Marker.FeedURL = v
	}
	if v := os.Getenv("VEL_CHECKPOINT_CRON"); v != "" {
		cfg.Schedule.CheckpointCron = v
	}
	if v := os.Getenv("VEL_VAULT"); v != "" {
		cfg.Escrow.Vault = v
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MetricsAddr == "" {
		cfg.Server.MetricsAddr = ":9090"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Schedule.CheckpointCron == "" {
		cfg.Schedule.CheckpointCron = "@hourly"
	}
	if cfg.Schedule.FlushCron == "" {
		cfg.Schedule.FlushCron = "@every 1m"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "db":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the db backend")
		}
		if c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("storage.clickhouse_dsn is required for the db backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", "memory", "db", c.Storage.Backend)
	}
	for i, m := range c.Token.Mints {
		if m.Account == "" || m.Amount == 0 {
			return fmt.Errorf("token.mints[%d]: account and a non-zero amount are required", i)
		}
	}
	return nil
}
