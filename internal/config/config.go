package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProviderConfig holds the transport settings for one network data source.
type ProviderConfig struct {
	Enabled            bool   `yaml:"enabled"`
	BaseURL            string `yaml:"base_url"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	CacheTTLSec        int    `yaml:"cache_ttl_sec"`
}

// Config holds all application configuration.
type Config struct {
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Backfill struct {
		StartYear  int `yaml:"start_year"`
		MinGapDays int `yaml:"min_gap_days"`
	} `yaml:"backfill"`
	Schedule struct {
		RefreshCron  string `yaml:"refresh_cron"`
		BackfillCron string `yaml:"backfill_cron"`
	} `yaml:"schedule"`
	HTTP struct {
		TimeoutSec int `yaml:"timeout_sec"`
		MaxRetries int `yaml:"max_retries"`
	} `yaml:"http"`
	Providers struct {
		CoinGecko   ProviderConfig `yaml:"coingecko"`
		Yahoo       ProviderConfig `yaml:"yahoo"`
		SeedCSVPath string         `yaml:"seed_csv_path"`
	} `yaml:"providers"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Providers.CoinGecko.Enabled = true
	cfg.Providers.Yahoo.Enabled = true

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
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("BACKFILL_START_YEAR"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Backfill.StartYear)
	}
	if v := os.Getenv("COINGECKO_BASE_URL"); v != "" {
		cfg.Providers.CoinGecko.BaseURL = v
	}
	if v := os.Getenv("COINGECKO_MAX_RPM"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Providers.CoinGecko.RateLimitPerMinute)
	}
	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		cfg.Providers.Yahoo.BaseURL = v
	}
	if v := os.Getenv("SEED_CSV_PATH"); v != "" {
		cfg.Providers.SeedCSVPath = v
	}
	if v := os.Getenv("CRON_REFRESH"); v != "" {
		cfg.Schedule.RefreshCron = v
	}
	if v := os.Getenv("CRON_BACKFILL"); v != "" {
		cfg.Schedule.BackfillCron = v
	}

	// Defaults
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/bitcoin.db"
	}
	if cfg.Backfill.StartYear == 0 {
		cfg.Backfill.StartYear = 2013
	}
	if cfg.Backfill.MinGapDays == 0 {
		cfg.Backfill.MinGapDays = 3
	}
	if cfg.Schedule.RefreshCron == "" {
		cfg.Schedule.RefreshCron = "0 10 * * * *" // hourly at :10
	}
	if cfg.Schedule.BackfillCron == "" {
		cfg.Schedule.BackfillCron = "0 30 2 * * *" // nightly at 02:30
	}
	if cfg.HTTP.TimeoutSec == 0 {
		cfg.HTTP.TimeoutSec = 30
	}
	if cfg.HTTP.MaxRetries == 0 {
		cfg.HTTP.MaxRetries = 3
	}
	applyProviderDefaults(&cfg.Providers.CoinGecko, "https://api.coingecko.com/api/v3", 30, 300)
	applyProviderDefaults(&cfg.Providers.Yahoo, "https://query1.finance.yahoo.com", 60, 120)
	if cfg.Providers.SeedCSVPath == "" {
		cfg.Providers.SeedCSVPath = "data/seed_prices.csv"
	}

	return cfg, nil
}

func applyProviderDefaults(p *ProviderConfig, baseURL string, rpm, cacheTTLSec int) {
	if p.BaseURL == "" {
		p.BaseURL = baseURL
	}
	if p.RateLimitPerMinute == 0 {
		p.RateLimitPerMinute = rpm
	}
	if p.CacheTTLSec == 0 {
		p.CacheTTLSec = cacheTTLSec
	}
}

// Validate checks that all required fields are sensible.
func (c *Config) Validate() error {
	if c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required")
	}
	if c.Backfill.StartYear < 2013 {
		return fmt.Errorf("backfill.start_year must be >= 2013 (no seed data before that)")
	}
	if c.Backfill.MinGapDays < 1 {
		return fmt.Errorf("backfill.min_gap_days must be >= 1")
	}
	if c.HTTP.TimeoutSec <= 0 {
		return fmt.Errorf("http.timeout_sec must be positive")
	}
	if c.Providers.CoinGecko.Enabled && c.Providers.CoinGecko.RateLimitPerMinute < 1 {
		return fmt.Errorf("providers.coingecko.rate_limit_per_minute must be >= 1")
	}
	if c.Providers.Yahoo.Enabled && c.Providers.Yahoo.RateLimitPerMinute < 1 {
		return fmt.Errorf("providers.yahoo.rate_limit_per_minute must be >= 1")
	}
	return nil
}
