package config

import (
	"time"

	"github.com/spf13/viper"
)

// LedgerConfig tunes the ledger's retry loop and history queries.
type LedgerConfig struct {
	// MaxRetries is how many extra attempts a mutating operation gets after a
	// write conflict. Zero means a single attempt.
	MaxRetries          int
	RetryBackoff        time.Duration
	DefaultHistoryLimit int
	MaxHistoryLimit     int
}

// DefaultLedgerConfig returns the values used when nothing is configured.
func DefaultLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		MaxRetries:          3,
		RetryBackoff:        20 * time.Millisecond,
		DefaultHistoryLimit: 50,
		MaxHistoryLimit:     500,
	}
}

func LoadLedgerConfig() *LedgerConfig {
	def := DefaultLedgerConfig()
	viper.SetDefault("ledger.max_retries", def.MaxRetries)
	viper.SetDefault("ledger.retry_backoff", def.RetryBackoff)
	viper.SetDefault("ledger.default_history_limit", def.DefaultHistoryLimit)
	viper.SetDefault("ledger.max_history_limit", def.MaxHistoryLimit)

	cfg := &LedgerConfig{
		MaxRetries:          viper.GetInt("ledger.max_retries"),
		RetryBackoff:        viper.GetDuration("ledger.retry_backoff"),
		DefaultHistoryLimit: viper.GetInt("ledger.default_history_limit"),
		MaxHistoryLimit:     viper.GetInt("ledger.max_history_limit"),
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxHistoryLimit <= 0 {
		cfg.MaxHistoryLimit = def.MaxHistoryLimit
	}
	if cfg.DefaultHistoryLimit <= 0 || cfg.DefaultHistoryLimit > cfg.MaxHistoryLimit {
		cfg.DefaultHistoryLimit = cfg.MaxHistoryLimit
	}
	return cfg
}

// ClampHistoryLimit maps a requested page size onto [1, MaxHistoryLimit],
// substituting the default for non-positive requests.
func (c *LedgerConfig) ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return c.DefaultHistoryLimit
	}
	if limit > c.MaxHistoryLimit {
		return c.MaxHistoryLimit
	}
	return limit
}
