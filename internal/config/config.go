package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

const (
	MinAutoLockTimeout = time.Minute
	MaxAutoLockTimeout = 60 * time.Minute
)

// Config holds runtime settings for the vault CLI.
type Config struct {
	DatabasePath         string
	AutoLockEnabled      bool
	AutoLockTimeout      time.Duration
	LockOnBackground     bool
	PINMinLength         int
	PINAttemptsPerMinute int
	OperationTimeout     time.Duration
	LogLevel             string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "vault.db"
	c.AutoLockEnabled = true
	c.AutoLockTimeout = 5 * time.Minute
	c.LockOnBackground = true
	c.PINMinLength = 4
	c.PINAttemptsPerMinute = 5
	c.OperationTimeout = 10 * time.Second
	c.LogLevel = "info"
}

// Validate reports common.ErrConfig when a value is outside its allowed range.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is empty: %w", common.ErrConfig)
	}
	if c.AutoLockTimeout < MinAutoLockTimeout || c.AutoLockTimeout > MaxAutoLockTimeout {
		return fmt.Errorf("auto-lock timeout %s outside [%s, %s]: %w",
			c.AutoLockTimeout, MinAutoLockTimeout, MaxAutoLockTimeout, common.ErrConfig)
	}
	if c.PINMinLength < 4 {
		return fmt.Errorf("pin min length %d below 4: %w", c.PINMinLength, common.ErrConfig)
	}
	if c.PINAttemptsPerMinute < 1 {
		return fmt.Errorf("pin attempts per minute must be positive: %w", common.ErrConfig)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive: %w", common.ErrConfig)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
