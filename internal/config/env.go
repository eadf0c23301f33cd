package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "GOPHVAULT_"

// parseEnv overlays cfg with GOPHVAULT_* variables. A .env file in the working
// directory is loaded first if it exists; variables already set in the
// process environment are not overridden by it. Malformed values panic.
//
//	GOPHVAULT_DB                 database path
//	GOPHVAULT_AUTOLOCK_ENABLED   bool
//	GOPHVAULT_AUTOLOCK_TIMEOUT   duration ("5m")
//	GOPHVAULT_LOCK_ON_BACKGROUND bool
//	GOPHVAULT_LOG_LEVEL          debug|info|warn|error
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v, ok := lookup("DB"); ok {
		cfg.DatabasePath = v
	}
	if v, ok := lookup("AUTOLOCK_ENABLED"); ok {
		cfg.AutoLockEnabled = mustBool(v)
	}
	if v, ok := lookup("AUTOLOCK_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		cfg.AutoLockTimeout = d
	}
	if v, ok := lookup("LOCK_ON_BACKGROUND"); ok {
		cfg.LockOnBackground = mustBool(v)
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func mustBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(err)
	}
	return b
}
