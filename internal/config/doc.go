// Package config loads runtime configuration for the gophvault CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Environment variables prefixed GOPHVAULT_ (see parseEnv); a .env file
//     in the working directory is loaded first when present.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-db string      path of the secure store database
//	-t int          auto-lock timeout (minutes)
//	-autolock bool  enable auto-lock
//	-l string       log level (debug|info|warn|error)
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "5m" or integer
// nanoseconds. Absent keys keep the previous value:
//
//	{
//	  "database_path": "vault.db",
//	  "auto_lock_enabled": true,
//	  "auto_lock_timeout": "5m",
//	  "lock_on_background": true,
//	  "pin_min_length": 4,
//	  "pin_attempts_per_minute": 5,
//	  "operation_timeout": "10s",
//	  "log_level": "info"
//	}
//
// Call (*Config).Validate after loading; it reports common.ErrConfig for
// values outside the supported ranges.
package config
