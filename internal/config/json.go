package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
	"github.com/dmitrijs2005/gophvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer fields
// distinguish "absent" from a zero value.
type JsonConfig struct {
	DatabasePath         string          `json:"database_path"`
	AutoLockEnabled      *bool           `json:"auto_lock_enabled"`
	AutoLockTimeout      *timex.Duration `json:"auto_lock_timeout"`
	LockOnBackground     *bool           `json:"lock_on_background"`
	PINMinLength         int             `json:"pin_min_length"`
	PINAttemptsPerMinute int             `json:"pin_attempts_per_minute"`
	OperationTimeout     *timex.Duration `json:"operation_timeout"`
	LogLevel             string          `json:"log_level"`
}

// parseJson overlays cfg with values from the file named by -c/-config.
// Without the flag nothing happens. Read or decode errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.AutoLockEnabled != nil {
		cfg.AutoLockEnabled = *jc.AutoLockEnabled
	}
	if jc.AutoLockTimeout != nil {
		cfg.AutoLockTimeout = jc.AutoLockTimeout.Duration
	}
	if jc.LockOnBackground != nil {
		cfg.LockOnBackground = *jc.LockOnBackground
	}
	if jc.PINMinLength != 0 {
		cfg.PINMinLength = jc.PINMinLength
	}
	if jc.PINAttemptsPerMinute != 0 {
		cfg.PINAttemptsPerMinute = jc.PINAttemptsPerMinute
	}
	if jc.OperationTimeout != nil {
		cfg.OperationTimeout = jc.OperationTimeout.Duration
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
}
