package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-db string      secure store database path
//	-t int          auto-lock timeout in minutes
//	-autolock bool  enable auto-lock (use -autolock=false to disable)
//	-l string       log level
//
// os.Args is filtered with flagx.FilterArgs first so flags owned by other
// parsers (-c/-config) do not cause errors.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-db", "-t", "-autolock", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "secure store database path")
	timeout := fs.Int("t", int(cfg.AutoLockTimeout.Minutes()), "auto-lock timeout (in minutes)")
	fs.BoolVar(&cfg.AutoLockEnabled, "autolock", cfg.AutoLockEnabled, "enable auto-lock")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.AutoLockTimeout = time.Duration(*timeout) * time.Minute
}
