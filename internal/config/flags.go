package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/brainbox/internal/flagx"
)

// parseFlags populates Config fields from the short flags listed in the
// package doc. Unknown arguments are filtered out first so the CLI can keep
// its own positional arguments.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-b", "-s", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.StoreBackend, "b", cfg.StoreBackend, "store backend (file, memory, s3)")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "session token signing secret")
	validity := fs.Int("t", int(cfg.SessionValidity.Hours()), "session validity (in hours)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SessionValidity = time.Duration(*validity) * time.Hour
}
