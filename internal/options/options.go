package options

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
)

// AppName names configuration and state directories.
const AppName = "respite"

// Options hold process level settings. Break and monitor settings live in
// the configuration file instead.
type Options struct {
	ConfigPath  string        `envconfig:"CONFIG"`
	StateDir    string        `envconfig:"STATE_DIR"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	LogDev      bool          `envconfig:"LOG_DEV" default:"false"`
	MetricsAddr string        `envconfig:"METRICS_ADDR"`
	Headless    bool          `envconfig:"HEADLESS" default:"false"`
	Heartbeat   time.Duration `envconfig:"HEARTBEAT" default:"1s"`
	NoStats     bool          `envconfig:"NO_STATS" default:"false"`
}

// Load reads options from .env files, RESPITE_* variables and finally args.
// Missing .env files are ignored. pflag.ErrHelp is returned unwrapped.
func Load(args []string, envFiles ...string) (Options, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Options{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var options Options
	if err := envconfig.Process("respite", &options); err != nil {
		return Options{}, fmt.Errorf("read environment: %w", err)
	}

	flags := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	flags.StringVar(&options.ConfigPath, "config", options.ConfigPath, "path to settings.yaml")
	flags.StringVar(&options.StateDir, "state-dir", options.StateDir, "directory for the state file and statistics")
	flags.StringVar(&options.LogLevel, "log-level", options.LogLevel, "log level (debug, info, warn, error)")
	flags.BoolVar(&options.LogDev, "log-dev", options.LogDev, "human readable development logs")
	flags.StringVar(&options.MetricsAddr, "metrics-addr", options.MetricsAddr, "serve Prometheus metrics on this address")
	flags.BoolVar(&options.Headless, "headless", options.Headless, "run without windows, logging break prompts")
	flags.DurationVar(&options.Heartbeat, "heartbeat", options.Heartbeat, "scheduler heartbeat interval")
	flags.BoolVar(&options.NoStats, "no-stats", options.NoStats, "disable the statistics database")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return options, err
		}
		return options, fmt.Errorf("parse flags: %w", err)
	}
	if options.Heartbeat <= 0 {
		return options, fmt.Errorf("heartbeat must be positive, got %s", options.Heartbeat)
	}
	return options, nil
}
