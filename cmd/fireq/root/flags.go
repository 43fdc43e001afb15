package root

import (
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"fireq/internal/config"
)

// DefaultConfigPath is read when --config is not given
const DefaultConfigPath = "fireq.yaml"

// configFlags are shared by every command that needs the configuration
type configFlags struct {
	path  string
	debug bool
}

// AddFlags registers the config flags on flagSet
func (f *configFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&f.path, "config", "c", DefaultConfigPath, "config file (.yaml, .yml, .json or .jsonc)")
	flagSet.BoolVar(&f.debug, "debug", false, "log at debug level")
}

// load reads and validates the config file. --debug overrides the file
func (f *configFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.path)
	if err != nil {
		return nil, err
	}
	if f.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
