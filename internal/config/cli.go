package config

import (
	"flag"
	"fmt"
	"io"
)

// CLIFlags holds command-line overrides. A nil field means "not set".
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	LogLevel   *string
	DSN        *string
	NatsURL    *string
	TLREnabled *bool
}

// ParseFlags parses command-line arguments into CLIFlags.
// Only flags that appear in args are populated.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("circulation", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configPath, port, logLevel, dsn, natsURL string
		tlr                                      bool
	)
	fs.StringVar(&configPath, "config", "", "path to YAML config file")
	fs.StringVar(&configPath, "c", "", "path to YAML config file (shorthand)")
	fs.StringVar(&port, "port", "", "HTTP listen port")
	fs.StringVar(&port, "p", "", "HTTP listen port (shorthand)")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&dsn, "dsn", "", "PostgreSQL DSN")
	fs.StringVar(&natsURL, "nats-url", "", "NATS server URL")
	fs.BoolVar(&tlr, "tlr", false, "enable title-level requests")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	var flags CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			flags.ConfigPath = &configPath
		case "port", "p":
			flags.Port = &port
		case "log-level":
			flags.LogLevel = &logLevel
		case "dsn":
			flags.DSN = &dsn
		case "nats-url":
			flags.NatsURL = &natsURL
		case "tlr":
			flags.TLREnabled = &tlr
		}
	})
	return flags, nil
}

// LoadWithCLI loads configuration with the full hierarchy:
// defaults < YAML < ENV < CLI flags. It returns the YAML path that was used.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, "", fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, "", fmt.Errorf("config validate: %w", err)
	}
	return &cfg, path, nil
}

func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.DSN != nil {
		cfg.Postgres.DSN = *flags.DSN
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
	if flags.TLREnabled != nil {
		cfg.Circulation.TitleLevelRequestsEnabled = *flags.TLREnabled
	}
}
