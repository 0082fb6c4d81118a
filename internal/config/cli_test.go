package config

import "testing"

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, f CLIFlags)
	}{
		{"long names", []string{"--port", "9090", "--log-level", "debug", "--tlr"}, func(t *testing.T, f CLIFlags) {
			if f.Port == nil || *f.Port != "9090" {
				t.Errorf("port = %v", f.Port)
			}
			if f.LogLevel == nil || *f.LogLevel != "debug" {
				t.Errorf("log level = %v", f.LogLevel)
			}
			if f.TLREnabled == nil || !*f.TLREnabled {
				t.Errorf("tlr = %v", f.TLREnabled)
			}
			if f.DSN != nil || f.NatsURL != nil || f.ConfigPath != nil {
				t.Error("flags not on the command line must stay nil")
			}
		}},
		{"shorthand", []string{"-p", "7070", "-c", "custom.yaml"}, func(t *testing.T, f CLIFlags) {
			if f.Port == nil || *f.Port != "7070" {
				t.Errorf("port = %v", f.Port)
			}
			if f.ConfigPath == nil || *f.ConfigPath != "custom.yaml" {
				t.Errorf("config = %v", f.ConfigPath)
			}
		}},
		{"empty", nil, func(t *testing.T, f CLIFlags) {
			if f != (CLIFlags{}) {
				t.Errorf("flags = %+v", f)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFlags(tt.args)
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, f)
		})
	}

	if _, err := ParseFlags([]string{"--max-loans"}); err == nil {
		t.Error("expected an error for an unknown flag")
	}
}

func TestApplyCLI(t *testing.T) {
	cfg := Defaults()
	port, level, dsn, url := "3333", "error", "postgres://cli@localhost/circ", "nats://cli:4222"
	applyCLI(&cfg, CLIFlags{Port: &port, LogLevel: &level, DSN: &dsn, NatsURL: &url})

	if cfg.Server.Port != port || cfg.Logging.Level != level || cfg.Postgres.DSN != dsn || cfg.NATS.URL != url {
		t.Errorf("CLI values not applied: %+v", cfg)
	}

	untouched := Defaults()
	applyCLI(&untouched, CLIFlags{})
	if untouched.Server.Port != "8080" || untouched.Logging.Level != "info" {
		t.Errorf("empty flags changed the config: %+v", untouched)
	}
}

func TestLoadWithCLIPrecedence(t *testing.T) {
	path := writeYAML(t, "server:\n  port: \"5555\"\nlogging:\n  level: debug\n")
	t.Setenv("CIRCULATION_PORT", "7070")

	flags, err := ParseFlags([]string{"--config", path, "--log-level", "error"})
	if err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := LoadWithCLI(flags)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	// ENV beats YAML, CLI beats both.
	if cfg.Server.Port != "7070" {
		t.Errorf("port = %s, want the ENV value", cfg.Server.Port)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("log level = %s, want the CLI value", cfg.Logging.Level)
	}
}
