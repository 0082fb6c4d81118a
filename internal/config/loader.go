package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "circulation.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CIRCULATION_PORT")
	setString(&cfg.Server.CORSOrigin, "CIRCULATION_CORS_ORIGIN")
	setDuration(&cfg.Server.IdempotencyTTL, "CIRCULATION_IDEMPOTENCY_TTL")
	setBool(&cfg.Server.EnforcePermissions, "CIRCULATION_ENFORCE_PERMISSIONS")
	setFloat64(&cfg.Server.RateLimit, "CIRCULATION_RATE_LIMIT")
	setInt(&cfg.Server.RateBurst, "CIRCULATION_RATE_BURST")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CIRCULATION_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CIRCULATION_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CIRCULATION_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CIRCULATION_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CIRCULATION_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "CIRCULATION_NATS_STREAM")
	setString(&cfg.Logging.Level, "CIRCULATION_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CIRCULATION_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CIRCULATION_LOG_ASYNC")
	setInt(&cfg.Logging.AsyncBuffer, "CIRCULATION_LOG_ASYNC_BUFFER")
	setInt(&cfg.Breaker.MaxFailures, "CIRCULATION_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CIRCULATION_BREAKER_TIMEOUT")
	setInt(&cfg.Lookup.MaxConcurrent, "CIRCULATION_LOOKUP_MAX_CONCURRENT")
	setDuration(&cfg.Lookup.Timeout, "CIRCULATION_LOOKUP_TIMEOUT")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "CIRCULATION_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "CIRCULATION_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "CIRCULATION_CACHE_L2_TTL")
	setDuration(&cfg.Cache.PolicyTTL, "CIRCULATION_CACHE_POLICY_TTL")

	// OpenTelemetry
	setBool(&cfg.OTel.Enabled, "CIRCULATION_OTEL_ENABLED")
	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTel.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTel.Insecure, "CIRCULATION_OTEL_INSECURE")
	setFloat64(&cfg.OTel.SampleRate, "CIRCULATION_OTEL_SAMPLE_RATE")

	// Circulation rules
	setBool(&cfg.Circulation.TitleLevelRequestsEnabled, "CIRCULATION_TLR_ENABLED")
	setString(&cfg.Circulation.PolicyDir, "CIRCULATION_POLICY_DIR")
	setString(&cfg.Circulation.DefaultLoanPolicy, "CIRCULATION_DEFAULT_LOAN_POLICY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.RateLimit < 0 {
		return errors.New("server.rate_limit must be >= 0")
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst < 1 {
		return errors.New("server.rate_burst must be >= 1 when rate limiting is on")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Lookup.MaxConcurrent < 1 {
		return errors.New("lookup.max_concurrent must be >= 1")
	}
	if cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
	}
	if cfg.OTel.SampleRate < 0 || cfg.OTel.SampleRate > 1 {
		return errors.New("otel.sample_rate must be within [0, 1]")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
