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
const DefaultConfigFile = "goalpost.yaml"

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
	setString(&cfg.Server.Port, "GOALPOST_PORT")
	setString(&cfg.Server.CORSOrigin, "GOALPOST_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "GOALPOST_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "GOALPOST_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "GOALPOST_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "GOALPOST_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "GOALPOST_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.LinkHub.EndpointURL, "LINKHUB_ENDPOINT_URL")
	setString(&cfg.LinkHub.APIKeyPrefix, "LINKHUB_API_KEY_PREFIX")
	setString(&cfg.LinkHub.SigningSecret, "LINKHUB_SIGNING_SECRET")
	setString(&cfg.LinkHub.ProtocolVersion, "LINKHUB_PROTOCOL_VERSION")
	setInt(&cfg.LinkHub.BatchSize, "LINKHUB_BATCH_SIZE")
	setDuration(&cfg.LinkHub.Interval, "LINKHUB_SYNC_INTERVAL")
	setDuration(&cfg.LinkHub.Timeout, "LINKHUB_TIMEOUT")
	setString(&cfg.Logging.Level, "GOALPOST_LOG_LEVEL")
	setString(&cfg.Logging.Service, "GOALPOST_LOG_SERVICE")
	setBool(&cfg.Auth.Enabled, "GOALPOST_AUTH_ENABLED")
	setInt64(&cfg.Cache.MaxSizeMB, "GOALPOST_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "GOALPOST_CACHE_TTL")
	setString(&cfg.Sync.SourceApp, "GOALPOST_SOURCE_APP")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.LinkHub.BatchSize < 1 {
		return errors.New("linkhub.batch_size must be >= 1")
	}
	if cfg.Sync.SourceApp == "" {
		return errors.New("sync.source_app is required")
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
