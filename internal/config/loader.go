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
const DefaultConfigFile = "agentbridge.yaml"

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
	setString(&cfg.Server.Port, "AGENTBRIDGE_PORT")
	setString(&cfg.Server.CORSOrigin, "AGENTBRIDGE_CORS_ORIGIN")
	setString(&cfg.Sessions.Backend, "AGENTBRIDGE_SESSION_BACKEND")
	setString(&cfg.Sessions.Dir, "AGENTBRIDGE_SESSION_DIR")
	setString(&cfg.Sessions.DefaultWorkDir, "AGENTBRIDGE_DEFAULT_WORK_DIR")
	setInt(&cfg.Sessions.EventBuffer, "AGENTBRIDGE_EVENT_BUFFER")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "AGENTBRIDGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "AGENTBRIDGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "AGENTBRIDGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "AGENTBRIDGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "AGENTBRIDGE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "AGENTBRIDGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "AGENTBRIDGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "AGENTBRIDGE_LOG_ASYNC")
	setInt(&cfg.Logging.AsyncBuffer, "AGENTBRIDGE_LOG_ASYNC_BUFFER")
	setString(&cfg.Policy.DefaultMode, "AGENTBRIDGE_POLICY_MODE")
	setString(&cfg.Policy.Threshold, "AGENTBRIDGE_POLICY_THRESHOLD")
	setDuration(&cfg.Permission.Timeout, "AGENTBRIDGE_PERMISSION_TIMEOUT")
	setString(&cfg.Permission.RejectReason, "AGENTBRIDGE_PERMISSION_REJECT_REASON")
	setInt64(&cfg.Cache.RiskMaxSizeMB, "AGENTBRIDGE_CACHE_RISK_SIZE_MB")
	setDuration(&cfg.Cache.RiskTTL, "AGENTBRIDGE_CACHE_RISK_TTL")
	setBool(&cfg.MCP.CheckOnCreate, "AGENTBRIDGE_MCP_CHECK_ON_CREATE")
	setDuration(&cfg.MCP.CheckTimeout, "AGENTBRIDGE_MCP_CHECK_TIMEOUT")
	setString(&cfg.Auth.TokenHash, "AGENTBRIDGE_AUTH_TOKEN_HASH")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Sessions.Backend {
	case "fs", "postgres":
	default:
		return fmt.Errorf("sessions.backend must be fs or postgres, got %q", cfg.Sessions.Backend)
	}
	if cfg.Sessions.Backend == "fs" && cfg.Sessions.Dir == "" {
		return errors.New("sessions.dir is required for the fs backend")
	}
	if cfg.Sessions.Backend == "postgres" && cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required for the postgres backend")
	}
	if cfg.Sessions.EventBuffer < 1 {
		return errors.New("sessions.event_buffer must be >= 1")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	switch cfg.Policy.DefaultMode {
	case "never", "always", "risky":
	default:
		return fmt.Errorf("policy.default_mode must be never, always or risky, got %q", cfg.Policy.DefaultMode)
	}
	if cfg.Permission.Timeout <= 0 {
		return errors.New("permission.timeout must be positive")
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
