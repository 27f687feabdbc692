package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the referral engine.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Queue       QueueConfig       `yaml:"queue"`
	Attribution AttributionConfig `yaml:"attribution"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig holds the optional Redis connection used for the click
// debounce fast-path. The engine runs fine without it.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// QueueConfig holds the SQS click-event queue settings. When no queue URL
// is configured, click events are applied in-process.
type QueueConfig struct {
	ClickQueueURL string `yaml:"click_queue_url"`
	AWSRegion     string `yaml:"aws_region"`
}

// AttributionConfig holds the referral policy knobs. The window and TTL
// values are policy choices carried over from the product, not derived;
// treat them as tunable.
type AttributionConfig struct {
	FallbackWindowMinutes int    `yaml:"fallback_window_minutes"`
	SessionTTLDays        int    `yaml:"session_ttl_days"`
	ClickDebounceMinutes  int    `yaml:"click_debounce_minutes"`
	FingerprintSalt       string `yaml:"fingerprint_salt"`
	CookieName            string `yaml:"cookie_name"`
	RedirectBaseURL       string `yaml:"redirect_base_url"`
}

// FallbackWindow returns the fingerprint-fallback recency window.
func (c AttributionConfig) FallbackWindow() time.Duration {
	return time.Duration(c.FallbackWindowMinutes) * time.Minute
}

// SessionTTL returns the sliding session expiry.
func (c AttributionConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLDays) * 24 * time.Hour
}

// ClickDebounce returns the duplicate click suppression window.
func (c AttributionConfig) ClickDebounce() time.Duration {
	return time.Duration(c.ClickDebounceMinutes) * time.Minute
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// RedactEnabled defaults redaction to on unless explicitly disabled.
func (c LoggingConfig) RedactEnabled() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file. A missing file is not an
// error; the engine can be configured entirely from the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Attribution.FallbackWindowMinutes == 0 {
		cfg.Attribution.FallbackWindowMinutes = 60
	}
	if cfg.Attribution.SessionTTLDays == 0 {
		cfg.Attribution.SessionTTLDays = 30
	}
	if cfg.Attribution.ClickDebounceMinutes == 0 {
		cfg.Attribution.ClickDebounceMinutes = 30
	}
	if cfg.Attribution.CookieName == "" {
		cfg.Attribution.CookieName = "ref_sid"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SQS_CLICK_QUEUE_URL"); v != "" {
		cfg.Queue.ClickQueueURL = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" && cfg.Queue.AWSRegion == "" {
		cfg.Queue.AWSRegion = v
	}
	if v := os.Getenv("FINGERPRINT_SALT"); v != "" {
		cfg.Attribution.FingerprintSalt = v
	}
	if v := os.Getenv("REFERRAL_COOKIE_NAME"); v != "" {
		cfg.Attribution.CookieName = v
	}
	if v := os.Getenv("REDIRECT_BASE_URL"); v != "" {
		cfg.Attribution.RedirectBaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}
