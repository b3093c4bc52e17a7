// Package config loads server configuration from a YAML file with
// environment-variable overrides for deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the festival ops server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Import   ImportConfig   `yaml:"import"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the bind host, honoring the SERVER_HOST override.
func (c ServerConfig) GetHost() string {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	if c.Host != "" {
		return c.Host
	}
	return "0.0.0.0"
}

// DatabaseConfig holds the relational store connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds the optional Redis connection used for import-session
// locking. When Addr is empty the server falls back to Postgres advisory
// locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ImportConfig tunes the ticket import pipeline.
type ImportConfig struct {
	// PreviewSampleSize bounds how many rows a preview normalizes.
	PreviewSampleSize int `yaml:"preview_sample_size"`
	// MaxUploadBytes bounds the accepted upload size.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// DateFallback selects behavior for unparseable sale dates:
	// "now" substitutes the processing time (legacy behavior),
	// "reject" marks the value null so required dates fail the row.
	DateFallback string `yaml:"date_fallback"`
	// CommitTimeoutSeconds bounds the batched database write.
	CommitTimeoutSeconds int `yaml:"commit_timeout_seconds"`
	// SessionTTLMinutes bounds how long a dataset lock is held before it
	// expires on its own.
	SessionTTLMinutes int `yaml:"session_ttl_minutes"`
}

// CommitTimeout returns the configured commit timeout as a duration.
func (c ImportConfig) CommitTimeout() time.Duration {
	return time.Duration(c.CommitTimeoutSeconds) * time.Second
}

// SessionTTL returns the session lock TTL as a duration.
func (c ImportConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// LoadFromEnv loads the YAML config, then applies environment overrides.
// A .env file is honored when present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = n
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if fb := os.Getenv("IMPORT_DATE_FALLBACK"); fb != "" {
		cfg.Import.DateFallback = fb
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30
	}
	if c.Import.PreviewSampleSize == 0 {
		c.Import.PreviewSampleSize = 100
	}
	if c.Import.MaxUploadBytes == 0 {
		c.Import.MaxUploadBytes = 32 << 20
	}
	if c.Import.DateFallback == "" {
		c.Import.DateFallback = "now"
	}
	if c.Import.CommitTimeoutSeconds == 0 {
		c.Import.CommitTimeoutSeconds = 60
	}
	if c.Import.SessionTTLMinutes == 0 {
		c.Import.SessionTTLMinutes = 60
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
