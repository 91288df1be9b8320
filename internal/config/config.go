// Package config loads vitals configuration with precedence:
// defaults, then YAML file, then VITALS_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Sync     SyncConfig     `yaml:"sync"`
	Server   ServerConfig   `yaml:"server"`
	Backup   BackupConfig   `yaml:"backup"`
	Insight  InsightConfig  `yaml:"insight"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path        string   `yaml:"path"`
	BusyTimeout Duration `yaml:"busy_timeout"`
}

// SyncConfig parameterizes the orchestrator, scheduler, and backfill passes.
type SyncConfig struct {
	MaxSyncDays  int      `yaml:"max_sync_days"`
	MaxAttempts  int      `yaml:"max_attempts"`
	BackoffBase  Duration `yaml:"backoff_base"`
	BackoffMax   Duration `yaml:"backoff_max"`
	Concurrency  int      `yaml:"concurrency"`
	BatchSize    int      `yaml:"batch_size"`
	RetryFailed  bool     `yaml:"retry_failed"`
	FetchTimeout Duration `yaml:"fetch_timeout"`
	SourceDir    string   `yaml:"source_dir"`
}

// ServerConfig contains settings for the read-only query API.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// BackupConfig contains S3-compatible backup storage settings.
// An empty bucket disables uploads and keeps backups local-only.
type BackupConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"-"` // env-only, never in YAML
	SecretKey string `yaml:"-"` // env-only, never in YAML
	UseSSL    *bool  `yaml:"use_ssl"`
}

// InsightConfig contains settings for the insight report generator.
type InsightConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
	Model  string `yaml:"model"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("VITALS_CONFIG_PATH", "config/vitals.yaml")

	// Missing file is not an error; defaults apply
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit --config specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newDefaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "data/vitals.db",
			BusyTimeout: Duration(5 * time.Second),
		},
		Sync: SyncConfig{
			MaxSyncDays:  3650,
			MaxAttempts:  3,
			BackoffBase:  Duration(500 * time.Millisecond),
			BackoffMax:   Duration(10 * time.Second),
			Concurrency:  4,
			BatchSize:    50,
			RetryFailed:  true,
			FetchTimeout: Duration(30 * time.Second),
			SourceDir:    "data/export",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Insight: InsightConfig{
			Model: "gpt-4o-mini",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("VITALS_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("VITALS_DB_BUSY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Database.BusyTimeout = Duration(d)
		}
	}

	// Sync
	if v := os.Getenv("VITALS_MAX_SYNC_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.MaxSyncDays = n
		}
	}
	if v := os.Getenv("VITALS_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.MaxAttempts = n
		}
	}
	if v := os.Getenv("VITALS_BACKOFF_BASE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.BackoffBase = Duration(d)
		}
	}
	if v := os.Getenv("VITALS_BACKOFF_MAX"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.BackoffMax = Duration(d)
		}
	}
	if v := os.Getenv("VITALS_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.Concurrency = n
		}
	}
	if v := os.Getenv("VITALS_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.BatchSize = n
		}
	}
	if v := os.Getenv("VITALS_RETRY_FAILED"); v != "" {
		cfg.Sync.RetryFailed = v == "true" || v == "1"
	}
	if v := os.Getenv("VITALS_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.FetchTimeout = Duration(d)
		}
	}
	if v := os.Getenv("VITALS_SOURCE_DIR"); v != "" {
		cfg.Sync.SourceDir = v
	}

	// Server
	if v := os.Getenv("VITALS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VITALS_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("VITALS_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("VITALS_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Backup
	if v := os.Getenv("VITALS_BACKUP_ENDPOINT"); v != "" {
		cfg.Backup.Endpoint = v
	}
	if v := os.Getenv("VITALS_BACKUP_BUCKET"); v != "" {
		cfg.Backup.Bucket = v
	}
	if v := os.Getenv("VITALS_BACKUP_PREFIX"); v != "" {
		cfg.Backup.Prefix = v
	}
	if v := os.Getenv("VITALS_BACKUP_REGION"); v != "" {
		cfg.Backup.Region = v
	}
	if v := os.Getenv("VITALS_BACKUP_ACCESS_KEY"); v != "" {
		cfg.Backup.AccessKey = v
	}
	if v := os.Getenv("VITALS_BACKUP_SECRET_KEY"); v != "" {
		cfg.Backup.SecretKey = v
	}

	// Insight (OPENAI_API_KEY is industry convention)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Insight.APIKey = v
	}
	if v := os.Getenv("VITALS_INSIGHT_MODEL"); v != "" {
		cfg.Insight.Model = v
	}

	// Log
	if v := os.Getenv("VITALS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VITALS_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks configuration invariants that would otherwise surface
// as confusing runtime behavior.
func (c *Config) validate() error {
	if c.Database.Path == "" {
		return errors.New("database path must not be empty")
	}
	if c.Sync.MaxSyncDays < 1 {
		return fmt.Errorf("max_sync_days must be positive, got %d", c.Sync.MaxSyncDays)
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.Sync.MaxAttempts)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Sync.Concurrency)
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive, got %d", c.Sync.BatchSize)
	}
	if c.Backup.Bucket != "" && c.Backup.Endpoint == "" {
		return errors.New("backup endpoint is required when a bucket is configured")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
