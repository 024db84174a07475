package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ozzaii/beatflow/pkg/patterns"
	"github.com/ozzaii/beatflow/pkg/slot"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is read when neither --config nor BEATFLOW_CONFIG is set.
	DefaultPath = "beatflow.yml"

	// EnvPath overrides DefaultPath.
	EnvPath = "BEATFLOW_CONFIG"

	// DefaultNamespace is used when the config names none.
	DefaultNamespace = "default"

	// DefaultServerAddr is where `beatflow serve` listens by default.
	DefaultServerAddr = ":8080"

	// MaxNamespaceLength keeps slot keys readable.
	MaxNamespaceLength = 63
)

// NamespacePattern: lowercase alphanumeric, hyphens allowed but not at start/end.
var NamespacePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// Config represents the top-level beatflow.yml configuration
type Config struct {
	Version   string         `yaml:"version"`
	Namespace string         `yaml:"namespace,omitempty"`
	Storage   StorageConfig  `yaml:"storage,omitempty"`
	Defaults  DefaultsConfig `yaml:"defaults,omitempty"`
	Exchange  ExchangeConfig `yaml:"exchange,omitempty"`
	Server    ServerConfig   `yaml:"server,omitempty"`
	Log       LogConfig      `yaml:"log,omitempty"`
}

// StorageConfig selects the slot backend
type StorageConfig struct {
	Driver      string          `yaml:"driver,omitempty"` // sqlite (default), redis, postgres or memory
	SQLite      *SQLiteConfig   `yaml:"sqlite,omitempty"`
	Redis       *RedisConfig    `yaml:"redis,omitempty"`
	Postgres    *PostgresConfig `yaml:"postgres,omitempty"`
	MaxBytes    int             `yaml:"max_bytes,omitempty"` // 0 = 5 MiB, -1 = unlimited
	StrictReads bool            `yaml:"strict_reads,omitempty"`
	MaxRetries  int             `yaml:"max_retries,omitempty"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// DefaultsConfig holds values applied to new patterns
type DefaultsConfig struct {
	Kit string `yaml:"kit,omitempty"`
}

// ExchangeConfig configures export and import
type ExchangeConfig struct {
	MaxImportBytes int64     `yaml:"max_import_bytes,omitempty"`
	S3             *S3Config `yaml:"s3,omitempty"`
}

// S3Config points export/import at a bucket
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// ServerConfig configures `beatflow serve`
type ServerConfig struct {
	Addr           string   `yaml:"addr,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Mode  string `yaml:"mode,omitempty"`  // dev or prod
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{Version: "1.0"}
	_ = c.Validate()
	return c
}

// Validate performs strict validation on the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if err := ValidateNamespace(c.Namespace); err != nil {
		return err
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.Defaults.Kit == "" {
		c.Defaults.Kit = patterns.DefaultKit
	}

	if c.Exchange.MaxImportBytes < 0 {
		return fmt.Errorf("exchange.max_import_bytes must be >= 0, got %d", c.Exchange.MaxImportBytes)
	}
	if c.Exchange.S3 != nil && c.Exchange.S3.Bucket == "" {
		return fmt.Errorf("exchange.s3.bucket is required when exchange.s3 is set")
	}

	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}

	switch strings.ToLower(c.Log.Mode) {
	case "":
		c.Log.Mode = "dev"
	case "dev", "development", "prod", "production":
	default:
		return fmt.Errorf("invalid log.mode: %s (must be 'dev' or 'prod')", c.Log.Mode)
	}

	return nil
}

// Validate checks the storage section and applies the sqlite default
func (s *StorageConfig) Validate() error {
	if s.Driver == "" {
		s.Driver = string(slot.DriverSQLite)
	}
	if err := slot.Driver(s.Driver).Validate(); err != nil {
		return fmt.Errorf("storage.driver: %w", err)
	}

	switch slot.Driver(s.Driver) {
	case slot.DriverRedis:
		if s.Redis == nil || s.Redis.URL == "" {
			return fmt.Errorf("storage.redis.url is required for the redis driver")
		}
	case slot.DriverPostgres:
		if s.Postgres == nil || s.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres driver")
		}
	case slot.DriverSQLite:
		if s.SQLite == nil {
			s.SQLite = &SQLiteConfig{}
		}
		if s.SQLite.Path == "" {
			s.SQLite.Path = "beatflow.db"
		}
	}

	if s.MaxBytes < -1 {
		return fmt.Errorf("storage.max_bytes must be >= -1 (-1 = unlimited), got %d", s.MaxBytes)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("storage.max_retries must be >= 0, got %d", s.MaxRetries)
	}
	return nil
}

// SlotOptions converts the storage section into backend options.
func (s *StorageConfig) SlotOptions() slot.Options {
	opts := slot.Options{Driver: slot.Driver(s.Driver)}
	if s.SQLite != nil {
		opts.SQLitePath = s.SQLite.Path
	}
	if s.Redis != nil {
		opts.RedisURL = s.Redis.URL
	}
	if s.Postgres != nil {
		opts.PostgresDSN = s.Postgres.DSN
	}
	return opts
}

// ValidateNamespace checks a namespace against NamespacePattern.
func ValidateNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	if len(name) > MaxNamespaceLength {
		return fmt.Errorf("namespace too long: %d characters (max: %d)", len(name), MaxNamespaceLength)
	}
	if !NamespacePattern.MatchString(name) {
		return fmt.Errorf("invalid namespace '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}
	return nil
}

// Load reads and validates beatflow.yml from the specified path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Resolve loads the config at path, falling back to BEATFLOW_CONFIG and then
// DefaultPath. A missing file is only an error when the path was given
// explicitly; otherwise the defaults are returned.
func Resolve(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPath)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	cfg, err := Load(path)
	if err != nil && !explicit && errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}
