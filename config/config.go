package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Sandbox   SandboxConfig       `mapstructure:"sandbox"`
	Languages map[string]Language `mapstructure:"languages"`
	Storage   StorageConfig       `mapstructure:"storage"`
	Listings  ListingsConfig      `mapstructure:"listings"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Telemetry TelemetryConfig     `mapstructure:"telemetry"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
	RESTPort  int    `mapstructure:"rest_port"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	TempRoot         string `mapstructure:"temp_root"`
	DefaultTimeoutMs int    `mapstructure:"default_timeout_ms"`
	MaxTimeoutMs     int    `mapstructure:"max_timeout_ms"`
	MemoryMB         int    `mapstructure:"memory_mb"`
	MaxCodeLength    int    `mapstructure:"max_code_length"`
	MaxOutputBytes   int    `mapstructure:"max_output_bytes"`
	StdinMode        string `mapstructure:"stdin_mode"`
	MaxConcurrent    int    `mapstructure:"max_concurrent"`
}

// Language overrides the run settings of a built-in language profile
type Language struct {
	Command   string `mapstructure:"command"`
	Extension string `mapstructure:"extension"`
}

// StorageConfig holds S3-compatible blob storage settings
type StorageConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	UseSSL         bool   `mapstructure:"use_ssl"`
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	PresignTTLSec  int    `mapstructure:"presign_ttl_sec"`
	MaxObjectBytes int64  `mapstructure:"max_object_bytes"`
}

// ListingsConfig holds the listing metadata store settings
type ListingsConfig struct {
	DSN      string `mapstructure:"dsn"`
	SeedFile string `mapstructure:"seed_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode       string `mapstructure:"mode"`
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// TelemetryConfig holds OpenTelemetry export settings.
// Output is a file path; empty means stderr.
type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Output  string `mapstructure:"output"`
}

// Stdin modes
const (
	StdinModePipe = "pipe"
	StdinModeFile = "file"
)

// New loads and validates the application configuration
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	return load(v)
}

// NewFromFile loads and validates the configuration from an explicit path
func NewFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.rest_port", 0)

	v.SetDefault("sandbox.temp_root", "")
	v.SetDefault("sandbox.default_timeout_ms", 10000)
	v.SetDefault("sandbox.max_timeout_ms", 30000)
	v.SetDefault("sandbox.memory_mb", 128)
	v.SetDefault("sandbox.max_code_length", 50000)
	v.SetDefault("sandbox.max_output_bytes", 1024*1024)
	v.SetDefault("sandbox.stdin_mode", StdinModePipe)
	v.SetDefault("sandbox.max_concurrent", 0)

	v.SetDefault("storage.endpoint", "s3.amazonaws.com")
	v.SetDefault("storage.bucket", "vibecoder-files")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.presign_ttl_sec", 60)
	v.SetDefault("storage.max_object_bytes", 8*1024*1024)

	v.SetDefault("listings.dsn", "file:vibebox.db")
	v.SetDefault("listings.seed_file", "")

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.output", "")
}

// validate ensures the configuration is valid
//
//nolint:gocyclo // Flat list of independent checks
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.HTTPPort < 0 || c.Server.RESTPort < 0 {
		return fmt.Errorf("server ports must not be negative")
	}

	if c.Server.Transport == "http" && c.Server.RESTPort != 0 && c.Server.RESTPort == c.Server.HTTPPort {
		return fmt.Errorf("server.rest_port must differ from server.http_port (%d)", c.Server.HTTPPort)
	}

	if c.Sandbox.DefaultTimeoutMs <= 0 {
		return fmt.Errorf("sandbox.default_timeout_ms must be positive, got: %d", c.Sandbox.DefaultTimeoutMs)
	}

	if c.Sandbox.MaxTimeoutMs < c.Sandbox.DefaultTimeoutMs {
		return fmt.Errorf("sandbox.max_timeout_ms (%d) must not be below sandbox.default_timeout_ms (%d)",
			c.Sandbox.MaxTimeoutMs, c.Sandbox.DefaultTimeoutMs)
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	if c.Sandbox.MaxCodeLength <= 0 {
		return fmt.Errorf("sandbox.max_code_length must be positive, got: %d", c.Sandbox.MaxCodeLength)
	}

	if c.Sandbox.MaxOutputBytes <= 0 {
		return fmt.Errorf("sandbox.max_output_bytes must be positive, got: %d", c.Sandbox.MaxOutputBytes)
	}

	if c.Sandbox.StdinMode != StdinModePipe && c.Sandbox.StdinMode != StdinModeFile {
		return fmt.Errorf("invalid sandbox.stdin_mode: %s, must be 'pipe' or 'file'", c.Sandbox.StdinMode)
	}

	if c.Sandbox.MaxConcurrent < 0 {
		return fmt.Errorf("sandbox.max_concurrent must not be negative, got: %d", c.Sandbox.MaxConcurrent)
	}

	if c.Storage.PresignTTLSec <= 0 {
		return fmt.Errorf("storage.presign_ttl_sec must be positive, got: %d", c.Storage.PresignTTLSec)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// DefaultTimeout returns the execution timeout applied when a caller gives none
func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.Sandbox.DefaultTimeoutMs) * time.Millisecond
}

// PresignTTL returns the validity of presigned blob URLs
func (c *Config) PresignTTL() time.Duration {
	return time.Duration(c.Storage.PresignTTLSec) * time.Second
}
