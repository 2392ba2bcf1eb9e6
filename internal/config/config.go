// Package config provides YAML-based configuration with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Intake   IntakeConfig   `yaml:"intake"`
	Sessions SessionsConfig `yaml:"sessions"`
	Export   ExportConfig   `yaml:"export"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `yaml:"port" validate:"min=1,max=65535"`
	BindAddress  string `yaml:"bindAddress"`
	EnableCORS   bool   `yaml:"enableCORS"`
	AllowOrigins string `yaml:"allowOrigins"`
	ReadTimeout  int    `yaml:"readTimeoutSeconds" validate:"min=1"`
	WriteTimeout int    `yaml:"writeTimeoutSeconds" validate:"min=0"`
	IdleTimeout  int    `yaml:"idleTimeoutSeconds" validate:"min=1"`
	BodyLimit    string `yaml:"bodyLimit" validate:"required"`
}

// AnalysisConfig points at the remote analysis service
type AnalysisConfig struct {
	BaseURL              string `yaml:"baseURL" validate:"required,url"`
	TimeoutMinutes       int    `yaml:"timeoutMinutes" validate:"min=1"`
	HealthTimeoutSeconds int    `yaml:"healthTimeoutSeconds" validate:"min=1"`
}

// IntakeConfig bounds what may be staged
type IntakeConfig struct {
	MaxFiles      int   `yaml:"maxFiles" validate:"min=1,max=10"`
	MaxFileSizeMB int64 `yaml:"maxFileSizeMB" validate:"min=1"`
}

// SessionsConfig controls controller expiry in the registry
type SessionsConfig struct {
	IdleTimeoutMinutes     int `yaml:"idleTimeoutMinutes" validate:"min=1"`
	CleanupIntervalMinutes int `yaml:"cleanupIntervalMinutes" validate:"min=1"`
	MaxSessions            int `yaml:"maxSessions" validate:"min=1"`
}

// ExportConfig contains report export destinations
type ExportConfig struct {
	ProductName string       `yaml:"productName" validate:"required"`
	Directory   string       `yaml:"directory"`
	Bucket      BucketConfig `yaml:"bucket"`
}

// BucketConfig describes an S3-compatible bucket for saved reports
type BucketConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	BucketName string `yaml:"bucketName" validate:"required_with=Endpoint"`
	Region     string `yaml:"region"`
	Prefix     string `yaml:"prefix"`
	UseSSL     bool   `yaml:"useSSL"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level                string `yaml:"level" validate:"oneof=debug info warn error"`
	Format               string `yaml:"format" validate:"oneof=console json"`
	File                 string `yaml:"file"`
	EnableRequestLogging bool   `yaml:"enableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8001,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "http://localhost:3000",
			ReadTimeout:  60,
			WriteTimeout: 0,
			IdleTimeout:  120,
			BodyLimit:    "1G",
		},
		Analysis: AnalysisConfig{
			BaseURL:              "http://localhost:8000/api",
			TimeoutMinutes:       30,
			HealthTimeoutSeconds: 5,
		},
		Intake: IntakeConfig{
			MaxFiles:      10,
			MaxFileSizeMB: 100,
		},
		Sessions: SessionsConfig{
			IdleTimeoutMinutes:     60,
			CleanupIntervalMinutes: 5,
			MaxSessions:            100,
		},
		Export: ExportConfig{
			ProductName: "L'Éclaireur",
		},
		Logging: LoggingConfig{
			Level:                "info",
			Format:               "console",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file is
// created with defaults. Environment variables (and a .env file next to
// the working directory) override file values.
func LoadConfig(configPath string) (*AppConfig, error) {
	// Best-effort: a missing .env is normal outside development.
	_ = godotenv.Load()

	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# L'Éclaireur configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks struct constraints.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if baseURL := os.Getenv("ANALYSIS_BASE_URL"); baseURL != "" {
		c.Analysis.BaseURL = baseURL
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if dir := os.Getenv("EXPORT_DIR"); dir != "" {
		c.Export.Directory = dir
	}

	if bucket := os.Getenv("EXPORT_BUCKET"); bucket != "" {
		c.Export.Bucket.BucketName = bucket
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if c.Export.Directory != "" && !filepath.IsAbs(c.Export.Directory) {
		c.Export.Directory = filepath.Join(configDir, c.Export.Directory)
	}
	if c.Logging.File != "" && !filepath.IsAbs(c.Logging.File) {
		c.Logging.File = filepath.Join(configDir, c.Logging.File)
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// AnalysisTimeout is the budget granted to one submission.
func (c *AppConfig) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutMinutes) * time.Minute
}

// MaxFileSize returns the per-file ceiling in bytes.
func (c *AppConfig) MaxFileSize() int64 {
	return c.Intake.MaxFileSizeMB * 1024 * 1024
}

// EnsureDirectories creates the export directory when one is configured.
func (c *AppConfig) EnsureDirectories() error {
	if c.Export.Directory == "" {
		return nil
	}
	if err := os.MkdirAll(c.Export.Directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Export.Directory, err)
	}
	return nil
}
