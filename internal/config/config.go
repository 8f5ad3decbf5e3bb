// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrKlingKeysIncomplete is returned when only one of the two Kling
	// credentials is set.
	ErrKlingKeysIncomplete = errors.New("config: KLING_ACCESS_KEY and KLING_SECRET_KEY must be set together")
	// ErrNoProvidersConfigured is returned when no provider credentials
	// are present at all.
	ErrNoProvidersConfigured = errors.New("config: no provider credentials configured")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port               int      `env:"PORT, default=8000" json:"port"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=http://localhost:3000,http://127.0.0.1:3000" json:"cors_allowed_origins"`

	// fal.ai settings (character swap and lip sync)
	FalAPIKey string `env:"FAL_API_KEY" json:"-"` // Masked in JSON

	// Direct Kling API settings (motion control)
	KlingAccessKey string `env:"KLING_ACCESS_KEY" json:"-"` // Masked in JSON
	KlingSecretKey string `env:"KLING_SECRET_KEY" json:"-"` // Masked in JSON
	KlingAPIBase   string `env:"KLING_API_BASE, default=https://api.klingai.com" json:"kling_api_base"`

	// Replicate settings (motion control fallback)
	ReplicateAPIToken string `env:"REPLICATE_API_TOKEN" json:"-"` // Masked in JSON

	// Result archiving settings. S3 takes precedence over the local
	// directory when both are configured.
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
	ArchiveDir         string `env:"ARCHIVE_DIR" json:"archive_dir,omitempty"`
	StorageBaseURL     string `env:"STORAGE_BASE_URL" json:"storage_base_url,omitempty"`

	// Processing settings
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Retention settings
	JobRetentionTTL  time.Duration `env:"JOB_RETENTION_TTL, default=1h" json:"job_retention_ttl"`
	JobAbandonedTTL  time.Duration `env:"JOB_ABANDONED_TTL, default=24h" json:"job_abandoned_ttl"`
	JobSweepInterval time.Duration `env:"JOB_SWEEP_INTERVAL, default=5m" json:"job_sweep_interval"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// FalEnabled returns true if fal.ai credentials are provided.
func (c *Config) FalEnabled() bool {
	return c.FalAPIKey != ""
}

// KlingEnabled returns true if direct Kling API credentials are provided.
func (c *Config) KlingEnabled() bool {
	return c.KlingAccessKey != "" && c.KlingSecretKey != ""
}

// ReplicateEnabled returns true if a Replicate token is provided.
func (c *Config) ReplicateEnabled() bool {
	return c.ReplicateAPIToken != ""
}

// S3Enabled returns true if S3 archiving configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// LocalArchiveEnabled returns true if a local archive directory is set.
func (c *Config) LocalArchiveEnabled() bool {
	return c.ArchiveDir != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration is usable. A config with no provider
// credentials loads fine but every submission would fail, so the caller
// decides whether that is fatal.
func (c *Config) Validate() error {
	if (c.KlingAccessKey == "") != (c.KlingSecretKey == "") {
		return ErrKlingKeysIncomplete
	}
	if !c.FalEnabled() && !c.KlingEnabled() && !c.ReplicateEnabled() {
		return ErrNoProvidersConfigured
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, Fal: %t, Kling: %t, Replicate: %t, S3Bucket: %s, S3Region: %s, ArchiveDir: %s, JobRetentionTTL: %s, JobAbandonedTTL: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.FalEnabled(),
		c.KlingEnabled(),
		c.ReplicateEnabled(),
		c.S3Bucket,
		c.S3Region,
		c.ArchiveDir,
		c.JobRetentionTTL,
		c.JobAbandonedTTL,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
