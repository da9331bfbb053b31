// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultCORSOrigins are the local frontend dev servers.
const DefaultCORSOrigins = "http://localhost:3000,http://localhost:3001"

// Config holds every runtime setting of the transcription service.
type Config struct {
	Port              int           `validate:"min=1,max=65535"`
	UploadDir         string        `validate:"required"`
	OutputDir         string        `validate:"required"`
	MaxUploadBytes    int64         `validate:"min=1"`
	Workers           int           `validate:"min=1,max=64"`
	QueueSize         int           `validate:"min=0"`
	ConversionTimeout time.Duration `validate:"gte=0s"`
	Retention         time.Duration `validate:"gt=0s"`
	SweepInterval     time.Duration `validate:"gt=0s"`
	CORSOrigins       []string      `validate:"dive,url"`
	BasicPitchBin     string        `validate:"required"`
	DatabaseURL       string        `validate:"omitempty,url"`
	LogLevel          string        `validate:"oneof=debug info warn error"`
	LogFormat         string        `validate:"oneof=text json"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvInt("PORT", 8000),
		UploadDir:         getEnvString("UPLOAD_DIR", "./uploads"),
		OutputDir:         getEnvString("OUTPUT_DIR", "./temp"),
		MaxUploadBytes:    getEnvInt64("MAX_UPLOAD_BYTES", 50*1024*1024),
		Workers:           getEnvInt("CONVERSION_WORKERS", 2),
		QueueSize:         getEnvInt("CONVERSION_QUEUE_SIZE", 64),
		ConversionTimeout: getEnvDuration("CONVERSION_TIMEOUT", 0),
		Retention:         getEnvDuration("RETENTION", 24*time.Hour),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Hour),
		CORSOrigins:       splitList(getEnvString("CORS_ORIGINS", DefaultCORSOrigins)),
		BasicPitchBin:     getEnvString("BASIC_PITCH_BIN", "basic-pitch"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		LogLevel:          strings.ToLower(getEnvString("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getEnvString("LOG_FORMAT", "text")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
	}
	return fmt.Errorf("config error: %w", err)
}

// NewLogger builds the structured logger described by LogLevel and LogFormat.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
