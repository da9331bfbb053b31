package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the limit for one path pattern and method. A Path ending
// in "/" matches every path below it.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int
	Window time.Duration
	Burst  int // defaults to Limit
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Allowlist       map[string]bool
	Denylist        map[string]bool
	EndpointConfigs []EndpointConfig
}

// LoadConfig reads rate limiting configuration from the environment.
func LoadConfig() *Config {
	if !getEnvBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	uploadLimit := getEnvInt("RATE_LIMIT_UPLOAD_PER_HOUR", 60)
	transcribeLimit := getEnvInt("RATE_LIMIT_TRANSCRIBE_PER_HOUR", 30)

	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 600),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		IdleTTL:         time.Hour,
		Allowlist:       parseIPList(os.Getenv("RATE_LIMIT_ALLOWLIST")),
		Denylist:        parseIPList(os.Getenv("RATE_LIMIT_DENYLIST")),
		EndpointConfigs: DefaultEndpointConfigs(uploadLimit, transcribeLimit),
	}
}

// DefaultEndpointConfigs returns the per-endpoint tiers. Conversions are the
// expensive operation and get the tightest limit; uploads come next. Reads
// fall through to the default limit.
func DefaultEndpointConfigs(uploadPerHour, transcribePerHour int) []EndpointConfig {
	return []EndpointConfig{
		{Path: "/api/transcribe/", Method: "POST", Limit: transcribePerHour, Window: time.Hour, Burst: 4},
		{Path: "/api/upload", Method: "POST", Limit: uploadPerHour, Window: time.Hour, Burst: 10},
		{Path: "/api/transcription/", Method: "DELETE", Limit: 120, Window: time.Minute, Burst: 20},
	}
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
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

func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
