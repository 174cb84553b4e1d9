package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	RedisURL           string // empty runs against the in-memory store
	PostgresDSN        string // empty disables the click/signup journal
	LogLevel           string
	CORSAllowedOrigins []string

	// BaseURL is the public base for generated share links: <BaseURL>/refer/<CODE>
	BaseURL string
	// SignupRedirectURL is where /refer/<code> sends visitors after the click
	// is recorded
	SignupRedirectURL string
	// DraftingEndpoint is the external message-generation service
	DraftingEndpoint string

	ReconcileIntervalSeconds int
	RateLimitPerMinute       int
	ReferRateLimitPerMinute  int
	DashboardCacheSeconds    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	reconcileInterval, err := intEnv("RECONCILE_INTERVAL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	rateLimit, err := intEnv("RATE_LIMIT_PER_MINUTE", 100)
	if err != nil {
		return nil, err
	}
	referRateLimit, err := intEnv("REFER_RATE_LIMIT_PER_MINUTE", 30)
	if err != nil {
		return nil, err
	}
	cacheSeconds, err := intEnv("DASHBOARD_CACHE_SECONDS", 5)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(getEnv("BASE_URL", "https://example.com"), "/")

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  port,
		RedisURL:    os.Getenv("REDIS_URL"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
		BaseURL:                  baseURL,
		SignupRedirectURL:        getEnv("SIGNUP_REDIRECT_URL", baseURL+"/signup"),
		DraftingEndpoint:         getEnv("DRAFTING_ENDPOINT", "http://localhost:9090/v1/draft"),
		ReconcileIntervalSeconds: reconcileInterval,
		RateLimitPerMinute:       rateLimit,
		ReferRateLimitPerMinute:  referRateLimit,
		DashboardCacheSeconds:    cacheSeconds,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
