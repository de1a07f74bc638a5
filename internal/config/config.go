package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL        string
	CachePath          string // sqlite fallback store, empty means in-memory
	RedisAddr          string // shared fallback store, empty means local cache
	PollInterval       int    // seconds, connection health sweep
	ShutdownTimeout    int    // seconds
	LogLevel           string
	GoogleClientID     string
	GoogleClientSecret string
	OAuthStateTTL      int // seconds
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	googleClientID := os.Getenv("GOOGLE_CLIENT_ID")
	googleClientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if googleClientID == "" || googleClientSecret == "" {
		fmt.Println("Warning: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set, Gmail token refresh will not work")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		DatabaseURL:        dbURL,
		CachePath:          os.Getenv("CACHE_PATH"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		PollInterval:       intEnv("POLL_INTERVAL", 300),
		ShutdownTimeout:    intEnv("SHUTDOWN_TIMEOUT", 30),
		LogLevel:           logLevel,
		GoogleClientID:     googleClientID,
		GoogleClientSecret: googleClientSecret,
		OAuthStateTTL:      intEnv("OAUTH_STATE_TTL", 600),
	}, nil
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		fmt.Printf("Warning: invalid %s value %q, using default %d\n", key, raw, fallback)
		return fallback
	}

	return v
}
