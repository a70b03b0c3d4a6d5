package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/backsnote/backsnote/api/internal/infrastructure/crypto"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all runtime configuration. It is read once at startup.
type Config struct {
	Environment    string // "development" or "production"
	DatabaseURL    string // empty in development selects the in-memory store
	RedisAddr      string // empty disables the note cache
	Port           string
	AllowedOrigins []string
	LogLevel       slog.Level

	// EncryptionKey is the shared 64-hex-character secret for note content.
	EncryptionKey string

	SaveDebounce time.Duration
	CacheTTL     time.Duration
}

// Load reads an optional .env file, then the environment, and validates the result.
// A missing or malformed encryption key is always fatal.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	env := getEnv("BACKSNOTE_ENV", EnvProduction)

	key := getEnv("ENCRYPTION_KEY", "")
	if err := crypto.ValidateKey(key); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" && env == EnvProduction {
		return nil, errors.New("config: DATABASE_URL environment variable is required in production")
	}

	corsOrigins := getEnv("CORS_ALLOWED_ORIGINS", "")
	if corsOrigins == "" {
		if env == EnvProduction {
			return nil, errors.New("config: CORS_ALLOWED_ORIGINS environment variable is required in production")
		}
		corsOrigins = "http://localhost:5173"
	}

	defaultLevel := "info"
	if env == EnvDevelopment {
		defaultLevel = "debug"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", defaultLevel))); err != nil {
		return nil, fmt.Errorf("config: invalid LOG_LEVEL: %w", err)
	}

	debounce, err := getDuration("SAVE_DEBOUNCE", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getDuration("CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		Environment:    env,
		DatabaseURL:    dbURL,
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitOrigins(corsOrigins),
		LogLevel:       level,
		EncryptionKey:  key,
		SaveDebounce:   debounce,
		CacheTTL:       cacheTTL,
	}, nil
}

// getEnv retrieves a non-empty environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive duration, got %q", key, raw)
	}
	return d, nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
