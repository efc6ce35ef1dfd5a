package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Драйверы хранилища проектов
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	ServerPort     int
	StorageDriver  string
	DataDir        string
	DatabaseURL    string
	LockTimeout    time.Duration
	DefaultKFactor float64
	DefaultRating  float64
	JWTSecretKey   string
	LogLevel       slog.Level
	AllowedOrigins []string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load() // отсутствие .env не ошибка

	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		StorageDriver:     strings.ToLower(get("STORAGE_DRIVER", DriverFile)),
		DataDir:           get("DATA_DIR", "./data/projects"),
		DatabaseURL:       get("DATABASE_URL", ""),
		JWTSecretKey:      get("JWT_SECRET_KEY", ""),
		R2AccountID:       get("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     get("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: get("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      get("R2_BUCKET_NAME", ""),
		R2PublicBaseURL:   get("R2_PUBLIC_BASE_URL", ""),
	}

	port, err := strconv.Atoi(get("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	switch cfg.StorageDriver {
	case DriverFile:
	case DriverPostgres, DriverSQLite:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for the %s storage driver", cfg.StorageDriver)
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q (expected file, postgres or sqlite)", cfg.StorageDriver)
	}

	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	if cfg.LockTimeout, err = time.ParseDuration(get("LOCK_TIMEOUT", "5s")); err != nil {
		return nil, fmt.Errorf("invalid LOCK_TIMEOUT environment variable: %w", err)
	}
	if cfg.LockTimeout <= 0 {
		return nil, fmt.Errorf("LOCK_TIMEOUT must be positive, got %s", cfg.LockTimeout)
	}

	if cfg.DefaultKFactor, err = strconv.ParseFloat(get("DEFAULT_K_FACTOR", "32"), 64); err != nil || cfg.DefaultKFactor <= 0 {
		return nil, fmt.Errorf("DEFAULT_K_FACTOR must be a positive number")
	}
	if cfg.DefaultRating, err = strconv.ParseFloat(get("DEFAULT_RATING", "1000"), 64); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_RATING environment variable: %w", err)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL environment variable: %w", err)
	}

	for _, origin := range strings.Split(get("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	return cfg, nil
}
