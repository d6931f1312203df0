package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageMongo  = "mongo"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	HTTPPort string
	Env      string
	LogLevel string

	Storage       string
	RedisAddr     string
	RedisPassword string
	MongoURI      string
	MongoDBName   string
	QuotaBytes    int

	CatalogDBPath string
	OutboxDBPath  string
	KafkaBrokers  []string

	PersistDebounce    time.Duration
	SessionIdleTimeout time.Duration
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

// Load reads the configuration from the environment. Unset variables take
// their defaults; malformed ones are an error.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		Env:                getEnv("APP_ENV", "production"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Storage:            strings.ToLower(getEnv("STORAGE", StorageMemory)),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:        getEnv("MONGO_DB_NAME", "cartdb"),
		CatalogDBPath:      getEnv("CATALOG_DB_PATH", "catalog.db"),
		OutboxDBPath:       getEnv("OUTBOX_DB_PATH", "outbox.db"),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		MaxRequestBodySize: 1 << 20, // 1MB
	}

	var errs []error
	var err error
	if cfg.QuotaBytes, err = getEnvInt("STORAGE_QUOTA_BYTES", 5<<20); err != nil {
		errs = append(errs, err)
	}
	if cfg.PersistDebounce, err = getEnvDuration("PERSIST_DEBOUNCE", 300*time.Millisecond); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionIdleTimeout, err = getEnvDuration("SESSION_IDLE_TIMEOUT", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}

	switch cfg.Storage {
	case StorageMemory, StorageRedis, StorageMongo:
	default:
		errs = append(errs, fmt.Errorf("STORAGE=%q: %w", cfg.Storage, ErrInvalidConfig))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s=%q: %w", key, value, ErrInvalidConfig)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s=%q: %w", key, value, ErrInvalidConfig)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
