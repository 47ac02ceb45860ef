package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Application settings
type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
	Store   StoreConfig
	Redis   RedisConfig
	Export  ExportConfig
}

// Server settings
type ServerConfig struct {
	Port            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	AllowedOrigins  []string
}

type StoreConfig struct {
	Driver      string // memory | postgres
	PostgresDSN string
	PageSize    int
	BatchSize   int
	MaxConns    int
	MinConns    int
	// Result cap of the in-memory store, mirrors hosted stores' row limits
	MemoryPageLimit int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	KeySet   string
}

type ExportConfig struct {
	SinkURL            string
	SinkSecret         string
	Timeout            time.Duration
	RateLimitPerSecond int
}

// Logging settings
type LoggingConfig struct {
	Level string
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if path := getEnv("ENV_FILE", ".env"); fileExists(path) {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			RequestTimeout:  getDurationEnv("REQUEST_TIMEOUT", "30s"),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", "15s"),
			MaxUploadBytes:  int64(getIntEnv("MAX_UPLOAD_BYTES", 32<<20)),
			AllowedOrigins:  getSliceEnv("CORS_ALLOWED_ORIGINS", nil),
		},
		Store: StoreConfig{
			Driver:          getEnv("STORE_DRIVER", "memory"),
			PostgresDSN:     getEnv("DATABASE_URL", ""),
			PageSize:        getIntEnv("STORE_PAGE_SIZE", 1000),
			BatchSize:       getIntEnv("STORE_BATCH_SIZE", 500),
			MaxConns:        getIntEnv("DB_MAX_CONNS", 10),
			MinConns:        getIntEnv("DB_MIN_CONNS", 1),
			MemoryPageLimit: getIntEnv("MEMORY_PAGE_LIMIT", 1000),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			KeySet:   getEnv("REDIS_KEY_SET", "adperf:natural_keys"),
		},
		Export: ExportConfig{
			SinkURL:            getEnv("SINK_URL", ""),
			SinkSecret:         getEnv("SINK_SECRET", ""),
			Timeout:            getDurationEnv("SINK_TIMEOUT", "30s"),
			RateLimitPerSecond: getIntEnv("RATE_LIMIT_PER_SECOND", 10),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	// the in-memory store starts empty on every boot while the index persists
	if c.Redis.Enabled && c.Store.Driver == "memory" {
		return fmt.Errorf("REDIS_ENABLED requires a persistent STORE_DRIVER, got %q", c.Store.Driver)
	}
	if c.Store.PageSize <= 0 {
		return fmt.Errorf("STORE_PAGE_SIZE must be positive, got %d", c.Store.PageSize)
	}
	if c.Store.BatchSize <= 0 {
		return fmt.Errorf("STORE_BATCH_SIZE must be positive, got %d", c.Store.BatchSize)
	}
	if c.Export.RateLimitPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND must be positive, got %d", c.Export.RateLimitPerSecond)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
