package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/amazon-product-scraper/internal/scraper"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	OutputDir      string
	Timeout        time.Duration
	UserAgent      string
	AllowedDomains []string
	Overwrite      bool
	StableIDs      bool
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string

	RelayInterval  time.Duration
	RelayBatchSize int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8084),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Scraper: ScraperConfig{
			OutputDir:      getEnvOrDefault("SCRAPER_OUTPUT_DIR", "output"),
			Timeout:        getDurationOrDefault("SCRAPER_TIMEOUT", scraper.DefaultTimeout),
			UserAgent:      getEnvOrDefault("SCRAPER_USER_AGENT", scraper.DefaultUserAgent),
			AllowedDomains: getStringSliceOrDefault("SCRAPER_ALLOWED_DOMAINS", scraper.DefaultAllowedDomains),
			Overwrite:      getBoolOrDefault("SCRAPER_OVERWRITE", true),
			StableIDs:      getBoolOrDefault("SCRAPER_STABLE_IDS", false),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "amazon_products"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 4)),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:product_records"),

			RelayInterval:  getDurationOrDefault("REDIS_RELAY_INTERVAL", 5*time.Second),
			RelayBatchSize: getIntOrDefault("REDIS_RELAY_BATCH_SIZE", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.OutputDir == "" {
		return fmt.Errorf("SCRAPER_OUTPUT_DIR must not be empty")
	}

	if c.Scraper.Timeout <= 0 {
		return fmt.Errorf("SCRAPER_TIMEOUT must be positive")
	}

	if len(c.Scraper.AllowedDomains) == 0 {
		return fmt.Errorf("SCRAPER_ALLOWED_DOMAINS must list at least one domain")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Enabled && c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required when DB_ENABLED is set")
	}

	if c.Redis.Enabled {
		if c.Redis.Stream == "" {
			return fmt.Errorf("REDIS_STREAM is required when REDIS_ENABLED is set")
		}
		// events reach the stream through the outbox table
		if !c.Database.Enabled {
			return fmt.Errorf("REDIS_ENABLED requires DB_ENABLED")
		}
		if c.Redis.RelayInterval <= 0 || c.Redis.RelayBatchSize <= 0 {
			return fmt.Errorf("REDIS_RELAY_INTERVAL and REDIS_RELAY_BATCH_SIZE must be positive")
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	return defaultValue
}
