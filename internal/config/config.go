package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the spectrajobs server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Jobs     JobsConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type QueueConfig struct {
	AMQPURL string
}

type JobsConfig struct {
	RootDir string
}

type WorkerConfig struct {
	// TokenHash is the bcrypt hash of the shared worker callback token.
	TokenHash string
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("SPECTRAJOBS_PORT", 8080),
			Env:             envString("SPECTRAJOBS_ENV", "development"),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Queue: QueueConfig{
			AMQPURL: os.Getenv("AMQP_URL"),
		},
		Jobs: JobsConfig{
			RootDir: envString("JOBS_ROOT_DIR", "/JOBS"),
		},
		Worker: WorkerConfig{
			TokenHash: os.Getenv("WORKER_TOKEN_HASH"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Queue.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is required")
	}
	if !strings.HasPrefix(c.Queue.AMQPURL, "amqp://") && !strings.HasPrefix(c.Queue.AMQPURL, "amqps://") {
		return fmt.Errorf("AMQP_URL must start with amqp:// or amqps://, got %q", c.Queue.AMQPURL)
	}

	if c.Jobs.RootDir == "" || !strings.HasPrefix(c.Jobs.RootDir, "/") {
		return fmt.Errorf("JOBS_ROOT_DIR must be an absolute path, got %q", c.Jobs.RootDir)
	}

	if c.Worker.TokenHash == "" {
		return fmt.Errorf("WORKER_TOKEN_HASH is required")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
