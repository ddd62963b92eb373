package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Chat     ChatConfig
	Review   ReviewConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr        string
	ReadTimeout time.Duration
	CORSOrigins []string
}

// ChatConfig holds orchestrator settings.
type ChatConfig struct {
	UpstreamURL     string        // agent completion service base URL
	TurnTimeout     time.Duration // bound on one LLM+tool turn
	IntentThreshold float64       // routing confidence below this falls back to hub
}

// ReviewConfig holds review-room liveness settings.
type ReviewConfig struct {
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
	ActionTimeout     time.Duration
}

// Load reads configuration from environment variables. Defaults are safe for
// local development only.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("CASEFLOW_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("CASEFLOW_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("CASEFLOW_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("CASEFLOW_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	turnTimeout, err := getEnvDuration("CASEFLOW_CHAT_TURN_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	intentThreshold, err := getEnvFloat("CASEFLOW_CHAT_INTENT_THRESHOLD", 0.5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	heartbeat, err := getEnvDuration("CASEFLOW_REVIEW_HEARTBEAT_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	idleTimeout, err := getEnvDuration("CASEFLOW_REVIEW_IDLE_TIMEOUT", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	actionTimeout, err := getEnvDuration("CASEFLOW_REVIEW_ACTION_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("CASEFLOW_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("CASEFLOW_DB_USER", "caseflow"),
			Password: getEnv("CASEFLOW_DB_PASSWORD", ""),
			DBName:   getEnv("CASEFLOW_DB_NAME", "caseflow_dev"),
			SSLMode:  getEnv("CASEFLOW_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("CASEFLOW_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("CASEFLOW_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Server: ServerConfig{
			Addr:        getEnv("CASEFLOW_SERVER_ADDR", ":8080"),
			ReadTimeout: readTimeout,
			CORSOrigins: getEnvList("CASEFLOW_CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		Chat: ChatConfig{
			UpstreamURL:     getEnv("CASEFLOW_CHAT_UPSTREAM_URL", "http://localhost:9090"),
			TurnTimeout:     turnTimeout,
			IntentThreshold: intentThreshold,
		},
		Review: ReviewConfig{
			HeartbeatInterval: heartbeat,
			IdleTimeout:       idleTimeout,
			ActionTimeout:     actionTimeout,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("CASEFLOW_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("CASEFLOW_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("CASEFLOW_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Chat.UpstreamURL == "" {
		return errors.New("CASEFLOW_CHAT_UPSTREAM_URL is required")
	}
	if c.Chat.TurnTimeout <= 0 {
		return fmt.Errorf("CASEFLOW_CHAT_TURN_TIMEOUT must be positive, got %s", c.Chat.TurnTimeout)
	}
	if c.Chat.IntentThreshold <= 0 || c.Chat.IntentThreshold > 1 {
		return fmt.Errorf("CASEFLOW_CHAT_INTENT_THRESHOLD must be in (0, 1], got %g", c.Chat.IntentThreshold)
	}
	if c.Review.HeartbeatInterval <= 0 {
		return fmt.Errorf("CASEFLOW_REVIEW_HEARTBEAT_INTERVAL must be positive, got %s", c.Review.HeartbeatInterval)
	}
	if c.Review.IdleTimeout < c.Review.HeartbeatInterval {
		return fmt.Errorf("CASEFLOW_REVIEW_IDLE_TIMEOUT must be >= heartbeat interval, got %s", c.Review.IdleTimeout)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
