package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction     bool
	ProdOrigins      string
	HTTPAddr         string
	DBDSN            string // empty runs against the in-memory store
	DBMaxConns       int32
	JWTSecret        string
	JWTIssuer        string // empty accepts any issuer
	JWTLeeway        time.Duration
	LogLevel         string
	LogFormat        string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	ResourceCacheTTL time.Duration
	AMQPURL          string
	EventsExchange   string
	SweepInterval    time.Duration
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	cfg := &Config{}

	// Production origin (default: empty)
	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")

	// Application environment (default: dev)
	appEnvStr := getEnv("APP_ENV", "dev")
	cfg.IsProduction = appEnvStr == PROD_STRING

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Database DSN; production refuses to start without one
	cfg.DBDSN = os.Getenv("DB_DSN")
	if cfg.DBDSN == "" && cfg.IsProduction {
		return nil, fmt.Errorf("DB_DSN is required in production")
	}

	maxConns, err := getEnvAsInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	cfg.DBMaxConns = int32(maxConns)

	// JWT secret is required for validating tokens
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// Tokens come from the identity service; pin its issuer when known
	cfg.JWTIssuer = getEnv("JWT_ISSUER", "")
	cfg.JWTLeeway, err = getEnvAsDuration("JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	// Redis is optional; without it resource reads are not cached
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.ResourceCacheTTL, err = getEnvAsDuration("RESOURCE_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	// RabbitMQ is optional; without it domain events are dropped
	cfg.AMQPURL = getEnv("AMQP_URL", "")
	cfg.EventsExchange = getEnv("EVENTS_EXCHANGE", "reservation.events")

	// Completion sweep period (0 disables the background sweep)
	cfg.SweepInterval, err = getEnvAsDuration("SWEEP_INTERVAL", 0)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return val, nil
}
