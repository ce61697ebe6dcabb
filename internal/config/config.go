package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	Port           int
	DBConnStr      string
	JWTSecret      string
	InitialBalance decimal.Decimal
	LogLevel       string
	DevMode        bool // run on the in-memory store, no database required
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	initialBalance, err := decimal.NewFromString(getEnv("INITIAL_BALANCE", "10000000"))
	if err != nil {
		return nil, fmt.Errorf("INITIAL_BALANCE is not a valid decimal: %w", err)
	}

	cfg := &Config{
		Port:           getEnvAsInt("PORT", 8080),
		DBConnStr:      getEnv("DB_CONN_STR", buildConnStr()),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		InitialBalance: initialBalance,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.InitialBalance.IsNegative() {
		return fmt.Errorf("INITIAL_BALANCE cannot be negative")
	}
	return nil
}

// buildConnStr assembles a postgres connection string from individual vars
// (Docker friendly) when DB_CONN_STR is not set explicitly.
func buildConnStr() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "papertrade"),
	)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
