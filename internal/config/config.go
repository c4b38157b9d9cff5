// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	APIBaseURL string // Coaching backend REST base URL
	WSURL      string // Coaching backend WebSocket endpoint
	DataDir    string // Directory for the local session database (always absolute)
	LogLevel   string
	Port       int  // Local view-server port
	DevMode    bool // Pretty logs, permissive CORS
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("MENTOR_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataDir = filepath.Join(home, ".mentor-console")
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		APIBaseURL: getEnv("MENTOR_API_URL", "http://localhost:8000/api/v1"),
		WSURL:      getEnv("MENTOR_WS_URL", "ws://localhost:8000/api/v1/ws/trades"),
		DataDir:    absDataDir,
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Port:       getEnvAsInt("MENTOR_PORT", 8700),
		DevMode:    getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("MENTOR_API_URL must not be empty")
	}
	if c.WSURL == "" {
		return fmt.Errorf("MENTOR_WS_URL must not be empty")
	}
	return nil
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
