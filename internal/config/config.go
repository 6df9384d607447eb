package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIBaseURL  string
	HTTPTimeout time.Duration
	OutputDir   string
	Env         string
	Debug       bool
}

// Load loads configuration from environment with sensible defaults.
// Precedence: explicit env var > .env file (if loaded by caller) > default.
func Load() Config {
	cfg := Config{}
	cfg.APIBaseURL = getEnv("API_BASE_URL", "http://localhost:5001/api")
	cfg.HTTPTimeout = ParseDuration("HTTP_TIMEOUT", 30*time.Second)
	cfg.OutputDir = getEnv("PDF_OUTPUT_DIR", ".")
	cfg.Env = getEnv("APP_ENV", "development")
	cfg.Debug = ParseBool("DEBUG", false)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ParseDuration reads an env var as a duration with default.
func ParseDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("invalid duration for %s: %s", key, v)
			return def
		}
		return d
	}
	return def
}

// ParseBool reads an env var as bool with default.
func ParseBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid boolean for %s: %s", key, v)
			return def
		}
		return b
	}
	return def
}
