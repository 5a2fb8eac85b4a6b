package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Env         string
	DatabaseURL string
	RedisURL    string
	SQLitePath  string
	ConfigDir   string

	// Identity
	SessionSecret      string
	AllowedEmailDomain string

	// Stream sessions
	PageSize      int
	FetchCeiling  int
	WindowSize    int
	EchoTolerance time.Duration
	SubmitRate    float64
	SubmitBurst   int

	// Ops
	MetricsAddr string
	LogLevel    string
	LogStderr   bool
}

// Load reads configuration from environment variables.
// It loads a .env file from the working directory if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Env:                getEnv("ENV", "development"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		ConfigDir:          getEnv("VOID_CONFIG", defaultConfigDir()),
		SessionSecret:      getEnv("SESSION_SECRET", "void-development-secret"),
		AllowedEmailDomain: strings.TrimSpace(os.Getenv("ALLOWED_EMAIL_DOMAIN")),
		PageSize:           getEnvInt("PAGE_SIZE", 10),
		FetchCeiling:       getEnvInt("FETCH_CEILING", 5000),
		WindowSize:         getEnvInt("WINDOW_SIZE", 10),
		EchoTolerance:      getEnvDuration("ECHO_TOLERANCE", time.Minute),
		SubmitRate:         getEnvFloat("SUBMIT_RATE", 5),
		SubmitBurst:        getEnvInt("SUBMIT_BURST", 10),
		MetricsAddr:        os.Getenv("METRICS_ADDR"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogStderr:          getEnv("VOID_LOG_STDERR", "false") == "true",
	}
	cfg.SQLitePath = getEnv("SQLITE_PATH", filepath.Join(cfg.ConfigDir, "void.db"))

	// In production, require shared backends and a real signing secret
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if os.Getenv("SESSION_SECRET") == "" {
			panic("SESSION_SECRET is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// LogFile is where the interactive client writes its log.
func (c *Config) LogFile() string {
	return filepath.Join(c.ConfigDir, "void.log")
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".void"
	}
	return filepath.Join(home, ".void")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f >= 0 {
		return f
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
