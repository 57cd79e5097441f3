// Package config handles loading and validating configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names for the upstream API keys.
const (
	EnvRapidAPIKey   = "RAPIDAPI_KEY"
	EnvPerplexityKey = "PERPLEXITY_API_KEY"
)

// ErrMissingCredentials is matched by every MissingCredentialsError.
var ErrMissingCredentials = errors.New("missing api credentials")

// MissingCredentialsError lists the API key variables that are not set.
type MissingCredentialsError struct {
	Keys []string
}

func (e *MissingCredentialsError) Error() string {
	if len(e.Keys) == 1 {
		return e.Keys[0] + " not configured"
	}
	return "Missing API keys: " + strings.Join(e.Keys, ", ")
}

// Is lets errors.Is(err, ErrMissingCredentials) succeed.
func (e *MissingCredentialsError) Is(target error) bool {
	return target == ErrMissingCredentials
}

// Config holds all configuration values for the wwatcher CLI.
type Config struct {
	// Files
	HistoryPath         string
	ProvidersConfigPath string

	// Upstream credentials
	RapidAPIKey      string
	PerplexityAPIKey string

	// Research assistant
	PerplexityURL   string
	PerplexityModel string
	ResearchPause   time.Duration

	// Outbound HTTP
	HTTPTimeout      time.Duration
	RapidAPIRPS      float64
	RapidAPIBurst    int
	FetchConcurrency int

	// Reporting
	TopMarkets int

	// Anomaly thresholds
	WhaleValueUSD     float64
	LargeSize         float64
	HeavyHourValueUSD float64
	BurstCount        int
	BurstWindow       time.Duration

	// Logging
	LogLevel string
	LogFile  string

	// Metrics
	MetricsTextfile string
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	// godotenv never overrides variables that are already set.
	if envFile := os.Getenv("WWATCHER_ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		HistoryPath:         resolveHomePath(getEnv("WWATCHER_HISTORY_PATH", defaultHistoryPath())),
		ProvidersConfigPath: resolveHomePath(getEnv("PROVIDERS_CONFIG", "providers.json")),

		RapidAPIKey:      getEnv(EnvRapidAPIKey, ""),
		PerplexityAPIKey: getEnv(EnvPerplexityKey, ""),

		PerplexityURL:   getEnv("PERPLEXITY_URL", "https://api.perplexity.ai/chat/completions"),
		PerplexityModel: getEnv("PERPLEXITY_MODEL", "llama-3.1-sonar-small-128k-online"),
		ResearchPause:   time.Duration(getEnvInt("RESEARCH_PAUSE_MS", 500)) * time.Millisecond,

		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		RapidAPIRPS:      getEnvFloat("RAPIDAPI_RPS", 5),
		RapidAPIBurst:    getEnvInt("RAPIDAPI_BURST", 5),
		FetchConcurrency: getEnvInt("FETCH_CONCURRENCY", 8),

		TopMarkets: getEnvInt("TOP_MARKETS", 10),

		WhaleValueUSD:     getEnvFloat("WHALE_VALUE_USD", 100000),
		LargeSize:         getEnvFloat("LARGE_SIZE", 100000),
		HeavyHourValueUSD: getEnvFloat("HEAVY_HOUR_VALUE_USD", 200000),
		BurstCount:        getEnvInt("BURST_COUNT", 3),
		BurstWindow:       time.Duration(getEnvInt("BURST_WINDOW_MINUTES", 60)) * time.Minute,

		LogLevel: getEnv("LOG_LEVEL", "WARN"),
		LogFile:  getEnv("LOG_FILE", ""),

		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.HistoryPath == "" {
		return fmt.Errorf("WWATCHER_HISTORY_PATH is required")
	}

	if c.ResearchPause < 0 {
		return fmt.Errorf("RESEARCH_PAUSE_MS must not be negative")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive")
	}

	if c.RapidAPIRPS <= 0 {
		return fmt.Errorf("RAPIDAPI_RPS must be positive")
	}

	if c.RapidAPIBurst < 1 {
		return fmt.Errorf("RAPIDAPI_BURST must be at least 1")
	}

	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be at least 1")
	}

	if c.TopMarkets < 1 {
		return fmt.Errorf("TOP_MARKETS must be at least 1")
	}

	if c.BurstCount < 2 {
		return fmt.Errorf("BURST_COUNT must be at least 2")
	}

	if c.BurstWindow <= 0 {
		return fmt.Errorf("BURST_WINDOW_MINUTES must be positive")
	}

	return nil
}

// RequireKeys returns a MissingCredentialsError naming every listed key
// variable that has no value, or nil when all are present.
func (c *Config) RequireKeys(names ...string) error {
	var missing []string
	for _, name := range names {
		var value string
		switch name {
		case EnvRapidAPIKey:
			value = c.RapidAPIKey
		case EnvPerplexityKey:
			value = c.PerplexityAPIKey
		}
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingCredentialsError{Keys: missing}
	}
	return nil
}

// MaskedRapidAPIKey returns the API key with most characters hidden for logging.
func (c *Config) MaskedRapidAPIKey() string {
	return maskSecret(c.RapidAPIKey)
}

// MaskedPerplexityKey returns the API key with most characters hidden for logging.
func (c *Config) MaskedPerplexityKey() string {
	return maskSecret(c.PerplexityAPIKey)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func defaultHistoryPath() string {
	return filepath.Join("~", ".config", "wwatcher", "alert_history.jsonl")
}

// resolveHomePath expands a leading ~ to the user's home directory.
func resolveHomePath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[1:])
	}
	return p
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
