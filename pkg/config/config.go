// Package config loads Synapse service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the service reads at startup. Credentials are not
// validated here; each client constructor checks the one it needs, so tests
// and partial deployments construct only what they use.
type Config struct {
	// Slack
	SlackBotToken string

	// Gemini
	GeminiAPIKey string
	Model        string
	MaxTokens    int
	Temperature  float32

	// GitHub
	GitHubToken   string
	DefaultRepo   string
	DefaultLabels []string

	// Redis
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	CacheTTL      time.Duration

	// Usage tracking
	TrackingDir        string
	TrackingExperiment string
}

// Load reads a .env file if present, then the environment. It never fails;
// missing values fall back to defaults or stay empty.
func Load() Config {
	_ = godotenv.Load()

	model := envFirst("GEMINI_MODEL", "GOOGLE_MODEL")
	if model == "" {
		model = "gemini-3-pro"
	}

	return Config{
		SlackBotToken: os.Getenv("SLACK_BOT_TOKEN"),

		GeminiAPIKey: envFirst("GEMINI_API_KEY", "GOOGLE_API_KEY"),
		Model:        model,
		MaxTokens:    envInt("LLM_MAX_TOKENS", 500),
		Temperature:  float32(envFloat("LLM_TEMPERATURE", 0.3)),

		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		DefaultRepo:   os.Getenv("GITHUB_DEFAULT_REPO"),
		DefaultLabels: splitCSV(envOr("GITHUB_DEFAULT_LABELS", "bug,enhancement,documentation,question")),

		RedisHost:     envOr("REDIS_HOST", "localhost"),
		RedisPort:     envInt("REDIS_PORT", 6379),
		RedisDB:       envInt("REDIS_DB", 0),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		CacheTTL:      time.Duration(envInt("CACHE_TTL", 3600)) * time.Second,

		TrackingDir:        envOr("TRACKING_DIR", "./data/tracking"),
		TrackingExperiment: envOr("TRACKING_EXPERIMENT", "synapse"),
	}
}

// RedisAddr returns the host:port address for the Redis client.
func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFirst(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trim := strings.TrimSpace(p); trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
