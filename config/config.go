// Package config loads gateway configuration from the environment and an
// optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all gateway configuration values.
type Config struct {
	// Server
	Addr            string
	Env             string
	GracefulTimeout time.Duration
	DrainTimeout    time.Duration

	// Key-value store (cache + locks + rate-limit counters)
	RedisURL string

	// Authentication
	APIKeyHeader string
	AdminKeys    map[string]bool
	UserKeys     map[string]bool
	DebugMode    bool // DEBUG_MODE — when neither key list is configured, any presented key is treated as admin

	// Rate limiting
	RateLimitRequests int // capacity C, tokens per window
	RateLimitWindow   time.Duration

	// Cache
	CacheTTL            time.Duration
	SimilarityThreshold float64
	ScanBatchSize       int64

	// Single-flight lock
	LockTTL         time.Duration
	LockPollInitial time.Duration
	LockPollMax     time.Duration

	// Generator / embedding providers
	DefaultProvider      string
	EmbeddingDimension   int
	EmbeddingURL         string
	EmbeddingAPIKey      string
	GeneratorAttemptTO   time.Duration
	GeneratorMaxAttempts int
	GeneratorBackoff     time.Duration

	// Per-connector credentials and base URLs
	GroqAPIKey       string
	GroqBaseURL      string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	MistralAPIKey    string
	MistralBaseURL   string
	TogetherAPIKey   string
	TogetherBaseURL  string
	OllamaBaseURL    string

	// Circuit breaker
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration

	// Request deadline (pipeline-wide)
	RequestDeadline time.Duration

	// Body limits
	MaxBodyBytes int64

	LogLevel string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	lockTTL := time.Duration(getEnvInt("LOCK_TTL_SEC", 30)) * time.Second

	cfg := &Config{
		Addr:            getEnv("GATEWAY_ADDR", ":8080"),
		Env:             getEnv("ENV", "development"),
		GracefulTimeout: time.Duration(getEnvInt("GATEWAY_GRACEFUL_TIMEOUT_SEC", 15)) * time.Second,
		DrainTimeout:    time.Duration(getEnvInt("GATEWAY_DRAIN_TIMEOUT_SEC", 10)) * time.Second,

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		APIKeyHeader: getEnv("API_KEY_HEADER", "X-API-Key"),
		AdminKeys:    parseKeySet(getEnv("ADMIN_API_KEYS", "")),
		UserKeys:     parseKeySet(getEnv("USER_API_KEYS", "")),
		DebugMode:    getEnvBool("DEBUG_MODE", false),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(getEnvInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheTTL:            time.Duration(getEnvInt("CACHE_TTL_SEC", 3600)) * time.Second,
		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.75),
		ScanBatchSize:       int64(getEnvInt("CACHE_SCAN_BATCH", 100)),

		LockTTL:         lockTTL,
		LockPollInitial: time.Duration(getEnvInt("LOCK_POLL_INITIAL_MS", 100)) * time.Millisecond,
		LockPollMax:     time.Duration(getEnvInt("LOCK_POLL_MAX_MS", 2000)) * time.Millisecond,

		DefaultProvider:      getEnv("DEFAULT_PROVIDER", "groq"),
		EmbeddingDimension:   getEnvInt("EMBEDDING_DIMENSION", 384),
		EmbeddingURL:         getEnv("EMBEDDING_URL", ""),
		EmbeddingAPIKey:      getEnv("EMBEDDING_API_KEY", ""),
		GeneratorAttemptTO:   time.Duration(getEnvInt("GENERATOR_ATTEMPT_TIMEOUT_SEC", 30)) * time.Second,
		GeneratorMaxAttempts: getEnvInt("GENERATOR_MAX_ATTEMPTS", 3),
		GeneratorBackoff:     time.Duration(getEnvInt("GENERATOR_INITIAL_BACKOFF_MS", 1000)) * time.Millisecond,

		GroqAPIKey:       getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:      getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		MistralAPIKey:    getEnv("MISTRAL_API_KEY", ""),
		MistralBaseURL:   getEnv("MISTRAL_BASE_URL", "https://api.mistral.ai/v1"),
		TogetherAPIKey:   getEnv("TOGETHER_API_KEY", ""),
		TogetherBaseURL:  getEnv("TOGETHER_BASE_URL", "https://api.together.xyz/v1"),
		OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434/v1"),

		BreakerFailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerCooldown:         time.Duration(getEnvInt("BREAKER_COOLDOWN_SEC", 60)) * time.Second,

		RequestDeadline: lockTTL + 5*time.Second,

		MaxBodyBytes: int64(getEnvInt("GATEWAY_MAX_BODY_BYTES", 64*1024)),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func parseKeySet(raw string) map[string]bool {
	set := make(map[string]bool)
	for _, k := range strings.Split(raw, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			set[k] = true
		}
	}
	return set
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
