package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	HistoryBackendPostgres = "postgres"
	HistoryBackendBolt     = "bolt"
)

const defaultSystemPrompt = "You're an AI assistant that helps social media users grow with insights."

type Config struct {
	// Server
	Port string
	Env  string

	// JWT
	JWTSecret string

	// Completion provider
	CompletionProvider     string
	CompletionSystemPrompt string
	CompletionTimeout      time.Duration
	CompletionConcurrency  int
	MaxMessageLength       int

	// OpenAI
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Gemini AI
	GeminiAPIKey string
	GeminiModel  string

	// History storage
	HistoryBackend  string
	HistoryTimeout  time.Duration
	DatabaseURL     string
	BoltPath        string
	HistoryCacheTTL time.Duration

	// Redis
	RedisURL string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                   getEnvOrDefault("PORT", "5000"),
		Env:                    getEnvOrDefault("ENV", "development"),
		JWTSecret:              mustGetEnv("JWT_SECRET"),
		CompletionProvider:     getEnvOrDefault("COMPLETION_PROVIDER", ProviderOpenAI),
		CompletionSystemPrompt: getEnvOrDefault("COMPLETION_SYSTEM_PROMPT", defaultSystemPrompt),
		CompletionTimeout:      getEnvAsDurationOrDefault("COMPLETION_TIMEOUT", 30*time.Second),
		CompletionConcurrency:  getEnvAsIntOrDefault("COMPLETION_CONCURRENT_REQUESTS", 5),
		MaxMessageLength:       getEnvAsIntOrDefault("MAX_MESSAGE_LENGTH", 4000),
		OpenAIBaseURL:          getEnvOrDefault("OPENAI_BASE_URL", ""),
		OpenAIModel:            getEnvOrDefault("OPENAI_MODEL", "gpt-4"),
		GeminiModel:            getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		HistoryBackend:         getEnvOrDefault("HISTORY_BACKEND", HistoryBackendPostgres),
		HistoryTimeout:         getEnvAsDurationOrDefault("HISTORY_TIMEOUT", 5*time.Second),
		BoltPath:               getEnvOrDefault("BOLT_PATH", "./data/chat.bolt"),
		HistoryCacheTTL:        getEnvAsDurationOrDefault("HISTORY_CACHE_TTL", 5*time.Minute),
		RedisURL:               getEnvOrDefault("REDIS_URL", ""),
		FrontendURL:            getEnvOrDefault("FRONTEND_URL", "*"),
	}

	switch cfg.CompletionProvider {
	case ProviderOpenAI:
		cfg.OpenAIAPIKey = mustGetEnv("OPENAI_API_KEY")
	case ProviderGemini:
		cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
	default:
		panic(fmt.Sprintf("unsupported COMPLETION_PROVIDER %q", cfg.CompletionProvider))
	}

	switch cfg.HistoryBackend {
	case HistoryBackendPostgres:
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	case HistoryBackendBolt:
	default:
		panic(fmt.Sprintf("unsupported HISTORY_BACKEND %q", cfg.HistoryBackend))
	}

	return cfg
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
