// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Provider names for embedding and generation backends.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config holds all application configuration.
type Config struct {
	Port                string
	APIKey              string // optional; when set, dashboard endpoints require it
	LogLevel            string
	MaxRequestBodyBytes int64

	// Storage paths. IndexDir is the vector index directory shared with the
	// rebuild process; ChatDBPath holds the chat log SQLite database.
	DataDir       string
	IndexDir      string
	ChatDBPath    string
	SourcePath    string
	CollectedPath string

	// Rebuild subprocess invocation
	RebuildBin     string
	RebuildLogPath string

	// Model providers
	Provider            string
	OllamaBaseURL       string
	EmbeddingModel      string
	EmbeddingDimensions int
	GenerationModel     string
	OpenAIAPIKey        string

	// Retrieval tuning
	TopK           int
	ScoreThreshold float64

	// Rebuild embedding throughput
	EmbedMaxConcurrent int
	EmbedRateLimit     int // embedding calls per second during rebuild
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// Load reads configuration from environment variables and returns a Config struct.
// It automatically loads .env file if it exists.
// Returns default values for any missing environment variables.
// Path defaults are derived from DATA_DIR so the serving and rebuild processes
// resolve the same index, source file, and ledger without extra settings.
func Load() (*Config, error) {
	// Load .env file if it exists. Skip logging when absent (e.g. env from secrets/parameter store).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	dataDir := getEnv("DATA_DIR", "./data")

	topK := getEnvAsInt("TOP_K", 3)
	if topK <= 0 {
		return nil, errors.New("TOP_K must be a positive integer")
	}

	scoreThreshold := getEnvAsFloat("SCORE_THRESHOLD", 1.2)
	if scoreThreshold <= 0 {
		return nil, errors.New("SCORE_THRESHOLD must be positive")
	}

	embedMaxConcurrent := getEnvAsInt("EMBED_MAX_CONCURRENT", 4)
	if embedMaxConcurrent <= 0 {
		return nil, errors.New("EMBED_MAX_CONCURRENT must be a positive integer")
	}

	embedRateLimit := getEnvAsInt("EMBED_RATE_LIMIT", 10)
	if embedRateLimit <= 0 {
		return nil, errors.New("EMBED_RATE_LIMIT must be a positive integer")
	}

	dimensions := getEnvAsInt("EMBEDDING_DIMENSIONS", 1024)
	if dimensions <= 0 {
		return nil, errors.New("EMBEDDING_DIMENSIONS must be a positive integer")
	}

	provider := getEnv("PROVIDER", ProviderOllama)
	openAIKey := os.Getenv("OPENAI_API_KEY")

	switch provider {
	case ProviderOllama:
	case ProviderOpenAI:
		if openAIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required when PROVIDER=openai")
		}
	default:
		return nil, fmt.Errorf("unsupported PROVIDER %q (expected %q or %q)", provider, ProviderOllama, ProviderOpenAI)
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		APIKey:              os.Getenv("API_KEY"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(getEnvAsInt("MAX_REQUEST_BODY_BYTES", 1<<20)),

		DataDir:       dataDir,
		IndexDir:      getEnv("INDEX_DIR", filepath.Join(dataDir, "qa_index")),
		ChatDBPath:    getEnv("CHAT_DB_PATH", filepath.Join(dataDir, "chat_logs.db")),
		SourcePath:    getEnv("SOURCE_PATH", filepath.Join(dataDir, "qa_source.json")),
		CollectedPath: getEnv("COLLECTED_PATH", filepath.Join(dataDir, "collected_qa.json")),

		RebuildBin:     getEnv("REBUILD_BIN", "rebuild-index"),
		RebuildLogPath: getEnv("REBUILD_LOG_PATH", filepath.Join(dataDir, "rebuild.log")),

		Provider:            provider,
		OllamaBaseURL:       getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "bge-m3"),
		EmbeddingDimensions: dimensions,
		GenerationModel:     getEnv("GENERATION_MODEL", "qwen2.5:14b"),
		OpenAIAPIKey:        openAIKey,

		TopK:           topK,
		ScoreThreshold: scoreThreshold,

		EmbedMaxConcurrent: embedMaxConcurrent,
		EmbedRateLimit:     embedRateLimit,
	}

	return cfg, nil
}
