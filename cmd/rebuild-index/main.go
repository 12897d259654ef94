// Command rebuild-index replaces the vector index with a fresh build from the
// Q&A source file. The API server launches it as a subprocess; it can also be
// run by hand after curating the source file.
//
// Exit code 0 means the index was rebuilt; nonzero means the previous index
// was left in place (or the rebuild aborted partway, leaving an empty index
// that readers treat as "no results").
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimbusgpu/askbot/internal/config"
	"github.com/nimbusgpu/askbot/internal/ingest"
	"github.com/nimbusgpu/askbot/internal/ollama"
	"github.com/nimbusgpu/askbot/internal/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogging(cfg.LogLevel)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var embedder ingest.Embedder
	switch cfg.Provider {
	case config.ProviderOpenAI:
		embedder = openai.NewClient(cfg.OpenAIAPIKey,
			openai.WithEmbeddingModel(cfg.EmbeddingModel),
			openai.WithDimensions(cfg.EmbeddingDimensions),
		)
	default:
		embedder = ollama.NewEmbeddingClient(ollama.New(cfg.OllamaBaseURL), cfg.EmbeddingModel)
	}

	count, err := ingest.Run(ctx, ingest.Params{
		IndexDir:      cfg.IndexDir,
		SourcePath:    cfg.SourcePath,
		Embedder:      embedder,
		MaxConcurrent: cfg.EmbedMaxConcurrent,
		RateLimit:     cfg.EmbedRateLimit,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("Rebuild failed", "error", err)
		return 1
	}

	logger.Info("Rebuild complete", "records", count, "index_dir", cfg.IndexDir)

	return 0
}

func setupLogging(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}
