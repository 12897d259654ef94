package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nimbusgpu/askbot/internal/api/handlers"
	"github.com/nimbusgpu/askbot/internal/api/middleware"
	"github.com/nimbusgpu/askbot/internal/config"
	"github.com/nimbusgpu/askbot/internal/index"
	"github.com/nimbusgpu/askbot/internal/ledger"
	"github.com/nimbusgpu/askbot/internal/observability"
	"github.com/nimbusgpu/askbot/internal/ollama"
	"github.com/nimbusgpu/askbot/internal/openai"
	"github.com/nimbusgpu/askbot/internal/repository"
	"github.com/nimbusgpu/askbot/internal/service"
	"github.com/nimbusgpu/askbot/pkg/database"
)

const queryEmbeddingCacheSize = 256

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Configure slog with the log level from config
	setupLogging(cfg.LogLevel)
	logger := slog.Default()

	// Initialize the chat log database
	db, err := database.Open(cfg.ChatDBPath)
	if err != nil {
		slog.Error("Failed to open chat log database", "error", err, "path", cfg.ChatDBPath)
		os.Exit(1)
	}
	defer db.Close()

	chatLogsRepo := repository.NewChatLogsRepository(db)
	if err := chatLogsRepo.Init(ctx); err != nil {
		slog.Error("Failed to initialize chat log schema", "error", err)
		os.Exit(1)
	}

	// Initialize model provider clients
	embeddingClient, generationClient := buildProviderClients(cfg)
	slog.Info("Model provider configured",
		"provider", cfg.Provider,
		"embedding_model", cfg.EmbeddingModel,
		"generation_model", cfg.GenerationModel,
	)

	queryCache, err := lru.New[string, []float32](queryEmbeddingCacheSize)
	if err != nil {
		slog.Error("Failed to create query embedding cache", "error", err)
		os.Exit(1)
	}

	// Initialize services
	answerService := service.NewAnswerService(service.AnswerServiceParams{
		EmbeddingClient:  embeddingClient,
		GenerationClient: generationClient,
		OpenIndex: func() (service.QAIndex, error) {
			return index.Open(cfg.IndexDir)
		},
		TopK:           cfg.TopK,
		ScoreThreshold: cfg.ScoreThreshold,
		QueryCache:     queryCache,
		Logger:         logger,
	})

	dashboardService := service.NewDashboardService(service.DashboardServiceParams{
		ChatLogsRepo: chatLogsRepo,
		Ledger:       ledger.New(cfg.CollectedPath),
		SourcePath:   cfg.SourcePath,
		Logger:       logger,
	})

	rebuildLauncher := service.NewRebuildLauncher(cfg.RebuildBin, cfg.RebuildLogPath, logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	chatHandler := handlers.NewChatHandler(answerService, chatLogsRepo, logger)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	rebuildHandler := handlers.NewRebuildHandler(rebuildLauncher)

	// Set up public endpoints (no authentication required)
	publicMux := http.NewServeMux()
	publicMux.HandleFunc("GET /health", healthHandler.Check)
	publicMux.HandleFunc("POST /api/chat", chatHandler.Chat)

	// Set up dashboard endpoints (authentication required when API_KEY is set)
	dashboardMux := http.NewServeMux()
	dashboardMux.HandleFunc("GET /api/dashboard/daily_stats", dashboardHandler.DailyStats)
	dashboardMux.HandleFunc("GET /api/dashboard/category_stats", dashboardHandler.CategoryStats)
	dashboardMux.HandleFunc("GET /api/dashboard/missed_questions", dashboardHandler.MissedQuestions)
	dashboardMux.HandleFunc("GET /api/dashboard/all_questions", dashboardHandler.AllQuestions)
	dashboardMux.HandleFunc("POST /api/dashboard/update_answer", dashboardHandler.UpdateAnswer)
	dashboardMux.HandleFunc("GET /api/dashboard/qa_library", dashboardHandler.QALibrary)
	dashboardMux.HandleFunc("POST /api/dashboard/rebuild_rag", rebuildHandler.Rebuild)
	dashboardMux.HandleFunc("GET /api/dashboard/rebuild_jobs/{id}", rebuildHandler.JobStatus)

	var dashboardHTTP http.Handler = dashboardMux
	if cfg.APIKey != "" {
		dashboardHTTP = middleware.Auth(cfg.APIKey)(dashboardHTTP)
	} else {
		slog.Warn("API_KEY not set, dashboard endpoints are unauthenticated")
	}

	// Combine both handlers
	mainMux := http.NewServeMux()
	mainMux.Handle("/api/dashboard/", dashboardHTTP)
	mainMux.Handle("/", publicMux)

	// Order matters: CORS wraps Auth so OPTIONS preflight requests bypass authentication,
	// RequestID runs first so every log line carries the request_id.
	var handler http.Handler = mainMux
	handler = middleware.MaxBody(cfg.MaxRequestBodyBytes)(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // generation can be slow on large models
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// buildProviderClients constructs the embedding and generation clients for
// the configured provider.
func buildProviderClients(cfg *config.Config) (service.EmbeddingClient, service.GenerationClient) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		client := openai.NewClient(cfg.OpenAIAPIKey,
			openai.WithEmbeddingModel(cfg.EmbeddingModel),
			openai.WithChatModel(cfg.GenerationModel),
			openai.WithDimensions(cfg.EmbeddingDimensions),
		)

		return client, client
	default:
		client := ollama.New(cfg.OllamaBaseURL)

		return ollama.NewEmbeddingClient(client, cfg.EmbeddingModel),
			ollama.NewGenerationClient(client, cfg.GenerationModel)
	}
}

// setupLogging configures slog with the specified log level
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

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := observability.NewRequestContextHandler(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(slog.New(handler))
}
