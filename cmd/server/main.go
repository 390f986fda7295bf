package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"relay-backend/internal/config"
	"relay-backend/internal/database"
	"relay-backend/internal/handlers"
	"relay-backend/internal/middleware"
	"relay-backend/internal/repository"
	"relay-backend/internal/router"
	"relay-backend/internal/services"
	"relay-backend/internal/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "relay",
		Short:         "Authenticated chat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	rootCmd.AddCommand(newServeCmd(), newMigrateCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func setupLogger(cfg *config.Config) {
	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))
}

func serve(ctx context.Context) error {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	setupLogger(cfg)
	slog.Info("starting chat relay", "env", cfg.Env, "provider", cfg.CompletionProvider, "history_backend", cfg.HistoryBackend)

	// ──── Step 2: Open History Store ────
	var store repository.HistoryStore
	switch cfg.HistoryBackend {
	case config.HistoryBackendPostgres:
		if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
			return errors.Wrap(err, "applying migrations")
		}
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "connecting to postgres")
		}
		defer pool.Close()
		store = repository.NewChatRepo(pool)
		slog.Info("postgres connected")
	default:
		db, err := database.OpenBolt(cfg.BoltPath)
		if err != nil {
			return errors.Wrap(err, "opening bolt store")
		}
		defer db.Close()
		store = repository.NewBoltChatRepo(db)
		slog.Info("bolt store opened", "path", cfg.BoltPath)
	}

	// ──── Step 3: Optional Redis (cache, updates) ────
	var (
		publisher services.UpdatePublisher
		wsHub     *websocket.Hub
	)
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connecting to redis")
		}
		defer redisClients.Close()

		store = repository.NewCachedHistory(store, redisClients.Cache, cfg.HistoryCacheTTL)
		publisher = services.NewRedisPublisher(redisClients.Cache)
		wsHub = websocket.NewHub(websocket.NewRedisUpdates(redisClients.PubSub), jwtAuth, cfg.FrontendURL)
		slog.Info("redis connected", "cache_ttl", cfg.HistoryCacheTTL)
	}

	// ──── Step 4: Completion Provider ────
	var provider services.CompletionClient
	switch cfg.CompletionProvider {
	case config.ProviderGemini:
		gemini, err := services.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.CompletionSystemPrompt)
		if err != nil {
			return errors.Wrap(err, "initializing gemini client")
		}
		defer gemini.Close()
		provider = gemini
	default:
		provider = services.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.CompletionSystemPrompt)
	}
	completion := services.NewLimitedClient(provider, cfg.CompletionProvider, cfg.CompletionConcurrency, cfg.CompletionTimeout)
	slog.Info("completion client ready", "provider", cfg.CompletionProvider, "concurrency", cfg.CompletionConcurrency)

	// ──── Step 5: Relay + HTTP ────
	relay := services.NewRelayService(completion, store, publisher, cfg.MaxMessageLength, cfg.HistoryTimeout)
	chatHandler := handlers.NewChatHandler(relay, handlers.MaxBodyBytes(cfg.MaxMessageLength))
	r := router.New(jwtAuth, chatHandler, wsHub, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.CompletionTimeout + cfg.HistoryTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		slog.Info("shutting down")
		if wsHub != nil {
			wsHub.Close()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("chat relay ready", "addr", server.Addr, "ws_enabled", wsHub != nil)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return errors.Wrap(err, "http server")
	}
	<-shutdownDone
	return nil
}
