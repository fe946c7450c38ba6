package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"khata/internal/aggregate"
	"khata/internal/classify"
	"khata/internal/classify/gemini"
	"khata/internal/config"
	apphttp "khata/internal/http"
	"khata/internal/ingest"
	applog "khata/internal/log"
	"khata/internal/storage"
	"khata/internal/storage/memory"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Choose data backend (default: memory).
	var store apphttp.Store
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		store = repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		store = memory.New()
		logger.Info("Initialized memory backend")
	}

	// The model provider is optional; without an API key classification
	// runs on the rule-based path only.
	opts := []classify.Option{classify.WithTimeout(cfg.ProviderTimeout)}
	if cfg.GeminiAPIKey != "" {
		provider, err := gemini.New(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("Failed to initialize Gemini provider", "error", err)
			os.Exit(1)
		}
		defer provider.Close()
		opts = append(opts, classify.WithProvider(provider))
		logger.Info("Gemini provider initialized", "model", cfg.GeminiModel)
	} else {
		logger.Info("Model provider disabled - no GEMINI_API_KEY provided")
	}

	classifier := classify.New(opts...)
	ingester := ingest.New(classifier, store)
	aggregator := aggregate.New(store)

	srv := apphttp.NewServer(":"+cfg.Port, classifier, ingester, aggregator, store, logger)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting khata server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
