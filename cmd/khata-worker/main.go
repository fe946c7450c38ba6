package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"khata/internal/amqp"
	"khata/internal/classify"
	"khata/internal/classify/gemini"
	"khata/internal/config"
	"khata/internal/core"
	"khata/internal/ingest"
	applog "khata/internal/log"
	"khata/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting khata-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// The worker always persists to SQLite; the memory backend would lose
	// everything on restart.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

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

	ingester := ingest.New(classify.New(opts...), repo)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := amqpClient.ConsumeRawMessageBatches(ctx, cfg.IngestBatchSize, func(batch []core.RawMessage) error {
			return ingester.HandleBatch(ctx, batch)
		})
		if err != nil && err != context.Canceled {
			logger.Error("Message consumption failed", "error", err)
		}
		cancel()
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give the consumer time to finish the in-flight delivery.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
