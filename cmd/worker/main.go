package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/config"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/database"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/embedding"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/extraction"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/intake"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/memory"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/storage"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	extractor, err := buildExtractor(cfg.Extraction)
	if err != nil {
		slog.Error("failed to build extractor", "error", err)
		os.Exit(1)
	}

	var embedder embedding.Embedder
	if cfg.Embedding.Enabled && cfg.Embedding.OpenAIKey != "" {
		embedder = embedding.NewOpenAIEmbedder(cfg.Embedding.OpenAIKey, cfg.Embedding.Model)
	}

	w := worker.New(
		worker.Config{
			PollInterval:      cfg.Worker.PollInterval,
			BatchSize:         cfg.Worker.BatchSize,
			Concurrency:       cfg.Worker.Concurrency,
			MaxAttempts:       cfg.Worker.MaxAttempts,
			BaseRetryDelay:    cfg.Worker.BaseRetryDelay,
			MaxRetryDelay:     cfg.Worker.MaxRetryDelay,
			ExtractionTimeout: cfg.Extraction.Timeout,
			StaleAfter:        cfg.Worker.StaleAfter,
		},
		intake.NewPostgresStore(db),
		memory.NewPostgresStore(db),
		storage.NewSupabaseStore(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket),
		extractor,
		embedder,
	)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func buildExtractor(cfg config.ExtractionConfig) (extraction.Extractor, error) {
	primary, err := newProvider(cfg.Provider, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.FallbackProvider == "" || cfg.FallbackProvider == cfg.Provider {
		return primary, nil
	}

	fallback, err := newProvider(cfg.FallbackProvider, cfg)
	if err != nil {
		return nil, fmt.Errorf("fallback provider: %w", err)
	}
	return extraction.NewFallbackExtractor(primary, fallback), nil
}

func newProvider(name string, cfg config.ExtractionConfig) (extraction.Extractor, error) {
	switch name {
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		return extraction.NewAnthropicExtractor(cfg.AnthropicKey, cfg.Model), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		return extraction.NewOpenAIExtractor(cfg.OpenAIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", name)
	}
}
