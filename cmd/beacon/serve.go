package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/beacon/internal/access"
	"github.com/MikeSquared-Agency/beacon/internal/anthropic"
	"github.com/MikeSquared-Agency/beacon/internal/api"
	"github.com/MikeSquared-Agency/beacon/internal/config"
	"github.com/MikeSquared-Agency/beacon/internal/governance"
	"github.com/MikeSquared-Agency/beacon/internal/hermes"
	"github.com/MikeSquared-Agency/beacon/internal/llm"
	"github.com/MikeSquared-Agency/beacon/internal/narrative"
	"github.com/MikeSquared-Agency/beacon/internal/processor"
	"github.com/MikeSquared-Agency/beacon/internal/session"
	"github.com/MikeSquared-Agency/beacon/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion and report API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	logger := slog.Default()

	logger.Info("beacon starting", "port", cfg.Port, "version", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Governance corpus
	corpus, err := governance.Load(cfg.CorpusDir)
	if err != nil {
		return fmt.Errorf("load governance corpus: %w", err)
	}
	logger.Info("governance corpus loaded", "terms", len(corpus.ForbiddenTerms), "exemplars", corpus.ExemplarCount())

	// Database
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("database connected")

	// Generative service
	completer, err := newCompleter(cfg)
	if err != nil {
		return err
	}
	model := llm.NewThrottled(completer, cfg.LLMRPS)
	logger.Info("llm client ready", "provider", cfg.LLMProvider, "rps", cfg.LLMRPS)

	// Code throttling: Redis when shared across instances, memory otherwise
	var limiter access.Limiter
	if cfg.RedisAddr != "" {
		rl, err := access.NewRedisLimiter(ctx, cfg.RedisAddr, cfg.RateLimit, cfg.RateWindow)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rl.Close()
		limiter = rl
		logger.Info("redis rate limiter ready", "addr", cfg.RedisAddr)
	} else {
		limiter = access.NewMemoryLimiter(cfg.RateLimit, cfg.RateWindow)
		logger.Info("in-memory rate limiter ready")
	}

	// NATS/Hermes is optional; events are dropped without it
	var bus hermes.Publisher
	if cfg.NatsURL != "" {
		client, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer client.Close()
		bus = client
		logger.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		logger.Warn("NATS not configured, domain events disabled")
	}

	validator := narrative.NewValidator(corpus, model, cfg.LLMTimeout, logger)
	generator := narrative.NewGenerator(db, model, validator, narrative.Timeouts{LLM: cfg.LLMTimeout, Store: cfg.StoreTimeout}, logger)

	sessions := session.NewStore()
	reaper := session.NewReaper(sessions, cfg.SessionTTL, cfg.ReapInterval, logger)

	proc := processor.New(
		access.NewResolver(limiter, db, logger),
		sessions,
		db,
		generator,
		hermes.NewNotifier(bus, logger),
		cfg.StoreTimeout,
		logger,
	)

	if cfg.APIToken == "" {
		logger.Warn("BEACON_API_TOKEN not set, report routes are unauthenticated")
	}
	srv := api.NewServer(cfg.Port, cfg.APIToken, proc, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reaper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		return nil
	})

	logger.Info("beacon ready", "port", cfg.Port)
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("beacon stopped")
	return nil
}

func newCompleter(cfg config.Config) (llm.Completer, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required")
		}
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required")
		}
		return llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}
