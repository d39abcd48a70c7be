package main

import (
	"context"
	"log/slog"

	"github.com/MikeSquared-Agency/scribe/internal/config"
	"github.com/MikeSquared-Agency/scribe/internal/hermes"
	"github.com/MikeSquared-Agency/scribe/internal/llm"
	"github.com/MikeSquared-Agency/scribe/internal/metrics"
	"github.com/MikeSquared-Agency/scribe/internal/notion"
	"github.com/MikeSquared-Agency/scribe/internal/session"
	"github.com/MikeSquared-Agency/scribe/internal/store"
	"github.com/MikeSquared-Agency/scribe/internal/summarizer"
	"github.com/MikeSquared-Agency/scribe/internal/tokens"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *store.Store
	metrics  *metrics.Metrics
	llm      *llm.Client
	tokens   *tokens.Counter
	notion   *notion.Writer
	events   *hermes.Client
	sessions *session.Service
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected")

	a := &app{cfg: cfg, logger: logger, db: db, metrics: metrics.New(nil)}

	a.llm = llm.NewClient(llm.Options{
		BaseURL:           cfg.LLMBaseURL,
		APIKey:            cfg.OpenAIAPIKey,
		Model:             cfg.Model,
		RequestsPerSecond: cfg.LLMRatePerSecond,
	}, a.metrics, logger)

	a.tokens = tokens.NewCounter(cfg.Model)
	if !a.tokens.Precise() {
		logger.Warn("no tokenizer for model, using heuristic token counts", "model", cfg.Model)
	}
	logger.Info("llm client ready", "base_url", cfg.LLMBaseURL, "model", cfg.Model, "encoding", a.tokens.Encoding())

	sum := summarizer.New(a.llm, a.tokens, summarizer.Options{
		Params:      llm.Params{Temperature: cfg.SummaryTemp, TopP: cfg.SummaryTopP},
		ChunkTokens: cfg.SummaryChunkTokens,
		Concurrency: cfg.SummaryConcurrency,
	}, a.metrics, logger)

	if cfg.NotionEnabled() {
		a.notion = notion.NewWriter(cfg.NotionAPIKey, cfg.NotionParentPageID, a.metrics, logger)
		logger.Info("notion writer ready")
	} else {
		logger.Warn("notion not configured, publishing disabled")
	}

	if cfg.NatsURL != "" {
		a.events, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("NATS connected", "url", cfg.NatsURL)
	}

	a.sessions = session.NewService(db, sum, a.notion, a.events, logger)
	return a, nil
}

func (a *app) Close() {
	a.events.Close()
	a.db.Close()
}
