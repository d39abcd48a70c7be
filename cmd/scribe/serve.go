package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/scribe/internal/api"
	"github.com/MikeSquared-Agency/scribe/internal/chat"
	"github.com/MikeSquared-Agency/scribe/internal/config"
	"github.com/MikeSquared-Agency/scribe/internal/hermes"
	"github.com/MikeSquared-Agency/scribe/internal/llm"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := setupLogging(cfg.LogLevel)
	logger.Info("scribe starting", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.Migrate(ctx); err != nil {
		return err
	}

	chatSvc := chat.NewService(a.db, chat.LLMStreamer{Client: a.llm}, a.tokens, chat.Options{
		Params:           llm.Params{Temperature: cfg.ChatTemperature, TopP: cfg.ChatTopP},
		MaxContextTokens: cfg.MaxContextTokens,
	}, a.metrics, logger)

	srv := api.NewServer(cfg.Port, cfg.CORSOrigins, a.sessions, chatSvc, a.metrics, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	if err := a.events.Publish(hermes.SubjectAgentRegistered, hermes.AgentRegistered{
		Port:      cfg.Port,
		Model:     cfg.Model,
		Notion:    cfg.NotionEnabled(),
		Timestamp: time.Now().UTC(),
	}); err != nil {
		logger.Warn("failed to publish registration", "error", err)
	}

	logger.Info("scribe ready", "port", cfg.Port)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	logger.Info("scribe stopped")
	return nil
}
