package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "scribe",
		Short:        "Chat sessions with streamed replies, markdown summaries and Notion export",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(serveCmd(), migrateCmd(), summarizeCmd())

	if err := root.Execute(); err != nil {
		slog.Error("scribe failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
