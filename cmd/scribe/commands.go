package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/scribe/internal/config"
	"github.com/MikeSquared-Agency/scribe/internal/notion"
	"github.com/MikeSquared-Agency/scribe/internal/store"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := setupLogging(cfg.LogLevel)

			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			db, err := store.New(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info("schema up to date")
			return nil
		},
	}
}

func summarizeCmd() *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "summarize <session-id>",
		Short: "Summarize a session and print the markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id %q: %w", args[0], err)
			}

			cfg := config.Load()
			logger := setupLogging(cfg.LogLevel)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if !publish {
				sum, err := a.sessions.Summarize(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sum.Markdown)
				return nil
			}

			page, err := a.sessions.Publish(cmd.Context(), id)
			var partial *notion.PartialPublishError
			if errors.As(err, &partial) {
				fmt.Fprintf(cmd.OutOrStdout(), "incomplete page: %s\n", partial.URL)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), page.URL)
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "also publish the summary to Notion")
	return cmd
}
