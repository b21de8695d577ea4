package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"FrontierDigest/internal/app"
	"FrontierDigest/internal/config"
	"FrontierDigest/internal/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.File)

	root := &cobra.Command{
		Use:   "frontierdigest",
		Short: "Daily AI-frontier digest generator",
		Long:  "frontierdigest fetches configured RSS feeds once a day, curates them with a language model, and renders a static digest site.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default mode: run once, then keep the daily schedule.
			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if err := application.RunOnce(ctx); err != nil {
				logger.Error("initial run failed", "error", err)
			}
			return application.RunScheduled(ctx)
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "once",
		Short: "Run the pipeline once for today and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.RunOnce(cmd.Context())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "schedule",
		Short: "Only run on the daily schedule, without an immediate run",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return application.RunScheduled(ctx)
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
