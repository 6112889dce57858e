package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"trendboard/internal/config"
	"trendboard/internal/logging"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var catalogFile string

	rootCmd := &cobra.Command{
		Use:           "trendboard",
		Short:         "Sino-Japanese student migration statistics API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "indicator catalog YAML (overrides CATALOG_FILE)")

	setup := func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		if catalogFile != "" {
			cfg.CatalogFile = catalogFile
		}
		log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(log)
		return cfg, log, nil
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the HTTP API and run the weekly sync scheduler.",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := setup()
				if err != nil {
					return err
				}
				return report(log, runServe(cmd.Context(), cfg, log))
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Run one manual sync and exit.",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := setup()
				if err != nil {
					return err
				}
				return report(log, runSync(cmd.Context(), cfg, log))
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit.",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := setup()
				if err != nil {
					return err
				}
				return report(log, runMigrate(cmd.Context(), cfg, log))
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cobra.OnFinalize(stop)
	rootCmd.SetContext(ctx)

	return rootCmd
}

func report(log *slog.Logger, err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("command failed", "error", err)
		return err
	}
	return nil
}
