package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"NewsAtlas/internal/app"
	"NewsAtlas/internal/config"
	"NewsAtlas/internal/logging"
)

type builder func(ctx context.Context, cfg config.Config, log *slog.Logger) (*app.Application, error)

var (
	cfg    config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "newsatlas",
	Short:         "Geo-tagged news sentiment pipeline",
	Long:          "NewsAtlas polls news feeds, classifies sentiment and themes per country, and serves the results to a map dashboard.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// A missing .env is normal outside local development.
		_ = godotenv.Load()

		configFile, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			loaded.Logging.Level = level
		}
		cfg = loaded
		logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: $NEWSATLAS_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		roleCmd("enrich", "Consume the news queue, classify items and store the results", app.NewEnricher),
		roleCmd("feed", "Poll the configured feeds and publish items to the news queue", app.NewFeeder),
		roleCmd("serve", "Serve the read-only dashboard API", app.NewDashboard),
		roleCmd("all", "Run feeder, enricher and dashboard in one process", app.NewStandalone),
	)
}

func roleCmd(use, short string, build builder) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := build(ctx, cfg, logger)
			if err != nil {
				return err
			}

			logger.Info("starting", "role", use)
			if err := application.Run(ctx); err != nil {
				logger.Error("application stopped", "role", use, "error", err)
				return err
			}
			logger.Info("stopped", "role", use)
			return nil
		},
	}
}
