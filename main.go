package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crewmatch/apps/backend/internal/app"
	"crewmatch/apps/backend/internal/config"
	"crewmatch/apps/backend/internal/logger"
)

var (
	debug   bool
	textLog bool

	rootCmd = &cobra.Command{
		Use:           "crewmatch",
		Short:         "crewmatch embeds candidates and opportunities and matches them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVar(&textLog, "text", false, "plain text logs instead of JSON")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}
	var h slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if textLog {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	l := slog.New(logger.NewContextHandler(h))
	slog.SetDefault(l)
	return l
}

// run bootstraps infrastructure and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	application, err := app.New(ctx, cfg, deps.DB, deps.Weaviate, deps.NSQProducer, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	logger.Info("crewmatch starting",
		"api", cfg.EnableAPI,
		"embedding_worker", cfg.EnableEmbeddingWorker,
		"vector_backend", cfg.VectorBackend)

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
