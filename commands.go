package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crewmatch/apps/backend/features/listing"
	"crewmatch/apps/backend/features/queue"
	"crewmatch/apps/backend/internal/app"
	"crewmatch/apps/backend/internal/config"
	"crewmatch/apps/backend/internal/domain"
	"crewmatch/apps/backend/internal/text"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, plus embedding workers when ENABLE_EMBEDDING_WORKER is set",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := newLogger()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return run(cmd.Context(), cfg, logger)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run embedding workers only",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := newLogger()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg.EnableAPI = false
		cfg.EnableEmbeddingWorker = true
		return run(cmd.Context(), cfg, logger)
	},
}

var enqueuePriority int

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <candidate|job|cv_document> <id>...",
	Short: "Queue entities for embedding",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg.VectorBackend = config.VectorBackendPgvector

		ctx := cmd.Context()
		deps, err := app.Bootstrap(ctx, cfg)
		if err != nil {
			return err
		}
		defer deps.Close()

		svc := queue.NewService(queue.NewPostgresRepo(deps.DB), deps.NSQProducer, queue.Options{
			MaxAttempts:  cfg.QueueMaxAttempts,
			RetryBackoff: cfg.RetryBackoff(),
		})
		entityType := domain.EntityType(args[0])
		for _, id := range args[1:] {
			itemID, created, err := svc.Enqueue(ctx, entityType, id, enqueuePriority)
			if err != nil {
				return fmt.Errorf("enqueue %s %s: %w", entityType, id, err)
			}
			logger.Info("enqueued", "entity_type", entityType, "entity_id", id, "queue_item_id", itemID, "created", created)
		}
		return nil
	},
}

var tierCmd = &cobra.Command{
	Use:   "tier <job title> <sought position>...",
	Short: "Classify a job title against the positions a candidate seeks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := listing.Classify(args[0], args[1:])
		if err != nil {
			return err
		}
		return printJSON(cmd, c)
	},
}

var chunkOpts = text.DefaultChunkOptions()

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>",
	Short: "Split a CV text file into sections and print the chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, text.ChunkCV(string(raw), chunkOpts))
	},
}

func init() {
	enqueueCmd.Flags().IntVarP(&enqueuePriority, "priority", "p", queue.DefaultPriority, "queue priority, lower runs first")
	chunkCmd.Flags().IntVar(&chunkOpts.MaxChunkSize, "max-chunk-size", chunkOpts.MaxChunkSize, "maximum characters per chunk")
	chunkCmd.Flags().IntVar(&chunkOpts.MinChunkSize, "min-chunk-size", chunkOpts.MinChunkSize, "minimum characters before a split point is accepted")
	chunkCmd.Flags().IntVar(&chunkOpts.OverlapSize, "overlap", chunkOpts.OverlapSize, "characters shared by consecutive chunks")
	chunkCmd.Flags().IntVar(&chunkOpts.MaxChunks, "max-chunks", chunkOpts.MaxChunks, "maximum chunks per document")

	rootCmd.AddCommand(serveCmd, workerCmd, enqueueCmd, tierCmd, chunkCmd)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
