package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"golang.org/x/sync/errgroup"

	"crewmatch/apps/backend/features/listing"
	"crewmatch/apps/backend/features/match"
	"crewmatch/apps/backend/features/profile"
	"crewmatch/apps/backend/features/queue"
	"crewmatch/apps/backend/features/stats"
	"crewmatch/apps/backend/internal/adapter/reranker"
	wstore "crewmatch/apps/backend/internal/adapter/weaviate"
	"crewmatch/apps/backend/internal/config"
	"crewmatch/apps/backend/internal/middleware"
	"crewmatch/apps/backend/internal/settings"
	"crewmatch/apps/backend/internal/worker"
)

// Publisher is satisfied by *nsq.Producer.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// Options overrides the providers built from config. Tests use it to run
// the app without network access.
type Options struct {
	Embedder  worker.Embedder
	Completer match.Completer
}

type App struct {
	Handler http.Handler
	Queue   *queue.Service
	Workers worker.Pool

	cfg     *config.Config
	closers []io.Closer
}

func New(ctx context.Context, cfg *config.Config, db *sql.DB, wClient *weaviate.Client, pub Publisher, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}
	a := &App{cfg: cfg}

	embedder := opts.Embedder
	if embedder == nil {
		e, closer, err := newEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
		embedder = e
		a.addCloser(closer)
	}
	completer := opts.Completer
	if completer == nil {
		c, closer, err := newCompleter(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		completer = c
		a.addCloser(closer)
	}

	// Feature: Settings
	settingsService := settings.NewService(settings.NewPostgresRepo(db))
	settingsHandler := settings.NewHandler(settingsService)

	// Feature: Queue
	profiles := profile.NewPostgresRepo(db)
	a.Queue = queue.NewService(queue.NewPostgresRepo(db), pub, queue.Options{
		MaxAttempts:  cfg.QueueMaxAttempts,
		RetryBackoff: cfg.RetryBackoff(),
	})
	queueHandler := queue.NewHandler(a.Queue)

	// Vector search runs in Postgres unless a Weaviate client was supplied.
	var (
		searcher match.CandidateSearcher = profiles
		mirror   worker.VectorMirror
		index    stats.IndexCounter
	)
	if wClient != nil {
		store := wstore.NewStore(wClient)
		searcher = match.NewHydratingSearcher(store, profiles)
		mirror = store
		index = store
	}

	// Feature: Match
	matchLog, err := match.NewFileLogger(cfg.MatchLogPath)
	if err != nil {
		slog.Warn("failed to create match logger, falling back to stdout", "error", err)
		matchLog = match.NewLogger(os.Stdout)
	}
	orchestrator := match.NewOrchestrator(embedder, searcher, match.NewLLMReranker(completer), cfg.ProviderTimeout(), matchLog)
	if cfg.ShortlistProvider != "" {
		shortlister, err := reranker.NewClient(cfg.ShortlistProvider, cfg.ShortlistAPIKey, cfg.ProviderTimeout())
		if err != nil {
			a.Close()
			return nil, err
		}
		orchestrator.WithShortlister(shortlister)
	}
	matchHandler := match.NewHandler(orchestrator, profiles, settingsService)

	listingHandler := listing.NewHandler(listing.NewService(profiles))
	statsHandler := stats.NewHandler(a.Queue, profiles, index)

	a.Workers = worker.NewPool(cfg.WorkerConcurrency, a.Queue, profiles, embedder, mirror, worker.Options{
		BatchSize:       cfg.WorkerBatchSize,
		PollInterval:    cfg.PollInterval(),
		ProviderTimeout: cfg.ProviderTimeout(),
		StaleAfter:      cfg.StaleAfter(),
	})

	route := func(h http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(h)
	}

	mux := http.NewServeMux()

	mux.Handle("POST /embedding-queue", route(queueHandler.Enqueue))
	mux.Handle("GET /embedding-queue/failed", route(queueHandler.ListFailed))
	mux.Handle("POST /embedding-queue/{id}/retry", route(queueHandler.Retry))

	mux.Handle("POST /matches", route(matchHandler.MatchBrief))
	mux.Handle("POST /opportunities/{id}/matches", route(matchHandler.MatchOpportunity))

	mux.Handle("GET /candidates/{id}/listings", route(listingHandler.CandidateListings))
	mux.Handle("POST /tier", route(listingHandler.Classify))

	mux.Handle("GET /settings", route(settingsHandler.GetSettings))
	mux.Handle("PUT /settings", route(settingsHandler.UpdateSettings))

	mux.Handle("GET /stats", route(statsHandler.GetStats))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	a.Handler = enableCORS(mux)
	return a, nil
}

func (a *App) addCloser(c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

// Close releases provider clients.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close provider client", "error", err)
		}
	}
	a.closers = nil
}

// Run serves the API and runs the embedding workers as enabled by config,
// until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if !a.cfg.EnableAPI && !a.cfg.EnableEmbeddingWorker {
		return errors.New("nothing to run: both ENABLE_API and ENABLE_EMBEDDING_WORKER are false")
	}
	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.EnableAPI {
		g.Go(func() error { return a.Serve(gctx) })
	}
	if a.cfg.EnableEmbeddingWorker {
		g.Go(func() error { return a.RunWorkers(gctx) })
	}
	return g.Wait()
}

func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// RunWorkers runs the worker pool. When NSQ is reachable, queue notices
// wake idle workers early; without it they fall back to polling.
func (a *App) RunWorkers(ctx context.Context) error {
	consumer, err := a.connectNudges()
	if err != nil {
		slog.Warn("queue notices unavailable, workers will poll only", "error", err)
	} else {
		defer consumer.Stop()
	}

	slog.Info("embedding workers starting", "workers", len(a.Workers), "batch_size", a.cfg.WorkerBatchSize)
	return a.Workers.Run(ctx)
}

func (a *App) connectNudges() (*nsq.Consumer, error) {
	consumer, err := nsq.NewConsumer(config.TopicEmbeddingQueued, config.ChannelEmbeddingWorker, nsq.NewConfig())
	if err != nil {
		return nil, err
	}
	consumer.SetLoggerLevel(nsq.LogLevelWarning)
	consumer.AddHandler(worker.NewNudgeConsumer(a.Workers))

	if a.cfg.NSQLookupd != "" {
		err = consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd)
	} else {
		err = consumer.ConnectToNSQD(a.cfg.NSQDHost)
	}
	if err != nil {
		consumer.Stop()
		return nil, err
	}
	return consumer, nil
}

// enableCORS wraps the whole mux; method-scoped patterns would otherwise
// answer preflight requests with 405.
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
