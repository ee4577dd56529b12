// Package worker drains the embedding queue: it builds embedding text for
// candidates and opportunities, chunks CV documents and stores the vectors
// returned by the embedding provider.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"crewmatch/apps/backend/features/queue"
	"crewmatch/apps/backend/internal/apperr"
	"crewmatch/apps/backend/internal/domain"
	"crewmatch/apps/backend/internal/embedtext"
	"crewmatch/apps/backend/internal/middleware"
	"crewmatch/apps/backend/internal/text"
)

const (
	MinEmbeddingText = 50
	MinCVText        = 100
)

type Options struct {
	ID               string
	BatchSize        int
	PollInterval     time.Duration
	ProviderTimeout  time.Duration
	ChunkConcurrency int
	StaleAfter       time.Duration
	Visibility       domain.Visibility
	MaxTextChars     int
	Chunking         text.ChunkOptions
}

func (o Options) withDefaults() Options {
	if o.ID == "" {
		o.ID = "worker-0"
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = 60 * time.Second
	}
	if o.ChunkConcurrency <= 0 {
		o.ChunkConcurrency = 4
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 15 * time.Minute
	}
	if !o.Visibility.Valid() {
		o.Visibility = domain.VisibilityRecruiter
	}
	if o.Chunking == (text.ChunkOptions{}) {
		o.Chunking = text.DefaultChunkOptions()
	}
	return o
}

type Worker struct {
	queue    Queue
	store    ProfileStore
	embedder Embedder
	mirror   VectorMirror
	builder  *embedtext.Builder
	opts     Options
	wake     chan struct{}
}

func New(q Queue, store ProfileStore, embedder Embedder, opts Options) *Worker {
	opts = opts.withDefaults()
	return &Worker{
		queue:    q,
		store:    store,
		embedder: embedder,
		builder:  embedtext.NewBuilder(opts.MaxTextChars),
		opts:     opts,
		wake:     make(chan struct{}, 1),
	}
}

// WithMirror copies candidate vectors into a secondary index after each save.
func (w *Worker) WithMirror(m VectorMirror) *Worker {
	w.mirror = m
	return w
}

// Wake cuts the current idle sleep short. It never blocks.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run polls the queue until ctx is cancelled. A claimed batch is always
// finished before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	ctx = middleware.WithWorker(ctx, w.opts.ID)
	slog.InfoContext(ctx, "embedding worker started", "batch_size", w.opts.BatchSize, "poll_interval", w.opts.PollInterval)

	poll := time.NewTicker(w.opts.PollInterval)
	defer poll.Stop()
	stale := time.NewTicker(w.opts.StaleAfter)
	defer stale.Stop()

	for {
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "embedding worker stopped")
			return nil
		}

		n, err := w.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "failed to claim queue items", "error", err)
		}
		if n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
		case <-w.wake:
		case <-poll.C:
		case <-stale.C:
			w.releaseStale(ctx)
		}
	}
}

// RunOnce claims one batch and processes every item in it. It returns the
// number of items claimed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	items, err := w.queue.ClaimBatch(ctx, w.opts.BatchSize)
	if err != nil {
		return 0, err
	}
	// Claimed rows are owned by this worker; finish them even if ctx is done.
	detached := context.WithoutCancel(ctx)
	for _, it := range items {
		w.process(detached, it)
	}
	return len(items), nil
}

func (w *Worker) process(ctx context.Context, item queue.Item) {
	ctx = middleware.WithQueueItem(ctx, item.ID)
	start := time.Now()

	// Items wait their turn inside a batch; restart the stale clock before
	// the provider calls.
	if terr := w.queue.Touch(ctx, item); terr != nil {
		if errors.Is(terr, apperr.ErrNotFound) {
			slog.WarnContext(ctx, "queue item claim lost, skipping",
				"entity_type", item.EntityType, "entity_id", item.EntityID)
			return
		}
		slog.ErrorContext(ctx, "failed to refresh queue item", "error", terr)
		return
	}

	err := w.handle(ctx, item)
	if err == nil {
		if cerr := w.queue.Complete(ctx, item); cerr != nil {
			slog.ErrorContext(ctx, "failed to mark queue item completed", "error", cerr)
			return
		}
		slog.InfoContext(ctx, "queue item completed",
			"entity_type", item.EntityType, "entity_id", item.EntityID, "duration", time.Since(start))
		return
	}

	out, ferr := w.queue.Fail(ctx, item, err)
	switch {
	case errors.Is(ferr, apperr.ErrQueueExhausted):
		slog.ErrorContext(ctx, "queue item failed",
			"entity_type", item.EntityType, "entity_id", item.EntityID, "attempts", out.Attempts, "error", err)
	case ferr != nil:
		slog.ErrorContext(ctx, "failed to record queue item failure", "error", ferr, "cause", err)
	default:
		slog.WarnContext(ctx, "queue item will be retried",
			"entity_type", item.EntityType, "entity_id", item.EntityID,
			"attempts", out.Attempts, "max_attempts", out.MaxAttempts, "error", err)
	}
}

func (w *Worker) handle(ctx context.Context, item queue.Item) error {
	switch item.EntityType {
	case domain.EntityCandidate:
		return w.embedCandidate(ctx, item.EntityID)
	case domain.EntityJob:
		return w.embedOpportunity(ctx, item.EntityID)
	case domain.EntityCVDocument:
		return w.chunkDocument(ctx, item.EntityID)
	}
	return apperr.Validation("unknown entity type %q", item.EntityType)
}

func (w *Worker) embedCandidate(ctx context.Context, id string) error {
	bundle, err := w.store.GetCandidateBundle(ctx, id)
	if err != nil {
		return err
	}
	txt := w.builder.Candidate(*bundle, w.opts.Visibility)
	if err := checkLength(txt, MinEmbeddingText); err != nil {
		return err
	}

	vec := bundle.Candidate.Embedding.Vector
	if bundle.Candidate.Embedding.Fresh(txt) {
		slog.DebugContext(ctx, "embedding text unchanged", "candidate_id", id)
	} else {
		if vec, err = w.embed(ctx, txt); err != nil {
			return err
		}
		if err := w.store.SaveCandidateEmbedding(ctx, id, vec, txt); err != nil {
			return err
		}
	}

	if w.mirror != nil {
		if err := w.mirror.UpsertCandidate(ctx, bundle.Candidate, vec); err != nil {
			return fmt.Errorf("mirror candidate %s: %w", id, err)
		}
	}
	return nil
}

func (w *Worker) embedOpportunity(ctx context.Context, id string) error {
	o, err := w.store.GetOpportunity(ctx, id)
	if err != nil {
		return err
	}
	txt := w.builder.Opportunity(*o)
	if err := checkLength(txt, MinEmbeddingText); err != nil {
		return err
	}
	if o.Embedding.Fresh(txt) {
		slog.DebugContext(ctx, "embedding text unchanged", "opportunity_id", id)
		return nil
	}
	vec, err := w.embed(ctx, txt)
	if err != nil {
		return err
	}
	return w.store.SaveOpportunityEmbedding(ctx, id, vec, txt)
}

func (w *Worker) chunkDocument(ctx context.Context, id string) error {
	doc, err := w.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !doc.IsCV() {
		return apperr.Validation("document %s is not a cv (type %q)", id, doc.Type)
	}
	if err := checkLength(doc.ExtractedText, MinCVText); err != nil {
		return err
	}

	chunks := text.ChunkCV(doc.ExtractedText, w.opts.Chunking)
	if len(chunks) == 0 {
		return apperr.Validation("document %s produced no chunks", id)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := w.embedAll(ctx, texts)
	if err != nil {
		return err
	}

	records := make([]domain.CVChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.CVChunkRecord{
			DocumentID:    id,
			ChunkIndex:    c.ChunkIndex,
			Text:          c.Text,
			StartOffset:   c.StartOffset,
			EndOffset:     c.EndOffset,
			SectionType:   string(c.SectionType),
			SectionWeight: c.SectionWeight,
			Vector:        vectors[i],
		}
	}
	if err := w.store.ReplaceCVChunks(ctx, id, records); err != nil {
		return err
	}
	slog.InfoContext(ctx, "cv chunks stored", "document_id", id, "chunks", len(records))
	return nil
}

func (w *Worker) embed(ctx context.Context, txt string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, w.opts.ProviderTimeout)
	defer cancel()

	vec, err := w.embedder.Embed(ctx, txt)
	if err != nil {
		return nil, apperr.EmbeddingProvider(err)
	}
	if len(vec) == 0 {
		return nil, apperr.EmbeddingProvider(errors.New("empty vector"))
	}
	return vec, nil
}

// embedAll uses one batch call when the provider supports it and a bounded
// fan-out of single calls otherwise.
func (w *Worker) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if be, ok := w.embedder.(BatchEmbedder); ok {
		bctx, cancel := context.WithTimeout(ctx, w.opts.ProviderTimeout)
		defer cancel()
		vectors, err := be.EmbedBatch(bctx, texts)
		if err != nil {
			return nil, apperr.EmbeddingProvider(err)
		}
		if len(vectors) != len(texts) {
			return nil, apperr.EmbeddingProvider(fmt.Errorf("got %d vectors for %d inputs", len(vectors), len(texts)))
		}
		for i, v := range vectors {
			if len(v) == 0 {
				return nil, apperr.EmbeddingProvider(fmt.Errorf("empty vector for input %d", i))
			}
		}
		return vectors, nil
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.ChunkConcurrency)
	for i, t := range texts {
		g.Go(func() error {
			v, err := w.embed(gctx, t)
			if err != nil {
				return err
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (w *Worker) releaseStale(ctx context.Context) {
	n, err := w.queue.ReleaseStale(ctx, w.opts.StaleAfter)
	if err != nil {
		slog.ErrorContext(ctx, "failed to release stale queue items", "error", err)
		return
	}
	if n > 0 {
		slog.WarnContext(ctx, "released stale queue items", "count", n)
	}
}

func checkLength(s string, least int) error {
	if n := len(strings.TrimSpace(s)); n < least {
		return apperr.Validation("insufficient text: %d characters, need %d", n, least)
	}
	return nil
}
