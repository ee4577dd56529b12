package worker

import (
	"context"
	"time"

	"crewmatch/apps/backend/features/queue"
	"crewmatch/apps/backend/internal/domain"
)

type Queue interface {
	ClaimBatch(ctx context.Context, n int) ([]queue.Item, error)
	Touch(ctx context.Context, item queue.Item) error
	Complete(ctx context.Context, item queue.Item) error
	Fail(ctx context.Context, item queue.Item, cause error) (queue.Outcome, error)
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ProfileStore reads the entities behind queue items and persists the
// vectors computed for them.
type ProfileStore interface {
	GetCandidateBundle(ctx context.Context, id string) (*domain.CandidateBundle, error)
	GetOpportunity(ctx context.Context, id string) (*domain.Opportunity, error)
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	SaveCandidateEmbedding(ctx context.Context, id string, vec []float32, text string) error
	SaveOpportunityEmbedding(ctx context.Context, id string, vec []float32, text string) error
	ReplaceCVChunks(ctx context.Context, documentID string, chunks []domain.CVChunkRecord) error
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by providers that embed several inputs in
// one call. Vectors come back in input order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorMirror receives candidate vectors after they are stored in Postgres.
type VectorMirror interface {
	UpsertCandidate(ctx context.Context, c domain.Candidate, vec []float32) error
}
