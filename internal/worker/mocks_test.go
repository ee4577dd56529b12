package worker_test

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"crewmatch/apps/backend/features/queue"
	"crewmatch/apps/backend/internal/domain"
)

// Mocks

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockBatchEmbedder struct{ MockEmbedder }

func (m *MockBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockQueue struct{ mock.Mock }

func (m *MockQueue) ClaimBatch(ctx context.Context, n int) ([]queue.Item, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]queue.Item), args.Error(1)
}

func (m *MockQueue) Touch(ctx context.Context, item queue.Item) error {
	return m.Called(ctx, item.ID).Error(0)
}

func (m *MockQueue) Complete(ctx context.Context, item queue.Item) error {
	args := m.Called(ctx, item.ID)
	return args.Error(0)
}

func (m *MockQueue) Fail(ctx context.Context, item queue.Item, cause error) (queue.Outcome, error) {
	args := m.Called(ctx, item, cause)
	return args.Get(0).(queue.Outcome), args.Error(1)
}

func (m *MockQueue) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

type MockStore struct{ mock.Mock }

func (m *MockStore) GetCandidateBundle(ctx context.Context, id string) (*domain.CandidateBundle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CandidateBundle), args.Error(1)
}

func (m *MockStore) GetOpportunity(ctx context.Context, id string) (*domain.Opportunity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Opportunity), args.Error(1)
}

func (m *MockStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockStore) SaveCandidateEmbedding(ctx context.Context, id string, vec []float32, text string) error {
	args := m.Called(ctx, id, vec, text)
	return args.Error(0)
}

func (m *MockStore) SaveOpportunityEmbedding(ctx context.Context, id string, vec []float32, text string) error {
	args := m.Called(ctx, id, vec, text)
	return args.Error(0)
}

func (m *MockStore) ReplaceCVChunks(ctx context.Context, documentID string, chunks []domain.CVChunkRecord) error {
	args := m.Called(ctx, documentID, chunks)
	return args.Error(0)
}

type MockMirror struct{ mock.Mock }

func (m *MockMirror) UpsertCandidate(ctx context.Context, c domain.Candidate, vec []float32) error {
	args := m.Called(ctx, c, vec)
	return args.Error(0)
}

type countingWaker struct{ n atomic.Int32 }

func (w *countingWaker) Wake() { w.n.Add(1) }
