package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"crewmatch/apps/backend/features/queue"
)

type MockQueueCounter struct{ mock.Mock }

func (m *MockQueueCounter) Counts(ctx context.Context) (map[queue.Status]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[queue.Status]int), args.Error(1)
}

type MockEmbeddingCounter struct{ mock.Mock }

func (m *MockEmbeddingCounter) CountEmbedded(ctx context.Context) (int, int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Int(1), args.Error(2)
}

type MockIndexCounter struct{ mock.Mock }

func (m *MockIndexCounter) CountCandidates(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestHandler_GetStats_Table(t *testing.T) {
	counts := map[queue.Status]int{
		queue.StatusPending:    3,
		queue.StatusProcessing: 1,
		queue.StatusCompleted:  40,
		queue.StatusFailed:     2,
	}

	tests := []struct {
		name       string
		withIndex  bool
		setupMocks func(*MockQueueCounter, *MockEmbeddingCounter, *MockIndexCounter)
		wantStatus int
		wantError  bool
		checkBody  func(*testing.T, map[string]interface{})
	}{
		{
			name: "Success",
			setupMocks: func(q *MockQueueCounter, e *MockEmbeddingCounter, i *MockIndexCounter) {
				q.On("Counts", mock.Anything).Return(counts, nil)
				e.On("CountEmbedded", mock.Anything).Return(25, 7, nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				q := data["queue"].(map[string]interface{})
				assert.EqualValues(t, 3, q["pending"])
				assert.EqualValues(t, 2, q["failed"])
				assert.EqualValues(t, 25, data["embedded_candidates"])
				assert.EqualValues(t, 7, data["embedded_opportunities"])
				assert.NotContains(t, data, "indexed_candidates")
			},
		},
		{
			name:      "Success With Index",
			withIndex: true,
			setupMocks: func(q *MockQueueCounter, e *MockEmbeddingCounter, i *MockIndexCounter) {
				q.On("Counts", mock.Anything).Return(counts, nil)
				e.On("CountEmbedded", mock.Anything).Return(25, 7, nil)
				i.On("CountCandidates", mock.Anything).Return(24, nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 24, data["indexed_candidates"])
			},
		},
		{
			name: "Queue Error",
			setupMocks: func(q *MockQueueCounter, e *MockEmbeddingCounter, i *MockIndexCounter) {
				q.On("Counts", mock.Anything).Return(nil, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "Embedding Count Error",
			setupMocks: func(q *MockQueueCounter, e *MockEmbeddingCounter, i *MockIndexCounter) {
				q.On("Counts", mock.Anything).Return(counts, nil)
				e.On("CountEmbedded", mock.Anything).Return(0, 0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name:      "Index Error",
			withIndex: true,
			setupMocks: func(q *MockQueueCounter, e *MockEmbeddingCounter, i *MockIndexCounter) {
				q.On("Counts", mock.Anything).Return(counts, nil)
				e.On("CountEmbedded", mock.Anything).Return(1, 1, nil)
				i.On("CountCandidates", mock.Anything).Return(0, errors.New("weaviate error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mQueue := new(MockQueueCounter)
			mEmb := new(MockEmbeddingCounter)
			mIdx := new(MockIndexCounter)

			tt.setupMocks(mQueue, mEmb, mIdx)

			var idx IndexCounter
			if tt.withIndex {
				idx = mIdx
			}
			h := NewHandler(mQueue, mEmb, idx)
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()

			h.GetStats(w, req)

			resp := w.Result()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]interface{}
			err := json.NewDecoder(resp.Body).Decode(&body)
			assert.NoError(t, err)

			if tt.wantError {
				assert.Contains(t, body, "error")
				errMap := body["error"].(map[string]interface{})
				assert.Equal(t, "INTERNAL_ERROR", errMap["code"])
			} else {
				tt.checkBody(t, body)
			}
		})
	}
}
