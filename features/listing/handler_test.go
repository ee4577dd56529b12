package listing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crewmatch/apps/backend/features/listing"
	"crewmatch/apps/backend/internal/apperr"
	"crewmatch/apps/backend/internal/domain"
)

type MockStore struct{ mock.Mock }

func (m *MockStore) GetCandidate(ctx context.Context, id string) (*domain.Candidate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Candidate), args.Error(1)
}

func (m *MockStore) ListOpenOpportunities(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Opportunity), args.Error(1)
}

func TestHandler_CandidateListings(t *testing.T) {
	store := new(MockStore)
	h := listing.NewHandler(listing.NewService(store))

	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	store.On("GetCandidate", mock.Anything, "c1").Return(&domain.Candidate{
		ID:                 "c1",
		PrimaryPosition:    "Chief Stewardess",
		SecondaryPositions: []string{"Purser"},
	}, nil)
	store.On("ListOpenOpportunities", mock.Anything, listing.DefaultLimit).Return([]domain.Opportunity{
		{ID: "j1", Title: "Deckhand", PublishedAt: day(9)},
		{ID: "j2", Title: "Second Stewardess", PublishedAt: day(8)},
		{ID: "j3", Title: "Chief Stewardess", PublishedAt: day(1)},
		{ID: "j4", Title: "Purser / Chief Stew", PublishedAt: day(5)},
		{ID: "j5", Title: "Laundry", PublishedAt: day(2)},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/candidates/c1/listings", nil)
	req.SetPathValue("id", "c1")
	w := httptest.NewRecorder()

	h.CandidateListings(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []struct {
			JobID string `json:"job_id"`
			Tier  int    `json:"tier"`
		} `json:"data"`
		Meta struct {
			Count int            `json:"count"`
			Tiers map[string]int `json:"tiers"`
		} `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))

	var order []string
	for _, l := range body.Data {
		order = append(order, l.JobID)
	}
	assert.Equal(t, []string{"j4", "j3", "j2", "j5", "j1"}, order)
	assert.Equal(t, 5, body.Meta.Count)
	assert.Equal(t, map[string]int{"1": 2, "2": 2, "3": 1}, body.Meta.Tiers)
}

func TestHandler_CandidateListings_NoPositions(t *testing.T) {
	store := new(MockStore)
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	store.On("GetCandidate", mock.Anything, "c2").Return(&domain.Candidate{ID: "c2"}, nil)
	store.On("ListOpenOpportunities", mock.Anything, listing.DefaultLimit).Return([]domain.Opportunity{
		{ID: "j1", Title: "Deckhand", PublishedAt: day(2)},
		{ID: "j2", Title: "Chef", PublishedAt: day(9)},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/candidates/c2/listings", nil)
	req.SetPathValue("id", "c2")
	w := httptest.NewRecorder()

	listing.NewHandler(listing.NewService(store)).CandidateListings(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []struct {
			JobID string `json:"job_id"`
			Tier  int    `json:"tier"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "j2", body.Data[0].JobID)
	assert.Equal(t, "j1", body.Data[1].JobID)
	assert.Equal(t, 3, body.Data[0].Tier)
	assert.Equal(t, 3, body.Data[1].Tier)
}

func TestHandler_CandidateListings_Errors(t *testing.T) {
	t.Run("candidate not found", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetCandidate", mock.Anything, "nope").Return(nil, apperr.NotFound("candidate", "nope"))

		req := httptest.NewRequest(http.MethodGet, "/candidates/nope/listings", nil)
		req.SetPathValue("id", "nope")
		w := httptest.NewRecorder()

		listing.NewHandler(listing.NewService(store)).CandidateListings(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetCandidate", mock.Anything, "c1").Return(&domain.Candidate{ID: "c1", PrimaryPosition: "Chef"}, nil)
		store.On("ListOpenOpportunities", mock.Anything, 50).Return(nil, errors.New("db down"))

		req := httptest.NewRequest(http.MethodGet, "/candidates/c1/listings?limit=50", nil)
		req.SetPathValue("id", "c1")
		w := httptest.NewRecorder()

		listing.NewHandler(listing.NewService(store)).CandidateListings(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandler_Classify(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantTier   float64
		wantDept   string
	}{
		{"exact", `{"job_title":"Chief Stewardess","sought_positions":["chief-stewardess"]}`, http.StatusOK, 1, "interior"},
		{"same department", `{"job_title":"Bosun","sought_positions":["Deckhand"]}`, http.StatusOK, 2, "deck"},
		{"other", `{"job_title":"Sous Chef","sought_positions":["Deckhand"]}`, http.StatusOK, 3, "galley"},
		{"missing title", `{"job_title":"  ","sought_positions":["Deckhand"]}`, http.StatusBadRequest, 0, ""},
		{"invalid json", `nope`, http.StatusBadRequest, 0, ""},
	}
	h := listing.NewHandler(listing.NewService(new(MockStore)))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/tier", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			h.Classify(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body map[string]map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantTier, body["data"]["tier"])
			assert.Equal(t, tt.wantDept, body["data"]["job_department"])
		})
	}
}
