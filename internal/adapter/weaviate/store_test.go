package weaviate_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"crewmatch/apps/backend/features/profile"
	adapter "crewmatch/apps/backend/internal/adapter/weaviate"
	"crewmatch/apps/backend/internal/domain"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) *adapter.Store {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(ts.Close)

	client, err := weaviate.NewClient(weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"})
	require.NoError(t, err)
	return adapter.NewStore(client)
}

func graphQLResponse(w http.ResponseWriter, data map[string]interface{}) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func TestObjectID_Deterministic(t *testing.T) {
	assert.Equal(t, adapter.ObjectID("c1"), adapter.ObjectID("c1"))
	assert.NotEqual(t, adapter.ObjectID("c1"), adapter.ObjectID("c2"))
}

func TestStore_UpsertCandidate(t *testing.T) {
	var calls []string
	store := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/v1/batch/objects":
			assert.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{})
		case "/v1/objects":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "CandidateProfile", body["class"])
			assert.Equal(t, adapter.ObjectID("c1"), body["id"])
			assert.Len(t, body["vector"], 2)
			props := body["properties"].(map[string]interface{})
			assert.Equal(t, "c1", props["candidateId"])
			assert.Equal(t, "Deckhand", props["primaryPosition"])
			assert.Equal(t, "Gold", props["verificationTier"])
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": body["id"]})
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	})

	c := domain.Candidate{ID: "c1", PrimaryPosition: "Deckhand", AvailabilityStatus: "available", VerificationTier: "Gold"}
	err := store.UpsertCandidate(context.Background(), c, []float32{0.1, 0.2})

	require.NoError(t, err)
	assert.Equal(t, []string{"DELETE /v1/batch/objects", "POST /v1/objects"}, calls)
}

func TestStore_UpsertCandidate_DeleteFails(t *testing.T) {
	store := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEqual(t, "/v1/objects", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := store.UpsertCandidate(context.Background(), domain.Candidate{ID: "c1"}, []float32{0.1})
	assert.ErrorContains(t, err, "clear candidate c1")
}

func TestStore_SearchCandidateIDs(t *testing.T) {
	var query string
	store := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &body))
		query = body["query"].(string)

		graphQLResponse(w, map[string]interface{}{
			"Get": map[string]interface{}{
				"CandidateProfile": []interface{}{
					map[string]interface{}{"candidateId": "c2", "_additional": map[string]interface{}{"distance": 0.1}},
					map[string]interface{}{"candidateId": "c1", "_additional": map[string]interface{}{"distance": 0.25}},
					map[string]interface{}{"_additional": map[string]interface{}{"distance": 0.3}},
				},
			},
		})
	})

	hits, err := store.SearchCandidateIDs(context.Background(), []float32{0.1, 0.2}, profile.SearchQuery{
		Threshold:         0.6,
		Limit:             30,
		VerificationTiers: []string{"Gold", "Silver"},
	})

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c2", hits[0].ID)
	assert.InDelta(t, 0.9, hits[0].Similarity, 1e-9)
	assert.Equal(t, "c1", hits[1].ID)
	assert.InDelta(t, 0.75, hits[1].Similarity, 1e-9)

	assert.Contains(t, query, "nearVector")
	assert.Contains(t, query, "30")
	assert.Contains(t, query, "verificationTier")
	assert.NotContains(t, query, "availabilityStatus")
}

func TestStore_SearchCandidateIDs_GraphQLError(t *testing.T) {
	store := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": []interface{}{map[string]interface{}{"message": "class not found"}},
		})
	})

	_, err := store.SearchCandidateIDs(context.Background(), []float32{0.1}, profile.SearchQuery{Threshold: 0.5, Limit: 10})
	assert.ErrorContains(t, err, "class not found")
}

func TestStore_CountCandidates(t *testing.T) {
	t.Run("count", func(t *testing.T) {
		store := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
			graphQLResponse(w, map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"CandidateProfile": []interface{}{
						map[string]interface{}{"meta": map[string]interface{}{"count": 42.0}},
					},
				},
			})
		})

		count, err := store.CountCandidates(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 42, count)
	})

	t.Run("empty class", func(t *testing.T) {
		store := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
			graphQLResponse(w, map[string]interface{}{
				"Aggregate": map[string]interface{}{"CandidateProfile": []interface{}{}},
			})
		})

		count, err := store.CountCandidates(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
