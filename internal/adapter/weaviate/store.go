package weaviate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"crewmatch/apps/backend/features/profile"
	"crewmatch/apps/backend/internal/domain"
	"crewmatch/apps/backend/internal/vector"
)

// candidateNamespace seeds the object ids so one candidate always maps to
// the same Weaviate object.
var candidateNamespace = uuid.MustParse("6f0b8c7e-2d4a-4c61-9a53-0c2f9b7d1e85")

// Store mirrors candidate embeddings into Weaviate and serves the
// nearest-neighbour lookup used by matching.
type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func ObjectID(candidateID string) string {
	return uuid.NewSHA1(candidateNamespace, []byte(candidateID)).String()
}

func (s *Store) UpsertCandidate(ctx context.Context, c domain.Candidate, vec []float32) error {
	if err := s.DeleteCandidate(ctx, c.ID); err != nil {
		return fmt.Errorf("clear candidate %s: %w", c.ID, err)
	}

	_, err := s.client.Data().Creator().
		WithClassName(vector.CandidateClass).
		WithID(ObjectID(c.ID)).
		WithProperties(map[string]interface{}{
			"candidateId":        c.ID,
			"primaryPosition":    c.PrimaryPosition,
			"availabilityStatus": c.AvailabilityStatus,
			"verificationTier":   c.VerificationTier,
			"updatedAt":          time.Now().UTC().Format(time.RFC3339),
		}).
		WithVector(vec).
		Do(ctx)
	return err
}

func (s *Store) DeleteCandidate(ctx context.Context, candidateID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.CandidateClass).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"candidateId"}).
			WithOperator(filters.Equal).
			WithValueString(candidateID)).
		Do(ctx)
	return err
}

// SearchCandidateIDs returns candidate ids ordered by similarity. Weaviate
// reports cosine distance, so the threshold becomes a maximum distance.
func (s *Store) SearchCandidateIDs(ctx context.Context, vec []float32, q profile.SearchQuery) ([]domain.CandidateHit, error) {
	near := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vec).
		WithDistance(float32(1 - q.Threshold))

	get := s.client.GraphQL().Get().
		WithClassName(vector.CandidateClass).
		WithNearVector(near).
		WithLimit(q.Limit).
		WithFields(
			graphql.Field{Name: "candidateId"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
		)
	if where := searchFilter(q); where != nil {
		get = get.WithWhere(where)
	}

	res, err := get.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var hits []domain.CandidateHit
	data, _ := res.Data["Get"].(map[string]interface{})
	objects, _ := data[vector.CandidateClass].([]interface{})
	for _, o := range objects {
		props, ok := o.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := props["candidateId"].(string)
		if id == "" {
			continue
		}
		hit := domain.CandidateHit{ID: id}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				hit.Similarity = 1 - d
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func searchFilter(q profile.SearchQuery) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	if len(q.VerificationTiers) > 0 {
		operands = append(operands, filters.Where().
			WithPath([]string{"verificationTier"}).
			WithOperator(filters.ContainsAny).
			WithValueString(q.VerificationTiers...))
	}
	if len(q.AvailabilityStatuses) > 0 {
		operands = append(operands, filters.Where().
			WithPath([]string{"availabilityStatus"}).
			WithOperator(filters.ContainsAny).
			WithValueString(q.AvailabilityStatuses...))
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	}
	return filters.Where().WithOperator(filters.And).WithOperands(operands)
}

func (s *Store) CountCandidates(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.CandidateClass).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	data, _ := res.Data["Aggregate"].(map[string]interface{})
	groups, _ := data[vector.CandidateClass].([]interface{})
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}
