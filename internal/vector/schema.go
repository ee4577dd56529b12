// Package vector manages the Weaviate class that mirrors candidate
// embeddings when VECTOR_BACKEND=weaviate.
package vector

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

const CandidateClass = "CandidateProfile"

// SchemaClient is the subset of the Weaviate schema API used by EnsureSchema.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

func candidateProperties() []*models.Property {
	return []*models.Property{
		{Name: "candidateId", DataType: []string{"string"}},
		{Name: "primaryPosition", DataType: []string{"text"}},
		{Name: "availabilityStatus", DataType: []string{"string"}},
		{Name: "verificationTier", DataType: []string{"string"}},
		{Name: "updatedAt", DataType: []string{"date"}},
	}
}

// EnsureSchema creates the candidate class, or adds properties missing from
// an older version of it. Vectors are supplied by the worker, so the class
// has no vectorizer.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, CandidateClass)
	if err != nil {
		return err
	}

	properties := candidateProperties()
	if !exists {
		return client.CreateClass(ctx, &models.Class{
			Class:             CandidateClass,
			Description:       "Embedded candidate profile",
			Vectorizer:        "none",
			VectorIndexConfig: map[string]interface{}{"distance": "cosine"},
			Properties:        properties,
		})
	}

	class, err := client.GetClass(ctx, CandidateClass)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(class.Properties))
	for _, p := range class.Properties {
		have[p.Name] = true
	}
	for _, p := range properties {
		if have[p.Name] {
			continue
		}
		if err := client.AddProperty(ctx, CandidateClass, p); err != nil {
			return err
		}
	}
	return nil
}

// ClientAdapter exposes a *weaviate.Client as a SchemaClient.
type ClientAdapter struct {
	client *weaviate.Client
}

func NewClientAdapter(client *weaviate.Client) *ClientAdapter {
	return &ClientAdapter{client: client}
}

func (a *ClientAdapter) ClassExists(ctx context.Context, className string) (bool, error) {
	return a.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (a *ClientAdapter) CreateClass(ctx context.Context, class *models.Class) error {
	return a.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (a *ClientAdapter) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return a.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (a *ClientAdapter) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return a.client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}
