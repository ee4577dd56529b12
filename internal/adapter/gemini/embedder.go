package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultEmbeddingModel = "gemini-embedding-001"

type Embedder struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewEmbedder connects to the Gemini API. When dimensions is positive,
// longer vectors are truncated to that size and re-normalized.
func NewEmbedder(ctx context.Context, apiKey, model string, dimensions int, opts ...option.ClientOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	client, err := genai.NewClient(ctx, append(opts, option.WithAPIKey(apiKey))...)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model, dimensions: dimensions}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	slog.DebugContext(ctx, "embedding content", "model", e.model, "length", len(text))
	em := e.client.EmbeddingModel(e.model)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "error", err)
		return nil, err
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding received")
	}
	return e.fit(res.Embedding.Values)
}

// EmbedBatch embeds all texts in a single batchEmbedContents call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		slog.ErrorContext(ctx, "batch embedding failed", "error", err, "count", len(texts))
		return nil, err
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(res.Embeddings), len(texts))
	}
	out := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding received at index %d", i)
		}
		if out[i], err = e.fit(emb.Values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}

func (e *Embedder) fit(v []float32) ([]float32, error) {
	if e.dimensions <= 0 || len(v) == e.dimensions {
		return v, nil
	}
	if len(v) < e.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(v), e.dimensions)
	}
	out := make([]float32, e.dimensions)
	copy(out, v[:e.dimensions])
	var norm float64
	for _, x := range out {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return out, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range out {
		out[i] *= scale
	}
	return out, nil
}
