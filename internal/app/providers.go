package app

import (
	"context"
	"fmt"
	"io"

	"crewmatch/apps/backend/features/match"
	"crewmatch/apps/backend/internal/adapter/gemini"
	"crewmatch/apps/backend/internal/adapter/openai"
	"crewmatch/apps/backend/internal/config"
	"crewmatch/apps/backend/internal/httpauth"
	"crewmatch/apps/backend/internal/worker"
)

const (
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
	defaultOpenAIChatModel      = "gpt-4o-mini"
)

func newEmbedder(ctx context.Context, cfg *config.Config) (worker.Embedder, io.Closer, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderGemini:
		e, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini embedder: %w", err)
		}
		return e, e, nil
	case config.ProviderOpenAI:
		model := cfg.EmbeddingModel
		if model == "" {
			model = defaultOpenAIEmbeddingModel
		}
		return openai.NewEmbedder(openAIClient(cfg), cfg.OpenAIBaseURL, model, cfg.EmbeddingDimensions), nil, nil
	}
	return nil, nil, fmt.Errorf("%w: EMBEDDING_PROVIDER %q", config.ErrInvalid, cfg.EmbeddingProvider)
}

func newCompleter(ctx context.Context, cfg *config.Config) (match.Completer, io.Closer, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		g, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini generator: %w", err)
		}
		return g, g, nil
	case config.ProviderOpenAI:
		model := cfg.LLMModel
		if model == "" {
			model = defaultOpenAIChatModel
		}
		return openai.NewCompleter(openAIClient(cfg), cfg.OpenAIBaseURL, model), nil, nil
	}
	return nil, nil, fmt.Errorf("%w: LLM_PROVIDER %q", config.ErrInvalid, cfg.LLMProvider)
}

// openAIClient prefers the refresh-token grant when it is configured.
func openAIClient(cfg *config.Config) *httpauth.Client {
	var tokens httpauth.TokenSource = httpauth.StaticToken(cfg.OpenAIAPIKey)
	if cfg.OpenAIRefreshConfigured() {
		tokens = httpauth.NewRefreshTokenSource(cfg.OpenAITokenURL, cfg.OpenAIClientID, cfg.OpenAIRefreshToken)
	}
	return httpauth.NewClient(tokens, cfg.ProviderTimeout())
}
