package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-chat/internal/config"
	"document-chat/internal/models"
)

// NewEmbedder creates a langchaingo embedder for the configured provider
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        llmConfig.Provider,
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch llmConfig.Provider {
	case config.ProviderOpenAI:
		llm, err := openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithEmbeddingModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai embedding client: %w", err)
		}
		client = llm
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama embedding client: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", llmConfig.Provider)
	}

	return embeddings.NewEmbedder(client)
}

// Embedder is the subset of langchaingo's embeddings.Embedder used for queries.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// QueryEmbedder embeds query and chunk text and checks the vector size.
type QueryEmbedder struct {
	embedder  Embedder
	dimension int
}

func NewQueryEmbedder(embedder Embedder, dimension int) *QueryEmbedder {
	return &QueryEmbedder{embedder: embedder, dimension: dimension}
}

// EmbedQuery returns the embedding of text. Every failure, including a vector of the
// wrong size, is reported as models.ErrEmbedding.
func (e *QueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", models.ErrEmbedding)
	}
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}
	if e.dimension > 0 && len(vec) != e.dimension {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", models.ErrEmbedding, len(vec), e.dimension)
	}
	return vec, nil
}

func (e *QueryEmbedder) Dimension() int {
	return e.dimension
}
