package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-chat/internal/config"
	"document-chat/internal/models"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

func TestQueryEmbedder(t *testing.T) {
	ctx := context.Background()

	vec, err := NewQueryEmbedder(stubEmbedder{vec: []float32{1, 2, 3}}, 3).EmbedQuery(ctx, "virus")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)

	_, err = NewQueryEmbedder(stubEmbedder{err: errors.New("429")}, 3).EmbedQuery(ctx, "virus")
	assert.ErrorIs(t, err, models.ErrEmbedding)

	_, err = NewQueryEmbedder(stubEmbedder{vec: []float32{1, 2}}, 3).EmbedQuery(ctx, "virus")
	assert.ErrorIs(t, err, models.ErrEmbedding)

	_, err = NewQueryEmbedder(stubEmbedder{vec: []float32{1}}, 3).EmbedQuery(ctx, "  ")
	assert.ErrorIs(t, err, models.ErrEmbedding)
}

func TestNewEmbedder_Providers(t *testing.T) {
	e, err := NewEmbedder(&config.LLMConfig{Provider: config.ProviderOpenAI, BaseURL: "http://localhost:1/v1", Key: "Bearer sk-test", Model: "text-embedding-3-small"})
	require.NoError(t, err)
	assert.NotNil(t, e)

	e, err = NewEmbedder(&config.LLMConfig{Provider: config.ProviderOllama, BaseURL: "http://localhost:11434", Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.NotNil(t, e)

	_, err = NewEmbedder(&config.LLMConfig{Provider: "acme"})
	assert.Error(t, err)
}
