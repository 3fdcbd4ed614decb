package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"document-chat/internal/embedding"
	"document-chat/internal/models"
)

// ChunkStore is the similarity search over stored chunks. Both the chromem collection
// and the pgvector repository implement it.
type ChunkStore interface {
	SearchChunks(ctx context.Context, documentID string, vector []float32, k int) ([]models.ScoredChunk, error)
}

type Retriever struct {
	store    ChunkStore
	embedder embedding.Embedder
}

func NewRetriever(store ChunkStore, embedder embedding.Embedder) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// Embed turns the user question into a query vector.
func (r *Retriever) Embed(ctx context.Context, text string) (*models.Query, error) {
	vec, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		if errors.Is(err, models.ErrEmbedding) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", models.ErrEmbedding, err)
	}
	return &models.Query{Text: text, Embedding: vec}, nil
}

// Retrieve returns at most k chunks of documentID ordered by ascending cosine distance.
// k <= 0 means models.DefaultTopK. Chunks of other documents are dropped even if the
// store returns them, and equal distances keep the store's order.
func (r *Retriever) Retrieve(ctx context.Context, documentID string, query *models.Query, k int) (models.RetrievedContext, error) {
	if k <= 0 {
		k = models.DefaultTopK
	}
	if query == nil || len(query.Embedding) == 0 {
		return nil, fmt.Errorf("%w: query has no embedding", models.ErrEmbedding)
	}

	found, err := r.store.SearchChunks(ctx, documentID, query.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}

	result := make(models.RetrievedContext, 0, len(found))
	for _, c := range found {
		if c.DocumentID != documentID {
			log.Warn().Str("chunk_id", c.ID).Str("document_id", c.DocumentID).Msg("Dropping chunk from another document")
			continue
		}
		result = append(result, c)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Distance < result[j].Distance })
	if len(result) > k {
		result = result[:k]
	}

	log.Debug().Str("document_id", documentID).Int("k", k).Int("found", len(result)).Msg("Retrieved context")
	return result, nil
}
