package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"document-chat/internal/embedding"
	"document-chat/internal/models"
)

// MinChunkLength drops short blocks such as page numbers and running headers.
const MinChunkLength = 20

// ChunkWriter stores chunks. The chromem and postgres stores implement it.
type ChunkWriter interface {
	StoreChunks(ctx context.Context, chunks []models.Chunk) error
}

// Extraction is the payload produced by the PDF extraction service.
type Extraction struct {
	Filename string           `json:"filename"`
	Chunks   []ExtractedChunk `json:"chunks"`
}

type ExtractedChunk struct {
	PageNumber  int                  `json:"pageNumber"`
	TextContent string               `json:"textContent"`
	BBoxList    []models.BoundingBox `json:"bboxList"`
	// Embedding is null when the service could not embed the block.
	Embedding []float32 `json:"embedding"`
}

type Stats struct {
	Stored     int `json:"stored"`
	Skipped    int `json:"skipped"`
	Reembedded int `json:"reembedded"`
}

type Importer struct {
	writer    ChunkWriter
	embedder  embedding.Embedder
	dimension int
}

func NewImporter(writer ChunkWriter, embedder embedding.Embedder, dimension int) *Importer {
	return &Importer{writer: writer, embedder: embedder, dimension: dimension}
}

// Import reads an extraction payload from r and stores its chunks under documentID.
// Chunk ids are derived from the document and position so importing the same file
// twice does not duplicate chunks.
func (im *Importer) Import(ctx context.Context, documentID string, r io.Reader) (*Stats, error) {
	if documentID == "" {
		return nil, errors.New("document id is required")
	}
	var payload Extraction
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}

	stats := &Stats{}
	chunks := make([]models.Chunk, 0, len(payload.Chunks))
	for i, ec := range payload.Chunks {
		text := strings.Join(strings.Fields(ec.TextContent), " ")
		if len(text) <= MinChunkLength || ec.PageNumber < 1 {
			stats.Skipped++
			continue
		}

		vec := ec.Embedding
		if len(vec) == 0 {
			var err error
			vec, err = im.embedder.EmbedQuery(ctx, text)
			if err != nil {
				return stats, fmt.Errorf("chunk %d: %w", i, err)
			}
			stats.Reembedded++
		}
		if im.dimension > 0 && len(vec) != im.dimension {
			return stats, fmt.Errorf("chunk %d: %w: got %d dimensions, want %d", i, models.ErrEmbedding, len(vec), im.dimension)
		}

		chunks = append(chunks, models.Chunk{
			ID:            fmt.Sprintf("%s-%d", documentID, i),
			DocumentID:    documentID,
			PageNumber:    ec.PageNumber,
			Text:          text,
			BoundingBoxes: ec.BBoxList,
			Embedding:     vec,
		})
	}

	if err := im.writer.StoreChunks(ctx, chunks); err != nil {
		return stats, fmt.Errorf("failed to store chunks: %w", err)
	}
	stats.Stored = len(chunks)

	log.Info().
		Str("document_id", documentID).
		Str("filename", payload.Filename).
		Int("stored", stats.Stored).
		Int("skipped", stats.Skipped).
		Int("reembedded", stats.Reembedded).
		Msg("Imported chunks")
	return stats, nil
}
