package chromemdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-chat/internal/models"
)

// metadata keys stored with every chunk
const (
	metaDocumentID    = "document_id"
	metaPageNumber    = "page_number"
	metaBoundingBoxes = "bounding_boxes"
)

const (
	compress = false
)

var errNoEmbeddingFunc = errors.New("chunks and queries must carry precomputed embeddings")

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	compress      bool
	encryptionKey string
	filePath      string
}

// NewVectorDBManager initializes a new vector database manager
func NewVectorDBManager(dbPath, collectionName string, inMemory bool, encryptionKey string) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
		filePath:      dbPath + "/" + collectionName + ".chromem",
	}
	if _, err := m.GetOrCreateCollection(collectionName); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// StoreChunks adds chunks with their embeddings to the collection
func (m *VectorDBManager) StoreChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for _, chunk := range chunks {
		doc, err := toDocument(chunk)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Int("count", len(docs)).Str("collection", m.collection.Name).Msg("Stored chunks")
	return nil
}

// SearchChunks returns the k chunks of documentID closest to vector by cosine distance
func (m *VectorDBManager) SearchChunks(ctx context.Context, documentID string, vector []float32, k int) ([]models.ScoredChunk, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}
	total := m.collection.Count()
	if total == 0 {
		return nil, nil
	}
	if k > total {
		k = total
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       k,
		Where:          map[string]string{metaDocumentID: documentID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	chunks := make([]models.ScoredChunk, 0, len(results))
	for _, res := range results {
		chunk, err := fromResult(res)
		if err != nil {
			log.Warn().Err(err).Str("id", res.ID).Msg("Skipping unreadable chunk")
			continue
		}
		chunks = append(chunks, models.ScoredChunk{Chunk: chunk, Distance: 1 - float64(res.Similarity)})
	}
	return chunks, nil
}

func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// delete collection
func (m *VectorDBManager) DeleteCollection() error {
	err := m.db.DeleteCollection(m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// export to file
func (m *VectorDBManager) Export(ctx context.Context) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}

	log.Debug().
		Str("collection", m.collection.Name).
		Str("file", m.filePath).
		Bool("compress", m.compress).
		Msg("Exporting collection")
	err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads a previously exported snapshot. A missing snapshot is not an error.
func (m *VectorDBManager) Import(ctx context.Context) error {
	if _, err := os.Stat(m.filePath); errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("file", m.filePath).Msg("No snapshot to import")
		return nil
	}
	err := m.db.ImportFromFile(m.filePath, m.encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := m.db.GetCollection(m.collection.Name, nil)
	if c != nil {
		m.collection = c
	}
	return nil
}

func toDocument(chunk models.Chunk) (chromem.Document, error) {
	if chunk.ID == "" {
		return chromem.Document{}, fmt.Errorf("chunk id is required")
	}
	if len(chunk.Embedding) == 0 {
		return chromem.Document{}, fmt.Errorf("chunk %s has no embedding", chunk.ID)
	}
	boxes, err := json.Marshal(chunk.BoundingBoxes)
	if err != nil {
		return chromem.Document{}, err
	}
	return chromem.Document{
		ID:      chunk.ID,
		Content: chunk.Text,
		Metadata: map[string]string{
			metaDocumentID:    chunk.DocumentID,
			metaPageNumber:    strconv.Itoa(chunk.PageNumber),
			metaBoundingBoxes: string(boxes),
		},
		Embedding: chunk.Embedding,
	}, nil
}

func fromResult(res chromem.Result) (models.Chunk, error) {
	page, err := strconv.Atoi(res.Metadata[metaPageNumber])
	if err != nil {
		return models.Chunk{}, fmt.Errorf("bad page number: %w", err)
	}
	var boxes []models.BoundingBox
	if raw := res.Metadata[metaBoundingBoxes]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &boxes); err != nil {
			return models.Chunk{}, fmt.Errorf("bad bounding boxes: %w", err)
		}
	}
	return models.Chunk{
		ID:            res.ID,
		DocumentID:    res.Metadata[metaDocumentID],
		PageNumber:    page,
		Text:          res.Content,
		BoundingBoxes: boxes,
		Embedding:     res.Embedding,
	}, nil
}
