package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-chat/internal/config"
	"document-chat/internal/models"
)

// ChunkRecord is a document chunk row. Seq keeps insertion order for distance ties.
type ChunkRecord struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            string               `bun:"id,pk"`
	Seq           int64                `bun:"seq,autoincrement"`
	DocumentID    string               `bun:"document_id,notnull"`
	PageNumber    int                  `bun:"page_number,notnull"`
	Content       string               `bun:"content,notnull"`
	BoundingBoxes []models.BoundingBox `bun:"bounding_boxes,type:jsonb"`
	Embedding     pgvector.Vector      `bun:"embedding,type:vector"`
	Distance      float64              `bun:"distance,scanonly"`
}

type MessageRecord struct {
	bun.BaseModel  `bun:"table:messages,alias:m"`
	ID             string    `bun:"id,pk"`
	Seq            int64     `bun:"seq,autoincrement"`
	ConversationID string    `bun:"conversation_id,notnull"`
	Role           string    `bun:"role,notnull"`
	Content        string    `bun:"content,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the configured driver. Neither driver dials until first use.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPQ:
		return sql.Open("postgres", cfg.DSN)
	case config.DriverPgdriver, "":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
	}
	return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
}

// InitDB creates the pgvector extension, the chunk table with an HNSW cosine index
// and the message table.
func InitDB(ctx context.Context, db *bun.DB, dimension int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	seq BIGSERIAL,
	document_id TEXT NOT NULL,
	page_number INTEGER NOT NULL,
	content TEXT NOT NULL,
	bounding_boxes JSONB,
	embedding vector(%d) NOT NULL
)`, dimension),
		`CREATE INDEX IF NOT EXISTS chunks_document_id_idx ON chunks (document_id)`,
		`CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init chunks: %w", err)
		}
	}

	_, err := db.NewCreateTable().Model((*MessageRecord)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to init messages: %w", err)
	}
	_, err = db.NewCreateIndex().
		Model((*MessageRecord)(nil)).
		Index("messages_conversation_idx").
		IfNotExists().
		Column("conversation_id", "created_at").
		Exec(ctx)
	return err
}

// drop chunk and message tables
func DropTables(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*ChunkRecord)(nil), (*MessageRecord)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ChunkRepository is the pgvector backed chunk store.
type ChunkRepository struct {
	db *bun.DB
}

func NewChunkRepository(db *bun.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) StoreChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	records := make([]ChunkRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = toChunkRecord(chunk)
	}
	_, err := r.db.NewInsert().Model(&records).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	return err
}

func (r *ChunkRepository) SearchChunks(ctx context.Context, documentID string, vector []float32, k int) ([]models.ScoredChunk, error) {
	var records []ChunkRecord
	err := r.searchQuery(documentID, vector, k, &records).Scan(ctx)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.ScoredChunk, len(records))
	for i, rec := range records {
		chunks[i] = models.ScoredChunk{Chunk: fromChunkRecord(rec), Distance: rec.Distance}
	}
	return chunks, nil
}

// searchQuery orders by cosine distance, smaller first, then by insertion order.
func (r *ChunkRepository) searchQuery(documentID string, vector []float32, k int, dest *[]ChunkRecord) *bun.SelectQuery {
	return r.db.NewSelect().
		Model(dest).
		Column("id", "seq", "document_id", "page_number", "content", "bounding_boxes").
		ColumnExpr("c.embedding <=> ? AS distance", pgvector.NewVector(vector)).
		Where("c.document_id = ?", documentID).
		OrderExpr("distance ASC, c.seq ASC").
		Limit(k)
}

func toChunkRecord(chunk models.Chunk) ChunkRecord {
	return ChunkRecord{
		ID:            chunk.ID,
		DocumentID:    chunk.DocumentID,
		PageNumber:    chunk.PageNumber,
		Content:       chunk.Text,
		BoundingBoxes: chunk.BoundingBoxes,
		Embedding:     pgvector.NewVector(chunk.Embedding),
	}
}

func fromChunkRecord(rec ChunkRecord) models.Chunk {
	return models.Chunk{
		ID:            rec.ID,
		DocumentID:    rec.DocumentID,
		PageNumber:    rec.PageNumber,
		Text:          rec.Content,
		BoundingBoxes: rec.BoundingBoxes,
		Embedding:     rec.Embedding.Slice(),
	}
}

// MessageRepository is the append-only conversation transcript.
type MessageRepository struct {
	db *bun.DB
}

func NewMessageRepository(db *bun.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Append(ctx context.Context, msg models.Message) error {
	rec := toMessageRecord(msg)
	if _, err := r.db.NewInsert().Model(&rec).Exec(ctx); err != nil {
		return fmt.Errorf("%w: %w", models.ErrTranscript, err)
	}
	return nil
}

func (r *MessageRepository) List(ctx context.Context, conversationID string) ([]models.Message, error) {
	var records []MessageRecord
	if err := r.listQuery(conversationID, &records).Scan(ctx); err != nil {
		return nil, err
	}
	msgs := make([]models.Message, len(records))
	for i, rec := range records {
		msgs[i] = fromMessageRecord(rec)
	}
	return msgs, nil
}

func (r *MessageRepository) listQuery(conversationID string, dest *[]MessageRecord) *bun.SelectQuery {
	return r.db.NewSelect().
		Model(dest).
		Where("m.conversation_id = ?", conversationID).
		OrderExpr("m.created_at ASC, m.seq ASC")
}

func toMessageRecord(msg models.Message) MessageRecord {
	return MessageRecord{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	}
}

func fromMessageRecord(rec MessageRecord) models.Message {
	return models.Message{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		Role:           models.Role(rec.Role),
		Content:        rec.Content,
		CreatedAt:      rec.CreatedAt,
	}
}
