package models

// BoundingBox locates a region on a document page in PDF points.
type BoundingBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Chunk represents a span of extracted document text with its location and embedding
type Chunk struct {
	ID            string        `json:"id"`
	DocumentID    string        `json:"documentId"`
	PageNumber    int           `json:"pageNumber"`
	Text          string        `json:"text"`
	BoundingBoxes []BoundingBox `json:"boundingBoxes"`
	Embedding     []float32     `json:"-"`
}

// ScoredChunk is a chunk returned by a similarity search. Smaller distance is closer.
type ScoredChunk struct {
	Chunk
	Distance float64 `json:"distance"`
}

// RetrievedContext is ordered by ascending distance.
type RetrievedContext []ScoredChunk

// Query is created per chat turn and discarded after retrieval.
type Query struct {
	Text      string
	Embedding []float32
}
