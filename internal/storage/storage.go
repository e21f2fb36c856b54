package storage

import (
	"context"
	"time"

	"github.com/dshills/pdfrag-mcp/pkg/types"
)

// Storage defines the interface for persisting and querying ingested documents
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, documentID, version string) (*types.Document, error)
	GetDocumentByID(ctx context.Context, id int64) (*types.Document, error)
	ListDocuments(ctx context.Context) ([]*types.Document, error)
	ListVersions(ctx context.Context, documentID string) ([]types.VersionInfo, error)
	UpdateChunksCount(ctx context.Context, id int64, count int) error
	DeleteDocument(ctx context.Context, id int64) error

	// Chunk operations
	InsertChunks(ctx context.Context, chunks []*types.Chunk) error
	GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error)
	ListChunksByDocument(ctx context.Context, documentRowID int64) ([]*types.Chunk, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)
	SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Embedding represents a vector embedding for a chunk
type Embedding struct {
	ID        int64
	ChunkID   int64
	Vector    []byte // Serialized float32 array
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// SearchFilters narrows search to one document or document version
type SearchFilters struct {
	DocumentID   string
	Version      string  // Only honored together with DocumentID
	MinRelevance float64 // Minimum relevance score
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID         int64
	SimilarityScore float64
}

// TextResult represents a result from full-text search
type TextResult struct {
	ChunkID   int64
	BM25Score float64
}

// Status contains statistics about the document store
type Status struct {
	DocumentsCount  int // Distinct document IDs
	VersionsCount   int // Stored document versions
	ChunksCount     int
	EmbeddingsCount int
	IndexSizeMB     float64
	LastIngestedAt  time.Time
	SchemaVersion   string
	BuildMode       string
	Health          HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexesBuilt     bool
}
