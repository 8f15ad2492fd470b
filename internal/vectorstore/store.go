package vectorstore

import (
	"context"

	"github.com/google/uuid"
)

type Chunk struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	DocumentID uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32
	TokenCount int
}

type SearchOptions struct {
	TenantID uuid.UUID
	TopK     int
	// MaxPerDoc caps how many chunks a single document may contribute,
	// so one long document cannot crowd out the rest of the corpus.
	MaxPerDoc int
	// ExcludeIDs are skipped, used when supplementing an earlier result set.
	ExcludeIDs []uuid.UUID
}

type SearchResult struct {
	ChunkID      uuid.UUID `json:"chunk_id"`
	DocumentID   uuid.UUID `json:"document_id"`
	DocumentName string    `json:"document_name"`
	Content      string    `json:"content"`
	ChunkIndex   int       `json:"chunk_index"`
	// Score is cosine similarity in [-1, 1]; higher is closer.
	Score float64 `json:"score"`
}

// Store persists and searches per-tenant chunk vectors.
type Store interface {
	Replace(ctx context.Context, tenantID, documentID uuid.UUID, chunks []Chunk) error
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error)
	SearchKeywords(ctx context.Context, tenantID uuid.UUID, stems []string, limit int, excludeIDs []uuid.UUID) ([]SearchResult, error)
	CountReady(ctx context.Context, tenantID uuid.UUID) (int, error)
	FetchAll(ctx context.Context, tenantID uuid.UUID) ([]SearchResult, error)
	DeleteDocument(ctx context.Context, tenantID, documentID uuid.UUID) error
	DeleteTenant(ctx context.Context, tenantID uuid.UUID) error
}
