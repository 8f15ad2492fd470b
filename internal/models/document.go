package models

import (
	"time"

	"github.com/google/uuid"
)

// Document lifecycle: pending → processing → done | error. The
// pending→processing transition is an atomic claim taken by exactly
// one worker; after creation only the ingestion pipeline mutates the
// row.
const (
	DocStatusPending    = "pending"
	DocStatusProcessing = "processing"
	DocStatusDone       = "done"
	DocStatusError      = "error"
)

type Document struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TenantID     uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name         string    `json:"name" db:"name"`
	FilePath     string    `json:"-" db:"file_path"`
	MimeType     string    `json:"mime_type" db:"mime_type"`
	SizeBytes    int64     `json:"size_bytes" db:"size_bytes"`
	Status       string    `json:"status" db:"status"`
	ErrorMessage *string   `json:"error_message,omitempty" db:"error_message"`
	ChunkCount   int       `json:"chunk_count" db:"chunk_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// DocumentChunk is immutable once written and is deleted only with its
// document (or tenant). Embedding dimension is fixed deployment-wide.
type DocumentChunk struct {
	ID         uuid.UUID `json:"id" db:"id"`
	TenantID   uuid.UUID `json:"tenant_id" db:"tenant_id"`
	DocumentID uuid.UUID `json:"document_id" db:"document_id"`
	Content    string    `json:"content" db:"content"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Embedding  []float32 `json:"-" db:"embedding"`
	TokenCount int       `json:"token_count" db:"token_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
