package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation groups the messages of one widget session. session_id
// is client-supplied and opaque; the visitor's IP is stored only as a
// salted hash.
type Conversation struct {
	ID            uuid.UUID `json:"id" db:"id"`
	TenantID      uuid.UUID `json:"tenant_id" db:"tenant_id"`
	SessionID     uuid.UUID `json:"session_id" db:"session_id"`
	UserIPHash    *string   `json:"-" db:"user_ip_hash"`
	UserAgent     *string   `json:"-" db:"user_agent"`
	StartedAt     time.Time `json:"started_at" db:"started_at"`
	LastMessageAt time.Time `json:"last_message_at" db:"last_message_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is append-only. RetrievedChunkIDs records provenance for
// assistant turns; it stays empty for non-RAG turns (refusals, empty
// knowledge base).
type Message struct {
	ID                uuid.UUID   `json:"id" db:"id"`
	ConversationID    uuid.UUID   `json:"conversation_id" db:"conversation_id"`
	TenantID          uuid.UUID   `json:"tenant_id" db:"tenant_id"`
	Role              string      `json:"role" db:"role"`
	Content           string      `json:"content" db:"content"`
	TotalTokens       int         `json:"total_tokens" db:"total_tokens"`
	EstimatedCostUSD  float64     `json:"estimated_cost_usd" db:"estimated_cost_usd"`
	RetrievedChunkIDs []uuid.UUID `json:"retrieved_chunk_ids,omitempty" db:"retrieved_chunk_ids"`
	FlaggedInjection  bool        `json:"flagged_injection" db:"flagged_injection"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
}
