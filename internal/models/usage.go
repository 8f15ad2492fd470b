package models

import (
	"time"

	"github.com/google/uuid"
)

// APIUsage is the per-tenant per-day rollup of provider spend,
// upserted after every chat turn and ingestion run.
type APIUsage struct {
	ID               uuid.UUID `json:"id" db:"id"`
	TenantID         uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Date             time.Time `json:"date" db:"date"`
	EmbeddingTokens  int64     `json:"embedding_tokens" db:"embedding_tokens"`
	ChatTokensInput  int64     `json:"chat_tokens_input" db:"chat_tokens_input"`
	ChatTokensOutput int64     `json:"chat_tokens_output" db:"chat_tokens_output"`
	CostUSD          float64   `json:"cost_usd" db:"cost_usd"`
	TotalQueries     int64     `json:"total_queries" db:"total_queries"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}
