package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorix/backend/internal/apperr"
	"github.com/mentorix/backend/internal/models"
)

// Store persists conversations and their messages.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Get looks up the conversation for a tenant session without creating
// one.
func (s *Store) Get(ctx context.Context, tenantID, sessionID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, session_id, user_ip_hash, user_agent, started_at, last_message_at
		 FROM conversations WHERE tenant_id = $1 AND session_id = $2`,
		tenantID, sessionID,
	).Scan(&conv.ID, &conv.TenantID, &conv.SessionID, &conv.UserIPHash, &conv.UserAgent, &conv.StartedAt, &conv.LastMessageAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "conversation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

// GetOrCreate finds the conversation for a tenant session or starts a
// new one. Sessions are client-generated UUIDs scoped to the tenant, so
// a stale session ID from another tenant starts fresh here.
func (s *Store) GetOrCreate(ctx context.Context, tenantID, sessionID uuid.UUID, ipHash, userAgent *string) (*models.Conversation, error) {
	var conv models.Conversation

	if sessionID != uuid.Nil {
		existing, err := s.Get(ctx, tenantID, sessionID)
		if err == nil {
			return existing, nil
		}
		if apperr.KindOf(err) != apperr.KindNotFound {
			return nil, err
		}
	} else {
		sessionID = uuid.New()
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO conversations (id, tenant_id, session_id, user_ip_hash, user_agent)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, tenant_id, session_id, user_ip_hash, user_agent, started_at, last_message_at`,
		uuid.New(), tenantID, sessionID, ipHash, userAgent,
	).Scan(&conv.ID, &conv.TenantID, &conv.SessionID, &conv.UserIPHash, &conv.UserAgent, &conv.StartedAt, &conv.LastMessageAt)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &conv, nil
}

// SaveMessage appends one message and bumps the conversation's
// last-message time.
func (s *Store) SaveMessage(ctx context.Context, m *models.Message) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin message tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, tenant_id, role, content, total_tokens, estimated_cost_usd, retrieved_chunk_ids, flagged_injection)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.ConversationID, m.TenantID, m.Role, m.Content,
		m.TotalTokens, m.EstimatedCostUSD, uuidArray(m.RetrievedChunkIDs), m.FlaggedInjection,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE conversations SET last_message_at = NOW() WHERE id = $1", m.ConversationID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	return tx.Commit(ctx)
}

// History returns a conversation's messages oldest first.
func (s *Store) History(ctx context.Context, tenantID, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, conversation_id, tenant_id, role, content, total_tokens, estimated_cost_usd, flagged_injection, created_at
		 FROM messages
		 WHERE tenant_id = $1 AND conversation_id = $2
		 ORDER BY created_at
		 LIMIT $3`,
		tenantID, conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.TenantID, &m.Role, &m.Content,
			&m.TotalTokens, &m.EstimatedCostUSD, &m.FlaggedInjection, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func uuidArray(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
