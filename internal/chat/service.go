package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mentorix/backend/internal/apperr"
	"github.com/mentorix/backend/internal/guard"
	"github.com/mentorix/backend/internal/models"
	"github.com/mentorix/backend/internal/rag"
	"github.com/mentorix/backend/internal/tenant"
	"github.com/mentorix/backend/internal/usage"
)

const (
	// chatTokenEstimate is reserved against the tenant's budget before
	// any provider call; the real spend is reconciled afterwards.
	chatTokenEstimate = 1500

	maxUserAgentLen = 500
)

type Request struct {
	TenantID  uuid.UUID
	SessionID uuid.UUID // zero starts a new conversation
	Question  string
	UserIP    string
	UserAgent string
}

type Result struct {
	SessionID        uuid.UUID      `json:"session_id"`
	ConversationID   uuid.UUID      `json:"conversation_id"`
	Answer           string         `json:"answer"`
	Citations        []rag.Citation `json:"citations,omitempty"`
	TokensUsed       int            `json:"tokens_used"`
	EstimatedCostUSD float64        `json:"estimated_cost_usd"`
	FlaggedInjection bool           `json:"-"`
}

// Service runs one chat turn end to end: tenant gating, input guarding,
// quota reservation, retrieval-grounded generation, persistence and
// usage accounting.
type Service struct {
	tenants    *tenant.Service
	store      *Store
	guard      *guard.Guard
	ledger     *usage.Ledger
	pipeline   rag.Pipeline
	ipHashSalt string
}

func NewService(tenants *tenant.Service, store *Store, g *guard.Guard, ledger *usage.Ledger, pipeline rag.Pipeline, ipHashSalt string) *Service {
	return &Service{
		tenants:    tenants,
		store:      store,
		guard:      g,
		ledger:     ledger,
		pipeline:   pipeline,
		ipHashSalt: ipHashSalt,
	}
}

func (s *Service) Message(ctx context.Context, req Request) (*Result, error) {
	ten, err := s.tenants.GetByID(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if !ten.Available() {
		reason := "this assistant is currently unavailable"
		if ten.IsBlocked && ten.BlockedReason != nil && *ten.BlockedReason != "" {
			reason = *ten.BlockedReason
		}
		return nil, apperr.New(apperr.KindForbidden, "%s", reason)
	}

	// Length is checked before anything is persisted or reserved.
	if err := s.guard.CheckLength(req.Question); err != nil {
		return nil, err
	}

	conv, err := s.store.GetOrCreate(ctx, ten.ID, req.SessionID, s.hashIP(req.UserIP), trimUserAgent(req.UserAgent))
	if err != nil {
		return nil, err
	}

	// Injection attempts get a fixed refusal. The exchange is still
	// recorded, flagged, so admins can see what was tried; no tokens
	// are reserved and no provider is called.
	if s.guard.Flagged(req.Question) {
		s.persistTurn(ctx, ten, conv, req.Question, &rag.Answer{Content: guard.RefusalMessage}, true)
		return &Result{
			SessionID:        conv.SessionID,
			ConversationID:   conv.ID,
			Answer:           guard.RefusalMessage,
			FlaggedInjection: true,
		}, nil
	}

	if err := s.ledger.CheckAndReserve(ctx, ten.ID, chatTokenEstimate); err != nil {
		return nil, err
	}

	// Whatever happens next, the reservation is replaced by the actual
	// spend; zero on failure returns the whole reservation.
	actualTokens := 0
	defer func() {
		if err := s.ledger.Reconcile(context.WithoutCancel(ctx), ten.ID, chatTokenEstimate, int64(actualTokens)); err != nil {
			slog.Error("usage reconcile failed", "tenant_id", ten.ID, "error", err)
		}
	}()

	answer, err := s.pipeline.Answer(ctx, ten, req.Question)
	if err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}
	actualTokens = answer.TotalTokens

	s.persistTurn(ctx, ten, conv, req.Question, answer, false)

	if err := s.ledger.RecordDaily(ctx, ten.ID, usage.DailyRecord{
		ChatTokensInput:  int64(answer.InputTokens),
		ChatTokensOutput: int64(answer.OutputTokens),
		CostUSD:          answer.CostUSD,
		Queries:          1,
	}); err != nil {
		slog.Warn("could not record chat usage", "tenant_id", ten.ID, "error", err)
	}

	return &Result{
		SessionID:        conv.SessionID,
		ConversationID:   conv.ID,
		Answer:           answer.Content,
		Citations:        answer.Citations,
		TokensUsed:       answer.TotalTokens,
		EstimatedCostUSD: answer.CostUSD,
	}, nil
}

// History returns a session's prior messages so the widget can restore
// the transcript on reload. An unknown session is NotFound, never a
// fresh conversation.
func (s *Service) History(ctx context.Context, tenantID, sessionID uuid.UUID, limit int) ([]models.Message, error) {
	conv, err := s.store.Get(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.store.History(ctx, tenantID, conv.ID, limit)
}

// persistTurn saves the user and assistant messages. Persistence
// failures are logged, not returned: the visitor already has an answer.
func (s *Service) persistTurn(ctx context.Context, ten *models.Tenant, conv *models.Conversation, question string, answer *rag.Answer, flagged bool) {
	userMsg := &models.Message{
		ConversationID:   conv.ID,
		TenantID:         ten.ID,
		Role:             models.RoleUser,
		Content:          question,
		FlaggedInjection: flagged,
	}
	if err := s.store.SaveMessage(ctx, userMsg); err != nil {
		slog.Error("could not save user message", "conversation_id", conv.ID, "error", err)
		return
	}

	assistantMsg := &models.Message{
		ConversationID:    conv.ID,
		TenantID:          ten.ID,
		Role:              models.RoleAssistant,
		Content:           answer.Content,
		TotalTokens:       answer.TotalTokens,
		EstimatedCostUSD:  answer.CostUSD,
		RetrievedChunkIDs: answer.ChunkIDs,
	}
	if err := s.store.SaveMessage(ctx, assistantMsg); err != nil {
		slog.Error("could not save assistant message", "conversation_id", conv.ID, "error", err)
	}
}

// hashIP stores only a salted digest; raw visitor addresses never land
// in the database.
func (s *Service) hashIP(ip string) *string {
	if ip == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(s.ipHashSalt + ip))
	h := hex.EncodeToString(sum[:])
	return &h
}

func trimUserAgent(ua string) *string {
	if ua == "" {
		return nil
	}
	if len(ua) > maxUserAgentLen {
		ua = ua[:maxUserAgentLen]
	}
	return &ua
}
