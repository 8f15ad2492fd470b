package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorix/backend/internal/apperr"
	"github.com/mentorix/backend/internal/models"
)

const tenantColumns = `id, name, slug, is_active, is_blocked, blocked_reason,
	llm_model, llm_api_key, embedding_model, embedding_api_key, system_prompt, welcome_message,
	chat_title, chat_color, chat_logo_url,
	monthly_token_limit, daily_token_limit, tokens_used_month, tokens_used_day,
	last_reset_daily, last_reset_monthly, api_key, created_at, updated_at`

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.getWhere(ctx, "id = $1", id)
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return s.getWhere(ctx, "slug = $1", slug)
}

// GetByAPIKey resolves the service credential sent on management
// requests to its tenant.
func (s *Service) GetByAPIKey(ctx context.Context, apiKey string) (*models.Tenant, error) {
	if apiKey == "" {
		return nil, apperr.New(apperr.KindForbidden, "missing API key")
	}
	return s.getWhere(ctx, "api_key = $1", apiKey)
}

func (s *Service) getWhere(ctx context.Context, where string, arg any) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE "+where, arg,
	).Scan(
		&t.ID, &t.Name, &t.Slug, &t.IsActive, &t.IsBlocked, &t.BlockedReason,
		&t.LLMModel, &t.LLMAPIKey, &t.EmbeddingModel, &t.EmbeddingAPIKey, &t.SystemPrompt, &t.WelcomeMessage,
		&t.ChatTitle, &t.ChatColor, &t.ChatLogoURL,
		&t.MonthlyTokenLimit, &t.DailyTokenLimit, &t.TokensUsedMonth, &t.TokensUsedDay,
		&t.LastResetDaily, &t.LastResetMonthly, &t.APIKey, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "tenant not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

func (s *Service) Create(ctx context.Context, name, slug string) (*models.Tenant, error) {
	if _, err := s.GetBySlug(ctx, slug); err == nil {
		return nil, apperr.New(apperr.KindValidation, "slug %q is already in use", slug)
	} else if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, err
	}

	id := uuid.New()
	_, err := s.db.Exec(ctx,
		"INSERT INTO tenants (id, name, slug) VALUES ($1, $2, $3)",
		id, name, slug,
	)
	if err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return s.GetByID(ctx, id)
}

// SetAPIKeyHash rotates the tenant's management credential. Only the
// hash is stored.
func (s *Service) SetAPIKeyHash(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE tenants SET api_key = $2, updated_at = NOW() WHERE id = $1", id, hash)
	if err != nil {
		return fmt.Errorf("set tenant api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "tenant not found")
	}
	return nil
}

// ConfigUpdate carries the admin-editable settings. Nil fields stay
// untouched.
type ConfigUpdate struct {
	Name              *string `json:"name"`
	IsActive          *bool   `json:"is_active"`
	IsBlocked         *bool   `json:"is_blocked"`
	BlockedReason     *string `json:"blocked_reason"`
	LLMModel          *string `json:"llm_model"`
	LLMAPIKey         *string `json:"llm_api_key"`
	EmbeddingModel    *string `json:"embedding_model"`
	EmbeddingAPIKey   *string `json:"embedding_api_key"`
	SystemPrompt      *string `json:"system_prompt"`
	WelcomeMessage    *string `json:"welcome_message"`
	ChatTitle         *string `json:"chat_title"`
	ChatColor         *string `json:"chat_color"`
	ChatLogoURL       *string `json:"chat_logo_url"`
	MonthlyTokenLimit *int64  `json:"monthly_token_limit"`
	DailyTokenLimit   *int64  `json:"daily_token_limit"`
}

// UpdateConfig applies the non-nil fields. Changing the embedding model
// deliberately does NOT reindex; existing vectors keep their old space
// until the admin triggers a reindex explicitly.
func (s *Service) UpdateConfig(ctx context.Context, id uuid.UUID, upd ConfigUpdate) (*models.Tenant, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}
	if upd.IsBlocked != nil {
		add("is_blocked", *upd.IsBlocked)
	}
	if upd.BlockedReason != nil {
		add("blocked_reason", *upd.BlockedReason)
	}
	if upd.LLMModel != nil {
		add("llm_model", *upd.LLMModel)
	}
	if upd.LLMAPIKey != nil {
		add("llm_api_key", *upd.LLMAPIKey)
	}
	if upd.EmbeddingModel != nil {
		add("embedding_model", *upd.EmbeddingModel)
	}
	if upd.EmbeddingAPIKey != nil {
		add("embedding_api_key", *upd.EmbeddingAPIKey)
	}
	if upd.SystemPrompt != nil {
		add("system_prompt", *upd.SystemPrompt)
	}
	if upd.WelcomeMessage != nil {
		add("welcome_message", *upd.WelcomeMessage)
	}
	if upd.ChatTitle != nil {
		add("chat_title", *upd.ChatTitle)
	}
	if upd.ChatColor != nil {
		add("chat_color", *upd.ChatColor)
	}
	if upd.ChatLogoURL != nil {
		add("chat_logo_url", *upd.ChatLogoURL)
	}
	if upd.MonthlyTokenLimit != nil {
		add("monthly_token_limit", *upd.MonthlyTokenLimit)
	}
	if upd.DailyTokenLimit != nil {
		add("daily_token_limit", *upd.DailyTokenLimit)
	}

	query := fmt.Sprintf("UPDATE tenants SET %s WHERE id = $1", strings.Join(sets, ", "))
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update tenant config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.New(apperr.KindNotFound, "tenant not found")
	}
	return s.GetByID(ctx, id)
}
