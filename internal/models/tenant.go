package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is an isolated chatbot profile: its own documents, chat
// config, and token counters. The counters are mutated only through
// the usage ledger under a row lock.
type Tenant struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Slug          string    `json:"slug" db:"slug"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	IsBlocked     bool      `json:"is_blocked" db:"is_blocked"`
	BlockedReason *string   `json:"blocked_reason,omitempty" db:"blocked_reason"`

	// LLM config
	LLMModel        string  `json:"llm_model" db:"llm_model"`
	LLMAPIKey       *string `json:"-" db:"llm_api_key"`
	EmbeddingModel  string  `json:"embedding_model" db:"embedding_model"`
	EmbeddingAPIKey *string `json:"-" db:"embedding_api_key"`
	SystemPrompt    *string `json:"system_prompt,omitempty" db:"system_prompt"`
	WelcomeMessage  string  `json:"welcome_message" db:"welcome_message"`

	// Branding
	ChatTitle   string  `json:"chat_title" db:"chat_title"`
	ChatColor   string  `json:"chat_color" db:"chat_color"`
	ChatLogoURL *string `json:"chat_logo_url,omitempty" db:"chat_logo_url"`

	// Token limits & usage
	MonthlyTokenLimit int64      `json:"monthly_token_limit" db:"monthly_token_limit"`
	DailyTokenLimit   int64      `json:"daily_token_limit" db:"daily_token_limit"`
	TokensUsedMonth   int64      `json:"tokens_used_month" db:"tokens_used_month"`
	TokensUsedDay     int64      `json:"tokens_used_day" db:"tokens_used_day"`
	LastResetDaily    *time.Time `json:"-" db:"last_reset_daily"`
	LastResetMonthly  *int       `json:"-" db:"last_reset_monthly"`

	// Service credential for the management API (admin layer mints it).
	APIKey *string `json:"-" db:"api_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EmbeddingKey returns the key used for embedding calls, falling back
// to the chat key when no dedicated one is configured.
func (t *Tenant) EmbeddingKey() string {
	if t.EmbeddingAPIKey != nil && *t.EmbeddingAPIKey != "" {
		return *t.EmbeddingAPIKey
	}
	if t.LLMAPIKey != nil {
		return *t.LLMAPIKey
	}
	return ""
}

func (t *Tenant) ChatKey() string {
	if t.LLMAPIKey != nil {
		return *t.LLMAPIKey
	}
	return ""
}

// Available reports whether the tenant may serve chat traffic.
func (t *Tenant) Available() bool {
	return t.IsActive && !t.IsBlocked
}
