package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mentorix/backend/internal/apperr"
	"github.com/mentorix/backend/internal/cache"
	"github.com/mentorix/backend/internal/chat"
	"github.com/mentorix/backend/internal/models"
	"github.com/mentorix/backend/internal/tenant"
)

const chatConfigTTL = time.Minute

func chatConfigCacheKey(tenantID uuid.UUID) string {
	return "chat_config:" + tenantID.String()
}

// Messager runs chat turns and serves transcripts; satisfied by
// chat.Service.
type Messager interface {
	Message(ctx context.Context, req chat.Request) (*chat.Result, error)
	History(ctx context.Context, tenantID, sessionID uuid.UUID, limit int) ([]models.Message, error)
}

type ChatHandler struct {
	chat    Messager
	tenants *tenant.Service
	cache   *cache.Cache
}

func NewChatHandler(svc Messager, tenants *tenant.Service, c *cache.Cache) *ChatHandler {
	return &ChatHandler{chat: svc, tenants: tenants, cache: c}
}

type chatMessageBody struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeAppError(w, apperr.New(apperr.KindValidation, "invalid tenant ID"))
		return
	}

	var body chatMessageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAppError(w, apperr.New(apperr.KindValidation, "invalid JSON body"))
		return
	}
	if body.Message == "" {
		writeAppError(w, apperr.New(apperr.KindValidation, "message is required"))
		return
	}

	// A bad session ID is not an error; the turn starts a new session.
	sessionID, _ := uuid.Parse(body.SessionID)

	result, err := h.chat.Message(r.Context(), chat.Request{
		TenantID:  tenantID,
		SessionID: sessionID,
		Question:  body.Message,
		UserIP:    r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// History restores a session's transcript for the widget. The session
// UUID is the credential here: it is client-generated, unguessable and
// scoped to the tenant.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeAppError(w, apperr.New(apperr.KindValidation, "invalid tenant ID"))
		return
	}
	sessionID, err := uuid.Parse(r.URL.Query().Get("session_id"))
	if err != nil {
		writeAppError(w, apperr.New(apperr.KindValidation, "session_id is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	msgs, err := h.chat.History(r.Context(), tenantID, sessionID, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "messages": msgs})
}

// chatConfig is the public widget configuration; no keys, no limits.
type chatConfig struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	WelcomeMessage string    `json:"welcome_message"`
	ChatTitle      string    `json:"chat_title"`
	ChatColor      string    `json:"chat_color"`
	ChatLogoURL    *string   `json:"chat_logo_url,omitempty"`
}

func (h *ChatHandler) Config(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeAppError(w, apperr.New(apperr.KindValidation, "invalid tenant ID"))
		return
	}

	cacheKey := chatConfigCacheKey(tenantID)
	var cfg chatConfig
	if h.cache != nil {
		if err := h.cache.Get(r.Context(), cacheKey, &cfg); err == nil {
			writeJSON(w, http.StatusOK, cfg)
			return
		}
	}

	ten, err := h.tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !ten.Available() {
		writeAppError(w, apperr.New(apperr.KindForbidden, "this assistant is currently unavailable"))
		return
	}

	cfg = publicConfig(ten)
	if h.cache != nil {
		_ = h.cache.Set(r.Context(), cacheKey, cfg, chatConfigTTL)
	}
	writeJSON(w, http.StatusOK, cfg)
}

func publicConfig(ten *models.Tenant) chatConfig {
	return chatConfig{
		TenantID:       ten.ID,
		WelcomeMessage: ten.WelcomeMessage,
		ChatTitle:      ten.ChatTitle,
		ChatColor:      ten.ChatColor,
		ChatLogoURL:    ten.ChatLogoURL,
	}
}
