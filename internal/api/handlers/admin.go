package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mentorix/backend/internal/apperr"
	"github.com/mentorix/backend/internal/auth"
	"github.com/mentorix/backend/internal/cache"
	"github.com/mentorix/backend/internal/llm"
	"github.com/mentorix/backend/internal/queue"
	"github.com/mentorix/backend/internal/tenant"
	"github.com/mentorix/backend/internal/usage"
)

// AdminHandler serves the operator surface: tenant lifecycle, usage
// reports, reindexing and local-model management.
type AdminHandler struct {
	tenants *tenant.Service
	ledger  *usage.Ledger
	queue   *queue.Client
	gateway *llm.Gateway
	cache   *cache.Cache
}

func NewAdminHandler(tenants *tenant.Service, ledger *usage.Ledger, qc *queue.Client, gw *llm.Gateway, c *cache.Cache) *AdminHandler {
	return &AdminHandler{tenants: tenants, ledger: ledger, queue: qc, gateway: gw, cache: c}
}

type createTenantBody struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CreateTenant provisions a tenant and mints its management API key.
// The plain key appears only in this response.
func (h *AdminHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var body createTenantBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" || body.Slug == "" {
		writeAppError(w, apperr.New(apperr.KindValidation, "name and slug are required"))
		return
	}

	ten, err := h.tenants.Create(r.Context(), body.Name, body.Slug)
	if err != nil {
		writeAppError(w, err)
		return
	}

	plain, hash, err := auth.NewAPIKey()
	if err != nil {
		writeAppError(w, err)
		return
	}
	if err := h.tenants.SetAPIKeyHash(r.Context(), ten.ID, hash); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"tenant": ten, "api_key": plain})
}

func (h *AdminHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeAppError(w, apperr.New(apperr.KindValidation, "invalid tenant ID"))
		return
	}

	ten, err := h.tenants.GetByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ten)
}

func (h *AdminHandler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeAppError(w, apperr.New(apperr.KindValidation, "invalid tenant ID"))
		return
	}

	var upd tenant.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeAppError(w, apperr.New(apperr.KindValidation, "invalid JSON body"))
		return
	}

	ten, err := h.tenants.UpdateConfig(r.Context(), id, upd)
	if err != nil {
		writeAppError(w, err)
		return
	}

	// The widget config is cached; drop it so branding changes show up
	// immediately instead of after the TTL.
	if h.cache != nil {
		if err := h.cache.Delete(r.Context(), chatConfigCacheKey(id)); err != nil {
			slog.Warn("could not invalidate chat config cache", "tenant_id", id, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, ten)
}

// Reindex queues a full re-embed of the tenant's corpus. Required after
// changing the embedding model, which never reindexes implicitly.
func (h *AdminHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeAppError(w, apperr.New(apperr.KindValidation, "invalid tenant ID"))
		return
	}
	if _, err := h.tenants.GetByID(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}

	if err := h.queue.EnqueueTenantReindex(queue.TenantReindexPayload{TenantID: id.String()}); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *AdminHandler) Usage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeAppError(w, apperr.New(apperr.KindValidation, "invalid tenant ID"))
		return
	}

	ten, err := h.tenants.GetByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	report, err := h.ledger.Report(r.Context(), id, days)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id":           ten.ID,
		"tokens_used_day":     ten.TokensUsedDay,
		"tokens_used_month":   ten.TokensUsedMonth,
		"daily_token_limit":   ten.DailyTokenLimit,
		"monthly_token_limit": ten.MonthlyTokenLimit,
		"daily":               report,
	})
}

// OllamaModels lists the models pulled onto the local Ollama host.
func (h *AdminHandler) OllamaModels(w http.ResponseWriter, r *http.Request) {
	ollama := h.gateway.Ollama()
	if ollama == nil {
		writeAppError(w, apperr.New(apperr.KindInvalidModel, "no Ollama host configured"))
		return
	}

	models, err := ollama.Tags(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

type ollamaPullBody struct {
	Model string `json:"model"`
}

// OllamaPull downloads a model onto the Ollama host. Blocks until done.
func (h *AdminHandler) OllamaPull(w http.ResponseWriter, r *http.Request) {
	ollama := h.gateway.Ollama()
	if ollama == nil {
		writeAppError(w, apperr.New(apperr.KindInvalidModel, "no Ollama host configured"))
		return
	}

	var body ollamaPullBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Model == "" {
		writeAppError(w, apperr.New(apperr.KindValidation, "model is required"))
		return
	}

	if err := ollama.Pull(r.Context(), body.Model); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pulled", "model": body.Model})
}
