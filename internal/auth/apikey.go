package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mentorix/backend/internal/tenant"
)

// APIKeyMiddleware authenticates tenant management calls. The database
// stores only a SHA-256 of the key; the plain key exists once, in the
// response that minted it.
type APIKeyMiddleware struct {
	headerName string
	tenants    *tenant.Service
}

func NewAPIKeyMiddleware(headerName string, ts *tenant.Service) *APIKeyMiddleware {
	if headerName == "" {
		headerName = "X-API-Key"
	}
	return &APIKeyMiddleware{headerName: headerName, tenants: ts}
}

func (m *APIKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(m.headerName)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		t, err := m.tenants.GetByAPIKey(r.Context(), HashAPIKey(key))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		// A key only opens its own tenant's routes.
		if param := chi.URLParam(r, "tenantID"); param != "" {
			id, err := uuid.Parse(param)
			if err != nil || id != t.ID {
				writeError(w, http.StatusForbidden, "API key does not match tenant")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithTenant(r.Context(), t)))
	})
}

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// NewAPIKey mints a fresh key and its storable hash.
func NewAPIKey() (plain, hash string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plain = "mtx_" + hex.EncodeToString(buf)
	return plain, HashAPIKey(plain), nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
