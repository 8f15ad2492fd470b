package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mentorix/backend/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeAppError maps an error to its HTTP status and a message safe to
// show. Internals are logged with the real cause and surfaced opaquely.
func writeAppError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= 500 {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": apperr.UserMessage(err)})
}
