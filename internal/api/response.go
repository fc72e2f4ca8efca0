package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"canvas-sync/internal/canvas"
	"canvas-sync/internal/credentials"
	"canvas-sync/internal/dashboard"
	applog "canvas-sync/internal/logging"
)

type errorBody struct {
	Error      string `json:"error"`
	NeedsSetup bool   `json:"needsSetup,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusOf maps service errors to HTTP statuses.
func statusOf(err error) int {
	var fe *canvas.FetchError
	switch {
	case err == nil:
		return http.StatusOK
	case credentials.NeedsSetup(err):
		return http.StatusPreconditionFailed
	case errors.Is(err, canvas.ErrIncompleteCredentials):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrCourseNotFound):
		return http.StatusNotFound
	case errors.As(err, &fe):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeView answers with the payload. A service failure keeps the failed
// payload (empty lists, timing) and adds the error fields on the mapped
// status. Partial failures travel inside the payload with 200.
func (h *Handler) writeView(w http.ResponseWriter, r *http.Request, payload any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, payload)
		return
	}
	status := statusOf(err)
	msg := applog.SanitizeError(err)
	if status >= http.StatusInternalServerError {
		applog.With(r.Context(), h.logger).Error("request failed", zap.String("path", r.URL.Path), zap.String("error", msg))
	}
	body := payloadFields(payload)
	if body == nil {
		writeJSON(w, status, errorBody{Error: msg, NeedsSetup: status == http.StatusPreconditionFailed})
		return
	}
	if existing, _ := body["error"].(string); existing == "" {
		body["error"] = msg
	}
	if status == http.StatusPreconditionFailed {
		body["needsSetup"] = true
	}
	writeJSON(w, status, body)
}

// payloadFields flattens a JSON object payload; nil for anything else.
func payloadFields(payload any) map[string]any {
	if payload == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}
