package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/fieldtrace/presence-api/internal/app/adminauth"
	"github.com/fieldtrace/presence-api/internal/app/identity"
	"github.com/fieldtrace/presence-api/internal/app/presence"
	"github.com/fieldtrace/presence-api/internal/app/telemetry"
)

type errorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: errorBody{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

// writeServiceError maps the typed application errors onto the wire envelope.
// Anything untyped is a store or programming failure and stays opaque.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if ie := (*identity.Error)(nil); errors.As(err, &ie) {
		writeError(w, r, ie.Status, ie.Code, ie.Message, ie.Details)
		return
	}
	if te := (*telemetry.Error)(nil); errors.As(err, &te) {
		writeError(w, r, te.Status, te.Code, te.Message, te.Details)
		return
	}
	if pe := (*presence.Error)(nil); errors.As(err, &pe) {
		writeError(w, r, pe.Status, pe.Code, pe.Message, pe.Details)
		return
	}
	if ae := (*adminauth.Error)(nil); errors.As(err, &ae) {
		writeError(w, r, ae.Status, ae.Code, ae.Message, nil)
		return
	}
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
