package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/backsnote/backsnote/api/internal/core/domain"
)

type errorResponse struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// HandleError maps service errors onto HTTP responses. Anything unrecognised is logged and
// reported as a generic 500 so internals never reach the client.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validationErrs):
		fields := make(map[string]string, len(validationErrs))
		for _, fe := range validationErrs {
			fields[strings.ToLower(fe.Field())] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Validation failed", Fields: fields})
	case errors.Is(err, domain.ErrInvalidNoteID):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid note ID"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Note not found"})
	case errors.Is(err, domain.ErrNoteExists):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "Note already exists"})
	default:
		slog.Default().Error("Request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
