package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/backsnote/backsnote/api/internal/core/utils"
)

// ValidateNoteID rejects malformed note IDs before they reach a handler.
func ValidateNoteID(param string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !utils.IsValidNoteID(chi.URLParam(r, param)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"message":"Invalid note ID"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
