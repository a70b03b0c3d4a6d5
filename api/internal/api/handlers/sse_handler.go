package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/backsnote/backsnote/api/internal/core/domain"
)

// EventStreamHandler relays note updates as Server-Sent Events, for read-only viewers that
// cannot hold a WebSocket open.
type EventStreamHandler struct {
	Service domain.NoteService
	Logger  *slog.Logger
}

func NewEventStreamHandler(service domain.NoteService, logger *slog.Logger) *EventStreamHandler {
	return &EventStreamHandler{Service: service, Logger: logger}
}

// StreamNote handles GET /api/v1/notes/{id}/events
func (h *EventStreamHandler) StreamNote(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Streaming unsupported"})
		return
	}

	note, err := h.Service.Open(r.Context(), noteID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	// Tie the subscription to the request so a closed tab releases it.
	ctx := r.Context()
	updates, unsubscribe, err := h.Service.Subscribe(ctx, noteID)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, note); err != nil {
		return
	}
	flusher.Flush()

	h.Logger.Debug("SSE connection established", slog.String("note_id", noteID))

	for {
		select {
		case <-ctx.Done():
			h.Logger.Debug("SSE client disconnected", slog.String("note_id", noteID))
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, &update); err != nil {
				h.Logger.Warn("Failed to write to SSE client",
					slog.String("note_id", noteID),
					slog.String("error", err.Error()),
				)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, note *domain.Note) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: note\ndata: %s\n\n", payload)
	return err
}
