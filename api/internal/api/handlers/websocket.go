package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/backsnote/backsnote/api/internal/core/domain"
	"github.com/backsnote/backsnote/api/internal/worker"
)

// ==============================================================================
// 1. WebSocket Configuration & Constants
// ==============================================================================

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// A full note plus JSON framing. Content is capped in characters, so allow 4 bytes each.
	maxMessageSize = 4*MaxContentLength + 1024
)

// EditQueue accepts edits that should be persisted after the user stops typing.
type EditQueue interface {
	Queue(noteID, content string, done worker.SaveCallback) error
}

// Messages pushed to the browser.
type socketMessage struct {
	Type    string       `json:"type"`
	Note    *domain.Note `json:"note,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Messages received from the browser.
type editMessage struct {
	Content *string `json:"content" validate:"required,max=1000000"`
}

// ==============================================================================
// 2. The Handler Struct
// ==============================================================================

type WebSocketHandler struct {
	Service  domain.NoteService
	Edits    EditQueue
	Logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(service domain.NoteService, edits EditQueue, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		Service: service,
		Edits:   edits,
		Logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// ==============================================================================
// 3. HTTP Methods (The Upgrader)
// ==============================================================================

// StreamNote handles GET /api/v1/notes/{id}/ws
func (h *WebSocketHandler) StreamNote(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "id")

	// Resolve the note before upgrading so failures still get a proper HTTP status.
	note, err := h.Service.Open(r.Context(), noteID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade WebSocket connection",
			slog.String("note_id", noteID),
			slog.String("error", err.Error()),
		)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe, err := h.Service.Subscribe(ctx, noteID)
	if err != nil {
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"))
		ws.Close()
		return
	}
	defer unsubscribe()

	// Save outcomes are written by the write pump; gorilla allows only one concurrent writer.
	saveErrors := make(chan string, 4)

	go h.readPump(ws, noteID, saveErrors, cancel)
	h.writePump(ctx, ws, note, updates, saveErrors)
}

// ==============================================================================
// 4. The Write Pump
// ==============================================================================

func (h *WebSocketHandler) writePump(ctx context.Context, ws *websocket.Conn, initial *domain.Note, updates <-chan domain.Note, saveErrors <-chan string) {
	defer func() {
		ws.Close()
		h.Logger.Debug("WebSocket write pump closed", slog.String("note_id", initial.ID))
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(socketMessage{Type: "note", Note: initial}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case note, ok := <-updates:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"))
				return
			}
			if err := ws.WriteJSON(socketMessage{Type: "note", Note: &note}); err != nil {
				h.Logger.Warn("Failed to write note to WebSocket",
					slog.String("note_id", note.ID),
					slog.String("error", err.Error()),
				)
				return
			}

		case msg := <-saveErrors:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(socketMessage{Type: "error", Message: msg}); err != nil {
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ==============================================================================
// 5. The Read Pump (Edits & Keep-Alive)
// ==============================================================================

func (h *WebSocketHandler) readPump(ws *websocket.Conn, noteID string, saveErrors chan<- string, cancel context.CancelFunc) {
	defer cancel()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	report := func(msg string) {
		select {
		case saveErrors <- msg:
		default:
		}
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logger.Warn("WebSocket closed unexpectedly",
					slog.String("note_id", noteID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))

		var msg editMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			report("Invalid edit")
			continue
		}
		if err := validate.Struct(msg); err != nil {
			report("Invalid edit")
			continue
		}

		err = h.Edits.Queue(noteID, *msg.Content, func(_ *domain.Note, err error) {
			if err != nil {
				report("Failed to save note")
			}
		})
		if err != nil {
			report("Server is shutting down")
			return
		}
	}
}
