package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/backsnote/backsnote/api/internal/api/handlers"
	note_middleware "github.com/backsnote/backsnote/api/internal/api/middleware"
)

// maxBodyBytes fits a maximum-length note of 4-byte characters plus JSON framing.
const maxBodyBytes = 4*handlers.MaxContentLength + 4096

// RouterConfig defines the dependencies required to build the API routing tree.
type RouterConfig struct {
	AllowedOrigins []string
	NoteHandler    *handlers.NoteHandler
	WSHandler      *handlers.WebSocketHandler
	SSEHandler     *handlers.EventStreamHandler
	HealthHandler  *handlers.HealthHandler
	RateLimiter    *note_middleware.RateLimiter
	Logger         *slog.Logger
}

// NewRouter constructs the Chi multiplexer, attaches global middleware, and wires all endpoints.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// =========================================================================
	// 1. Global Middleware Pipeline
	// =========================================================================

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(note_middleware.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(note_middleware.MaxBytes(maxBodyBytes))

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// =========================================================================
	// 2. API v1 Routing Tree
	// =========================================================================

	r.Route("/api/v1/notes", func(r chi.Router) {
		// Plain request/response routes get a deadline; the streaming routes below must not.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Post("/", cfg.NoteHandler.Create)
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Use(note_middleware.ValidateNoteID("id"))

			r.With(middleware.Timeout(30*time.Second)).Get("/", cfg.NoteHandler.Get)
			r.With(middleware.Timeout(30*time.Second)).Put("/", cfg.NoteHandler.Update)

			if cfg.WSHandler != nil {
				r.Get("/ws", cfg.WSHandler.StreamNote)
			}
			if cfg.SSEHandler != nil {
				r.Get("/events", cfg.SSEHandler.StreamNote)
			}
		})
	})

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Check)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	return r
}
