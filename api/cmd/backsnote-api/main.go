package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backsnote/backsnote/api/internal/api/handlers"
	"github.com/backsnote/backsnote/api/internal/api/middleware"
	"github.com/backsnote/backsnote/api/internal/api/router"
	"github.com/backsnote/backsnote/api/internal/cache"
	"github.com/backsnote/backsnote/api/internal/config"
	"github.com/backsnote/backsnote/api/internal/core/domain"
	"github.com/backsnote/backsnote/api/internal/core/services"
	"github.com/backsnote/backsnote/api/internal/db/memory"
	"github.com/backsnote/backsnote/api/internal/db/postgres"
	"github.com/backsnote/backsnote/api/internal/infrastructure/crypto"
	"github.com/backsnote/backsnote/api/internal/telemetry"
	"github.com/backsnote/backsnote/api/internal/worker"
)

func main() {
	// --- 1. Configuration & Logging ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("FATAL: invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("Booting backsnote API", slog.String("env", cfg.Environment))

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// --- 2. Storage ---
	var (
		noteRepo    domain.NoteRepository
		eventSink   domain.EventRepository
		healthCheck = map[string]handlers.Pinger{}
		pgPool      *pgxpool.Pool
	)

	instanceID := uuid.NewString()

	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(rootCtx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("FATAL: database unreachable", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()
		pgPool = pool

		if err := postgres.Migrate(rootCtx, pool); err != nil {
			logger.Error("FATAL: migration failed", slog.String("error", err.Error()))
			os.Exit(1)
		}

		sqlDB, err := postgres.OpenSQLX(rootCtx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("FATAL: analytics store unreachable", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer sqlDB.Close()

		noteRepo = postgres.NewNoteRepository(pool, instanceID)
		eventSink = postgres.NewEventRepository(sqlDB)
		healthCheck["postgres"] = pool
	} else {
		logger.Warn("DATABASE_URL not set, notes are kept in memory")
		noteRepo = memory.NewNoteRepository()
	}

	noteCache := cache.NewRedisNoteCache(cfg.RedisAddr, cfg.CacheTTL, logger)
	defer noteCache.Close()
	if cfg.RedisAddr != "" {
		healthCheck["redis"] = noteCache
	}

	// --- 3. Dependency Injection ---
	envelope := crypto.NewEnvelope(crypto.NewKeyCache(cfg.EncryptionKey, logger), logger)
	hub := telemetry.NewHub()
	analytics := services.NewAnalyticsService(eventSink, logger)
	noteService := services.NewNoteService(noteRepo, noteCache, envelope, hub, analytics, logger)

	// Other instances announce their writes through LISTEN/NOTIFY.
	var listener *postgres.NoteListener
	if pgPool != nil {
		listener = postgres.NewNoteListener(pgPool, instanceID, noteService, logger)
	}

	// --- 4. Background Workers ---
	autosaver := worker.NewAutosaver(noteService, cfg.SaveDebounce, logger)

	listenerDone := make(chan struct{})
	if listener != nil {
		go func() {
			defer close(listenerDone)
			listener.Start(rootCtx)
		}()
	} else {
		close(listenerDone)
	}

	// --- 5. HTTP Gateway ---
	mux := router.NewRouter(router.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		NoteHandler:    handlers.NewNoteHandler(noteService),
		WSHandler:      handlers.NewWebSocketHandler(noteService, autosaver, cfg.AllowedOrigins, logger),
		SSEHandler:     handlers.NewEventStreamHandler(noteService, logger),
		HealthHandler:  handlers.NewHealthHandler(healthCheck),
		RateLimiter:    middleware.NewRateLimiter(rootCtx, 20, 60),
		Logger:         logger,
	})

	// No WriteTimeout: note sockets and event streams are long-lived.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// --- 6. Graceful Exit ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("backsnote API listening", slog.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("CRITICAL: server crashed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", slog.String("error", err.Error()))
	}

	// Edits still inside the debounce window are written before the store goes away.
	autosaver.Stop(shutdownCtx)
	analytics.Wait()

	cancelRoot()
	<-listenerDone
	logger.Info("backsnote API stopped")
}
