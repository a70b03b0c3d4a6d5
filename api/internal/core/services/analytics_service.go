package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/backsnote/backsnote/api/internal/core/domain"
)

const trackTimeout = 3 * time.Second

// AnalyticsService records usage events without ever blocking or failing the caller.
type AnalyticsService struct {
	sink   domain.EventRepository
	logger *slog.Logger
	wg     sync.WaitGroup
}

var _ domain.AnalyticsTracker = (*AnalyticsService)(nil)

// NewAnalyticsService accepts a nil sink, in which case events are only logged at debug level.
func NewAnalyticsService(sink domain.EventRepository, logger *slog.Logger) *AnalyticsService {
	return &AnalyticsService{sink: sink, logger: logger}
}

// TrackEvent persists one event in the background.
func (s *AnalyticsService) TrackEvent(name, noteID string, params map[string]any) {
	if params == nil {
		params = map[string]any{}
	}
	if s.sink == nil {
		s.logger.Debug("Analytics not initialized, skipping event", slog.String("event", name), slog.Any("params", params))
		return
	}

	event := &domain.AnalyticsEvent{
		ID:         uuid.New(),
		Name:       name,
		NoteID:     noteID,
		Params:     params,
		OccurredAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(params)
	if err != nil {
		s.logger.Error("Failed to track analytics event", slog.String("event", name), slog.String("error", err.Error()))
		return
	}
	event.ParamsJSON = raw

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), trackTimeout)
		defer cancel()

		if err := s.sink.Insert(ctx, event); err != nil {
			s.logger.Error("Failed to track analytics event", slog.String("event", name), slog.String("error", err.Error()))
			return
		}
		s.logger.Debug("Analytics event tracked", slog.String("event", name), slog.String("note_id", noteID))
	}()
}

func (s *AnalyticsService) TrackNoteCreated(noteID string) {
	s.TrackEvent(domain.EventNoteCreated, noteID, map[string]any{"note_id": noteID})
}

func (s *AnalyticsService) TrackNoteAccessed(noteID string) {
	s.TrackEvent(domain.EventNoteAccessed, noteID, map[string]any{"note_id": noteID})
}

func (s *AnalyticsService) TrackNoteUpdated(noteID string, contentLength int) {
	s.TrackEvent(domain.EventNoteUpdated, noteID, map[string]any{
		"note_id":        noteID,
		"content_length": contentLength,
	})
}

// Wait blocks until in-flight events are written. Used on shutdown and in tests.
func (s *AnalyticsService) Wait() {
	s.wg.Wait()
}
