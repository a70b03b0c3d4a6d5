package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/backsnote/backsnote/api/internal/core/domain"
	"github.com/backsnote/backsnote/api/internal/core/utils"
	"github.com/backsnote/backsnote/api/internal/metrics"
	"github.com/backsnote/backsnote/api/internal/telemetry"
)

// NoteService encrypts note content on the way into the store and decrypts it on the way out.
// Repositories and caches only ever hold envelopes.
type NoteService struct {
	repo    domain.NoteRepository
	cache   domain.NoteCache
	cipher  domain.ContentCipher
	hub     *telemetry.Hub
	tracker domain.AnalyticsTracker
	logger  *slog.Logger
}

var _ domain.NoteService = (*NoteService)(nil)

func NewNoteService(
	repo domain.NoteRepository,
	cache domain.NoteCache,
	cipher domain.ContentCipher,
	hub *telemetry.Hub,
	tracker domain.AnalyticsTracker,
	logger *slog.Logger,
) *NoteService {
	return &NoteService{
		repo:    repo,
		cache:   cache,
		cipher:  cipher,
		hub:     hub,
		tracker: tracker,
		logger:  logger,
	}
}

// Create stores a new empty note.
func (s *NoteService) Create(ctx context.Context, id string) (*domain.Note, error) {
	if !utils.IsValidNoteID(id) {
		return nil, domain.ErrInvalidNoteID
	}

	note := &domain.Note{ID: id}
	if err := s.repo.Create(ctx, note); err != nil {
		s.logger.Error("Failed to create note", slog.String("note_id", id), slog.String("error", err.Error()))
		return nil, err
	}

	s.cache.Save(ctx, note)
	s.tracker.TrackNoteCreated(id)
	s.logger.Info("Note created", slog.String("note_id", id))
	return note, nil
}

// Open returns the note, creating it first if it does not exist yet.
func (s *NoteService) Open(ctx context.Context, id string) (*domain.Note, error) {
	if !utils.IsValidNoteID(id) {
		return nil, domain.ErrInvalidNoteID
	}

	stored, err := s.load(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("Note does not exist, creating new note", slog.String("note_id", id))
		stored, err = s.Create(ctx, id)
		if errors.Is(err, domain.ErrNoteExists) {
			// Lost a create race with another client; read the winner.
			stored, err = s.load(ctx, id)
		}
	}
	if err != nil {
		return nil, err
	}

	s.tracker.TrackNoteAccessed(id)
	return s.reveal(ctx, stored), nil
}

// Get returns an existing note.
func (s *NoteService) Get(ctx context.Context, id string) (*domain.Note, error) {
	if !utils.IsValidNoteID(id) {
		return nil, domain.ErrInvalidNoteID
	}

	stored, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.reveal(ctx, stored), nil
}

// Update encrypts and persists new content, then pushes the plaintext to subscribers.
// Failures are returned as-is; retrying is the caller's decision.
func (s *NoteService) Update(ctx context.Context, id string, content string) (*domain.Note, error) {
	if !utils.IsValidNoteID(id) {
		return nil, domain.ErrInvalidNoteID
	}

	sealed, err := s.cipher.Encrypt(ctx, content)
	if err != nil {
		metrics.EnvelopeEncryptTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.EnvelopeEncryptTotal.WithLabelValues("ok").Inc()

	stored, err := s.repo.UpdateContent(ctx, id, sealed)
	if err != nil {
		s.logger.Error("Failed to update note", slog.String("note_id", id), slog.String("error", err.Error()))
		return nil, err
	}
	s.cache.Save(ctx, stored)

	note := *stored
	note.Content = content
	s.hub.Broadcast(note)

	s.tracker.TrackNoteUpdated(id, utf8.RuneCountInString(content))
	s.logger.Debug("Note updated", slog.String("note_id", id))
	return &note, nil
}

// Subscribe streams plaintext updates of a note until ctx ends or the returned cancel func is
// called, whichever comes first.
func (s *NoteService) Subscribe(ctx context.Context, id string) (<-chan domain.Note, func(), error) {
	if !utils.IsValidNoteID(id) {
		return nil, nil, domain.ErrInvalidNoteID
	}

	ch := s.hub.Subscribe(id)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.hub.Unsubscribe(id, ch)
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	s.logger.Debug("Real-time subscription opened", slog.String("note_id", id))
	return ch, cancel, nil
}

// Refresh reloads a note from the store, bypassing the cache, and broadcasts it. It is driven
// by update notifications from other instances.
func (s *NoteService) Refresh(ctx context.Context, id string) error {
	stored, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", id, err)
	}
	s.cache.Save(ctx, stored)
	s.hub.Broadcast(*s.reveal(ctx, stored))
	return nil
}

func (s *NoteService) load(ctx context.Context, id string) (*domain.Note, error) {
	if cached := s.cache.Get(ctx, id); cached != nil {
		return cached, nil
	}
	stored, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Save(ctx, stored)
	return stored, nil
}

// reveal returns a copy of a stored note with its content decrypted.
func (s *NoteService) reveal(ctx context.Context, stored *domain.Note) *domain.Note {
	res := s.cipher.Open(ctx, stored.Content)
	metrics.EnvelopeDecryptTotal.WithLabelValues(res.Status.String()).Inc()

	if res.Status == domain.PassthroughLegacy {
		s.logger.Warn("Serving stored content unchanged",
			slog.String("note_id", stored.ID),
			slog.String("reason", res.Reason),
		)
	}

	note := *stored
	note.Content = res.Content
	return &note
}
