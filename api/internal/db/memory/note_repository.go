package memory

import (
	"context"
	"sync"
	"time"

	"github.com/backsnote/backsnote/api/internal/core/domain"
)

// NoteRepository is an in-process domain.NoteRepository for development and tests.
type NoteRepository struct {
	mu    sync.RWMutex
	notes map[string]domain.Note
	now   func() time.Time
}

func NewNoteRepository() *NoteRepository {
	return &NoteRepository{
		notes: make(map[string]domain.Note),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *NoteRepository) Create(_ context.Context, note *domain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notes[note.ID]; ok {
		return domain.ErrNoteExists
	}
	now := r.now()
	note.CreatedAt = now
	note.UpdatedAt = now
	r.notes[note.ID] = *note
	return nil
}

func (r *NoteRepository) GetByID(_ context.Context, id string) (*domain.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &n, nil
}

func (r *NoteRepository) UpdateContent(_ context.Context, id string, content string) (*domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	n.Content = content
	n.UpdatedAt = r.now()
	r.notes[id] = n
	return &n, nil
}

// Raw returns the stored content as persisted, for inspection in tests.
func (r *NoteRepository) Raw(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notes[id]
	return n.Content, ok
}
