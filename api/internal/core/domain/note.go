package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("note not found")
	ErrNoteExists    = errors.New("note already exists")
	ErrInvalidNoteID = errors.New("invalid note id")
)

// Note is a single shared text document addressed by a short identifier.
// Content is plaintext on the service boundary and an envelope at rest.
type Note struct {
	ID        string    `json:"id" db:"id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NoteRepository persists notes exactly as given. It never sees plaintext.
type NoteRepository interface {
	Create(ctx context.Context, note *Note) error
	GetByID(ctx context.Context, id string) (*Note, error)
	UpdateContent(ctx context.Context, id string, content string) (*Note, error)
}

// NoteCache is a best-effort read-through cache of stored (encrypted) notes.
// Implementations swallow their own failures.
type NoteCache interface {
	Get(ctx context.Context, id string) *Note
	Save(ctx context.Context, note *Note)
	Clear(ctx context.Context, id string)
	ClearAll(ctx context.Context)
}

// NoteService is the use-case boundary consumed by the HTTP layer.
type NoteService interface {
	Create(ctx context.Context, id string) (*Note, error)
	Open(ctx context.Context, id string) (*Note, error)
	Get(ctx context.Context, id string) (*Note, error)
	Update(ctx context.Context, id string, content string) (*Note, error)
	Subscribe(ctx context.Context, id string) (<-chan Note, func(), error)
}

// NoteSaver is the narrow dependency of the autosave worker.
type NoteSaver interface {
	Update(ctx context.Context, id string, content string) (*Note, error)
}
