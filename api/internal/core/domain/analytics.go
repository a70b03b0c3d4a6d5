package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventNoteCreated  = "note_created"
	EventNoteAccessed = "note_accessed"
	EventNoteUpdated  = "note_updated"
)

// AnalyticsEvent is a single usage event. Params never contain note content.
type AnalyticsEvent struct {
	ID         uuid.UUID      `db:"id"`
	Name       string         `db:"name"`
	NoteID     string         `db:"note_id"`
	Params     map[string]any `db:"-"`
	ParamsJSON []byte         `db:"params"`
	OccurredAt time.Time      `db:"occurred_at"`
}

// EventRepository stores analytics events.
type EventRepository interface {
	Insert(ctx context.Context, event *AnalyticsEvent) error
}

// AnalyticsTracker emits usage events. Calls are fire-and-forget.
type AnalyticsTracker interface {
	TrackNoteCreated(noteID string)
	TrackNoteAccessed(noteID string)
	TrackNoteUpdated(noteID string, contentLength int)
}
