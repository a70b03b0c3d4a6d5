package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/backsnote/backsnote/api/internal/core/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mapCache struct {
	mu    sync.Mutex
	notes map[string]domain.Note
}

func newMapCache() *mapCache { return &mapCache{notes: make(map[string]domain.Note)} }

func (c *mapCache) Get(_ context.Context, id string) *domain.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.notes[id]
	if !ok {
		return nil
	}
	return &n
}

func (c *mapCache) Save(_ context.Context, note *domain.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes[note.ID] = *note
}

func (c *mapCache) Clear(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.notes, id)
}

func (c *mapCache) ClearAll(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = make(map[string]domain.Note)
}

type trackedCall struct {
	Event  string
	NoteID string
	Length int
}

type recordingTracker struct {
	mu    sync.Mutex
	calls []trackedCall
}

func (r *recordingTracker) add(c trackedCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recordingTracker) TrackNoteCreated(id string) {
	r.add(trackedCall{Event: domain.EventNoteCreated, NoteID: id})
}

func (r *recordingTracker) TrackNoteAccessed(id string) {
	r.add(trackedCall{Event: domain.EventNoteAccessed, NoteID: id})
}

func (r *recordingTracker) TrackNoteUpdated(id string, n int) {
	r.add(trackedCall{Event: domain.EventNoteUpdated, NoteID: id, Length: n})
}

func (r *recordingTracker) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		out = append(out, c.Event)
	}
	return out
}

type memoryEvents struct {
	mu     sync.Mutex
	events []*domain.AnalyticsEvent
	fail   bool
}

func (m *memoryEvents) Insert(_ context.Context, e *domain.AnalyticsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("sink unavailable")
	}
	m.events = append(m.events, e)
	return nil
}
