package telemetry

import (
	"sync"

	"github.com/backsnote/backsnote/api/internal/core/domain"
)

const subscriberBuffer = 16

// Hub fans note updates out to every live subscriber of that note.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string][]chan domain.Note // noteID -> subscriber channels
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string][]chan domain.Note),
	}
}

// Subscribe registers a new listener for a note.
func (h *Hub) Subscribe(noteID string) chan domain.Note {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.Note, subscriberBuffer)
	h.subscribers[noteID] = append(h.subscribers[noteID], ch)
	return ch
}

// Unsubscribe removes and closes a listener. Unknown channels are ignored, so calling it twice
// is safe.
func (h *Hub) Unsubscribe(noteID string, ch chan domain.Note) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[noteID]
	for i, sub := range subs {
		if sub == ch {
			subs = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(subs) == 0 {
		delete(h.subscribers, noteID)
	} else {
		h.subscribers[noteID] = subs
	}
}

// Broadcast delivers a note to all listeners without blocking. A subscriber whose buffer is
// full misses the update; the next one carries the full content anyway.
func (h *Hub) Broadcast(note domain.Note) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers[note.ID] {
		select {
		case ch <- note:
		default:
		}
	}
}

// Subscribers returns the number of listeners for a note.
func (h *Hub) Subscribers(noteID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[noteID])
}
