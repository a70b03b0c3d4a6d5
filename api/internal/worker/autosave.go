package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/backsnote/backsnote/api/internal/core/domain"
	"github.com/backsnote/backsnote/api/internal/metrics"
)

const (
	DefaultDebounce   = 500 * time.Millisecond
	defaultMaxElapsed = 30 * time.Second
)

var ErrAutosaverStopped = errors.New("autosaver stopped")

// SaveCallback receives the final outcome of a queued edit. It may run on any goroutine.
type SaveCallback func(note *domain.Note, err error)

type pendingSave struct {
	content string
	done    SaveCallback
	timer   *time.Timer
	gen     uint64
}

// Autosaver coalesces rapid edits per note: only the latest content queued within the
// debounce window is written. Writes retry with exponential backoff unless the failure is
// permanent.
type Autosaver struct {
	saver      domain.NoteSaver
	delay      time.Duration
	maxElapsed time.Duration
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]*pendingSave
	gen     uint64
	stopped bool
	wg      sync.WaitGroup
}

func NewAutosaver(saver domain.NoteSaver, delay time.Duration, logger *slog.Logger) *Autosaver {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Autosaver{
		saver:      saver,
		delay:      delay,
		maxElapsed: defaultMaxElapsed,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		pending:    make(map[string]*pendingSave),
	}
}

// Queue schedules content to be saved once the note has been quiet for the debounce delay.
// A newer edit for the same note replaces the older one and its callback.
func (a *Autosaver) Queue(noteID, content string, done SaveCallback) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return ErrAutosaverStopped
	}

	if p, ok := a.pending[noteID]; ok {
		p.timer.Stop()
	}

	a.gen++
	gen := a.gen
	a.pending[noteID] = &pendingSave{
		content: content,
		done:    done,
		gen:     gen,
		timer:   time.AfterFunc(a.delay, func() { a.fire(noteID, gen) }),
	}
	return nil
}

// Pending reports how many notes have unsaved edits.
func (a *Autosaver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *Autosaver) fire(noteID string, gen uint64) {
	a.mu.Lock()
	p, ok := a.pending[noteID]
	if !ok || p.gen != gen {
		a.mu.Unlock()
		return
	}
	delete(a.pending, noteID)
	a.wg.Add(1)
	a.mu.Unlock()

	defer a.wg.Done()
	a.save(a.ctx, noteID, p)
}

// Flush writes every pending edit now, without waiting for the debounce delay.
func (a *Autosaver) Flush(ctx context.Context) {
	a.mu.Lock()
	batch := make(map[string]*pendingSave, len(a.pending))
	for id, p := range a.pending {
		p.timer.Stop()
		batch[id] = p
	}
	a.pending = make(map[string]*pendingSave)
	a.mu.Unlock()

	for id, p := range batch {
		a.save(ctx, id, p)
	}
}

// Stop rejects new edits, flushes pending ones and waits for in-flight saves until ctx ends.
func (a *Autosaver) Stop(ctx context.Context) {
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()

	a.Flush(ctx)

	finished := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		a.logger.Warn("Autosaver stopped with saves still in flight")
	}
	a.cancel()
}

func (a *Autosaver) save(ctx context.Context, noteID string, p *pendingSave) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = a.maxElapsed

	var saved *domain.Note
	op := func() error {
		note, err := a.saver.Update(ctx, noteID, p.content)
		if err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		saved = note
		return nil
	}
	notify := func(err error, wait time.Duration) {
		a.logger.Warn("Note save failed, retrying",
			slog.String("note_id", noteID),
			slog.String("error", err.Error()),
			slog.Duration("retry_in", wait),
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if err != nil {
		metrics.NoteSavesTotal.WithLabelValues("error").Inc()
		a.logger.Error("Failed to save note", slog.String("note_id", noteID), slog.String("error", err.Error()))
	} else {
		metrics.NoteSavesTotal.WithLabelValues("ok").Inc()
	}

	if p.done != nil {
		p.done(saved, err)
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrEncryptionFailed) ||
		errors.Is(err, domain.ErrInvalidNoteID) ||
		errors.Is(err, domain.ErrNotFound) ||
		domain.IsConfigurationError(err)
}
