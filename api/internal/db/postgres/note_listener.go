package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Refresher reloads a note and pushes it to local subscribers.
type Refresher interface {
	Refresh(ctx context.Context, id string) error
}

// NoteListener relays note updates written by other instances to this instance's subscribers.
type NoteListener struct {
	pool       *pgxpool.Pool
	instanceID string
	refresher  Refresher
	logger     *slog.Logger
}

func NewNoteListener(pool *pgxpool.Pool, instanceID string, refresher Refresher, logger *slog.Logger) *NoteListener {
	return &NoteListener{
		pool:       pool,
		instanceID: instanceID,
		refresher:  refresher,
		logger:     logger,
	}
}

// Start blocks until ctx is cancelled, reconnecting with exponential backoff whenever the
// dedicated LISTEN connection drops.
func (l *NoteListener) Start(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	b.MaxInterval = 30 * time.Second

	op := func() error {
		err := l.listen(ctx, b.Reset)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		l.logger.Warn("Note listener disconnected, retrying",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", wait),
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil && !errors.Is(err, context.Canceled) {
		l.logger.Error("Note listener stopped", slog.String("error", err.Error()))
	}
}

func (l *NoteListener) listen(ctx context.Context, connected func()) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}
	connected()
	l.logger.Info("Note listener active", slog.String("channel", NotifyChannel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		origin, noteID, ok := strings.Cut(n.Payload, ":")
		if !ok || origin == l.instanceID {
			continue
		}

		if err := l.refresher.Refresh(ctx, noteID); err != nil {
			l.logger.Warn("Failed to relay remote note update",
				slog.String("note_id", noteID),
				slog.String("error", err.Error()),
			)
		}
	}
}
