package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backsnote/backsnote/api/internal/core/domain"
)

// NotifyChannel carries "<instance>:<note id>" payloads for every content update.
const NotifyChannel = "note_updates"

const uniqueViolation = "23505"

// NoteRepository implements domain.NoteRepository on PostgreSQL.
type NoteRepository struct {
	pool       *pgxpool.Pool
	instanceID string
}

func NewNoteRepository(pool *pgxpool.Pool, instanceID string) *NoteRepository {
	return &NoteRepository{pool: pool, instanceID: instanceID}
}

// Create inserts a note and scans the database timestamps back into it.
func (r *NoteRepository) Create(ctx context.Context, note *domain.Note) error {
	query := `
		INSERT INTO notes (id, content)
		VALUES ($1, $2)
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, note.ID, note.Content).Scan(&note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrNoteExists
		}
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

func (r *NoteRepository) GetByID(ctx context.Context, id string) (*domain.Note, error) {
	query := `SELECT id, content, created_at, updated_at FROM notes WHERE id = $1`

	var n domain.Note
	err := r.pool.QueryRow(ctx, query, id).Scan(&n.ID, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return &n, nil
}

// UpdateContent replaces the stored content and notifies listeners in the same transaction,
// so the notification is only delivered once the write is visible.
func (r *NoteRepository) UpdateContent(ctx context.Context, id string, content string) (*domain.Note, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE notes SET content = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, content, created_at, updated_at
	`
	var n domain.Note
	err = tx.QueryRow(ctx, query, id, content).Scan(&n.ID, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, r.instanceID+":"+id); err != nil {
		return nil, fmt.Errorf("failed to publish note update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit note update: %w", err)
	}
	return &n, nil
}
