package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/backsnote/backsnote/api/internal/core/domain"
)

type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert appends one analytics event.
func (r *EventRepository) Insert(ctx context.Context, e *domain.AnalyticsEvent) error {
	query := `
		INSERT INTO note_events (id, name, note_id, params, occurred_at)
		VALUES (:id, :name, :note_id, :params, :occurred_at)
	`
	if e.ParamsJSON == nil {
		raw, err := json.Marshal(e.Params)
		if err != nil {
			return fmt.Errorf("failed to encode event params: %w", err)
		}
		e.ParamsJSON = raw
	}

	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("failed to insert event %s: %w", e.Name, err)
	}
	return nil
}
