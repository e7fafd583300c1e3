package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence for audit events.
type Repository interface {
	Insert(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert persists an audit event.
func (r *PGRepository) Insert(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, user_id, action, query, tables, success, error_message, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.UserID, string(event.Action), event.Query, event.Tables, event.Success, event.ErrorMessage, event.OccurredAt)
	return err
}

// ListRecent returns the latest events, newest first.
func (r *PGRepository) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, action, query, tables, success, error_message, occurred_at
		 FROM audit_logs ORDER BY occurred_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var event Event
		var action string
		if err := rows.Scan(&event.ID, &event.UserID, &action, &event.Query, &event.Tables, &event.Success, &event.ErrorMessage, &event.OccurredAt); err != nil {
			return nil, err
		}
		event.Action = Action(action)
		events = append(events, event)
	}
	return events, rows.Err()
}

// DeleteOlderThan removes events older than the cutoff and reports how
// many were deleted.
func (r *PGRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
