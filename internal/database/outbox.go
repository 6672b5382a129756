package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessed  = "processed"
	OutboxStatusFailed     = "failed"
	OutboxStatusDeadLetter = "dead_letter"

	// MaxRetryCount is the number of failed publishes after which an event
	// is parked as dead_letter.
	MaxRetryCount = 5

	maxBackoffSeconds = 300
)

// OutboxEvent is an event waiting in outbox_event to be relayed to the stream.
type OutboxEvent struct {
	ID           uuid.UUID       `db:"id"`
	AggregateID  string          `db:"aggregate_id"`
	EventType    string          `db:"event_type"`
	Payload      json.RawMessage `db:"payload"`
	Status       string          `db:"status"`
	RetryCount   int             `db:"retry_count"`
	ErrorMessage *string         `db:"error_message"`
	CreatedAt    time.Time       `db:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at"`
	NextRetryAt  time.Time       `db:"next_retry_at"`
}

// OutboxRepository reads and updates rows in outbox_event.
type OutboxRepository struct {
	db *DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// InsertWithTx stores event as pending inside tx, filling in the id and
// timestamps when they are unset.
func (r *OutboxRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	if event.AggregateID == "" || event.EventType == "" || len(event.Payload) == 0 {
		return fmt.Errorf("outbox event needs aggregate id, type and payload")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = OutboxStatusPending
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.NextRetryAt.IsZero() {
		event.NextRetryAt = event.CreatedAt
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_event (
			id, aggregate_id, event_type, payload,
			status, retry_count, created_at, next_retry_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.AggregateID, event.EventType, event.Payload,
		event.Status, event.RetryCount, event.CreatedAt, event.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

// GetPending returns up to limit pending or retryable events, oldest first.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, aggregate_id, event_type, payload, status, retry_count,
			error_message, created_at, processed_at, next_retry_at
		FROM outbox_event
		WHERE status IN ($1, $2) AND next_retry_at <= now()
		ORDER BY created_at ASC
		LIMIT $3`,
		OutboxStatusPending, OutboxStatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		event := &OutboxEvent{}
		if err := rows.Scan(
			&event.ID, &event.AggregateID, &event.EventType, &event.Payload,
			&event.Status, &event.RetryCount, &event.ErrorMessage,
			&event.CreatedAt, &event.ProcessedAt, &event.NextRetryAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return events, nil
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE outbox_event SET status = $1, processed_at = now()
		WHERE id = $2`,
		OutboxStatusProcessed, id)
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event not found: %s", id)
	}
	return nil
}

// MarkFailed records publishErr and schedules the next attempt with an
// exponential backoff capped at five minutes.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, publishErr error) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE outbox_event SET
			retry_count   = retry_count + 1,
			error_message = $1,
			status        = CASE WHEN retry_count + 1 >= $2 THEN $3 ELSE $4 END,
			next_retry_at = now() + make_interval(secs => LEAST(power(2, retry_count + 1), $5))
		WHERE id = $6`,
		publishErr.Error(), MaxRetryCount, OutboxStatusDeadLetter, OutboxStatusFailed, float64(maxBackoffSeconds), id)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event not found: %s", id)
	}
	return nil
}

// CountByStatus returns how many events are in any of the given states.
func (r *OutboxRepository) CountByStatus(ctx context.Context, statuses ...string) (int64, error) {
	var count int64
	err := r.db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_event WHERE status = ANY($1)`, statuses,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox events: %w", err)
	}
	return count, nil
}
