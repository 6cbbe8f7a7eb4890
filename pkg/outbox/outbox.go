package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ardhiansyah/veloria/internal/common/logger"
)

// Event statuses.
const (
	StatusPending   = "pending"
	StatusPublished = "published"
	StatusFailed    = "failed"
)

// MaxAttempts is the number of delivery attempts before an event is parked.
const MaxAttempts = 5

// OutboxEvent is a domain event persisted in the same transaction as the
// write it describes, relayed to Kafka by the Relay worker.
type OutboxEvent struct {
	ID          string                 `json:"id"`
	AggregateID string                 `json:"aggregate_id"`
	EventType   string                 `json:"event_type"`
	Topic       string                 `json:"topic"`
	Payload     map[string]interface{} `json:"payload"`
	Status      string                 `json:"status"`
	Attempts    int                    `json:"attempts"`
	LastError   *string                `json:"last_error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	PublishedAt *time.Time             `json:"published_at,omitempty"`
}

type Repository struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewRepository(db *sql.DB, log *logger.Logger) *Repository {
	return &Repository{db: db, logger: log}
}

// SaveEvent inserts the event within the caller's transaction so the event
// is durable if and only if the business write commits.
func (r *Repository) SaveEvent(ctx context.Context, tx *sql.Tx, event *OutboxEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.Status = StatusPending

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	query := `
		INSERT INTO outbox_events (id, aggregate_id, event_type, topic, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err = tx.QueryRowContext(ctx, query,
		event.ID,
		event.AggregateID,
		event.EventType,
		event.Topic,
		payload,
		event.Status,
	).Scan(&event.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}

// GetPendingEvents returns undelivered events in insertion order, skipping
// events that exhausted their attempts.
func (r *Repository) GetPendingEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `
		SELECT id, aggregate_id, event_type, topic, payload, status, attempts, last_error, created_at, published_at
		FROM outbox_events
		WHERE status = $1 AND attempts < $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, StatusPending, MaxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		var payload []byte
		err := rows.Scan(
			&e.ID, &e.AggregateID, &e.EventType, &e.Topic, &payload,
			&e.Status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.PublishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outbox payload: %w", err)
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

// MarkAsPublished records successful delivery.
func (r *Repository) MarkAsPublished(ctx context.Context, eventID string) error {
	query := `
		UPDATE outbox_events
		SET status = $1, published_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, StatusPublished, eventID); err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}
	return nil
}

// MarkAsFailed parks the event permanently.
func (r *Repository) MarkAsFailed(ctx context.Context, eventID, errorMsg string) error {
	query := `
		UPDATE outbox_events
		SET status = $1, last_error = $2
		WHERE id = $3
	`
	if _, err := r.db.ExecContext(ctx, query, StatusFailed, errorMsg, eventID); err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}
	return nil
}

// IncrementAttempt bumps the retry counter, keeping the event pending.
func (r *Repository) IncrementAttempt(ctx context.Context, eventID, errorMsg string) error {
	query := `
		UPDATE outbox_events
		SET attempts = attempts + 1, last_error = $1
		WHERE id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, errorMsg, eventID); err != nil {
		return fmt.Errorf("failed to increment attempt: %w", err)
	}
	return nil
}
