package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/ardhiansyah/veloria/internal/common/config"
	"github.com/ardhiansyah/veloria/internal/common/db"
	"github.com/ardhiansyah/veloria/internal/common/logger"
)

func setupTestDB(t *testing.T) (*Repository, *db.DB) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg := config.DatabaseConfig{
		Host:            "localhost",
		Port:            "5432",
		User:            "postgres",
		Password:        "postgres",
		DBName:          "veloria_outbox_test",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}

	log := logger.New("test")
	database, err := db.Connect(cfg, log)
	if err != nil {
		t.Skipf("Cannot connect to database: %v", err)
		return nil, nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS outbox_events (
		id UUID PRIMARY KEY,
		aggregate_id VARCHAR(255) NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		topic VARCHAR(100) NOT NULL,
		payload JSONB NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		attempts INT NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		published_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_events(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox_events(aggregate_id);

	TRUNCATE outbox_events CASCADE;
	`

	if _, err := database.Exec(schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	repo := NewRepository(database.DB, log)
	return repo, database
}

func cleanupTestDB(_ *testing.T, database *db.DB) {
	if database == nil {
		return
	}
	database.Exec("TRUNCATE outbox_events CASCADE")
	database.Close()
}

func daySyncedEvent(day string) *OutboxEvent {
	return &OutboxEvent{
		AggregateID: day,
		EventType:   "stats.day_synced",
		Topic:       "stats.day_synced",
		Payload: map[string]interface{}{
			"date":      day,
			"synced_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// TEST: Save outbox event within a transaction
func TestSaveEvent(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	event := daySyncedEvent("2024-06-01")

	if err := repo.SaveEvent(ctx, tx, event); err != nil {
		t.Fatalf("Failed to save event: %v", err)
	}

	if event.ID == "" {
		t.Error("Expected event ID to be set")
	}

	if event.Status != StatusPending {
		t.Errorf("Expected status pending, got %s", event.Status)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit transaction: %v", err)
	}
}

// TEST: Get pending events for publishing
func TestGetPendingEvents(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()

	days := []string{"2024-06-01", "2024-06-02", "2024-06-03"}
	for _, day := range days {
		tx, _ := database.BeginTx(ctx, nil)
		repo.SaveEvent(ctx, tx, daySyncedEvent(day))
		tx.Commit()
	}

	events, err := repo.GetPendingEvents(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to get pending events: %v", err)
	}

	if len(events) != 3 {
		t.Errorf("Expected 3 events, got %d", len(events))
	}

	if len(events) >= 2 {
		if events[0].CreatedAt.After(events[1].CreatedAt) {
			t.Error("Events should be ordered by created_at ASC")
		}
	}
}

// TEST: Mark event as published
func TestMarkAsPublished(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()

	tx, _ := database.BeginTx(ctx, nil)
	event := daySyncedEvent("2024-06-10")
	repo.SaveEvent(ctx, tx, event)
	tx.Commit()

	if err := repo.MarkAsPublished(ctx, event.ID); err != nil {
		t.Fatalf("Failed to mark as published: %v", err)
	}

	events, _ := repo.GetPendingEvents(ctx, 10)
	for _, e := range events {
		if e.ID == event.ID {
			t.Error("Event should not be in pending list after marking as published")
		}
	}
}

// TEST: Mark event as failed
func TestMarkAsFailed(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()

	tx, _ := database.BeginTx(ctx, nil)
	event := daySyncedEvent("2024-06-11")
	repo.SaveEvent(ctx, tx, event)
	tx.Commit()

	if err := repo.MarkAsFailed(ctx, event.ID, "Kafka broker unavailable"); err != nil {
		t.Fatalf("Failed to mark as failed: %v", err)
	}

	events, _ := repo.GetPendingEvents(ctx, 10)
	for _, e := range events {
		if e.ID == event.ID {
			t.Error("Failed event should not be in pending list")
		}
	}
}

// TEST: Increment attempt counter
func TestIncrementAttempt(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()

	tx, _ := database.BeginTx(ctx, nil)
	event := daySyncedEvent("2024-06-12")
	repo.SaveEvent(ctx, tx, event)
	tx.Commit()

	for i := 0; i < 3; i++ {
		if err := repo.IncrementAttempt(ctx, event.ID, "Temporary failure"); err != nil {
			t.Fatalf("Failed to increment attempt: %v", err)
		}
	}

	events, _ := repo.GetPendingEvents(ctx, 10)
	found := false
	for _, e := range events {
		if e.ID == event.ID {
			found = true
			if e.Attempts != 3 {
				t.Errorf("Expected 3 attempts, got %d", e.Attempts)
			}
		}
	}

	if !found {
		t.Error("Event should still be in pending list")
	}
}

// TEST: Events with max attempts are excluded from pending
func TestMaxAttemptsExclusion(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()

	tx, _ := database.BeginTx(ctx, nil)
	event := daySyncedEvent("2024-06-13")
	repo.SaveEvent(ctx, tx, event)
	tx.Commit()

	for i := 0; i < MaxAttempts; i++ {
		repo.IncrementAttempt(ctx, event.ID, "Retry failed")
	}

	events, _ := repo.GetPendingEvents(ctx, 10)
	for _, e := range events {
		if e.ID == event.ID {
			t.Error("Event with max attempts should not be in pending list")
		}
	}
}
