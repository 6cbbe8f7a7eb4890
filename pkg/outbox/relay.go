package outbox

import (
	"context"
	"time"

	"github.com/ardhiansyah/veloria/internal/common/kafka"
	"github.com/ardhiansyah/veloria/internal/common/logger"
)

// Relay polls pending outbox events and publishes them to Kafka.
type Relay struct {
	repo     *Repository
	producer *kafka.Producer
	logger   *logger.Logger
	interval time.Duration
	batch    int
}

func NewRelay(repo *Repository, producer *kafka.Producer, log *logger.Logger, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Relay{
		repo:     repo,
		producer: producer,
		logger:   log,
		interval: interval,
		batch:    100,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopped")
			return
		case <-ticker.C:
			r.publishPending(ctx)
		}
	}
}

func (r *Relay) publishPending(ctx context.Context) {
	events, err := r.repo.GetPendingEvents(ctx, r.batch)
	if err != nil {
		r.logger.Errorf("Failed to fetch pending outbox events: %v", err)
		return
	}

	for _, event := range events {
		if err := r.producer.PublishEvent(ctx, event.Topic, event.AggregateID, event.Payload); err != nil {
			r.logger.Errorf("Failed to publish outbox event %s: %v", event.ID, err)
			if event.Attempts+1 >= MaxAttempts {
				if mErr := r.repo.MarkAsFailed(ctx, event.ID, err.Error()); mErr != nil {
					r.logger.Errorf("Failed to mark outbox event %s as failed: %v", event.ID, mErr)
				}
			} else if mErr := r.repo.IncrementAttempt(ctx, event.ID, err.Error()); mErr != nil {
				r.logger.Errorf("Failed to increment attempts for outbox event %s: %v", event.ID, mErr)
			}
			continue
		}

		if err := r.repo.MarkAsPublished(ctx, event.ID); err != nil {
			r.logger.Errorf("Failed to mark outbox event %s as published: %v", event.ID, err)
		}
	}
}
