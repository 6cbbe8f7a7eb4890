package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ardhiansyah/veloria/internal/common/db"
	"github.com/ardhiansyah/veloria/internal/common/logger"
	"github.com/ardhiansyah/veloria/internal/common/redis"
	"github.com/ardhiansyah/veloria/pkg/outbox"
)

// TopicDaySynced is published after a day's snapshot has been reconciled.
const TopicDaySynced = "stats.day_synced"

// Reconciler recomputes a day's snapshot from the transactional tables and
// overwrites the stored row. It is the only writer allowed to overwrite;
// running it twice against unchanged source data produces identical rows.
//
// An incremental event landing between the read pass and the overwrite can be
// lost. For that reason the scheduler only reconciles closed days; same-day
// sync is reserved for manual admin correction.
type Reconciler struct {
	repo       Repository
	database   *db.DB
	outboxRepo *outbox.Repository
	cache      *redis.Client
	clock      Clock
	logger     *logger.Logger
}

func NewReconciler(repo Repository, database *db.DB, outboxRepo *outbox.Repository, cache *redis.Client, clock Clock, log *logger.Logger) *Reconciler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Reconciler{
		repo:       repo,
		database:   database,
		outboxRepo: outboxRepo,
		cache:      cache,
		clock:      clock,
		logger:     log,
	}
}

// SyncDay recomputes and overwrites the snapshot for date, returning the
// written row. The overwrite and the day_synced outbox event commit together.
func (r *Reconciler) SyncDay(ctx context.Context, date time.Time) (*DailyStat, error) {
	day := Midnight(date)

	snap, err := r.repo.ComputeDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to compute snapshot for %s: %w", DayKey(day), err)
	}

	err = r.database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := r.repo.UpsertOverwrite(ctx, tx, day, snap); err != nil {
			return err
		}

		if r.outboxRepo == nil {
			return nil
		}
		event := &outbox.OutboxEvent{
			AggregateID: DayKey(day),
			EventType:   TopicDaySynced,
			Topic:       TopicDaySynced,
			Payload: map[string]interface{}{
				"date":      DayKey(day),
				"revenue":   snap.Revenue.String(),
				"synced_at": r.clock.Now().Format(time.RFC3339),
			},
		}
		return r.outboxRepo.SaveEvent(ctx, tx, event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write snapshot for %s: %w", DayKey(day), err)
	}

	r.invalidateCache(ctx, day)
	r.logger.Infof("Reconciled daily stats for %s", DayKey(day))

	return snap, nil
}

// SyncYesterday reconciles the most recent closed day. Intended for the
// daily scheduler.
func (r *Reconciler) SyncYesterday(ctx context.Context) (*DailyStat, error) {
	yesterday := Midnight(r.clock.Now()).AddDate(0, 0, -1)
	return r.SyncDay(ctx, yesterday)
}

// Backfill reconciles every day in [startDate, endDate] ascending. Days are
// independent, so a failure aborts with the days already written left intact.
func (r *Reconciler) Backfill(ctx context.Context, startDate, endDate time.Time) error {
	start := Midnight(startDate)
	end := Midnight(endDate)
	if end.Before(start) {
		return fmt.Errorf("end date %s before start date %s", DayKey(end), DayKey(start))
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if _, err := r.SyncDay(ctx, day); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reconciler) invalidateCache(ctx context.Context, day time.Time) {
	if r.cache == nil {
		return
	}
	pattern := fmt.Sprintf("stats:*%s*", DayKey(day))
	if err := r.cache.DeleteByPattern(ctx, pattern); err != nil {
		r.logger.Warnf("Failed to invalidate stats cache for %s: %v", DayKey(day), err)
	}
}
