package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ardhiansyah/veloria/internal/common/logger"
	"github.com/ardhiansyah/veloria/internal/common/redis"
)

// RecorderStore is the slice of Repository the recorder needs.
type RecorderStore interface {
	UpsertIncrement(ctx context.Context, date time.Time, delta StatDelta) error
	GetOrderAmount(ctx context.Context, orderID string) (decimal.Decimal, error)
}

// RecorderConfig tunes the background dispatcher.
type RecorderConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
	Clock     Clock
}

// Recorder turns business events into increments against today's snapshot
// row. Hooks are fire-and-forget: they enqueue onto a bounded queue drained
// by background workers, and every failure is logged and swallowed. The
// triggering business operation is never blocked or failed by analytics.
//
// Drift caused by dropped or failed increments is repaired by the
// Reconciler; losing an increment here is tolerable by design.
type Recorder struct {
	store  RecorderStore
	cache  *redis.Client
	clock  Clock
	logger *logger.Logger

	tasks chan task
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

type task struct {
	name string
	run  func(ctx context.Context) error
}

func NewRecorder(store RecorderStore, cache *redis.Client, log *logger.Logger, cfg RecorderConfig) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}

	r := &Recorder{
		store:  store,
		cache:  cache,
		clock:  cfg.Clock,
		logger: log,
		tasks:  make(chan task, cfg.QueueSize),
	}

	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(cfg.Timeout)
	}

	return r
}

func (r *Recorder) worker(timeout time.Duration) {
	defer r.wg.Done()
	for t := range r.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := t.run(ctx); err != nil {
			r.logger.Errorf("Failed to record %s: %v", t.name, err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued increments to drain.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.tasks)
	r.mu.Unlock()

	r.wg.Wait()
}

// enqueue hands a task to the workers. A full queue drops the event with a
// warning rather than blocking the caller.
func (r *Recorder) enqueue(name string, run func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.logger.Warnf("Recorder closed, dropping %s", name)
		return
	}

	select {
	case r.tasks <- task{name: name, run: run}:
	default:
		r.logger.Warnf("Stats queue full, dropping %s", name)
	}
}

// applyDelta increments today's row and invalidates cached reads for that day.
func (r *Recorder) applyDelta(ctx context.Context, delta StatDelta) error {
	day := Midnight(r.clock.Now())
	if err := r.store.UpsertIncrement(ctx, day, delta); err != nil {
		return err
	}
	r.invalidateCache(ctx, day)
	return nil
}

func (r *Recorder) invalidateCache(ctx context.Context, day time.Time) {
	if r.cache == nil {
		return
	}
	pattern := fmt.Sprintf("stats:*%s*", DayKey(day))
	if err := r.cache.DeleteByPattern(ctx, pattern); err != nil {
		r.logger.Warnf("Failed to invalidate stats cache for %s: %v", DayKey(day), err)
	}
}

// OnUserCreated records a new registration.
func (r *Recorder) OnUserCreated() {
	r.enqueue("user.created", func(ctx context.Context) error {
		return r.applyDelta(ctx, StatDelta{NewUsers: 1, TotalUsers: 1})
	})
}

// OnOrderPlaced records a new order.
func (r *Recorder) OnOrderPlaced() {
	r.enqueue("order.placed", func(ctx context.Context) error {
		return r.applyDelta(ctx, StatDelta{TotalOrders: 1})
	})
}

// OnOrderStatusChanged records a status transition. CONFIRMED and DELIVERED
// add the order total to revenue; statuses outside the mapping are ignored.
func (r *Recorder) OnOrderStatusChanged(orderID, newStatus string) {
	r.enqueue("order.status_changed", func(ctx context.Context) error {
		var amount decimal.Decimal
		if newStatus == OrderStatusConfirmed || newStatus == OrderStatusDelivered {
			var err error
			amount, err = r.store.GetOrderAmount(ctx, orderID)
			if err != nil {
				return err
			}
		}

		delta, ok := deltaForOrderStatus(newStatus, amount)
		if !ok {
			return nil
		}
		return r.applyDelta(ctx, delta)
	})
}

// OnProductCreated records a new catalog product.
func (r *Recorder) OnProductCreated() {
	r.enqueue("product.created", func(ctx context.Context) error {
		return r.applyDelta(ctx, StatDelta{NewProducts: 1, TotalProducts: 1})
	})
}

// OnReviewCreated records a submitted review.
func (r *Recorder) OnReviewCreated() {
	r.enqueue("review.created", func(ctx context.Context) error {
		return r.applyDelta(ctx, StatDelta{NewReviews: 1})
	})
}

// OnReviewApproved records a review passing moderation.
func (r *Recorder) OnReviewApproved() {
	r.enqueue("review.approved", func(ctx context.Context) error {
		return r.applyDelta(ctx, StatDelta{ApprovedReviews: 1})
	})
}
