package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Repository is the storage surface of the stats subsystem. It owns the
// daily_stats table and reads (never writes) the transactional tables.
type Repository interface {
	// Daily snapshot store
	GetRange(ctx context.Context, startDate, endDate time.Time) ([]*DailyStat, error)
	GetByDate(ctx context.Context, date time.Time) (*DailyStat, error)
	UpsertIncrement(ctx context.Context, date time.Time, delta StatDelta) error
	UpsertOverwrite(ctx context.Context, tx *sql.Tx, date time.Time, snap *DailyStat) error

	// Transactional table reads
	GetOrderAmount(ctx context.Context, orderID string) (decimal.Decimal, error)
	ComputeDay(ctx context.Context, date time.Time) (*DailyStat, error)
	GetRevenueByDay(ctx context.Context, startDate, endDate time.Time) ([]*RevenueDayRow, error)
	GetOverview(ctx context.Context, now time.Time) (*OverviewResponse, error)
	GetOrderBreakdown(ctx context.Context) ([]*OrderStatusCount, error)
	GetTopProducts(ctx context.Context, limit int) ([]*TopProduct, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const dailyStatColumns = `
	id, stat_date, new_users, total_users, total_orders, confirmed_orders,
	cancelled_orders, delivered_orders, total_products, new_products,
	total_items_sold, new_reviews, approved_reviews, revenue,
	created_at, updated_at
`

func scanDailyStat(row interface {
	Scan(dest ...interface{}) error
}) (*DailyStat, error) {
	var s DailyStat
	err := row.Scan(
		&s.ID, &s.StatDate, &s.NewUsers, &s.TotalUsers, &s.TotalOrders,
		&s.ConfirmedOrders, &s.CancelledOrders, &s.DeliveredOrders,
		&s.TotalProducts, &s.NewProducts, &s.TotalItemsSold,
		&s.NewReviews, &s.ApprovedReviews, &s.Revenue,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetRange returns rows with stat_date in [startDate, endDate], ascending.
// Days without a row are simply absent; callers must not assume a dense series.
func (r *repository) GetRange(ctx context.Context, startDate, endDate time.Time) ([]*DailyStat, error) {
	query := `
		SELECT ` + dailyStatColumns + `
		FROM daily_stats
		WHERE stat_date BETWEEN $1 AND $2
		ORDER BY stat_date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, Midnight(startDate), Midnight(endDate))
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats range: %w", err)
	}
	defer rows.Close()

	var stats []*DailyStat
	for rows.Next() {
		s, err := scanDailyStat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		s.StatDate = Midnight(s.StatDate)
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

func (r *repository) GetByDate(ctx context.Context, date time.Time) (*DailyStat, error) {
	query := `
		SELECT ` + dailyStatColumns + `
		FROM daily_stats
		WHERE stat_date = $1
	`

	s, err := scanDailyStat(r.db.QueryRowContext(ctx, query, Midnight(date)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stat: %w", err)
	}
	s.StatDate = Midnight(s.StatDate)
	return s, nil
}

// UpsertIncrement applies the delta to the row for date, creating it with
// zero defaults first if absent. The whole operation is a single atomic
// statement so concurrent increments for the same day cannot lose updates.
func (r *repository) UpsertIncrement(ctx context.Context, date time.Time, delta StatDelta) error {
	query := `
		INSERT INTO daily_stats (
			stat_date, new_users, total_users, total_orders, confirmed_orders,
			cancelled_orders, delivered_orders, total_products, new_products,
			total_items_sold, new_reviews, approved_reviews, revenue
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (stat_date) DO UPDATE SET
			new_users = daily_stats.new_users + EXCLUDED.new_users,
			total_users = daily_stats.total_users + EXCLUDED.total_users,
			total_orders = daily_stats.total_orders + EXCLUDED.total_orders,
			confirmed_orders = daily_stats.confirmed_orders + EXCLUDED.confirmed_orders,
			cancelled_orders = daily_stats.cancelled_orders + EXCLUDED.cancelled_orders,
			delivered_orders = daily_stats.delivered_orders + EXCLUDED.delivered_orders,
			total_products = daily_stats.total_products + EXCLUDED.total_products,
			new_products = daily_stats.new_products + EXCLUDED.new_products,
			total_items_sold = daily_stats.total_items_sold + EXCLUDED.total_items_sold,
			new_reviews = daily_stats.new_reviews + EXCLUDED.new_reviews,
			approved_reviews = daily_stats.approved_reviews + EXCLUDED.approved_reviews,
			revenue = daily_stats.revenue + EXCLUDED.revenue,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.ExecContext(ctx, query,
		Midnight(date),
		delta.NewUsers,
		delta.TotalUsers,
		delta.TotalOrders,
		delta.ConfirmedOrders,
		delta.CancelledOrders,
		delta.DeliveredOrders,
		delta.TotalProducts,
		delta.NewProducts,
		delta.TotalItemsSold,
		delta.NewReviews,
		delta.ApprovedReviews,
		delta.Revenue,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert stat increment: %w", err)
	}

	return nil
}

// UpsertOverwrite replaces all counters and revenue for date with exactly the
// given values, creating the row if absent. Idempotent. When tx is non-nil
// the statement joins the caller's transaction so the reconciler can pair it
// with an outbox write.
func (r *repository) UpsertOverwrite(ctx context.Context, tx *sql.Tx, date time.Time, snap *DailyStat) error {
	query := `
		INSERT INTO daily_stats (
			stat_date, new_users, total_users, total_orders, confirmed_orders,
			cancelled_orders, delivered_orders, total_products, new_products,
			total_items_sold, new_reviews, approved_reviews, revenue
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (stat_date) DO UPDATE SET
			new_users = EXCLUDED.new_users,
			total_users = EXCLUDED.total_users,
			total_orders = EXCLUDED.total_orders,
			confirmed_orders = EXCLUDED.confirmed_orders,
			cancelled_orders = EXCLUDED.cancelled_orders,
			delivered_orders = EXCLUDED.delivered_orders,
			total_products = EXCLUDED.total_products,
			new_products = EXCLUDED.new_products,
			total_items_sold = EXCLUDED.total_items_sold,
			new_reviews = EXCLUDED.new_reviews,
			approved_reviews = EXCLUDED.approved_reviews,
			revenue = EXCLUDED.revenue,
			updated_at = CURRENT_TIMESTAMP
	`

	args := []interface{}{
		Midnight(date),
		snap.NewUsers,
		snap.TotalUsers,
		snap.TotalOrders,
		snap.ConfirmedOrders,
		snap.CancelledOrders,
		snap.DeliveredOrders,
		snap.TotalProducts,
		snap.NewProducts,
		snap.TotalItemsSold,
		snap.NewReviews,
		snap.ApprovedReviews,
		snap.Revenue,
	}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}

	if err != nil {
		return fmt.Errorf("failed to overwrite daily stat: %w", err)
	}

	return nil
}

// GetOrderAmount returns the order's total amount.
func (r *repository) GetOrderAmount(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT total_amount FROM orders WHERE id = $1`, orderID,
	).Scan(&amount)

	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("order %s not found", orderID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get order amount: %w", err)
	}

	return amount, nil
}

// ComputeDay recomputes the full snapshot for date from the transactional
// tables over [midnight, midnight+24h). Pure read; the caller decides what
// to do with the result.
func (r *repository) ComputeDay(ctx context.Context, date time.Time) (*DailyStat, error) {
	start := Midnight(date)
	end := start.AddDate(0, 0, 1)

	query := `
		SELECT
			(SELECT COUNT(*) FROM users WHERE created_at >= $1 AND created_at < $2) AS new_users,
			(SELECT COUNT(*) FROM users WHERE created_at < $2) AS total_users,
			(SELECT COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2) AS total_orders,
			(SELECT COUNT(*) FROM orders WHERE status = 'CONFIRMED' AND status_updated_at >= $1 AND status_updated_at < $2) AS confirmed_orders,
			(SELECT COUNT(*) FROM orders WHERE status = 'CANCELLED' AND status_updated_at >= $1 AND status_updated_at < $2) AS cancelled_orders,
			(SELECT COUNT(*) FROM orders WHERE status = 'DELIVERED' AND status_updated_at >= $1 AND status_updated_at < $2) AS delivered_orders,
			(SELECT COUNT(*) FROM products WHERE created_at < $2) AS total_products,
			(SELECT COUNT(*) FROM products WHERE created_at >= $1 AND created_at < $2) AS new_products,
			(SELECT COALESCE(SUM(oi.quantity), 0) FROM order_items oi
				JOIN orders o ON o.id = oi.order_id
				WHERE o.created_at >= $1 AND o.created_at < $2) AS total_items_sold,
			(SELECT COUNT(*) FROM reviews WHERE created_at >= $1 AND created_at < $2) AS new_reviews,
			(SELECT COUNT(*) FROM reviews WHERE status = 'APPROVED' AND status_updated_at >= $1 AND status_updated_at < $2) AS approved_reviews,
			(SELECT COALESCE(SUM(total_amount), 0) FROM orders
				WHERE status IN ('CONFIRMED', 'DELIVERED')
				AND status_updated_at >= $1 AND status_updated_at < $2) AS revenue
	`

	snap := &DailyStat{StatDate: start}
	err := r.db.QueryRowContext(ctx, query, start, end).Scan(
		&snap.NewUsers,
		&snap.TotalUsers,
		&snap.TotalOrders,
		&snap.ConfirmedOrders,
		&snap.CancelledOrders,
		&snap.DeliveredOrders,
		&snap.TotalProducts,
		&snap.NewProducts,
		&snap.TotalItemsSold,
		&snap.NewReviews,
		&snap.ApprovedReviews,
		&snap.Revenue,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to compute day %s: %w", DayKey(date), err)
	}

	return snap, nil
}

// GetRevenueByDay reads revenue and order counts straight from order rows,
// one result row per day that had qualifying orders.
func (r *repository) GetRevenueByDay(ctx context.Context, startDate, endDate time.Time) ([]*RevenueDayRow, error) {
	query := `
		SELECT
			DATE_TRUNC('day', status_updated_at) AS day,
			COUNT(*) AS order_count,
			COALESCE(SUM(total_amount), 0) AS revenue
		FROM orders
		WHERE status IN ('CONFIRMED', 'DELIVERED')
			AND status_updated_at >= $1 AND status_updated_at < $2
		GROUP BY 1
		ORDER BY 1 ASC
	`

	rows, err := r.db.QueryContext(ctx, query, Midnight(startDate), Midnight(endDate).AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to get revenue by day: %w", err)
	}
	defer rows.Close()

	var result []*RevenueDayRow
	for rows.Next() {
		var row RevenueDayRow
		if err := rows.Scan(&row.Day, &row.OrderCount, &row.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan revenue row: %w", err)
		}
		row.Day = Midnight(row.Day)
		result = append(result, &row)
	}

	return result, rows.Err()
}

// GetOverview computes live all-time / today / this-month figures directly
// from the transactional tables. No snapshot dependency.
func (r *repository) GetOverview(ctx context.Context, now time.Time) (*OverviewResponse, error) {
	today := Midnight(now)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS total_users,
			(SELECT COUNT(*) FROM products) AS total_products,
			(SELECT COUNT(*) FROM orders) AS total_orders,
			(SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status IN ('CONFIRMED', 'DELIVERED')) AS total_revenue,
			(SELECT COUNT(*) FROM reviews WHERE status = 'PENDING') AS pending_reviews,
			(SELECT COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2) AS today_orders,
			(SELECT COALESCE(SUM(total_amount), 0) FROM orders
				WHERE status IN ('CONFIRMED', 'DELIVERED')
				AND status_updated_at >= $1 AND status_updated_at < $2) AS today_revenue,
			(SELECT COUNT(*) FROM users WHERE created_at >= $1 AND created_at < $2) AS today_new_users,
			(SELECT COUNT(*) FROM orders WHERE created_at >= $3 AND created_at < $2) AS month_orders,
			(SELECT COALESCE(SUM(total_amount), 0) FROM orders
				WHERE status IN ('CONFIRMED', 'DELIVERED')
				AND status_updated_at >= $3 AND status_updated_at < $2) AS month_revenue,
			(SELECT COUNT(*) FROM users WHERE created_at >= $3 AND created_at < $2) AS month_new_users
	`

	overview := &OverviewResponse{GeneratedAt: now.UTC()}
	err := r.db.QueryRowContext(ctx, query, today, tomorrow, monthStart).Scan(
		&overview.TotalUsers,
		&overview.TotalProducts,
		&overview.TotalOrders,
		&overview.TotalRevenue,
		&overview.PendingReviews,
		&overview.TodayOrders,
		&overview.TodayRevenue,
		&overview.TodayNewUsers,
		&overview.MonthOrders,
		&overview.MonthRevenue,
		&overview.MonthNewUsers,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get overview: %w", err)
	}

	return overview, nil
}

// GetOrderBreakdown returns live per-status order counts.
func (r *repository) GetOrderBreakdown(ctx context.Context) ([]*OrderStatusCount, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM orders
		GROUP BY status
		ORDER BY count DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get order breakdown: %w", err)
	}
	defer rows.Close()

	var result []*OrderStatusCount
	for rows.Next() {
		var c OrderStatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan order breakdown: %w", err)
		}
		result = append(result, &c)
	}

	return result, rows.Err()
}

// GetTopProducts returns the top-N products by lifetime units sold from the
// pre-existing per-product stats table.
func (r *repository) GetTopProducts(ctx context.Context, limit int) ([]*TopProduct, error) {
	query := `
		SELECT product_id, product_name, total_sold
		FROM product_stats
		ORDER BY total_sold DESC, product_id ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top products: %w", err)
	}
	defer rows.Close()

	var result []*TopProduct
	for rows.Next() {
		var p TopProduct
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.TotalSold); err != nil {
			return nil, fmt.Errorf("failed to scan top product: %w", err)
		}
		result = append(result, &p)
	}

	return result, rows.Err()
}
