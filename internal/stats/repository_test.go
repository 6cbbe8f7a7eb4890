package stats

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ardhiansyah/veloria/internal/common/config"
	"github.com/ardhiansyah/veloria/internal/common/db"
	"github.com/ardhiansyah/veloria/internal/common/logger"
)

func testDBConfig() config.DatabaseConfig {
	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	name := os.Getenv("DB_NAME")
	if name == "" {
		name = "veloria_test"
	}
	return config.DatabaseConfig{
		Host:            host,
		Port:            port,
		User:            "postgres",
		Password:        "postgres",
		DBName:          name,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

const statsSchema = `
	CREATE TABLE IF NOT EXISTS daily_stats (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		stat_date DATE NOT NULL UNIQUE,
		new_users BIGINT NOT NULL DEFAULT 0,
		total_users BIGINT NOT NULL DEFAULT 0,
		total_orders BIGINT NOT NULL DEFAULT 0,
		confirmed_orders BIGINT NOT NULL DEFAULT 0,
		cancelled_orders BIGINT NOT NULL DEFAULT 0,
		delivered_orders BIGINT NOT NULL DEFAULT 0,
		total_products BIGINT NOT NULL DEFAULT 0,
		new_products BIGINT NOT NULL DEFAULT 0,
		total_items_sold BIGINT NOT NULL DEFAULT 0,
		new_reviews BIGINT NOT NULL DEFAULT 0,
		approved_reviews BIGINT NOT NULL DEFAULT 0,
		revenue NUMERIC(20,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		status VARCHAR(20) NOT NULL,
		total_amount NUMERIC(20,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		status_updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS order_items (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		quantity INT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reviews (
		id UUID PRIMARY KEY,
		status VARCHAR(20) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		status_updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS product_stats (
		product_id UUID PRIMARY KEY,
		product_name VARCHAR(255) NOT NULL,
		total_sold BIGINT NOT NULL DEFAULT 0
	);
`

// setupStatsDB connects to the test database, (re)creates the schema and
// truncates all tables so every test starts clean.
func setupStatsDB(t *testing.T) *db.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	database, err := db.Connect(testDBConfig(), logger.New("stats-test"))
	if err != nil {
		t.Skipf("Cannot connect to database (expected in CI): %v", err)
		return nil
	}

	ctx := context.Background()
	if _, err := database.ExecContext(ctx, statsSchema); err != nil {
		database.Close()
		t.Fatalf("Failed to create schema: %v", err)
	}
	if _, err := database.ExecContext(ctx,
		`TRUNCATE daily_stats, users, order_items, orders, products, reviews, product_stats`,
	); err != nil {
		database.Close()
		t.Fatalf("Failed to truncate tables: %v", err)
	}

	t.Cleanup(func() { database.Close() })
	return database
}

func TestUpsertIncrementConcurrent(t *testing.T) {
	database := setupStatsDB(t)
	repo := NewRepository(database.DB)
	ctx := context.Background()
	day := date(2024, 6, 1)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.UpsertIncrement(ctx, day, StatDelta{
				TotalOrders: 1,
				Revenue:     decimal.RequireFromString("0.10"),
			})
			if err != nil {
				t.Errorf("UpsertIncrement failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := repo.GetByDate(ctx, day)
	if err != nil {
		t.Fatalf("GetByDate failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected row to exist")
	}
	// No lost updates under concurrency.
	if got.TotalOrders != n {
		t.Errorf("Expected %d orders, got %d", n, got.TotalOrders)
	}
	if !got.Revenue.Equal(decimal.RequireFromString("2.00")) {
		t.Errorf("Expected revenue 2.00, got %s", got.Revenue)
	}
}

func TestUpsertOverwriteIdempotent(t *testing.T) {
	database := setupStatsDB(t)
	repo := NewRepository(database.DB)
	ctx := context.Background()
	day := date(2024, 6, 1)

	// Drifted counters from the incremental path.
	if err := repo.UpsertIncrement(ctx, day, StatDelta{TotalOrders: 99}); err != nil {
		t.Fatalf("UpsertIncrement failed: %v", err)
	}

	snap := &DailyStat{
		StatDate:    day,
		TotalOrders: 7,
		NewUsers:    2,
		Revenue:     decimal.RequireFromString("150000.50"),
	}
	for i := 0; i < 2; i++ {
		if err := repo.UpsertOverwrite(ctx, nil, day, snap); err != nil {
			t.Fatalf("UpsertOverwrite failed: %v", err)
		}
	}

	got, err := repo.GetByDate(ctx, day)
	if err != nil {
		t.Fatalf("GetByDate failed: %v", err)
	}
	if got.TotalOrders != 7 || got.NewUsers != 2 {
		t.Errorf("Expected overwrite to replace drifted counters, got %+v", got)
	}
	if !got.Revenue.Equal(decimal.RequireFromString("150000.50")) {
		t.Errorf("Expected revenue 150000.50, got %s", got.Revenue)
	}
}

func TestGetRangeOmitsMissingDays(t *testing.T) {
	database := setupStatsDB(t)
	repo := NewRepository(database.DB)
	ctx := context.Background()

	for _, day := range []time.Time{date(2024, 6, 1), date(2024, 6, 3)} {
		if err := repo.UpsertIncrement(ctx, day, StatDelta{NewUsers: 1}); err != nil {
			t.Fatalf("UpsertIncrement failed: %v", err)
		}
	}

	rows, err := repo.GetRange(ctx, date(2024, 6, 1), date(2024, 6, 5))
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if !rows[0].StatDate.Equal(date(2024, 6, 1)) || !rows[1].StatDate.Equal(date(2024, 6, 3)) {
		t.Errorf("Unexpected dates: %v, %v", rows[0].StatDate, rows[1].StatDate)
	}
}

func seedOrder(t *testing.T, database *db.DB, status string, amount string, createdAt, statusAt time.Time) string {
	t.Helper()
	id := uuid.NewString()
	_, err := database.ExecContext(context.Background(),
		`INSERT INTO orders (id, status, total_amount, created_at, status_updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, status, amount, createdAt, statusAt,
	)
	if err != nil {
		t.Fatalf("Failed to seed order: %v", err)
	}
	return id
}

func seedOrderItem(t *testing.T, database *db.DB, orderID string, quantity int) {
	t.Helper()
	_, err := database.ExecContext(context.Background(),
		`INSERT INTO order_items (id, order_id, quantity) VALUES ($1, $2, $3)`,
		uuid.NewString(), orderID, quantity,
	)
	if err != nil {
		t.Fatalf("Failed to seed order item: %v", err)
	}
}

func TestComputeDay(t *testing.T) {
	database := setupStatsDB(t)
	repo := NewRepository(database.DB)
	ctx := context.Background()

	day := date(2024, 6, 1)
	at := day.Add(10 * time.Hour)
	dayBefore := day.AddDate(0, 0, -1).Add(10 * time.Hour)
	dayAfter := day.AddDate(0, 0, 1).Add(10 * time.Hour)

	// Two users on the day, one before.
	for _, ts := range []time.Time{at, at.Add(time.Hour), dayBefore} {
		if _, err := database.ExecContext(ctx,
			`INSERT INTO users (id, created_at) VALUES ($1, $2)`, uuid.NewString(), ts,
		); err != nil {
			t.Fatalf("Failed to seed user: %v", err)
		}
	}

	// Confirmed on the day, placed the day before: counts toward the day's
	// revenue but not its order count.
	confirmedLate := seedOrder(t, database, OrderStatusConfirmed, "100000.50", dayBefore, at)
	// Placed and delivered on the day.
	delivered := seedOrder(t, database, OrderStatusDelivered, "250000.25", at, at.Add(2*time.Hour))
	// Placed on the day, cancelled the day after: order counts, cancellation
	// does not.
	seedOrder(t, database, OrderStatusCancelled, "50000.00", at, dayAfter)
	// Still pending: order counts, no revenue.
	pending := seedOrder(t, database, OrderStatusPending, "99999.99", at, at)

	seedOrderItem(t, database, confirmedLate, 2)
	seedOrderItem(t, database, delivered, 3)
	seedOrderItem(t, database, pending, 1)

	if _, err := database.ExecContext(ctx,
		`INSERT INTO products (id, created_at) VALUES ($1, $2), ($3, $4)`,
		uuid.NewString(), at, uuid.NewString(), dayBefore,
	); err != nil {
		t.Fatalf("Failed to seed products: %v", err)
	}

	if _, err := database.ExecContext(ctx,
		`INSERT INTO reviews (id, status, created_at, status_updated_at) VALUES
			($1, 'PENDING', $2, $2),
			($3, 'APPROVED', $4, $2)`,
		uuid.NewString(), at, uuid.NewString(), dayBefore,
	); err != nil {
		t.Fatalf("Failed to seed reviews: %v", err)
	}

	snap, err := repo.ComputeDay(ctx, day)
	if err != nil {
		t.Fatalf("ComputeDay failed: %v", err)
	}

	if snap.NewUsers != 2 {
		t.Errorf("Expected 2 new users, got %d", snap.NewUsers)
	}
	if snap.TotalUsers != 3 {
		t.Errorf("Expected 3 total users, got %d", snap.TotalUsers)
	}
	// Orders placed during the day: delivered, cancelled, pending.
	if snap.TotalOrders != 3 {
		t.Errorf("Expected 3 orders placed, got %d", snap.TotalOrders)
	}
	if snap.ConfirmedOrders != 1 || snap.DeliveredOrders != 1 {
		t.Errorf("Expected 1 confirmed and 1 delivered, got %d and %d",
			snap.ConfirmedOrders, snap.DeliveredOrders)
	}
	// Cancellation happened the day after.
	if snap.CancelledOrders != 0 {
		t.Errorf("Expected 0 cancellations, got %d", snap.CancelledOrders)
	}
	if snap.NewProducts != 1 || snap.TotalProducts != 2 {
		t.Errorf("Expected 1 new of 2 total products, got %d of %d",
			snap.NewProducts, snap.TotalProducts)
	}
	// Items from orders placed during the day.
	if snap.TotalItemsSold != 4 {
		t.Errorf("Expected 4 items sold, got %d", snap.TotalItemsSold)
	}
	if snap.NewReviews != 1 {
		t.Errorf("Expected 1 new review, got %d", snap.NewReviews)
	}
	if snap.ApprovedReviews != 1 {
		t.Errorf("Expected 1 approved review, got %d", snap.ApprovedReviews)
	}
	// Revenue attributes to the day the status landed, summed as decimals.
	want := decimal.RequireFromString("350000.75")
	if !snap.Revenue.Equal(want) {
		t.Errorf("Expected revenue %s, got %s", want, snap.Revenue)
	}
}

func TestGetRevenueByDay(t *testing.T) {
	database := setupStatsDB(t)
	repo := NewRepository(database.DB)
	ctx := context.Background()

	d1 := date(2024, 6, 1)
	d3 := date(2024, 6, 3)

	seedOrder(t, database, OrderStatusConfirmed, "100.00", d1, d1.Add(9*time.Hour))
	seedOrder(t, database, OrderStatusDelivered, "200.00", d1, d1.Add(15*time.Hour))
	seedOrder(t, database, OrderStatusConfirmed, "50.00", d3, d3.Add(12*time.Hour))
	// Cancelled orders never contribute.
	seedOrder(t, database, OrderStatusCancelled, "999.00", d1, d1.Add(10*time.Hour))

	rows, err := repo.GetRevenueByDay(ctx, d1, date(2024, 6, 5))
	if err != nil {
		t.Fatalf("GetRevenueByDay failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if !rows[0].Day.Equal(d1) || rows[0].OrderCount != 2 || !rows[0].Revenue.Equal(decimal.RequireFromString("300.00")) {
		t.Errorf("Unexpected first row: %+v", rows[0])
	}
	if !rows[1].Day.Equal(d3) || !rows[1].Revenue.Equal(decimal.RequireFromString("50.00")) {
		t.Errorf("Unexpected second row: %+v", rows[1])
	}
}

func TestGetOrderAmount(t *testing.T) {
	database := setupStatsDB(t)
	repo := NewRepository(database.DB)
	ctx := context.Background()

	day := date(2024, 6, 1)
	id := seedOrder(t, database, OrderStatusConfirmed, "500000.00", day, day)

	amount, err := repo.GetOrderAmount(ctx, id)
	if err != nil {
		t.Fatalf("GetOrderAmount failed: %v", err)
	}
	if !amount.Equal(decimal.NewFromInt(500000)) {
		t.Errorf("Expected 500000, got %s", amount)
	}

	if _, err := repo.GetOrderAmount(ctx, uuid.NewString()); err == nil {
		t.Error("Expected error for unknown order")
	}
}

func TestGetOverviewLive(t *testing.T) {
	database := setupStatsDB(t)
	repo := NewRepository(database.DB)
	ctx := context.Background()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	today := Midnight(now)

	if _, err := database.ExecContext(ctx,
		`INSERT INTO users (id, created_at) VALUES ($1, $2), ($3, $4)`,
		uuid.NewString(), today.Add(2*time.Hour), uuid.NewString(), today.AddDate(0, -2, 0),
	); err != nil {
		t.Fatalf("Failed to seed users: %v", err)
	}

	seedOrder(t, database, OrderStatusConfirmed, "100000.00", today.Add(time.Hour), today.Add(time.Hour))
	seedOrder(t, database, OrderStatusDelivered, "50000.00", today.AddDate(0, 0, -3), today.AddDate(0, 0, -3))

	if _, err := database.ExecContext(ctx,
		`INSERT INTO reviews (id, status, created_at, status_updated_at) VALUES ($1, 'PENDING', $2, $2)`,
		uuid.NewString(), today,
	); err != nil {
		t.Fatalf("Failed to seed review: %v", err)
	}

	overview, err := repo.GetOverview(ctx, now)
	if err != nil {
		t.Fatalf("GetOverview failed: %v", err)
	}

	if overview.TotalUsers != 2 || overview.TodayNewUsers != 1 {
		t.Errorf("Unexpected user counts: %+v", overview)
	}
	if overview.TotalOrders != 2 || overview.TodayOrders != 1 {
		t.Errorf("Unexpected order counts: %+v", overview)
	}
	if !overview.TotalRevenue.Equal(decimal.RequireFromString("150000.00")) {
		t.Errorf("Expected total revenue 150000.00, got %s", overview.TotalRevenue)
	}
	if !overview.TodayRevenue.Equal(decimal.RequireFromString("100000.00")) {
		t.Errorf("Expected today revenue 100000.00, got %s", overview.TodayRevenue)
	}
	if overview.PendingReviews != 1 {
		t.Errorf("Expected 1 pending review, got %d", overview.PendingReviews)
	}
}

func TestGetTopProducts(t *testing.T) {
	database := setupStatsDB(t)
	repo := NewRepository(database.DB)
	ctx := context.Background()

	if _, err := database.ExecContext(ctx,
		`INSERT INTO product_stats (product_id, product_name, total_sold) VALUES
			($1, 'Keyboard', 120), ($2, 'Mouse', 80), ($3, 'Monitor', 200)`,
		uuid.NewString(), uuid.NewString(), uuid.NewString(),
	); err != nil {
		t.Fatalf("Failed to seed product stats: %v", err)
	}

	top, err := repo.GetTopProducts(ctx, 2)
	if err != nil {
		t.Fatalf("GetTopProducts failed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("Expected 2 products, got %d", len(top))
	}
	if top[0].ProductName != "Monitor" || top[1].ProductName != "Keyboard" {
		t.Errorf("Unexpected ordering: %+v", top)
	}
}
