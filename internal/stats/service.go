package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ardhiansyah/veloria/internal/common/logger"
	"github.com/ardhiansyah/veloria/internal/common/redis"
)

// Service is the read/query surface of the stats subsystem plus the manual
// sync entry point.
type Service interface {
	GetDailyStats(ctx context.Context, startDate, endDate time.Time) ([]*DailyStat, error)
	GetAggregatedStats(ctx context.Context, period string, startDate, endDate time.Time) ([]*PeriodBucket, error)
	GetRevenueChart(ctx context.Context, period string, startDate, endDate time.Time) (*RevenueChartResponse, error)
	GetOverview(ctx context.Context) (*OverviewResponse, error)
	GetOrderBreakdown(ctx context.Context) ([]*OrderStatusCount, error)
	GetTopProducts(ctx context.Context, limit int) ([]*TopProduct, error)
	SyncDay(ctx context.Context, date time.Time) (*DailyStat, error)
}

// ServiceConfig tunes the query paths.
type ServiceConfig struct {
	QueryTimeout time.Duration
	CacheTTL     time.Duration
	Clock        Clock
}

type service struct {
	repo       Repository
	reconciler *Reconciler
	cache      *redis.Client
	clock      Clock
	timeout    time.Duration
	cacheTTL   time.Duration
	logger     *logger.Logger
}

func NewService(repo Repository, reconciler *Reconciler, cache *redis.Client, log *logger.Logger, cfg ServiceConfig) Service {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 15 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	return &service{
		repo:       repo,
		reconciler: reconciler,
		cache:      cache,
		clock:      cfg.Clock,
		timeout:    cfg.QueryTimeout,
		cacheTTL:   cfg.CacheTTL,
		logger:     log,
	}
}

// GetDailyStats returns raw snapshot rows in range, cached in Redis. Days
// without a row are absent from the result.
func (s *service) GetDailyStats(ctx context.Context, startDate, endDate time.Time) ([]*DailyStat, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cacheKey := fmt.Sprintf("stats:daily:%s:%s", DayKey(startDate), DayKey(endDate))
	var cached []*DailyStat
	if s.readCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	stats, err := s.repo.GetRange(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	s.writeCache(ctx, cacheKey, stats)
	return stats, nil
}

// GetAggregatedStats groups daily rows into period buckets. Buckets are
// emitted in first-seen order, which is chronological because GetRange is
// date-ascending. Each bucket's span is the actual min/max row date seen.
func (s *service) GetAggregatedStats(ctx context.Context, period string, startDate, endDate time.Time) ([]*PeriodBucket, error) {
	if !ValidPeriod(period) {
		return nil, fmt.Errorf("invalid period %q: must be day, week, month or year", period)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cacheKey := fmt.Sprintf("stats:aggregated:%s:%s:%s", period, DayKey(startDate), DayKey(endDate))
	var cached []*PeriodBucket
	if s.readCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	rows, err := s.repo.GetRange(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	buckets := bucketizeDaily(rows, period)

	s.writeCache(ctx, cacheKey, buckets)
	return buckets, nil
}

// bucketizeDaily folds daily rows into period buckets. Integer counters sum
// with plain addition; revenue sums with decimal addition so monetary totals
// stay exact.
func bucketizeDaily(rows []*DailyStat, period string) []*PeriodBucket {
	index := make(map[string]*PeriodBucket)
	var ordered []*PeriodBucket

	for _, row := range rows {
		label, _, _ := PeriodOf(row.StatDate, period)

		b, ok := index[label]
		if !ok {
			b = &PeriodBucket{
				Label:     label,
				StartDate: row.StatDate,
				EndDate:   row.StatDate,
				Revenue:   decimal.Zero,
			}
			index[label] = b
			ordered = append(ordered, b)
		}

		if row.StatDate.Before(b.StartDate) {
			b.StartDate = row.StatDate
		}
		if row.StatDate.After(b.EndDate) {
			b.EndDate = row.StatDate
		}

		b.Days++
		b.NewUsers += row.NewUsers
		b.TotalOrders += row.TotalOrders
		b.ConfirmedOrders += row.ConfirmedOrders
		b.CancelledOrders += row.CancelledOrders
		b.DeliveredOrders += row.DeliveredOrders
		b.NewProducts += row.NewProducts
		b.TotalItemsSold += row.TotalItemsSold
		b.NewReviews += row.NewReviews
		b.ApprovedReviews += row.ApprovedReviews
		b.Revenue = b.Revenue.Add(row.Revenue)
	}

	return ordered
}

// GetRevenueChart buckets revenue from raw order rows rather than the
// snapshot table, so a same-day chart does not depend on snapshot freshness.
func (s *service) GetRevenueChart(ctx context.Context, period string, startDate, endDate time.Time) (*RevenueChartResponse, error) {
	if !ValidPeriod(period) {
		return nil, fmt.Errorf("invalid period %q: must be day, week, month or year", period)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cacheKey := fmt.Sprintf("stats:revenue:%s:%s:%s", period, DayKey(startDate), DayKey(endDate))
	var cached RevenueChartResponse
	if s.readCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	rows, err := s.repo.GetRevenueByDay(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	resp := &RevenueChartResponse{
		Period:       period,
		TotalRevenue: decimal.Zero,
	}

	index := make(map[string]*RevenuePoint)
	for _, row := range rows {
		label, _, _ := PeriodOf(row.Day, period)

		p, ok := index[label]
		if !ok {
			p = &RevenuePoint{
				Label:     label,
				StartDate: row.Day,
				EndDate:   row.Day,
				Revenue:   decimal.Zero,
			}
			index[label] = p
			resp.Points = append(resp.Points, p)
		}

		if row.Day.Before(p.StartDate) {
			p.StartDate = row.Day
		}
		if row.Day.After(p.EndDate) {
			p.EndDate = row.Day
		}

		p.OrderCount += row.OrderCount
		p.Revenue = p.Revenue.Add(row.Revenue)

		resp.TotalOrders += row.OrderCount
		resp.TotalRevenue = resp.TotalRevenue.Add(row.Revenue)
	}

	s.writeCache(ctx, cacheKey, resp)
	return resp, nil
}

func (s *service) GetOverview(ctx context.Context) (*OverviewResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.repo.GetOverview(ctx, s.clock.Now())
}

func (s *service) GetOrderBreakdown(ctx context.Context) ([]*OrderStatusCount, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.repo.GetOrderBreakdown(ctx)
}

func (s *service) GetTopProducts(ctx context.Context, limit int) ([]*TopProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.repo.GetTopProducts(ctx, limit)
}

func (s *service) SyncDay(ctx context.Context, date time.Time) (*DailyStat, error) {
	return s.reconciler.SyncDay(ctx, date)
}

// readCache fills dest from Redis and reports whether it hit. A nil cache or
// any cache error is a miss; reads never fail because Redis is down.
func (s *service) readCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false
	}
	return true
}

func (s *service) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
		s.logger.Warnf("Failed to cache %s: %v", key, err)
	}
}
