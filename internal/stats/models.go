package stats

import (
	"time"

	"github.com/shopspring/decimal"
)

// Aggregation periods accepted by the query API.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

// Order statuses as used by the order service.
const (
	OrderStatusPending    = "PENDING"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusConfirmed  = "CONFIRMED"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
)

// Review statuses as used by the review service.
const (
	ReviewStatusPending  = "PENDING"
	ReviewStatusApproved = "APPROVED"
)

// DailyStat is the per-calendar-day snapshot row. StatDate is midnight UTC;
// there is at most one row per date.
type DailyStat struct {
	ID              string          `json:"id" db:"id"`
	StatDate        time.Time       `json:"stat_date" db:"stat_date"`
	NewUsers        int64           `json:"new_users" db:"new_users"`
	TotalUsers      int64           `json:"total_users" db:"total_users"`
	TotalOrders     int64           `json:"total_orders" db:"total_orders"`
	ConfirmedOrders int64           `json:"confirmed_orders" db:"confirmed_orders"`
	CancelledOrders int64           `json:"cancelled_orders" db:"cancelled_orders"`
	DeliveredOrders int64           `json:"delivered_orders" db:"delivered_orders"`
	TotalProducts   int64           `json:"total_products" db:"total_products"`
	NewProducts     int64           `json:"new_products" db:"new_products"`
	TotalItemsSold  int64           `json:"total_items_sold" db:"total_items_sold"`
	NewReviews      int64           `json:"new_reviews" db:"new_reviews"`
	ApprovedReviews int64           `json:"approved_reviews" db:"approved_reviews"`
	Revenue         decimal.Decimal `json:"revenue" db:"revenue"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// StatDelta is a field-level increment applied to one day's row. Zero-valued
// fields are applied as +0, so a delta only needs the fields it changes.
type StatDelta struct {
	NewUsers        int64
	TotalUsers      int64
	TotalOrders     int64
	ConfirmedOrders int64
	CancelledOrders int64
	DeliveredOrders int64
	TotalProducts   int64
	NewProducts     int64
	TotalItemsSold  int64
	NewReviews      int64
	ApprovedReviews int64
	Revenue         decimal.Decimal
}

// IsZero reports whether applying the delta would be a no-op.
func (d StatDelta) IsZero() bool {
	return d.NewUsers == 0 && d.TotalUsers == 0 && d.TotalOrders == 0 &&
		d.ConfirmedOrders == 0 && d.CancelledOrders == 0 && d.DeliveredOrders == 0 &&
		d.TotalProducts == 0 && d.NewProducts == 0 && d.TotalItemsSold == 0 &&
		d.NewReviews == 0 && d.ApprovedReviews == 0 && d.Revenue.IsZero()
}

// deltaForOrderStatus maps an order status transition to its snapshot delta.
// Statuses that do not affect analytics return ok=false; only CONFIRMED and
// DELIVERED carry the order amount into revenue.
func deltaForOrderStatus(status string, amount decimal.Decimal) (StatDelta, bool) {
	switch status {
	case OrderStatusConfirmed:
		return StatDelta{ConfirmedOrders: 1, Revenue: amount}, true
	case OrderStatusDelivered:
		return StatDelta{DeliveredOrders: 1, Revenue: amount}, true
	case OrderStatusCancelled:
		return StatDelta{CancelledOrders: 1}, true
	default:
		// PENDING, PROCESSING, SHIPPED and anything unknown bump no counter.
		return StatDelta{}, false
	}
}

// PeriodBucket is a group of daily rows combined under one period label.
// StartDate/EndDate are the actual covered span (min/max row dates seen),
// which can be narrower than the nominal calendar period.
type PeriodBucket struct {
	Label           string          `json:"label"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	Days            int             `json:"days"`
	NewUsers        int64           `json:"new_users"`
	TotalOrders     int64           `json:"total_orders"`
	ConfirmedOrders int64           `json:"confirmed_orders"`
	CancelledOrders int64           `json:"cancelled_orders"`
	DeliveredOrders int64           `json:"delivered_orders"`
	NewProducts     int64           `json:"new_products"`
	TotalItemsSold  int64           `json:"total_items_sold"`
	NewReviews      int64           `json:"new_reviews"`
	ApprovedReviews int64           `json:"approved_reviews"`
	Revenue         decimal.Decimal `json:"revenue"`
}

// RevenueDayRow is one day's revenue computed straight from order rows,
// bypassing the snapshot table.
type RevenueDayRow struct {
	Day        time.Time       `json:"day" db:"day"`
	OrderCount int64           `json:"order_count" db:"order_count"`
	Revenue    decimal.Decimal `json:"revenue" db:"revenue"`
}

// RevenuePoint is one chart bucket.
type RevenuePoint struct {
	Label      string          `json:"label"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    time.Time       `json:"end_date"`
	OrderCount int64           `json:"order_count"`
	Revenue    decimal.Decimal `json:"revenue"`
}

// RevenueChartResponse is the API response for the revenue chart.
type RevenueChartResponse struct {
	Period       string          `json:"period"`
	Points       []*RevenuePoint `json:"points"`
	TotalOrders  int64           `json:"total_orders"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// OverviewResponse holds live figures computed from transactional tables.
type OverviewResponse struct {
	TotalUsers     int64           `json:"total_users"`
	TotalProducts  int64           `json:"total_products"`
	TotalOrders    int64           `json:"total_orders"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	PendingReviews int64           `json:"pending_reviews"`
	TodayOrders    int64           `json:"today_orders"`
	TodayRevenue   decimal.Decimal `json:"today_revenue"`
	TodayNewUsers  int64           `json:"today_new_users"`
	MonthOrders    int64           `json:"month_orders"`
	MonthRevenue   decimal.Decimal `json:"month_revenue"`
	MonthNewUsers  int64           `json:"month_new_users"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// OrderStatusCount is one slice of the live order breakdown.
type OrderStatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// TopProduct is one row of the lifetime best-sellers list, read from the
// per-product stats table maintained by the product service.
type TopProduct struct {
	ProductID   string `json:"product_id" db:"product_id"`
	ProductName string `json:"product_name" db:"product_name"`
	TotalSold   int64  `json:"total_sold" db:"total_sold"`
}

// SyncRequest is the body of POST /stats/sync. Date is optional and defaults
// to today (UTC).
type SyncRequest struct {
	Date string `json:"date,omitempty"`
}

// SyncResponse reports the reconciled row.
type SyncResponse struct {
	Date     string     `json:"date"`
	Snapshot *DailyStat `json:"snapshot"`
}
