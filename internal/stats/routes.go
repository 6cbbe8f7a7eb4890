package stats

import (
	"net/http"

	"github.com/ardhiansyah/veloria/internal/common/middleware"
)

// SetupRoutes registers the stats API. Read endpoints require an admin JWT;
// the sync endpoint also accepts the internal service key so the platform
// cron can trigger reconciliation.
func SetupRoutes(mux *http.ServeMux, handler *Handler, jwtSecret, serviceKeyHash string) {
	// Health checks
	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.HandleFunc("GET /ready", handler.ReadinessCheck)

	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.JWTAuth(jwtSecret)(middleware.RequireRole("admin")(h))
	}

	mux.Handle("GET /api/v1/stats/overview", admin(handler.GetOverview))
	mux.Handle("GET /api/v1/stats/daily", admin(handler.GetDailyStats))
	mux.Handle("GET /api/v1/stats/aggregated", admin(handler.GetAggregatedStats))
	mux.Handle("GET /api/v1/stats/revenue-chart", admin(handler.GetRevenueChart))
	mux.Handle("GET /api/v1/stats/orders/breakdown", admin(handler.GetOrderBreakdown))
	mux.Handle("GET /api/v1/stats/products/top", admin(handler.GetTopProducts))

	mux.Handle("POST /api/v1/stats/sync",
		middleware.AdminOrServiceKey(jwtSecret, serviceKeyHash)(http.HandlerFunc(handler.Sync)))
}
