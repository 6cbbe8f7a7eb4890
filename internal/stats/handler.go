package stats

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

type Handler struct {
	service Service
	clock   Clock
}

func NewHandler(service Service, clock Clock) *Handler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Handler{service: service, clock: clock}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   err,
		Message: message,
	})
}

// GetOverview handles GET /api/v1/stats/overview
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.GetOverview(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats_unavailable", "Failed to fetch overview")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: overview})
}

// GetDailyStats handles GET /api/v1/stats/daily
func (h *Handler) GetDailyStats(w http.ResponseWriter, r *http.Request) {
	start, end, err := ParseDateRange(
		PeriodDay,
		r.URL.Query().Get("start_date"),
		r.URL.Query().Get("end_date"),
		h.clock.Now(),
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", err.Error())
		return
	}

	stats, err := h.service.GetDailyStats(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats_unavailable", "Failed to fetch daily stats")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: stats})
}

// GetAggregatedStats handles GET /api/v1/stats/aggregated
func (h *Handler) GetAggregatedStats(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = PeriodDay
	}
	if !ValidPeriod(period) {
		writeError(w, http.StatusBadRequest, "invalid_period", "period must be day, week, month or year")
		return
	}

	start, end, err := ParseDateRange(
		period,
		r.URL.Query().Get("start_date"),
		r.URL.Query().Get("end_date"),
		h.clock.Now(),
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", err.Error())
		return
	}

	buckets, err := h.service.GetAggregatedStats(r.Context(), period, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats_unavailable", "Failed to fetch aggregated stats")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: buckets})
}

// GetRevenueChart handles GET /api/v1/stats/revenue-chart
func (h *Handler) GetRevenueChart(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = PeriodDay
	}
	if !ValidPeriod(period) {
		writeError(w, http.StatusBadRequest, "invalid_period", "period must be day, week, month or year")
		return
	}

	start, end, err := ParseDateRange(
		period,
		r.URL.Query().Get("start_date"),
		r.URL.Query().Get("end_date"),
		h.clock.Now(),
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", err.Error())
		return
	}

	chart, err := h.service.GetRevenueChart(r.Context(), period, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats_unavailable", "Failed to fetch revenue chart")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: chart})
}

// GetOrderBreakdown handles GET /api/v1/stats/orders/breakdown
func (h *Handler) GetOrderBreakdown(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.service.GetOrderBreakdown(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats_unavailable", "Failed to fetch order breakdown")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: breakdown})
}

// GetTopProducts handles GET /api/v1/stats/products/top
func (h *Handler) GetTopProducts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_parameters", "limit must be an integer")
			return
		}
		limit = parsed
	}

	limit, err := ValidateTopLimit(limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", err.Error())
		return
	}

	products, err := h.service.GetTopProducts(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats_unavailable", "Failed to fetch top products")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: products})
}

// Sync handles POST /api/v1/stats/sync
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if r.Body != nil {
		// An empty body means "sync today".
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be JSON")
			return
		}
	}

	day, err := ValidateSyncDate(req.Date, h.clock.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", err.Error())
		return
	}

	snap, err := h.service.SyncDay(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sync_failed", "Failed to reconcile daily stats")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{
		Data: SyncResponse{
			Date:     DayKey(day),
			Snapshot: snap,
		},
		Message: "Daily stats reconciled",
	})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "stats",
		"timestamp": time.Now().UTC(),
	})
}

// ReadinessCheck handles GET /ready
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ready",
		"service": "stats",
	})
}
