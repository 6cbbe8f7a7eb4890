package stats

import (
	"fmt"
	"time"
)

// MaxRangeDays caps a single query's date span. Five years of daily rows plus
// headroom for leap days.
const MaxRangeDays = 366 * 6

// ParseDateRange parses optional start/end query parameters, falling back to
// the period's default lookback window. Dates use YYYY-MM-DD.
func ParseDateRange(period, startStr, endStr string, now time.Time) (time.Time, time.Time, error) {
	start, end := DefaultRange(period, now)

	if startStr != "" {
		parsed, err := time.Parse(dayFormat, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start_date must be in YYYY-MM-DD format")
		}
		start = Midnight(parsed)
	}

	if endStr != "" {
		parsed, err := time.Parse(dayFormat, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end_date must be in YYYY-MM-DD format")
		}
		end = Midnight(parsed)
	}

	if err := ValidateDateRange(start, end); err != nil {
		return time.Time{}, time.Time{}, err
	}

	return start, end, nil
}

// ValidateDateRange rejects inverted or oversized ranges.
func ValidateDateRange(start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("end_date must not be before start_date")
	}
	if end.Sub(start) > MaxRangeDays*24*time.Hour {
		return fmt.Errorf("date range cannot exceed %d days", MaxRangeDays)
	}
	return nil
}

// ValidateTopLimit bounds the top-products limit, defaulting to 10.
func ValidateTopLimit(limit int) (int, error) {
	if limit == 0 {
		return 10, nil
	}
	if limit < 1 || limit > 100 {
		return 0, fmt.Errorf("limit must be between 1 and 100")
	}
	return limit, nil
}

// ValidateSyncDate parses the optional sync date and rejects future days;
// reconciling a day that has not happened yet would write a misleading
// all-zero row.
func ValidateSyncDate(dateStr string, now time.Time) (time.Time, error) {
	if dateStr == "" {
		return Midnight(now), nil
	}

	parsed, err := time.Parse(dayFormat, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be in YYYY-MM-DD format")
	}

	day := Midnight(parsed)
	if day.After(Midnight(now)) {
		return time.Time{}, fmt.Errorf("cannot sync a future date")
	}

	return day, nil
}
