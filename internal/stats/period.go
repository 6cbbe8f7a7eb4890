package stats

import (
	"fmt"
	"time"
)

const dayFormat = "2006-01-02"

// Clock supplies "now" so tests can pin the current day.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Midnight normalizes t to midnight UTC of its calendar day.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats a date as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayFormat)
}

// PeriodOf returns the bucket label for date at the given period, plus the
// bucket's nominal inclusive start and end days.
//
// Week labels use ISO-8601 numbering (weeks run Monday-Sunday, week 1 holds
// the year's first Thursday), so the label's year is NOT always the date's
// calendar year: 2023-01-01 is 2022-W52 and late-December days can land in
// W01 of the next year.
func PeriodOf(date time.Time, period string) (string, time.Time, time.Time) {
	day := Midnight(date)

	switch period {
	case PeriodDay:
		return day.Format(dayFormat), day, day

	case PeriodWeek:
		isoYear, isoWeek := day.ISOWeek()
		monday := day.AddDate(0, 0, -mondayOffset(day))
		return fmt.Sprintf("%04d-W%02d", isoYear, isoWeek), monday, monday.AddDate(0, 0, 6)

	case PeriodMonth:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return day.Format("2006-01"), start, start.AddDate(0, 1, -1)

	case PeriodYear:
		start := time.Date(day.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return day.Format("2006"), start, start.AddDate(1, 0, -1)

	default:
		// Callers validate the period first; fall back to day granularity
		// rather than panic if something slips through.
		return day.Format(dayFormat), day, day
	}
}

// mondayOffset is the number of days since the most recent Monday.
func mondayOffset(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DefaultRange returns the default lookback window for a period, anchored to
// today: 30 days, 12 weeks, 12 months or 5 years.
func DefaultRange(period string, now time.Time) (time.Time, time.Time) {
	end := Midnight(now)
	switch period {
	case PeriodWeek:
		return end.AddDate(0, 0, -7*12+1), end
	case PeriodMonth:
		return end.AddDate(0, -12, 0).AddDate(0, 0, 1), end
	case PeriodYear:
		return end.AddDate(-5, 0, 0).AddDate(0, 0, 1), end
	default:
		return end.AddDate(0, 0, -29), end
	}
}

// ValidPeriod reports whether p is an accepted aggregation period.
func ValidPeriod(p string) bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}
