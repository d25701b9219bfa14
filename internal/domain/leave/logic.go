package leave

import (
	"math"
	"time"
)

// CalculateDays returns the inclusive count of calendar dates between start
// and end. Time of day is ignored, but an end instant before the start is
// rejected even when both fall on the same date.
func CalculateDays(start, end time.Time) (int, error) {
	if end.Before(start) {
		return 0, ErrInvalidDateRange
	}
	from := CalendarDate(start)
	to := CalendarDate(end.In(start.Location()))
	days := int(math.Round(to.Sub(from).Hours()/24)) + 1
	if days <= 0 {
		return 0, ErrInvalidDateRange
	}
	return days, nil
}

// CalendarDate truncates t to midnight of its date in its own location.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
