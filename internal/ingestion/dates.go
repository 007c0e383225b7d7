package ingestion

import "time"

// Today returns midnight of the current day in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// WindowDates returns start plus each following week, weeks dates in total.
func WindowDates(start time.Time, weeks int) []time.Time {
	if weeks <= 0 {
		weeks = 1
	}
	dates := make([]time.Time, 0, weeks)
	for i := 0; i < weeks; i++ {
		dates = append(dates, start.AddDate(0, 0, 7*i))
	}
	return dates
}

// ParseDate parses a YYYY-MM-DD target date in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(time.DateOnly, value, loc)
}
