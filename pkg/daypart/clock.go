package daypart

// Hours on the resolved clock run 1..24, where 24 is midnight.
const (
	FirstHour    = 1
	LastHour     = 24
	HoursPerDay  = 24
	HalfDayHours = 12
)

// NormalizeHour maps a 0-23 or 1-24 clock value onto 1..24.
// Example: NormalizeHour(0) = 24, NormalizeHour(13) = 13.
func NormalizeHour(h int) int {
	h %= HoursPerDay
	if h < 0 {
		h += HoursPerDay
	}
	if h == 0 {
		return LastHour
	}
	return h
}

// Duration returns the length in hours of an interval on the resolved clock.
// A wrapping interval is measured across midnight: Duration(21, 2, true) = 5.
func Duration(start, end int, wraps bool) int {
	if wraps {
		return end + HoursPerDay - start
	}
	return end - start
}

// Contains reports whether hour h falls inside the interval.
// For a wrapping interval the hour may sit on either side of midnight.
func Contains(start, end, h int, wraps bool) bool {
	if wraps {
		return h >= start || h <= end
	}
	return h >= start && h <= end
}
