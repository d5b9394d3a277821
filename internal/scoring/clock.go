package scoring

import "time"

// Clock supplies the reference time for age calculations.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

const day = 24 * time.Hour

// AgeDays returns the fractional number of days between seen and now,
// clamped at zero for timestamps in the future.
func AgeDays(seen, now time.Time) float64 {
	age := now.Sub(seen)
	if age < 0 {
		return 0
	}
	return float64(age) / float64(day)
}
