package calendar

import "time"

// Clock is the source of "now" for everything that highlights today or draws
// the current time. Layout code never calls time.Now directly.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in a fixed display location.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant. It is mainly useful in tests and
// for rendering snapshots of a given moment.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// Today returns the current date according to c.
func Today(c Clock) Date {
	return FromTime(c.Now())
}
