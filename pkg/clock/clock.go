package clock

import "time"

// Clock is the injected time source. Domain code never reads the wall clock
// directly; commands read the clock once at entry, which makes replay and
// testing deterministic.
type Clock interface {
	Now() time.Time
}

// System is the production clock.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant; intended for tests.
type Fixed struct {
	Time time.Time
}

func (f Fixed) Now() time.Time {
	return f.Time
}
