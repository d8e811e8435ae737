package calendar

import "time"

// Clock supplies the current instant. Scheduling code takes a Clock instead of
// calling time.Now so tests can pin "today".
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// Today is the current civil date in loc.
func Today(c Clock, loc *time.Location) Date {
	return DateOf(c.Now(), loc)
}
