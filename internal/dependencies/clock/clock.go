package clock

import "time"

// Clock provides the current time; tests swap in a mock
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock in UTC
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current UTC time
func (c *RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Before returns the instant d before c's current time
func Before(c Clock, d time.Duration) time.Time {
	return c.Now().Add(-d)
}
