// Package clock abstracts wall-clock time so message timestamps and
// history-day boundaries stay controllable in tests.
package clock

import "time"

// Clock is the time source for everything that stamps a message.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock
type RealClock struct{}

// New creates a RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current wall-clock time
func (c *RealClock) Now() time.Time {
	return time.Now()
}
