// Package timing provides the wall clock that workers read and hold on, and
// the conversion between wall durations and simulation time units.
package timing

import (
	"math"
	"time"
)

// A TimeTeller can tell the current time.
type TimeTeller interface {
	Now() time.Time
}

// A Clock tells the time and can suspend the caller.
type Clock interface {
	TimeTeller

	// Sleep suspends the calling goroutine for d. It cannot be interrupted.
	Sleep(d time.Duration)
}

// RealClock is the Clock backed by the time package.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time {
	return time.Now()
}

// Sleep calls time.Sleep.
func (RealClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Units converts a wall duration to whole time units, rounding to the nearest
// unit. Two instants rounded apart can be one unit further apart than the
// span between them, so a hold is converted from its length, never from its
// two ends.
func Units(d, unit time.Duration) int64 {
	if unit <= 0 {
		panic("time unit must be positive")
	}

	return int64(math.Round(float64(d) / float64(unit)))
}

// Span converts a number of time units to a wall duration.
func Span(units int, unit time.Duration) time.Duration {
	return time.Duration(units) * unit
}
