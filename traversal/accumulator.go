package traversal

import (
	"sync/atomic"
	"time"
)

// Accumulator sums the traversal times of all agents. Every agent adds its
// own time once, when it leaves the maze.
type Accumulator struct {
	total atomic.Int64
	count atomic.Int64
}

// Add adds d and returns the new total.
func (a *Accumulator) Add(d time.Duration) time.Duration {
	a.count.Add(1)
	return time.Duration(a.total.Add(int64(d)))
}

// Total returns the sum of everything added so far.
func (a *Accumulator) Total() time.Duration {
	return time.Duration(a.total.Load())
}

// Count returns how many times Add was called.
func (a *Accumulator) Count() int {
	return int(a.count.Load())
}
