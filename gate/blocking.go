package gate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/sarchlab/ratmaze/station"
)

// BlockingGate is a counting permit pool sized to the station capacity. An
// agent that finds no permit is suspended until another agent leaves. Waiters
// are not admitted in any particular order.
type BlockingGate struct {
	st      *station.Station
	permits *semaphore.Weighted
	closed  atomic.Bool
}

// NewBlocking creates a BlockingGate for the station.
func NewBlocking(st *station.Station) (*BlockingGate, error) {
	if err := mustHaveCapacity(st); err != nil {
		return nil, err
	}

	return &BlockingGate{
		st:      st,
		permits: semaphore.NewWeighted(int64(st.Capacity)),
	}, nil
}

// Station returns the guarded station.
func (g *BlockingGate) Station() *station.Station {
	return g.st
}

// Enter takes a permit, waiting for one if needed, and then occupies the
// station. Because the occupant is counted only while a permit is held, the
// occupancy never exceeds the capacity.
func (g *BlockingGate) Enter() int64 {
	g.mustBeOpen()

	// Acquire only fails when the context is done; Background never is.
	if err := g.permits.Acquire(context.Background(), 1); err != nil {
		panic(err)
	}

	return g.st.Occupy()
}

// Leave vacates the station and then returns the permit.
func (g *BlockingGate) Leave() int64 {
	n := g.st.Vacate()
	g.permits.Release(1)

	return n
}

// Close marks the gate as destroyed.
func (g *BlockingGate) Close() {
	g.closed.Store(true)
}

func (g *BlockingGate) mustBeOpen() {
	if g.closed.Load() {
		panic("entering closed gate of " + g.st.Name())
	}
}
