package gate

import (
	"runtime"
	"sync/atomic"

	"github.com/sarchlab/ratmaze/station"
)

// PollingGate admits agents without ever suspending them on a lock. An agent
// polls the station occupancy, yielding the processor after every failed
// poll, and occupies the station as soon as it sees a free place.
//
// The poll and the increment are two separate steps. Two agents that both see
// the last free place in the same window are both admitted, so the occupancy
// can exceed the capacity by up to the number of agents polling at once. This
// over-admission is part of the non-blocking policy and is reported through
// the occupancy returned by Enter.
type PollingGate struct {
	st     *station.Station
	spins  atomic.Int64
	closed atomic.Bool
}

// NewPolling creates a PollingGate for the station.
func NewPolling(st *station.Station) (*PollingGate, error) {
	if err := mustHaveCapacity(st); err != nil {
		return nil, err
	}

	return &PollingGate{st: st}, nil
}

// Station returns the guarded station.
func (g *PollingGate) Station() *station.Station {
	return g.st
}

// Enter spins until the station has a free place and then occupies it.
func (g *PollingGate) Enter() int64 {
	g.mustBeOpen()

	for g.st.Full() {
		g.spins.Add(1)
		runtime.Gosched()
	}

	return g.st.Occupy()
}

// Leave vacates the station. There is nothing else to release.
func (g *PollingGate) Leave() int64 {
	return g.st.Vacate()
}

// Spins returns how many polls found the station full.
func (g *PollingGate) Spins() int64 {
	return g.spins.Load()
}

// Close marks the gate as destroyed.
func (g *PollingGate) Close() {
	g.closed.Store(true)
}

func (g *PollingGate) mustBeOpen() {
	if g.closed.Load() {
		panic("entering closed gate of " + g.st.Name())
	}
}
