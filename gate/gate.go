// Package gate provides the admission control of a station. A gate keeps the
// number of agents inside a station within the station capacity, either by
// suspending agents on a permit pool or by letting them spin on the station
// occupancy.
package gate

import (
	"errors"
	"strconv"

	"github.com/sarchlab/ratmaze/config"
	"github.com/sarchlab/ratmaze/station"
)

// A Gate admits agents into a station.
type Gate interface {
	// Station returns the station that the gate guards.
	Station() *station.Station

	// Enter returns once the caller is admitted and counted as an occupant.
	// It returns the station occupancy right after the admission.
	Enter() int64

	// Leave removes the caller from the station and returns the occupancy
	// right after the removal.
	Leave() int64

	// Close destroys the gate. Entering a closed gate panics.
	Close()
}

// ErrNoCapacity is wrapped by the ResourceInitError returned for a station
// that cannot hold any agent.
var ErrNoCapacity = errors.New("station capacity must be at least 1")

// New creates the gate that the policy asks for.
func New(policy config.Policy, st *station.Station) (Gate, error) {
	if policy.Blocking() {
		return NewBlocking(st)
	}

	return NewPolling(st)
}

// NewAll creates one gate for each station of the registry.
func NewAll(policy config.Policy, r *station.Registry) ([]Gate, error) {
	gates := make([]Gate, 0, r.Len())
	for _, st := range r.Stations() {
		g, err := New(policy, st)
		if err != nil {
			return nil, err
		}

		gates = append(gates, g)
	}

	return gates, nil
}

// CloseAll closes all the gates.
func CloseAll(gates []Gate) {
	for _, g := range gates {
		g.Close()
	}
}

func mustHaveCapacity(st *station.Station) error {
	if st == nil {
		panic("gate needs a station")
	}

	if st.Capacity < 1 {
		return &config.ResourceInitError{
			Resource: "gate of room " + strconv.Itoa(st.ID),
			Err:      ErrNoCapacity,
		}
	}

	return nil
}
