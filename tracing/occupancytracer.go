package tracing

import (
	"sync"

	"github.com/sarchlab/ratmaze/hooking"
	"github.com/sarchlab/ratmaze/traversal"
)

// StationOccupancy summarizes what an OccupancyTracer saw at one station.
type StationOccupancy struct {
	StationID int
	Capacity  int

	// Peak is the highest occupancy observed right after an admission.
	Peak int64

	// Entries counts admissions.
	Entries int

	// OverAdmissions counts admissions that left the station above its
	// capacity. It stays zero under the blocking policies.
	OverAdmissions int
}

// OccupancyTracer is a hook that watches every admission and keeps the peak
// occupancy of each station.
type OccupancyTracer struct {
	lock     sync.Mutex
	stations map[int]*StationOccupancy
}

// NewOccupancyTracer creates an OccupancyTracer.
func NewOccupancyTracer() *OccupancyTracer {
	return &OccupancyTracer{stations: make(map[int]*StationOccupancy)}
}

// Func records the occupancy reported by an admission.
func (t *OccupancyTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != traversal.HookPosStationEnter {
		return
	}

	v := ctx.Item.(traversal.Visit)

	t.lock.Lock()
	defer t.lock.Unlock()

	s, ok := t.stations[v.StationID]
	if !ok {
		s = &StationOccupancy{StationID: v.StationID, Capacity: v.Capacity}
		t.stations[v.StationID] = s
	}

	s.Entries++
	if v.Occupancy > s.Peak {
		s.Peak = v.Occupancy
	}

	if v.Occupancy > int64(v.Capacity) {
		s.OverAdmissions++
	}
}

// Station returns what was observed at a station.
func (t *OccupancyTracer) Station(id int) StationOccupancy {
	t.lock.Lock()
	defer t.lock.Unlock()

	s, ok := t.stations[id]
	if !ok {
		return StationOccupancy{StationID: id}
	}

	return *s
}

// OverAdmissions returns the number of over-admissions at all stations.
func (t *OccupancyTracer) OverAdmissions() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	n := 0
	for _, s := range t.stations {
		n += s.OverAdmissions
	}

	return n
}
