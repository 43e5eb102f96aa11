// Package station holds the stations ("rooms") of a maze and loads their
// layout from a configuration source.
package station

import (
	"strconv"
	"sync/atomic"
)

// Station is a capacity-bounded room that an agent must hold for Delay time
// units to traverse.
type Station struct {
	ID       int `json:"id"`
	Capacity int `json:"capacity"`
	Delay    int `json:"delay"`

	occupancy atomic.Int64
}

// New creates a station.
func New(id, capacity, delay int) *Station {
	return &Station{ID: id, Capacity: capacity, Delay: delay}
}

// Name returns the name of the station.
func (s *Station) Name() string {
	return "Room" + strconv.Itoa(s.ID)
}

// Occupancy returns the number of agents currently inside.
func (s *Station) Occupancy() int64 {
	return s.occupancy.Load()
}

// Occupy adds one occupant and returns the occupancy after the addition.
func (s *Station) Occupy() int64 {
	return s.occupancy.Add(1)
}

// Vacate removes one occupant and returns the occupancy after the removal.
func (s *Station) Vacate() int64 {
	n := s.occupancy.Add(-1)
	if n < 0 {
		panic("station " + s.Name() + " vacated more than occupied")
	}

	return n
}

// Full tells if the station has no free place left.
func (s *Station) Full() bool {
	return s.occupancy.Load() >= int64(s.Capacity)
}

// Descriptor is the immutable part of a station.
type Descriptor struct {
	Capacity int
	Delay    int
}

// Descriptor returns the capacity and delay of the station.
func (s *Station) Descriptor() Descriptor {
	return Descriptor{Capacity: s.Capacity, Delay: s.Delay}
}
