package simulation

import (
	"time"

	"github.com/sarchlab/ratmaze/config"
	"github.com/sarchlab/ratmaze/datarecording"
	"github.com/sarchlab/ratmaze/station"
	"github.com/sarchlab/ratmaze/timing"
	"github.com/sarchlab/ratmaze/visitlog"
)

// Result is what a run leaves behind.
type Result struct {
	SimID  string
	Policy config.Policy
	Unit   time.Duration

	Stations []station.Descriptor

	// Visits has one row per station and one cell per agent.
	Visits [][]visitlog.Record

	// AgentTimes is the traversal time of each agent.
	AgentTimes []time.Duration

	// Total is the sum of AgentTimes, accumulated while agents finished.
	Total time.Duration

	// IdealUnits is the total time the agents would need without any wait.
	IdealUnits int

	// TotalWait is the sum of the time agents waited for admission.
	TotalWait time.Duration

	// Spins counts the failed polls of the non-blocking policy.
	Spins int64

	Stats []StationStats

	// Waits is filled from the recorder, when recording is on.
	Waits []datarecording.StationWait
}

// StationStats is what the tracers observed at a station.
type StationStats struct {
	StationID      int
	Capacity       int
	Delay          int
	Entries        int
	PeakOccupancy  int64
	OverAdmissions int
	MeanWait       time.Duration
	BusyTime       time.Duration
}

// TotalUnits returns Total in time units.
func (r *Result) TotalUnits() int64 {
	return timing.Units(r.Total, r.Unit)
}

// AgentUnits returns the traversal time of an agent in time units.
func (r *Result) AgentUnits(agentID int) int64 {
	return timing.Units(r.AgentTimes[agentID], r.Unit)
}

// NumAgents returns the number of agents of the run.
func (r *Result) NumAgents() int {
	return len(r.AgentTimes)
}

// OverAdmissions returns how many admissions exceeded a station capacity.
func (r *Result) OverAdmissions() int {
	n := 0
	for _, s := range r.Stats {
		n += s.OverAdmissions
	}

	return n
}
