// Package traversal runs the agents through the maze. Each agent runs its own
// loop on its own goroutine: pick a station, get admitted, hold it for the
// station delay, leave, and move on until every station was traversed once.
package traversal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sarchlab/ratmaze/config"
	"github.com/sarchlab/ratmaze/gate"
	"github.com/sarchlab/ratmaze/hooking"
	"github.com/sarchlab/ratmaze/logging"
	"github.com/sarchlab/ratmaze/timing"
	"github.com/sarchlab/ratmaze/visitlog"
)

// A list of hook poses for the hooks to apply to.
var (
	HookPosAgentStart    = &hooking.HookPos{Name: "AgentStart"}
	HookPosStationArrive = &hooking.HookPos{Name: "StationArrive"}
	HookPosStationEnter  = &hooking.HookPos{Name: "StationEnter"}
	HookPosStationLeave  = &hooking.HookPos{Name: "StationLeave"}
	HookPosAgentDone     = &hooking.HookPos{Name: "AgentDone"}
)

// Agent is a rat. It is owned by exactly one goroutine for its whole run.
type Agent struct {
	ID             int
	RoomsCompleted int
}

// Visit is the hook item of the station positions.
type Visit struct {
	AgentID   int
	StationID int

	// Time is measured from the start of the agent's run.
	Time time.Duration

	// Occupancy is the station occupancy right after the agent entered or
	// left. It is zero for arrivals.
	Occupancy int64

	// Capacity of the station.
	Capacity int
}

// Completion is the hook item of HookPosAgentDone.
type Completion struct {
	AgentID  int
	Duration time.Duration
}

// Engine drives agents through a set of gates. One engine is shared by all
// the agents of a run; Run is called once per agent, concurrently.
type Engine struct {
	*hooking.HookableBase

	name   string
	policy config.Policy
	gates  []gate.Gate
	visits *visitlog.Log
	clock  timing.Clock
	unit   time.Duration
	total  *Accumulator
	logger *slog.Logger
}

// Name returns the name of the engine.
func (e *Engine) Name() string {
	return e.name
}

// Policy returns the traversal policy.
func (e *Engine) Policy() config.Policy {
	return e.policy
}

// Total returns the accumulator that agents add their times to.
func (e *Engine) Total() *Accumulator {
	return e.total
}

// Run moves the agent through all the stations. It returns once the agent
// has traversed as many stations as the maze has.
func (e *Engine) Run(agent *Agent) error {
	numStations := len(e.gates)
	if numStations == 0 {
		return fmt.Errorf("agent %d: maze has no station", agent.ID)
	}

	start := e.clock.Now()
	next := FirstStation(e.policy, agent.ID, numStations)

	e.invoke(HookPosAgentStart, agent, nil)

	for agent.RoomsCompleted < numStations {
		if next < 0 || next >= numStations {
			return fmt.Errorf("agent %d: station %d out of range", agent.ID, next)
		}

		e.traverse(agent, next, start)

		agent.RoomsCompleted++
		next = NextStation(next, numStations)
	}

	elapsed := e.clock.Now().Sub(start)
	e.total.Add(elapsed)

	e.logger.Info("agent completed maze",
		"agent", agent.ID,
		"units", timing.Units(elapsed, e.unit),
		"elapsed", elapsed)
	e.invoke(HookPosAgentDone, agent,
		Completion{AgentID: agent.ID, Duration: elapsed})

	return nil
}

func (e *Engine) traverse(agent *Agent, index int, start time.Time) {
	g := e.gates[index]
	st := g.Station()
	visit := Visit{AgentID: agent.ID, StationID: st.ID, Capacity: st.Capacity}

	visit.Time = e.clock.Now().Sub(start)
	e.visits.Arrive(index, agent.ID, visit.Time)
	logging.Trace(e.logger, "agent attempts to enter room",
		"agent", agent.ID, "room", st.ID)
	e.invoke(HookPosStationArrive, agent, visit)

	visit.Occupancy = g.Enter()
	visit.Time = e.clock.Now().Sub(start)
	e.visits.Enter(index, agent.ID, visit.Time)
	e.logger.Debug("agent enters room",
		"agent", agent.ID, "room", st.ID, "occupancy", visit.Occupancy)
	e.invoke(HookPosStationEnter, agent, visit)

	hold := timing.Span(st.Delay, e.unit)
	e.clock.Sleep(hold)

	visit.Time = e.clock.Now().Sub(start)
	e.visits.Depart(index, agent.ID, visit.Time, hold)
	visit.Occupancy = g.Leave()
	e.logger.Debug("agent leaves room", "agent", agent.ID, "room", st.ID)
	e.invoke(HookPosStationLeave, agent, visit)
}

func (e *Engine) invoke(pos *hooking.HookPos, agent *Agent, item interface{}) {
	if e.NumHooks() == 0 {
		return
	}

	e.InvokeHook(hooking.HookCtx{
		Domain: e,
		Pos:    pos,
		Item:   item,
		Detail: agent.ID,
	})
}
