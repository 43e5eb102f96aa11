// Package simulation assembles a maze run: it builds the gates, the visit log
// and the engine from a configuration, spawns one goroutine per agent, waits
// for all of them, and hands back the result.
package simulation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/ratmaze/config"
	"github.com/sarchlab/ratmaze/datarecording"
	"github.com/sarchlab/ratmaze/gate"
	"github.com/sarchlab/ratmaze/monitoring"
	"github.com/sarchlab/ratmaze/station"
	"github.com/sarchlab/ratmaze/tracing"
	"github.com/sarchlab/ratmaze/traversal"
	"github.com/sarchlab/ratmaze/visitlog"
)

// ErrAlreadyRun is returned when a Simulation is run a second time.
var ErrAlreadyRun = errors.New("simulation has already run")

// A Simulation owns everything a single run needs. Nothing is shared between
// simulations.
type Simulation struct {
	id       string
	policy   config.Policy
	registry *station.Registry
	gates    []gate.Gate
	visits   *visitlog.Log
	agents   []*traversal.Agent
	engine   *traversal.Engine
	total    *traversal.Accumulator
	unit     time.Duration
	logger   *slog.Logger

	durations []time.Duration

	occupancy   *tracing.OccupancyTracer
	totalWait   *tracing.TotalTimeTracer
	waitTracers []*tracing.AverageTimeTracer
	busyTracers []*tracing.BusyTimeTracer

	recorder *datarecording.SQLiteRecorder
	exec     *datarecording.ExecRecorder
	monitor  *monitoring.Monitor

	ran atomic.Bool
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Engine returns the traversal engine, so that more hooks can be attached
// before the run.
func (s *Simulation) Engine() *traversal.Engine {
	return s.engine
}

// Registry returns the stations of the maze.
func (s *Simulation) Registry() *station.Registry {
	return s.registry
}

// Recorder returns the in-memory recorder, or nil if recording is off.
func (s *Simulation) Recorder() *datarecording.SQLiteRecorder {
	return s.recorder
}

// Run releases all the agents at once and returns when every agent has
// traversed every station.
func (s *Simulation) Run() (*Result, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	s.logger.Info("simulation started",
		"sim", s.id,
		"policy", s.policy.String(),
		"rats", len(s.agents),
		"rooms", s.registry.Len())

	if s.exec != nil {
		s.exec.Start()
	}

	var g errgroup.Group

	for _, agent := range s.agents {
		s.logger.Debug("rat spawned", "agent", agent.ID)

		g.Go(func() error {
			return s.engine.Run(agent)
		})
	}

	err := g.Wait()

	gate.CloseAll(s.gates)

	if err != nil {
		return nil, err
	}

	result := s.result()

	if s.recorder != nil {
		if err := s.finishRecording(result); err != nil {
			return nil, err
		}
	}

	s.logger.Info("simulation completed",
		"sim", s.id,
		"total_units", result.TotalUnits(),
		"ideal_units", result.IdealUnits)

	return result, nil
}

func (s *Simulation) result() *Result {
	r := &Result{
		SimID:      s.id,
		Policy:     s.policy,
		Unit:       s.unit,
		Stations:   s.registry.Descriptors(),
		Visits:     s.visits.Rows(),
		AgentTimes: append([]time.Duration(nil), s.durations...),
		Total:      s.total.Total(),
		IdealUnits: s.registry.IdealTime(len(s.agents)),
		TotalWait:  s.totalWait.TotalTime(),
	}

	for i, g := range s.gates {
		if p, ok := g.(*gate.PollingGate); ok {
			r.Spins += p.Spins()
		}

		st := g.Station()
		occ := s.occupancy.Station(st.ID)
		r.Stats = append(r.Stats, StationStats{
			StationID:      st.ID,
			Capacity:       st.Capacity,
			Delay:          st.Delay,
			Entries:        occ.Entries,
			PeakOccupancy:  occ.Peak,
			OverAdmissions: occ.OverAdmissions,
			MeanWait:       s.waitTracers[i].AverageTime(),
			BusyTime:       s.busyTracers[i].BusyTime(),
		})
	}

	return r
}

func (s *Simulation) finishRecording(r *Result) error {
	s.exec.Set("Total Units", strconv.FormatInt(r.TotalUnits(), 10))
	s.exec.Set("Ideal Units", strconv.Itoa(r.IdealUnits))
	s.exec.End()

	waits, err := datarecording.QueryStationWaits(
		context.Background(), s.recorder.DB())
	if err != nil {
		return err
	}

	r.Waits = waits

	return nil
}

// Close releases the recorder database. The Result of a finished run stays
// valid.
func (s *Simulation) Close() error {
	if s.recorder == nil {
		return nil
	}

	return s.recorder.Close()
}
