package simulation

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/ratmaze/config"
	"github.com/sarchlab/ratmaze/datarecording"
	"github.com/sarchlab/ratmaze/gate"
	"github.com/sarchlab/ratmaze/hooking"
	"github.com/sarchlab/ratmaze/logging"
	"github.com/sarchlab/ratmaze/monitoring"
	"github.com/sarchlab/ratmaze/station"
	"github.com/sarchlab/ratmaze/timing"
	"github.com/sarchlab/ratmaze/tracing"
	"github.com/sarchlab/ratmaze/traversal"
	"github.com/sarchlab/ratmaze/visitlog"
)

// Builder can be used to build a simulation.
type Builder struct {
	registry   *station.Registry
	agents     int
	policy     config.Policy
	maxAgents  int
	clock      timing.Clock
	unit       time.Duration
	logger     *slog.Logger
	hooks      []hooking.Hook
	recorderOn bool
	monitor    *monitoring.Monitor
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		maxAgents: config.DefaultMaxAgents,
		clock:     timing.RealClock{},
		unit:      config.DefaultTimeUnit,
	}
}

// WithRegistry sets the stations of the maze.
func (b Builder) WithRegistry(r *station.Registry) Builder {
	b.registry = r
	return b
}

// WithAgents sets the number of agents.
func (b Builder) WithAgents(n int) Builder {
	b.agents = n
	return b
}

// WithPolicy sets the traversal policy.
func (b Builder) WithPolicy(p config.Policy) Builder {
	b.policy = p
	return b
}

// WithMaxAgents sets the largest number of agents accepted.
func (b Builder) WithMaxAgents(n int) Builder {
	b.maxAgents = n
	return b
}

// WithClock sets the clock of the agents.
func (b Builder) WithClock(c timing.Clock) Builder {
	b.clock = c
	return b
}

// WithTimeUnit sets the wall duration of one delay unit.
func (b Builder) WithTimeUnit(unit time.Duration) Builder {
	b.unit = unit
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l *slog.Logger) Builder {
	b.logger = l
	return b
}

// WithHook adds a hook to the traversal engine.
func (b Builder) WithHook(h hooking.Hook) Builder {
	hooks := make([]hooking.Hook, len(b.hooks), len(b.hooks)+1)
	copy(hooks, b.hooks)
	b.hooks = append(hooks, h)

	return b
}

// WithRecorder makes the simulation record every visit into an in-memory
// database.
func (b Builder) WithRecorder() Builder {
	b.recorderOn = true
	return b
}

// WithMonitor attaches a monitor to the simulation. The builder does not
// start the monitor server.
func (b Builder) WithMonitor(m *monitoring.Monitor) Builder {
	b.monitor = m
	return b
}

// Build builds the simulation. It returns a *config.ConfigError if the
// parameters are invalid and a *config.ResourceInitError if a gate cannot be
// created.
func (b Builder) Build() (*Simulation, error) {
	if err := b.parametersMustBeValid(); err != nil {
		return nil, err
	}

	gates, err := gate.NewAll(b.policy, b.registry)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Simulation{
		id:       xid.New().String(),
		policy:   b.policy,
		registry: b.registry,
		gates:    gates,
		visits:   visitlog.New(b.registry.Len(), b.agents),
		total:    &traversal.Accumulator{},
		unit:     b.unit,
		logger:   logger,
		monitor:  b.monitor,
	}

	s.engine = traversal.MakeBuilder().
		WithPolicy(b.policy).
		WithGates(gates).
		WithVisitLog(s.visits).
		WithClock(b.clock).
		WithTimeUnit(b.unit).
		WithAccumulator(s.total).
		WithLogger(logger.With("sim", s.id)).
		Build("Maze")

	s.createAgents(b.agents)
	s.attachTracers(b.clock)

	if b.recorderOn {
		if err := s.attachRecorder(); err != nil {
			return nil, err
		}
	}

	if b.monitor != nil {
		s.attachMonitor(b.clock)
	}

	for _, h := range b.hooks {
		s.engine.AcceptHook(h)
	}

	return s, nil
}

func (b Builder) parametersMustBeValid() error {
	if b.registry == nil || b.registry.Len() == 0 {
		return config.NewConfigError("rooms", "no room configured")
	}

	if b.policy < config.PolicyOrdered || b.policy > config.PolicyNonBlocking {
		return config.NewConfigError("policy",
			strconv.Itoa(int(b.policy))+" is not a valid algorithm")
	}

	if err := config.ValidateAgents(b.agents, b.maxAgents); err != nil {
		return err
	}

	if b.clock == nil {
		panic("clock is not set")
	}

	if b.unit <= 0 {
		return config.NewConfigError("time-unit", "must be positive")
	}

	return nil
}

func (s *Simulation) createAgents(n int) {
	s.agents = make([]*traversal.Agent, n)
	s.durations = make([]time.Duration, n)

	for i := range s.agents {
		s.agents[i] = &traversal.Agent{ID: i}
	}

	s.engine.AcceptHook(hooking.HookFunc(s.recordCompletion))
}

func (s *Simulation) recordCompletion(ctx hooking.HookCtx) {
	if ctx.Pos != traversal.HookPosAgentDone {
		return
	}

	done := ctx.Item.(traversal.Completion)
	s.durations[done.AgentID] = done.Duration
}

func (s *Simulation) attachTracers(clock timing.TimeTeller) {
	s.occupancy = tracing.NewOccupancyTracer()
	s.engine.AcceptHook(s.occupancy)

	s.totalWait = tracing.NewTotalTimeTracer(
		clock, tracing.KindFilter(tracing.KindWait))
	tracing.CollectTrace(s.engine, s.totalWait)

	for _, st := range s.registry.Stations() {
		wait := tracing.NewAverageTimeTracer(
			clock, tracing.WhereFilter(tracing.KindWait, st.Name()))
		tracing.CollectTrace(s.engine, wait)
		s.waitTracers = append(s.waitTracers, wait)

		busy := tracing.NewBusyTimeTracer(
			clock, tracing.WhereFilter(tracing.KindVisit, st.Name()))
		tracing.CollectTrace(s.engine, busy)
		s.busyTracers = append(s.busyTracers, busy)
	}
}

func (s *Simulation) attachRecorder() error {
	recorder, err := datarecording.NewInMemory("ratmaze_" + s.id)
	if err != nil {
		return &config.ResourceInitError{Resource: "recorder", Err: err}
	}

	s.recorder = recorder
	s.engine.AcceptHook(datarecording.NewVisitRecorder(recorder))

	s.exec = datarecording.NewExecRecorder(recorder)
	s.exec.Set("Simulation", s.id)
	s.exec.Set("Policy", s.policy.String())
	s.exec.Set("Rats", strconv.Itoa(len(s.agents)))
	s.exec.Set("Rooms", strconv.Itoa(s.registry.Len()))
	s.exec.Set("Time Unit", s.unit.String())

	return nil
}

func (s *Simulation) attachMonitor(clock timing.TimeTeller) {
	s.monitor.WithTimeTeller(clock)
	s.monitor.RegisterSimulation(s.id, s.registry)

	if s.recorder != nil {
		s.monitor.RegisterRecorder(s.recorder)
	}

	backTrace := tracing.NewBackTraceTracer(nil)
	tracing.CollectTrace(s.engine, backTrace)
	s.monitor.RegisterBackTracer(backTrace)

	s.engine.AcceptHook(s.monitor)
}
