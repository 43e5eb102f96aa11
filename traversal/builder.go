package traversal

import (
	"log/slog"
	"time"

	"github.com/sarchlab/ratmaze/config"
	"github.com/sarchlab/ratmaze/gate"
	"github.com/sarchlab/ratmaze/hooking"
	"github.com/sarchlab/ratmaze/logging"
	"github.com/sarchlab/ratmaze/timing"
	"github.com/sarchlab/ratmaze/visitlog"
)

// Builder can build traversal engines.
type Builder struct {
	policy config.Policy
	gates  []gate.Gate
	visits *visitlog.Log
	clock  timing.Clock
	unit   time.Duration
	total  *Accumulator
	logger *slog.Logger
}

// MakeBuilder creates a builder with a real clock and a one-second time unit.
func MakeBuilder() Builder {
	return Builder{
		clock: timing.RealClock{},
		unit:  time.Second,
	}
}

// WithPolicy sets the traversal policy.
func (b Builder) WithPolicy(p config.Policy) Builder {
	b.policy = p
	return b
}

// WithGates sets the gates, one per station, in station order.
func (b Builder) WithGates(gates []gate.Gate) Builder {
	b.gates = gates
	return b
}

// WithVisitLog sets the table that visits are recorded into.
func (b Builder) WithVisitLog(l *visitlog.Log) Builder {
	b.visits = l
	return b
}

// WithClock sets the clock that agents read and hold stations on.
func (b Builder) WithClock(c timing.Clock) Builder {
	b.clock = c
	return b
}

// WithTimeUnit sets the wall duration of one delay unit.
func (b Builder) WithTimeUnit(unit time.Duration) Builder {
	b.unit = unit
	return b
}

// WithAccumulator sets the accumulator of the total traversal time.
func (b Builder) WithAccumulator(a *Accumulator) Builder {
	b.total = a
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l *slog.Logger) Builder {
	b.logger = l
	return b
}

// Build creates the engine.
func (b Builder) Build(name string) *Engine {
	b.mustBeValid()

	e := &Engine{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		policy:       b.policy,
		gates:        b.gates,
		visits:       b.visits,
		clock:        b.clock,
		unit:         b.unit,
		total:        b.total,
		logger:       b.logger,
	}

	if e.total == nil {
		e.total = &Accumulator{}
	}

	if e.logger == nil {
		e.logger = logging.Discard()
	}

	return e
}

func (b Builder) mustBeValid() {
	if b.policy < config.PolicyOrdered || b.policy > config.PolicyNonBlocking {
		panic("traversal policy is not set")
	}

	if b.visits == nil {
		panic("visit log is not set")
	}

	if b.visits.NumStations() != len(b.gates) {
		panic("visit log and gates disagree on the number of stations")
	}

	if b.clock == nil {
		panic("clock is not set")
	}

	if b.unit <= 0 {
		panic("time unit must be positive")
	}
}
