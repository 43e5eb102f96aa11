// Package visitlog records when every agent arrived at, entered, and left
// every station.
package visitlog

import (
	"time"

	"github.com/sarchlab/ratmaze/timing"
)

// Record is one agent's visit to one station. Times are measured from the
// start of the agent's own run.
type Record struct {
	AgentID int
	Arrive  time.Duration
	Entry   time.Duration
	Depart  time.Duration
	Visited bool

	// Delay is the hold the station asked for. The actual hold, Held, can
	// be a little longer.
	Delay time.Duration
}

// Wait returns how long the agent waited for admission.
func (r Record) Wait() time.Duration {
	return r.Entry - r.Arrive
}

// Held returns how long the agent stayed in the station.
func (r Record) Held() time.Duration {
	return r.Depart - r.Entry
}

// Units is a Record expressed in whole time units.
type Units struct {
	AgentID int
	Arrive  int64
	Entry   int64
	Depart  int64
}

// InUnits converts the record to time units. The departure is counted from
// the entry by the station delay, so Depart-Entry always equals the delay in
// units however late the agent actually woke up.
func (r Record) InUnits(unit time.Duration) Units {
	entry := timing.Units(r.Entry, unit)

	return Units{
		AgentID: r.AgentID,
		Arrive:  timing.Units(r.Arrive, unit),
		Entry:   entry,
		Depart:  entry + timing.Units(r.Delay, unit),
	}
}

// Log is a stations x agents table of visit records.
//
// Every cell belongs to one agent and is written only by the goroutine that
// runs that agent, so writers never share a cell. Reading the table is only
// safe after all writers are done.
type Log struct {
	numStations int
	numAgents   int
	cells       []Record
}

// New creates a log for the given number of stations and agents.
func New(numStations, numAgents int) *Log {
	if numStations < 0 || numAgents < 0 {
		panic("visit log dimensions must not be negative")
	}

	return &Log{
		numStations: numStations,
		numAgents:   numAgents,
		cells:       make([]Record, numStations*numAgents),
	}
}

// NumStations returns the number of rows.
func (l *Log) NumStations() int {
	return l.numStations
}

// NumAgents returns the number of columns.
func (l *Log) NumAgents() int {
	return l.numAgents
}

func (l *Log) cell(station, agent int) *Record {
	if station < 0 || station >= l.numStations ||
		agent < 0 || agent >= l.numAgents {
		panic("visit log cell out of range")
	}

	return &l.cells[station*l.numAgents+agent]
}

// Arrive marks that the agent started to contend for the station.
func (l *Log) Arrive(station, agent int, t time.Duration) {
	c := l.cell(station, agent)
	c.AgentID = agent
	c.Arrive = t
}

// Enter records the time the agent was admitted into the station.
func (l *Log) Enter(station, agent int, t time.Duration) {
	l.cell(station, agent).Entry = t
}

// Depart records the time the agent left the station after holding it for
// delay.
func (l *Log) Depart(station, agent int, t, delay time.Duration) {
	c := l.cell(station, agent)
	c.Depart = t
	c.Delay = delay
	c.Visited = true
}

// Get returns the record of a station and an agent.
func (l *Log) Get(station, agent int) Record {
	return *l.cell(station, agent)
}

// Row returns the records of all agents at a station.
func (l *Log) Row(station int) []Record {
	if station < 0 || station >= l.numStations {
		panic("visit log row out of range")
	}

	row := make([]Record, l.numAgents)
	copy(row, l.cells[station*l.numAgents:(station+1)*l.numAgents])

	return row
}

// Rows returns a copy of the whole table, one row per station.
func (l *Log) Rows() [][]Record {
	rows := make([][]Record, l.numStations)
	for i := range rows {
		rows[i] = l.Row(i)
	}

	return rows
}
