// Package report prints the outcome of a maze run: one line per room with the
// visits of every rat, the total against the ideal time, and a summary table.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/sarchlab/ratmaze/simulation"
)

// UnitName returns the word used for a time unit in the report.
func UnitName(unit time.Duration) string {
	switch unit {
	case time.Second:
		return "seconds"
	case time.Millisecond:
		return "milliseconds"
	default:
		return "units"
	}
}

// Write prints one line per room with the entry and departure time of every
// rat, then the total traversal time next to the ideal time.
func Write(w io.Writer, r *simulation.Result) error {
	ew := &errWriter{w: w}

	for i, st := range r.Stations {
		ew.printf("Room %d [%d %d]:", i, st.Capacity, st.Delay)

		for _, rec := range r.Visits[i] {
			u := rec.InUnits(r.Unit)
			ew.printf(" %d %d %d;", u.AgentID, u.Entry, u.Depart)
		}

		ew.printf("\n")
	}

	name := UnitName(r.Unit)
	ew.printf("Total traversal time: %d %s, compared to ideal time: %d %s.\n\n",
		r.TotalUnits(), name, r.IdealUnits, name)

	return ew.err
}

// errWriter keeps the first write error and skips the writes after it.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
