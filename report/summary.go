package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sarchlab/ratmaze/simulation"
)

// WriteSummary prints a table of what happened at every room: how long rats
// waited, how crowded it got and how long it was held.
func WriteSummary(w io.Writer, r *simulation.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Simulation %s, policy %s, %d rats\n",
		r.SimID, r.Policy, r.NumAgents())
	fmt.Fprintln(tw, "ROOM\tCAP\tDELAY\tENTRIES\tPEAK\tMEAN WAIT\tMAX WAIT\tBUSY")

	for _, s := range r.Stats {
		meanWait, maxWait := s.MeanWait, time.Duration(-1)

		for _, wait := range r.Waits {
			if wait.StationID == s.StationID {
				meanWait, maxWait = wait.MeanWait, wait.MaxWait
			}
		}

		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			s.StationID, s.Capacity, s.Delay, s.Entries, s.PeakOccupancy,
			round(meanWait), formatMax(maxWait), round(s.BusyTime))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Spins > 0 {
		if _, err := fmt.Fprintf(w, "Failed polls: %d\n", r.Spins); err != nil {
			return err
		}
	}

	if n := r.OverAdmissions(); n > 0 {
		_, err := fmt.Fprintf(w,
			"Over-admissions: %d (polling admission is not exclusive)\n", n)
		return err
	}

	return nil
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}

func formatMax(d time.Duration) string {
	if d < 0 {
		return "-"
	}

	return round(d).String()
}
