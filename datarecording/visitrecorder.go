package datarecording

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sarchlab/ratmaze/hooking"
	"github.com/sarchlab/ratmaze/traversal"
)

// Names of the tables that a VisitRecorder writes into.
const (
	VisitTableName      = "visits"
	CompletionTableName = "completions"
)

// VisitEntry is one row of the visits table. Times are nanoseconds from the
// start of the agent's run.
type VisitEntry struct {
	AgentID   int
	StationID int
	Arrive    int64
	Entry     int64
	Depart    int64
	Occupancy int64
}

// CompletionEntry is one row of the completions table.
type CompletionEntry struct {
	AgentID  int
	Duration int64
}

// VisitRecorder is a hook that records every finished visit and every
// finished agent.
type VisitRecorder struct {
	recorder DataRecorder

	lock    sync.Mutex
	pending map[int]*VisitEntry
}

// NewVisitRecorder creates a VisitRecorder and its tables.
func NewVisitRecorder(recorder DataRecorder) *VisitRecorder {
	recorder.CreateTable(VisitTableName, VisitEntry{})
	recorder.CreateTable(CompletionTableName, CompletionEntry{})

	return &VisitRecorder{
		recorder: recorder,
		pending:  make(map[int]*VisitEntry),
	}
}

// Func records the hook events. An agent holds at most one station at a time,
// so the visit in progress is keyed by agent.
func (h *VisitRecorder) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case traversal.HookPosStationArrive:
		v := ctx.Item.(traversal.Visit)

		h.lock.Lock()
		h.pending[v.AgentID] = &VisitEntry{
			AgentID:   v.AgentID,
			StationID: v.StationID,
			Arrive:    int64(v.Time),
		}
		h.lock.Unlock()
	case traversal.HookPosStationEnter:
		v := ctx.Item.(traversal.Visit)

		h.lock.Lock()
		if e, ok := h.pending[v.AgentID]; ok {
			e.Entry = int64(v.Time)
			e.Occupancy = v.Occupancy
		}
		h.lock.Unlock()
	case traversal.HookPosStationLeave:
		h.finishVisit(ctx.Item.(traversal.Visit))
	case traversal.HookPosAgentDone:
		c := ctx.Item.(traversal.Completion)
		h.recorder.InsertData(CompletionTableName, CompletionEntry{
			AgentID:  c.AgentID,
			Duration: int64(c.Duration),
		})
	}
}

func (h *VisitRecorder) finishVisit(v traversal.Visit) {
	h.lock.Lock()
	e, ok := h.pending[v.AgentID]
	delete(h.pending, v.AgentID)
	h.lock.Unlock()

	if !ok {
		return
	}

	e.Depart = int64(v.Time)
	h.recorder.InsertData(VisitTableName, *e)
}

// StationWait summarizes the waits in front of one station.
type StationWait struct {
	StationID int
	Visits    int
	MeanWait  time.Duration
	MaxWait   time.Duration
}

// QueryStationWaits computes the wait statistics of every station that has
// recorded visits, ordered by station.
func QueryStationWaits(
	ctx context.Context,
	db *sql.DB,
) ([]StationWait, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT StationID, COUNT(*), AVG(Entry - Arrive), MAX(Entry - Arrive)
		FROM `+VisitTableName+`
		GROUP BY StationID
		ORDER BY StationID`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var waits []StationWait

	for rows.Next() {
		var (
			w       StationWait
			mean    float64
			longest int64
		)

		if err := rows.Scan(&w.StationID, &w.Visits, &mean, &longest); err != nil {
			return nil, err
		}

		w.MeanWait = time.Duration(mean)
		w.MaxWait = time.Duration(longest)
		waits = append(waits, w)
	}

	return waits, rows.Err()
}

// QueryAgentVisits returns the recorded visits of an agent in the order they
// happened.
func QueryAgentVisits(
	ctx context.Context,
	reader DataReader,
	agentID int,
) ([]VisitEntry, error) {
	reader.MapTable(VisitTableName, VisitEntry{})

	results, _, err := reader.Query(ctx, VisitTableName, QueryParams{
		Where:   "AgentID = ?",
		Args:    []any{agentID},
		OrderBy: "Arrive",
	})
	if err != nil {
		return nil, err
	}

	visits := make([]VisitEntry, 0, len(results))
	for _, r := range results {
		visits = append(visits, *r.(*VisitEntry))
	}

	return visits, nil
}
