package tracing

import "time"

// Kinds of the tasks that a traversal produces.
const (
	// KindMaze spans an agent's whole run.
	KindMaze = "maze"

	// KindWait spans the time an agent waits for admission into a station.
	KindWait = "wait"

	// KindVisit spans the time an agent holds a station.
	KindVisit = "visit"
)

// A Task is a span of an agent's run.
type Task struct {
	ID        string      `json:"id"`
	ParentID  string      `json:"parent_id"`
	Kind      string      `json:"kind"`
	What      string      `json:"what"`
	Where     string      `json:"where"`
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
	Detail    interface{} `json:"-"`
}

// Duration returns the time between the start and the end of the task.
func (t Task) Duration() time.Duration {
	return t.EndTime.Sub(t.StartTime)
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// KindFilter keeps the tasks of the given kind.
func KindFilter(kind string) TaskFilter {
	return func(t Task) bool {
		return t.Kind == kind
	}
}

// WhereFilter keeps the tasks of the given kind that happen at the given
// location.
func WhereFilter(kind, where string) TaskFilter {
	return func(t Task) bool {
		return t.Kind == kind && t.Where == where
	}
}
