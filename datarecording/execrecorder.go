package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecInfo is one property of a run.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecTableName is the table that ExecRecorder writes into.
const ExecTableName = "exec_info"

// ExecRecorder records how a run was started and when it ended.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

// NewExecRecorder creates an ExecRecorder and its table.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	e := &ExecRecorder{recorder: recorder}
	recorder.CreateTable(ExecTableName, ExecInfo{})

	return e
}

// Set adds a property of the run, such as its policy.
func (e *ExecRecorder) Set(property, value string) {
	e.entries = append(e.entries, ExecInfo{property, value})
}

// Start notes the start time and the command line.
func (e *ExecRecorder) Start() {
	e.Set("Start Time", time.Now().Format(time.RFC3339Nano))
	e.Set("Command", strings.Join(os.Args, " "))
}

// End writes the properties together with the end time.
func (e *ExecRecorder) End() {
	e.Set("End Time", time.Now().Format(time.RFC3339Nano))

	for _, entry := range e.entries {
		e.recorder.InsertData(ExecTableName, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}
