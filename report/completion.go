package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sarchlab/ratmaze/hooking"
	"github.com/sarchlab/ratmaze/timing"
	"github.com/sarchlab/ratmaze/traversal"
)

// CompletionPrinter is a hook that prints a line as soon as a rat finishes.
type CompletionPrinter struct {
	lock sync.Mutex
	w    io.Writer
	unit time.Duration
}

// NewCompletionPrinter creates a CompletionPrinter.
func NewCompletionPrinter(w io.Writer, unit time.Duration) *CompletionPrinter {
	return &CompletionPrinter{w: w, unit: unit}
}

// Func prints the completion line of a rat.
func (p *CompletionPrinter) Func(ctx hooking.HookCtx) {
	if ctx.Pos != traversal.HookPosAgentDone {
		return
	}

	done := ctx.Item.(traversal.Completion)

	p.lock.Lock()
	defer p.lock.Unlock()

	fmt.Fprintf(p.w, "Rat %d completed maze in %d %s.\n",
		done.AgentID, timing.Units(done.Duration, p.unit), UnitName(p.unit))
}
