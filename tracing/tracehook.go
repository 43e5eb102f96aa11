package tracing

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/sarchlab/ratmaze/hooking"
	"github.com/sarchlab/ratmaze/traversal"
)

// NamedHookable represent something both have a name and can be hooked.
type NamedHookable interface {
	Name() string
	hooking.Hookable
}

// CollectTrace let the tracer to collect trace from a domain.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(tracer)))
		}
	}

	h := traceHook{t: tracer, domain: domain.Name()}
	domain.AcceptHook(&h)
}

// A traceHook turns the traversal hook positions into tasks.
type traceHook struct {
	t      Tracer
	domain string
}

// Func calls the tracer interfaces when the hook is triggered.
func (h *traceHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case traversal.HookPosAgentStart:
		h.t.StartTask(h.mazeTask(ctx))
	case traversal.HookPosAgentDone:
		h.t.EndTask(h.mazeTask(ctx))
	case traversal.HookPosStationArrive:
		h.t.StartTask(visitTask(ctx, KindWait))
	case traversal.HookPosStationEnter:
		h.t.EndTask(visitTask(ctx, KindWait))
		h.t.StartTask(visitTask(ctx, KindVisit))
	case traversal.HookPosStationLeave:
		h.t.EndTask(visitTask(ctx, KindVisit))
	}
}

func (h *traceHook) mazeTask(ctx hooking.HookCtx) Task {
	agentID := ctx.Detail.(int)

	return Task{
		ID:     mazeTaskID(agentID),
		Kind:   KindMaze,
		What:   agentName(agentID),
		Where:  h.domain,
		Detail: ctx.Item,
	}
}

func visitTask(ctx hooking.HookCtx, kind string) Task {
	v := ctx.Item.(traversal.Visit)
	where := roomName(v.StationID)

	return Task{
		ID:       mazeTaskID(v.AgentID) + "." + where + "." + kind,
		ParentID: mazeTaskID(v.AgentID),
		Kind:     kind,
		What:     agentName(v.AgentID),
		Where:    where,
		Detail:   v,
	}
}

func mazeTaskID(agentID int) string {
	return "maze." + agentName(agentID)
}

func agentName(agentID int) string {
	return "Rat" + strconv.Itoa(agentID)
}

func roomName(stationID int) string {
	return "Room" + strconv.Itoa(stationID)
}
