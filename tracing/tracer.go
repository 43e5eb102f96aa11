package tracing

// A Tracer can collect task traces. Tracers are called from all the agent
// goroutines at once.
type Tracer interface {
	StartTask(task Task)
	EndTask(task Task)
}
