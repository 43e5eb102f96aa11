package tracing

import (
	"container/list"
	"sync"
	"time"

	"github.com/sarchlab/ratmaze/timing"
)

type taskTimeStartEnd struct {
	start, end time.Time
	completed  bool
}

// BusyTimeTracer traces the time that a domain is processing a kind of task,
// for example the time a station holds at least one agent. If the task
// processing time overlaps, this tracer only consider one instance of the
// overlapped time.
type BusyTimeTracer struct {
	lock          sync.Mutex
	timeTeller    timing.TimeTeller
	filter        TaskFilter
	inflightTasks map[string]*list.Element
	taskTimes     *list.List
	busyTime      time.Duration
}

// NewBusyTimeTracer creates a new BusyTimeTracer
func NewBusyTimeTracer(
	timeTeller timing.TimeTeller,
	filter TaskFilter,
) *BusyTimeTracer {
	t := &BusyTimeTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]*list.Element),
		taskTimes:     list.New(),
	}

	return t
}

// BusyTime returns the total time has been spent on a certain type of tasks.
func (t *BusyTimeTracer) BusyTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.busyTime
}

// TerminateAllTasks will mark all the tasks as completed.
func (t *BusyTimeTracer) TerminateAllTasks() {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.timeTeller.Now()

	for e := t.taskTimes.Front(); e != nil; e = e.Next() {
		task := e.Value.(*taskTimeStartEnd)
		if !task.completed {
			task.completed = true
			task.end = now
		}
	}

	t.inflightTasks = make(map[string]*list.Element)
	t.collapse(now)
}

// StartTask records the task start time
func (t *BusyTimeTracer) StartTask(task Task) {
	if t.filter != nil && !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	taskTime := &taskTimeStartEnd{start: t.timeTeller.Now()}

	elem := t.taskTimes.PushBack(taskTime)
	t.inflightTasks[task.ID] = elem
}

// EndTask records the end of the task
func (t *BusyTimeTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.timeTeller.Now()

	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	taskTime := originalTask.Value.(*taskTimeStartEnd)
	taskTime.end = now
	taskTime.completed = true

	delete(t.inflightTasks, task.ID)

	t.collapse(now)
}

func (t *BusyTimeTracer) collapse(now time.Time) {
	start, found := t.startTimeOfFirstIncompleteTask()
	if found && start.Before(now) {
		return
	}

	finishedTasks := make([]*taskTimeStartEnd, 0)

	var next *list.Element
	for e := t.taskTimes.Front(); e != nil; e = next {
		next = e.Next()

		task := e.Value.(*taskTimeStartEnd)
		if !task.completed {
			break
		}

		if !task.end.After(now) {
			finishedTasks = append(finishedTasks, task)

			t.taskTimes.Remove(e)
		}
	}

	t.busyTime += taskBusyTime(finishedTasks)
}

func (t *BusyTimeTracer) startTimeOfFirstIncompleteTask() (time.Time, bool) {
	for e := t.taskTimes.Front(); e != nil; e = e.Next() {
		task := e.Value.(*taskTimeStartEnd)
		if !task.completed {
			return task.start, true
		}
	}

	return time.Time{}, false
}

func taskBusyTime(tasks []*taskTimeStartEnd) time.Duration {
	busyTime := time.Duration(0)
	coveredMask := make(map[int]bool)

	for i, t1 := range tasks {
		if coveredMask[i] {
			continue
		}

		coveredMask[i] = true

		extTime := taskTimeStartEnd{
			start: t1.start,
			end:   t1.end,
		}

		for j, t2 := range tasks {
			if coveredMask[j] {
				continue
			}

			if taskTimeOverlap(&extTime, t2) {
				coveredMask[j] = true

				extendTaskTime(&extTime, t2)
			}
		}

		busyTime += extTime.end.Sub(extTime.start)
	}

	return busyTime
}

func extendTaskTime(base, t2 *taskTimeStartEnd) {
	if t2.start.Before(base.start) {
		base.start = t2.start
	}

	if t2.end.After(base.end) {
		base.end = t2.end
	}
}

func taskTimeOverlap(t1, t2 *taskTimeStartEnd) bool {
	return !t1.start.After(t2.end) && !t2.start.After(t1.end)
}
