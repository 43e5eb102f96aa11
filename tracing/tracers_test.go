package tracing

import (
	"bytes"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ratmaze/hooking"
	"github.com/sarchlab/ratmaze/traversal"
)

type stubTimeTeller struct {
	lock sync.Mutex
	now  time.Time
}

func (t *stubTimeTeller) Now() time.Time {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.now
}

func (t *stubTimeTeller) set(sec float64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.now = time.Unix(0, 0).Add(time.Duration(sec * float64(time.Second)))
}

var _ = Describe("TotalTimeTracer", func() {
	var (
		timeTeller *stubTimeTeller
		t          *TotalTimeTracer
	)

	BeforeEach(func() {
		timeTeller = &stubTimeTeller{}
		t = NewTotalTimeTracer(timeTeller, KindFilter(KindWait))
	})

	It("should add overlapping tasks together", func() {
		timeTeller.set(1)
		t.StartTask(Task{ID: "1", Kind: KindWait})
		timeTeller.set(2)
		t.StartTask(Task{ID: "2", Kind: KindWait})
		timeTeller.set(3)
		t.EndTask(Task{ID: "1"})
		t.EndTask(Task{ID: "2"})

		Expect(t.TotalTime()).To(Equal(3 * time.Second))
	})

	It("should ignore filtered tasks", func() {
		timeTeller.set(1)
		t.StartTask(Task{ID: "1", Kind: KindVisit})
		timeTeller.set(3)
		t.EndTask(Task{ID: "1"})

		Expect(t.TotalTime()).To(BeZero())
	})
})

var _ = Describe("AverageTimeTracer", func() {
	It("should average completed tasks", func() {
		timeTeller := &stubTimeTeller{}
		t := NewAverageTimeTracer(timeTeller, WhereFilter(KindWait, "Room0"))

		Expect(t.AverageTime()).To(BeZero())

		timeTeller.set(0)
		t.StartTask(Task{ID: "a", Kind: KindWait, Where: "Room0"})
		t.StartTask(Task{ID: "b", Kind: KindWait, Where: "Room0"})
		t.StartTask(Task{ID: "c", Kind: KindWait, Where: "Room1"})
		timeTeller.set(1)
		t.EndTask(Task{ID: "a"})
		timeTeller.set(3)
		t.EndTask(Task{ID: "b"})
		t.EndTask(Task{ID: "c"})

		Expect(t.TotalCount()).To(Equal(uint64(2)))
		Expect(t.AverageTime()).To(Equal(2 * time.Second))
	})
})

var _ = Describe("BusyTimeTracer", func() {
	var (
		timeTeller *stubTimeTeller
		t          *BusyTimeTracer
	)

	BeforeEach(func() {
		timeTeller = &stubTimeTeller{}
		t = NewBusyTimeTracer(timeTeller, nil)
	})

	It("should track busy time, one task", func() {
		timeTeller.set(1)
		t.StartTask(Task{ID: "1"})
		timeTeller.set(2)
		t.EndTask(Task{ID: "1"})

		Expect(t.BusyTime()).To(Equal(time.Second))
	})

	It("should track busy time, two tasks", func() {
		timeTeller.set(1)
		t.StartTask(Task{ID: "1"})
		timeTeller.set(2)
		t.EndTask(Task{ID: "1"})

		timeTeller.set(3)
		t.StartTask(Task{ID: "2"})
		timeTeller.set(4)
		t.EndTask(Task{ID: "2"})

		Expect(t.BusyTime()).To(Equal(2 * time.Second))
	})

	It("should track busy time, two tasks overlap", func() {
		timeTeller.set(1)
		t.StartTask(Task{ID: "1"})
		timeTeller.set(1.5)
		t.StartTask(Task{ID: "2"})
		timeTeller.set(2)
		t.EndTask(Task{ID: "1"})
		timeTeller.set(3)
		t.EndTask(Task{ID: "2"})

		Expect(t.BusyTime()).To(Equal(2 * time.Second))
	})

	It("should close tasks still in flight", func() {
		timeTeller.set(1)
		t.StartTask(Task{ID: "1"})
		timeTeller.set(4)
		t.TerminateAllTasks()

		Expect(t.BusyTime()).To(Equal(3 * time.Second))
	})
})

var _ = Describe("OccupancyTracer", func() {
	enter := func(t *OccupancyTracer, station, capacity int, occ int64) {
		t.Func(hooking.HookCtx{
			Pos: traversal.HookPosStationEnter,
			Item: traversal.Visit{
				StationID: station,
				Capacity:  capacity,
				Occupancy: occ,
			},
		})
	}

	It("should keep the peak occupancy", func() {
		t := NewOccupancyTracer()

		enter(t, 0, 2, 1)
		enter(t, 0, 2, 2)
		enter(t, 0, 2, 1)

		s := t.Station(0)
		Expect(s.Peak).To(Equal(int64(2)))
		Expect(s.Entries).To(Equal(3))
		Expect(s.OverAdmissions).To(BeZero())
	})

	It("should count over-admissions", func() {
		t := NewOccupancyTracer()

		enter(t, 1, 1, 2)

		Expect(t.Station(1).OverAdmissions).To(Equal(1))
		Expect(t.OverAdmissions()).To(Equal(1))
		Expect(t.Station(5).Entries).To(BeZero())
	})

	It("should ignore other positions", func() {
		t := NewOccupancyTracer()

		t.Func(hooking.HookCtx{Pos: traversal.HookPosStationLeave})

		Expect(t.OverAdmissions()).To(BeZero())
	})
})

var _ = Describe("BackTraceTracer", func() {
	It("should keep the tasks in flight", func() {
		t := NewBackTraceTracer(nil)

		t.StartTask(Task{ID: "maze.Rat1"})
		t.StartTask(Task{ID: "maze.Rat0"})
		t.StartTask(Task{ID: "maze.Rat0.Room1.wait"})
		t.EndTask(Task{ID: "maze.Rat0.Room1.wait"})

		tasks := t.InFlight()
		Expect(tasks).To(HaveLen(2))
		Expect(tasks[0].ID).To(Equal("maze.Rat0"))
		Expect(tasks[1].ID).To(Equal("maze.Rat1"))
	})

	It("should print the chain of parents", func() {
		buf := new(bytes.Buffer)
		t := NewBackTraceTracer(NewTaskPrinter(buf))

		maze := Task{ID: "maze.Rat0", Kind: KindMaze, What: "Rat0", Where: "Maze"}
		visit := Task{
			ID:       "maze.Rat0.Room2.visit",
			ParentID: "maze.Rat0",
			Kind:     KindVisit,
			What:     "Rat0",
			Where:    "Room2",
		}
		t.StartTask(maze)
		t.StartTask(visit)

		t.DumpBackTrace(visit)

		Expect(buf.String()).To(Equal("visit-Rat0@Room2\nmaze-Rat0@Maze\n"))
	})
})
