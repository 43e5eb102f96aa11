package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ratmaze/datarecording"
	"github.com/sarchlab/ratmaze/hooking"
	"github.com/sarchlab/ratmaze/station"
	"github.com/sarchlab/ratmaze/tracing"
	"github.com/sarchlab/ratmaze/traversal"
)

type fixedTimeTeller struct {
	now time.Time
}

func (t fixedTimeTeller) Now() time.Time {
	return t.now
}

func get(m *Monitor, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rsp := httptest.NewRecorder()
	m.Router().ServeHTTP(rsp, req)

	return rsp
}

func hookAt(m *Monitor, pos *hooking.HookPos, agent int, item any) {
	m.Func(hooking.HookCtx{Pos: pos, Item: item, Detail: agent})
}

var _ = Describe("Monitor", func() {
	var (
		m        *Monitor
		registry *station.Registry
		stderr   *bytes.Buffer
	)

	BeforeEach(func() {
		stderr = new(bytes.Buffer)
		registry = station.NewRegistry(
			station.Descriptor{Capacity: 1, Delay: 2},
			station.Descriptor{Capacity: 3, Delay: 1},
		)

		m = NewMonitor().
			WithStderr(stderr).
			WithTimeTeller(fixedTimeTeller{now: time.Unix(10, 0)})
		m.RegisterSimulation("sim-1", registry)
	})

	It("should refuse privileged ports", func() {
		m.WithPortNumber(80)

		Expect(m.portNumber).To(BeZero())
		Expect(stderr.String()).To(ContainSubstring("Port number 80"))
	})

	It("should keep a progress bar per running agent", func() {
		hookAt(m, traversal.HookPosAgentStart, 1, nil)

		bar := m.agentBar(1)
		Expect(bar).NotTo(BeNil())
		Expect(bar.Name).To(Equal("Rat1"))
		Expect(bar.Total).To(Equal(uint64(2)))

		hookAt(m, traversal.HookPosStationEnter, 1, traversal.Visit{AgentID: 1})
		Expect(bar.InProgress).To(Equal(uint64(1)))

		hookAt(m, traversal.HookPosStationLeave, 1, traversal.Visit{AgentID: 1})
		Expect(bar.InProgress).To(BeZero())
		Expect(bar.Finished).To(Equal(uint64(1)))

		hookAt(m, traversal.HookPosAgentDone, 1, traversal.Completion{AgentID: 1})
		Expect(m.agentBar(1)).To(BeNil())
		Expect(m.progressBars).To(BeEmpty())
	})

	It("should list progress bars", func() {
		hookAt(m, traversal.HookPosAgentStart, 0, nil)
		hookAt(m, traversal.HookPosAgentStart, 1, nil)

		rsp := get(m, "/api/progress")

		Expect(rsp.Code).To(Equal(http.StatusOK))
		var bars []progressSnapshot
		Expect(json.Unmarshal(rsp.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(2))
		Expect(bars[0].Name).To(Equal("Rat0"))
		Expect(bars[1].Total).To(Equal(uint64(2)))
	})

	It("should tell the simulation and the elapsed time", func() {
		m.WithTimeTeller(fixedTimeTeller{now: time.Unix(13, 0)})

		rsp := get(m, "/api/now")

		var now nowRsp
		Expect(json.Unmarshal(rsp.Body.Bytes(), &now)).To(Succeed())
		Expect(now.SimID).To(Equal("sim-1"))
		Expect(now.Elapsed).To(BeNumerically("==", 3))
	})

	It("should list stations with their occupancy", func() {
		registry.Station(1).Occupy()

		rsp := get(m, "/api/stations")

		var stations []stationRsp
		Expect(json.Unmarshal(rsp.Body.Bytes(), &stations)).To(Succeed())
		Expect(stations).To(Equal([]stationRsp{
			{ID: 0, Name: "Room0", Capacity: 1, Delay: 2, Occupancy: 0},
			{ID: 1, Name: "Room1", Capacity: 3, Delay: 1, Occupancy: 1},
		}))
	})

	It("should not find unknown stations", func() {
		Expect(get(m, "/api/station/7").Code).To(Equal(http.StatusNotFound))
		Expect(get(m, "/api/station/x").Code).To(Equal(http.StatusNotFound))
	})

	It("should list the tasks in flight", func() {
		bt := tracing.NewBackTraceTracer(nil)
		bt.StartTask(tracing.Task{ID: "maze.Rat0", Kind: tracing.KindMaze})
		m.RegisterBackTracer(bt)

		rsp := get(m, "/api/inflight")

		var tasks []taskRsp
		Expect(json.Unmarshal(rsp.Body.Bytes(), &tasks)).To(Succeed())
		Expect(tasks).To(HaveLen(1))
		Expect(tasks[0].ID).To(Equal("maze.Rat0"))
	})

	Context("without a recorder", func() {
		It("should not serve waits", func() {
			Expect(get(m, "/api/waits").Code).To(Equal(http.StatusNotFound))
		})

		It("should reject bad agent ids", func() {
			Expect(get(m, "/api/visits/abc").Code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("with a recorder", func() {
		var recorder *datarecording.SQLiteRecorder

		BeforeEach(func() {
			var err error
			recorder, err = datarecording.NewInMemory("")
			Expect(err).NotTo(HaveOccurred())

			h := datarecording.NewVisitRecorder(recorder)
			for _, pos := range []*hooking.HookPos{
				traversal.HookPosStationArrive,
				traversal.HookPosStationEnter,
				traversal.HookPosStationLeave,
			} {
				h.Func(hooking.HookCtx{
					Pos: pos,
					Item: traversal.Visit{
						AgentID:   2,
						StationID: 1,
						Time:      time.Second,
					},
					Detail: 2,
				})
			}

			m.RegisterRecorder(recorder)
		})

		AfterEach(func() {
			recorder.Close()
		})

		It("should serve station waits", func() {
			rsp := get(m, "/api/waits")

			Expect(rsp.Code).To(Equal(http.StatusOK))
			var waits []waitRsp
			Expect(json.Unmarshal(rsp.Body.Bytes(), &waits)).To(Succeed())
			Expect(waits).To(Equal([]waitRsp{{StationID: 1, Visits: 1}}))
		})

		It("should serve the visits of an agent", func() {
			rsp := get(m, "/api/visits/2")

			Expect(rsp.Code).To(Equal(http.StatusOK))
			var visits []datarecording.VisitEntry
			Expect(json.Unmarshal(rsp.Body.Bytes(), &visits)).To(Succeed())
			Expect(visits).To(HaveLen(1))
			Expect(visits[0].StationID).To(Equal(1))
		})
	})

	It("should serve over HTTP", func() {
		url, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		defer m.StopServer(context.Background())

		Expect(stderr.String()).To(ContainSubstring(url))

		rsp, err := http.Get(url + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("sim-1"))
	})
})
