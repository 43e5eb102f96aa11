// Package monitoring turns a running maze into a small web server, so that
// the progress of the agents and the occupancy of the stations can be watched
// while the simulation runs.
package monitoring

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/ratmaze/datarecording"
	"github.com/sarchlab/ratmaze/hooking"
	"github.com/sarchlab/ratmaze/monitoring/web"
	"github.com/sarchlab/ratmaze/station"
	"github.com/sarchlab/ratmaze/timing"
	"github.com/sarchlab/ratmaze/tracing"
	"github.com/sarchlab/ratmaze/traversal"
)

// Monitor can turn a simulation into a server and allows external monitoring
// of the simulation.
type Monitor struct {
	lock       sync.RWMutex
	simID      string
	timeTeller timing.TimeTeller
	startTime  time.Time
	registry   *station.Registry
	recorder   datarecording.DataRecorder
	reader     datarecording.DataReader
	db         dbProvider
	backTrace  *tracing.BackTraceTracer

	portNumber  int
	openBrowser bool
	stderr      io.Writer
	server      *http.Server

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
	agentBars        map[int]*ProgressBar
}

type dbProvider interface {
	DB() *sql.DB
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		timeTeller: timing.RealClock{},
		stderr:     os.Stderr,
		agentBars:  make(map[int]*ProgressBar),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(m.stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes the monitor open its page in a browser once the server
// starts.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithTimeTeller sets where the monitor reads the current time.
func (m *Monitor) WithTimeTeller(t timing.TimeTeller) *Monitor {
	m.timeTeller = t
	return m
}

// WithStderr sets where operator notices are written.
func (m *Monitor) WithStderr(w io.Writer) *Monitor {
	m.stderr = w
	return m
}

// RegisterSimulation registers the simulation that is being monitored.
func (m *Monitor) RegisterSimulation(simID string, registry *station.Registry) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.simID = simID
	m.registry = registry
	m.startTime = m.timeTeller.Now()
}

// RegisterRecorder lets the monitor query the recorded visits. The recorder
// must also provide its database through a DB method.
func (m *Monitor) RegisterRecorder(r datarecording.DataRecorder) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.recorder = r

	if p, ok := r.(dbProvider); ok {
		m.db = p
		m.reader = datarecording.NewReaderWithDB(p.DB())
	}
}

// RegisterBackTracer lets the monitor tell where every agent is.
func (m *Monitor) RegisterBackTracer(t *tracing.BackTraceTracer) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.backTrace = t
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: m.timeTeller.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Func keeps one progress bar per running agent. It is hooked to the
// traversal engine.
func (m *Monitor) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case traversal.HookPosAgentStart:
		m.startAgent(ctx.Detail.(int))
	case traversal.HookPosStationEnter:
		if bar := m.agentBar(ctx.Detail.(int)); bar != nil {
			bar.IncrementInProgress(1)
		}
	case traversal.HookPosStationLeave:
		if bar := m.agentBar(ctx.Detail.(int)); bar != nil {
			bar.MoveInProgressToFinished(1)
		}
	case traversal.HookPosAgentDone:
		m.finishAgent(ctx.Detail.(int))
	}
}

func (m *Monitor) startAgent(agentID int) {
	total := uint64(0)

	m.lock.RLock()
	if m.registry != nil {
		total = uint64(m.registry.Len())
	}
	m.lock.RUnlock()

	bar := m.CreateProgressBar("Rat"+strconv.Itoa(agentID), total)

	m.progressBarsLock.Lock()
	m.agentBars[agentID] = bar
	m.progressBarsLock.Unlock()
}

func (m *Monitor) agentBar(agentID int) *ProgressBar {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	return m.agentBars[agentID]
}

func (m *Monitor) finishAgent(agentID int) {
	m.progressBarsLock.Lock()
	bar := m.agentBars[agentID]
	delete(m.agentBars, agentID)
	m.progressBarsLock.Unlock()

	if bar != nil {
		m.CompleteProgressBar(bar)
	}
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	fs := web.GetAssets()
	fServer := http.FileServer(fs)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/stations", m.listStations)
	r.HandleFunc("/api/station/{id}", m.stationDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/inflight", m.listInFlight)
	r.HandleFunc("/api/waits", m.listWaits)
	r.HandleFunc("/api/visits/{agent}", m.listVisits)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(fServer)

	return r
}

// StartServer starts the monitor as a web server and returns its URL. A port
// number of zero picks a random port.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("start monitor: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(m.stderr, "Monitoring simulation with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if !errors.Is(err, http.ErrServerClosed) {
			dieOnErr(err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(m.stderr, "Cannot open browser: %v\n", err)
		}
	}

	return url, nil
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

type nowRsp struct {
	SimID   string  `json:"sim_id"`
	Now     string  `json:"now"`
	Elapsed float64 `json:"elapsed"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	m.lock.RLock()
	simID, start := m.simID, m.startTime
	m.lock.RUnlock()

	now := m.timeTeller.Now()
	rsp := nowRsp{
		SimID:   simID,
		Now:     now.Format(time.RFC3339Nano),
		Elapsed: now.Sub(start).Seconds(),
	}

	writeJSON(w, rsp)
}

type stationRsp struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Delay     int    `json:"delay"`
	Occupancy int64  `json:"occupancy"`
}

func (m *Monitor) listStations(w http.ResponseWriter, _ *http.Request) {
	m.lock.RLock()
	registry := m.registry
	m.lock.RUnlock()

	rsp := []stationRsp{}

	if registry != nil {
		for _, s := range registry.Stations() {
			rsp = append(rsp, stationRsp{
				ID:        s.ID,
				Name:      s.Name(),
				Capacity:  s.Capacity,
				Delay:     s.Delay,
				Occupancy: s.Occupancy(),
			})
		}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) stationDetails(w http.ResponseWriter, r *http.Request) {
	st := m.findStationOr404(w, mux.Vars(r)["id"])
	if st == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(st)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) findStationOr404(
	w http.ResponseWriter,
	id string,
) *station.Station {
	m.lock.RLock()
	registry := m.registry
	m.lock.RUnlock()

	index, err := strconv.Atoi(id)
	if err != nil || registry == nil || index < 0 || index >= registry.Len() {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Station not found"))
		dieOnErr(err)

		return nil
	}

	return registry.Station(index)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type taskRsp struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
	Kind     string `json:"kind"`
	What     string `json:"what"`
	Where    string `json:"where"`
}

func (m *Monitor) listInFlight(w http.ResponseWriter, _ *http.Request) {
	m.lock.RLock()
	backTrace := m.backTrace
	m.lock.RUnlock()

	rsp := []taskRsp{}

	if backTrace != nil {
		for _, t := range backTrace.InFlight() {
			rsp = append(rsp, taskRsp{
				ID:       t.ID,
				ParentID: t.ParentID,
				Kind:     t.Kind,
				What:     t.What,
				Where:    t.Where,
			})
		}
	}

	writeJSON(w, rsp)
}

type waitRsp struct {
	StationID int     `json:"station_id"`
	Visits    int     `json:"visits"`
	MeanWait  float64 `json:"mean_wait"`
	MaxWait   float64 `json:"max_wait"`
}

func (m *Monitor) listWaits(w http.ResponseWriter, r *http.Request) {
	rec, ok := m.recorderOr404(w)
	if !ok {
		return
	}

	rec.recorder.Flush()

	waits, err := datarecording.QueryStationWaits(r.Context(), rec.db.DB())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rsp := make([]waitRsp, 0, len(waits))
	for _, wait := range waits {
		rsp = append(rsp, waitRsp{
			StationID: wait.StationID,
			Visits:    wait.Visits,
			MeanWait:  wait.MeanWait.Seconds(),
			MaxWait:   wait.MaxWait.Seconds(),
		})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listVisits(w http.ResponseWriter, r *http.Request) {
	agentID, err := strconv.Atoi(mux.Vars(r)["agent"])
	if err != nil {
		http.Error(w, "Invalid agent: "+err.Error(), http.StatusBadRequest)
		return
	}

	rec, ok := m.recorderOr404(w)
	if !ok {
		return
	}

	rec.recorder.Flush()

	visits, err := datarecording.QueryAgentVisits(r.Context(), rec.reader, agentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, visits)
}

type attachedRecorder struct {
	recorder datarecording.DataRecorder
	reader   datarecording.DataReader
	db       dbProvider
}

func (m *Monitor) recorderOr404(w http.ResponseWriter) (attachedRecorder, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if m.recorder == nil || m.db == nil {
		http.Error(w, "No recorder attached", http.StatusNotFound)
		return attachedRecorder{}, false
	}

	return attachedRecorder{
		recorder: m.recorder,
		reader:   m.reader,
		db:       m.db,
	}, true
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
