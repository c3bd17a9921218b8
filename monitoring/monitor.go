// Package monitoring serves live statistics about flowmem backends over
// HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"

	"github.com/sarchlab/flowmem/idgen"
	"github.com/sarchlab/flowmem/mem"
)

// Monitor exposes registered backends and progress bars through a JSON API.
type Monitor struct {
	portNumber int
	logger     *zap.SugaredLogger
	idGen      idgen.Generator

	backendsLock sync.Mutex
	backends     []*mem.CallCounter

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		logger: zap.NewNop().Sugar(),
		idGen:  idgen.NewSequential(),
	}
}

// WithPortNumber sets the port number of the monitor. Zero or a privileged
// port picks a random one.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warnw("port not allowed for monitoring, using a random port",
			"port", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger for server events and handler failures.
func (m *Monitor) WithLogger(l *zap.SugaredLogger) *Monitor {
	m.logger = l
	return m
}

// RegisterBackend adds a counted backend to the monitor.
func (m *Monitor) RegisterBackend(c *mem.CallCounter) {
	m.backendsLock.Lock()
	defer m.backendsLock.Unlock()

	m.backends = append(m.backends, c)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGen.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the list.
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

// Router returns the API routes.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/list_backends", m.listBackends)
	r.HandleFunc("/api/backend/{name}", m.backendDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/reset/{name}", m.resetBackend).Methods(http.MethodPost)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer serves the API in the background and returns the address it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	addr := "http://localhost:" +
		strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)
	m.logger.Infow("monitoring server started", "addr", addr)

	go func() {
		err := http.Serve(listener, m.Router())
		m.logger.Errorw("monitoring server stopped", "error", err)
	}()

	return addr, nil
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Errorw("failed to write response", "error", err)
	}
}

func (m *Monitor) fail(w http.ResponseWriter, status int, err error) {
	m.logger.Warnw("monitoring request failed", "status", status, "error", err)
	http.Error(w, err.Error(), status)
}

func (m *Monitor) listBackends(w http.ResponseWriter, _ *http.Request) {
	m.backendsLock.Lock()
	names := make([]string, 0, len(m.backends))
	for _, b := range m.backends {
		names = append(names, b.Name())
	}
	m.backendsLock.Unlock()

	m.writeJSON(w, names)
}

func (m *Monitor) findBackendOr404(
	w http.ResponseWriter,
	name string,
) *mem.CallCounter {
	m.backendsLock.Lock()
	defer m.backendsLock.Unlock()

	for _, b := range m.backends {
		if b.Name() == name {
			return b
		}
	}

	http.Error(w, "backend not found", http.StatusNotFound)

	return nil
}

// backendView is the serializable snapshot of a backend.
type backendView struct {
	Name  string
	Stats mem.Stats
}

func (m *Monitor) backendDetails(w http.ResponseWriter, r *http.Request) {
	backend := m.findBackendOr404(w, mux.Vars(r)["name"])
	if backend == nil {
		return
	}

	m.writeJSON(w, backendView{Name: backend.Name(), Stats: backend.Stats()})
}

type fieldReq struct {
	BackendName string `json:"backend_name,omitempty"`
	FieldName   string `json:"field_name,omitempty"`
}

// listFieldValue serializes one field of a backend snapshot, e.g.
// {"backend_name":"dump","field_name":"Stats.ReadCalls"}.
func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		m.fail(w, http.StatusBadRequest, err)
		return
	}

	backend := m.findBackendOr404(w, req.BackendName)
	if backend == nil {
		return
	}

	view := &backendView{Name: backend.Name(), Stats: backend.Stats()}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(view)
	serializer.SetMaxDepth(1)

	if req.FieldName != "" {
		err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
		if err != nil {
			m.fail(w, http.StatusBadRequest, err)
			return
		}
	}

	buf := bytes.NewBuffer(nil)
	if err := serializer.Serialize(buf); err != nil {
		m.fail(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

func (m *Monitor) resetBackend(w http.ResponseWriter, r *http.Request) {
	backend := m.findBackendOr404(w, mux.Vars(r)["name"])
	if backend == nil {
		return
	}

	backend.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Snapshot())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.fail(w, http.StatusInternalServerError, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.fail(w, http.StatusInternalServerError, err)
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		m.fail(w, http.StatusInternalServerError, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("seconds"); s != "" {
		d, err := time.ParseDuration(s + "s")
		if err != nil {
			m.fail(w, http.StatusBadRequest, err)
			return
		}

		duration = d
	}

	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		m.fail(w, http.StatusConflict, err)
		return
	}

	time.Sleep(duration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.fail(w, http.StatusInternalServerError, err)
		return
	}

	m.writeJSON(w, prof)
}
