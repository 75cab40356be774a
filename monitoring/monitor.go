// Package monitoring turns an annealing run into a web server that reports
// progress and lets users pause it.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/klocal/annealing"
	"github.com/sarchlab/klocal/hooking"
	"github.com/sarchlab/klocal/updater"
)

// Monitor serves the state of an annealer over HTTP. It is also a hook that
// annealers and updaters report to.
type Monitor struct {
	annealer    *annealing.Annealer
	portNumber  int
	openBrowser bool

	registry   *prometheus.Registry
	moves      *prometheus.CounterVec
	sweeps     prometheus.Counter
	bestEnergy prometheus.Gauge

	bestLock sync.Mutex
	best     float64
	hasBest  bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
	annealingBar     *ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	m := &Monitor{
		registry: prometheus.NewRegistry(),
	}

	factory := promauto.With(m.registry)

	m.moves = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "klocal",
		Name:      "moves_total",
		Help:      "Move decisions taken by updaters",
	}, []string{"kind", "outcome"})

	m.sweeps = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "klocal",
		Name:      "sweeps_total",
		Help:      "Sweeps completed over all replicas",
	})

	m.bestEnergy = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "klocal",
		Name:      "best_energy",
		Help:      "Lowest energy seen by any replica",
	})

	return m
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor in a browser.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// RegisterAnnealer attaches the monitor to an annealer. It must be called
// before the annealer runs. The returned bar follows the sweeps of the run;
// complete it once Run returns.
func (m *Monitor) RegisterAnnealer(a *annealing.Annealer) *ProgressBar {
	m.annealer = a

	a.AcceptHook(m)
	a.AcceptMoveHook(m)

	bar := m.CreateProgressBar("Annealing", a.TotalSweeps())

	m.progressBarsLock.Lock()
	m.annealingBar = bar
	m.progressBarsLock.Unlock()

	return bar
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
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

// Func updates the metrics and the progress from sweep and move reports.
func (m *Monitor) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case annealing.HookPosSweepEnd:
		record, ok := ctx.Item.(annealing.SweepRecord)
		if !ok {
			return
		}

		m.sweeps.Inc()
		m.updateBest(record.BestEnergy)
		m.advanceProgress()
	case updater.HookPosMoveAccepted:
		m.countMove(ctx.Item, "accepted")
	case updater.HookPosMoveRejected:
		m.countMove(ctx.Item, "rejected")
	}
}

func (m *Monitor) countMove(item any, outcome string) {
	move, ok := item.(updater.Move)
	if !ok {
		return
	}

	m.moves.WithLabelValues(move.Kind.String(), outcome).Inc()
}

func (m *Monitor) updateBest(energy float64) {
	m.bestLock.Lock()
	defer m.bestLock.Unlock()

	if m.hasBest && energy >= m.best {
		return
	}

	m.best = energy
	m.hasBest = true
	m.bestEnergy.Set(energy)
}

func (m *Monitor) advanceProgress() {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	if m.annealingBar == nil {
		return
	}

	m.annealingBar.IncrementFinished(1)
}

// Router returns the handler that serves the monitoring API.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseAnnealer)
	r.HandleFunc("/api/continue", m.continueAnnealer)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/replica/{id}", m.replicaDetails)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	return r
}

// StartServer starts the monitor as a web server and returns its address.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring annealing with %s\n", url)

	go func() {
		err := http.Serve(listener, m.Router())
		dieOnErr(err)
	}()

	if m.openBrowser {
		err = browser.OpenURL(url)
		if err != nil {
			log.Printf("cannot open browser: %v", err)
		}
	}

	return url
}

func (m *Monitor) annealerOr503(w http.ResponseWriter) *annealing.Annealer {
	if m.annealer == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, err := w.Write([]byte("No annealer registered"))
		dieOnErr(err)
	}

	return m.annealer
}

func (m *Monitor) pauseAnnealer(w http.ResponseWriter, _ *http.Request) {
	a := m.annealerOr503(w)
	if a == nil {
		return
	}

	a.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueAnnealer(w http.ResponseWriter, _ *http.Request) {
	a := m.annealerOr503(w)
	if a == nil {
		return
	}

	a.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	bytes, err := json.Marshal(bars)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) replicaDetails(w http.ResponseWriter, r *http.Request) {
	a := m.annealerOr503(w)
	if a == nil {
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	snapshot, ok := a.Snapshot(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, err = w.Write([]byte("Replica not found"))
		dieOnErr(err)

		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(2)
	err = serializer.Serialize(w)
	dieOnErr(err)
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

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
