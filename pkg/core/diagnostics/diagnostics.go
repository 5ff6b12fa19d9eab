// Package diagnostics implements the per-channel diagnostics graph:
// named time-series values and text labels, published every tick.
// Time-series values are backed by Prometheus gauges so a running
// channel host exposes them over pkg/monitoring without any extra
// wiring; text labels are folded into the channel's MonitorState.
package diagnostics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Standard time-series names the channel loop writes every tick.
const (
	ProduceTime     = "produce-time"
	MixTime         = "mix-time"
	ConsumeTime     = "consume-time"
	OscTime         = "osc-time"
	SkippedSchedule = "skipped-schedule"
)

// Graph is a per-channel sink for named time-series values and text
// labels. It is internally synchronized; callers never see a mutex.
type Graph struct {
	index int

	mu     sync.Mutex
	labels map[string]string
	gauges map[string]prometheus.Gauge
}

// New returns a Graph for the channel at index, registering its gauges
// with reg as the metric channel_tick_value, labelled with the channel
// index and the series name. reg may be nil, in which
// case values are tracked in-process only (useful for tests).
func New(index int, reg prometheus.Registerer) *Graph {
	g := &Graph{index: index, labels: map[string]string{}, gauges: map[string]prometheus.Gauge{}}
	for _, name := range []string{ProduceTime, MixTime, ConsumeTime, OscTime, SkippedSchedule} {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "channel_tick_value",
			Help:        "Per-tick diagnostics value published by the channel loop.",
			ConstLabels: prometheus.Labels{"channel": strconv.Itoa(index), "series": name},
		})
		if reg != nil {
			reg.MustRegister(gauge)
		}
		g.gauges[name] = gauge
	}
	return g
}

// Set records value for the named time series.
func (g *Graph) Set(series string, value float64) {
	g.mu.Lock()
	gauge, ok := g.gauges[series]
	g.mu.Unlock()
	if !ok {
		return
	}
	gauge.Set(value)
}

// Inc increments the named time series by one, used for counters like
// SkippedSchedule that accumulate rather than sample.
func (g *Graph) Inc(series string) {
	g.mu.Lock()
	gauge, ok := g.gauges[series]
	g.mu.Unlock()
	if !ok {
		return
	}
	gauge.Add(1)
}

// Value reports the current value of the named series, or 0 for an
// unknown one. Mainly useful to tests; the live path is /metrics via
// pkg/monitoring.
func (g *Graph) Value(series string) float64 {
	g.mu.Lock()
	gauge, ok := g.gauges[series]
	g.mu.Unlock()
	if !ok {
		return 0
	}
	return testutil.ToFloat64(gauge)
}

// SetLabel records a text label, e.g. the current source clip name.
func (g *Graph) SetLabel(key, value string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.labels[key] = value
}

// Snapshot returns the current text labels, for inclusion in
// MonitorState.
func (g *Graph) Snapshot() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]string, len(g.labels))
	for k, v := range g.labels {
		out[k] = v
	}
	return out
}
