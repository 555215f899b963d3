package api

import (
	"sort"
	"sync"
	"time"
)

// RouteMetrics aggregates timings for one route
type RouteMetrics struct {
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"errorCount"`
	TotalTime   time.Duration `json:"totalTime"`
	AvgTime     time.Duration `json:"avgTime"`
	MinTime     time.Duration `json:"minTime"`
	MaxTime     time.Duration `json:"maxTime"`
	P95Time     time.Duration `json:"p95Time"`
	LastStatus  int           `json:"lastStatus"`
	LastRequest time.Time     `json:"lastRequest"`

	samples []time.Duration
}

// maxSamples bounds the durations kept per route for the percentile
const maxSamples = 1000

// MetricsCollector collects per-route request metrics in memory
type MetricsCollector struct {
	mu     sync.RWMutex
	routes map[string]*RouteMetrics
}

// NewMetricsCollector returns an empty collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{routes: make(map[string]*RouteMetrics)}
}

// Record adds one finished request to its route
func (mc *MetricsCollector) Record(method, path string, status int, d time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := method + " " + path
	m, ok := mc.routes[key]
	if !ok {
		m = &RouteMetrics{Method: method, Path: path, MinTime: d}
		mc.routes[key] = m
	}
	m.Count++
	if status >= 400 {
		m.ErrorCount++
	}
	m.TotalTime += d
	m.AvgTime = m.TotalTime / time.Duration(m.Count)
	if d < m.MinTime {
		m.MinTime = d
	}
	if d > m.MaxTime {
		m.MaxTime = d
	}
	m.LastStatus = status
	m.LastRequest = time.Now()

	m.samples = append(m.samples, d)
	if len(m.samples) > maxSamples {
		m.samples = m.samples[len(m.samples)-maxSamples:]
	}
	m.P95Time = percentile(m.samples, 0.95)
}

// Snapshot returns a copy of every route, slowest average first
func (mc *MetricsCollector) Snapshot() []RouteMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make([]RouteMetrics, 0, len(mc.routes))
	for _, m := range mc.routes {
		c := *m
		c.samples = nil
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgTime != out[j].AvgTime {
			return out[i].AvgTime > out[j].AvgTime
		}
		return out[i].Method+" "+out[i].Path < out[j].Method+" "+out[j].Path
	})
	return out
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
