package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/linesmerrill/mission-search-api/api"
	"github.com/linesmerrill/mission-search-api/config"
)

// Metrics exposes the in-memory route metrics
type Metrics struct {
	Collector *api.MetricsCollector
}

// MetricsHandler returns every route's timings, slowest first
func (m Metrics) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	b, err := json.Marshal(map[string]interface{}{
		"routes": m.Collector.Snapshot(),
	})
	if err != nil {
		config.ErrorStatus("failed to marshal metrics", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
