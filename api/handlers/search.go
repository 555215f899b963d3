package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/mission-search-api/api"
	"github.com/linesmerrill/mission-search-api/config"
	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/search"
)

// SearchEngine answers widget searches, implemented by search.Engine
type SearchEngine interface {
	Search(ctx context.Context, widgetID string, f search.SearchFilters, dims []search.Dimension) (*models.SearchResponse, error)
	Aggregations(ctx context.Context, widgetID string, f search.SearchFilters, dims []search.Dimension) (map[string][]models.Bucket, error)
}

// Search struct mostly used for mocking tests
type Search struct {
	Engine       SearchEngine
	QueryTimeout time.Duration
}

// SearchHandler returns a page of missions visible on the widget, the total
// and the facets named by the aggs parameter
func (s Search) SearchHandler(w http.ResponseWriter, r *http.Request) {
	widgetID := mux.Vars(r)["widget_id"]

	filters, err := search.ParseFilters(r.URL.Query())
	if err != nil {
		config.ErrorStatus("invalid search parameters", http.StatusBadRequest, w, err)
		return
	}
	dims, err := parseDimensions(r.URL.Query(), nil)
	if err != nil {
		config.ErrorStatus("invalid aggs parameter", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), s.QueryTimeout)
	defer cancel()

	resp, err := s.Engine.Search(ctx, widgetID, filters, dims)
	if err != nil {
		writeSearchError(w, r, widgetID, err)
		return
	}

	b, err := json.Marshal(resp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// AggsHandler returns only the facet buckets, every dimension unless the
// aggs parameter narrows them
func (s Search) AggsHandler(w http.ResponseWriter, r *http.Request) {
	widgetID := mux.Vars(r)["widget_id"]

	filters, err := search.ParseFilters(r.URL.Query())
	if err != nil {
		config.ErrorStatus("invalid search parameters", http.StatusBadRequest, w, err)
		return
	}
	dims, err := parseDimensions(r.URL.Query(), search.AllDimensions)
	if err != nil {
		config.ErrorStatus("invalid aggs parameter", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), s.QueryTimeout)
	defer cancel()

	aggs, err := s.Engine.Aggregations(ctx, widgetID, filters, dims)
	if err != nil {
		writeSearchError(w, r, widgetID, err)
		return
	}

	b, err := json.Marshal(models.AggsResponse{Aggs: aggs})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// parseDimensions reads the aggs parameter, repeated or comma separated.
// "all" selects every dimension, an absent parameter yields def.
func parseDimensions(q url.Values, def []search.Dimension) ([]search.Dimension, error) {
	var names []string
	for _, raw := range append(append([]string{}, q["aggs"]...), q["aggs[]"]...) {
		for _, n := range strings.Split(raw, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}
	if len(names) == 0 {
		return def, nil
	}

	seen := make(map[search.Dimension]bool, len(names))
	dims := make([]search.Dimension, 0, len(names))
	for _, n := range names {
		if n == "all" {
			return search.AllDimensions, nil
		}
		d, err := search.ParseDimension(n)
		if err != nil {
			return nil, err
		}
		if !seen[d] {
			seen[d] = true
			dims = append(dims, d)
		}
	}
	return dims, nil
}

func writeSearchError(w http.ResponseWriter, r *http.Request, widgetID string, err error) {
	switch {
	case errors.Is(err, search.ErrWidgetNotFound):
		config.ErrorStatus(fmt.Sprintf("widget %s not found", widgetID), http.StatusNotFound, w, err)
	case errors.Is(err, search.ErrInvalidInput):
		config.ErrorStatus("invalid search parameters", http.StatusBadRequest, w, err)
	case errors.Is(err, context.DeadlineExceeded):
		api.Logger(r.Context()).Warnw("search timed out", "widgetId", widgetID)
		config.ErrorStatus("search timed out", http.StatusGatewayTimeout, w, err)
	default:
		config.ErrorStatus("failed to search missions", http.StatusInternalServerError, w, err)
	}
}
