package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/mission-search-api/api/handlers"
	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/search"
)

type MockSearchEngine struct {
	mock.Mock
}

func (m *MockSearchEngine) Search(ctx context.Context, widgetID string, f search.SearchFilters, dims []search.Dimension) (*models.SearchResponse, error) {
	ret := m.Called(ctx, widgetID, f, dims)
	resp, _ := ret.Get(0).(*models.SearchResponse)
	return resp, ret.Error(1)
}

func (m *MockSearchEngine) Aggregations(ctx context.Context, widgetID string, f search.SearchFilters, dims []search.Dimension) (map[string][]models.Bucket, error) {
	ret := m.Called(ctx, widgetID, f, dims)
	aggs, _ := ret.Get(0).(map[string][]models.Bucket)
	return aggs, ret.Error(1)
}

func widgetRequest(t *testing.T, route, query string) *http.Request {
	t.Helper()
	req, err := http.NewRequest("GET", "/api/v1/widget/w1/"+route+"?"+query, nil)
	require.NoError(t, err)
	return mux.SetURLVars(req, map[string]string{"widget_id": "w1"})
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorMessageResponse {
	t.Helper()
	var got models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	return got
}

func TestSearch_SearchHandler(t *testing.T) {
	engine := &MockSearchEngine{}
	want := &models.SearchResponse{
		Hits:  []models.MissionHit{{ID: "m1", Title: "Planter des arbres"}},
		Total: 1,
		Aggs:  map[string][]models.Bucket{"domain": {{Key: "environnement", DocCount: 1}}},
	}
	engine.On("Search", mock.Anything, "w1",
		mock.MatchedBy(func(f search.SearchFilters) bool {
			return f.Size == 10 && f.Skip == 20 && len(f.Domains) == 1 && f.Domains[0] == "environnement"
		}),
		[]search.Dimension{search.DimDomain, search.DimRemote},
	).Return(want, nil)

	s := handlers.Search{Engine: engine}
	rr := httptest.NewRecorder()
	http.HandlerFunc(s.SearchHandler).ServeHTTP(rr, widgetRequest(t, "search", "domain=environnement&size=10&from=20&aggs=domain&aggs=remote,domain"))

	assert.Equal(t, http.StatusOK, rr.Code)
	b, _ := json.Marshal(want)
	assert.JSONEq(t, string(b), rr.Body.String())
	engine.AssertExpectations(t)
}

func TestSearch_SearchHandlerNoAggsByDefault(t *testing.T) {
	engine := &MockSearchEngine{}
	engine.On("Search", mock.Anything, "w1", mock.Anything, []search.Dimension(nil)).
		Return(&models.SearchResponse{Hits: []models.MissionHit{}, Aggs: map[string][]models.Bucket{}}, nil)

	s := handlers.Search{Engine: engine}
	rr := httptest.NewRecorder()
	http.HandlerFunc(s.SearchHandler).ServeHTTP(rr, widgetRequest(t, "search", ""))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"hits":[],"total":0,"aggs":{}}`, rr.Body.String())
	engine.AssertExpectations(t)
}

func TestSearch_SearchHandlerAllAggs(t *testing.T) {
	engine := &MockSearchEngine{}
	engine.On("Search", mock.Anything, "w1", mock.Anything, search.AllDimensions).
		Return(&models.SearchResponse{}, nil)

	s := handlers.Search{Engine: engine}
	rr := httptest.NewRecorder()
	http.HandlerFunc(s.SearchHandler).ServeHTTP(rr, widgetRequest(t, "search", "aggs=domain&aggs=all"))

	assert.Equal(t, http.StatusOK, rr.Code)
	engine.AssertExpectations(t)
}

func TestSearch_SearchHandlerBadInput(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		message string
	}{
		{"negative size", "size=-1", "invalid search parameters"},
		{"latitude out of range", "lat=91&lon=2", "invalid search parameters"},
		{"longitude without latitude", "lon=2", "invalid search parameters"},
		{"unknown aggregation", "aggs=colour", "invalid aggs parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &MockSearchEngine{}
			s := handlers.Search{Engine: engine}
			rr := httptest.NewRecorder()
			http.HandlerFunc(s.SearchHandler).ServeHTTP(rr, widgetRequest(t, "search", tt.query))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.message, decodeError(t, rr).Response.Message)
			engine.AssertNotCalled(t, "Search")
		})
	}
}

func TestSearch_SearchHandlerEngineErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"widget not found", fmt.Errorf("%w: w1", search.ErrWidgetNotFound), http.StatusNotFound},
		{"invalid input", fmt.Errorf("%w: bad", search.ErrInvalidInput), http.StatusBadRequest},
		{"deadline", fmt.Errorf("failed to count missions: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"storage failure", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &MockSearchEngine{}
			engine.On("Search", mock.Anything, "w1", mock.Anything, mock.Anything).Return(nil, tt.err)

			s := handlers.Search{Engine: engine}
			rr := httptest.NewRecorder()
			http.HandlerFunc(s.SearchHandler).ServeHTTP(rr, widgetRequest(t, "search", ""))

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.err.Error(), decodeError(t, rr).Response.Error)
		})
	}
}

func TestSearch_SearchHandlerBoundsQueries(t *testing.T) {
	engine := &MockSearchEngine{}
	engine.On("Search",
		mock.MatchedBy(func(ctx context.Context) bool {
			deadline, ok := ctx.Deadline()
			return ok && time.Until(deadline) <= 2*time.Second
		}),
		"w1", mock.Anything, mock.Anything,
	).Return(&models.SearchResponse{}, nil)

	s := handlers.Search{Engine: engine, QueryTimeout: 2 * time.Second}
	rr := httptest.NewRecorder()
	http.HandlerFunc(s.SearchHandler).ServeHTTP(rr, widgetRequest(t, "search", ""))

	assert.Equal(t, http.StatusOK, rr.Code)
	engine.AssertExpectations(t)
}

func TestSearch_AggsHandler(t *testing.T) {
	engine := &MockSearchEngine{}
	aggs := map[string][]models.Bucket{
		"accessibility": {{Key: "reducedMobilityAccessible", DocCount: 0}, {Key: "closeToTransport", DocCount: 2}},
	}
	engine.On("Aggregations", mock.Anything, "w1",
		mock.MatchedBy(func(f search.SearchFilters) bool { return f.Keywords == "arbres" }),
		[]search.Dimension{search.DimAccessibility},
	).Return(aggs, nil)

	s := handlers.Search{Engine: engine}
	rr := httptest.NewRecorder()
	http.HandlerFunc(s.AggsHandler).ServeHTTP(rr, widgetRequest(t, "aggs", "search=arbres&aggs=accessibility"))

	assert.Equal(t, http.StatusOK, rr.Code)
	b, _ := json.Marshal(models.AggsResponse{Aggs: aggs})
	assert.JSONEq(t, string(b), rr.Body.String())
	engine.AssertExpectations(t)
}

func TestSearch_AggsHandlerDefaultsToEveryDimension(t *testing.T) {
	engine := &MockSearchEngine{}
	engine.On("Aggregations", mock.Anything, "w1", mock.Anything, search.AllDimensions).
		Return(map[string][]models.Bucket{}, nil)

	s := handlers.Search{Engine: engine}
	rr := httptest.NewRecorder()
	http.HandlerFunc(s.AggsHandler).ServeHTTP(rr, widgetRequest(t, "aggs", ""))

	assert.Equal(t, http.StatusOK, rr.Code)
	engine.AssertExpectations(t)
}

func TestSearch_AggsHandlerWidgetNotFound(t *testing.T) {
	engine := &MockSearchEngine{}
	engine.On("Aggregations", mock.Anything, "w1", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: w1", search.ErrWidgetNotFound))

	s := handlers.Search{Engine: engine}
	rr := httptest.NewRecorder()
	http.HandlerFunc(s.AggsHandler).ServeHTTP(rr, widgetRequest(t, "aggs", ""))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "widget w1 not found", decodeError(t, rr).Response.Message)
}
