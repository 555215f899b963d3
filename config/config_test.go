package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/mission-search-api/models"
)

func TestNew(t *testing.T) {
	t.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	t.Setenv("DB_NAME", "test")
	conf := New()

	assert.NotEmpty(t, conf)
	assert.Equal(t, "mongodb://127.0.0.1:27017", conf.Url)
	assert.Equal(t, "test", conf.DatabaseName)
	assert.NoError(t, conf.Validate())
}

func TestNewDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORAGE_BACKEND", "POSTGRES_MAX_CONNS", "WIDGET_CACHE_TTL", "FACET_CONCURRENCY", "QUERY_TIMEOUT"} {
		t.Setenv(k, "")
	}
	conf := New()

	assert.Equal(t, "8080", conf.Port)
	assert.Equal(t, BackendMongo, conf.StorageBackend)
	assert.Equal(t, int32(10), conf.PostgresMaxConns)
	assert.Equal(t, 5*time.Minute, conf.WidgetCacheTTL)
	assert.Equal(t, "@every 10m", conf.WidgetCacheRefresh)
	assert.Equal(t, 1, conf.FacetConcurrency)
	assert.Equal(t, 50000, conf.ArrayFacetSampleCap)
	assert.Equal(t, 10*time.Second, conf.QueryTimeout)
	assert.Equal(t, "5f5931496c7ea514150a818f", conf.ModeratorPublisherID)
}

func TestNewOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", BackendPostgres)
	t.Setenv("POSTGRES_URL", "postgres://localhost:5432/missions")
	t.Setenv("POSTGRES_MIGRATE", "true")
	t.Setenv("FACET_CONCURRENCY", "4")
	t.Setenv("WIDGET_CACHE_TTL", "90s")
	conf := New()

	assert.Equal(t, BackendPostgres, conf.StorageBackend)
	assert.True(t, conf.PostgresMigrate)
	assert.Equal(t, 4, conf.FacetConcurrency)
	assert.Equal(t, 90*time.Second, conf.WidgetCacheTTL)
	assert.NoError(t, conf.Validate())
}

func TestValidate(t *testing.T) {
	conf := &Config{StorageBackend: BackendPostgres, FacetConcurrency: 1, QueryTimeout: time.Second, RequestTimeout: time.Second}
	assert.ErrorContains(t, conf.Validate(), "POSTGRES_URL")

	conf.StorageBackend = "cassandra"
	assert.ErrorContains(t, conf.Validate(), "STORAGE_BACKEND")

	// the in-memory repository is for tests only
	conf.StorageBackend = "memory"
	assert.ErrorContains(t, conf.Validate(), "STORAGE_BACKEND")

	conf = &Config{StorageBackend: BackendMongo, Url: "mongodb://x", DatabaseName: "x", QueryTimeout: time.Second, RequestTimeout: time.Second}
	assert.ErrorContains(t, conf.Validate(), "FACET_CONCURRENCY")
}

func TestErrorStatus(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorStatus("error it borked", http.StatusBadRequest, w, errors.New("bad request"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var resp models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error it borked", resp.Response.Message)
	assert.Equal(t, "bad request", resp.Response.Error)
}

func TestSetLoggerSetsDevelopmentLogger(t *testing.T) {
	l, err := setLogger("development")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))
}

func TestSetLoggerSetsProductionLogger(t *testing.T) {
	l, err := setLogger("production")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(0))
	assert.False(t, l.Core().Enabled(-1))
}

func TestSetLoggerSetsLocalLogger(t *testing.T) {
	l, err := setLogger("local")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))
}
