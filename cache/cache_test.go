package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/mission-search-api/cache"
	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/search"
	"github.com/linesmerrill/mission-search-api/search/memstore"
)

// fakeRedis keeps values in a map and fails every call when err is set
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, f.err)
}

// countingLookup records how often the wrapped store is reached
type countingLookup struct {
	search.WidgetLookup
	calls int
}

func (c *countingLookup) FindWidget(ctx context.Context, id string) (*models.Widget, error) {
	c.calls++
	return c.WidgetLookup.FindWidget(ctx, id)
}

func setup() (*countingLookup, *fakeRedis, *cache.WidgetCache) {
	store := memstore.New()
	store.AddWidget(models.Widget{
		ID:         "w1",
		Name:       "Benevolat",
		Publishers: []string{"pubA"},
		Rules:      []models.Rule{{Field: "domain", Operator: "is", Value: "sport", Combinator: "and"}},
		Location:   &models.Location{Lat: 45.76, Lon: 4.83, Label: "Lyon"},
	})
	next := &countingLookup{WidgetLookup: store}
	rdb := newFakeRedis()
	return next, rdb, cache.NewWidgetCache(next, rdb, time.Minute)
}

func TestWidgetCache_ReadThrough(t *testing.T) {
	next, rdb, c := setup()
	ctx := context.Background()

	w, err := c.FindWidget(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Benevolat", w.Name)
	assert.Equal(t, 1, next.calls)
	assert.Contains(t, rdb.data, "widget:w1")
	assert.Equal(t, time.Minute, rdb.ttls["widget:w1"])

	cached, err := c.FindWidget(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, w, cached)
}

func TestWidgetCache_NotFoundIsNotCached(t *testing.T) {
	next, rdb, c := setup()

	_, err := c.FindWidget(context.Background(), "nope")
	assert.True(t, errors.Is(err, search.ErrWidgetNotFound))
	_, err = c.FindWidget(context.Background(), "nope")
	assert.True(t, errors.Is(err, search.ErrWidgetNotFound))
	assert.Equal(t, 2, next.calls)
	assert.Empty(t, rdb.data)
}

func TestWidgetCache_RedisDownFallsThrough(t *testing.T) {
	next, rdb, c := setup()
	rdb.err = errors.New("connection refused")

	w, err := c.FindWidget(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, "w1", w.ID)
	assert.Equal(t, 1, next.calls)
}

func TestWidgetCache_UndecodableEntry(t *testing.T) {
	next, rdb, c := setup()
	rdb.data["widget:w1"] = "{not json"

	w, err := c.FindWidget(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, "w1", w.ID)
	assert.Equal(t, 1, next.calls)
	assert.NotEqual(t, "{not json", rdb.data["widget:w1"])
}

func TestWidgetCache_WarmAndInvalidate(t *testing.T) {
	next, rdb, c := setup()
	ctx := context.Background()

	require.NoError(t, c.Warm(ctx, []models.Widget{{ID: "w1", Name: "fresh"}, {ID: "w2"}}))
	assert.Len(t, rdb.data, 2)

	w, err := c.FindWidget(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", w.Name)
	assert.Equal(t, 0, next.calls)

	require.NoError(t, c.Invalidate(ctx, "w1"))
	w, err = c.FindWidget(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Benevolat", w.Name)
	assert.Equal(t, 1, next.calls)
}

func TestWidgetCache_WarmReportsFailures(t *testing.T) {
	_, rdb, c := setup()
	rdb.err = errors.New("read only replica")

	err := c.Warm(context.Background(), []models.Widget{{ID: "w1"}, {ID: "w2"}})
	assert.ErrorContains(t, err, "w1")
	assert.ErrorContains(t, err, "w2")
}
