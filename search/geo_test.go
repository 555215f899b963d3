package search_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linesmerrill/mission-search-api/search"
)

func TestParseDistance(t *testing.T) {
	cases := map[string]float64{
		"50km":   50,
		"10km":   10,
		"2.5km":  2.5,
		"25":     25,
		"50000m": 50,
		"1500m":  1.5,
		"abc":    50,
		"":       50,
		"0km":    50,
		"-5":     50,
		"12.5m":  50,
		" 30KM ": 30,
	}
	for raw, want := range cases {
		assert.Equal(t, want, search.ParseDistance(raw), "ParseDistance(%q)", raw)
	}
}

func TestNewBoundingBox(t *testing.T) {
	b := search.NewBoundingBox(48.8566, 2.3522, 111.19492664455873)
	assert.InDelta(t, 47.8566, b.LatMin, 1e-6)
	assert.InDelta(t, 49.8566, b.LatMax, 1e-6)
	assert.True(t, b.LonMax-b.LonMin > b.LatMax-b.LatMin, "longitude degrees are shorter away from the equator")
	assert.True(t, b.Contains(48.8566, 2.3522))
	assert.False(t, b.Contains(45.7640, 4.8357)) // Lyon
}

func TestNewBoundingBox_Clamps(t *testing.T) {
	b := search.NewBoundingBox(89.9, 179.9, 500)
	assert.Equal(t, 90.0, b.LatMax)
	assert.Equal(t, 180.0, b.LonMax)
	assert.True(t, b.LonMin >= -180)

	pole := search.NewBoundingBox(90, 0, 10)
	assert.Equal(t, -180.0, pole.LonMin)
	assert.Equal(t, 180.0, pole.LonMax)
}

func TestNewBoundingBox_GrowsWithRadius(t *testing.T) {
	prev := search.NewBoundingBox(43.6, 1.44, 1)
	for _, km := range []float64{2, 5, 10, 50, 100, 1000} {
		next := search.NewBoundingBox(43.6, 1.44, km)
		assert.True(t, next.LatMin <= prev.LatMin && next.LatMax >= prev.LatMax)
		assert.True(t, next.LonMin <= prev.LonMin && next.LonMax >= prev.LonMax)
		prev = next
	}
}

func TestBoundingBox_ContainsTheCircle(t *testing.T) {
	lat, lon, km := 45.0, 5.0, 30.0
	b := search.NewBoundingBox(lat, lon, km)
	// points on the circle in the four cardinal directions
	for _, p := range [][2]float64{{b.LatMax, lon}, {b.LatMin, lon}} {
		assert.InDelta(t, km, search.HaversineKm(lat, lon, p[0], p[1]), 0.01)
	}
	east := search.HaversineKm(lat, lon, lat, b.LonMax)
	assert.True(t, east >= km-0.5, "east edge at %fkm", east)
}

func TestHaversineKm(t *testing.T) {
	// Paris - Lyon
	assert.InDelta(t, 392, search.HaversineKm(48.8566, 2.3522, 45.7640, 4.8357), 2)
	assert.Equal(t, 0.0, search.HaversineKm(10, 10, 10, 10))
}
