package search

import (
	"math"
	"strconv"
	"strings"

	"github.com/linesmerrill/mission-search-api/models"
)

const (
	earthRadiusKm = 6371.0
	// DefaultDistanceKm is used when a distance is missing or unparsable
	DefaultDistanceKm = 50.0
)

// kmPerDegree is the length of one degree of latitude
var kmPerDegree = earthRadiusKm * math.Pi / 180

// BoundingBox is a lat/lon rectangle around a search center
type BoundingBox struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// NewBoundingBox approximates the circle of radiusKm around (lat, lon) with a
// flat-earth rectangle. It is only a prefilter: the box always contains the
// circle.
func NewBoundingBox(lat, lon, radiusKm float64) BoundingBox {
	latDelta := radiusKm / kmPerDegree
	lonDelta := 180.0
	if c := math.Cos(lat * math.Pi / 180); c > 1e-9 {
		lonDelta = math.Min(radiusKm/(kmPerDegree*c), 180)
	}
	return BoundingBox{
		LatMin: math.Max(lat-latDelta, -90),
		LatMax: math.Min(lat+latDelta, 90),
		LonMin: math.Max(lon-lonDelta, -180),
		LonMax: math.Min(lon+lonDelta, 180),
	}
}

// Contains reports whether the point lies inside the box, edges included
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

// HaversineKm is the great-circle distance between two points
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// ParseDistance reads "50km", "50" (km) or "50000m" (meters) into km.
// Anything else, including an empty or non-positive value, is 50km.
func ParseDistance(raw string) float64 {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasSuffix(s, "km"):
		if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "km")), 64); err == nil && v > 0 {
			return v
		}
	case strings.HasSuffix(s, "m"):
		if v, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(s, "m"))); err == nil && v > 0 {
			return float64(v) / 1000
		}
	default:
		if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
			return v
		}
	}
	return DefaultDistanceKm
}

// geoWindow is the resolved location constraint of one request
type geoWindow struct {
	lat, lon float64
	radiusKm float64
	// explicit is set when the caller sent its own distance; the remote
	// selection is then left to the runtime filters
	explicit bool
}

// resolveGeo picks the widget's fixed location first and falls back on the
// caller's point. The two are never combined.
func resolveGeo(w *models.Widget, f SearchFilters) *geoWindow {
	if w != nil && w.Location != nil {
		return &geoWindow{lat: w.Location.Lat, lon: w.Location.Lon, radiusKm: ParseDistance(w.Distance)}
	}
	if f.Lat != nil && f.Lon != nil {
		return &geoWindow{
			lat:      *f.Lat,
			lon:      *f.Lon,
			radiusKm: ParseDistance(f.Distance),
			explicit: f.Distance != "",
		}
	}
	return nil
}

// predicate builds the location clause. exact layers the great-circle
// refinement on the box and is only used for the hit listing; counts and
// aggregations keep to the box so they can run through grouping pipelines.
func (g *geoWindow) predicate(remote []string, exact bool) Predicate {
	if g == nil {
		return nil
	}
	near := Builder{}.And(GeoBox{Box: NewBoundingBox(g.lat, g.lon, g.radiusKm)})
	if exact {
		near = near.And(GeoWithin{Lat: g.lat, Lon: g.lon, RadiusKm: g.radiusKm})
	}
	if g.explicit {
		return near.Build()
	}

	remoteMissions := Leaf{Field: FieldRemote, Op: OpIn, Value: []string{RemotePossible, RemoteFull}}
	v, ok := exactlyOne(remote, Yes, No)
	switch {
	case ok && v == No:
		return near.And(Leaf{Field: FieldRemote, Op: OpEq, Value: RemoteNo}).Build()
	case ok && v == Yes:
		return remoteMissions
	}
	return AnyOf(near.Build(), remoteMissions)
}
