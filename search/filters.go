package search

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/linesmerrill/mission-search-api/models"
)

// DefaultSize is the page size used when the caller does not send one
const DefaultSize = 25

// Values accepted by the yes/no style filters
const (
	Yes = "yes"
	No  = "no"

	CountryFrance    = "FR"
	CountryNotFrance = "NOT_FR"

	AccessReducedMobility  = "reducedMobilityAccessible"
	AccessCloseToTransport = "closeToTransport"
)

// Remote values stored on missions
const (
	RemoteNo       = "no"
	RemotePossible = "possible"
	RemoteFull     = "full"
)

// SearchFilters is the normalized, request-scoped set of runtime filters
type SearchFilters struct {
	Domains       []string
	Organizations []string
	Departments   []string
	Schedules     []string
	Actions       []string
	Beneficiaries []string
	Remote        []string
	Country       []string
	Minor         []string
	Accessibility []string
	DurationMax   *int
	StartAfter    *time.Time
	Keywords      string
	Lat           *float64
	Lon           *float64
	Distance      string
	DeletedSince  *time.Time
	StatusCode    string
	Skip          int
	Size          int
}

// DefaultFilters returns filters with only the defaults set
func DefaultFilters() SearchFilters {
	return SearchFilters{StatusCode: models.StatusAccepted, Size: DefaultSize}
}

// ParseFilters reads query parameters into SearchFilters. Any malformed or
// out of range value fails the whole parse with ErrInvalidInput.
func ParseFilters(q url.Values) (SearchFilters, error) {
	f := DefaultFilters()
	f.Domains = listParam(q, "domain")
	f.Organizations = listParam(q, "organization")
	f.Departments = listParam(q, "department")
	f.Schedules = listParam(q, "schedule")
	f.Actions = listParam(q, "action")
	f.Beneficiaries = listParam(q, "beneficiary")
	f.Keywords = strings.TrimSpace(q.Get("search"))
	f.Distance = strings.TrimSpace(q.Get("distance"))

	var err error
	if f.Remote, err = enumParam(q, "remote", Yes, No); err != nil {
		return f, err
	}
	if f.Minor, err = enumParam(q, "minor", Yes, No); err != nil {
		return f, err
	}
	if f.Country, err = enumParam(q, "country", CountryFrance, CountryNotFrance); err != nil {
		return f, err
	}
	if f.Accessibility, err = enumParam(q, "accessibility", AccessReducedMobility, AccessCloseToTransport); err != nil {
		return f, err
	}

	if f.Size, err = intParam(q, "size", DefaultSize); err != nil {
		return f, err
	}
	skipKey := "from"
	if q.Get(skipKey) == "" {
		skipKey = "skip"
	}
	if f.Skip, err = intParam(q, skipKey, 0); err != nil {
		return f, err
	}

	if raw := q.Get("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			return f, fmt.Errorf("%w: duration must be a positive integer, got %q", ErrInvalidInput, raw)
		}
		f.DurationMax = &d
	}
	if raw := q.Get("start"); raw != "" {
		t, ok := parseDate(raw)
		if !ok {
			return f, fmt.Errorf("%w: start must be a date, got %q", ErrInvalidInput, raw)
		}
		f.StartAfter = &t
	}
	if raw := q.Get("deletedSince"); raw != "" {
		t, ok := parseDate(raw)
		if !ok {
			return f, fmt.Errorf("%w: deletedSince must be a date, got %q", ErrInvalidInput, raw)
		}
		f.DeletedSince = &t
	}

	lat, lon := q.Get("lat"), q.Get("lon")
	if (lat == "") != (lon == "") {
		return f, fmt.Errorf("%w: lat and lon must be sent together", ErrInvalidInput)
	}
	if lat != "" {
		la, err := strconv.ParseFloat(lat, 64)
		if err != nil || math.IsNaN(la) || la < -90 || la > 90 {
			return f, fmt.Errorf("%w: lat must be within [-90,90], got %q", ErrInvalidInput, lat)
		}
		lo, err := strconv.ParseFloat(lon, 64)
		if err != nil || math.IsNaN(lo) || lo < -180 || lo > 180 {
			return f, fmt.Errorf("%w: lon must be within [-180,180], got %q", ErrInvalidInput, lon)
		}
		f.Lat, f.Lon = &la, &lo
	}
	return f, nil
}

// listParam accepts both repeated parameters and the bracketed form
// (domain[]=a&domain[]=b) and drops empty entries
func listParam(q url.Values, key string) []string {
	raw := append(append([]string{}, q[key]...), q[key+"[]"]...)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func enumParam(q url.Values, key string, allowed ...string) ([]string, error) {
	values := listParam(q, key)
	for _, v := range values {
		if !contains(allowed, v) {
			return nil, fmt.Errorf("%w: %s must be one of %v, got %q", ErrInvalidInput, key, allowed, v)
		}
	}
	return values, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidInput, key, raw)
	}
	return v, nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// exactlyOne reports which of a/b is selected when exactly one of them is.
// Selecting both or neither leaves the dimension unconstrained.
func exactlyOne(values []string, a, b string) (string, bool) {
	hasA, hasB := contains(values, a), contains(values, b)
	switch {
	case hasA && !hasB:
		return a, true
	case hasB && !hasA:
		return b, true
	}
	return "", false
}

func inSet(field Field, values []string) Predicate {
	if len(values) == 0 {
		return nil
	}
	return Leaf{Field: field, Op: OpIn, Value: values}
}

// remotePredicate applies the remote yes/no selection on its own
func remotePredicate(values []string) Predicate {
	v, ok := exactlyOne(values, Yes, No)
	if !ok {
		return nil
	}
	if v == Yes {
		return Leaf{Field: FieldRemote, Op: OpIn, Value: []string{RemotePossible, RemoteFull}}
	}
	return Leaf{Field: FieldRemote, Op: OpEq, Value: RemoteNo}
}

// keywordPredicate matches the keywords in any of the searchable text fields
func keywordPredicate(keywords string) Predicate {
	if keywords == "" {
		return nil
	}
	p := ContainsPattern(keywords)
	return AnyOf(
		Leaf{Field: FieldTitle, Op: OpMatch, Value: p},
		Leaf{Field: FieldOrganizationName, Op: OpMatch, Value: p},
		Leaf{Field: FieldCity, Op: OpMatch, Value: p},
		Leaf{Field: FieldDomain, Op: OpMatch, Value: p},
		Leaf{Field: FieldDescription, Op: OpMatch, Value: p},
	)
}

// predicate compiles the runtime filters. When remoteHandled is set the geo
// window already owns the remote selection and it is skipped here.
func (f SearchFilters) predicate(remoteHandled bool) Predicate {
	b := Builder{}
	if f.StatusCode != "" {
		b = b.And(Leaf{Field: FieldStatusCode, Op: OpEq, Value: f.StatusCode})
	}
	if f.DeletedSince != nil {
		b = b.And(AnyOf(
			Leaf{Field: FieldDeletedAt, Op: OpNotExists},
			Leaf{Field: FieldDeletedAt, Op: OpGte, Value: *f.DeletedSince},
		))
	} else {
		b = b.And(Leaf{Field: FieldDeletedAt, Op: OpNotExists})
	}

	b = b.And(
		inSet(FieldDomain, f.Domains),
		inSet(FieldOrganizationName, f.Organizations),
		inSet(FieldDepartmentName, f.Departments),
		inSet(FieldSchedule, f.Schedules),
		inSet(FieldTasks, f.Actions),
		inSet(FieldAudience, f.Beneficiaries),
	)

	if !remoteHandled {
		b = b.And(remotePredicate(f.Remote))
	}
	if v, ok := exactlyOne(f.Country, CountryFrance, CountryNotFrance); ok {
		op := OpEq
		if v == CountryNotFrance {
			op = OpNe
		}
		b = b.And(Leaf{Field: FieldCountry, Op: op, Value: CountryFrance})
	}
	if v, ok := exactlyOne(f.Minor, Yes, No); ok {
		b = b.And(Leaf{Field: FieldOpenToMinors, Op: OpEq, Value: v})
	}
	if contains(f.Accessibility, AccessReducedMobility) {
		b = b.And(Leaf{Field: FieldReducedMobilityAccessible, Op: OpEq, Value: Yes})
	}
	if contains(f.Accessibility, AccessCloseToTransport) {
		b = b.And(Leaf{Field: FieldCloseToTransport, Op: OpEq, Value: Yes})
	}
	if f.DurationMax != nil {
		b = b.And(Leaf{Field: FieldDuration, Op: OpLte, Value: float64(*f.DurationMax)})
	}
	if f.StartAfter != nil {
		b = b.And(Leaf{Field: FieldStartAt, Op: OpGte, Value: *f.StartAfter})
	}
	b = b.And(keywordPredicate(f.Keywords))
	return b.Build()
}
