package search

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/mission-search-api/models"
)

// Dimension is a facet the search page shows filter pills for
type Dimension string

// Facet dimensions
const (
	DimDomain        Dimension = "domain"
	DimOrganization  Dimension = "organization"
	DimDepartment    Dimension = "department"
	DimSchedule      Dimension = "schedule"
	DimRemote        Dimension = "remote"
	DimCountry       Dimension = "country"
	DimMinor         Dimension = "minor"
	DimAccessibility Dimension = "accessibility"
	DimAction        Dimension = "action"
	DimBeneficiary   Dimension = "beneficiary"
)

// AllDimensions in the order the search page lists them
var AllDimensions = []Dimension{
	DimDomain, DimOrganization, DimDepartment, DimSchedule, DimRemote,
	DimCountry, DimMinor, DimAccessibility, DimAction, DimBeneficiary,
}

type facetKind int

const (
	facetScalar facetKind = iota
	facetArray
	facetReference
	facetAccessibility
)

type dimensionSpec struct {
	field Field
	kind  facetKind
	// without clears the runtime filter targeting the dimension
	without func(f *SearchFilters)
	// key maps a stored value to the filter value selecting it, "" drops it
	key func(stored string) string
}

var dimensions = map[Dimension]dimensionSpec{
	DimDomain:        {field: FieldDomain, without: func(f *SearchFilters) { f.Domains = nil }},
	DimOrganization:  {field: FieldOrganizationID, kind: facetReference, without: func(f *SearchFilters) { f.Organizations = nil }},
	DimDepartment:    {field: FieldDepartmentName, without: func(f *SearchFilters) { f.Departments = nil }},
	DimSchedule:      {field: FieldSchedule, without: func(f *SearchFilters) { f.Schedules = nil }},
	DimRemote:        {field: FieldRemote, key: remoteKey, without: func(f *SearchFilters) { f.Remote = nil }},
	DimCountry:       {field: FieldCountry, key: countryKey, without: func(f *SearchFilters) { f.Country = nil }},
	DimMinor:         {field: FieldOpenToMinors, without: func(f *SearchFilters) { f.Minor = nil }},
	DimAccessibility: {kind: facetAccessibility},
	DimAction:        {field: FieldTasks, kind: facetArray, without: func(f *SearchFilters) { f.Actions = nil }},
	DimBeneficiary:   {field: FieldAudience, kind: facetArray, without: func(f *SearchFilters) { f.Beneficiaries = nil }},
}

// ParseDimension validates a dimension name
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(s)
	if _, ok := dimensions[d]; !ok {
		return "", fmt.Errorf("%w: unknown aggregation %q", ErrInvalidInput, s)
	}
	return d, nil
}

// Without returns a copy of f with the filter targeting d removed
func (f SearchFilters) Without(d Dimension) SearchFilters {
	spec, ok := dimensions[d]
	if !ok || spec.without == nil {
		return f
	}
	spec.without(&f)
	return f
}

// facets computes one bucket list per dimension. Queries are throttled to
// FacetConcurrency at a time so a page asking for every dimension does not
// drain the database pool. The first failure fails the whole computation.
func (e *Engine) facets(ctx context.Context, w *models.Widget, f SearchFilters, dims []Dimension) (map[string][]models.Bucket, error) {
	aggs := make(map[string][]models.Bucket, len(dims))
	if len(dims) == 0 {
		return aggs, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.FacetConcurrency)
	for _, d := range dims {
		d := d
		g.Go(func() error {
			buckets, err := e.facet(gctx, w, f, d)
			if err != nil {
				return fmt.Errorf("failed to aggregate %s: %w", d, err)
			}
			mu.Lock()
			aggs[string(d)] = buckets
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return aggs, nil
}

func (e *Engine) facet(ctx context.Context, w *models.Widget, f SearchFilters, d Dimension) ([]models.Bucket, error) {
	spec, ok := dimensions[d]
	if !ok {
		return nil, fmt.Errorf("%w: unknown aggregation %q", ErrInvalidInput, d)
	}

	switch spec.kind {
	case facetAccessibility:
		return e.accessibilityFacet(ctx, w, f)
	}

	p := e.Compose(w, f.Without(d), false)
	var (
		buckets []models.Bucket
		err     error
	)
	switch spec.kind {
	case facetArray:
		buckets, err = e.arrayFacet(ctx, spec.field, p)
	case facetReference:
		buckets, err = e.organizationFacet(ctx, p)
	default:
		buckets, err = e.missions.GroupBy(ctx, spec.field, p)
	}
	if err != nil {
		return nil, err
	}
	if spec.key != nil {
		buckets = rekey(buckets, spec.key)
	}
	return sortBuckets(buckets), nil
}

// remoteKey folds the stored remote modes into the yes/no remote filter
func remoteKey(stored string) string {
	switch stored {
	case RemoteNo:
		return No
	case RemotePossible, RemoteFull:
		return Yes
	}
	return ""
}

// countryKey folds countries into FR and NOT_FR. A mission without a country
// is matched by the NOT_FR filter and counted there.
func countryKey(stored string) string {
	if stored == CountryFrance {
		return CountryFrance
	}
	return CountryNotFrance
}

// rekey renames buckets with key and sums the counts of buckets that end up
// sharing a name
func rekey(in []models.Bucket, key func(string) string) []models.Bucket {
	out := make([]models.Bucket, 0, len(in))
	index := make(map[string]int, len(in))
	for _, b := range in {
		k := key(b.Key)
		if k == "" {
			continue
		}
		if i, ok := index[k]; ok {
			out[i].DocCount += b.DocCount
			continue
		}
		index[k] = len(out)
		out = append(out, models.Bucket{Key: k, DocCount: b.DocCount})
	}
	return out
}

// accessibilityFacet counts each flag on top of the fully filtered set,
// including the caller's own accessibility selection
func (e *Engine) accessibilityFacet(ctx context.Context, w *models.Widget, f SearchFilters) ([]models.Bucket, error) {
	base := e.Compose(w, f, false)
	flags := []struct {
		key   string
		field Field
	}{
		{AccessReducedMobility, FieldReducedMobilityAccessible},
		{AccessCloseToTransport, FieldCloseToTransport},
	}
	buckets := make([]models.Bucket, 0, len(flags))
	for _, flag := range flags {
		n, err := e.missions.Count(ctx, AllOf(base, Leaf{Field: flag.field, Op: OpEq, Value: Yes}))
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, models.Bucket{Key: flag.key, DocCount: n})
	}
	return buckets, nil
}

// arrayFacet unnests an array field in the storage layer. Only the first
// ArrayFacetSampleCap matching missions are counted.
func (e *Engine) arrayFacet(ctx context.Context, field Field, p Predicate) ([]models.Bucket, error) {
	ids, err := e.missions.FindIDs(ctx, p, e.opts.ArrayFacetSampleCap)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Bucket{}, nil
	}
	return e.missions.AggregateArrayField(ctx, ids, field)
}

// organizationFacet groups on organization ids and resolves display names
// afterwards, so two organizations sharing a name stay two buckets
func (e *Engine) organizationFacet(ctx context.Context, p Predicate) ([]models.Bucket, error) {
	byID, err := e.missions.GroupBy(ctx, FieldOrganizationID, p)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(byID))
	for _, b := range byID {
		if b.Key != "" {
			ids = append(ids, b.Key)
		}
	}
	names := map[string]string{}
	if len(ids) > 0 && e.organizations != nil {
		if names, err = e.organizations.OrganizationNames(ctx, ids); err != nil {
			return nil, err
		}
	}

	buckets := make([]models.Bucket, 0, len(byID))
	for _, b := range byID {
		if b.Key == "" {
			continue
		}
		name, ok := names[b.Key]
		if !ok || name == "" {
			name = b.Key
		}
		buckets = append(buckets, models.Bucket{Key: name, ID: b.Key, DocCount: b.DocCount})
	}
	return buckets, nil
}

// sortBuckets drops empty keys and orders by count, then key
func sortBuckets(in []models.Bucket) []models.Bucket {
	out := make([]models.Bucket, 0, len(in))
	for _, b := range in {
		if b.Key != "" && b.DocCount > 0 {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DocCount != out[j].DocCount {
			return out[i].DocCount > out[j].DocCount
		}
		return out[i].Key < out[j].Key
	})
	return out
}
