// Package search compiles widget rules and runtime filters into a storage
// predicate, runs it against a mission repository and computes cross-filtered
// facet counts.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/mission-search-api/models"
)

// Sort orders the hit listing on one field
type Sort struct {
	Field Field
	Desc  bool
}

// Query is what the result projector sends to the repository
type Query struct {
	Predicate Predicate
	Sort      []Sort
	Skip      int
	Limit     int
}

// hitOrder lists missions by start date, newest first, then by creation date
var hitOrder = []Sort{{Field: FieldStartAt, Desc: true}, {Field: FieldCreatedAt, Desc: true}}

// Repository is implemented once per storage backend
type Repository interface {
	Find(ctx context.Context, q Query) ([]models.Mission, error)
	Count(ctx context.Context, p Predicate) (int64, error)
	GroupBy(ctx context.Context, field Field, p Predicate) ([]models.Bucket, error)
	FindIDs(ctx context.Context, p Predicate, limit int) ([]string, error)
	AggregateArrayField(ctx context.Context, missionIDs []string, field Field) ([]models.Bucket, error)
	Supports(field Field) bool
}

// WidgetLookup resolves widgets. Unknown ids are reported with an error
// wrapping ErrWidgetNotFound.
type WidgetLookup interface {
	FindWidget(ctx context.Context, id string) (*models.Widget, error)
}

// OrganizationLookup resolves organization display names by id
type OrganizationLookup interface {
	OrganizationNames(ctx context.Context, ids []string) (map[string]string, error)
}

// Options tune the engine
type Options struct {
	// ModeratorPublisherID is the publisher whose moderation gates other
	// publishers' missions on moderated widgets
	ModeratorPublisherID string
	// FacetConcurrency caps how many facet queries run at once. 1 runs them
	// one after the other.
	FacetConcurrency int
	// ArrayFacetSampleCap bounds how many mission ids feed an array facet
	ArrayFacetSampleCap int
}

// DefaultModeratorPublisherID is the JeVeuxAider publisher
const DefaultModeratorPublisherID = "5f5931496c7ea514150a818f"

// DefaultArrayFacetSampleCap bounds array facets. Past this many matching
// missions the action and beneficiary counts are computed on a sample and
// are approximate.
const DefaultArrayFacetSampleCap = 50000

// Engine answers widget searches. It holds no request state and is safe for
// concurrent use.
type Engine struct {
	missions      Repository
	widgets       WidgetLookup
	organizations OrganizationLookup
	opts          Options
}

// NewEngine checks that the repository maps every registered field
func NewEngine(missions Repository, widgets WidgetLookup, organizations OrganizationLookup, opts Options) (*Engine, error) {
	var missing []string
	for _, f := range Fields() {
		if !missions.Supports(f) {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("repository does not map fields %v", missing)
	}
	if opts.ModeratorPublisherID == "" {
		opts.ModeratorPublisherID = DefaultModeratorPublisherID
	}
	if opts.FacetConcurrency < 1 {
		opts.FacetConcurrency = 1
	}
	if opts.ArrayFacetSampleCap < 1 {
		opts.ArrayFacetSampleCap = DefaultArrayFacetSampleCap
	}
	return &Engine{missions: missions, widgets: widgets, organizations: organizations, opts: opts}, nil
}

// Compose builds the full predicate for a widget and its runtime filters.
// exact adds the great-circle refinement used by the hit listing only.
func (e *Engine) Compose(w *models.Widget, f SearchFilters, exact bool) Predicate {
	geo := resolveGeo(w, f)
	return Builder{}.And(
		CompileRules(w.Rules),
		f.predicate(geo != nil && !geo.explicit),
		visibility(w, e.opts.ModeratorPublisherID),
		geo.predicate(f.Remote, exact),
	).Build()
}

// Search returns a page of hits, the total and the requested facets
func (e *Engine) Search(ctx context.Context, widgetID string, f SearchFilters, dims []Dimension) (*models.SearchResponse, error) {
	w, err := e.widget(ctx, widgetID)
	if err != nil {
		return nil, err
	}

	var (
		missions []models.Mission
		total    int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if f.Size == 0 {
			return nil
		}
		var err error
		missions, err = e.missions.Find(gctx, Query{
			Predicate: e.Compose(w, f, true),
			Sort:      hitOrder,
			Skip:      f.Skip,
			Limit:     f.Size,
		})
		if err != nil {
			return fmt.Errorf("failed to find missions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		total, err = e.missions.Count(gctx, e.Compose(w, f, false))
		if err != nil {
			return fmt.Errorf("failed to count missions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		e.logFailure(widgetID, f, err)
		return nil, err
	}

	aggs, err := e.aggregate(ctx, w, f, dims)
	if err != nil {
		return nil, err
	}

	hits := make([]models.MissionHit, 0, len(missions))
	for _, m := range missions {
		hits = append(hits, project(m, w, e.opts.ModeratorPublisherID))
	}
	return &models.SearchResponse{Hits: hits, Total: total, Aggs: aggs}, nil
}

// Aggregations computes only the facet buckets
func (e *Engine) Aggregations(ctx context.Context, widgetID string, f SearchFilters, dims []Dimension) (map[string][]models.Bucket, error) {
	w, err := e.widget(ctx, widgetID)
	if err != nil {
		return nil, err
	}
	return e.aggregate(ctx, w, f, dims)
}

func (e *Engine) widget(ctx context.Context, id string) (*models.Widget, error) {
	w, err := e.widgets.FindWidget(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrWidgetNotFound) {
			zap.S().Errorw("failed to load widget", "widgetId", id, "error", err)
		}
		return nil, err
	}
	if w == nil || w.DeletedAt != nil {
		return nil, fmt.Errorf("%w: %s", ErrWidgetNotFound, id)
	}
	return w, nil
}

func (e *Engine) aggregate(ctx context.Context, w *models.Widget, f SearchFilters, dims []Dimension) (map[string][]models.Bucket, error) {
	aggs, err := e.facets(ctx, w, f, dims)
	if err != nil {
		e.logFailure(w.ID, f, err)
		return nil, err
	}
	return aggs, nil
}

func (e *Engine) logFailure(widgetID string, f SearchFilters, err error) {
	zap.S().Errorw("widget search failed",
		"widgetId", widgetID,
		"filters", f,
		"error", err)
}
