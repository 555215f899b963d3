// Package memstore is an in-memory mission repository. It evaluates the
// search predicate tree directly and serves as the reference repository in
// tests. No storage backend setting selects it.
package memstore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/search"
)

// Store keeps missions, widgets and organizations in memory
type Store struct {
	mu            sync.RWMutex
	missions      []models.Mission
	widgets       map[string]models.Widget
	organizations map[string]string
	// Err, when set, is returned by every repository call
	Err error
}

// New returns an empty store
func New() *Store {
	return &Store{widgets: map[string]models.Widget{}, organizations: map[string]string{}}
}

// AddMissions appends missions to the store
func (s *Store) AddMissions(ms ...models.Mission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions = append(s.missions, ms...)
}

// AddWidget stores or replaces a widget
func (s *Store) AddWidget(w models.Widget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.widgets[w.ID] = w
}

// AddOrganization stores an organization name
func (s *Store) AddOrganization(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.organizations[id] = name
}

// FindWidget implements search.WidgetLookup
func (s *Store) FindWidget(_ context.Context, id string) (*models.Widget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.widgets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", search.ErrWidgetNotFound, id)
	}
	return &w, nil
}

// ActiveWidgets lists the widgets the cache warm-up should load
func (s *Store) ActiveWidgets(_ context.Context) ([]models.Widget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Widget, 0, len(s.widgets))
	for _, w := range s.widgets {
		if w.Active && w.DeletedAt == nil {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// OrganizationNames implements search.OrganizationLookup
func (s *Store) OrganizationNames(_ context.Context, ids []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := s.organizations[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// Supports implements search.Repository
func (s *Store) Supports(f search.Field) bool {
	_, ok := accessors[f]
	return ok
}

// Find implements search.Repository
func (s *Store) Find(_ context.Context, q search.Query) ([]models.Mission, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	matched := s.filter(q.Predicate)
	sort.SliceStable(matched, func(i, j int) bool { return less(&matched[i], &matched[j], q.Sort) })
	if q.Skip >= len(matched) {
		return []models.Mission{}, nil
	}
	matched = matched[q.Skip:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// Count implements search.Repository
func (s *Store) Count(_ context.Context, p search.Predicate) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return int64(len(s.filter(p))), nil
}

// GroupBy implements search.Repository
func (s *Store) GroupBy(_ context.Context, field search.Field, p search.Predicate) ([]models.Bucket, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	counts := map[string]int64{}
	for _, m := range s.filter(p) {
		v, _ := accessors[field](&m).(string)
		counts[v]++
	}
	return buckets(counts), nil
}

// FindIDs implements search.Repository
func (s *Store) FindIDs(_ context.Context, p search.Predicate, limit int) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var ids []string
	for _, m := range s.filter(p) {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// AggregateArrayField implements search.Repository
func (s *Store) AggregateArrayField(_ context.Context, missionIDs []string, field search.Field) ([]models.Bucket, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	wanted := make(map[string]bool, len(missionIDs))
	for _, id := range missionIDs {
		wanted[id] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int64{}
	for i := range s.missions {
		if !wanted[s.missions[i].ID] {
			continue
		}
		values, _ := accessors[field](&s.missions[i]).([]string)
		for _, v := range values {
			counts[v]++
		}
	}
	return buckets(counts), nil
}

func (s *Store) filter(p search.Predicate) []models.Mission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Mission, 0, len(s.missions))
	for i := range s.missions {
		if Match(&s.missions[i], p) {
			out = append(out, s.missions[i])
		}
	}
	return out
}

func buckets(counts map[string]int64) []models.Bucket {
	out := make([]models.Bucket, 0, len(counts))
	for k, n := range counts {
		out = append(out, models.Bucket{Key: k, DocCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Match evaluates p against a mission. A nil predicate matches.
func Match(m *models.Mission, p search.Predicate) bool {
	switch p := p.(type) {
	case nil:
		return true
	case search.MatchNone:
		return false
	case search.And:
		for _, t := range p.Terms {
			if !Match(m, t) {
				return false
			}
		}
		return true
	case search.Or:
		for _, t := range p.Terms {
			if Match(m, t) {
				return true
			}
		}
		return false
	case search.Moderated:
		mod, ok := m.ModerationFor(p.PublisherID)
		return ok && mod.Status == p.Status
	case search.GeoBox:
		for _, a := range m.Addresses {
			if a.Location != nil && p.Box.Contains(a.Location.Lat, a.Location.Lon) {
				return true
			}
		}
		return false
	case search.GeoWithin:
		for _, a := range m.Addresses {
			if a.Location != nil && search.HaversineKm(p.Lat, p.Lon, a.Location.Lat, a.Location.Lon) <= p.RadiusKm {
				return true
			}
		}
		return false
	case search.Leaf:
		return matchLeaf(m, p)
	}
	return false
}

func matchLeaf(m *models.Mission, l search.Leaf) bool {
	get, ok := accessors[l.Field]
	if !ok {
		return false
	}
	v := get(m)
	values, present := elements(v)

	switch l.Op {
	case search.OpExists:
		return present
	case search.OpNotExists:
		return !present
	case search.OpEq:
		return anyOf(values, func(x interface{}) bool { return equal(x, l.Value) })
	case search.OpNe:
		return !anyOf(values, func(x interface{}) bool { return equal(x, l.Value) })
	case search.OpIn:
		set, _ := l.Value.([]string)
		return anyOf(values, func(x interface{}) bool { return inSet(x, set) })
	case search.OpNotIn:
		set, _ := l.Value.([]string)
		return !anyOf(values, func(x interface{}) bool { return inSet(x, set) })
	case search.OpMatch, search.OpNotMatch:
		pattern, _ := l.Value.(search.Pattern)
		re, err := regexp.Compile("(?i)" + string(pattern))
		if err != nil {
			return false
		}
		hit := anyOf(values, func(x interface{}) bool {
			s, ok := x.(string)
			return ok && re.MatchString(s)
		})
		if l.Op == search.OpNotMatch {
			return !hit
		}
		return hit
	case search.OpGt, search.OpGte, search.OpLt, search.OpLte:
		return anyOf(values, func(x interface{}) bool {
			c, ok := compare(x, l.Value)
			if !ok {
				return false
			}
			switch l.Op {
			case search.OpGt:
				return c > 0
			case search.OpGte:
				return c >= 0
			case search.OpLt:
				return c < 0
			}
			return c <= 0
		})
	}
	return false
}

// elements flattens a field value; empty strings, nil pointers and empty
// arrays count as missing
func elements(v interface{}) ([]interface{}, bool) {
	switch v := v.(type) {
	case nil:
		return nil, false
	case string:
		if v == "" {
			return nil, false
		}
		return []interface{}{v}, true
	case []string:
		if len(v) == 0 {
			return nil, false
		}
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	}
	return []interface{}{v}, true
}

func anyOf(values []interface{}, fn func(interface{}) bool) bool {
	for _, v := range values {
		if fn(v) {
			return true
		}
	}
	return false
}

func inSet(x interface{}, set []string) bool {
	s, ok := x.(string)
	if !ok {
		return false
	}
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func equal(x, want interface{}) bool {
	c, ok := compare(x, want)
	return ok && c == 0
}

func compare(x, want interface{}) (int, bool) {
	switch x := x.(type) {
	case string:
		w, ok := want.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, w), true
	case float64:
		w, ok := want.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < w:
			return -1, true
		case x > w:
			return 1, true
		}
		return 0, true
	case time.Time:
		w, ok := want.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(w), true
	}
	return 0, false
}

func less(a, b *models.Mission, order []search.Sort) bool {
	for _, o := range order {
		get, ok := accessors[o.Field]
		if !ok {
			continue
		}
		va, pa := elements(get(a))
		vb, pb := elements(get(b))
		if !pa || !pb {
			if pa == pb {
				continue
			}
			// missing values sort lowest
			return pa == o.Desc
		}
		c, ok := compare(va[0], vb[0])
		if !ok || c == 0 {
			continue
		}
		if o.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

func intPtr(p *int) interface{} {
	if p == nil {
		return nil
	}
	return float64(*p)
}

func timePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

var accessors = map[search.Field]func(*models.Mission) interface{}{
	search.FieldID:                        func(m *models.Mission) interface{} { return m.ID },
	search.FieldPublisherID:               func(m *models.Mission) interface{} { return m.PublisherID },
	search.FieldPublisherName:             func(m *models.Mission) interface{} { return m.PublisherName },
	search.FieldClientID:                  func(m *models.Mission) interface{} { return m.ClientID },
	search.FieldTitle:                     func(m *models.Mission) interface{} { return m.Title },
	search.FieldDescription:               func(m *models.Mission) interface{} { return m.Description },
	search.FieldDomain:                    func(m *models.Mission) interface{} { return m.Domain },
	search.FieldActivity:                  func(m *models.Mission) interface{} { return m.Activity },
	search.FieldStatusCode:                func(m *models.Mission) interface{} { return m.StatusCode },
	search.FieldOrganizationID:            func(m *models.Mission) interface{} { return m.OrganizationID },
	search.FieldOrganizationName:          func(m *models.Mission) interface{} { return m.OrganizationName },
	search.FieldCity:                      func(m *models.Mission) interface{} { return m.City },
	search.FieldPostalCode:                func(m *models.Mission) interface{} { return m.PostalCode },
	search.FieldDepartmentCode:            func(m *models.Mission) interface{} { return m.DepartmentCode },
	search.FieldDepartmentName:            func(m *models.Mission) interface{} { return m.DepartmentName },
	search.FieldRegion:                    func(m *models.Mission) interface{} { return m.Region },
	search.FieldCountry:                   func(m *models.Mission) interface{} { return m.Country },
	search.FieldRemote:                    func(m *models.Mission) interface{} { return m.Remote },
	search.FieldSchedule:                  func(m *models.Mission) interface{} { return m.Schedule },
	search.FieldAudience:                  func(m *models.Mission) interface{} { return m.Audience },
	search.FieldTasks:                     func(m *models.Mission) interface{} { return m.Tasks },
	search.FieldTags:                      func(m *models.Mission) interface{} { return m.Tags },
	search.FieldOpenToMinors:              func(m *models.Mission) interface{} { return m.OpenToMinors },
	search.FieldReducedMobilityAccessible: func(m *models.Mission) interface{} { return m.ReducedMobilityAccessible },
	search.FieldCloseToTransport:          func(m *models.Mission) interface{} { return m.CloseToTransport },
	search.FieldDuration:                  func(m *models.Mission) interface{} { return intPtr(m.Duration) },
	search.FieldPlaces:                    func(m *models.Mission) interface{} { return intPtr(m.Places) },
	search.FieldStartAt:                   func(m *models.Mission) interface{} { return timePtr(m.StartAt) },
	search.FieldEndAt:                     func(m *models.Mission) interface{} { return timePtr(m.EndAt) },
	search.FieldCreatedAt:                 func(m *models.Mission) interface{} { return m.CreatedAt },
	search.FieldDeletedAt:                 func(m *models.Mission) interface{} { return timePtr(m.DeletedAt) },
}
