package search

// Op is a leaf comparison operator understood by every storage adapter
type Op string

// Leaf operators
const (
	OpEq        Op = "eq"
	OpNe        Op = "ne"
	OpIn        Op = "in"
	OpNotIn     Op = "nin"
	OpMatch     Op = "match"    // case-insensitive regular expression, Value is a Pattern
	OpNotMatch  Op = "notMatch" // negated OpMatch
	OpGt        Op = "gt"
	OpGte       Op = "gte"
	OpLt        Op = "lt"
	OpLte       Op = "lte"
	OpExists    Op = "exists"
	OpNotExists Op = "notExists" // missing or null
)

// Predicate is a node of the backend-neutral filter tree. A nil Predicate
// matches every mission.
type Predicate interface {
	predicate()
}

// Leaf compares one field against a value. Value is a string, []string,
// float64, time.Time or Pattern depending on Op and the field kind.
type Leaf struct {
	Field Field
	Op    Op
	Value interface{}
}

// And matches when every term matches
type And struct {
	Terms []Predicate
}

// Or matches when at least one term matches
type Or struct {
	Terms []Predicate
}

// MatchNone never matches
type MatchNone struct{}

// Moderated matches missions carrying a moderation row from PublisherID with
// the given Status
type Moderated struct {
	PublisherID string
	Status      string
}

// GeoBox matches missions with at least one address inside the box
type GeoBox struct {
	Box BoundingBox
}

// GeoWithin matches missions with at least one address within RadiusKm of
// the center, measured on the sphere
type GeoWithin struct {
	Lat      float64
	Lon      float64
	RadiusKm float64
}

// Pattern is a regular expression restricted to the syntax shared by Go,
// MongoDB and PostgreSQL: literals escaped with a backslash, bracket classes
// and a leading caret.
type Pattern string

func (Leaf) predicate()      {}
func (And) predicate()       {}
func (Or) predicate()        {}
func (MatchNone) predicate() {}
func (Moderated) predicate() {}
func (GeoBox) predicate()    {}
func (GeoWithin) predicate() {}

// AllOf conjoins the non-nil terms. It returns nil when nothing constrains
// and the single term unwrapped when only one is left.
func AllOf(terms ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(terms))
	for _, t := range terms {
		if t == nil {
			continue
		}
		if _, none := t.(MatchNone); none {
			return MatchNone{}
		}
		kept = append(kept, t)
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Terms: kept}
}

// AnyOf disjoins the terms. A nil term matches everything so it makes the
// whole disjunction unconstrained; an empty list matches nothing.
func AnyOf(terms ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(terms))
	for _, t := range terms {
		if t == nil {
			return nil
		}
		if _, none := t.(MatchNone); none {
			continue
		}
		kept = append(kept, t)
	}
	switch len(kept) {
	case 0:
		return MatchNone{}
	case 1:
		return kept[0]
	}
	return Or{Terms: kept}
}

// Builder accumulates conjoined terms. It is a value type: every call returns
// a new Builder and leaves the receiver untouched, so a partially built
// predicate can be shared between the hit query and each facet query.
type Builder struct {
	terms []Predicate
}

// And returns a builder with the non-nil terms appended
func (b Builder) And(terms ...Predicate) Builder {
	next := make([]Predicate, len(b.terms), len(b.terms)+len(terms))
	copy(next, b.terms)
	for _, t := range terms {
		if t != nil {
			next = append(next, t)
		}
	}
	return Builder{terms: next}
}

// Build synthesizes the conjunction, nil when no term was added
func (b Builder) Build() Predicate {
	return AllOf(b.terms...)
}

// Len is the number of accumulated terms
func (b Builder) Len() int {
	return len(b.terms)
}
