package postgres

import (
	"fmt"
	"strings"

	"github.com/linesmerrill/mission-search-api/search"
)

// columns maps every search field to its column on the missions table,
// aliased m
var columns = map[search.Field]string{
	search.FieldID:                        "m.id",
	search.FieldPublisherID:               "m.publisher_id",
	search.FieldPublisherName:             "m.publisher_name",
	search.FieldClientID:                  "m.client_id",
	search.FieldTitle:                     "m.title",
	search.FieldDescription:               "m.description",
	search.FieldDomain:                    "m.domain",
	search.FieldActivity:                  "m.activity",
	search.FieldStatusCode:                "m.status_code",
	search.FieldOrganizationID:            "m.organization_id",
	search.FieldOrganizationName:          "m.organization_name",
	search.FieldCity:                      "m.city",
	search.FieldPostalCode:                "m.postal_code",
	search.FieldDepartmentCode:            "m.department_code",
	search.FieldDepartmentName:            "m.department_name",
	search.FieldRegion:                    "m.region",
	search.FieldCountry:                   "m.country",
	search.FieldRemote:                    "m.remote",
	search.FieldSchedule:                  "m.schedule",
	search.FieldAudience:                  "m.audience",
	search.FieldTasks:                     "m.tasks",
	search.FieldTags:                      "m.tags",
	search.FieldOpenToMinors:              "m.open_to_minors",
	search.FieldReducedMobilityAccessible: "m.reduced_mobility_accessible",
	search.FieldCloseToTransport:          "m.close_to_transport",
	search.FieldDuration:                  "m.duration",
	search.FieldPlaces:                    "m.places",
	search.FieldStartAt:                   "m.start_at",
	search.FieldEndAt:                     "m.end_at",
	search.FieldCreatedAt:                 "m.created_at",
	search.FieldDeletedAt:                 "m.deleted_at",
}

// haversine is the great-circle distance in km between an address and the
// point ($lat, $lon)
const haversine = `2 * 6371 * asin(least(1, sqrt(
	power(sin(radians(a.lat - %[1]s) / 2), 2) +
	cos(radians(%[1]s)) * cos(radians(a.lat)) * power(sin(radians(a.lon - %[2]s) / 2), 2))))`

// Where is a compiled predicate: a boolean SQL expression over the missions
// table aliased m and its positional arguments
type Where struct {
	SQL  string
	Args []any
}

type whereBuilder struct {
	args []any
}

// CompileWhere turns a search predicate into a SQL condition. Placeholders
// are numbered from offset+1 so the caller can prepend its own arguments.
func CompileWhere(p search.Predicate, offset int) Where {
	b := &whereBuilder{args: make([]any, offset)}
	expr := b.compile(p)
	return Where{SQL: expr, Args: b.args[offset:]}
}

func (b *whereBuilder) arg(v any, cast string) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d::%s", len(b.args), cast)
}

func (b *whereBuilder) compile(p search.Predicate) string {
	switch p := p.(type) {
	case nil:
		return "TRUE"
	case search.MatchNone:
		return "FALSE"
	case search.And:
		return b.join(p.Terms, " AND ", "TRUE")
	case search.Or:
		return b.join(p.Terms, " OR ", "FALSE")
	case search.Moderated:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM mission_moderation_status s WHERE s.mission_id = m.id AND s.publisher_id = %s AND s.status = %s)",
			b.arg(p.PublisherID, "text"), b.arg(p.Status, "text"))
	case search.GeoBox:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM mission_address a WHERE a.mission_id = m.id AND a.lat BETWEEN %s AND %s AND a.lon BETWEEN %s AND %s)",
			b.arg(p.Box.LatMin, "float8"), b.arg(p.Box.LatMax, "float8"),
			b.arg(p.Box.LonMin, "float8"), b.arg(p.Box.LonMax, "float8"))
	case search.GeoWithin:
		lat, lon := b.arg(p.Lat, "float8"), b.arg(p.Lon, "float8")
		return fmt.Sprintf("EXISTS (SELECT 1 FROM mission_address a WHERE a.mission_id = m.id AND a.lat IS NOT NULL AND "+haversine+" <= %[3]s)",
			lat, lon, b.arg(p.RadiusKm, "float8"))
	case search.Leaf:
		return b.leaf(p)
	}
	return "FALSE"
}

func (b *whereBuilder) join(terms []search.Predicate, sep, empty string) string {
	if len(terms) == 0 {
		return empty
	}
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		parts = append(parts, b.compile(t))
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func castFor(k search.Kind) string {
	switch k {
	case search.KindNumber:
		return "float8"
	case search.KindDate:
		return "timestamptz"
	}
	return "text"
}

// leaf compiles one comparison. Negations also match rows where the column is
// missing, the same way the document store treats absent fields.
func (b *whereBuilder) leaf(l search.Leaf) string {
	col, ok := columns[l.Field]
	if !ok {
		return "FALSE"
	}
	kind, _ := search.KindOf(l.Field)
	if kind == search.KindArray {
		return b.arrayLeaf(col, l)
	}
	cast := castFor(kind)

	switch l.Op {
	case search.OpEq:
		return fmt.Sprintf("%s = %s", col, b.arg(l.Value, cast))
	case search.OpNe:
		return fmt.Sprintf("(%s IS NULL OR %s <> %s)", col, col, b.arg(l.Value, cast))
	case search.OpIn:
		return fmt.Sprintf("%s = ANY(%s)", col, b.arg(l.Value, "text[]"))
	case search.OpNotIn:
		return fmt.Sprintf("(%s IS NULL OR NOT (%s = ANY(%s)))", col, col, b.arg(l.Value, "text[]"))
	case search.OpMatch:
		return fmt.Sprintf("%s ~* %s", col, b.arg(patternString(l.Value), "text"))
	case search.OpNotMatch:
		return fmt.Sprintf("(%s IS NULL OR %s !~* %s)", col, col, b.arg(patternString(l.Value), "text"))
	case search.OpGt, search.OpGte, search.OpLt, search.OpLte:
		return fmt.Sprintf("%s %s %s", col, comparators[l.Op], b.arg(l.Value, cast))
	case search.OpExists:
		if cast == "text" {
			return fmt.Sprintf("(%s IS NOT NULL AND %s <> '')", col, col)
		}
		return col + " IS NOT NULL"
	case search.OpNotExists:
		if cast == "text" {
			return fmt.Sprintf("(%s IS NULL OR %s = '')", col, col)
		}
		return col + " IS NULL"
	}
	return "FALSE"
}

var comparators = map[search.Op]string{
	search.OpGt:  ">",
	search.OpGte: ">=",
	search.OpLt:  "<",
	search.OpLte: "<=",
}

// arrayLeaf matches when any element satisfies the comparison
func (b *whereBuilder) arrayLeaf(col string, l search.Leaf) string {
	switch l.Op {
	case search.OpEq:
		return fmt.Sprintf("%s = ANY(%s)", b.arg(l.Value, "text"), col)
	case search.OpNe:
		return fmt.Sprintf("(%s IS NULL OR NOT (%s = ANY(%s)))", col, b.arg(l.Value, "text"), col)
	case search.OpIn:
		return fmt.Sprintf("%s && %s", col, b.arg(l.Value, "text[]"))
	case search.OpNotIn:
		return fmt.Sprintf("(%s IS NULL OR NOT (%s && %s))", col, col, b.arg(l.Value, "text[]"))
	case search.OpMatch:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(%s) v WHERE v ~* %s)", col, b.arg(patternString(l.Value), "text"))
	case search.OpNotMatch:
		return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM unnest(%s) v WHERE v ~* %s)", col, b.arg(patternString(l.Value), "text"))
	case search.OpGt, search.OpGte, search.OpLt, search.OpLte:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(%s) v WHERE v %s %s)", col, comparators[l.Op], b.arg(l.Value, "text"))
	case search.OpExists:
		return fmt.Sprintf("coalesce(cardinality(%s), 0) > 0", col)
	case search.OpNotExists:
		return fmt.Sprintf("coalesce(cardinality(%s), 0) = 0", col)
	}
	return "FALSE"
}

func patternString(v any) string {
	switch v := v.(type) {
	case search.Pattern:
		return string(v)
	case string:
		return v
	}
	return ""
}
