package databases

import (
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/mission-search-api/search"
)

const earthRadiusKm = 6371.0

// fieldPaths maps every search field to its path in the missions collection
var fieldPaths = map[search.Field]string{
	search.FieldID:                        "_id",
	search.FieldPublisherID:               "publisherId",
	search.FieldPublisherName:             "publisherName",
	search.FieldClientID:                  "clientId",
	search.FieldTitle:                     "title",
	search.FieldDescription:               "description",
	search.FieldDomain:                    "domain",
	search.FieldActivity:                  "activity",
	search.FieldStatusCode:                "statusCode",
	search.FieldOrganizationID:            "organizationId",
	search.FieldOrganizationName:          "organizationName",
	search.FieldCity:                      "city",
	search.FieldPostalCode:                "postalCode",
	search.FieldDepartmentCode:            "departmentCode",
	search.FieldDepartmentName:            "departmentName",
	search.FieldRegion:                    "region",
	search.FieldCountry:                   "country",
	search.FieldRemote:                    "remote",
	search.FieldSchedule:                  "schedule",
	search.FieldAudience:                  "audience",
	search.FieldTasks:                     "tasks",
	search.FieldTags:                      "tags",
	search.FieldOpenToMinors:              "openToMinors",
	search.FieldReducedMobilityAccessible: "reducedMobilityAccessible",
	search.FieldCloseToTransport:          "closeToTransport",
	search.FieldDuration:                  "duration",
	search.FieldPlaces:                    "places",
	search.FieldStartAt:                   "startAt",
	search.FieldEndAt:                     "endAt",
	search.FieldCreatedAt:                 "createdAt",
	search.FieldDeletedAt:                 "deletedAt",
}

// matchNone is a filter no document satisfies
var matchNone = bson.M{"_id": bson.M{"$exists": false}}

// CompileFilter turns a search predicate into a mongo query filter. A nil
// predicate matches every document.
func CompileFilter(p search.Predicate) bson.M {
	switch p := p.(type) {
	case nil:
		return bson.M{}
	case search.MatchNone:
		return matchNone
	case search.And:
		return bson.M{"$and": compileTerms(p.Terms)}
	case search.Or:
		return bson.M{"$or": compileTerms(p.Terms)}
	case search.Moderated:
		return bson.M{"moderations": bson.M{"$elemMatch": bson.M{
			"publisherId": p.PublisherID,
			"status":      p.Status,
		}}}
	case search.GeoBox:
		return bson.M{"addresses": bson.M{"$elemMatch": bson.M{
			"location.lat": bson.M{"$gte": p.Box.LatMin, "$lte": p.Box.LatMax},
			"location.lon": bson.M{"$gte": p.Box.LonMin, "$lte": p.Box.LonMax},
		}}}
	case search.GeoWithin:
		return geoWithin(p)
	case search.Leaf:
		return compileLeaf(p)
	}
	return matchNone
}

func compileTerms(terms []search.Predicate) bson.A {
	out := make(bson.A, 0, len(terms))
	for _, t := range terms {
		out = append(out, CompileFilter(t))
	}
	return out
}

// missing lists what the search treats as an absent value
var missing = bson.A{nil, "", bson.A{}}

func compileLeaf(l search.Leaf) bson.M {
	path, ok := fieldPaths[l.Field]
	if !ok {
		return matchNone
	}

	switch l.Op {
	case search.OpEq:
		return bson.M{path: l.Value}
	case search.OpNe:
		return bson.M{path: bson.M{"$ne": l.Value}}
	case search.OpIn:
		return bson.M{path: bson.M{"$in": l.Value}}
	case search.OpNotIn:
		return bson.M{path: bson.M{"$nin": l.Value}}
	case search.OpMatch:
		return bson.M{path: bson.M{"$regex": string(pattern(l.Value)), "$options": "i"}}
	case search.OpNotMatch:
		return bson.M{path: bson.M{"$not": primitive.Regex{Pattern: string(pattern(l.Value)), Options: "i"}}}
	case search.OpGt:
		return bson.M{path: bson.M{"$gt": l.Value}}
	case search.OpGte:
		return bson.M{path: bson.M{"$gte": l.Value}}
	case search.OpLt:
		return bson.M{path: bson.M{"$lt": l.Value}}
	case search.OpLte:
		return bson.M{path: bson.M{"$lte": l.Value}}
	case search.OpExists:
		return bson.M{path: bson.M{"$exists": true, "$nin": missing}}
	case search.OpNotExists:
		return bson.M{path: bson.M{"$in": missing}}
	}
	return matchNone
}

func pattern(v interface{}) search.Pattern {
	switch v := v.(type) {
	case search.Pattern:
		return v
	case string:
		return search.Pattern(v)
	}
	return ""
}

// geoWithin measures the great-circle distance to each address location,
// the same lat/lon pair the bounding box reads. Addresses without numeric
// coordinates never match.
func geoWithin(p search.GeoWithin) bson.M {
	lat := bson.M{"$degreesToRadians": "$$a.location.lat"}
	dLat := bson.M{"$degreesToRadians": bson.M{"$subtract": bson.A{"$$a.location.lat", p.Lat}}}
	dLon := bson.M{"$degreesToRadians": bson.M{"$subtract": bson.A{"$$a.location.lon", p.Lon}}}
	half := func(d bson.M) bson.M {
		return bson.M{"$pow": bson.A{bson.M{"$sin": bson.M{"$divide": bson.A{d, 2}}}, 2}}
	}
	h := bson.M{"$add": bson.A{
		half(dLat),
		bson.M{"$multiply": bson.A{math.Cos(p.Lat * math.Pi / 180), bson.M{"$cos": lat}, half(dLon)}},
	}}
	distance := bson.M{"$multiply": bson.A{
		2 * earthRadiusKm,
		bson.M{"$asin": bson.M{"$sqrt": bson.M{"$min": bson.A{1, h}}}},
	}}

	return bson.M{"$expr": bson.M{"$anyElementTrue": bson.A{bson.M{"$map": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$addresses", bson.A{}}},
		"as":    "a",
		"in": bson.M{"$and": bson.A{
			bson.M{"$isNumber": "$$a.location.lat"},
			bson.M{"$isNumber": "$$a.location.lon"},
			bson.M{"$lte": bson.A{distance, p.RadiusKm}},
		}},
	}}}}}
}
