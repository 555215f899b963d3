package databases

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/mission-search-api/search"
)

type mongoPaginate struct {
	limit int64
	skip  int64
}

func newMongoPaginate(skip, limit int) *mongoPaginate {
	return &mongoPaginate{
		limit: int64(limit),
		skip:  int64(skip),
	}
}

// getPaginatedOpts leaves the limit unset when it is zero, mongo reads a
// zero limit as no limit anyway
func (mp *mongoPaginate) getPaginatedOpts() *options.FindOptions {
	fOpt := options.Find().SetSkip(mp.skip)
	if mp.limit > 0 {
		fOpt.SetLimit(mp.limit)
	}
	return fOpt
}

func sortDoc(order []search.Sort) bson.D {
	d := make(bson.D, 0, len(order))
	for _, s := range order {
		dir := 1
		if s.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: fieldPaths[s.Field], Value: dir})
	}
	return d
}

// idValues matches documents whose _id was stored either as an ObjectID or as
// its hex string
func idValues(ids []string) bson.A {
	out := make(bson.A, 0, len(ids)*2)
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
		out = append(out, id)
	}
	return out
}
