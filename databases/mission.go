package databases

// go generate: mockery --name MissionDatabase

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/search"
)

const missionName = "missions"

// MissionDatabase contains the methods to use with the mission database
type MissionDatabase interface {
	Find(ctx context.Context, q search.Query) ([]models.Mission, error)
	Count(ctx context.Context, p search.Predicate) (int64, error)
	GroupBy(ctx context.Context, field search.Field, p search.Predicate) ([]models.Bucket, error)
	FindIDs(ctx context.Context, p search.Predicate, limit int) ([]string, error)
	AggregateArrayField(ctx context.Context, missionIDs []string, field search.Field) ([]models.Bucket, error)
	Supports(field search.Field) bool
}

type missionDatabase struct {
	db DatabaseHelper
}

// NewMissionDatabase initializes a new instance of mission database with the provided db connection
func NewMissionDatabase(db DatabaseHelper) MissionDatabase {
	return &missionDatabase{
		db: db,
	}
}

// bucketDoc is the shape of a $group stage output
type bucketDoc struct {
	Key      string `bson:"_id"`
	DocCount int64  `bson:"doc_count"`
}

func (c *missionDatabase) Find(ctx context.Context, q search.Query) ([]models.Mission, error) {
	opts := newMongoPaginate(q.Skip, q.Limit).getPaginatedOpts()
	if len(q.Sort) > 0 {
		opts.SetSort(sortDoc(q.Sort))
	}
	curr, err := c.db.Collection(missionName).Find(ctx, CompileFilter(q.Predicate), opts)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	missions := []models.Mission{}
	if err := curr.All(ctx, &missions); err != nil {
		return nil, err
	}
	return missions, nil
}

func (c *missionDatabase) Count(ctx context.Context, p search.Predicate) (int64, error) {
	return c.db.Collection(missionName).CountDocuments(ctx, CompileFilter(p))
}

func (c *missionDatabase) GroupBy(ctx context.Context, field search.Field, p search.Predicate) ([]models.Bucket, error) {
	path, ok := fieldPaths[field]
	if !ok {
		return nil, fmt.Errorf("unmapped field %q", field)
	}
	pipeline := bson.A{
		bson.M{"$match": CompileFilter(p)},
		bson.M{"$group": bson.M{"_id": "$" + path, "doc_count": bson.M{"$sum": 1}}},
	}
	return c.aggregateBuckets(ctx, pipeline)
}

func (c *missionDatabase) FindIDs(ctx context.Context, p search.Predicate, limit int) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	curr, err := c.db.Collection(missionName).Find(ctx, CompileFilter(p), opts)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := curr.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (c *missionDatabase) AggregateArrayField(ctx context.Context, missionIDs []string, field search.Field) ([]models.Bucket, error) {
	path, ok := fieldPaths[field]
	if !ok {
		return nil, fmt.Errorf("unmapped field %q", field)
	}
	pipeline := bson.A{
		bson.M{"$match": bson.M{"_id": bson.M{"$in": idValues(missionIDs)}}},
		bson.M{"$unwind": "$" + path},
		bson.M{"$group": bson.M{"_id": "$" + path, "doc_count": bson.M{"$sum": 1}}},
	}
	return c.aggregateBuckets(ctx, pipeline)
}

func (c *missionDatabase) Supports(field search.Field) bool {
	_, ok := fieldPaths[field]
	return ok
}

func (c *missionDatabase) aggregateBuckets(ctx context.Context, pipeline bson.A) ([]models.Bucket, error) {
	curr, err := c.db.Collection(missionName).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	var docs []bucketDoc
	if err := curr.All(ctx, &docs); err != nil {
		return nil, err
	}
	buckets := make([]models.Bucket, 0, len(docs))
	for _, d := range docs {
		buckets = append(buckets, models.Bucket{Key: d.Key, DocCount: d.DocCount})
	}
	return buckets, nil
}
