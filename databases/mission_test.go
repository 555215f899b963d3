package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/mission-search-api/config"
	"github.com/linesmerrill/mission-search-api/databases"
	"github.com/linesmerrill/mission-search-api/databases/mocks"
	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/search"
)

func TestNewMissionDatabase(t *testing.T) {
	t.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	t.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	missionDB := databases.NewMissionDatabase(db)

	assert.NotEmpty(t, missionDB)
}

func missionCollection(t *testing.T) (*mocks.DatabaseHelper, *mocks.CollectionHelper) {
	t.Helper()
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	dbHelper.On("Collection", "missions").Return(collectionHelper)
	return dbHelper, collectionHelper
}

func TestMissionDatabase_Find(t *testing.T) {
	dbHelper, collectionHelper := missionCollection(t)
	cursorHelper := &mocks.CursorHelper{}

	p := search.Leaf{Field: search.FieldDomain, Op: search.OpEq, Value: "sport"}
	collectionHelper.
		On("Find", context.Background(), bson.M{"domain": "sport"}, mock.Anything).
		Return(cursorHelper, nil)
	cursorHelper.
		On("All", context.Background(), mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.Mission)
		*arg = append(*arg, models.Mission{ID: "mocked-mission", Domain: "sport"})
	})
	cursorHelper.On("Close", context.Background()).Return(nil)

	missionDB := databases.NewMissionDatabase(dbHelper)
	missions, err := missionDB.Find(context.Background(), search.Query{
		Predicate: p,
		Sort:      []search.Sort{{Field: search.FieldStartAt, Desc: true}},
		Skip:      10,
		Limit:     5,
	})

	require.NoError(t, err)
	assert.Equal(t, []models.Mission{{ID: "mocked-mission", Domain: "sport"}}, missions)
	cursorHelper.AssertExpectations(t)
}

func TestMissionDatabase_FindError(t *testing.T) {
	dbHelper, collectionHelper := missionCollection(t)
	collectionHelper.
		On("Find", context.Background(), bson.M{}, mock.Anything).
		Return(nil, errors.New("mocked-error"))

	missions, err := databases.NewMissionDatabase(dbHelper).Find(context.Background(), search.Query{})

	assert.Empty(t, missions)
	assert.EqualError(t, err, "mocked-error")
}

func TestMissionDatabase_Count(t *testing.T) {
	dbHelper, collectionHelper := missionCollection(t)
	collectionHelper.
		On("CountDocuments", context.Background(), bson.M{"remote": "no"}).
		Return(int64(42), nil)

	n, err := databases.NewMissionDatabase(dbHelper).Count(context.Background(),
		search.Leaf{Field: search.FieldRemote, Op: search.OpEq, Value: "no"})

	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestMissionDatabase_GroupBy(t *testing.T) {
	dbHelper, collectionHelper := missionCollection(t)
	cursorHelper := &mocks.CursorHelper{}

	pipeline := bson.A{
		bson.M{"$match": bson.M{}},
		bson.M{"$group": bson.M{"_id": "$departmentName", "doc_count": bson.M{"$sum": 1}}},
	}
	collectionHelper.On("Aggregate", context.Background(), pipeline).Return(cursorHelper, nil)
	cursorHelper.On("All", context.Background(), mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		docs := args.Get(1).(*[]databases.BucketDoc)
		*docs = append(*docs, databases.BucketDoc{Key: "Paris", DocCount: 3}, databases.BucketDoc{Key: "", DocCount: 1})
	})
	cursorHelper.On("Close", context.Background()).Return(nil)

	buckets, err := databases.NewMissionDatabase(dbHelper).GroupBy(context.Background(), search.FieldDepartmentName, nil)

	require.NoError(t, err)
	assert.Equal(t, []models.Bucket{{Key: "Paris", DocCount: 3}, {Key: "", DocCount: 1}}, buckets)
}

func TestMissionDatabase_GroupByUnknownField(t *testing.T) {
	dbHelper, _ := missionCollection(t)
	_, err := databases.NewMissionDatabase(dbHelper).GroupBy(context.Background(), "nope", nil)
	assert.Error(t, err)
}

func TestMissionDatabase_AggregateArrayField(t *testing.T) {
	dbHelper, collectionHelper := missionCollection(t)
	cursorHelper := &mocks.CursorHelper{}

	pipeline := bson.A{
		bson.M{"$match": bson.M{"_id": bson.M{"$in": bson.A{"m1", "m2"}}}},
		bson.M{"$unwind": "$tasks"},
		bson.M{"$group": bson.M{"_id": "$tasks", "doc_count": bson.M{"$sum": 1}}},
	}
	collectionHelper.On("Aggregate", context.Background(), pipeline).Return(nil, errors.New("mocked-error"))

	buckets, err := databases.NewMissionDatabase(dbHelper).AggregateArrayField(context.Background(), []string{"m1", "m2"}, search.FieldTasks)

	assert.Nil(t, buckets)
	assert.EqualError(t, err, "mocked-error")
	cursorHelper.AssertNotCalled(t, "All", mock.Anything, mock.Anything)
}
