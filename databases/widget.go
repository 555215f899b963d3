package databases

// go generate: mockery --name WidgetDatabase

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/search"
)

const widgetName = "widgets"

// WidgetDatabase contains the methods to use with the widget database
type WidgetDatabase interface {
	FindWidget(ctx context.Context, id string) (*models.Widget, error)
	ActiveWidgets(ctx context.Context) ([]models.Widget, error)
}

type widgetDatabase struct {
	db DatabaseHelper
}

// NewWidgetDatabase initializes a new instance of widget database with the provided db connection
func NewWidgetDatabase(db DatabaseHelper) WidgetDatabase {
	return &widgetDatabase{
		db: db,
	}
}

func (c *widgetDatabase) FindWidget(ctx context.Context, id string) (*models.Widget, error) {
	widget := &models.Widget{}
	err := c.db.Collection(widgetName).FindOne(ctx, bson.M{"_id": bson.M{"$in": idValues([]string{id})}}).Decode(&widget)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", search.ErrWidgetNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return widget, nil
}

func (c *widgetDatabase) ActiveWidgets(ctx context.Context) ([]models.Widget, error) {
	curr, err := c.db.Collection(widgetName).Find(ctx, bson.M{"active": true, "deletedAt": nil})
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	widgets := []models.Widget{}
	if err := curr.All(ctx, &widgets); err != nil {
		return nil, err
	}
	return widgets, nil
}
