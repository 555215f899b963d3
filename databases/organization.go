package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/mission-search-api/models"
)

const organizationName = "organizations"

// OrganizationDatabase resolves organization display names
type OrganizationDatabase interface {
	OrganizationNames(ctx context.Context, ids []string) (map[string]string, error)
}

type organizationDatabase struct {
	db DatabaseHelper
}

// NewOrganizationDatabase initializes a new instance of organization database with the provided db connection
func NewOrganizationDatabase(db DatabaseHelper) OrganizationDatabase {
	return &organizationDatabase{
		db: db,
	}
}

func (c *organizationDatabase) OrganizationNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1, "name": 1})
	curr, err := c.db.Collection(organizationName).Find(ctx, bson.M{"_id": bson.M{"$in": idValues(ids)}}, opts)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	var orgs []models.Organization
	if err := curr.All(ctx, &orgs); err != nil {
		return nil, err
	}
	for _, o := range orgs {
		names[o.ID] = o.Name
	}
	return names, nil
}
