package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/mission-search-api/config"
	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/postgres"
)

// Loads organizations, widgets and missions from a JSON file into postgres
// Usage: POSTGRES_URL=postgres://... go run scripts/seed.go <fixtures.json>
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run scripts/seed.go <fixtures.json>")
		fmt.Println("Example: POSTGRES_URL=postgres://localhost:5432/missions go run scripts/seed.go testdata/missions.json")
		os.Exit(1)
	}

	conf := config.New()
	if conf.PostgresUrl == "" {
		zap.S().Fatal("POSTGRES_URL is not set")
	}

	file, err := os.Open(os.Args[1])
	if err != nil {
		zap.S().Fatalw("failed to open fixtures", "error", err)
	}
	defer file.Close()

	f, err := decodeFixtures(file)
	if err != nil {
		zap.S().Fatalw("failed to decode fixtures", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := postgres.NewDatabase(ctx, &postgres.DatabaseConfig{
		ConnectionString: conf.PostgresUrl,
		MaxConnections:   conf.PostgresMaxConns,
	})
	if err != nil {
		zap.S().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.MigrateToLatest(); err != nil {
		zap.S().Fatalw("failed to migrate database", "error", err)
	}

	if err := seed(ctx, postgres.NewWriter(db.Pool()), f); err != nil {
		zap.S().Fatalw("failed to seed database", "error", err)
	}
	zap.S().Infow("database seeded",
		"organizations", len(f.Organizations),
		"widgets", len(f.Widgets),
		"missions", len(f.Missions))
}

type fixtures struct {
	Organizations []models.Organization `json:"organizations"`
	Widgets       []models.Widget       `json:"widgets"`
	Missions      []models.Mission      `json:"missions"`
}

type saver interface {
	SaveOrganization(ctx context.Context, o models.Organization) error
	SaveWidget(ctx context.Context, w models.Widget) error
	SaveMission(ctx context.Context, m models.Mission) error
}

func decodeFixtures(r io.Reader) (fixtures, error) {
	var f fixtures
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return fixtures{}, err
	}
	for i, m := range f.Missions {
		if m.ID == "" {
			return fixtures{}, fmt.Errorf("mission %d has no _id", i)
		}
	}
	for i, w := range f.Widgets {
		if w.ID == "" {
			return fixtures{}, fmt.Errorf("widget %d has no _id", i)
		}
	}
	return f, nil
}

// seed writes organizations first so mission rows can reference them
func seed(ctx context.Context, s saver, f fixtures) error {
	for _, o := range f.Organizations {
		if err := s.SaveOrganization(ctx, o); err != nil {
			return err
		}
	}
	for _, w := range f.Widgets {
		if err := s.SaveWidget(ctx, w); err != nil {
			return err
		}
	}
	for _, m := range f.Missions {
		if err := s.SaveMission(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
