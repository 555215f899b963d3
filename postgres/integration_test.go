package postgres

import (
	"context"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/search"
	"github.com/linesmerrill/mission-search-api/search/memstore"
)

// setupTestContainer starts PostgreSQL and returns a migrated database
func setupTestContainer(t *testing.T, ctx context.Context) *Database {
	t.Helper()
	if os.Getenv("POSTGRES_INTEGRATION") != "1" {
		t.Skip("set POSTGRES_INTEGRATION=1 to run against a PostgreSQL container")
	}

	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("missions_test"),
		tcpostgres.WithUsername("test_user"),
		tcpostgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := NewDatabase(ctx, &DatabaseConfig{ConnectionString: connStr, MaxConnections: 5})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.MigrateToLatest())
	require.NoError(t, db.MigrateToLatest(), "migrating twice is a no-op")
	return db
}

func day(d int) *time.Time {
	t := time.Date(2024, 6, d, 9, 0, 0, 0, time.UTC)
	return &t
}

func intp(v int) *int { return &v }

func fixtures() ([]models.Mission, []models.Widget, []models.Organization) {
	const moderator = search.DefaultModeratorPublisherID
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	paris := &models.GeoPoint{Lat: 48.8566, Lon: 2.3522}
	lyon := &models.GeoPoint{Lat: 45.7640, Lon: 4.8357}

	missions := []models.Mission{
		{ID: "m1", PublisherID: moderator, StatusCode: "ACCEPTED", Title: "Fête du quartier", Domain: "culture-loisirs",
			OrganizationID: "o1", OrganizationName: "Mairie", Country: "FR", Remote: "no", DepartmentName: "Paris",
			Tasks: []string{"Animer", "Accueillir"}, Audience: []string{"Jeunes"}, Duration: intp(3),
			ReducedMobilityAccessible: "yes", StartAt: day(3), CreatedAt: created,
			Addresses: []models.Address{{City: "Paris", Location: paris}}},
		{ID: "m2", PublisherID: "pubB", StatusCode: "ACCEPTED", Title: "Entraîneur de foot", Domain: "sport",
			OrganizationID: "o2", OrganizationName: "Club", Country: "BE", Remote: "full",
			Tasks: []string{"Animer"}, Duration: intp(10), CloseToTransport: "yes", StartAt: day(5), CreatedAt: created,
			Moderations: []models.ModerationStatus{{PublisherID: moderator, Status: "ACCEPTED", Title: "Coach sportif"}}},
		{ID: "m3", PublisherID: "pubB", StatusCode: "ACCEPTED", Title: "Jardin partagé", Domain: "environnement",
			OrganizationID: "o2", OrganizationName: "Club", Remote: "no", CreatedAt: created,
			Moderations: []models.ModerationStatus{{PublisherID: moderator, Status: "REFUSED"}},
			Addresses:   []models.Address{{City: "Lyon", Location: lyon}}},
		{ID: "m4", PublisherID: "pubC", StatusCode: "ACCEPTED", Title: "Collecte", Domain: "solidarite-insertion",
			OrganizationID: "o3", Country: "FR", Remote: "possible", StartAt: day(1), CreatedAt: created,
			Addresses: []models.Address{{City: "Lyon", Location: lyon}}},
		{ID: "m5", PublisherID: "pubC", StatusCode: "REFUSED", Title: "Refusée", Domain: "sport", CreatedAt: created},
		{ID: "m6", PublisherID: "pubC", StatusCode: "ACCEPTED", Title: "Supprimée", Domain: "sport", CreatedAt: created,
			DeletedAt: day(20)},
	}
	widgets := []models.Widget{
		{ID: "open", Publishers: []string{moderator, "pubB", "pubC"}, Active: true},
		{ID: "moderated", Publishers: []string{moderator, "pubB", "pubC"}, JvaModeration: true, Active: true},
		{ID: "ruled", Publishers: []string{"pubB", "pubC"}, Active: true, Rules: []models.Rule{
			{Field: "domain", Operator: "is", Value: "sport", Combinator: "or"},
			{Field: "title", Operator: "contains", Value: "collecte", Combinator: "or"},
		}},
		{ID: "lyon", Publishers: []string{"pubB", "pubC"}, Active: true,
			Location: &models.Location{Lat: lyon.Lat, Lon: lyon.Lon, Label: "Lyon"}, Distance: "10km"},
	}
	orgs := []models.Organization{{ID: "o1", Name: "Mairie de Paris"}, {ID: "o2", Name: "Club de foot"}}
	return missions, widgets, orgs
}

func TestIntegration_MatchesInMemoryEngine(t *testing.T) {
	ctx := context.Background()
	db := setupTestContainer(t, ctx)

	missions, widgets, orgs := fixtures()
	writer := NewWriter(db.Pool())
	mem := memstore.New()
	for _, o := range orgs {
		require.NoError(t, writer.SaveOrganization(ctx, o))
		mem.AddOrganization(o.ID, o.Name)
	}
	for _, w := range widgets {
		require.NoError(t, writer.SaveWidget(ctx, w))
		mem.AddWidget(w)
	}
	for _, m := range missions {
		require.NoError(t, writer.SaveMission(ctx, m))
		require.NoError(t, writer.SaveMission(ctx, m), "saving twice replaces the row")
	}
	mem.AddMissions(missions...)

	widgetRepo := NewWidgetRepository(db.Pool())
	pg, err := search.NewEngine(NewMissionRepository(db.Pool()), widgetRepo, widgetRepo, search.Options{FacetConcurrency: 3})
	require.NoError(t, err)
	ref, err := search.NewEngine(mem, mem, mem, search.Options{})
	require.NoError(t, err)

	paris := func(f search.SearchFilters) search.SearchFilters {
		lat, lon := 48.85, 2.35
		f.Lat, f.Lon = &lat, &lon
		return f
	}
	filters := map[string]search.SearchFilters{
		"defaults": search.DefaultFilters(),
		"domain":   func() search.SearchFilters { f := search.DefaultFilters(); f.Domains = []string{"sport"}; return f }(),
		"keywords": func() search.SearchFilters { f := search.DefaultFilters(); f.Keywords = "fete"; return f }(),
		"abroad": func() search.SearchFilters {
			f := search.DefaultFilters()
			f.Country = []string{search.CountryNotFrance}
			return f
		}(),
		"near paris": paris(search.DefaultFilters()),
		"deleted since": func() search.SearchFilters {
			f := search.DefaultFilters()
			f.DeletedSince = day(10)
			return f
		}(),
		"duration": func() search.SearchFilters { f := search.DefaultFilters(); f.DurationMax = intp(5); return f }(),
	}

	for _, w := range widgets {
		for name, f := range filters {
			t.Run(w.ID+"/"+name, func(t *testing.T) {
				want, err := ref.Search(ctx, w.ID, f, search.AllDimensions)
				require.NoError(t, err)
				got, err := pg.Search(ctx, w.ID, f, search.AllDimensions)
				require.NoError(t, err)

				assert.Equal(t, want.Total, got.Total)
				assert.Equal(t, hitIDs(want), hitIDs(got))
				assert.Equal(t, want.Aggs, got.Aggs)
				assert.Equal(t, titles(want), titles(got))
			})
		}
	}
}

func TestIntegration_WidgetLookup(t *testing.T) {
	ctx := context.Background()
	db := setupTestContainer(t, ctx)
	_, widgets, _ := fixtures()
	writer := NewWriter(db.Pool())
	for _, w := range widgets {
		require.NoError(t, writer.SaveWidget(ctx, w))
	}
	repo := NewWidgetRepository(db.Pool())

	got, err := repo.FindWidget(ctx, "ruled")
	require.NoError(t, err)
	assert.Equal(t, widgets[2].Rules, got.Rules)
	assert.Equal(t, widgets[2].Publishers, got.Publishers)

	got, err = repo.FindWidget(ctx, "lyon")
	require.NoError(t, err)
	assert.Equal(t, "Lyon", got.Location.Label)

	_, err = repo.FindWidget(ctx, "missing")
	assert.ErrorIs(t, err, search.ErrWidgetNotFound)

	active, err := repo.ActiveWidgets(ctx)
	require.NoError(t, err)
	assert.Len(t, active, len(widgets))
}

func hitIDs(r *models.SearchResponse) []string {
	ids := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		ids = append(ids, h.ID)
	}
	sort.Strings(ids)
	return ids
}

func titles(r *models.SearchResponse) map[string]string {
	out := make(map[string]string, len(r.Hits))
	for _, h := range r.Hits {
		out[h.ID] = h.Title
	}
	return out
}
