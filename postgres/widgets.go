package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/search"
)

const widgetColumns = `id, name, from_publisher_id, publishers, rules, jva_moderation,
	location_lat, location_lon, coalesce(location_label, ''), distance, active, style, color,
	deleted_at, created_at, updated_at`

// WidgetRepository reads widgets and organizations
type WidgetRepository struct {
	db Querier
}

// NewWidgetRepository returns a repository reading through db
func NewWidgetRepository(db Querier) *WidgetRepository {
	return &WidgetRepository{db: db}
}

func scanWidget(row pgx.CollectableRow) (models.Widget, error) {
	var (
		w        models.Widget
		lat, lon *float64
		label    string
	)
	err := row.Scan(&w.ID, &w.Name, &w.FromPublisher, &w.Publishers, &w.Rules, &w.JvaModeration,
		&lat, &lon, &label, &w.Distance, &w.Active, &w.Style, &w.Color,
		&w.DeletedAt, &w.CreatedAt, &w.UpdatedAt)
	if lat != nil && lon != nil {
		w.Location = &models.Location{Lat: *lat, Lon: *lon, Label: label}
	}
	return w, err
}

// FindWidget implements search.WidgetLookup
func (r *WidgetRepository) FindWidget(ctx context.Context, id string) (*models.Widget, error) {
	rows, err := r.db.Query(ctx, "SELECT "+widgetColumns+" FROM widgets WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query widget: %w", err)
	}
	w, err := pgx.CollectOneRow(rows, scanWidget)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", search.ErrWidgetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan widget: %w", err)
	}
	return &w, nil
}

// ActiveWidgets lists the widgets the cache warm-up should load
func (r *WidgetRepository) ActiveWidgets(ctx context.Context) ([]models.Widget, error) {
	rows, err := r.db.Query(ctx, "SELECT "+widgetColumns+" FROM widgets WHERE active AND deleted_at IS NULL ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query widgets: %w", err)
	}
	widgets, err := pgx.CollectRows(rows, scanWidget)
	if err != nil {
		return nil, fmt.Errorf("failed to scan widgets: %w", err)
	}
	return widgets, nil
}

// OrganizationNames implements search.OrganizationLookup
func (r *WidgetRepository) OrganizationNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := r.db.Query(ctx, "SELECT id, name FROM organizations WHERE id = ANY($1::text[])", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query organizations: %w", err)
	}
	var id, name string
	_, err = pgx.ForEachRow(rows, []any{&id, &name}, func() error {
		names[id] = name
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan organizations: %w", err)
	}
	return names, nil
}
