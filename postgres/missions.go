package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/search"
)

const missionColumns = `m.id, m.publisher_id, coalesce(m.publisher_name, ''), coalesce(m.client_id, ''),
	coalesce(m.title, ''), coalesce(m.description, ''), coalesce(m.domain, ''), coalesce(m.activity, ''),
	coalesce(m.status_code, ''), coalesce(m.application_url, ''), coalesce(m.organization_id, ''),
	coalesce(m.organization_name, ''), coalesce(m.address, ''), coalesce(m.city, ''), coalesce(m.postal_code, ''),
	coalesce(m.department_code, ''), coalesce(m.department_name, ''), coalesce(m.region, ''), coalesce(m.country, ''),
	m.lat, m.lon, coalesce(m.remote, ''), coalesce(m.schedule, ''),
	coalesce(m.audience, '{}'), coalesce(m.tasks, '{}'), coalesce(m.tags, '{}'),
	coalesce(m.open_to_minors, ''), coalesce(m.reduced_mobility_accessible, ''), coalesce(m.close_to_transport, ''),
	m.duration, m.places, m.start_at, m.end_at, m.deleted_at, m.created_at, m.updated_at`

// MissionRepository implements search.Repository on PostgreSQL
type MissionRepository struct {
	db Querier
}

// NewMissionRepository returns a repository reading through db
func NewMissionRepository(db Querier) *MissionRepository {
	return &MissionRepository{db: db}
}

// Supports implements search.Repository
func (r *MissionRepository) Supports(field search.Field) bool {
	_, ok := columns[field]
	return ok
}

func orderBy(order []search.Sort) string {
	if len(order) == 0 {
		return ""
	}
	parts := make([]string, 0, len(order))
	for _, s := range order {
		// missing values sort lowest
		dir := "ASC NULLS FIRST"
		if s.Desc {
			dir = "DESC NULLS LAST"
		}
		parts = append(parts, columns[s.Field]+" "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// Find implements search.Repository
func (r *MissionRepository) Find(ctx context.Context, q search.Query) ([]models.Mission, error) {
	w := CompileWhere(q.Predicate, 0)
	args := append([]any{}, w.Args...)
	sql := "SELECT " + missionColumns + " FROM missions m WHERE " + w.SQL + orderBy(q.Sort)
	args = append(args, q.Skip)
	sql += fmt.Sprintf(" OFFSET $%d", len(args))
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query missions: %w", err)
	}
	missions, err := pgx.CollectRows(rows, scanMission)
	if err != nil {
		return nil, fmt.Errorf("failed to scan missions: %w", err)
	}
	if err := r.loadChildren(ctx, missions); err != nil {
		return nil, err
	}
	return missions, nil
}

func scanMission(row pgx.CollectableRow) (models.Mission, error) {
	var (
		m        models.Mission
		lat, lon *float64
	)
	err := row.Scan(&m.ID, &m.PublisherID, &m.PublisherName, &m.ClientID,
		&m.Title, &m.Description, &m.Domain, &m.Activity,
		&m.StatusCode, &m.ApplicationURL, &m.OrganizationID,
		&m.OrganizationName, &m.Address, &m.City, &m.PostalCode,
		&m.DepartmentCode, &m.DepartmentName, &m.Region, &m.Country,
		&lat, &lon, &m.Remote, &m.Schedule,
		&m.Audience, &m.Tasks, &m.Tags,
		&m.OpenToMinors, &m.ReducedMobilityAccessible, &m.CloseToTransport,
		&m.Duration, &m.Places, &m.StartAt, &m.EndAt, &m.DeletedAt, &m.CreatedAt, &m.UpdatedAt)
	if lat != nil && lon != nil {
		m.Location = &models.GeoPoint{Lat: *lat, Lon: *lon}
	}
	return m, err
}

// loadChildren attaches addresses and moderation rows to a page of missions
func (r *MissionRepository) loadChildren(ctx context.Context, missions []models.Mission) error {
	if len(missions) == 0 {
		return nil
	}
	ids := make([]string, len(missions))
	byID := make(map[string]*models.Mission, len(missions))
	for i := range missions {
		ids[i] = missions[i].ID
		byID[missions[i].ID] = &missions[i]
	}

	rows, err := r.db.Query(ctx, `SELECT mission_id, coalesce(street, ''), coalesce(city, ''), coalesce(postal_code, ''),
		coalesce(department_code, ''), coalesce(department_name, ''), coalesce(region, ''), coalesce(country, ''), lat, lon
		FROM mission_address WHERE mission_id = ANY($1::text[]) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("failed to query mission addresses: %w", err)
	}
	var (
		missionID string
		a         models.Address
		lat, lon  *float64
	)
	_, err = pgx.ForEachRow(rows, []any{&missionID, &a.Street, &a.City, &a.PostalCode,
		&a.DepartmentCode, &a.DepartmentName, &a.Region, &a.Country, &lat, &lon}, func() error {
		addr := a
		addr.Location = nil
		if lat != nil && lon != nil {
			addr.Location = &models.GeoPoint{Lat: *lat, Lon: *lon}
		}
		if m, ok := byID[missionID]; ok {
			m.Addresses = append(m.Addresses, addr)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan mission addresses: %w", err)
	}

	rows, err = r.db.Query(ctx, `SELECT mission_id, publisher_id, status, coalesce(comment, ''), coalesce(title, '')
		FROM mission_moderation_status WHERE mission_id = ANY($1::text[])`, ids)
	if err != nil {
		return fmt.Errorf("failed to query mission moderations: %w", err)
	}
	var s models.ModerationStatus
	_, err = pgx.ForEachRow(rows, []any{&missionID, &s.PublisherID, &s.Status, &s.Comment, &s.Title}, func() error {
		if m, ok := byID[missionID]; ok {
			m.Moderations = append(m.Moderations, s)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan mission moderations: %w", err)
	}
	return nil
}

// Count implements search.Repository
func (r *MissionRepository) Count(ctx context.Context, p search.Predicate) (int64, error) {
	w := CompileWhere(p, 0)
	var n int64
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM missions m WHERE "+w.SQL, w.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count missions: %w", err)
	}
	return n, nil
}

// GroupBy implements search.Repository
func (r *MissionRepository) GroupBy(ctx context.Context, field search.Field, p search.Predicate) ([]models.Bucket, error) {
	col, ok := columns[field]
	if !ok {
		return nil, fmt.Errorf("unmapped field %q", field)
	}
	w := CompileWhere(p, 0)
	sql := fmt.Sprintf("SELECT coalesce(%s::text, ''), count(*) FROM missions m WHERE %s GROUP BY 1", col, w.SQL)
	return r.buckets(ctx, sql, w.Args...)
}

// FindIDs implements search.Repository
func (r *MissionRepository) FindIDs(ctx context.Context, p search.Predicate, limit int) ([]string, error) {
	w := CompileWhere(p, 0)
	args := append([]any{}, w.Args...)
	sql := "SELECT m.id FROM missions m WHERE " + w.SQL
	if limit > 0 {
		args = append(args, limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mission ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan mission ids: %w", err)
	}
	return ids, nil
}

// AggregateArrayField implements search.Repository
func (r *MissionRepository) AggregateArrayField(ctx context.Context, missionIDs []string, field search.Field) ([]models.Bucket, error) {
	col, ok := columns[field]
	if !ok {
		return nil, fmt.Errorf("unmapped field %q", field)
	}
	sql := fmt.Sprintf("SELECT v, count(*) FROM missions m, unnest(%s) v WHERE m.id = ANY($1::text[]) GROUP BY v", col)
	return r.buckets(ctx, sql, missionIDs)
}

func (r *MissionRepository) buckets(ctx context.Context, sql string, args ...any) ([]models.Bucket, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate missions: %w", err)
	}
	buckets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Bucket, error) {
		var b models.Bucket
		err := row.Scan(&b.Key, &b.DocCount)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan buckets: %w", err)
	}
	return buckets, nil
}
