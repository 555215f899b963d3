package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linesmerrill/mission-search-api/models"
)

// Writer loads missions, widgets and organizations, replacing rows with the
// same id
type Writer struct {
	pool *pgxpool.Pool
}

// NewWriter returns a writer on pool
func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// SaveOrganization upserts an organization
func (w *Writer) SaveOrganization(ctx context.Context, o models.Organization) error {
	_, err := w.pool.Exec(ctx, `INSERT INTO organizations (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, o.ID, o.Name)
	if err != nil {
		return fmt.Errorf("failed to save organization %s: %w", o.ID, err)
	}
	return nil
}

// SaveWidget upserts a widget
func (w *Writer) SaveWidget(ctx context.Context, wd models.Widget) error {
	var lat, lon *float64
	label := ""
	if wd.Location != nil {
		lat, lon, label = &wd.Location.Lat, &wd.Location.Lon, wd.Location.Label
	}
	publishers := wd.Publishers
	if publishers == nil {
		publishers = []string{}
	}
	rules := wd.Rules
	if rules == nil {
		rules = []models.Rule{}
	}
	_, err := w.pool.Exec(ctx, `INSERT INTO widgets (id, name, from_publisher_id, publishers, rules, jva_moderation,
		location_lat, location_lon, location_label, distance, active, style, color, deleted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, from_publisher_id = EXCLUDED.from_publisher_id,
		publishers = EXCLUDED.publishers, rules = EXCLUDED.rules, jva_moderation = EXCLUDED.jva_moderation,
		location_lat = EXCLUDED.location_lat, location_lon = EXCLUDED.location_lon,
		location_label = EXCLUDED.location_label, distance = EXCLUDED.distance, active = EXCLUDED.active,
		style = EXCLUDED.style, color = EXCLUDED.color, deleted_at = EXCLUDED.deleted_at,
		updated_at = EXCLUDED.updated_at`,
		wd.ID, wd.Name, wd.FromPublisher, publishers, rules, wd.JvaModeration,
		lat, lon, label, wd.Distance, wd.Active, wd.Style, wd.Color, wd.DeletedAt, wd.CreatedAt, wd.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save widget %s: %w", wd.ID, err)
	}
	return nil
}

// SaveMission upserts a mission with its addresses and moderation rows in one
// transaction
func (w *Writer) SaveMission(ctx context.Context, m models.Mission) error {
	return pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
		var lat, lon *float64
		if m.Location != nil {
			lat, lon = &m.Location.Lat, &m.Location.Lon
		}
		if _, err := tx.Exec(ctx, "DELETE FROM missions WHERE id = $1", m.ID); err != nil {
			return fmt.Errorf("failed to replace mission %s: %w", m.ID, err)
		}
		_, err := tx.Exec(ctx, `INSERT INTO missions (id, publisher_id, publisher_name, client_id, title, description,
			domain, activity, status_code, application_url, organization_id, organization_name, address, city,
			postal_code, department_code, department_name, region, country, lat, lon, remote, schedule,
			audience, tasks, tags, open_to_minors, reduced_mobility_accessible, close_to_transport,
			duration, places, start_at, end_at, deleted_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36)`,
			m.ID, m.PublisherID, nullable(m.PublisherName), nullable(m.ClientID), nullable(m.Title), nullable(m.Description),
			nullable(m.Domain), nullable(m.Activity), nullable(m.StatusCode), nullable(m.ApplicationURL),
			nullable(m.OrganizationID), nullable(m.OrganizationName), nullable(m.Address), nullable(m.City),
			nullable(m.PostalCode), nullable(m.DepartmentCode), nullable(m.DepartmentName), nullable(m.Region),
			nullable(m.Country), lat, lon, nullable(m.Remote), nullable(m.Schedule),
			m.Audience, m.Tasks, m.Tags, nullable(m.OpenToMinors), nullable(m.ReducedMobilityAccessible),
			nullable(m.CloseToTransport), m.Duration, m.Places, m.StartAt, m.EndAt, m.DeletedAt, m.CreatedAt, m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save mission %s: %w", m.ID, err)
		}

		batch := &pgx.Batch{}
		for _, a := range m.Addresses {
			var alat, alon *float64
			if a.Location != nil {
				alat, alon = &a.Location.Lat, &a.Location.Lon
			}
			batch.Queue(`INSERT INTO mission_address (mission_id, street, city, postal_code, department_code,
				department_name, region, country, lat, lon) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				m.ID, a.Street, a.City, a.PostalCode, a.DepartmentCode, a.DepartmentName, a.Region, a.Country, alat, alon)
		}
		for _, s := range m.Moderations {
			batch.Queue(`INSERT INTO mission_moderation_status (mission_id, publisher_id, status, comment, title)
				VALUES ($1, $2, $3, $4, $5)`, m.ID, s.PublisherID, s.Status, s.Comment, s.Title)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save children of mission %s: %w", m.ID, err)
		}
		return nil
	})
}

// nullable stores empty strings as NULL so both read as missing
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
