package search

import (
	"time"

	"github.com/linesmerrill/mission-search-api/models"
)

// project shapes a stored mission for a widget. Every key is filled, nil
// slices become empty ones and nil pointers their zero value.
func project(m models.Mission, w *models.Widget, moderatorID string) models.MissionHit {
	hit := models.MissionHit{
		ID:                        m.ID,
		PublisherID:               m.PublisherID,
		PublisherName:             m.PublisherName,
		Title:                     displayTitle(m, w, moderatorID),
		Description:               m.Description,
		Domain:                    m.Domain,
		Activity:                  m.Activity,
		ApplicationURL:            m.ApplicationURL,
		OrganizationID:            m.OrganizationID,
		OrganizationName:          m.OrganizationName,
		Address:                   m.Address,
		City:                      m.City,
		PostalCode:                m.PostalCode,
		DepartmentCode:            m.DepartmentCode,
		DepartmentName:            m.DepartmentName,
		Region:                    m.Region,
		Country:                   m.Country,
		Addresses:                 m.Addresses,
		Remote:                    m.Remote,
		Schedule:                  m.Schedule,
		Audience:                  nonNil(m.Audience),
		Tasks:                     nonNil(m.Tasks),
		Tags:                      nonNil(m.Tags),
		OpenToMinors:              m.OpenToMinors,
		ReducedMobilityAccessible: m.ReducedMobilityAccessible,
		CloseToTransport:          m.CloseToTransport,
		StartAt:                   formatTime(m.StartAt),
		EndAt:                     formatTime(m.EndAt),
		CreatedAt:                 formatTime(&m.CreatedAt),
	}
	if hit.Addresses == nil {
		hit.Addresses = []models.Address{}
	}
	if m.Duration != nil {
		hit.Duration = *m.Duration
	}
	if m.Places != nil {
		hit.Places = *m.Places
	}

	// the flat location falls back on the first geolocated address
	loc := m.Location
	for i := 0; loc == nil && i < len(m.Addresses); i++ {
		loc = m.Addresses[i].Location
	}
	if loc != nil {
		lat, lon := loc.Lat, loc.Lon
		hit.Lat, hit.Lon = &lat, &lon
	}
	return hit
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
