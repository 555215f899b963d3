package models

import "time"

// Mission holds the structure for the missions collection in mongo and the
// missions table in postgres
type Mission struct {
	ID                        string             `json:"_id" bson:"_id"`
	PublisherID               string             `json:"publisherId" bson:"publisherId"`
	PublisherName             string             `json:"publisherName" bson:"publisherName"`
	ClientID                  string             `json:"clientId" bson:"clientId"`
	Title                     string             `json:"title" bson:"title"`
	Description               string             `json:"description" bson:"description"`
	Domain                    string             `json:"domain" bson:"domain"`
	Activity                  string             `json:"activity" bson:"activity"`
	StatusCode                string             `json:"statusCode" bson:"statusCode"`
	ApplicationURL            string             `json:"applicationUrl" bson:"applicationUrl"`
	OrganizationID            string             `json:"organizationId" bson:"organizationId"`
	OrganizationName          string             `json:"organizationName" bson:"organizationName"`
	Address                   string             `json:"address" bson:"address"`
	City                      string             `json:"city" bson:"city"`
	PostalCode                string             `json:"postalCode" bson:"postalCode"`
	DepartmentCode            string             `json:"departmentCode" bson:"departmentCode"`
	DepartmentName            string             `json:"departmentName" bson:"departmentName"`
	Region                    string             `json:"region" bson:"region"`
	Country                   string             `json:"country" bson:"country"`
	Location                  *GeoPoint          `json:"location" bson:"location,omitempty"`
	Addresses                 []Address          `json:"addresses" bson:"addresses"`
	Remote                    string             `json:"remote" bson:"remote"` // 'no', 'possible', 'full'
	Schedule                  string             `json:"schedule" bson:"schedule"`
	Audience                  []string           `json:"audience" bson:"audience"`
	Tasks                     []string           `json:"tasks" bson:"tasks"`
	Tags                      []string           `json:"tags" bson:"tags"`
	OpenToMinors              string             `json:"openToMinors" bson:"openToMinors"` // 'yes', 'no'
	ReducedMobilityAccessible string             `json:"reducedMobilityAccessible" bson:"reducedMobilityAccessible"`
	CloseToTransport          string             `json:"closeToTransport" bson:"closeToTransport"`
	Duration                  *int               `json:"duration" bson:"duration,omitempty"` // hours
	Places                    *int               `json:"places" bson:"places,omitempty"`
	StartAt                   *time.Time         `json:"startAt" bson:"startAt,omitempty"`
	EndAt                     *time.Time         `json:"endAt" bson:"endAt,omitempty"`
	Moderations               []ModerationStatus `json:"moderations" bson:"moderations"`
	DeletedAt                 *time.Time         `json:"deletedAt" bson:"deletedAt,omitempty"`
	CreatedAt                 time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt                 time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Address is one of the places a mission happens at
type Address struct {
	Street         string    `json:"street" bson:"street"`
	City           string    `json:"city" bson:"city"`
	PostalCode     string    `json:"postalCode" bson:"postalCode"`
	DepartmentCode string    `json:"departmentCode" bson:"departmentCode"`
	DepartmentName string    `json:"departmentName" bson:"departmentName"`
	Region         string    `json:"region" bson:"region"`
	Country        string    `json:"country" bson:"country"`
	Location       *GeoPoint `json:"location" bson:"location,omitempty"`
}

// GeoPoint is a plain lat/lon pair
type GeoPoint struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lon float64 `json:"lon" bson:"lon"`
}

// ModerationStatus is one moderating publisher's decision on a mission
type ModerationStatus struct {
	PublisherID string `json:"publisherId" bson:"publisherId"`
	Status      string `json:"status" bson:"status"` // 'ACCEPTED', 'REFUSED', 'PENDING', 'ONGOING'
	Comment     string `json:"comment" bson:"comment"`
	Title       string `json:"title" bson:"title"`
}

// StatusAccepted is the status code a mission (or a moderation row) needs to be shown
const StatusAccepted = "ACCEPTED"

// ModerationFor returns the moderation row left by publisherID, if any
func (m Mission) ModerationFor(publisherID string) (ModerationStatus, bool) {
	for _, mod := range m.Moderations {
		if mod.PublisherID == publisherID {
			return mod, true
		}
	}
	return ModerationStatus{}, false
}
