package models

// SearchResponse is returned by the widget search route
type SearchResponse struct {
	Hits  []MissionHit        `json:"hits"`
	Total int64               `json:"total"`
	Aggs  map[string][]Bucket `json:"aggs"`
}

// AggsResponse is returned by the widget aggregations route
type AggsResponse struct {
	Aggs map[string][]Bucket `json:"aggs"`
}

// Bucket is a single facet value and the number of missions carrying it
type Bucket struct {
	Key      string `json:"key"`
	DocCount int64  `json:"doc_count"`
	ID       string `json:"id,omitempty"`
}

// MissionHit is the flattened shape a widget receives for each mission. Every
// key is always present, optional values default to their zero value.
type MissionHit struct {
	ID                        string    `json:"_id"`
	PublisherID               string    `json:"publisherId"`
	PublisherName             string    `json:"publisherName"`
	Title                     string    `json:"title"`
	Description               string    `json:"description"`
	Domain                    string    `json:"domain"`
	Activity                  string    `json:"activity"`
	ApplicationURL            string    `json:"applicationUrl"`
	OrganizationID            string    `json:"organizationId"`
	OrganizationName          string    `json:"organizationName"`
	Address                   string    `json:"address"`
	City                      string    `json:"city"`
	PostalCode                string    `json:"postalCode"`
	DepartmentCode            string    `json:"departmentCode"`
	DepartmentName            string    `json:"departmentName"`
	Region                    string    `json:"region"`
	Country                   string    `json:"country"`
	Lat                       *float64  `json:"lat"`
	Lon                       *float64  `json:"lon"`
	Addresses                 []Address `json:"addresses"`
	Remote                    string    `json:"remote"`
	Schedule                  string    `json:"schedule"`
	Audience                  []string  `json:"audience"`
	Tasks                     []string  `json:"tasks"`
	Tags                      []string  `json:"tags"`
	OpenToMinors              string    `json:"openToMinors"`
	ReducedMobilityAccessible string    `json:"reducedMobilityAccessible"`
	CloseToTransport          string    `json:"closeToTransport"`
	Duration                  int       `json:"duration"`
	Places                    int       `json:"places"`
	StartAt                   string    `json:"startAt"`
	EndAt                     string    `json:"endAt"`
	CreatedAt                 string    `json:"createdAt"`
}

// HealthCheckResponse returns the health check response
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}
