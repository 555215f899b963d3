package models

import "time"

// Widget holds the structure for the widgets collection: an embeddable mission
// search owned by a publisher
type Widget struct {
	ID            string     `json:"_id" bson:"_id"`
	Name          string     `json:"name" bson:"name"`
	FromPublisher string     `json:"fromPublisherId" bson:"fromPublisherId"`
	Publishers    []string   `json:"publishers" bson:"publishers"`
	Rules         []Rule     `json:"rules" bson:"rules"`
	JvaModeration bool       `json:"jvaModeration" bson:"jvaModeration"`
	Location      *Location  `json:"location" bson:"location,omitempty"`
	Distance      string     `json:"distance" bson:"distance"`
	Active        bool       `json:"active" bson:"active"`
	Style         string     `json:"style" bson:"style"`
	Color         string     `json:"color" bson:"color"`
	DeletedAt     *time.Time `json:"deletedAt" bson:"deletedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Location is the fixed search center configured on a widget
type Location struct {
	Lat   float64 `json:"lat" bson:"lat"`
	Lon   float64 `json:"lon" bson:"lon"`
	Label string  `json:"label" bson:"label"`
}

// Rule is a single visibility constraint stored on a widget
type Rule struct {
	Field      string `json:"field" bson:"field"`
	FieldType  string `json:"fieldType" bson:"fieldType"`
	Operator   string `json:"operator" bson:"operator"`
	Value      string `json:"value" bson:"value"`
	Combinator string `json:"combinator" bson:"combinator"` // 'and', 'or'
}

// Organization holds the structure for the organizations collection, only the
// bits the search needs to resolve display names
type Organization struct {
	ID   string `json:"_id" bson:"_id"`
	Name string `json:"name" bson:"name"`
}
