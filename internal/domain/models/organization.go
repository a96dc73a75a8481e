// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization status values.
const (
	OrgActive   = "active"
	OrgInactive = "inactive"
)

// Organization is a tenant association. Certificates, accounts, categories,
// and year settings all hang off exactly one organization; the expiration
// processor never crosses organization boundaries in a single run.
type Organization struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	City        string             `bson:"city,omitempty" json:"city,omitempty"`
	State       string             `bson:"state,omitempty" json:"state,omitempty"`
	TimeZone    string             `bson:"time_zone,omitempty" json:"time_zone,omitempty"`
	ContactInfo string             `bson:"contact_info,omitempty" json:"contact_info,omitempty"`
	Status      string             `bson:"status" json:"status"` // active | inactive

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
