// internal/domain/models/yearsetting.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// YearSetting is the active membership year for one (organization, group)
// pair. At most one document per pair is active at a time; flipping
// ActiveYear is what makes the expiration processor start expiring the
// previous year's certificates for that group.
type YearSetting struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	GroupLabel     string             `bson:"group_label" json:"group_label"`
	ActiveYear     string             `bson:"active_year" json:"active_year"` // e.g. "2025-2026"
	YearStart      time.Time          `bson:"year_start,omitempty" json:"year_start,omitempty"`
	YearEnd        time.Time          `bson:"year_end,omitempty" json:"year_end,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
