// internal/domain/models/membershipcategory.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Membership category status values.
const (
	CategoryActive = "active"
	CategoryLapsed = "lapsed"
)

// MembershipCategory records one account's membership enrollment for one
// membership year. GroupLabel is the cohort the category belongs to
// ("OT", "Student", ...); groups in the same organization roll their years
// over independently.
//
// An account with an active certificate but no active category for the
// certificate's year is a legitimate state (membership lapsed while the
// insurance ran on), not a data error.
type MembershipCategory struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID    primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	AccountBusinessID string             `bson:"account_business_id" json:"account_business_id"`
	Name              string             `bson:"name" json:"name"`
	GroupLabel        string             `bson:"group_label" json:"group_label"`
	MembershipYear    string             `bson:"membership_year" json:"membership_year"`
	Status            string             `bson:"status" json:"status"` // active | lapsed

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
