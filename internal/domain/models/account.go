// internal/domain/models/account.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account status values.
const (
	AccountActive   = "active"
	AccountInactive = "inactive"
)

// Account is an insured member account. BusinessID is the human-readable
// member number the membership-category records are keyed by; certificates
// reference accounts by ObjectID and the expiration processor resolves the
// BusinessID on the fly.
type Account struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	BusinessID     string             `bson:"business_id" json:"business_id"`
	FullName       string             `bson:"full_name" json:"full_name"`
	FullNameCI     string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email          string             `bson:"email" json:"email"`
	Status         string             `bson:"status" json:"status"` // active | inactive

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
