// internal/domain/models/certificate.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Certificate is a point-in-time snapshot of coverage, pricing, and
// insured-person details. Everything except the five lifecycle fields
// (Status, EndorsementDescription, EndorsementEffectiveDate,
// RestrictedAccess, Hidden) is frozen at creation; the lifecycle package
// enforces that, stores never re-check it.
//
// NOTE:
//   - AccountID may be the zero ObjectID on legacy records with a broken
//     account link. The expiration processor tolerates that and skips the
//     certificate rather than failing the run.
//   - Expiration changes Status only; EffectiveDate/ExpiryDate are part of
//     the snapshot and never move.
type Certificate struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CertificateNumber int64              `bson:"certificate_number" json:"certificate_number"` // sequential per organization
	OrganizationID    primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	AccountID         primitive.ObjectID `bson:"account_id,omitempty" json:"account_id,omitempty"`

	// Insured-person snapshot.
	InsuredName       string `bson:"insured_name" json:"insured_name"`
	InsuredNameCI     string `bson:"insured_name_ci" json:"-"` // lowercase, diacritics-stripped
	InsuredEmail      string `bson:"insured_email" json:"insured_email"`
	InsuredPhone      string `bson:"insured_phone,omitempty" json:"insured_phone,omitempty"`
	AddressLine1      string `bson:"address_line1" json:"address_line1"`
	AddressLine2      string `bson:"address_line2,omitempty" json:"address_line2,omitempty"`
	City              string `bson:"city" json:"city"`
	State             string `bson:"state" json:"state"`
	PostalCode        string `bson:"postal_code" json:"postal_code"`
	Country           string `bson:"country" json:"country"`

	// Membership snapshot.
	MembershipCategory string `bson:"membership_category" json:"membership_category"`
	GroupLabel         string `bson:"group_label" json:"group_label"`
	MembershipYear     string `bson:"membership_year" json:"membership_year"` // e.g. "2025-2026"

	// Coverage and pricing snapshot. Money is integer cents.
	CoverageType       string            `bson:"coverage_type" json:"coverage_type"`
	CoverageLimitCents int64             `bson:"coverage_limit_cents" json:"coverage_limit_cents"`
	PremiumCents       int64             `bson:"premium_cents" json:"premium_cents"`
	TotalChargedCents  int64             `bson:"total_charged_cents" json:"total_charged_cents"`
	RiskAnswers        map[string]string `bson:"risk_answers,omitempty" json:"risk_answers,omitempty"`

	EffectiveDate time.Time `bson:"effective_date" json:"effective_date"`
	ExpiryDate    time.Time `bson:"expiry_date" json:"expiry_date"`

	// Lifecycle fields. These are the only writable fields after creation.
	Status                   string     `bson:"status" json:"status"` // draft | pending | active | expired | cancelled
	EndorsementDescription   string     `bson:"endorsement_description,omitempty" json:"endorsement_description,omitempty"`
	EndorsementEffectiveDate *time.Time `bson:"endorsement_effective_date,omitempty" json:"endorsement_effective_date,omitempty"`
	RestrictedAccess         bool       `bson:"restricted_access" json:"restricted_access"`
	Hidden                   bool       `bson:"hidden" json:"hidden"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasAccountLink reports whether the certificate carries a usable insured
// account reference.
func (c *Certificate) HasAccountLink() bool {
	return !c.AccountID.IsZero()
}
