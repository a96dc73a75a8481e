// internal/app/features/certificates/create.go
package certificates

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	certificatestore "github.com/coverdesk/coverdesk/internal/app/store/certificates"
	"github.com/coverdesk/coverdesk/internal/app/system/authz"
	"github.com/coverdesk/coverdesk/internal/app/system/limits"
	"github.com/coverdesk/coverdesk/internal/app/system/normalize"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/domain/models"
	"github.com/coverdesk/coverdesk/internal/domain/years"
)

// createRequest carries the full issuance snapshot. Status, certificate
// number, and endorsement fields are never accepted from the caller; the
// store assigns them.
type createRequest struct {
	OrganizationID string `json:"organization_id"`
	AccountID      string `json:"account_id,omitempty"`

	InsuredName  string `json:"insured_name"`
	InsuredEmail string `json:"insured_email"`
	InsuredPhone string `json:"insured_phone,omitempty"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`

	MembershipCategory string `json:"membership_category"`
	GroupLabel         string `json:"group_label"`
	MembershipYear     string `json:"membership_year"`

	CoverageType       string            `json:"coverage_type"`
	CoverageLimitCents int64             `json:"coverage_limit_cents"`
	PremiumCents       int64             `json:"premium_cents"`
	TotalChargedCents  int64             `json:"total_charged_cents"`
	RiskAnswers        map[string]string `json:"risk_answers,omitempty"`

	EffectiveDate time.Time `json:"effective_date"`
	ExpiryDate    time.Time `json:"expiry_date"`
}

func (req *createRequest) validate() string {
	switch {
	case strings.TrimSpace(req.InsuredName) == "":
		return "insured_name is required"
	case strings.TrimSpace(req.InsuredEmail) == "":
		return "insured_email is required"
	case req.GroupLabel == "":
		return "group_label is required"
	case req.MembershipYear != "" && !years.ValidLabel(req.MembershipYear):
		return "membership_year must look like 2025-2026"
	case req.EffectiveDate.IsZero() || req.ExpiryDate.IsZero():
		return "effective_date and expiry_date are required"
	case req.CoverageLimitCents < 0 || req.PremiumCents < 0 || req.TotalChargedCents < 0:
		return "money amounts cannot be negative"
	}
	return ""
}

// HandleCreate handles POST /certificates. The created certificate always
// starts in draft; activation is a separate transition.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := shared.Decode(w, r, &req, limits.MaxCertificateCreateSize); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	// Group label and membership year are join keys for expiration;
	// canonicalize before validating so the stored value is the checked one.
	req.GroupLabel = normalize.GroupLabel(req.GroupLabel)
	req.MembershipYear = normalize.MembershipYear(req.MembershipYear)

	if msg := req.validate(); msg != "" {
		shared.Error(w, http.StatusBadRequest, msg)
		return
	}

	orgID, ok := h.createOrgScope(w, r, req.OrganizationID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var accountID primitive.ObjectID
	if req.AccountID != "" {
		id, err := primitive.ObjectIDFromHex(req.AccountID)
		if err != nil {
			shared.Error(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		acct, err := h.Accounts.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				shared.Error(w, http.StatusBadRequest, "account not found")
				return
			}
			h.Log.Error("certificates: account lookup failed", zap.Error(err))
			shared.Error(w, http.StatusInternalServerError, "something went wrong")
			return
		}
		if acct.OrganizationID != orgID {
			shared.Error(w, http.StatusBadRequest, "account belongs to a different organization")
			return
		}
		accountID = id
	}

	cert := models.Certificate{
		OrganizationID:     orgID,
		AccountID:          accountID,
		InsuredName:        strings.TrimSpace(req.InsuredName),
		InsuredEmail:       strings.TrimSpace(req.InsuredEmail),
		InsuredPhone:       strings.TrimSpace(req.InsuredPhone),
		AddressLine1:       strings.TrimSpace(req.AddressLine1),
		AddressLine2:       strings.TrimSpace(req.AddressLine2),
		City:               strings.TrimSpace(req.City),
		State:              strings.TrimSpace(req.State),
		PostalCode:         strings.TrimSpace(req.PostalCode),
		Country:            strings.TrimSpace(req.Country),
		MembershipCategory: strings.TrimSpace(req.MembershipCategory),
		GroupLabel:         req.GroupLabel,
		MembershipYear:     req.MembershipYear,
		CoverageType:       strings.TrimSpace(req.CoverageType),
		CoverageLimitCents: req.CoverageLimitCents,
		PremiumCents:       req.PremiumCents,
		TotalChargedCents:  req.TotalChargedCents,
		RiskAnswers:        req.RiskAnswers,
		EffectiveDate:      req.EffectiveDate.UTC(),
		ExpiryDate:         req.ExpiryDate.UTC(),
	}

	created, err := h.Certs.Create(ctx, cert)
	if err != nil {
		switch {
		case errors.Is(err, certificatestore.ErrInvalidDateRange):
			shared.Error(w, http.StatusBadRequest, "effective date must be before expiry date")
		case errors.Is(err, certificatestore.ErrDuplicateNumber):
			shared.Error(w, http.StatusConflict, "certificate number already in use")
		default:
			h.Log.Error("certificates: create failed", zap.Error(err))
			shared.Error(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	role, _, actorID, _ := authz.UserCtx(r)
	h.Audit.CertificateCreated(ctx, r, actorID, created.ID, created.OrganizationID, role, created.CertificateNumber, created.Status)
	h.Metrics.RecordCertificateCreated()
	h.Log.Info("certificate created",
		zap.String("certificate_id", created.ID.Hex()),
		zap.Int64("certificate_number", created.CertificateNumber),
		zap.String("organization_id", created.OrganizationID.Hex()))

	shared.JSON(w, http.StatusCreated, created)
}

// createOrgScope resolves the organization a new certificate belongs to.
// Admins must name one in the body; operators default to their own and may
// not name another.
func (h *Handler) createOrgScope(w http.ResponseWriter, r *http.Request, param string) (primitive.ObjectID, bool) {
	if authz.IsAdmin(r) {
		if param == "" {
			shared.Error(w, http.StatusBadRequest, "organization_id is required")
			return primitive.NilObjectID, false
		}
		orgID, err := primitive.ObjectIDFromHex(param)
		if err != nil {
			shared.Error(w, http.StatusBadRequest, "invalid organization_id")
			return primitive.NilObjectID, false
		}
		return orgID, true
	}

	own := authz.UserOrgID(r)
	if own.IsZero() {
		shared.Error(w, http.StatusForbidden, "forbidden")
		return primitive.NilObjectID, false
	}
	if param != "" && param != own.Hex() {
		shared.Error(w, http.StatusForbidden, "forbidden")
		return primitive.NilObjectID, false
	}
	return own, true
}
