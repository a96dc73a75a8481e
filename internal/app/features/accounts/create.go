// internal/app/features/accounts/create.go
package accounts

import (
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	accountstore "github.com/coverdesk/coverdesk/internal/app/store/accounts"
	"github.com/coverdesk/coverdesk/internal/app/system/authz"
	"github.com/coverdesk/coverdesk/internal/app/system/limits"
	"github.com/coverdesk/coverdesk/internal/app/system/normalize"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

type createRequest struct {
	OrganizationID string `json:"organization_id"`
	BusinessID     string `json:"business_id"`
	FullName       string `json:"full_name"`
	Email          string `json:"email,omitempty"`
	Status         string `json:"status,omitempty"`
}

func (req *createRequest) normalize() {
	req.BusinessID = normalize.QueryParam(req.BusinessID)
	req.FullName = normalize.Name(req.FullName)
	req.Email = normalize.Email(req.Email)
	req.Status = normalize.Status(req.Status)
}

func (req *createRequest) validate() string {
	switch {
	case req.BusinessID == "":
		return "business_id is required"
	case req.FullName == "":
		return "full_name is required"
	case req.Email != "" && !strings.Contains(req.Email, "@"):
		return "email is not valid"
	case req.Status != "" && req.Status != models.AccountActive && req.Status != models.AccountInactive:
		return "status must be active or inactive"
	}
	return ""
}

// HandleCreate handles POST /accounts. The business identifier is fixed at
// creation; rosters that need to rename a member go through the CSV import.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := shared.Decode(w, r, &req, limits.MaxJSONBodySize); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	req.normalize()
	if msg := req.validate(); msg != "" {
		shared.Error(w, http.StatusBadRequest, msg)
		return
	}

	orgID, ok := h.createOrgScope(w, r, req.OrganizationID)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "account create")
	defer cancel()

	created, err := h.Accounts.Create(ctx, models.Account{
		OrganizationID: orgID,
		BusinessID:     req.BusinessID,
		FullName:       req.FullName,
		Email:          req.Email,
		Status:         req.Status,
	})
	if err != nil {
		if errors.Is(err, accountstore.ErrDuplicateAccount) {
			shared.Error(w, http.StatusConflict, "an account with this business identifier already exists")
			return
		}
		h.Log.Error("accounts: create failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	role, _, actorID, _ := authz.UserCtx(r)
	h.Audit.AccountCreated(ctx, r, actorID, orgID, role, created.BusinessID)
	h.Log.Info("account created",
		zap.String("account_id", created.ID.Hex()),
		zap.String("business_id", created.BusinessID),
		zap.String("organization_id", orgID.Hex()))

	shared.JSON(w, http.StatusCreated, created)
}

// createOrgScope resolves the organization a new account belongs to. Admins
// must name one in the body; operators default to their own and may not
// name another.
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
