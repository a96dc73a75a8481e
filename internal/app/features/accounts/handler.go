// internal/app/features/accounts/handler.go

// Package accounts manages the insured member roster: the accounts that
// certificates reference and the expiration processor joins against by
// business identifier. Rosters arrive one account at a time or as a CSV
// import.
package accounts

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	accountstore "github.com/coverdesk/coverdesk/internal/app/store/accounts"
	organizationstore "github.com/coverdesk/coverdesk/internal/app/store/organizations"
	"github.com/coverdesk/coverdesk/internal/app/system/auditlog"
	"github.com/coverdesk/coverdesk/internal/app/system/authz"
	"github.com/coverdesk/coverdesk/internal/app/system/metrics"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

// Handler is the feature-level handler for member accounts.
type Handler struct {
	Log      *zap.Logger
	Audit    *auditlog.Logger
	Metrics  *metrics.Collector
	Accounts *accountstore.Store
	Orgs     *organizationstore.Store
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, collector *metrics.Collector, logger *zap.Logger) *Handler {
	return &Handler{
		Log:      logger,
		Audit:    audit,
		Metrics:  collector,
		Accounts: accountstore.New(db),
		Orgs:     organizationstore.New(db),
	}
}

// resolveOrgScope determines which organization a roster operation runs
// against, with the same rules as the certificate list: admins name one
// with the organization_id query parameter, everyone else is pinned to
// their own.
func (h *Handler) resolveOrgScope(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	param := r.URL.Query().Get("organization_id")

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

// listResponse is one page of the roster, sorted by folded name.
type listResponse struct {
	Accounts []models.Account `json:"accounts"`
	Total    int64            `json:"total"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ServeList handles GET /accounts. Rosters page by limit/offset; they are
// reviewed in bulk after an import, not browsed with cursors. A business_id
// parameter narrows to the one account the membership system knows by that
// identifier, for reconciliation against an exported roster.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.resolveOrgScope(w, r)
	if !ok {
		return
	}

	if businessID := strings.TrimSpace(r.URL.Query().Get("business_id")); businessID != "" {
		h.serveByBusinessID(w, r, orgID, businessID)
		return
	}

	limit, ok := queryInt(w, r, "limit", defaultListLimit)
	if !ok {
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}

	ctx := r.Context()

	total, err := h.Accounts.Count(ctx, bson.M{"organization_id": orgID})
	if err != nil {
		h.Log.Error("accounts: count failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	accts, err := h.Accounts.ListByOrg(ctx, orgID, limit, offset)
	if err != nil {
		h.Log.Error("accounts: list failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if accts == nil {
		accts = []models.Account{}
	}

	shared.JSON(w, http.StatusOK, listResponse{Accounts: accts, Total: total})
}

// serveByBusinessID answers a business_id-filtered list: zero or one rows,
// in the same page shape as the unfiltered listing.
func (h *Handler) serveByBusinessID(w http.ResponseWriter, r *http.Request, orgID primitive.ObjectID, businessID string) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "account business-id lookup")
	defer cancel()

	acct, err := h.Accounts.GetByBusinessID(ctx, orgID, businessID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			shared.JSON(w, http.StatusOK, listResponse{Accounts: []models.Account{}, Total: 0})
			return
		}
		h.Log.Error("accounts: business-id lookup failed", zap.Error(err), zap.String("business_id", businessID))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	shared.JSON(w, http.StatusOK, listResponse{Accounts: []models.Account{*acct}, Total: 1})
}

// ServeGet handles GET /accounts/{accountID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	acctID, err := shared.ObjectIDParam(r, "accountID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "account lookup")
	defer cancel()

	acct, err := h.Accounts.GetByID(ctx, acctID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			shared.Error(w, http.StatusNotFound, "account not found")
			return
		}
		h.Log.Error("accounts: load failed", zap.Error(err), zap.String("account_id", acctID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	if !authz.CanAccessOrg(r, acct.OrganizationID) {
		shared.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	shared.JSON(w, http.StatusOK, acct)
}

// queryInt parses a non-negative integer query parameter, using def when
// absent. Writes a 400 and returns false on garbage.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int64) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		shared.Error(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}
