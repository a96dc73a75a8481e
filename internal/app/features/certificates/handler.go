// internal/app/features/certificates/handler.go

// Package certificates is the certificate API: issuance, reads, lifecycle
// transitions, endorsement and access-marker updates, CSV export, and
// per-status counts. Expiration runs live in the expiration feature.
package certificates

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	accountstore "github.com/coverdesk/coverdesk/internal/app/store/accounts"
	certificatestore "github.com/coverdesk/coverdesk/internal/app/store/certificates"
	"github.com/coverdesk/coverdesk/internal/app/system/auditlog"
	"github.com/coverdesk/coverdesk/internal/app/system/authz"
	"github.com/coverdesk/coverdesk/internal/app/system/metrics"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

// Handler is the feature-level handler for certificates. It holds the DB
// handle, stores, and logger provided by DBDeps / Startup.
type Handler struct {
	DB       *mongo.Database
	Log      *zap.Logger
	Audit    *auditlog.Logger
	Metrics  *metrics.Collector
	Certs    *certificatestore.Store
	Accounts *accountstore.Store
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, collector *metrics.Collector, logger *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Log:      logger,
		Audit:    audit,
		Metrics:  collector,
		Certs:    certificatestore.New(db),
		Accounts: accountstore.New(db),
	}
}

// resolveOrgScope determines which organization a collection read (list,
// stats, export) runs against. Admins must name one with the
// organization_id query parameter; operators and viewers are pinned to
// their own and may not name another. Writes an error response and returns
// false when the scope cannot be resolved.
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

// loadCert fetches the certificate named by the certID route parameter.
// Writes an error response and returns false on a bad id or a miss.
func (h *Handler) loadCert(w http.ResponseWriter, r *http.Request) (*models.Certificate, bool) {
	certID, err := shared.ObjectIDParam(r, "certID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	cert, err := h.Certs.GetByID(r.Context(), certID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			shared.Error(w, http.StatusNotFound, "certificate not found")
			return nil, false
		}
		h.Log.Error("certificates: load failed", zap.Error(err), zap.String("certificate_id", certID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return nil, false
	}
	return cert, true
}
