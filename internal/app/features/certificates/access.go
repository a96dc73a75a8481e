// internal/app/features/certificates/access.go
package certificates

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	"github.com/coverdesk/coverdesk/internal/app/policy/certpolicy"
	"github.com/coverdesk/coverdesk/internal/app/system/authz"
	"github.com/coverdesk/coverdesk/internal/app/system/limits"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
)

type accessRequest struct {
	RestrictedAccess bool `json:"restricted_access"`
	Hidden           bool `json:"hidden"`
}

// HandleAccessMarkers handles PUT /certificates/{certID}/access. The
// markers are writable in every lifecycle state, terminal ones included;
// they are visibility controls, not part of the legal record.
func (h *Handler) HandleAccessMarkers(w http.ResponseWriter, r *http.Request) {
	cert, ok := h.loadCert(w, r)
	if !ok {
		return
	}

	if !certpolicy.CanModify(r, cert) {
		shared.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	var req accessRequest
	if err := shared.Decode(w, r, &req, limits.MaxJSONBodySize); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	updated, err := h.Certs.SetAccessMarkers(ctx, cert.ID, req.RestrictedAccess, req.Hidden)
	if err != nil {
		h.Log.Error("certificates: access marker update failed", zap.Error(err),
			zap.String("certificate_id", cert.ID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	role, _, actorID, _ := authz.UserCtx(r)
	h.Audit.AccessMarkersUpdated(ctx, r, actorID, cert.ID, cert.OrganizationID, role, updated.RestrictedAccess, updated.Hidden)

	shared.JSON(w, http.StatusOK, updated)
}
