// internal/app/features/certificates/transition.go
package certificates

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	"github.com/coverdesk/coverdesk/internal/app/policy/certpolicy"
	certificatestore "github.com/coverdesk/coverdesk/internal/app/store/certificates"
	"github.com/coverdesk/coverdesk/internal/app/system/authz"
	"github.com/coverdesk/coverdesk/internal/app/system/limits"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/domain/lifecycle"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

type transitionRequest struct {
	Status string `json:"status"`
}

// transitionResponse reports the outcome. A proposed status equal to the
// current one is not an error: Changed is false and the certificate is
// returned unchanged.
type transitionResponse struct {
	Changed     bool                `json:"changed"`
	Certificate *models.Certificate `json:"certificate"`
}

// HandleTransition handles POST /certificates/{certID}/transition. An edge
// missing from the transition table is a 409; insufficient privilege is a
// 403.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	cert, ok := h.loadCert(w, r)
	if !ok {
		return
	}

	if !certpolicy.CanModify(r, cert) {
		shared.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	var req transitionRequest
	if err := shared.Decode(w, r, &req, limits.MaxJSONBodySize); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	proposed := lifecycle.Status(req.Status)
	if !lifecycle.Valid(proposed) {
		shared.Error(w, http.StatusBadRequest, "unknown status")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	role, _, actorID, _ := authz.UserCtx(r)
	from := cert.Status

	updated, err := h.Certs.ApplyTransition(ctx, cert.ID, proposed, authz.LifecyclePrivilege(r))
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrNoOpUpdate):
			shared.JSON(w, http.StatusOK, transitionResponse{Changed: false, Certificate: cert})
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			h.Audit.TransitionRejected(ctx, r, actorID, cert.ID, cert.OrganizationID, role, from, req.Status, "invalid_transition")
			h.Metrics.RecordTransitionRejected("invalid_transition")
			shared.Error(w, http.StatusConflict, "invalid status transition")
		case errors.Is(err, lifecycle.ErrPermissionDenied):
			h.Audit.TransitionRejected(ctx, r, actorID, cert.ID, cert.OrganizationID, role, from, req.Status, "permission_denied")
			h.Metrics.RecordTransitionRejected("permission_denied")
			shared.Error(w, http.StatusForbidden, "permission denied")
		case errors.Is(err, certificatestore.ErrConflict):
			shared.Error(w, http.StatusConflict, "certificate was updated concurrently, retry")
		default:
			h.Log.Error("certificates: transition failed", zap.Error(err),
				zap.String("certificate_id", cert.ID.Hex()))
			shared.Error(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	h.Audit.StatusTransition(ctx, r, actorID, cert.ID, cert.OrganizationID, role, from, updated.Status)
	h.Metrics.RecordTransition(from, updated.Status)
	h.Log.Info("certificate status transition",
		zap.String("certificate_id", cert.ID.Hex()),
		zap.String("from", from),
		zap.String("to", updated.Status))

	shared.JSON(w, http.StatusOK, transitionResponse{Changed: true, Certificate: updated})
}
