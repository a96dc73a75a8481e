// internal/app/features/certificates/endorsement.go
package certificates

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	"github.com/coverdesk/coverdesk/internal/app/policy/certpolicy"
	"github.com/coverdesk/coverdesk/internal/app/system/authz"
	"github.com/coverdesk/coverdesk/internal/app/system/htmlsanitize"
	"github.com/coverdesk/coverdesk/internal/app/system/limits"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/domain/lifecycle"
)

// endorsementRequest updates or clears the endorsement. An empty
// description with no effective date clears it.
type endorsementRequest struct {
	Description   string     `json:"description"`
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
}

// HandleEndorsement handles PUT /certificates/{certID}/endorsement. The
// description may carry limited markup; it is sanitized before storage.
// Once a recorded endorsement's effective date has passed, the fields are
// frozen and further writes are a 409.
func (h *Handler) HandleEndorsement(w http.ResponseWriter, r *http.Request) {
	cert, ok := h.loadCert(w, r)
	if !ok {
		return
	}

	if !certpolicy.CanModify(r, cert) {
		shared.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	var req endorsementRequest
	if err := shared.Decode(w, r, &req, limits.MaxJSONBodySize); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	description := htmlsanitize.Sanitize(strings.TrimSpace(req.Description))
	if description == "" && req.EffectiveDate != nil {
		shared.Error(w, http.StatusBadRequest, "an endorsement with an effective date needs a description")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	updated, err := h.Certs.UpdateEndorsement(ctx, cert.ID, description, req.EffectiveDate)
	if err != nil {
		var immutable *lifecycle.ImmutableFieldViolationError
		if errors.As(err, &immutable) {
			shared.Error(w, http.StatusConflict, "endorsement is frozen once its effective date has passed")
			return
		}
		h.Log.Error("certificates: endorsement update failed", zap.Error(err),
			zap.String("certificate_id", cert.ID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	role, _, actorID, _ := authz.UserCtx(r)
	h.Audit.EndorsementUpdated(ctx, r, actorID, cert.ID, cert.OrganizationID, role)
	h.Log.Info("certificate endorsement updated",
		zap.String("certificate_id", cert.ID.Hex()))

	shared.JSON(w, http.StatusOK, updated)
}
