// internal/app/features/certificates/get.go
package certificates

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	"github.com/coverdesk/coverdesk/internal/app/policy/certpolicy"
)

// ServeGet handles GET /certificates/{certID}. Hidden certificates are
// readable by id; hidden only changes the listing default.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	cert, ok := h.loadCert(w, r)
	if !ok {
		return
	}

	if !certpolicy.CanView(r, cert) {
		shared.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	shared.JSON(w, http.StatusOK, cert)
}

// ServeGetByNumber handles GET /certificates/number/{number}: lookup by the
// human-readable certificate number. Numbers are sequential per
// organization, so the caller's organization scope picks which sequence.
func (h *Handler) ServeGetByNumber(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.resolveOrgScope(w, r)
	if !ok {
		return
	}

	number, err := strconv.ParseInt(chi.URLParam(r, "number"), 10, 64)
	if err != nil || number < 1 {
		shared.Error(w, http.StatusBadRequest, "invalid certificate number")
		return
	}

	cert, err := h.Certs.GetByNumber(r.Context(), orgID, number)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			shared.Error(w, http.StatusNotFound, "certificate not found")
			return
		}
		h.Log.Error("certificates: number lookup failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	if !certpolicy.CanView(r, cert) {
		shared.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	shared.JSON(w, http.StatusOK, cert)
}
