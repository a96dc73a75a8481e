// internal/app/features/certificates/expiring.go
package certificates

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	"github.com/coverdesk/coverdesk/internal/app/policy/certpolicy"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/domain/lifecycle"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

const (
	defaultExpiringDays = 30
	maxExpiringDays     = 365
)

type expiringResponse struct {
	OrganizationID string               `json:"organization_id"`
	Days           int                  `json:"days"`
	Certificates   []models.Certificate `json:"certificates"`
	Total          int                  `json:"total"`
}

// ServeExpiring handles GET /certificates/expiring: active certificates
// whose coverage window closes within the next days (default 30), soonest
// first. A reporting view only; expiration itself runs by membership year,
// never by these dates.
func (h *Handler) ServeExpiring(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.resolveOrgScope(w, r)
	if !ok {
		return
	}

	days := defaultExpiringDays
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxExpiringDays {
			shared.Error(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	includeHidden := false
	if v := r.URL.Query().Get("include_hidden"); v == "1" || v == "true" {
		includeHidden = certpolicy.CanSeeHidden(r)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	now := time.Now().UTC()
	rows, err := h.Certs.ListByExpiryRange(ctx, orgID, now, now.AddDate(0, 0, days))
	if err != nil {
		h.Log.Error("certificates: expiring query failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	certs := make([]models.Certificate, 0, len(rows))
	for _, c := range rows {
		if c.Status != string(lifecycle.StatusActive) {
			continue
		}
		if c.Hidden && !includeHidden {
			continue
		}
		certs = append(certs, c)
	}

	shared.JSON(w, http.StatusOK, expiringResponse{
		OrganizationID: orgID.Hex(),
		Days:           days,
		Certificates:   certs,
		Total:          len(certs),
	})
}
