// internal/app/features/certificates/stats.go
package certificates

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/domain/lifecycle"
)

type statsResponse struct {
	OrganizationID string           `json:"organization_id"`
	Counts         map[string]int64 `json:"counts"`
	Total          int64            `json:"total"`
}

// ServeStats handles GET /certificates/stats: per-status counts for one
// organization. All five lifecycle states appear, zero-valued when empty.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.resolveOrgScope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	counts, err := h.Certs.CountByStatus(ctx, orgID)
	if err != nil {
		h.Log.Error("certificates: stats query failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	resp := statsResponse{
		OrganizationID: orgID.Hex(),
		Counts:         make(map[string]int64, 5),
	}
	for _, s := range []lifecycle.Status{
		lifecycle.StatusDraft,
		lifecycle.StatusPending,
		lifecycle.StatusActive,
		lifecycle.StatusExpired,
		lifecycle.StatusCancelled,
	} {
		n := counts[string(s)]
		resp.Counts[string(s)] = n
		resp.Total += n
	}

	shared.JSON(w, http.StatusOK, resp)
}
