// internal/app/features/organizations/year.go
package organizations

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	"github.com/coverdesk/coverdesk/internal/app/system/authz"
	"github.com/coverdesk/coverdesk/internal/app/system/limits"
	"github.com/coverdesk/coverdesk/internal/app/system/normalize"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/domain/models"
	"github.com/coverdesk/coverdesk/internal/domain/years"
)

type groupsResponse struct {
	Groups []models.YearSetting `json:"groups"`
	Total  int                  `json:"total"`
}

// ServeGroupYears handles GET /organizations/{orgID}/groups: the year
// settings for every membership group the organization has configured.
func (h *Handler) ServeGroupYears(w http.ResponseWriter, r *http.Request) {
	orgID, err := shared.ObjectIDParam(r, "orgID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if !authz.CanAccessOrg(r, orgID) {
		shared.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	settings, err := h.Settings.ListByOrg(r.Context(), orgID)
	if err != nil {
		h.Log.Error("organizations: group settings list failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	if settings == nil {
		settings = []models.YearSetting{}
	}
	shared.JSON(w, http.StatusOK, groupsResponse{Groups: settings, Total: len(settings)})
}

type setYearRequest struct {
	ActiveYear string `json:"active_year"`

	// Optional explicit cycle bounds. When absent they are derived from
	// the label with the association's July-through-June convention.
	YearStart *time.Time `json:"year_start,omitempty"`
	YearEnd   *time.Time `json:"year_end,omitempty"`
}

// yearBounds returns the default coverage window for a membership-year
// label the caller has already validated.
func yearBounds(label string) (time.Time, time.Time) {
	start, _ := years.Parse(label)
	return time.Date(start, time.July, 1, 0, 0, 0, 0, time.UTC),
		time.Date(start+1, time.June, 30, 0, 0, 0, 0, time.UTC)
}

// HandleSetYear handles PUT /organizations/{orgID}/groups/{label}/year.
// Flipping a group's active year is the switch that makes the expiration
// processor start expiring the previous year's certificates for that
// group, so it is restricted to lifecycle privilege and audited.
func (h *Handler) HandleSetYear(w http.ResponseWriter, r *http.Request) {
	orgID, err := shared.ObjectIDParam(r, "orgID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if !authz.CanAccessOrg(r, orgID) {
		shared.Error(w, http.StatusForbidden, "forbidden")
		return
	}
	label := normalize.GroupLabel(chi.URLParam(r, "label"))
	if label == "" {
		shared.Error(w, http.StatusBadRequest, "group label is required")
		return
	}

	var req setYearRequest
	if err := shared.Decode(w, r, &req, limits.MaxJSONBodySize); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ActiveYear = normalize.MembershipYear(req.ActiveYear)
	if !years.ValidLabel(req.ActiveYear) {
		shared.Error(w, http.StatusBadRequest, "active_year must look like 2025-2026")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Orgs.GetByID(ctx, orgID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			shared.Error(w, http.StatusNotFound, "organization not found")
			return
		}
		h.Log.Error("organizations: load failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	start, end := yearBounds(req.ActiveYear)
	if req.YearStart != nil {
		start = req.YearStart.UTC()
	}
	if req.YearEnd != nil {
		end = req.YearEnd.UTC()
	}
	if !end.After(start) {
		shared.Error(w, http.StatusBadRequest, "year_start must be before year_end")
		return
	}

	if err := h.Settings.SetActiveYear(ctx, orgID, label, req.ActiveYear, start, end); err != nil {
		h.Log.Error("organizations: set active year failed",
			zap.String("organization_id", orgID.Hex()),
			zap.String("group_label", label),
			zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	role, _, actorID, _ := authz.UserCtx(r)
	h.Audit.YearSet(ctx, r, actorID, orgID, role, label, req.ActiveYear)
	h.Log.Info("group year set",
		zap.String("organization_id", orgID.Hex()),
		zap.String("group_label", label),
		zap.String("active_year", req.ActiveYear))

	setting, err := h.Settings.Get(ctx, orgID, label)
	if err != nil {
		h.Log.Error("organizations: reload group setting failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	shared.JSON(w, http.StatusOK, setting)
}
