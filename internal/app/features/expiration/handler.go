// internal/app/features/expiration/handler.go

// Package expiration exposes manual expiration runs over HTTP. Scheduled
// sweeps live in the workers package; both drive the same processor, so
// the per-organization run lock and the last-run record are shared.
package expiration

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	organizationstore "github.com/coverdesk/coverdesk/internal/app/store/organizations"
	"github.com/coverdesk/coverdesk/internal/app/system/authz"
	"github.com/coverdesk/coverdesk/internal/app/system/expiry"
	"github.com/coverdesk/coverdesk/internal/app/system/limits"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
)

// Handler triggers expiration runs and reports on past ones.
type Handler struct {
	Log       *zap.Logger
	Orgs      *organizationstore.Store
	Processor *expiry.Processor
}

// NewHandler wires the handler to a shared processor. The processor must be
// the same instance the background workers use, or the overlap guard and
// last-run reporting fall apart.
func NewHandler(db *mongo.Database, proc *expiry.Processor, logger *zap.Logger) *Handler {
	return &Handler{
		Log:       logger,
		Orgs:      organizationstore.New(db),
		Processor: proc,
	}
}

type triggerRequest struct {
	// Reason is free text recorded in the audit trail, "why was this run
	// triggered by hand".
	Reason string `json:"reason"`
}

// HandleTrigger handles POST /organizations/{orgID}/expiration. The run
// executes synchronously and the full result is returned. Scheduled sweeps
// skip inactive organizations; a manual trigger does not, so an admin can
// still clean up a tenant that is being wound down.
func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	orgID, err := shared.ObjectIDParam(r, "orgID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if !authz.CanAccessOrg(r, orgID) {
		shared.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	// The body is optional; an empty POST is a run with a default reason.
	var req triggerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := shared.Decode(w, r, &req, limits.MaxJSONBodySize); err != nil {
			shared.Error(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual trigger"
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	if _, err := h.Orgs.GetByID(ctx, orgID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			shared.Error(w, http.StatusNotFound, "organization not found")
			return
		}
		h.Log.Error("expiration: organization lookup failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	var actor *primitive.ObjectID
	if _, _, userID, ok := authz.UserCtx(r); ok && !userID.IsZero() {
		actor = &userID
	}

	result, err := h.Processor.Run(ctx, orgID, expiry.TriggerManual, actor, reason)
	if err != nil {
		switch {
		case errors.Is(err, expiry.ErrRunInProgress):
			shared.Error(w, http.StatusConflict, "an expiration run is already in progress for this organization")
		case errors.Is(err, expiry.ErrMissingOrganizationScope):
			shared.Error(w, http.StatusBadRequest, "organization scope required")
		default:
			h.Log.Error("expiration: manual run failed",
				zap.String("organization_id", orgID.Hex()),
				zap.Error(err))
			shared.Error(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	shared.JSON(w, http.StatusOK, result)
}

// ServeLastRun handles GET /organizations/{orgID}/expiration/last. Run
// results are held in memory, so a restart clears them; 404 means no run
// has completed since the process started.
func (h *Handler) ServeLastRun(w http.ResponseWriter, r *http.Request) {
	orgID, err := shared.ObjectIDParam(r, "orgID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if !authz.CanAccessOrg(r, orgID) {
		shared.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	result, ok := h.Processor.LastRun(orgID)
	if !ok {
		shared.Error(w, http.StatusNotFound, "no expiration run recorded for this organization")
		return
	}

	shared.JSON(w, http.StatusOK, result)
}
