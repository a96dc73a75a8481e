// internal/app/features/organizations/handler.go

// Package organizations manages tenant associations and their
// membership-group year settings. It owns the whole /organizations path
// space; the expiration endpoints are mounted under /{orgID}/expiration
// from its router.
package organizations

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	organizationstore "github.com/coverdesk/coverdesk/internal/app/store/organizations"
	yearsettingstore "github.com/coverdesk/coverdesk/internal/app/store/yearsettings"
	"github.com/coverdesk/coverdesk/internal/app/system/auditlog"
	"github.com/coverdesk/coverdesk/internal/app/system/authz"
	"github.com/coverdesk/coverdesk/internal/app/system/limits"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

type Handler struct {
	Log      *zap.Logger
	Audit    *auditlog.Logger
	Orgs     *organizationstore.Store
	Settings *yearsettingstore.Store
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:      logger,
		Audit:    audit,
		Orgs:     organizationstore.New(db),
		Settings: yearsettingstore.New(db),
	}
}

type orgRequest struct {
	Name        string `json:"name"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	TimeZone    string `json:"time_zone,omitempty"`
	ContactInfo string `json:"contact_info,omitempty"`
	Status      string `json:"status,omitempty"`
}

func validStatus(s string) bool {
	return s == "" || s == models.OrgActive || s == models.OrgInactive
}

// validTimeZone accepts empty or any IANA zone name the binary's tzdata
// knows. The main package embeds tzdata, so this does not depend on the
// host having a zoneinfo directory.
func validTimeZone(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.LoadLocation(s)
	return err == nil
}

// HandleCreate handles POST /organizations. New organizations start active
// unless the request says otherwise.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req orgRequest
	if err := shared.Decode(w, r, &req, limits.MaxJSONBodySize); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		shared.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if !validStatus(req.Status) {
		shared.Error(w, http.StatusBadRequest, "status must be active or inactive")
		return
	}
	if !validTimeZone(strings.TrimSpace(req.TimeZone)) {
		shared.Error(w, http.StatusBadRequest, "time_zone must be an IANA zone name")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Orgs.Create(ctx, models.Organization{
		Name:        req.Name,
		City:        strings.TrimSpace(req.City),
		State:       strings.TrimSpace(req.State),
		TimeZone:    strings.TrimSpace(req.TimeZone),
		ContactInfo: strings.TrimSpace(req.ContactInfo),
		Status:      req.Status,
	})
	if err != nil {
		if errors.Is(err, organizationstore.ErrDuplicateOrganization) {
			shared.Error(w, http.StatusConflict, err.Error())
			return
		}
		h.Log.Error("organizations: create failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	role, _, actorID, _ := authz.UserCtx(r)
	h.Audit.OrgCreated(ctx, r, actorID, created.ID, role, created.Name)
	h.Log.Info("organization created",
		zap.String("organization_id", created.ID.Hex()),
		zap.String("name", created.Name))

	shared.JSON(w, http.StatusCreated, created)
}

type listResponse struct {
	Organizations []models.Organization `json:"organizations"`
	Total         int                   `json:"total"`
}

// HandleList handles GET /organizations. Admins see every organization,
// optionally filtered by status; everyone else sees only their own.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		orgs []models.Organization
		err  error
	)
	if authz.IsAdmin(r) {
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		if !validStatus(status) {
			shared.Error(w, http.StatusBadRequest, "status must be active or inactive")
			return
		}
		filter := bson.M{}
		if status != "" {
			filter["status"] = status
		}
		orgs, err = h.Orgs.Find(ctx, filter,
			options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}))
	} else {
		own := authz.UserOrgID(r)
		if own.IsZero() {
			shared.Error(w, http.StatusForbidden, "forbidden")
			return
		}
		orgs, err = h.Orgs.GetByIDs(ctx, []primitive.ObjectID{own})
	}
	if err != nil {
		h.Log.Error("organizations: list failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	if orgs == nil {
		orgs = []models.Organization{}
	}
	shared.JSON(w, http.StatusOK, listResponse{Organizations: orgs, Total: len(orgs)})
}

// HandleGet handles GET /organizations/{orgID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID, err := shared.ObjectIDParam(r, "orgID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if !authz.CanAccessOrg(r, orgID) {
		shared.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	org, err := h.Orgs.GetByID(r.Context(), orgID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			shared.Error(w, http.StatusNotFound, "organization not found")
			return
		}
		h.Log.Error("organizations: load failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	shared.JSON(w, http.StatusOK, org)
}

// HandleUpdate handles PUT /organizations/{orgID}. Only the fields present
// in the request change; empty fields keep their stored values.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	orgID, err := shared.ObjectIDParam(r, "orgID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var req orgRequest
	if err := shared.Decode(w, r, &req, limits.MaxJSONBodySize); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if !validStatus(req.Status) {
		shared.Error(w, http.StatusBadRequest, "status must be active or inactive")
		return
	}
	if !validTimeZone(strings.TrimSpace(req.TimeZone)) {
		shared.Error(w, http.StatusBadRequest, "time_zone must be an IANA zone name")
		return
	}

	var changed []string
	for _, f := range []struct{ name, value string }{
		{"name", req.Name},
		{"city", req.City},
		{"state", req.State},
		{"time_zone", req.TimeZone},
		{"contact_info", req.ContactInfo},
		{"status", req.Status},
	} {
		if strings.TrimSpace(f.value) != "" {
			changed = append(changed, f.name)
		}
	}
	if len(changed) == 0 {
		shared.Error(w, http.StatusBadRequest, "nothing to update")
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

	if name := strings.TrimSpace(req.Name); name != "" {
		taken, err := h.Orgs.NameExistsForOther(ctx, text.Fold(name), orgID)
		if err != nil {
			h.Log.Error("organizations: name check failed", zap.Error(err))
			shared.Error(w, http.StatusInternalServerError, "something went wrong")
			return
		}
		if taken {
			shared.Error(w, http.StatusConflict, organizationstore.ErrDuplicateOrganization.Error())
			return
		}
	}

	err = h.Orgs.Update(ctx, orgID, models.Organization{
		Name:        strings.TrimSpace(req.Name),
		City:        strings.TrimSpace(req.City),
		State:       strings.TrimSpace(req.State),
		TimeZone:    strings.TrimSpace(req.TimeZone),
		ContactInfo: strings.TrimSpace(req.ContactInfo),
		Status:      req.Status,
	})
	if err != nil {
		if errors.Is(err, organizationstore.ErrDuplicateOrganization) {
			shared.Error(w, http.StatusConflict, err.Error())
			return
		}
		h.Log.Error("organizations: update failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	updated, err := h.Orgs.GetByID(ctx, orgID)
	if err != nil {
		h.Log.Error("organizations: reload failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	role, _, actorID, _ := authz.UserCtx(r)
	h.Audit.OrgUpdated(ctx, r, actorID, orgID, role, strings.Join(changed, ","))

	shared.JSON(w, http.StatusOK, updated)
}

// HandleDelete handles DELETE /organizations/{orgID}. Deletion does not
// cascade: certificates and accounts keep their organization id and drop
// out of org-scoped reads.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	orgID, err := shared.ObjectIDParam(r, "orgID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	org, err := h.Orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			shared.Error(w, http.StatusNotFound, "organization not found")
			return
		}
		h.Log.Error("organizations: load failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	deleted, err := h.Orgs.Delete(ctx, orgID)
	if err != nil {
		h.Log.Error("organizations: delete failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if deleted == 0 {
		shared.Error(w, http.StatusNotFound, "organization not found")
		return
	}

	role, _, actorID, _ := authz.UserCtx(r)
	h.Audit.OrgDeleted(ctx, r, actorID, orgID, role, org.Name)
	h.Log.Info("organization deleted",
		zap.String("organization_id", orgID.Hex()),
		zap.String("name", org.Name))

	shared.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
