// internal/app/features/users/update.go
package users

import (
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	userstore "github.com/coverdesk/coverdesk/internal/app/store/users"
	"github.com/coverdesk/coverdesk/internal/app/system/authutil"
	"github.com/coverdesk/coverdesk/internal/app/system/authz"
	"github.com/coverdesk/coverdesk/internal/app/system/limits"
	"github.com/coverdesk/coverdesk/internal/app/system/normalize"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

type updateRequest struct {
	FullName       string `json:"full_name,omitempty"`
	Email          string `json:"email,omitempty"`
	AuthMethod     string `json:"auth_method,omitempty"`
	Role           string `json:"role,omitempty"`
	Status         string `json:"status,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// HandleUpdate handles PUT /users/{userID}. Only the fields present in the
// request change; empty fields keep their stored values. The combination
// after the update must still be coherent: an operator or viewer always
// ends up with an organization.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := shared.ObjectIDParam(r, "userID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updateRequest
	if err := shared.Decode(w, r, &req, limits.MaxJSONBodySize); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var changed []string
	for _, f := range []struct{ name, value string }{
		{"full_name", req.FullName},
		{"email", req.Email},
		{"auth_method", req.AuthMethod},
		{"role", req.Role},
		{"status", req.Status},
		{"organization_id", req.OrganizationID},
	} {
		if strings.TrimSpace(f.value) != "" {
			changed = append(changed, f.name)
		}
	}
	if len(changed) == 0 {
		shared.Error(w, http.StatusBadRequest, "nothing to update")
		return
	}

	role := normalize.Role(req.Role)
	if req.Role != "" && !models.IsValidRole(role) {
		shared.Error(w, http.StatusBadRequest, "role must be admin, operator or viewer")
		return
	}
	if req.Status != "" && !validUserStatus(normalize.Status(req.Status)) {
		shared.Error(w, http.StatusBadRequest, "status must be active or disabled")
		return
	}
	if req.AuthMethod != "" && !models.IsEnabledAuthMethod(normalize.AuthMethod(req.AuthMethod)) {
		shared.Error(w, http.StatusBadRequest, "auth_method must be password or google")
		return
	}

	actorRole, _, actorID, _ := authz.UserCtx(r)
	if actorID == userID && req.Role != "" && role != models.RoleAdmin {
		shared.Error(w, http.StatusBadRequest, "you cannot change your own role")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "user update")
	defer cancel()

	current, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			shared.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.Log.Error("users: load failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	var orgID *primitive.ObjectID
	if raw := strings.TrimSpace(req.OrganizationID); raw != "" {
		oid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			shared.Error(w, http.StatusBadRequest, "invalid organization_id")
			return
		}
		if _, err := h.Orgs.GetByID(ctx, oid); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				shared.Error(w, http.StatusBadRequest, "organization not found")
				return
			}
			h.Log.Error("users: organization check failed", zap.Error(err))
			shared.Error(w, http.StatusInternalServerError, "something went wrong")
			return
		}
		orgID = &oid
	}

	// What the document will look like after the partial update.
	effectiveRole := current.Role
	if req.Role != "" {
		effectiveRole = role
	}
	effectiveOrg := current.OrganizationID
	if orgID != nil {
		effectiveOrg = orgID
	}
	if (effectiveRole == models.RoleOperator || effectiveRole == models.RoleViewer) && effectiveOrg == nil {
		shared.Error(w, http.StatusBadRequest, "operator and viewer accounts require organization_id")
		return
	}

	if email := normalize.Email(req.Email); email != "" {
		if !authutil.ValidEmail(email) {
			shared.Error(w, http.StatusBadRequest, "email is not a valid address")
			return
		}
		taken, err := h.Users.EmailExistsForOther(ctx, email, userID)
		if err != nil {
			h.Log.Error("users: email check failed", zap.Error(err))
			shared.Error(w, http.StatusInternalServerError, "something went wrong")
			return
		}
		if taken {
			shared.Error(w, http.StatusConflict, userstore.ErrDuplicateEmail.Error())
			return
		}
	}

	err = h.Users.Update(ctx, userID, userstore.Update{
		FullName:       req.FullName,
		Email:          req.Email,
		AuthMethod:     req.AuthMethod,
		Role:           req.Role,
		Status:         req.Status,
		OrganizationID: orgID,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			shared.Error(w, http.StatusConflict, err.Error())
			return
		}
		h.Log.Error("users: update failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	updated, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		h.Log.Error("users: reload failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	h.Audit.UserUpdated(ctx, r, actorID, userID, updated.OrganizationID, actorRole, strings.Join(changed, ","))

	shared.JSON(w, http.StatusOK, updated)
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandleSetStatus handles PUT /users/{userID}/status. Disabling takes
// effect on the target's next request: the session loader stops resolving
// disabled users. Setting the status a user already has is a no-op.
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := shared.ObjectIDParam(r, "userID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var req statusRequest
	if err := shared.Decode(w, r, &req, limits.MaxJSONBodySize); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	status := normalize.Status(req.Status)
	if !validUserStatus(status) {
		shared.Error(w, http.StatusBadRequest, "status must be active or disabled")
		return
	}

	actorRole, _, actorID, _ := authz.UserCtx(r)
	if actorID == userID && status == models.UserDisabled {
		shared.Error(w, http.StatusBadRequest, "you cannot disable your own account")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "user status change")
	defer cancel()

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			shared.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.Log.Error("users: load failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if user.Status == status {
		shared.JSON(w, http.StatusOK, user)
		return
	}

	if err := h.Users.SetStatus(ctx, userID, status); err != nil {
		h.Log.Error("users: status change failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	if status == models.UserDisabled {
		h.Audit.UserDisabled(ctx, r, actorID, userID, user.OrganizationID, actorRole)
	} else {
		h.Audit.UserEnabled(ctx, r, actorID, userID, user.OrganizationID, actorRole)
	}
	h.Log.Info("user status changed",
		zap.String("user_id", userID.Hex()),
		zap.String("status", status))

	updated, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		h.Log.Error("users: reload failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	shared.JSON(w, http.StatusOK, updated)
}

type passwordRequest struct {
	Password string `json:"password"`
}

// HandleSetPassword handles PUT /users/{userID}/password, the
// administrative reset. The new password must clear the same strength
// rules as signup; Google accounts have nothing to reset.
func (h *Handler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	userID, err := shared.ObjectIDParam(r, "userID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var req passwordRequest
	if err := shared.Decode(w, r, &req, limits.MaxJSONBodySize); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := authutil.ValidatePassword(req.Password); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "password reset")
	defer cancel()

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			shared.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.Log.Error("users: load failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if user.AuthMethod == "google" {
		shared.Error(w, http.StatusBadRequest, "google accounts do not take a password")
		return
	}

	hash, err := authutil.HashPassword(req.Password)
	if err != nil {
		h.Log.Error("users: password hash failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if err := h.Users.SetPasswordHash(ctx, userID, hash); err != nil {
		h.Log.Error("users: password reset failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	actorRole, _, actorID, _ := authz.UserCtx(r)
	h.Audit.PasswordReset(ctx, r, actorID, userID, user.OrganizationID, actorRole)
	h.Log.Info("user password reset", zap.String("user_id", userID.Hex()))

	shared.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleDelete handles DELETE /users/{userID}. Audit events written by the
// deleted user keep their hex id; only the account goes away.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := shared.ObjectIDParam(r, "userID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	actorRole, _, actorID, _ := authz.UserCtx(r)
	if actorID == userID {
		shared.Error(w, http.StatusBadRequest, "you cannot delete your own account")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "user delete")
	defer cancel()

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			shared.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.Log.Error("users: load failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	deleted, err := h.Users.Delete(ctx, userID)
	if err != nil {
		h.Log.Error("users: delete failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if deleted == 0 {
		shared.Error(w, http.StatusNotFound, "user not found")
		return
	}

	h.Audit.UserDeleted(ctx, r, actorID, userID, user.OrganizationID, actorRole, user.Role)
	h.Log.Info("user deleted",
		zap.String("user_id", userID.Hex()),
		zap.String("role", user.Role))

	shared.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
