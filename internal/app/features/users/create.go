// internal/app/features/users/create.go
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

type createRequest struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Password       string `json:"password,omitempty"`
	AuthMethod     string `json:"auth_method,omitempty"`
	Role           string `json:"role"`
	Status         string `json:"status,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// HandleCreate handles POST /users. Password accounts need a password that
// clears the strength rules; Google accounts must not carry one. New users
// start active unless the request says otherwise.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := shared.Decode(w, r, &req, limits.MaxJSONBodySize); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	fullName := normalize.Name(req.FullName)
	email := normalize.Email(req.Email)
	role := normalize.Role(req.Role)
	authMethod := normalize.AuthMethod(req.AuthMethod)
	if authMethod == "" {
		authMethod = "password"
	}

	if fullName == "" {
		shared.Error(w, http.StatusBadRequest, "full_name is required")
		return
	}
	if email == "" {
		shared.Error(w, http.StatusBadRequest, "email is required")
		return
	}
	if !authutil.ValidEmail(email) {
		shared.Error(w, http.StatusBadRequest, "email is not a valid address")
		return
	}
	if !models.IsValidRole(role) {
		shared.Error(w, http.StatusBadRequest, "role must be admin, operator or viewer")
		return
	}
	if !models.IsEnabledAuthMethod(authMethod) {
		shared.Error(w, http.StatusBadRequest, "auth_method must be password or google")
		return
	}
	if req.Status != "" && !validUserStatus(req.Status) {
		shared.Error(w, http.StatusBadRequest, "status must be active or disabled")
		return
	}

	var passwordHash string
	switch authMethod {
	case "password":
		if req.Password == "" {
			shared.Error(w, http.StatusBadRequest, "password is required for password accounts")
			return
		}
		if err := authutil.ValidatePassword(req.Password); err != nil {
			shared.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		hash, err := authutil.HashPassword(req.Password)
		if err != nil {
			h.Log.Error("users: password hash failed", zap.Error(err))
			shared.Error(w, http.StatusInternalServerError, "something went wrong")
			return
		}
		passwordHash = hash
	case "google":
		if req.Password != "" {
			shared.Error(w, http.StatusBadRequest, "google accounts do not take a password")
			return
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "user create")
	defer cancel()

	// Admins are global; operators and viewers belong to one organization,
	// and that organization has to exist.
	var orgID *primitive.ObjectID
	orgParam := strings.TrimSpace(req.OrganizationID)
	if role == models.RoleAdmin {
		if orgParam != "" {
			shared.Error(w, http.StatusBadRequest, "admins are global; organization_id does not apply")
			return
		}
	} else {
		if orgParam == "" {
			shared.Error(w, http.StatusBadRequest, "operator and viewer accounts require organization_id")
			return
		}
		oid, err := primitive.ObjectIDFromHex(orgParam)
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

	created, err := h.Users.Create(ctx, models.User{
		FullName:       fullName,
		Email:          email,
		AuthMethod:     authMethod,
		PasswordHash:   passwordHash,
		Role:           role,
		Status:         req.Status,
		OrganizationID: orgID,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			shared.Error(w, http.StatusConflict, err.Error())
			return
		}
		h.Log.Error("users: create failed", zap.Error(err), zap.String("email", email))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	actorRole, _, actorID, _ := authz.UserCtx(r)
	h.Audit.UserCreated(ctx, r, actorID, created.ID, created.OrganizationID, actorRole, created.Role, created.AuthMethod)
	h.Log.Info("user created",
		zap.String("user_id", created.ID.Hex()),
		zap.String("role", created.Role),
		zap.String("email", created.Email))

	shared.JSON(w, http.StatusCreated, created)
}
