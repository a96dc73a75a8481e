// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	userstore "github.com/coverdesk/coverdesk/internal/app/store/users"
	"github.com/coverdesk/coverdesk/internal/app/system/auditlog"
	"github.com/coverdesk/coverdesk/internal/app/system/auth"
	"github.com/coverdesk/coverdesk/internal/app/system/authutil"
	"github.com/coverdesk/coverdesk/internal/app/system/limits"
	"github.com/coverdesk/coverdesk/internal/app/system/ratelimit"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

type Handler struct {
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	Audit      *auditlog.Logger
	Limiter    *ratelimit.LoginLimiter
	Log        *zap.Logger
}

func NewHandler(users *userstore.Store, sm *auth.SessionManager, audit *auditlog.Logger, limiter *ratelimit.LoginLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		SessionMgr: sm,
		Audit:      audit,
		Limiter:    limiter,
		Log:        logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// ServeLogin handles POST /login.
//
// Credential failures are reported with one uniform message so the response
// does not reveal whether the email exists; the audit log records the real
// reason.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := shared.Decode(w, r, &req, limits.MaxLoginBodySize); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	email := authutil.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		shared.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if ok, reason := h.Limiter.Check(r, email); !ok {
		h.Audit.LoginFailedRateLimit(ctx, r, email, reason)
		shared.Error(w, http.StatusTooManyRequests, reason)
		return
	}

	user, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.Audit.LoginFailedUserNotFound(ctx, r, email)
			shared.Error(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.Log.Error("login: user lookup failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	if user.Status == models.UserDisabled {
		h.Audit.LoginFailedUserDisabled(ctx, r, user.ID, user.OrganizationID, email)
		shared.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if user.PasswordHash == "" || !authutil.CheckPassword(req.Password, user.PasswordHash) {
		h.Audit.LoginFailedWrongPassword(ctx, r, user.ID, user.OrganizationID, email)
		shared.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	su := &auth.SessionUser{
		ID:    user.ID.Hex(),
		Name:  user.FullName,
		Email: user.Email,
		Role:  user.Role,
	}
	if user.OrganizationID != nil {
		su.OrganizationID = user.OrganizationID.Hex()
	}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		h.Log.Error("login: session save failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	h.Limiter.ResetEmail(email)
	h.Audit.LoginSuccess(ctx, r, user.ID, user.OrganizationID, "password", email)
	h.Log.Info("user signed in",
		zap.String("user_id", user.ID.Hex()),
		zap.String("role", user.Role))

	shared.JSON(w, http.StatusOK, loginResponse{
		ID:             su.ID,
		Name:           su.Name,
		Email:          su.Email,
		Role:           su.Role,
		OrganizationID: su.OrganizationID,
	})
}
