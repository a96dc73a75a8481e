// internal/app/features/users/list.go
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
	"github.com/coverdesk/coverdesk/internal/app/system/normalize"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type listResponse struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total"`
}

// ServeList handles GET /users. Filters combine: role, status,
// organization_id, and q (a name prefix match against the folded name).
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := userstore.ListFilter{
		Role:       strings.TrimSpace(q.Get("role")),
		Status:     strings.TrimSpace(q.Get("status")),
		NamePrefix: strings.TrimSpace(q.Get("q")),
	}
	if filter.Role != "" && !models.IsValidRole(filter.Role) {
		shared.Error(w, http.StatusBadRequest, "role must be admin, operator or viewer")
		return
	}
	if filter.Status != "" && !validUserStatus(filter.Status) {
		shared.Error(w, http.StatusBadRequest, "status must be active or disabled")
		return
	}
	if raw := normalize.OrgID(q.Get("organization_id")); raw != "" {
		orgID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			shared.Error(w, http.StatusBadRequest, "invalid organization_id")
			return
		}
		filter.OrganizationID = orgID
	}

	limit, ok := queryInt(w, r, "limit", defaultListLimit)
	if !ok {
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	filter.Limit = limit
	filter.Offset = offset

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "user list")
	defer cancel()

	total, err := h.Users.Count(ctx, filter)
	if err != nil {
		h.Log.Error("users: count failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	list, err := h.Users.List(ctx, filter)
	if err != nil {
		h.Log.Error("users: list failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if list == nil {
		list = []models.User{}
	}

	shared.JSON(w, http.StatusOK, listResponse{Users: list, Total: total})
}

// ServeGet handles GET /users/{userID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	userID, err := shared.ObjectIDParam(r, "userID")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "user lookup")
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

	shared.JSON(w, http.StatusOK, user)
}
