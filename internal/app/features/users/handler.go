// internal/app/features/users/handler.go

// Package users is the admin API for sign-in accounts: global admins plus
// the operators and viewers pinned to one organization. These are the
// people who run the system, not the insured members on the roster.
package users

import (
	"net/http"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/features/shared"
	organizationstore "github.com/coverdesk/coverdesk/internal/app/store/organizations"
	userstore "github.com/coverdesk/coverdesk/internal/app/store/users"
	"github.com/coverdesk/coverdesk/internal/app/system/auditlog"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

type Handler struct {
	Log   *zap.Logger
	Audit *auditlog.Logger
	Users *userstore.Store
	Orgs  *organizationstore.Store
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:   logger,
		Audit: audit,
		Users: userstore.New(db),
		Orgs:  organizationstore.New(db),
	}
}

func validUserStatus(s string) bool {
	return s == models.UserActive || s == models.UserDisabled
}

// queryInt parses a non-negative integer query parameter, using def when
// absent. Writes a 400 and returns false on garbage.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int64) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		shared.Error(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}
