// internal/app/features/auditlog/handler.go

// Package auditlog is the admin-facing query API over the audit trail:
// filtered event listing, per-certificate lifecycle history, and recent
// failed logins. Events are written elsewhere (system/auditlog); this
// feature only reads.
package auditlog

import (
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/store/audit"
	organizationstore "github.com/coverdesk/coverdesk/internal/app/store/organizations"
	userstore "github.com/coverdesk/coverdesk/internal/app/store/users"
)

// Handler is the feature-level handler for audit queries.
type Handler struct {
	Log    *zap.Logger
	Events *audit.Store
	Users  *userstore.Store
	Orgs   *organizationstore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Log:    logger,
		Events: audit.New(db),
		Users:  userstore.New(db),
		Orgs:   organizationstore.New(db),
	}
}
