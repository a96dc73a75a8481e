// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"

	userstore "github.com/coverdesk/coverdesk/internal/app/store/users"
	"github.com/coverdesk/coverdesk/internal/app/system/authutil"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It seeds
// the initial admin user on an empty install and launches the background
// sweep jobs.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := ensureAdminUser(ctx, deps, appCfg.AdminEmail, appCfg.AdminPassword, logger); err != nil {
		return err
	}

	if deps.Workers != nil {
		deps.Workers.Start()
	} else {
		logger.Info("background workers disabled; expiration sweeps must be triggered manually")
	}

	return nil
}

// ensureAdminUser seeds the first admin account. It only acts when the
// users collection is empty and admin_email is configured, so an existing
// deployment is never touched and the credentials can stay in config
// after first boot without effect.
func ensureAdminUser(ctx context.Context, deps DBDeps, email, password string, logger *zap.Logger) error {
	if email == "" {
		return nil
	}

	users := userstore.New(deps.MongoDatabase)

	count, err := users.Count(ctx, userstore.ListFilter{})
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		logger.Warn("admin_email is set but admin_password is empty; skipping admin bootstrap",
			zap.String("email", email))
		return nil
	}
	if err := authutil.ValidatePassword(password); err != nil {
		return fmt.Errorf("admin_password rejected: %w", err)
	}

	hash, err := authutil.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	u, err := users.Create(ctx, models.User{
		FullName:     "Administrator",
		Email:        email,
		AuthMethod:   "password",
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Status:       models.UserActive,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	logger.Info("seeded initial admin user",
		zap.String("email", u.Email),
		zap.String("user_id", u.ID.Hex()))
	return nil
}
