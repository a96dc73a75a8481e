// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/coverdesk/coverdesk/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (login, logout, password).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Admin controls logging for admin action events (user/org CRUD, membership year changes).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Admin string
	// Lifecycle controls logging for certificate lifecycle events
	// (creation, status transitions, endorsements, access markers).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Lifecycle string
	// Expiration controls logging for expiration processor events
	// (run start/completion, per-certificate expirations, item errors).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Expiration string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// Fall back to RemoteAddr (strip port)
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.OrganizationID != nil {
		fields = append(fields, zap.String("organization_id", event.OrganizationID.Hex()))
	}
	if event.CertificateID != nil {
		fields = append(fields, zap.String("certificate_id", event.CertificateID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Logging destination is controlled by config: "all", "db", "log", or "off".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	// Determine which config setting applies based on event category
	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	case audit.CategoryLifecycle:
		setting = l.config.Lifecycle
	case audit.CategoryExpiration:
		setting = l.config.Expiration
	default:
		setting = "all" // Default to logging everything for unknown categories
	}

	// Check if logging is disabled for this category
	if setting == "off" {
		return
	}

	// Log to zap if configured
	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	// Log to MongoDB if configured
	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, orgID *primitive.ObjectID, authMethod, email string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAuth,
		EventType:      audit.EventLoginSuccess,
		UserID:         &userID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"auth_method": authMethod,
			"email":       email,
		},
	})
}

// LoginFailedUserNotFound logs a failed login due to user not found.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserNotFound,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "user not found",
		Details: map[string]string{
			"attempted_email": attemptedEmail,
		},
	})
}

// LoginFailedWrongPassword logs a failed login due to wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, orgID *primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAuth,
		EventType:      audit.EventLoginFailedWrongPassword,
		UserID:         &userID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        false,
		FailureReason:  "wrong password",
		Details: map[string]string{
			"email": email,
		},
	})
}

// LoginFailedUserDisabled logs a failed login due to disabled account.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, r *http.Request, userID primitive.ObjectID, orgID *primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAuth,
		EventType:      audit.EventLoginFailedUserDisabled,
		UserID:         &userID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        false,
		FailureReason:  "user disabled",
		Details: map[string]string{
			"email": email,
		},
	})
}

// LoginFailedRateLimit logs a failed login due to rate limiting.
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, email, limitType string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedRateLimit,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "rate limit exceeded",
		Details: map[string]string{
			"email":      email,
			"limit_type": limitType,
		},
	})
}

// Logout logs a user logout.
// Accepts string IDs from SessionUser and converts them to ObjectIDs.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr, orgIDStr string) {
	var userID *primitive.ObjectID
	var orgID *primitive.ObjectID

	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		userID = &oid
	}
	if oid, err := primitive.ObjectIDFromHex(orgIDStr); err == nil {
		orgID = &oid
	}

	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAuth,
		EventType:      audit.EventLogout,
		UserID:         userID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
	})
}

// PasswordChanged logs a password change.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID primitive.ObjectID, orgID *primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAuth,
		EventType:      audit.EventPasswordChanged,
		UserID:         &userID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
	})
}

// --- Admin Events ---

// UserCreated logs when an admin creates a user.
func (l *Logger) UserCreated(ctx context.Context, r *http.Request, actorID, targetUserID primitive.ObjectID, orgID *primitive.ObjectID, actorRole, role, authMethod string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventUserCreated,
		UserID:         &targetUserID,
		ActorID:        &actorID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role":  actorRole,
			"role":        role,
			"auth_method": authMethod,
		},
	})
}

// UserUpdated logs when an admin updates a user.
func (l *Logger) UserUpdated(ctx context.Context, r *http.Request, actorID, targetUserID primitive.ObjectID, orgID *primitive.ObjectID, actorRole, fieldsChanged string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventUserUpdated,
		UserID:         &targetUserID,
		ActorID:        &actorID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role":     actorRole,
			"fields_changed": fieldsChanged,
		},
	})
}

// UserDisabled logs when an admin disables a user account.
func (l *Logger) UserDisabled(ctx context.Context, r *http.Request, actorID, targetUserID primitive.ObjectID, orgID *primitive.ObjectID, actorRole string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventUserDisabled,
		UserID:         &targetUserID,
		ActorID:        &actorID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role": actorRole,
		},
	})
}

// UserEnabled logs when an admin enables a user account.
func (l *Logger) UserEnabled(ctx context.Context, r *http.Request, actorID, targetUserID primitive.ObjectID, orgID *primitive.ObjectID, actorRole string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventUserEnabled,
		UserID:         &targetUserID,
		ActorID:        &actorID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role": actorRole,
		},
	})
}

// PasswordReset logs an administrative password reset. Unlike
// PasswordChanged this carries the acting admin; the target did not
// initiate it.
func (l *Logger) PasswordReset(ctx context.Context, r *http.Request, actorID, targetUserID primitive.ObjectID, orgID *primitive.ObjectID, actorRole string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventPasswordReset,
		UserID:         &targetUserID,
		ActorID:        &actorID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role": actorRole,
		},
	})
}

// UserDeleted logs when an admin deletes a user.
func (l *Logger) UserDeleted(ctx context.Context, r *http.Request, actorID, targetUserID primitive.ObjectID, orgID *primitive.ObjectID, actorRole, role string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventUserDeleted,
		UserID:         &targetUserID,
		ActorID:        &actorID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role": actorRole,
			"role":       role,
		},
	})
}

// --- Organization Events ---

// OrgCreated logs when an admin creates an organization.
func (l *Logger) OrgCreated(ctx context.Context, r *http.Request, actorID, orgID primitive.ObjectID, actorRole, orgName string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventOrgCreated,
		ActorID:        &actorID,
		OrganizationID: &orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role": actorRole,
			"org_name":   orgName,
		},
	})
}

// OrgUpdated logs when an admin updates an organization.
func (l *Logger) OrgUpdated(ctx context.Context, r *http.Request, actorID, orgID primitive.ObjectID, actorRole, fieldsChanged string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventOrgUpdated,
		ActorID:        &actorID,
		OrganizationID: &orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role":     actorRole,
			"fields_changed": fieldsChanged,
		},
	})
}

// OrgDeleted logs when an admin deletes an organization.
func (l *Logger) OrgDeleted(ctx context.Context, r *http.Request, actorID, orgID primitive.ObjectID, actorRole, orgName string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventOrgDeleted,
		ActorID:        &actorID,
		OrganizationID: &orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role": actorRole,
			"org_name":   orgName,
		},
	})
}

// YearSet logs when an admin changes the active membership year for a group.
func (l *Logger) YearSet(ctx context.Context, r *http.Request, actorID, orgID primitive.ObjectID, actorRole, groupLabel, year string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventYearSet,
		ActorID:        &actorID,
		OrganizationID: &orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role":  actorRole,
			"group_label": groupLabel,
			"year":        year,
		},
	})
}

// AccountCreated logs when an admin or operator creates a member account.
func (l *Logger) AccountCreated(ctx context.Context, r *http.Request, actorID, orgID primitive.ObjectID, actorRole, businessID string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventAccountCreated,
		ActorID:        &actorID,
		OrganizationID: &orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role":  actorRole,
			"business_id": businessID,
		},
	})
}

// RosterImported logs the outcome of a CSV roster import. One event per
// upload; per-row failures are returned to the caller, not audited.
func (l *Logger) RosterImported(ctx context.Context, r *http.Request, actorID, orgID primitive.ObjectID, actorRole string, created, updated, failed int) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventRosterImported,
		ActorID:        &actorID,
		OrganizationID: &orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role": actorRole,
			"created":    intToString(created),
			"updated":    intToString(updated),
			"failed":     intToString(failed),
		},
	})
}

// --- Certificate Lifecycle Events ---

// CertificateCreated logs when a certificate is issued.
func (l *Logger) CertificateCreated(ctx context.Context, r *http.Request, actorID, certID, orgID primitive.ObjectID, actorRole string, certificateNumber int64, status string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryLifecycle,
		EventType:      audit.EventCertificateCreated,
		ActorID:        &actorID,
		CertificateID:  &certID,
		OrganizationID: &orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role":         actorRole,
			"certificate_number": int64ToString(certificateNumber),
			"status":             status,
		},
	})
}

// StatusTransition logs an applied certificate status transition.
func (l *Logger) StatusTransition(ctx context.Context, r *http.Request, actorID, certID, orgID primitive.ObjectID, actorRole, from, to string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryLifecycle,
		EventType:      audit.EventStatusTransition,
		ActorID:        &actorID,
		CertificateID:  &certID,
		OrganizationID: &orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role": actorRole,
			"from":       from,
			"to":         to,
		},
	})
}

// TransitionRejected logs a certificate status transition that was refused.
func (l *Logger) TransitionRejected(ctx context.Context, r *http.Request, actorID, certID, orgID primitive.ObjectID, actorRole, from, to, reason string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryLifecycle,
		EventType:      audit.EventTransitionRejected,
		ActorID:        &actorID,
		CertificateID:  &certID,
		OrganizationID: &orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        false,
		FailureReason:  reason,
		Details: map[string]string{
			"actor_role": actorRole,
			"from":       from,
			"to":         to,
		},
	})
}

// EndorsementUpdated logs a change to a certificate's endorsement fields.
func (l *Logger) EndorsementUpdated(ctx context.Context, r *http.Request, actorID, certID, orgID primitive.ObjectID, actorRole string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryLifecycle,
		EventType:      audit.EventEndorsementUpdated,
		ActorID:        &actorID,
		CertificateID:  &certID,
		OrganizationID: &orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role": actorRole,
		},
	})
}

// AccessMarkersUpdated logs a change to a certificate's access markers.
func (l *Logger) AccessMarkersUpdated(ctx context.Context, r *http.Request, actorID, certID, orgID primitive.ObjectID, actorRole string, restricted, hidden bool) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryLifecycle,
		EventType:      audit.EventAccessMarkersUpdated,
		ActorID:        &actorID,
		CertificateID:  &certID,
		OrganizationID: &orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"actor_role":        actorRole,
			"restricted_access": boolToString(restricted),
			"hidden":            boolToString(hidden),
		},
	})
}

// --- Expiration Processor Events ---
//
// Expiration events carry no *http.Request: runs are started by the scheduler
// or by an API trigger, and item-level events always originate inside the
// processor. Manually triggered runs carry the triggering user as ActorID.

// ExpirationRunStarted logs the start of an expiration run for an organization.
func (l *Logger) ExpirationRunStarted(ctx context.Context, orgID primitive.ObjectID, actorID *primitive.ObjectID, reason string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryExpiration,
		EventType:      audit.EventExpirationRunStarted,
		ActorID:        actorID,
		OrganizationID: &orgID,
		Success:        true,
		Details: map[string]string{
			"reason": reason,
		},
	})
}

// ExpirationRunCompleted logs the completion of an expiration run with its
// summary counts.
func (l *Logger) ExpirationRunCompleted(ctx context.Context, orgID primitive.ObjectID, reason string, checked, expired, skipped, errorCount int) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryExpiration,
		EventType:      audit.EventExpirationRunCompleted,
		OrganizationID: &orgID,
		Success:        true,
		Details: map[string]string{
			"reason":  reason,
			"checked": intToString(checked),
			"expired": intToString(expired),
			"skipped": intToString(skipped),
			"errors":  intToString(errorCount),
		},
	})
}

// ExpirationRunFailed logs an expiration run that could not complete.
func (l *Logger) ExpirationRunFailed(ctx context.Context, orgID primitive.ObjectID, reason string, runErr error) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryExpiration,
		EventType:      audit.EventExpirationRunFailed,
		OrganizationID: &orgID,
		Success:        false,
		FailureReason:  runErr.Error(),
		Details: map[string]string{
			"reason": reason,
		},
	})
}

// CertificateExpired logs an individual certificate expired by the processor.
func (l *Logger) CertificateExpired(ctx context.Context, orgID, certID primitive.ObjectID, membershipYear, groupLabel string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryExpiration,
		EventType:      audit.EventCertificateExpired,
		CertificateID:  &certID,
		OrganizationID: &orgID,
		Success:        true,
		Details: map[string]string{
			"membership_year": membershipYear,
			"group_label":     groupLabel,
		},
	})
}

// ExpirationItemError logs a per-certificate failure inside an expiration run.
// The run itself continues; the error is recorded here and in the run summary.
func (l *Logger) ExpirationItemError(ctx context.Context, orgID, certID primitive.ObjectID, itemErr error) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryExpiration,
		EventType:      audit.EventExpirationItemError,
		CertificateID:  &certID,
		OrganizationID: &orgID,
		Success:        false,
		FailureReason:  itemErr.Error(),
	})
}

// --- Helper functions ---

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func intToString(i int) string {
	return strconv.Itoa(i)
}

func int64ToString(i int64) string {
	return strconv.FormatInt(i, 10)
}
