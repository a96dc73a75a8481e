// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/coverdesk/coverdesk/internal/app/system/auth"
	"github.com/coverdesk/coverdesk/internal/domain/lifecycle"
	"github.com/coverdesk/coverdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), name, Mongo ObjectID, and a
// found flag. If no user is present in context or the user ID is malformed,
// it returns "visitor", "", NilObjectID, false. This ensures callers can
// trust that ok=true means a valid, authenticated user with a valid
// ObjectID.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session - fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// IsAdmin reports whether the current request's user is an admin.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleAdmin
}

// IsOperator reports whether the current request's user is an operator.
func IsOperator(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleOperator
}

// IsViewer reports whether the current request's user is a viewer.
func IsViewer(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleViewer
}

// CanManageLifecycle reports whether the current user can apply status
// transitions, write endorsements, or trigger expiration runs. Admins and
// operators can; viewers cannot.
func CanManageLifecycle(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && (role == models.RoleAdmin || role == models.RoleOperator)
}

// LifecyclePrivilege maps the current user's role onto the state machine's
// privilege levels. PrivilegeSystem is never derived from a request; only
// the expiration processor runs under it.
func LifecyclePrivilege(r *http.Request) lifecycle.Privilege {
	if CanManageLifecycle(r) {
		return lifecycle.PrivilegeLifecycle
	}
	return lifecycle.PrivilegeNone
}

// UserOrgID returns the current user's organization ID as an ObjectID.
// Returns NilObjectID if the user is not signed in or has no organization.
func UserOrgID(r *http.Request) primitive.ObjectID {
	user, ok := auth.CurrentUser(r)
	if !ok || user.OrganizationID == "" {
		return primitive.NilObjectID
	}
	oid, err := primitive.ObjectIDFromHex(user.OrganizationID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

// CanAccessOrg reports whether the current user can access the given
// organization. Admins can access all organizations; operators and viewers
// only their own.
func CanAccessOrg(r *http.Request, orgID primitive.ObjectID) bool {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return false
	}

	role := strings.ToLower(user.Role)
	if role == models.RoleAdmin {
		return true
	}

	if role == models.RoleOperator || role == models.RoleViewer {
		if user.OrganizationID == "" {
			return false
		}
		userOrgID, err := primitive.ObjectIDFromHex(user.OrganizationID)
		if err != nil {
			return false
		}
		return userOrgID == orgID
	}

	return false
}
