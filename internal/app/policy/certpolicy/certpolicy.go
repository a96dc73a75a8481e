// internal/app/policy/certpolicy.go
package certpolicy

import (
	"net/http"

	"github.com/coverdesk/coverdesk/internal/app/system/authz"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

// CanView reports whether the current request user can read the certificate:
// - Admins always can
// - Operators and viewers can only within their own organization
// - The restricted-access marker additionally fences out viewers; it does
//   not hide the certificate from staff who manage the lifecycle
func CanView(r *http.Request, cert *models.Certificate) bool {
	if !authz.CanAccessOrg(r, cert.OrganizationID) {
		return false
	}
	if cert.RestrictedAccess {
		return authz.CanManageLifecycle(r)
	}
	return true
}

// CanModify reports whether the current request user can change the
// certificate's mutable fields (status, endorsement, access markers).
// Lifecycle privilege inside the certificate's organization is required;
// viewers never modify.
func CanModify(r *http.Request, cert *models.Certificate) bool {
	return authz.CanAccessOrg(r, cert.OrganizationID) && authz.CanManageLifecycle(r)
}

// CanSeeHidden reports whether hidden certificates appear when the caller
// explicitly asks for them. Hidden is a listing default, not a secrecy
// control.
func CanSeeHidden(r *http.Request) bool {
	return authz.CanManageLifecycle(r)
}
