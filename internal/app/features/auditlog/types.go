// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/coverdesk/coverdesk/internal/app/store/audit"
)

// eventItem is one audit event row with actor, target, and organization
// names resolved for display. IDs ride along so a client can chain into
// the per-user or per-certificate views.
type eventItem struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Category       string            `json:"category"`
	EventType      string            `json:"eventType"`
	ActorID        string            `json:"actorId,omitempty"`
	ActorName      string            `json:"actorName,omitempty"`
	UserID         string            `json:"userId,omitempty"`
	UserName       string            `json:"userName,omitempty"`
	OrganizationID string            `json:"organizationId,omitempty"`
	Organization   string            `json:"organizationName,omitempty"`
	CertificateID  string            `json:"certificateId,omitempty"`
	IP             string            `json:"ip,omitempty"`
	Success        bool              `json:"success"`
	FailureReason  string            `json:"failureReason,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
}

// listResponse is one page of audit events.
type listResponse struct {
	Events []eventItem `json:"events"`
	Total  int64       `json:"total"`
}

// historyResponse is the unpaged event history of one certificate or user.
type historyResponse struct {
	Events []eventItem `json:"events"`
}

func validCategory(category string) bool {
	switch category {
	case audit.CategoryAuth, audit.CategoryAdmin, audit.CategorySecurity,
		audit.CategoryLifecycle, audit.CategoryExpiration:
		return true
	}
	return false
}
