// internal/domain/lifecycle/lifecycle.go
//
// Package lifecycle is the single authority for certificate status
// transitions and snapshot immutability. It is pure rulebook: no I/O, no
// store handles. The certificate store funnels every status write through
// ValidateTransition, so callers cannot bypass the transition table.
package lifecycle

import (
	"errors"
	"time"

	"github.com/coverdesk/coverdesk/internal/domain/models"
)

// Status is a certificate lifecycle state. Values are stored lowercase.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Privilege is the caller's authority for lifecycle writes. Lifecycle
// writes require PrivilegeLifecycle or higher; PrivilegeSystem is what the
// expiration processor runs under.
type Privilege int

const (
	PrivilegeNone Privilege = iota
	PrivilegeLifecycle
	PrivilegeSystem
)

func (p Privilege) String() string {
	switch p {
	case PrivilegeNone:
		return "none"
	case PrivilegeLifecycle:
		return "lifecycle"
	case PrivilegeSystem:
		return "system"
	}
	return "unknown"
}

var (
	// ErrInvalidTransition means the proposed edge is not in the transition
	// table, including any attempt to leave a terminal state.
	ErrInvalidTransition = errors.New("lifecycle: invalid status transition")

	// ErrPermissionDenied means the caller's privilege does not allow
	// lifecycle writes.
	ErrPermissionDenied = errors.New("lifecycle: permission denied")

	// ErrNoOpUpdate means the proposed status equals the current status.
	// Non-fatal: callers treat it as "nothing to do", not a failure.
	ErrNoOpUpdate = errors.New("lifecycle: status unchanged")

	// ErrUnknownStatus means the status value is not one of the five
	// recognized states.
	ErrUnknownStatus = errors.New("lifecycle: unknown status")
)

// transitions is the directed, acyclic edge table. Terminal states have no
// outgoing edges.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusPending, StatusCancelled},
	StatusPending:   {StatusActive, StatusCancelled},
	StatusActive:    {StatusExpired, StatusCancelled},
	StatusExpired:   {},
	StatusCancelled: {},
}

// Valid reports whether s is one of the five recognized states.
func Valid(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether s has no outgoing edges.
func IsTerminal(s Status) bool {
	edges, ok := transitions[s]
	return ok && len(edges) == 0
}

// CanTransition reports whether the edge from -> to exists in the table.
// Self-edges do not exist; use ValidateTransition to distinguish a no-op
// from an illegal move.
func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ValidateTransition decides whether current -> proposed is permitted for a
// caller holding privilege p.
//
// Check order: terminal states reject everything (so expired -> expired is
// ErrInvalidTransition, not a no-op, which is what makes re-running the
// expiration processor harmless even if a stale candidate slips through);
// then no-op; then the edge table; then privilege.
func ValidateTransition(current, proposed Status, p Privilege) error {
	if !Valid(current) || !Valid(proposed) {
		return ErrUnknownStatus
	}
	if IsTerminal(current) {
		return ErrInvalidTransition
	}
	if current == proposed {
		return ErrNoOpUpdate
	}
	if !CanTransition(current, proposed) {
		return ErrInvalidTransition
	}
	if p < PrivilegeLifecycle {
		return ErrPermissionDenied
	}
	return nil
}

// ImmutableFieldViolationError reports an attempted write to a frozen
// certificate field.
type ImmutableFieldViolationError struct {
	Field string
}

func (e *ImmutableFieldViolationError) Error() string {
	return "lifecycle: field " + e.Field + " is immutable"
}

// Mutable field names, matching the bson tags on models.Certificate.
const (
	FieldStatus                   = "status"
	FieldEndorsementDescription   = "endorsement_description"
	FieldEndorsementEffectiveDate = "endorsement_effective_date"
	FieldRestrictedAccess         = "restricted_access"
	FieldHidden                   = "hidden"
)

// mutableFields is the full writable set. Everything else on a certificate
// is a frozen snapshot field.
var mutableFields = map[string]bool{
	FieldStatus:                   true,
	FieldEndorsementDescription:   true,
	FieldEndorsementEffectiveDate: true,
	FieldRestrictedAccess:         true,
	FieldHidden:                   true,
}

// ValidateFieldMutation decides whether field may be written on cert at
// time now. Snapshot fields are always rejected. The endorsement pair is
// rejected once the recorded endorsement effective date has passed: after
// that point the endorsement is part of the legal record.
func ValidateFieldMutation(cert *models.Certificate, field string, now time.Time) error {
	if !mutableFields[field] {
		return &ImmutableFieldViolationError{Field: field}
	}
	if field == FieldEndorsementDescription || field == FieldEndorsementEffectiveDate {
		if cert.EndorsementEffectiveDate != nil && cert.EndorsementEffectiveDate.Before(now) {
			return &ImmutableFieldViolationError{Field: field}
		}
	}
	return nil
}
