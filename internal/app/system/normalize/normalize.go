// internal/app/system/normalize/normalize.go
//
// Package normalize provides canonical forms for user-entered values before
// they hit validation or the database. Normalization is not validation:
// these functions never reject, they only trim and fold.
package normalize

import "strings"

// Email lowercases and trims an email address. Emails are stored and
// compared in this form everywhere.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a person or organization name, preserving case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// AuthMethod lowercases and trims an auth method value.
func AuthMethod(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Status lowercases and trims a status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Role lowercases and trims a role value.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a free-text query parameter, preserving case.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// OrgID trims an organization-filter value. The literal "all" (any case)
// means "no organization filter" and converts to empty.
func OrgID(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return ""
	}
	return s
}

// GroupLabel trims a membership-group label, preserving case. Labels are
// exact-match keys into the per-group year settings, so "OT" and "ot" are
// different groups.
func GroupLabel(s string) string {
	return strings.TrimSpace(s)
}

// MembershipYear trims a membership-year label like "2025-2026".
func MembershipYear(s string) string {
	return strings.TrimSpace(s)
}
