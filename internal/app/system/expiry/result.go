// internal/app/system/expiry/result.go
package expiry

import (
	"time"

	"github.com/google/uuid"
)

// SkipReason classifies why the processor left a certificate alone. Skips
// are expected operational states, not errors; the reason strings double as
// metric label values and JSON keys.
type SkipReason string

const (
	SkipNoAccountLink    SkipReason = "no_account_link"
	SkipNoMembershipYear SkipReason = "no_membership_year"
	SkipAccountNotFound  SkipReason = "account_not_found"
	SkipNoActiveCategory SkipReason = "no_active_category"
	SkipNoGroupLabel     SkipReason = "no_group_label"
	SkipNoActiveSettings SkipReason = "no_active_settings"
	SkipYearCurrent      SkipReason = "year_current"
)

// GroupStat is the per-membership-group slice of one run. Groups roll their
// years over independently, so operators read this to confirm the expected
// cohort actually transitioned.
type GroupStat struct {
	Checked int `json:"checked"`
	Expired int `json:"expired"`
}

// OrganizationStats is the per-organization section of a run result.
type OrganizationStats struct {
	InsurancesChecked int                  `json:"insurancesChecked"`
	InsurancesExpired int                  `json:"insurancesExpired"`
	InsurancesSkipped int                  `json:"insurancesSkipped"`
	Errors            int                  `json:"errors"`
	GroupStats        map[string]GroupStat `json:"groupStats"`
}

// ItemError records one certificate whose processing failed unexpectedly.
// Item errors never abort a run.
type ItemError struct {
	CertificateID string `json:"certificateId"`
	Error         string `json:"error"`
}

// RunResult is the full accounting of one expiration run. A run returns a
// result even when every item was skipped or errored; callers inspect the
// counters rather than relying on an overall failure signal.
type RunResult struct {
	RunID          string    `json:"runId"`
	OrganizationID string    `json:"organizationId"`
	Trigger        string    `json:"trigger,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	DurationMillis int64     `json:"durationMillis"`

	TotalProcessed         int `json:"totalProcessed"`
	TotalExpired           int `json:"totalExpired"`
	TotalSkipped           int `json:"totalSkipped"`
	TotalSkippedNoAccount  int `json:"totalSkippedNoAccount"`
	TotalSkippedNoCategory int `json:"totalSkippedNoCategory"`
	Errors                 int `json:"errors"`

	SkippedByReason map[string]int     `json:"skippedByReason"`
	ItemErrors      []ItemError        `json:"itemErrors,omitempty"`
	PerOrganization *OrganizationStats `json:"perOrganization"`
}

func newRunResult(orgID, trigger, reason string, startedAt time.Time) *RunResult {
	return &RunResult{
		RunID:           uuid.NewString(),
		OrganizationID:  orgID,
		Trigger:         trigger,
		Reason:          reason,
		StartedAt:       startedAt,
		SkippedByReason: map[string]int{},
		PerOrganization: &OrganizationStats{
			GroupStats: map[string]GroupStat{},
		},
	}
}

// Skipped returns the count recorded for one skip reason.
func (r *RunResult) Skipped(reason SkipReason) int {
	return r.SkippedByReason[string(reason)]
}
