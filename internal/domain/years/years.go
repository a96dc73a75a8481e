// internal/domain/years/years.go
//
// Package years handles membership-year labels ("2025-2026"). A label
// names an annual membership cycle; the expiration processor compares
// labels, it never recomputes them from dates.
package years

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultLookback is how many recent year labels the expiration processor
// queries when the caller does not override it. Three labels (current,
// previous, previous-previous) bounds query cost at the price of never
// retroactively expiring certificates more than two years stale in one
// pass.
const DefaultLookback = 3

// Label formats the membership-year label that starts in calendar year
// start, e.g. Label(2025) == "2025-2026".
func Label(start int) string {
	return fmt.Sprintf("%d-%d", start, start+1)
}

// Current returns a best-effort estimate of the label in effect at now:
// the cycle that starts in now's calendar year. Group settings are the
// source of truth; this is only used to seed query windows.
func Current(now time.Time) string {
	return Label(now.Year())
}

// Window returns the lookback most recent labels relative to now, newest
// first. Window(t, 3) in calendar 2026 yields
// ["2026-2027", "2025-2026", "2024-2025"]. A lookback below 1 falls back
// to DefaultLookback.
func Window(now time.Time, lookback int) []string {
	if lookback < 1 {
		lookback = DefaultLookback
	}
	labels := make([]string, 0, lookback)
	for i := 0; i < lookback; i++ {
		labels = append(labels, Label(now.Year()-i))
	}
	return labels
}

// Parse returns the starting calendar year of a label, or an error when
// the label is not of the form "YYYY-YYYY" with consecutive years.
func Parse(label string) (int, error) {
	parts := strings.Split(label, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 4 {
		return 0, fmt.Errorf("years: malformed label %q", label)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("years: malformed label %q", label)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("years: malformed label %q", label)
	}
	if end != start+1 {
		return 0, fmt.Errorf("years: label %q years are not consecutive", label)
	}
	return start, nil
}

// ValidLabel reports whether label parses as a membership-year label.
func ValidLabel(label string) bool {
	_, err := Parse(label)
	return err == nil
}
