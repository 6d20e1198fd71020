// Package quota decides whether a tenant may create another billing document
// in the current calendar month.
package quota

import (
	"fmt"
	"time"

	"easyentrepreneur/internal/core/tenant"
)

// DefaultFreeMonthlyCap is the number of documents a FREEMIUM tenant may create per month.
const DefaultFreeMonthlyCap = 5

// Limits maps a tier to its monthly document cap.
// A tier that is absent or has a cap <= 0 is unrestricted.
type Limits map[tenant.Tier]int

// DefaultLimits caps only the free tier.
func DefaultLimits() Limits {
	return Limits{tenant.TierFreemium: DefaultFreeMonthlyCap}
}

// ParseLimits converts a config map (tier name -> cap) into Limits.
func ParseLimits(raw map[string]int) (Limits, error) {
	if len(raw) == 0 {
		return DefaultLimits(), nil
	}
	limits := make(Limits, len(raw))
	for name, max := range raw {
		tier, ok := tenant.ParseTier(name)
		if !ok {
			return nil, fmt.Errorf("quota limits: unknown tier %q", name)
		}
		limits[tier] = max
	}
	return limits, nil
}

// Cap returns the monthly cap for tier and whether the tier is restricted.
func (l Limits) Cap(tier tenant.Tier) (int, bool) {
	max, ok := l[tier]
	if !ok || max <= 0 {
		return 0, false
	}
	return max, true
}

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t is inside the window, both ends included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// MonthWindow returns the calendar month containing now, in now's location:
// the first instant of the 1st through the last instant of the last day.
func MonthWindow(now time.Time) Window {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return Window{Start: start, End: end}
}
