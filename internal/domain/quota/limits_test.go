package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"easyentrepreneur/internal/core/tenant"
)

func TestMonthWindow(t *testing.T) {
	loc := time.FixedZone("CET", 3600)

	w := MonthWindow(time.Date(2024, time.February, 10, 15, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, loc), w.Start)
	assert.Equal(t, time.Date(2024, time.February, 29, 23, 59, 59, 999999999, loc), w.End)

	w = MonthWindow(time.Date(2025, time.December, 31, 23, 59, 0, 0, loc))
	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, loc), w.Start)
	assert.Equal(t, time.Date(2025, time.December, 31, 23, 59, 59, 999999999, loc), w.End)
}

func TestWindowContains_InclusiveEnds(t *testing.T) {
	w := MonthWindow(time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))
	assert.True(t, w.Contains(w.Start))
	assert.True(t, w.Contains(w.End))
	assert.False(t, w.Contains(w.Start.Add(-time.Nanosecond)))
	assert.False(t, w.Contains(w.End.Add(time.Nanosecond)))
}

func TestLimitsCap(t *testing.T) {
	l := Limits{tenant.TierFreemium: 5, tenant.TierBasic: 0}

	max, restricted := l.Cap(tenant.TierFreemium)
	assert.True(t, restricted)
	assert.Equal(t, 5, max)

	_, restricted = l.Cap(tenant.TierBasic)
	assert.False(t, restricted)

	_, restricted = l.Cap(tenant.TierPremium)
	assert.False(t, restricted)
}

func TestParseLimits(t *testing.T) {
	l, err := ParseLimits(map[string]int{"freemium": 5, "basic": 50})
	require.NoError(t, err)
	assert.Equal(t, Limits{tenant.TierFreemium: 5, tenant.TierBasic: 50}, l)

	l, err = ParseLimits(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLimits(), l)

	_, err = ParseLimits(map[string]int{"gold": 1})
	assert.Error(t, err)
}
