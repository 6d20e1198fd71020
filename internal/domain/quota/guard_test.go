package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"easyentrepreneur/internal/core/apperror"
	"easyentrepreneur/internal/core/tenant"
)

type fakeTenants map[string]*tenant.Tenant

func (f fakeTenants) GetByID(_ context.Context, id string) (*tenant.Tenant, error) {
	t, ok := f[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return t, nil
}

// fakeUsage stores creation timestamps per tenant and counts them like the SQL does.
type fakeUsage struct {
	created map[string][]time.Time
	calls   int
}

func (f *fakeUsage) add(tenantID string, at time.Time, n int) {
	if f.created == nil {
		f.created = make(map[string][]time.Time)
	}
	for i := 0; i < n; i++ {
		f.created[tenantID] = append(f.created[tenantID], at)
	}
}

func (f *fakeUsage) CountCreatedBetween(_ context.Context, tenantID string, from, to time.Time) (int64, error) {
	f.calls++
	w := Window{Start: from, End: to}
	var n int64
	for _, at := range f.created[tenantID] {
		if w.Contains(at) {
			n++
		}
	}
	return n, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var now = time.Date(2025, time.March, 14, 10, 30, 0, 0, time.Local)

func newGuard(usage *fakeUsage, tenants fakeTenants) *Guard {
	return NewGuard(tenants, usage, nil, WithClock(fixedClock(now)))
}

func TestCheck_FreeTierBoundary(t *testing.T) {
	ctx := context.Background()
	tenants := fakeTenants{"free": {ID: "free", Tier: tenant.TierFreemium}}

	usage := &fakeUsage{}
	usage.add("free", now.Add(-time.Hour), 4)
	d, err := newGuard(usage, tenants).Check(ctx, "free")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(4), d.Used)

	usage.add("free", now.Add(-time.Minute), 1)
	d, err = newGuard(usage, tenants).Check(ctx, "free")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(5), d.Used)
	assert.Equal(t, 5, d.Max)
}

func TestCheck_PaidTierIsNotCounted(t *testing.T) {
	usage := &fakeUsage{}
	usage.add("pro", now, 500)
	g := newGuard(usage, fakeTenants{"pro": {ID: "pro", Tier: tenant.TierBasic}})

	d, err := g.Check(context.Background(), "pro")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, usage.calls)
}

func TestCheck_MonthRollover(t *testing.T) {
	usage := &fakeUsage{}
	lastMonth := time.Date(2025, time.February, 28, 23, 59, 59, 0, time.Local)
	usage.add("free", lastMonth, 10)
	usage.add("free", time.Date(2025, time.March, 1, 0, 0, 0, 0, time.Local), 2)

	g := NewGuard(fakeTenants{"free": {ID: "free", Tier: tenant.TierFreemium}}, usage, nil,
		WithClock(fixedClock(time.Date(2025, time.March, 2, 9, 0, 0, 0, time.Local))))

	d, err := g.Check(context.Background(), "free")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(2), d.Used)
}

func TestCheck_TenantNotFound(t *testing.T) {
	usage := &fakeUsage{}
	_, err := newGuard(usage, fakeTenants{}).Check(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	assert.True(t, apperror.HasCode(err, apperror.CodeTenantNotFound))
	assert.False(t, apperror.HasCode(err, apperror.CodeQuotaExceeded))
	assert.Equal(t, 0, usage.calls)
}

func TestCheck_UnknownTierIsRestricted(t *testing.T) {
	usage := &fakeUsage{}
	usage.add("legacy", now, 5)
	g := newGuard(usage, fakeTenants{"legacy": {ID: "legacy", Tier: "GOLD"}})

	d, err := g.Check(context.Background(), "legacy")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, tenant.TierFreemium, d.Tier)
}

func TestCheck_CustomLimits(t *testing.T) {
	usage := &fakeUsage{}
	usage.add("basic", now, 50)
	limits := Limits{tenant.TierFreemium: 5, tenant.TierBasic: 50, tenant.TierStandard: 200}
	g := NewGuard(fakeTenants{"basic": {ID: "basic", Tier: tenant.TierBasic}}, usage, limits, WithClock(fixedClock(now)))

	d, err := g.Check(context.Background(), "basic")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 50, d.Max)
}

type errUsage struct{}

func (errUsage) CountCreatedBetween(context.Context, string, time.Time, time.Time) (int64, error) {
	return 0, errors.New("db down")
}

func TestCheck_CounterErrorPropagates(t *testing.T) {
	g := NewGuard(fakeTenants{"free": {ID: "free", Tier: tenant.TierFreemium}}, errUsage{}, nil)
	_, err := g.Check(context.Background(), "free")
	require.Error(t, err)
	_, isApp := apperror.AsAppError(err)
	assert.False(t, isApp)
}

func TestEnforce(t *testing.T) {
	usage := &fakeUsage{}
	usage.add("free", now, 5)
	g := newGuard(usage, fakeTenants{"free": {ID: "free", Tier: tenant.TierFreemium}})

	err := g.Enforce(context.Background(), "free")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeQuotaExceeded, appErr.Code)
	assert.Equal(t, int64(5), appErr.Details["used"])
	assert.Equal(t, 5, appErr.Details["max"])
}

type recordingObserver struct {
	results []bool
}

func (r *recordingObserver) QuotaChecked(_ tenant.Tier, allowed bool) {
	r.results = append(r.results, allowed)
}

func TestCheck_NotifiesObserver(t *testing.T) {
	usage := &fakeUsage{}
	usage.add("free", now, 5)
	obs := &recordingObserver{}
	g := NewGuard(fakeTenants{
		"free": {ID: "free", Tier: tenant.TierFreemium},
		"pro":  {ID: "pro", Tier: tenant.TierPremium},
	}, usage, nil, WithClock(fixedClock(now)), WithObserver(obs))

	_, _ = g.Check(context.Background(), "free")
	_, _ = g.Check(context.Background(), "pro")
	assert.Equal(t, []bool{false, true}, obs.results)
}

func TestUsage(t *testing.T) {
	usage := &fakeUsage{}
	usage.add("free", now, 3)
	usage.add("pro", now, 42)
	g := newGuard(usage, fakeTenants{
		"free": {ID: "free", Tier: tenant.TierFreemium},
		"pro":  {ID: "pro", Tier: tenant.TierStandard},
	})

	u, err := g.Usage(context.Background(), "free")
	require.NoError(t, err)
	require.NotNil(t, u.Max)
	assert.Equal(t, 5, *u.Max)
	assert.Equal(t, int64(3), u.Used)
	assert.Equal(t, int64(2), u.Remaining())
	assert.Equal(t, MonthWindow(now), u.Window)

	u, err = g.Usage(context.Background(), "pro")
	require.NoError(t, err)
	assert.Nil(t, u.Max)
	assert.Equal(t, int64(42), u.Used)
	assert.Equal(t, int64(-1), u.Remaining())
}
