package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"easyentrepreneur/internal/core/apperror"
	"easyentrepreneur/internal/core/tenant"
	"easyentrepreneur/pkg/logger"
)

// TenantResolver resolves the tenant that owns documents.
type TenantResolver interface {
	GetByID(ctx context.Context, tenantID string) (*tenant.Tenant, error)
}

// UsageCounter counts documents of every kind created by a tenant
// with created_at inside [from, to].
type UsageCounter interface {
	CountCreatedBetween(ctx context.Context, tenantID string, from, to time.Time) (int64, error)
}

// Decision is the outcome of a quota check.
// Used and Max are only meaningful when the tier is restricted.
type Decision struct {
	Allowed bool
	Tier    tenant.Tier
	Used    int64
	Max     int
}

// Usage describes the current month's consumption for a tenant.
// Max is nil for unrestricted tiers.
type Usage struct {
	Tier   tenant.Tier
	Used   int64
	Max    *int
	Window Window
}

// Remaining returns how many documents can still be created; -1 means unlimited.
func (u Usage) Remaining() int64 {
	if u.Max == nil {
		return -1
	}
	left := int64(*u.Max) - u.Used
	if left < 0 {
		return 0
	}
	return left
}

// Observer receives every check result.
type Observer interface {
	QuotaChecked(tier tenant.Tier, allowed bool)
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithObserver attaches a check observer (metrics).
func WithObserver(o Observer) Option {
	return func(g *Guard) {
		g.observer = o
	}
}

// Guard gates document creation on the tenant's monthly allowance.
// The check is advisory: it does not share a transaction with the insert,
// so concurrent creations can overshoot the cap by a few documents.
type Guard struct {
	tenants  TenantResolver
	usage    UsageCounter
	limits   Limits
	now      func() time.Time
	observer Observer
}

// NewGuard creates a Guard. A nil limits map means DefaultLimits.
func NewGuard(tenants TenantResolver, usage UsageCounter, limits Limits, opts ...Option) *Guard {
	if limits == nil {
		limits = DefaultLimits()
	}
	g := &Guard{
		tenants: tenants,
		usage:   usage,
		limits:  limits,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check decides whether the tenant may create another document this month.
// Unrestricted tiers are allowed without counting.
func (g *Guard) Check(ctx context.Context, tenantID string) (Decision, error) {
	tier, err := g.resolveTier(ctx, tenantID)
	if err != nil {
		return Decision{}, err
	}

	max, restricted := g.limits.Cap(tier)
	if !restricted {
		g.observe(tier, true)
		return Decision{Allowed: true, Tier: tier}, nil
	}

	window := MonthWindow(g.now())
	used, err := g.usage.CountCreatedBetween(ctx, tenantID, window.Start, window.End)
	if err != nil {
		return Decision{}, fmt.Errorf("count monthly usage: %w", err)
	}

	d := Decision{Allowed: used < int64(max), Tier: tier, Used: used, Max: max}
	g.observe(tier, d.Allowed)
	return d, nil
}

// Enforce runs Check and turns a denial into a QUOTA_EXCEEDED error.
func (g *Guard) Enforce(ctx context.Context, tenantID string) error {
	d, err := g.Check(ctx, tenantID)
	if err != nil {
		return err
	}
	if !d.Allowed {
		logger.Info(ctx, "monthly document quota reached",
			"tier", d.Tier, "used", d.Used, "max", d.Max)
		return apperror.NewQuotaExceeded(string(d.Tier), d.Used, d.Max)
	}
	return nil
}

// Usage reports the current month's count for any tier, computed like Check.
func (g *Guard) Usage(ctx context.Context, tenantID string) (Usage, error) {
	tier, err := g.resolveTier(ctx, tenantID)
	if err != nil {
		return Usage{}, err
	}

	window := MonthWindow(g.now())
	used, err := g.usage.CountCreatedBetween(ctx, tenantID, window.Start, window.End)
	if err != nil {
		return Usage{}, fmt.Errorf("count monthly usage: %w", err)
	}

	u := Usage{Tier: tier, Used: used, Window: window}
	if max, restricted := g.limits.Cap(tier); restricted {
		u.Max = &max
	}
	return u, nil
}

// resolveTier loads the tenant; an unknown tier falls back to FREEMIUM.
func (g *Guard) resolveTier(ctx context.Context, tenantID string) (tenant.Tier, error) {
	if tenantID == "" {
		return "", apperror.NewUnauthorized("tenant is required")
	}
	t, err := g.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return "", apperror.NewTenantNotFound(tenantID).WithCause(err)
		}
		return "", fmt.Errorf("resolve tenant: %w", err)
	}
	tier := t.EffectiveTier()
	if tier != t.Tier {
		logger.Warn(ctx, "tenant has unknown tier, using FREEMIUM", "stored_tier", t.Tier)
	}
	return tier, nil
}

func (g *Guard) observe(tier tenant.Tier, allowed bool) {
	if g.observer != nil {
		g.observer.QuotaChecked(tier, allowed)
	}
}
