package tenant

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedRegistry keeps recently resolved tenants in memory.
// Tier changes made through this registry invalidate the entry; changes made
// elsewhere (the billing flow) become visible after ttl.
type CachedRegistry struct {
	Registry
	cache *gocache.Cache
	ttl   time.Duration
}

// NewCachedRegistry wraps next. A ttl <= 0 disables caching.
func NewCachedRegistry(next Registry, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{
		Registry: next,
		cache:    gocache.New(ttl, 2*ttl),
		ttl:      ttl,
	}
}

// GetByID returns a copy of the cached tenant or loads it from the wrapped registry.
// Lookup failures are never cached.
func (r *CachedRegistry) GetByID(ctx context.Context, tenantID string) (*Tenant, error) {
	if r.ttl <= 0 {
		return r.Registry.GetByID(ctx, tenantID)
	}
	if v, ok := r.cache.Get(tenantID); ok {
		t := *v.(*Tenant)
		return &t, nil
	}

	t, err := r.Registry.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	stored := *t
	r.cache.Set(tenantID, &stored, r.ttl)
	return t, nil
}

// UpdateTier writes through and drops the cached entry.
func (r *CachedRegistry) UpdateTier(ctx context.Context, tenantID string, tier Tier) error {
	r.cache.Delete(tenantID)
	return r.Registry.UpdateTier(ctx, tenantID, tier)
}

var _ Registry = (*CachedRegistry)(nil)
