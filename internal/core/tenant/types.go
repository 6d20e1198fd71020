// Package tenant models the accounts that own billing documents.
// Isolation is row-level: every document row carries its owner's ID.
package tenant

import (
	"fmt"
	"strings"
	"time"
)

// Tier is a subscription level. Tiers are ranked; FREEMIUM is the lowest.
type Tier string

const (
	TierFreemium Tier = "FREEMIUM"
	TierBasic    Tier = "BASIC"
	TierStandard Tier = "STANDARD"
	TierPremium  Tier = "PREMIUM"
)

var tierRanks = map[Tier]int{
	TierFreemium: 0,
	TierBasic:    1,
	TierStandard: 2,
	TierPremium:  3,
}

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := tierRanks[t]
	return t, ok
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	_, ok := tierRanks[t]
	return ok
}

// Rank orders tiers; unknown tiers rank with FREEMIUM.
func (t Tier) Rank() int {
	return tierRanks[t]
}

// AtLeast reports whether t is ranked at or above other.
func (t Tier) AtLeast(other Tier) bool {
	return t.Rank() >= other.Rank()
}

// Tiers lists all tiers in rank order.
func Tiers() []Tier {
	return []Tier{TierFreemium, TierBasic, TierStandard, TierPremium}
}

// Tenant represents an account row.
type Tenant struct {
	ID          string    `db:"id"`
	Email       string    `db:"email"`
	CompanyName string    `db:"company_name"`
	Tier        Tier      `db:"tier"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// EffectiveTier returns the tier used for limits.
// A missing or unrecognised tier falls back to FREEMIUM, never to something more permissive.
func (t *Tenant) EffectiveTier() Tier {
	if t == nil || !t.Tier.Valid() {
		return TierFreemium
	}
	return t.Tier
}

// CreateTenantInput contains data for creating a new tenant.
type CreateTenantInput struct {
	Email       string
	CompanyName string
	Tier        Tier
}

// Validate checks if input is valid and normalises it.
func (i *CreateTenantInput) Validate() error {
	i.Email = strings.ToLower(strings.TrimSpace(i.Email))
	if i.Email == "" || !strings.Contains(i.Email, "@") {
		return fmt.Errorf("a valid email is required")
	}
	if i.Tier == "" {
		i.Tier = TierFreemium
	}
	if !i.Tier.Valid() {
		return fmt.Errorf("unknown tier %q", i.Tier)
	}
	return nil
}
