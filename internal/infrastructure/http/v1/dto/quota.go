package dto

import (
	"time"

	"easyentrepreneur/internal/domain/quota"
)

// UnlimitedQuotaMax is reported as max for tiers without a cap, so max is always a number.
const UnlimitedQuotaMax = 99999

// QuotaResponse reports the monthly allowance of the authenticated account.
// For uncapped tiers Unlimited is true, Max is UnlimitedQuotaMax and Remaining is null.
type QuotaResponse struct {
	Used        int64     `json:"used"`
	Max         int       `json:"max"`
	Unlimited   bool      `json:"unlimited"`
	Remaining   *int64    `json:"remaining"`
	Offer       string    `json:"offer"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
}

// FromUsage creates response DTO from a usage snapshot.
func FromUsage(u quota.Usage) QuotaResponse {
	resp := QuotaResponse{
		Used:        u.Used,
		Max:         UnlimitedQuotaMax,
		Unlimited:   u.Max == nil,
		Offer:       string(u.Tier),
		WindowStart: u.Window.Start,
		WindowEnd:   u.Window.End,
	}
	if u.Max != nil {
		resp.Max = *u.Max
		left := u.Remaining()
		resp.Remaining = &left
	}
	return resp
}
