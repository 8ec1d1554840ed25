// Package plan holds the fixed quota ceilings of each subscription tier.
package plan

import (
	"errors"
	"strings"
)

type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// ErrUnknownPlan is returned for any tier outside the table. Callers must not
// fall back to another tier's limits.
var ErrUnknownPlan = errors.New("unknown_plan")

// Limits are monthly quota ceilings for one tier.
type Limits struct {
	MaxMessagesPerMonth   int64 `json:"max_messages_per_month"`
	MaxAIRequestsPerMonth int64 `json:"max_ai_requests_per_month"`
	MaxStorageMB          int64 `json:"max_storage_mb"`
}

// Plan pairs a tier with its limits.
type Plan struct {
	Tier   Tier   `json:"tier"`
	Limits Limits `json:"limits"`
}

var tiers = [...]Plan{
	{Tier: TierFree, Limits: Limits{MaxMessagesPerMonth: 100, MaxAIRequestsPerMonth: 50, MaxStorageMB: 10}},
	{Tier: TierBasic, Limits: Limits{MaxMessagesPerMonth: 1000, MaxAIRequestsPerMonth: 500, MaxStorageMB: 100}},
	{Tier: TierPremium, Limits: Limits{MaxMessagesPerMonth: 10000, MaxAIRequestsPerMonth: 5000, MaxStorageMB: 1000}},
	{Tier: TierEnterprise, Limits: Limits{MaxMessagesPerMonth: 100000, MaxAIRequestsPerMonth: 50000, MaxStorageMB: 10000}},
}

// LimitsFor resolves the limits of a tier name as stored on the tenant.
// Matching ignores case and surrounding space.
func LimitsFor(tier string) (Limits, error) {
	normalized := Tier(strings.ToLower(strings.TrimSpace(tier)))
	for _, p := range tiers {
		if p.Tier == normalized {
			return p.Limits, nil
		}
	}
	return Limits{}, ErrUnknownPlan
}

// All returns every tier in ascending order of ceilings. The slice is a copy.
func All() []Plan {
	out := make([]Plan, len(tiers))
	copy(out, tiers[:])
	return out
}

func (t Tier) Valid() bool {
	_, err := LimitsFor(string(t))
	return err == nil
}
