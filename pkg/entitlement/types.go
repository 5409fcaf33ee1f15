package entitlement

import "time"

// Tier is a subscription plan level. The zero value is TierFree.
// Tiers are ordered so that upgrade suggestions can walk the ladder.
type Tier int

const (
	TierFree Tier = iota
	TierStarter
	TierPro
	TierTeam
	TierEnterprise
)

// String returns the wire token for the tier.
func (t Tier) String() string {
	switch t {
	case TierStarter:
		return "starter"
	case TierPro:
		return "pro"
	case TierTeam:
		return "team"
	case TierEnterprise:
		return "enterprise"
	default:
		return "free"
	}
}

// ParseTier maps a backend tier token to a Tier.
// Unrecognized tokens fall back to TierFree so a misbehaving backend
// can only ever under-entitle, never over-entitle.
func ParseTier(s string) Tier {
	tier, _ := TierFromString(s)
	return tier
}

// TierFromString maps a token to its Tier, reporting whether the token was
// recognized. Use this where an unknown token must be rejected instead of
// silently degraded to free.
func TierFromString(s string) (Tier, bool) {
	switch s {
	case "free":
		return TierFree, true
	case "starter":
		return TierStarter, true
	case "pro":
		return TierPro, true
	case "team":
		return TierTeam, true
	case "enterprise":
		return TierEnterprise, true
	default:
		return TierFree, false
	}
}

// Next returns the next tier up for upgrade prompts.
// Returns the receiver and false when already at the top.
func (t Tier) Next() (Tier, bool) {
	if t >= TierEnterprise {
		return t, false
	}
	return t + 1, true
}

// Feature is a tier-gated capability flag.
type Feature string

// FeatureAll is a wildcard: a tier carrying it has every feature enabled.
const FeatureAll Feature = "all"

const (
	FeatureOCR             Feature = "ocr"
	FeatureAPIAccess       Feature = "api-access"
	FeatureAuditLog        Feature = "audit-log"
	FeatureTeamWorkspaces  Feature = "team-workspaces"
	FeatureSSO             Feature = "sso"
	FeaturePrioritySupport Feature = "priority-support"
	FeaturePHIRedaction    Feature = "phi-redaction"
)

// BillingInterval is the billing frequency of a paid subscription.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalYearly  BillingInterval = "yearly"
)

// WarningLevel is the derived severity of the current usage snapshot.
type WarningLevel string

const (
	WarningNone     WarningLevel = "none"
	WarningModerate WarningLevel = "moderate"
	WarningHigh     WarningLevel = "high"
	WarningCritical WarningLevel = "critical"
)

// SubscriptionInfo is metadata about the active paid plan.
// Absent for free-tier users.
type SubscriptionInfo struct {
	ID                string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	Interval          BillingInterval
}

// Usage is a point-in-time consumption snapshot fetched from the backend.
// Limits use the Unlimited sentinel (-1) for plans without caps.
type Usage struct {
	QueriesUsed  int64
	QueriesLimit int64
	StorageUsed  int64
	StorageLimit int64
}

// State is the aggregate owned by a Manager. It is replaced wholesale on
// every successful refresh; on failure only Loading and Err change, so the
// last known good tier, limits and usage survive transient outages.
type State struct {
	Tier         Tier
	Status       string
	Limits       TierLimits
	Subscription *SubscriptionInfo
	Usage        *Usage
	Loading      bool
	Err          error
}

func (s State) clone() State {
	out := s
	if s.Subscription != nil {
		sub := *s.Subscription
		out.Subscription = &sub
	}
	if s.Usage != nil {
		u := *s.Usage
		out.Usage = &u
	}
	return out
}
