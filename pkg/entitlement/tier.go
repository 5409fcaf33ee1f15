package entitlement

import (
	"slices"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Unlimited marks a quota with no cap (-1 chosen for SQL compatibility).
const Unlimited int64 = -1

// ContactSales marks a price that requires a sales conversation.
const ContactSales int64 = -1

const (
	kb = int64(1) << 10
	mb = int64(1) << 20
	gb = int64(1) << 30
)

// TierLimits is the immutable entitlement record of a tier: quotas, feature
// flags and display metadata. Prices are in US cents.
type TierLimits struct {
	DisplayName       string
	Description       string
	MonthlyQueries    int64 // Unlimited for no cap
	StorageBytes      int64 // Unlimited for no cap / custom
	MaxFileBytes      int64
	MonthlyPriceCents int64 // ContactSales for custom pricing
	YearlyPriceCents  int64 // ContactSales for custom pricing
	Features          []Feature
}

// Limits returns the static entitlement record for the tier. The switch is
// exhaustive over the closed Tier set; adding a tier without a case here is a
// compile-time-visible omission during review, unlike a lookup map.
func (t Tier) Limits() TierLimits {
	switch t {
	case TierStarter:
		return TierLimits{
			DisplayName:       "Starter",
			Description:       "For individual clinicians getting started with document chat.",
			MonthlyQueries:    200,
			StorageBytes:      2 * gb,
			MaxFileBytes:      25 * mb,
			MonthlyPriceCents: 1900,
			YearlyPriceCents:  19000,
			Features:          []Feature{FeatureOCR},
		}
	case TierPro:
		return TierLimits{
			DisplayName:       "Pro",
			Description:       "For power users who need API access and an audit trail.",
			MonthlyQueries:    1000,
			StorageBytes:      20 * gb,
			MaxFileBytes:      100 * mb,
			MonthlyPriceCents: 4900,
			YearlyPriceCents:  49000,
			Features: []Feature{
				FeatureOCR,
				FeatureAPIAccess,
				FeatureAuditLog,
				FeaturePrioritySupport,
			},
		}
	case TierTeam:
		return TierLimits{
			DisplayName:       "Team",
			Description:       "Shared workspaces and SSO for clinics and departments.",
			MonthlyQueries:    5000,
			StorageBytes:      100 * gb,
			MaxFileBytes:      250 * mb,
			MonthlyPriceCents: 9900,
			YearlyPriceCents:  99000,
			Features: []Feature{
				FeatureOCR,
				FeatureAPIAccess,
				FeatureAuditLog,
				FeaturePrioritySupport,
				FeatureTeamWorkspaces,
				FeatureSSO,
			},
		}
	case TierEnterprise:
		return TierLimits{
			DisplayName:       "Enterprise",
			Description:       "Unlimited usage, custom retention and dedicated support.",
			MonthlyQueries:    Unlimited,
			StorageBytes:      Unlimited,
			MaxFileBytes:      1 * gb,
			MonthlyPriceCents: ContactSales,
			YearlyPriceCents:  ContactSales,
			Features:          []Feature{FeatureAll},
		}
	default:
		return TierLimits{
			DisplayName:       "Free",
			Description:       "Try EMTChat with a handful of documents.",
			MonthlyQueries:    20,
			StorageBytes:      100 * mb,
			MaxFileBytes:      10 * mb,
			MonthlyPriceCents: 0,
			YearlyPriceCents:  0,
			Features:          nil,
		}
	}
}

// HasFeature reports whether the tier enables the feature,
// honoring the FeatureAll wildcard.
func (l TierLimits) HasFeature(f Feature) bool {
	if slices.Contains(l.Features, FeatureAll) {
		return true
	}
	return slices.Contains(l.Features, f)
}

var pricePrinter = message.NewPrinter(language.AmericanEnglish)

// FormatPrice renders a price in cents as a localized USD amount,
// e.g. "$19.00". ContactSales renders as "Contact sales".
func FormatPrice(cents int64) string {
	if cents == ContactSales {
		return "Contact sales"
	}
	return pricePrinter.Sprint(currency.NarrowSymbol(currency.USD.Amount(float64(cents) / 100)))
}
