package entitlement

// Warning thresholds as percentages of the most constrained quota.
const (
	moderateThreshold = 75
	highThreshold     = 90
	criticalThreshold = 100
)

// QueriesPercent returns query consumption as a percentage of the limit.
// Returns 0 when the limit is zero, unlimited or otherwise non-positive;
// the sentinel must never end up as a divisor.
func (u Usage) QueriesPercent() float64 {
	return percent(u.QueriesUsed, u.QueriesLimit)
}

// StoragePercent returns storage consumption as a percentage of the limit.
func (u Usage) StoragePercent() float64 {
	return percent(u.StorageUsed, u.StorageLimit)
}

// MaxPercent returns the higher of the two consumption percentages,
// which is what drives the warning level.
func (u Usage) MaxPercent() float64 {
	return max(u.QueriesPercent(), u.StoragePercent())
}

func percent(used, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used) / float64(limit) * 100
}

// WarnLevel derives the warning severity from the snapshot. The thresholds
// partition the domain: <75 none, [75,90) moderate, [90,100) high, >=100
// critical.
func (u Usage) WarnLevel() WarningLevel {
	switch p := u.MaxPercent(); {
	case p >= criticalThreshold:
		return WarningCritical
	case p >= highThreshold:
		return WarningHigh
	case p >= moderateThreshold:
		return WarningModerate
	default:
		return WarningNone
	}
}
