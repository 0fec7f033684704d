package risk

import (
	"churn-risk-alerts/internal/storage"
)

// RiskChange computes the percentage delta between consecutive probability
// readings. It is undefined (nil) when there is no previous reading or the
// previous reading is zero.
func RiskChange(probability float64, previous *float64) *float64 {
	if previous == nil || *previous == 0 {
		return nil
	}
	change := (probability - *previous) / *previous * 100
	return &change
}

// Decide maps the current and previous probability onto the set of triggered
// alert kinds under the given configuration. HIGH_RISK is ordered before
// RISK_INCREASE; both may trigger for one customer in one run.
func Decide(probability float64, previous *float64, cfg storage.AlertConfiguration) []storage.AlertKind {
	kinds := make([]storage.AlertKind, 0, 2)

	if probability >= cfg.HighRiskThreshold {
		kinds = append(kinds, storage.AlertKindHighRisk)
	}
	if change := RiskChange(probability, previous); change != nil && *change >= cfg.RiskIncreaseThreshold {
		kinds = append(kinds, storage.AlertKindRiskIncrease)
	}
	return kinds
}
