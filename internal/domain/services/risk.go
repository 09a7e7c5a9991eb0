package services

import (
	"math"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

// severityWeights rank how much an unresolved promise of each severity exposes
var severityWeights = map[entities.Severity]float64{
	entities.SeverityCritical: 10,
	entities.SeverityHigh:     7,
	entities.SeverityMedium:   4,
	entities.SeverityLow:      1,
	entities.SeverityUnknown:  3,
}

// SeverityWeight returns the risk weight of a severity; unmapped values weigh as UNKNOWN
func SeverityWeight(s entities.Severity) float64 {
	if w, ok := severityWeights[s]; ok {
		return w
	}
	return severityWeights[entities.SeverityUnknown]
}

// AggregateRisk rolls verdicts into a 0-100 score weighted by severity.
// NOT_FIXED counts fully and UNCONFIRMED counts half.
func AggregateRisk(verdicts []entities.PromiseVerdict) entities.RiskScore {
	if len(verdicts) == 0 {
		return entities.RiskScore{Score: 0, Label: entities.RiskNone}
	}

	var total, exposed float64
	for _, v := range verdicts {
		w := SeverityWeight(v.Severity)
		total += w
		switch v.Verdict.Status {
		case entities.StatusNotFixed:
			exposed += w
		case entities.StatusUnconfirmed:
			exposed += w * 0.5
		}
	}

	score := 0.0
	if total > 0 {
		score = math.Round(exposed/total*100*10) / 10
	}
	return entities.RiskScore{Score: score, Label: RiskLabelFor(score)}
}

// RiskLabelFor buckets a risk score
func RiskLabelFor(score float64) entities.RiskLabel {
	switch {
	case score >= 70:
		return entities.RiskCritical
	case score >= 45:
		return entities.RiskHigh
	case score >= 20:
		return entities.RiskMedium
	case score > 0:
		return entities.RiskLow
	default:
		return entities.RiskNone
	}
}

// CountStatuses tallies verdicts by status
func CountStatuses(verdicts []entities.PromiseVerdict) (fixed, notFixed, unconfirmed int) {
	for _, v := range verdicts {
		switch v.Verdict.Status {
		case entities.StatusFixed:
			fixed++
		case entities.StatusNotFixed:
			notFixed++
		case entities.StatusUnconfirmed:
			unconfirmed++
		}
	}
	return fixed, notFixed, unconfirmed
}
