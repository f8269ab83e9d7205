package analyzer

import "github.com/clearbill/billscan/internal/model"

// Simplifying policy constants, not real adjudication: the insurer is assumed
// to cover a fixed share of the fair total, and the median typical cost
// stands in for the fair price of each service.
const (
	insuranceCoveredShare      = 0.7
	patientResponsibilityShare = 0.3
)

// Summarize reduces the final line item set into billing totals and the
// assumed insurance split. Recomputed wholesale, never persisted separately.
func Summarize(items []model.LineItem) model.AnalysisSummary {
	var billedTotal, fairTotal float64
	for _, item := range items {
		billedTotal += item.BilledAmount
		fairTotal += item.TypicalCost.Median
	}

	savings := billedTotal - fairTotal
	if savings < 0 {
		savings = 0
	}

	return model.AnalysisSummary{
		BilledTotal:               billedTotal,
		EstimatedFairTotal:        fairTotal,
		EstimatedInsuranceCovered: fairTotal * insuranceCoveredShare,
		PatientResponsibility:     fairTotal * patientResponsibilityShare,
		PotentialSavings:          savings,
	}
}
