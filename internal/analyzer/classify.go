package analyzer

import (
	"github.com/google/uuid"

	"github.com/clearbill/billscan/internal/model"
)

// extractedCodeConfidence is the fixed confidence assigned to codes returned
// by the coding collaborator: extracted, not independently adjudicated.
const extractedCodeConfidence = 0.9

// Classify compares a billed amount against a typical cost range. Exact ties
// at either boundary are within.
func Classify(billedAmount float64, typicalCost model.TypicalCost) model.Variance {
	switch {
	case billedAmount > typicalCost.Max:
		return model.VarianceAbove
	case billedAmount < typicalCost.Min:
		return model.VarianceBelow
	default:
		return model.VarianceWithin
	}
}

// AssembleLineItem folds a code and its cost analysis into a finished
// LineItem with a fresh id and derived variance/actions.
func AssembleLineItem(code model.ExtractedCode, result model.CostAnalysisResult) model.LineItem {
	variance := Classify(result.BilledAmount, result.TypicalCost)

	return model.LineItem{
		ID:                    uuid.NewString(),
		RawDescription:        code.Description,
		NormalizedDescription: code.Description,
		Code: &model.CodeInfo{
			System:     model.CodeSystemCustom,
			Value:      code.Code,
			Confidence: extractedCodeConfidence,
			Status:     model.CodeStatusVerified,
		},
		Units:        result.Units,
		BilledAmount: result.BilledAmount,
		TypicalCost:  result.TypicalCost,
		Insurer:      model.InsurerInfo{},
		Variance:     variance,
		Actions: model.ItemActions{
			Flaggable:   true,
			Negotiable:  true,
			Correctable: variance != model.VarianceWithin,
		},
		CostProvenance: result.Provenance,
	}
}
