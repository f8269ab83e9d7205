package analyzer

import (
	"fmt"

	"github.com/clearbill/billscan/internal/model"
)

// Severity thresholds as overcharge percentage of the typical maximum.
// Boundaries are inclusive to the lower tier.
const (
	highSeverityPct = 50.0
	medSeverityPct  = 20.0
)

// GenerateFlags emits one overcharge flag per line item billed above its
// typical maximum. Other flag types in the taxonomy have no generator yet.
func GenerateFlags(items []model.LineItem) []model.Flag {
	var flags []model.Flag

	for _, item := range items {
		if item.Variance != model.VarianceAbove {
			continue
		}

		overchargeAmount := item.BilledAmount - item.TypicalCost.Max
		overchargePct := overchargeAmount / item.TypicalCost.Max * 100

		severity := model.SeverityLow
		switch {
		case overchargePct > highSeverityPct:
			severity = model.SeverityHigh
		case overchargePct > medSeverityPct:
			severity = model.SeverityMed
		}

		flags = append(flags, model.Flag{
			ItemID:   item.ID,
			Type:     model.FlagOvercharge,
			Severity: severity,
			Rationale: fmt.Sprintf(
				"Billed amount $%.2f exceeds typical maximum of $%.2f by $%.2f (%.1f%%)",
				item.BilledAmount, item.TypicalCost.Max, overchargeAmount, overchargePct,
			),
		})
	}

	return flags
}
