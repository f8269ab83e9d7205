package analyzer

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/clearbill/billscan/internal/model"
)

// Report renders an analysis as a human-readable plain-text summary,
// suitable for terminal output.
func Report(data *model.AnalysisData) string {
	pr := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString("BILL ANALYSIS\n")
	b.WriteString("=============\n\n")

	pr.Fprintf(&b, "Billed total:          $%.2f\n", data.Summary.BilledTotal)
	pr.Fprintf(&b, "Estimated fair total:  $%.2f\n", data.Summary.EstimatedFairTotal)
	pr.Fprintf(&b, "Insurance covered:     $%.2f (est.)\n", data.Summary.EstimatedInsuranceCovered)
	pr.Fprintf(&b, "Patient responsibility: $%.2f (est.)\n", data.Summary.PatientResponsibility)
	pr.Fprintf(&b, "Potential savings:     $%.2f\n", data.Summary.PotentialSavings)

	b.WriteString("\nLINE ITEMS\n----------\n")
	for i, item := range data.LineItems {
		code := "-"
		if item.Code != nil {
			code = item.Code.Value
		}
		pr.Fprintf(&b, "%d. [%s] %s\n", i+1, code, item.NormalizedDescription)
		pr.Fprintf(&b, "   units %d, billed $%.2f, typical $%.2f-$%.2f (median $%.2f), %s",
			item.Units, item.BilledAmount,
			item.TypicalCost.Min, item.TypicalCost.Max, item.TypicalCost.Median,
			varianceLabel(item.Variance),
		)
		if item.CostProvenance == model.CostProvenanceFallback {
			b.WriteString(" [estimated]")
		}
		b.WriteString("\n")
	}

	if len(data.Flags) > 0 {
		b.WriteString("\nFLAGS\n-----\n")
		for _, f := range data.Flags {
			fmt.Fprintf(&b, "[%s/%s] %s\n", f.Type, f.Severity, f.Rationale)
		}
	}

	return b.String()
}

func varianceLabel(v model.Variance) string {
	switch v {
	case model.VarianceAbove:
		return "ABOVE typical range"
	case model.VarianceBelow:
		return "below typical range"
	default:
		return "within typical range"
	}
}
