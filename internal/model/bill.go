package model

import "time"

// Variance classifies a billed amount relative to its typical cost range.
type Variance string

const (
	VarianceAbove  Variance = "above"
	VarianceWithin Variance = "within"
	VarianceBelow  Variance = "below"
)

// CodeStatus describes how much trust to place in a line item's code.
type CodeStatus string

const (
	CodeStatusVerified  CodeStatus = "verified"
	CodeStatusSuggested CodeStatus = "suggested"
	CodeStatusUncertain CodeStatus = "uncertain"
)

// CodeSystem identifies the coding system a code value belongs to.
type CodeSystem string

const (
	CodeSystemCPT    CodeSystem = "CPT"
	CodeSystemHCPCS  CodeSystem = "HCPCS"
	CodeSystemICD10  CodeSystem = "ICD10"
	CodeSystemCustom CodeSystem = "Custom"
)

// CostProvenance records whether a line item's cost figures came from a real
// analysis call or were synthesized from the fallback corpus.
type CostProvenance string

const (
	CostProvenanceAnalyzed CostProvenance = "analyzed"
	CostProvenanceFallback CostProvenance = "fallback"
)

// TypicalCost is a min/median/max cost range for a billed service.
// Invariant: Min <= Median <= Max.
type TypicalCost struct {
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Valid reports whether the range is ordered.
func (c TypicalCost) Valid() bool {
	return c.Min <= c.Median && c.Median <= c.Max
}

// CodeInfo is a standardized code attached to a line item.
type CodeInfo struct {
	System     CodeSystem `json:"system"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Status     CodeStatus `json:"status"`
}

// SuggestedCode is an alternative code proposed for a line item.
type SuggestedCode struct {
	System     string  `json:"system"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// InsurerInfo holds adjudication figures when known. The pipeline never
// populates these; they exist for the results surface.
type InsurerInfo struct {
	AllowedAmount         *float64 `json:"allowed_amount,omitempty"`
	CoveredAmount         *float64 `json:"covered_amount,omitempty"`
	PatientResponsibility *float64 `json:"patient_responsibility,omitempty"`
}

// ItemActions marks which follow-up actions apply to a line item.
type ItemActions struct {
	Flaggable   bool `json:"flaggable"`
	Negotiable  bool `json:"negotiable"`
	Correctable bool `json:"correctable"`
}

// LineItem is one billed service with its code, billed amount, and fair-cost
// comparison. Immutable once emitted from the pipeline.
type LineItem struct {
	ID                    string         `json:"id"`
	RawDescription        string         `json:"raw_description"`
	NormalizedDescription string         `json:"normalized_description"`
	Code                  *CodeInfo      `json:"code,omitempty"`
	SuggestedCode         *SuggestedCode `json:"suggested_code,omitempty"`
	Units                 int            `json:"units"`
	BilledAmount          float64        `json:"billed_amount"`
	TypicalCost           TypicalCost    `json:"typical_cost"`
	Insurer               InsurerInfo    `json:"insurer"`
	Variance              Variance       `json:"variance"`
	Actions               ItemActions    `json:"actions"`
	CostProvenance        CostProvenance `json:"cost_provenance"`
}

// FlagType categorizes a billing anomaly. Only FlagOvercharge has a generator
// today; the remaining types are reserved for future rule sets.
type FlagType string

const (
	FlagOvercharge   FlagType = "overcharge"
	FlagCodeMismatch FlagType = "codeMismatch"
	FlagUnbundled    FlagType = "unbundled"
	FlagDuplicate    FlagType = "duplicate"
)

// FlagSeverity grades how serious a flag is.
type FlagSeverity string

const (
	SeverityLow  FlagSeverity = "low"
	SeverityMed  FlagSeverity = "med"
	SeverityHigh FlagSeverity = "high"
)

// Flag is a structured finding attached to a line item. Created once per
// qualifying line item, never mutated.
type Flag struct {
	ItemID    string       `json:"item_id"`
	Type      FlagType     `json:"type"`
	Severity  FlagSeverity `json:"severity"`
	Rationale string       `json:"rationale"`
}

// AnalysisSummary aggregates an analysis run's financial totals.
type AnalysisSummary struct {
	BilledTotal               float64 `json:"billed_total"`
	EstimatedFairTotal        float64 `json:"estimated_fair_total"`
	EstimatedInsuranceCovered float64 `json:"estimated_insurance_covered"`
	PatientResponsibility     float64 `json:"patient_responsibility"`
	PotentialSavings          float64 `json:"potential_savings"`
}

// AnalysisData is the complete output of one bill analysis run.
type AnalysisData struct {
	Summary   AnalysisSummary `json:"summary"`
	LineItems []LineItem      `json:"line_items"`
	Flags     []Flag          `json:"flags"`
}

// AnalysisRecord wraps an AnalysisData with run identity for the history
// surface. Storage is in-memory only.
type AnalysisRecord struct {
	ID        string       `json:"id"`
	BillText  string       `json:"bill_text"`
	Data      AnalysisData `json:"data"`
	CreatedAt time.Time    `json:"created_at"`
}

// ExtractedCode is a transient (code, description, rationale) triple produced
// by the coding collaborator, tagged with its source coding system.
type ExtractedCode struct {
	Code          string `json:"code"`
	Description   string `json:"description"`
	Rationale     string `json:"rationale,omitempty"`
	SystemName    string `json:"system_name"`
	SystemVersion string `json:"system_version"`
}

// CostAnalysisResult is the per-code unit of work produced by the cost
// analyzer or the fallback synthesizer before folding into a LineItem.
type CostAnalysisResult struct {
	Units        int            `json:"units"`
	BilledAmount float64        `json:"billedAmount"`
	TypicalCost  TypicalCost    `json:"typicalCost"`
	Provenance   CostProvenance `json:"-"`
}

// FallbackArchetype is a precomputed plausible cost record used when real
// cost analysis cannot be obtained.
type FallbackArchetype struct {
	ServiceType  string      `json:"serviceType"`
	Units        int         `json:"units"`
	BilledAmount float64     `json:"billedAmount"`
	TypicalCost  TypicalCost `json:"typicalCost"`
}
