package analyzer

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/clearbill/billscan/internal/jsonx"
	"github.com/clearbill/billscan/internal/model"
	"github.com/clearbill/billscan/pkg/anthropic"
)

const costAnalysisPrompt = `You are a medical billing expert. I need you to analyze a specific medical code against an itemized medical bill and cost database.

MEDICAL CODE: %s
DESCRIPTION: %s

ITEMIZED MEDICAL BILL:
%s

COST DATABASE:
%s

Please analyze and provide ONLY a JSON response with these exact fields:
{
  "units": [number of units for this medical code found in the bill],
  "billedAmount": [dollar amount billed for this code in the bill],
  "typicalCost": {
    "min": [minimum cost from the cost database for this code],
    "median": [median cost from the cost database for this code],
    "max": [maximum cost from the cost database for this code]
  }
}

Important notes:
- If the medical code is not explicitly found in the bill, try to match it to the closest related line item
- If no mapping exists in the cost database, use reasonable estimates based on similar codes
- Return only valid JSON, no additional text or explanation`

// costResponse is the collaborator's reply, validated at the boundary before
// entering the typed domain. Pointer fields distinguish missing from zero.
type costResponse struct {
	Units        *float64 `json:"units"`
	BilledAmount *float64 `json:"billedAmount"`
	TypicalCost  *struct {
		Min    *float64 `json:"min"`
		Median *float64 `json:"median"`
		Max    *float64 `json:"max"`
	} `json:"typicalCost"`
}

// AnalyzeCode determines units, billed amount, and typical cost for one
// extracted code by reconciling it against the bill text and the reference
// cost table. Any failure, or forced fallback, synthesizes a plausible result
// from the archetype corpus instead of surfacing zeroes.
func (p *Pipeline) AnalyzeCode(ctx context.Context, code model.ExtractedCode, billText string) (model.CostAnalysisResult, anthropic.TokenUsage) {
	var usage anthropic.TokenUsage

	if p.forceFallback {
		zap.L().Info("cost: forced fallback", zap.String("code", code.Code))
		return p.synth.Synthesize(nil), usage
	}

	resp, err := p.createMessage(ctx, costAnalysisPrompt, code.Code, code.Description, billText, p.ref.Mappings())
	if err != nil {
		zap.L().Warn("cost: inference call failed, synthesizing",
			zap.String("code", code.Code),
			zap.Error(err),
		)
		return p.synth.Synthesize(nil), usage
	}
	usage.Add(resp.Usage)

	span, ok := jsonx.FirstObject(resp.Text())
	if !ok {
		zap.L().Warn("cost: no JSON object in response, synthesizing", zap.String("code", code.Code))
		return p.synth.Synthesize(nil), usage
	}

	var parsed costResponse
	if err := span.Decode(&parsed); err != nil {
		zap.L().Warn("cost: malformed JSON, synthesizing",
			zap.String("code", code.Code),
			zap.Error(err),
		)
		return p.synth.Synthesize(nil), usage
	}

	if result, ok := parsed.validate(); ok {
		result.Provenance = model.CostProvenanceAnalyzed
		return result, usage
	}

	// The reply may still carry a usable billed amount; scale the synthesized
	// cost range to match it so the placeholder stays proportionate.
	var target *float64
	if parsed.BilledAmount != nil && *parsed.BilledAmount > 0 {
		target = parsed.BilledAmount
	}
	zap.L().Warn("cost: incomplete numeric fields, synthesizing",
		zap.String("code", code.Code),
		zap.Bool("known_billed_amount", target != nil),
	)
	return p.synth.Synthesize(target), usage
}

// validate turns a fully populated, well-ordered response into a result.
func (r costResponse) validate() (model.CostAnalysisResult, bool) {
	if r.Units == nil || r.BilledAmount == nil || r.TypicalCost == nil ||
		r.TypicalCost.Min == nil || r.TypicalCost.Median == nil || r.TypicalCost.Max == nil {
		return model.CostAnalysisResult{}, false
	}

	tc := model.TypicalCost{
		Min:    *r.TypicalCost.Min,
		Median: *r.TypicalCost.Median,
		Max:    *r.TypicalCost.Max,
	}
	if !tc.Valid() || tc.Max <= 0 || *r.Units < 0 || *r.BilledAmount < 0 {
		return model.CostAnalysisResult{}, false
	}

	return model.CostAnalysisResult{
		Units:        int(*r.Units),
		BilledAmount: *r.BilledAmount,
		TypicalCost:  tc,
	}, true
}

// closeMatchRelDiff is the relative difference under which an archetype's
// billed amount counts as close enough to a target to use unscaled.
const closeMatchRelDiff = 0.5

// FallbackSynthesizer produces plausible cost results from the archetype
// corpus when real analysis is unavailable. The randomness source is
// injectable so synthesis is reproducible in tests; access to it is
// serialized so a shared Pipeline can synthesize from concurrent requests.
type FallbackSynthesizer struct {
	archetypes []model.FallbackArchetype

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallbackSynthesizer creates a synthesizer over a non-empty corpus.
func NewFallbackSynthesizer(archetypes []model.FallbackArchetype, rng *rand.Rand) *FallbackSynthesizer {
	return &FallbackSynthesizer{archetypes: archetypes, rng: rng}
}

// Synthesize picks a uniformly random archetype. Given a target billed
// amount, it prefers any archetype within closeMatchRelDiff of the target;
// failing that, it scales the random pick's cost range so billed amount and
// typical costs stay proportionally consistent.
func (s *FallbackSynthesizer) Synthesize(target *float64) model.CostAnalysisResult {
	s.mu.Lock()
	pick := s.archetypes[s.rng.IntN(len(s.archetypes))]
	s.mu.Unlock()

	if target == nil || *target <= 0 {
		zap.L().Info("fallback: using archetype",
			zap.String("service_type", pick.ServiceType),
			zap.Float64("billed_amount", pick.BilledAmount),
		)
		return archetypeResult(pick)
	}

	t := *target
	for _, a := range s.archetypes {
		if math.Abs(a.BilledAmount-t)/t < closeMatchRelDiff {
			zap.L().Info("fallback: using close-match archetype",
				zap.String("service_type", a.ServiceType),
				zap.Float64("target", t),
			)
			return archetypeResult(a)
		}
	}

	ratio := t / pick.BilledAmount
	zap.L().Info("fallback: scaling archetype to target",
		zap.String("service_type", pick.ServiceType),
		zap.Float64("target", t),
		zap.Float64("ratio", ratio),
	)
	return model.CostAnalysisResult{
		Units:        pick.Units,
		BilledAmount: t,
		TypicalCost: model.TypicalCost{
			Min:    math.Round(pick.TypicalCost.Min * ratio),
			Median: math.Round(pick.TypicalCost.Median * ratio),
			Max:    math.Round(pick.TypicalCost.Max * ratio),
		},
		Provenance: model.CostProvenanceFallback,
	}
}

func archetypeResult(a model.FallbackArchetype) model.CostAnalysisResult {
	return model.CostAnalysisResult{
		Units:        a.Units,
		BilledAmount: a.BilledAmount,
		TypicalCost:  a.TypicalCost,
		Provenance:   model.CostProvenanceFallback,
	}
}
