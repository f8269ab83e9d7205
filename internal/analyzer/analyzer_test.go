package analyzer

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clearbill/billscan/internal/model"
	"github.com/clearbill/billscan/pkg/anthropic"
	"github.com/clearbill/billscan/pkg/pheno"
)

func promptContaining(substr string) any {
	return mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages) == 1 && strings.Contains(req.Messages[0].Content, substr)
	})
}

func TestAnalyzeEndToEnd(t *testing.T) {
	billText := "ITEMIZED CHARGES\nOffice Visit - Established Patient ... $285.00"

	ai := &mockInferenceClient{}
	ai.On("CreateMessage", mock.Anything, promptContaining("Reword the medical bill")).
		Return(textResponse(`["The patient had an office visit."]`), nil)
	ai.On("CreateMessage", mock.Anything, promptContaining("MEDICAL CODE: 185349003")).
		Return(textResponse(`{"units": 1, "billedAmount": 285, "typicalCost": {"min": 180, "median": 220, "max": 260}}`), nil)

	coder := &mockCoderClient{}
	coder.On("ExtractCodes", mock.Anything, "The patient had an office visit.").
		Return([]pheno.ExtractedCode{
			{Code: "185349003", Description: "Encounter for check up"},
		}, nil)

	p := newTestPipeline(t, ai, coder)
	data, err := p.Analyze(context.Background(), billText)

	require.NoError(t, err)
	require.Len(t, data.LineItems, 1)

	item := data.LineItems[0]
	assert.Equal(t, "185349003", item.Code.Value)
	assert.Equal(t, 1, item.Units)
	assert.InDelta(t, 285, item.BilledAmount, 1e-9)
	assert.Equal(t, model.VarianceAbove, item.Variance)
	assert.Equal(t, model.CostProvenanceAnalyzed, item.CostProvenance)

	require.Len(t, data.Flags, 1)
	assert.Equal(t, item.ID, data.Flags[0].ItemID)
	assert.Equal(t, model.SeverityLow, data.Flags[0].Severity)
	assert.Contains(t, data.Flags[0].Rationale, "$285.00")
	assert.Contains(t, data.Flags[0].Rationale, "9.6%")

	assert.InDelta(t, 285, data.Summary.BilledTotal, 1e-9)
	assert.InDelta(t, 220, data.Summary.EstimatedFairTotal, 1e-9)
	assert.InDelta(t, 154, data.Summary.EstimatedInsuranceCovered, 1e-9)
	assert.InDelta(t, 66, data.Summary.PatientResponsibility, 1e-9)
	assert.InDelta(t, 65, data.Summary.PotentialSavings, 1e-9)

	ai.AssertExpectations(t)
	coder.AssertExpectations(t)
}

func TestAnalyzeEmptyBillText(t *testing.T) {
	p := newTestPipeline(t, &mockInferenceClient{}, &mockCoderClient{})

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := p.Analyze(context.Background(), text)
		require.Error(t, err)
	}
}

func TestAnalyzeAuthFailureIsFatal(t *testing.T) {
	ai := &mockInferenceClient{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`["The patient had an office visit."]`), nil)

	coder := &mockCoderClient{}
	coder.On("ExtractCodes", mock.Anything, mock.Anything).
		Return(nil, &pheno.AuthError{Err: eris.New("bad credentials")})

	p := newTestPipeline(t, ai, coder)
	_, err := p.Analyze(context.Background(), "some bill")

	require.Error(t, err)
	assert.True(t, pheno.IsAuthError(err))
}

func TestAnalyzeNoCodesYieldsEmptyAnalysis(t *testing.T) {
	ai := &mockInferenceClient{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`["The patient had an office visit."]`), nil)

	coder := &mockCoderClient{}
	coder.On("ExtractCodes", mock.Anything, mock.Anything).
		Return([]pheno.ExtractedCode{}, nil)

	p := newTestPipeline(t, ai, coder)
	data, err := p.Analyze(context.Background(), "some bill")

	require.NoError(t, err)
	assert.Empty(t, data.LineItems)
	assert.Empty(t, data.Flags)
	assert.Zero(t, data.Summary.BilledTotal)
}

func TestAnalyzeForcedFallbackNeverCallsCostInference(t *testing.T) {
	ai := &mockInferenceClient{}
	ai.On("CreateMessage", mock.Anything, promptContaining("Reword the medical bill")).
		Return(textResponse(`["The patient had an office visit."]`), nil)

	coder := &mockCoderClient{}
	coder.On("ExtractCodes", mock.Anything, mock.Anything).
		Return([]pheno.ExtractedCode{{Code: "185349003", Description: "Encounter for check up"}}, nil)

	p := newTestPipeline(t, ai, coder, WithForceFallback(true))
	data, err := p.Analyze(context.Background(), "some bill")

	require.NoError(t, err)
	require.Len(t, data.LineItems, 1)
	assert.Equal(t, model.CostProvenanceFallback, data.LineItems[0].CostProvenance)
	// Only the normalize call hit the inference collaborator.
	ai.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestReport(t *testing.T) {
	data := &model.AnalysisData{
		Summary: model.AnalysisSummary{
			BilledTotal:               285,
			EstimatedFairTotal:        220,
			EstimatedInsuranceCovered: 154,
			PatientResponsibility:     66,
			PotentialSavings:          65,
		},
		LineItems: []model.LineItem{
			{
				ID:                    "item-1",
				NormalizedDescription: "The patient had an office visit.",
				Code:                  &model.CodeInfo{Value: "185349003"},
				Units:                 1,
				BilledAmount:          285,
				TypicalCost:           model.TypicalCost{Min: 180, Median: 220, Max: 260},
				Variance:              model.VarianceAbove,
				CostProvenance:        model.CostProvenanceFallback,
			},
		},
		Flags: []model.Flag{
			{ItemID: "item-1", Type: model.FlagOvercharge, Severity: model.SeverityLow, Rationale: "over by $25.00"},
		},
	}

	out := Report(data)

	assert.Contains(t, out, "Billed total:          $285.00")
	assert.Contains(t, out, "Potential savings:     $65.00")
	assert.Contains(t, out, "[185349003] The patient had an office visit.")
	assert.Contains(t, out, "ABOVE typical range")
	assert.Contains(t, out, "[estimated]")
	assert.Contains(t, out, "[overcharge/low] over by $25.00")
}
