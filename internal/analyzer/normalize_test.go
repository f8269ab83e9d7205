package analyzer

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNormalizeBill(t *testing.T) {
	ai := &mockInferenceClient{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`Here are the descriptions:
["The patient had an office visit.", "The patient had a blood draw."]`), nil)

	p := newTestPipeline(t, ai, &mockCoderClient{})
	descriptions, usage := p.NormalizeBill(context.Background(), "ITEMIZED CHARGES\nOffice visit $285\nBlood draw $45")

	assert.Equal(t, []string{
		"The patient had an office visit.",
		"The patient had a blood draw.",
	}, descriptions)
	assert.Equal(t, int64(100), usage.InputTokens)
	ai.AssertExpectations(t)
}

func TestNormalizeBillCallFailureDegradesToRawText(t *testing.T) {
	ai := &mockInferenceClient{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, eris.New("boom"))

	p := newTestPipeline(t, ai, &mockCoderClient{})
	descriptions, _ := p.NormalizeBill(context.Background(), "raw bill text")

	assert.Equal(t, []string{"raw bill text"}, descriptions)
}

func TestNormalizeBillNoArrayDegradesToRawText(t *testing.T) {
	ai := &mockInferenceClient{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("I'm sorry, I can't parse this bill."), nil)

	p := newTestPipeline(t, ai, &mockCoderClient{})
	descriptions, _ := p.NormalizeBill(context.Background(), "raw bill text")

	assert.Equal(t, []string{"raw bill text"}, descriptions)
}

func TestNormalizeBillEmptyArrayDegradesToRawText(t *testing.T) {
	ai := &mockInferenceClient{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("[]"), nil)

	p := newTestPipeline(t, ai, &mockCoderClient{})
	descriptions, _ := p.NormalizeBill(context.Background(), "raw bill text")

	assert.Equal(t, []string{"raw bill text"}, descriptions)
}

func TestNormalizeBillWrongElementTypeDegradesToRawText(t *testing.T) {
	ai := &mockInferenceClient{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`[{"not": "a string"}]`), nil)

	p := newTestPipeline(t, ai, &mockCoderClient{})
	descriptions, _ := p.NormalizeBill(context.Background(), "raw bill text")

	assert.Equal(t, []string{"raw bill text"}, descriptions)
}
