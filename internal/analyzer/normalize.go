package analyzer

import (
	"context"

	"go.uber.org/zap"

	"github.com/clearbill/billscan/internal/jsonx"
	"github.com/clearbill/billscan/pkg/anthropic"
)

const normalizePrompt = `%s

Reword the medical bill above so it is a list of natural English descriptions where each sentence corresponds to an item in the itemized charges list. Starting with examples like:
"The patient had Semi-Private Room & Board in the hospital."
"The patient had an Emergency Room Visit"
"The patient needed IV Fluids"
...etc.

Important instructions:
- Do not include the charges, dollar amounts, or anything above or below the itemized charges section
- Focus only on the medical services/items provided
- Convert each line item into a natural English sentence describing what the patient received
- The output should be formatted as a JSON array of sentences
- Return ONLY the JSON array, no additional text

Example format:
["The patient had Semi-Private Room & Board in the hospital.", "The patient had an Emergency Room Visit", "The patient needed IV Fluids"]`

// NormalizeBill rewrites the itemized section of a bill into one natural
// English description per billed service via a single inference call. Any
// failure degrades to the original bill text as the sole description, so
// downstream stages always receive at least one.
func (p *Pipeline) NormalizeBill(ctx context.Context, billText string) ([]string, anthropic.TokenUsage) {
	var usage anthropic.TokenUsage

	resp, err := p.createMessage(ctx, normalizePrompt, billText)
	if err != nil {
		zap.L().Warn("normalize: inference call failed, using raw bill text", zap.Error(err))
		return []string{billText}, usage
	}
	usage.Add(resp.Usage)

	span, ok := jsonx.FirstArray(resp.Text())
	if !ok {
		zap.L().Warn("normalize: no JSON array in response, using raw bill text")
		return []string{billText}, usage
	}

	var descriptions []string
	if err := span.Decode(&descriptions); err != nil {
		zap.L().Warn("normalize: malformed JSON array, using raw bill text", zap.Error(err))
		return []string{billText}, usage
	}
	if len(descriptions) == 0 {
		zap.L().Warn("normalize: empty description list, using raw bill text")
		return []string{billText}, usage
	}

	zap.L().Info("normalize: bill reworded", zap.Int("descriptions", len(descriptions)))
	return descriptions, usage
}
