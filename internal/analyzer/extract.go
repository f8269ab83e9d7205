package analyzer

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clearbill/billscan/internal/model"
	"github.com/clearbill/billscan/internal/resilience"
	"github.com/clearbill/billscan/pkg/pheno"
)

// ExtractCodes maps each description to standardized codes via the coding
// collaborator. A failure on one description contributes zero codes and never
// aborts the batch; an authentication failure aborts the whole stage.
func (p *Pipeline) ExtractCodes(ctx context.Context, descriptions []string) ([]model.ExtractedCode, error) {
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = p.cfg.Pheno.MaxAttempts
	retryCfg.ShouldRetry = retryableExtraction
	retryCfg.OnRetry = resilience.RetryLogger("pheno", "extract")

	var all []model.ExtractedCode
	for i, desc := range descriptions {
		codes, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([]pheno.ExtractedCode, error) {
			callCtx, cancel := p.callTimeout(ctx, p.cfg.Pheno.TimeoutSecs)
			defer cancel()
			return p.coder.ExtractCodes(callCtx, desc)
		})
		if err != nil {
			if pheno.IsAuthError(err) {
				return nil, eris.Wrap(err, "extract: authenticate coding collaborator")
			}
			zap.L().Warn("extract: description failed, skipping",
				zap.Int("index", i),
				zap.String("description", truncate(desc, 80)),
				zap.Error(err),
			)
			continue
		}

		for _, c := range codes {
			all = append(all, model.ExtractedCode{
				Code:          c.Code,
				Description:   c.Description,
				Rationale:     c.Rationale,
				SystemName:    pheno.DefaultSystemName,
				SystemVersion: pheno.DefaultSystemVersion,
			})
		}
	}

	zap.L().Info("extract: codes extracted",
		zap.Int("descriptions", len(descriptions)),
		zap.Int("codes", len(all)),
	)
	return all, nil
}

// retryableExtraction retries transient failures but never auth failures;
// those are fatal for the stage and retrying would just mask them.
func retryableExtraction(err error) bool {
	if pheno.IsAuthError(err) {
		return false
	}
	var apiErr *pheno.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
