// Package analyzer implements the medical bill analysis pipeline: bill
// normalization, medical code extraction, cost analysis with fallback
// synthesis, variance classification, flag generation, and summary
// aggregation.
package analyzer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clearbill/billscan/internal/config"
	"github.com/clearbill/billscan/internal/model"
	"github.com/clearbill/billscan/internal/refdata"
	"github.com/clearbill/billscan/pkg/anthropic"
	"github.com/clearbill/billscan/pkg/pheno"
)

// Pipeline runs the full bill analysis flow. Safe for concurrent use; bills
// that must synthesize reproducibly should each get their own Pipeline with
// their own seeded randomness source.
type Pipeline struct {
	cfg           *config.Config
	ai            anthropic.Client
	coder         pheno.Client
	ref           *refdata.Store
	synth         *FallbackSynthesizer
	forceFallback bool
}

// Option customizes pipeline construction.
type Option func(*options)

type options struct {
	rng           *rand.Rand
	forceFallback bool
}

// WithRand sets the randomness source for fallback synthesis. Useful for
// reproducible runs.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithForceFallback skips cost analysis entirely and synthesizes every
// line item from the fallback corpus.
func WithForceFallback(force bool) Option {
	return func(o *options) { o.forceFallback = force }
}

// New constructs a Pipeline over the given collaborators and reference data.
func New(cfg *config.Config, ai anthropic.Client, coder pheno.Client, ref *refdata.Store, opts ...Option) *Pipeline {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Pipeline{
		cfg:           cfg,
		ai:            ai,
		coder:         coder,
		ref:           ref,
		synth:         NewFallbackSynthesizer(ref.Archetypes(), o.rng),
		forceFallback: o.forceFallback,
	}
}

// Analyze runs the full pipeline over raw bill text and returns the
// assembled analysis. The only fatal failures are empty input and an
// unauthenticated coding collaborator; everything else degrades.
func (p *Pipeline) Analyze(ctx context.Context, billText string) (*model.AnalysisData, error) {
	if strings.TrimSpace(billText) == "" {
		return nil, eris.New("analyze: bill text is empty")
	}

	started := time.Now()
	var usage anthropic.TokenUsage

	descriptions, normUsage := p.NormalizeBill(ctx, billText)
	usage.Add(normUsage)

	codes, err := p.ExtractCodes(ctx, descriptions)
	if err != nil {
		return nil, err
	}

	items := make([]model.LineItem, 0, len(codes))
	for _, code := range codes {
		result, costUsage := p.AnalyzeCode(ctx, code, billText)
		usage.Add(costUsage)
		items = append(items, AssembleLineItem(code, result))
	}

	flags := GenerateFlags(items)
	summary := Summarize(items)

	usage.LogCost(p.cfg.Anthropic.Model, "analyze")
	zap.L().Info("analyze: complete",
		zap.Int("line_items", len(items)),
		zap.Int("flags", len(flags)),
		zap.Float64("potential_savings", summary.PotentialSavings),
		zap.Duration("elapsed", time.Since(started)),
	)

	return &model.AnalysisData{
		Summary:   summary,
		LineItems: items,
		Flags:     flags,
	}, nil
}

// createMessage sends a single-turn prompt to the inference collaborator
// under the configured model, token limit, and per-call timeout.
func (p *Pipeline) createMessage(ctx context.Context, format string, args ...any) (*anthropic.MessageResponse, error) {
	callCtx, cancel := p.callTimeout(ctx, p.cfg.Anthropic.TimeoutSecs)
	defer cancel()

	return p.ai.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.Model,
		MaxTokens: int64(p.cfg.Anthropic.MaxTokens),
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: fmt.Sprintf(format, args...)},
		},
	})
}

func (p *Pipeline) callTimeout(ctx context.Context, secs int) (context.Context, context.CancelFunc) {
	if secs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(secs)*time.Second)
}
