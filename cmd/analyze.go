package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/clearbill/billscan/internal/analyzer"
	"github.com/clearbill/billscan/internal/model"
	"github.com/clearbill/billscan/internal/refdata"
	"github.com/clearbill/billscan/pkg/anthropic"
	"github.com/clearbill/billscan/pkg/pheno"
)

var (
	analyzeJSON          bool
	analyzeForceFallback bool
	analyzeSeed          int64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file...]",
	Short: "Analyze one or more medical bills",
	Long:  "Reads bill text from the given files (or stdin when none are given), runs the full analysis pipeline, and prints the results.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		bills, err := readBills(args)
		if err != nil {
			return err
		}

		ref, err := refdata.Load(cfg.Refdata.MappingsPath, cfg.Refdata.FallbackPath)
		if err != nil {
			return err
		}

		results := make([]billResult, len(bills))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Analyze.MaxConcurrentBills)

		for i, bill := range bills {
			g.Go(func() error {
				p := newPipeline(ref, pipelineOptions(i)...)
				data, err := p.Analyze(gctx, bill.text)
				if err != nil {
					return eris.Wrapf(err, "analyze %s", bill.name)
				}
				results[i] = billResult{Name: bill.name, Analysis: data}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		for _, r := range results {
			if len(results) > 1 {
				fmt.Printf("\n=== %s ===\n\n", r.Name)
			}
			fmt.Print(analyzer.Report(r.Analysis))
		}

		return nil
	},
}

type billInput struct {
	name string
	text string
}

type billResult struct {
	Name     string              `json:"name"`
	Analysis *model.AnalysisData `json:"analysis"`
}

// readBills loads bill text from files, or stdin when no files are given.
func readBills(paths []string) ([]billInput, error) {
	if len(paths) == 0 {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, eris.Wrap(err, "read stdin")
		}
		return []billInput{{name: "stdin", text: string(raw)}}, nil
	}

	bills := make([]billInput, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "read bill %s", path)
		}
		bills = append(bills, billInput{name: path, text: string(raw)})
	}
	return bills, nil
}

// pipelineOptions derives per-bill pipeline options from the analyze flags.
// When a seed is set, each bill gets its own deterministic stream keyed by
// index so concurrent runs stay reproducible.
func pipelineOptions(index int) []analyzer.Option {
	opts := []analyzer.Option{
		analyzer.WithForceFallback(analyzeForceFallback),
	}
	if analyzeSeed != 0 {
		opts = append(opts, analyzer.WithRand(
			rand.New(rand.NewPCG(uint64(analyzeSeed), uint64(index))),
		))
	}
	return opts
}

func newPipeline(ref *refdata.Store, opts ...analyzer.Option) *analyzer.Pipeline {
	ai := anthropic.NewClient(cfg.Anthropic.Key)
	coder := pheno.NewClient(cfg.Pheno.Username, cfg.Pheno.Password,
		pheno.WithBaseURL(cfg.Pheno.BaseURL),
		pheno.WithRateLimit(cfg.Pheno.RateLimitRPS),
	)
	return analyzer.New(cfg, ai, coder, ref, opts...)
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit full analysis as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeForceFallback, "force-fallback", false, "skip cost analysis and synthesize all costs from the fallback corpus")
	analyzeCmd.Flags().Int64Var(&analyzeSeed, "seed", 0, "seed for fallback synthesis (0 means random)")
	rootCmd.AddCommand(analyzeCmd)
}
