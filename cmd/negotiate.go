package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearbill/billscan/pkg/vapi"
)

var (
	negotiateNumber   string
	negotiateName     string
	negotiateWait     bool
	negotiateAnalysis string
)

var negotiateCmd = &cobra.Command{
	Use:   "negotiate",
	Short: "Place an outbound negotiation call",
	Long:  "Starts a voice assistant call to the billing office to dispute flagged charges. Requires Vapi credentials and an assistant configured for bill negotiation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if negotiateNumber == "" {
			return eris.New("negotiate: --number is required")
		}
		if cfg.Vapi.Key == "" || cfg.Vapi.AssistantID == "" || cfg.Vapi.PhoneNumberID == "" {
			return eris.New("negotiate: vapi key, assistant_id, and phone_number_id must be configured")
		}

		metadata, err := analysisMetadata(negotiateAnalysis)
		if err != nil {
			return err
		}

		client := vapi.NewClient(cfg.Vapi.Key)

		call, err := client.CreateCall(ctx, vapi.CallRequest{
			AssistantID:   cfg.Vapi.AssistantID,
			PhoneNumberID: cfg.Vapi.PhoneNumberID,
			Customer: vapi.Customer{
				Name:   negotiateName,
				Number: negotiateNumber,
			},
			Metadata: metadata,
		})
		if err != nil {
			return eris.Wrap(err, "negotiate: create call")
		}

		zap.L().Info("call started",
			zap.String("call_id", call.ID),
			zap.String("status", call.Status),
		)

		if !negotiateWait {
			return nil
		}

		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}

			call, err = client.GetCall(ctx, call.ID)
			if err != nil {
				return eris.Wrap(err, "negotiate: poll call")
			}
			zap.L().Info("call status", zap.String("status", call.Status))

			if call.Status == "ended" {
				zap.L().Info("call ended", zap.Time("ended_at", call.EndedAt))
				return nil
			}
		}
	},
}

// analysisMetadata loads a saved analysis (the `analyze --json` output) and
// reduces it to the figures the assistant needs on the call.
func analysisMetadata(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "negotiate: read analysis")
	}

	var results []billResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, eris.Wrap(err, "negotiate: parse analysis")
	}
	if len(results) == 0 || results[0].Analysis == nil {
		return nil, eris.New("negotiate: analysis file holds no results")
	}

	s := results[0].Analysis.Summary
	return map[string]any{
		"billedTotal":        s.BilledTotal,
		"estimatedFairTotal": s.EstimatedFairTotal,
		"potentialSavings":   s.PotentialSavings,
		"flagCount":          len(results[0].Analysis.Flags),
	}, nil
}

func init() {
	negotiateCmd.Flags().StringVar(&negotiateNumber, "number", "", "billing office phone number in E.164 format")
	negotiateCmd.Flags().StringVar(&negotiateName, "name", "", "display name for the callee")
	negotiateCmd.Flags().BoolVar(&negotiateWait, "wait", false, "poll until the call ends")
	negotiateCmd.Flags().StringVar(&negotiateAnalysis, "analysis", "", "path to saved analyze --json output to attach as call context")
	rootCmd.AddCommand(negotiateCmd)
}
