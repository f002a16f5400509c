package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelgate/modelgate/narrative"
	"github.com/modelgate/modelgate/types"
)

var (
	evaluateAttribute string
	evaluateFull      bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <model-id>",
	Short: "Run the full evaluation pipeline for a model",
	Long: `Run drift, fairness and risk computation for a model, then evaluate
it against the active governance policy and persist the resulting status.

With --pipeline=false only the governance evaluation runs, using the
metrics already in the store.`,
	Example: `  modelgate evaluate credit-model-1
  modelgate evaluate credit-model-1 --attribute ethnicity
  modelgate evaluate credit-model-1 --pipeline=false`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVar(&evaluateAttribute, "attribute", "", "Protected attribute for the fairness stage (default from config)")
	evaluateCmd.Flags().BoolVar(&evaluateFull, "pipeline", true, "Recompute drift, fairness and risk before evaluating")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	modelID := args[0]
	ctx := cmd.Context()

	result := struct {
		Drift    *types.DriftResult      `json:"drift,omitempty"`
		Fairness *types.FairnessResult   `json:"fairness,omitempty"`
		Risk     *types.RiskEntry        `json:"risk,omitempty"`
		Verdict  types.GovernanceVerdict `json:"verdict"`
	}{}

	if evaluateFull {
		driftResult, err := a.drift.ComputeDrift(ctx, modelID)
		if err != nil {
			return fmt.Errorf("drift stage: %w", err)
		}
		result.Drift = &driftResult

		attribute := evaluateAttribute
		if attribute == "" {
			attribute = a.cfg.Fairness.DefaultAttribute
		}
		fairnessResult, err := a.fairness.ComputeFairness(ctx, modelID, attribute)
		if err != nil {
			return fmt.Errorf("fairness stage: %w", err)
		}
		result.Fairness = &fairnessResult

		riskEntry, err := a.risk.ComposeRisk(ctx, modelID)
		if err != nil {
			return fmt.Errorf("risk stage: %w", err)
		}
		result.Risk = &riskEntry
	}

	verdict, err := a.evaluator.Evaluate(ctx, modelID)
	if err != nil {
		return err
	}
	result.Verdict = verdict

	return printJSON(result)
}

var explainCmd = &cobra.Command{
	Use:   "explain <model-id>",
	Short: "Explain a model's governance position without changing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		explanation, verdict, err := a.evaluator.Explain(cmd.Context(), args[0], narrative.NewChain())
		if err != nil {
			return err
		}
		return printJSON(struct {
			Verdict     types.GovernanceVerdict `json:"verdict"`
			Explanation narrative.Explanation   `json:"explanation"`
		}{verdict, explanation})
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)
}
