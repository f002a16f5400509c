package main

import (
	"github.com/spf13/cobra"
)

var (
	fairnessAttribute string
	riskHistoryLimit  int
)

var driftCmd = &cobra.Command{
	Use:   "drift <model-id>",
	Short: "Compute feature drift for a model",
	Long: `Compare the recent window of prediction logs against the baseline
window and report PSI and KS per feature.`,
	Example: `  modelgate drift credit-model-1`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.drift.ComputeDrift(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var fairnessCmd = &cobra.Command{
	Use:   "fairness <model-id>",
	Short: "Compute fairness disparity for a model",
	Example: `  modelgate fairness credit-model-1
  modelgate fairness credit-model-1 --attribute ethnicity`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		attribute := fairnessAttribute
		if attribute == "" {
			attribute = a.cfg.Fairness.DefaultAttribute
		}
		result, err := a.fairness.ComputeFairness(cmd.Context(), args[0], attribute)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var riskCmd = &cobra.Command{
	Use:   "risk <model-id>",
	Short: "Compose the model risk index and show its history",
	Example: `  modelgate risk credit-model-1
  modelgate risk credit-model-1 --history 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.risk.ComposeRisk(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		history, err := a.store.RiskHistory(args[0], riskHistoryLimit)
		if err != nil {
			return err
		}
		return printJSON(struct {
			Current any `json:"current"`
			History any `json:"history"`
		}{entry, history})
	},
}

func init() {
	rootCmd.AddCommand(driftCmd)
	rootCmd.AddCommand(fairnessCmd)
	rootCmd.AddCommand(riskCmd)

	fairnessCmd.Flags().StringVar(&fairnessAttribute, "attribute", "", "Protected attribute to group by (default from config)")
	riskCmd.Flags().IntVar(&riskHistoryLimit, "history", 5, "Risk history entries to show")
}
