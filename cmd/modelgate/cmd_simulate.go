package main

import (
	"github.com/spf13/cobra"

	"github.com/modelgate/modelgate/simulate"
	"github.com/modelgate/modelgate/types"
)

var (
	simulateRisk      float64
	simulateDisparity float64
	simulateOverride  bool
	simulatePolicyID  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Test a hypothetical score against a policy",
	Long: `Evaluate a what-if risk/disparity pair against a governance policy
without touching any stored model. The result carries a compliance
grade: A clean pass, B soft gate pending override, C soft gate passed
via override, D fairness gate passed via override, F failed.`,
	Example: `  modelgate simulate --risk 65 --disparity 0.05
  modelgate simulate --risk 65 --disparity 0.05 --override
  modelgate simulate --risk 40 --disparity 0.20 --policy <policy-id>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.simulator.Simulate(cmd.Context(), simulatePolicyID, types.SimulationInput{
			RiskScore:      simulateRisk,
			DisparityScore: simulateDisparity,
			Override:       simulateOverride,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the demo scenario",
	Long: `Create a demo credit model with 300 baseline and 200 drifted
prediction logs, a staged rising risk history and a default policy, then
run the full pipeline over it. Refuses to run twice.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		seeder := simulate.NewSeeder(a.store, a.drift, a.fairness, a.risk, a.evaluator)
		result, err := seeder.Seed(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(seedCmd)

	simulateCmd.Flags().Float64Var(&simulateRisk, "risk", 0, "Hypothetical risk score (0-100)")
	simulateCmd.Flags().Float64Var(&simulateDisparity, "disparity", 0, "Hypothetical disparity score (0-1)")
	simulateCmd.Flags().BoolVar(&simulateOverride, "override", false, "Assume an override is requested")
	simulateCmd.Flags().StringVar(&simulatePolicyID, "policy", "", "Policy to simulate against (default: active policy)")
}
