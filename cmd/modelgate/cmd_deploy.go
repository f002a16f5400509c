package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	deployActor    string
	deployOverride bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy <model-id>",
	Short: "Request deployment of a model through the governance gate",
	Long: `Re-evaluate the model against the active policy and deploy it if the
gate allows. A hard block can never be overridden; a soft gate can be
passed with --override, which is recorded in the audit trail.`,
	Example: `  modelgate deploy credit-model-1 --actor alice
  modelgate deploy credit-model-1 --actor alice --override`,
	Args: cobra.ExactArgs(1),
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().StringVar(&deployActor, "actor", "", "Who is requesting the deployment (required)")
	deployCmd.Flags().BoolVar(&deployOverride, "override", false, "Override a soft governance gate")
	_ = deployCmd.MarkFlagRequired("actor")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	decision, err := a.gate.Deploy(cmd.Context(), args[0], deployActor, deployOverride)
	if err != nil {
		return err
	}

	if err := printJSON(decision); err != nil {
		return err
	}
	if !decision.Allowed {
		// Non-zero exit for CI pipelines gating on deployment.
		fmt.Fprintf(os.Stderr, "deployment denied: %s\n", decision.Reason)
		a.Close()
		os.Exit(1)
	}
	return nil
}
