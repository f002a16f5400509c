package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelgate/modelgate/types"
)

var (
	policyName          string
	policyMaxMRI        float64
	policyMaxDisparity  float64
	policyApprovalAbove float64
	policyActivate      bool
	policyActor         string
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage governance policies",
	Long: `Create, list, activate and delete governance policies.

At most one policy is active at a time; activating a policy deactivates
every other one in the same transaction.`,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		policies, err := a.store.ListPolicies()
		if err != nil {
			return err
		}
		return printJSON(policies)
	},
}

var policyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a governance policy",
	Example: `  modelgate policy create --name strict --max-mri 70 --max-disparity 0.10 --approval-above 50 --activate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		policy, err := a.policies.Create(cmd.Context(), policyActor, types.Policy{
			Name:                     policyName,
			MaxAllowedMRI:            policyMaxMRI,
			MaxAllowedDisparity:      policyMaxDisparity,
			ApprovalRequiredAboveMRI: policyApprovalAbove,
			Active:                   policyActivate,
		})
		if err != nil {
			return err
		}
		return printJSON(policy)
	},
}

var policyActivateCmd = &cobra.Command{
	Use:   "activate <policy-id>",
	Short: "Activate a policy, deactivating all others",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		updated, err := a.policies.Activate(cmd.Context(), policyActor, args[0])
		if err != nil {
			return err
		}
		return printJSON(updated)
	},
}

var policyDeleteCmd = &cobra.Command{
	Use:   "delete <policy-id>",
	Short: "Delete a policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.policies.Delete(cmd.Context(), policyActor, args[0]); err != nil {
			return err
		}
		fmt.Printf("policy %s deleted\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyCreateCmd)
	policyCmd.AddCommand(policyActivateCmd)
	policyCmd.AddCommand(policyDeleteCmd)

	policyCreateCmd.Flags().StringVar(&policyName, "name", "", "Policy name (required)")
	policyCreateCmd.Flags().Float64Var(&policyMaxMRI, "max-mri", 80, "Hard ceiling: risk above this blocks deployment")
	policyCreateCmd.Flags().Float64Var(&policyMaxDisparity, "max-disparity", 0.15, "Fairness ceiling: disparity above this flags the model")
	policyCreateCmd.Flags().Float64Var(&policyApprovalAbove, "approval-above", 60, "Soft gate: risk above this requires an override")
	policyCreateCmd.Flags().BoolVar(&policyActivate, "activate", false, "Activate immediately")
	_ = policyCreateCmd.MarkFlagRequired("name")

	policyCmd.PersistentFlags().StringVar(&policyActor, "actor", "", "Who is making the change (recorded in the audit trail)")
}
