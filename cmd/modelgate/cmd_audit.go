package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/modelgate/modelgate/audit"
)

var (
	auditModel     string
	auditActor     string
	auditAction    string
	auditSince     time.Duration
	auditBlocked   bool
	auditOverrides bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the audit trail",
	Example: `  modelgate audit --model credit-model-1
  modelgate audit --actor alice --overrides
  modelgate audit --blocked
  modelgate audit --since 24h`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().StringVar(&auditModel, "model", "", "Filter by model ID")
	auditCmd.Flags().StringVar(&auditActor, "actor", "", "Filter by actor")
	auditCmd.Flags().StringVar(&auditAction, "action", "", "Filter by action")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "Only entries newer than this (e.g. 24h)")
	auditCmd.Flags().BoolVar(&auditBlocked, "blocked", false, "Only hard-blocked deployment attempts")
	auditCmd.Flags().BoolVar(&auditOverrides, "overrides", false, "Only decisions that used an override")
}

func runAudit(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	filter := audit.Filter{
		ModelID:      auditModel,
		Actor:        auditActor,
		Action:       audit.Action(auditAction),
		OverrideOnly: auditOverrides,
	}
	if auditBlocked {
		filter.Action = audit.ActionDeployBlocked
	}
	if auditSince > 0 {
		filter.Since = time.Now().UTC().Add(-auditSince)
	}

	entries, err := a.ledger.Query(filter)
	if err != nil {
		return err
	}
	return printJSON(entries)
}
