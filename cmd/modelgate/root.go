package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modelgate/modelgate/audit"
	"github.com/modelgate/modelgate/config"
	"github.com/modelgate/modelgate/drift"
	"github.com/modelgate/modelgate/fairness"
	"github.com/modelgate/modelgate/gate"
	"github.com/modelgate/modelgate/governance"
	"github.com/modelgate/modelgate/internal/emitter"
	"github.com/modelgate/modelgate/risk"
	"github.com/modelgate/modelgate/storage"
)

var (
	version    = "0.1.0"
	configPath string
	dataDir    string

	rootCmd = &cobra.Command{
		Use:   "modelgate",
		Short: "ML Risk & Governance Evaluation Engine",
		Long: `ModelGate - ML Risk & Governance Evaluation Engine

ModelGate watches deployed ML models for distribution drift and fairness
disparity, folds both into a Model Risk Index, evaluates models against
governance policies, and gates deployments with a full audit trail.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`ModelGate {{.Version}} - ML Risk & Governance Evaluation Engine
`)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (optional)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override data directory")
}

// app bundles the wired engine for command handlers
type app struct {
	cfg       *config.Config
	store     *storage.Store
	ledger    *audit.Ledger
	drift     *drift.Calculator
	fairness  *fairness.Calculator
	risk      *risk.Composer
	evaluator *governance.Evaluator
	simulator *governance.Simulator
	policies  *governance.PolicyAdmin
	gate      *gate.Gate
}

// openApp loads config and wires every component against the store
func openApp() (*app, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
		cfg.AuditDir = dataDir + "/audit"
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	ledger, err := audit.Open(cfg.AuditDir)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	thresholds := drift.Thresholds{
		PSI:       cfg.Drift.PSIThreshold,
		KS:        cfg.Drift.KSThreshold,
		Bins:      cfg.Drift.Bins,
		MinSample: cfg.Drift.MinSample,
	}
	recorder := audit.NewRecorder(ledger, cfg.Audit.RecordTimeout)
	evaluator := governance.NewEvaluator(store).WithRecorder(recorder)

	metrics, err := emitter.New()
	if err != nil {
		_ = ledger.Close()
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		store:     store,
		ledger:    ledger,
		drift:     drift.NewCalculator(store, store, store, cfg.Drift.WindowSize, thresholds),
		fairness:  fairness.NewCalculator(store, store, store, cfg.Fairness.FallbackThreshold),
		risk:      risk.NewComposer(store, store, store),
		evaluator: evaluator,
		simulator: governance.NewSimulator(store),
		policies:  governance.NewPolicyAdmin(store, recorder),
		gate:      gate.NewGate(store, evaluator, recorder).WithEmitter(metrics),
	}, nil
}

// Close releases the store and the audit ledger
func (a *app) Close() {
	_ = a.ledger.Close()
	_ = a.store.Close()
}

// printJSON renders a command result for scripting
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
