// Package simulate seeds a demo scenario: a credit model with a drifting
// feature distribution and a biased approval pattern, pushed through the
// full monitoring pipeline so every surface has data to show.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/modelgate/modelgate/drift"
	"github.com/modelgate/modelgate/fairness"
	"github.com/modelgate/modelgate/governance"
	"github.com/modelgate/modelgate/risk"
	"github.com/modelgate/modelgate/storage"
	"github.com/modelgate/modelgate/telemetry"
	"github.com/modelgate/modelgate/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrAlreadySeeded is returned when the demo model already has data
var ErrAlreadySeeded = errors.New("demo scenario already seeded")

// DemoModelID is the fixed ID of the seeded model
const DemoModelID = "demo-credit-model"

const (
	baselineLogs = 300
	shiftedLogs  = 200
)

// Result summarizes what the seeder produced
type Result struct {
	ModelID    string                  `json:"model_id"`
	PolicyID   string                  `json:"policy_id"`
	LogsSeeded int                     `json:"logs_seeded"`
	Drift      types.DriftResult       `json:"drift"`
	Fairness   types.FairnessResult    `json:"fairness"`
	Risk       types.RiskEntry         `json:"risk"`
	Verdict    types.GovernanceVerdict `json:"verdict"`
}

// Seeder builds the demo scenario end to end
type Seeder struct {
	store     *storage.Store
	drift     *drift.Calculator
	fairness  *fairness.Calculator
	risk      *risk.Composer
	evaluator *governance.Evaluator
	logger    *telemetry.Logger
	tracer    trace.Tracer
	rng       *rand.Rand
}

// NewSeeder creates a seeder over the full pipeline
func NewSeeder(store *storage.Store, driftCalc *drift.Calculator, fairnessCalc *fairness.Calculator, composer *risk.Composer, evaluator *governance.Evaluator) *Seeder {
	return &Seeder{
		store:     store,
		drift:     driftCalc,
		fairness:  fairnessCalc,
		risk:      composer,
		evaluator: evaluator,
		logger:    telemetry.NewLogger("demo-seeder"),
		tracer:    otel.Tracer("demo-seeder"),
		rng:       rand.New(rand.NewSource(1)), // #nosec G404 -- deterministic demo data, not crypto
	}
}

// Seed creates the demo model, policy, prediction history and staged
// risk history, then runs the full pipeline. Refuses to run twice: a
// model with existing logs returns ErrAlreadySeeded.
func (s *Seeder) Seed(ctx context.Context) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "simulate.seed")
	defer span.End()

	count, err := s.store.CountLogs(DemoModelID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check existing data: %w", err)
	}
	if count > 0 {
		return Result{}, ErrAlreadySeeded
	}

	if err := s.store.PutModel(types.Model{
		ID:      DemoModelID,
		Name:    "Demo Credit Scoring Model",
		Version: "2.1.0",
	}); err != nil {
		return Result{}, fmt.Errorf("failed to create demo model: %w", err)
	}

	policyID, err := s.ensurePolicy()
	if err != nil {
		return Result{}, err
	}

	logs := s.generateLogs()
	if err := s.store.AppendPredictionLogBatch(DemoModelID, logs); err != nil {
		return Result{}, fmt.Errorf("failed to seed prediction logs: %w", err)
	}

	if err := s.seedRiskHistory(); err != nil {
		return Result{}, err
	}

	result := Result{ModelID: DemoModelID, PolicyID: policyID, LogsSeeded: len(logs)}
	if err := s.runPipeline(ctx, &result); err != nil {
		return Result{}, err
	}

	s.logger.WithContext(ctx).Info().
		Str("model_id", DemoModelID).
		Int("logs", result.LogsSeeded).
		Float64("risk_score", result.Risk.RiskScore).
		Str("status", result.Verdict.Status).
		Msg("demo scenario seeded")

	return result, nil
}

// ensurePolicy activates the default policy unless one is already active
func (s *Seeder) ensurePolicy() (string, error) {
	active, err := s.store.ActivePolicy()
	if err == nil {
		return active.ID, nil
	}
	if !errors.Is(err, storage.ErrNoActivePolicy) {
		return "", fmt.Errorf("failed to resolve active policy: %w", err)
	}

	policy, err := s.store.PutPolicy(types.Policy{
		Name:                     "Default Governance Policy",
		MaxAllowedMRI:            80,
		MaxAllowedDisparity:      0.15,
		ApprovalRequiredAboveMRI: 60,
		Active:                   true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create demo policy: %w", err)
	}
	return policy.ID, nil
}

// generateLogs produces 300 stationary logs followed by 200 logs with a
// shifted amount distribution and a wider approval gap between groups.
func (s *Seeder) generateLogs() []types.PredictionLog {
	total := baselineLogs + shiftedLogs
	start := time.Now().UTC().Add(-time.Duration(total) * time.Minute)

	logs := make([]types.PredictionLog, 0, total)
	for i := 0; i < total; i++ {
		shifted := i >= baselineLogs

		gender := "male"
		if s.rng.Float64() < 0.5 {
			gender = "female"
		}

		amount := 5000 + 1200*s.rng.NormFloat64()
		approvalRate := baselineApproval(gender)
		if shifted {
			amount = 9500 + 1800*s.rng.NormFloat64()
			approvalRate = shiftedApproval(gender)
		}

		logs = append(logs, types.PredictionLog{
			ModelID: DemoModelID,
			Features: map[string]any{
				"amount": amount,
				"term":   float64(12 + s.rng.Intn(5)*12),
				"gender": gender,
			},
			Score:     s.score(approvalRate),
			Timestamp: start.Add(time.Duration(i) * time.Minute),
		})
	}
	return logs
}

func baselineApproval(gender string) float64 {
	if gender == "male" {
		return 0.60
	}
	return 0.52
}

func shiftedApproval(gender string) float64 {
	if gender == "male" {
		return 0.72
	}
	return 0.44
}

// score draws a prediction score whose positive rate approximates the
// target approval rate.
func (s *Seeder) score(approvalRate float64) float64 {
	if s.rng.Float64() < approvalRate {
		return 0.55 + 0.4*s.rng.Float64()
	}
	return 0.05 + 0.4*s.rng.Float64()
}

// seedRiskHistory writes four rising historical MRI readings so the risk
// trend is visible before the live composition lands the fifth.
func (s *Seeder) seedRiskHistory() error {
	now := time.Now().UTC()
	stages := []float64{18, 31, 47, 62}

	entries := make([]types.RiskEntry, 0, len(stages))
	for i, score := range stages {
		entries = append(entries, types.RiskEntry{
			ModelID:           DemoModelID,
			RiskScore:         score,
			DriftComponent:    score * 0.9,
			FairnessComponent: score * 1.1,
			Timestamp:         now.Add(-time.Duration(len(stages)-i) * 7 * 24 * time.Hour),
		})
	}

	if err := s.store.AppendRiskEntries(DemoModelID, entries); err != nil {
		return fmt.Errorf("failed to seed risk history: %w", err)
	}
	return nil
}

// runPipeline pushes the seeded data through drift, fairness, risk and
// governance, exactly as live traffic would.
func (s *Seeder) runPipeline(ctx context.Context, result *Result) error {
	driftResult, err := s.drift.ComputeDrift(ctx, DemoModelID)
	if err != nil {
		return fmt.Errorf("drift stage: %w", err)
	}
	result.Drift = driftResult

	fairnessResult, err := s.fairness.ComputeFairness(ctx, DemoModelID, "gender")
	if err != nil {
		return fmt.Errorf("fairness stage: %w", err)
	}
	result.Fairness = fairnessResult

	riskEntry, err := s.risk.ComposeRisk(ctx, DemoModelID)
	if err != nil {
		return fmt.Errorf("risk stage: %w", err)
	}
	result.Risk = riskEntry

	verdict, err := s.evaluator.Evaluate(ctx, DemoModelID)
	if err != nil {
		return fmt.Errorf("governance stage: %w", err)
	}
	result.Verdict = verdict

	return nil
}
