package governance

import (
	"context"
	"fmt"

	"github.com/modelgate/modelgate/storage"
	"github.com/modelgate/modelgate/telemetry"
	"github.com/modelgate/modelgate/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MaxBatchScenarios caps one batch simulation request
const MaxBatchScenarios = 100

// Simulator answers "would this score pass" questions against a policy
// without touching any stored model state.
type Simulator struct {
	policies storage.PolicyReader
	logger   *telemetry.Logger
	tracer   trace.Tracer
}

// NewSimulator creates a policy simulator
func NewSimulator(policies storage.PolicyReader) *Simulator {
	return &Simulator{
		policies: policies,
		logger:   telemetry.NewLogger("governance-simulator"),
		tracer:   otel.Tracer("governance-simulator"),
	}
}

// Simulate evaluates a hypothetical risk/disparity pair against a
// policy. An empty policyID targets the active policy. The rule order
// and precedence mirror the live evaluator and deployment gate, so the
// answer is exactly what would happen in production.
func (s *Simulator) Simulate(ctx context.Context, policyID string, input types.SimulationInput) (types.SimulationResult, error) {
	ctx, span := s.tracer.Start(ctx, "governance.simulate",
		trace.WithAttributes(
			attribute.Float64("input.risk_score", input.RiskScore),
			attribute.Float64("input.disparity_score", input.DisparityScore),
			attribute.Bool("input.override", input.Override)))
	defer span.End()

	policy, err := s.resolvePolicy(policyID)
	if err != nil {
		return types.SimulationResult{}, err
	}

	result := simulate(input, policy)
	result.Details = map[string]any{
		"policy_id":                   policy.ID,
		"policy_name":                 policy.Name,
		"max_allowed_mri":             policy.MaxAllowedMRI,
		"max_allowed_disparity":       policy.MaxAllowedDisparity,
		"approval_required_above_mri": policy.ApprovalRequiredAboveMRI,
	}

	s.logger.WithContext(ctx).Debug().
		Str("policy_id", policy.ID).
		Bool("would_pass", result.WouldPass).
		Str("grade", result.ComplianceGrade).
		Msg("scenario simulated")

	return result, nil
}

// BatchSimulate runs up to MaxBatchScenarios scenarios against one
// policy and aggregates the pass rate.
func (s *Simulator) BatchSimulate(ctx context.Context, policyID string, inputs []types.SimulationInput) (types.BatchSimulationResult, error) {
	if len(inputs) == 0 {
		return types.BatchSimulationResult{}, fmt.Errorf("batch simulation requires at least one scenario")
	}
	if len(inputs) > MaxBatchScenarios {
		return types.BatchSimulationResult{}, fmt.Errorf(
			"batch simulation capped at %d scenarios, got %d", MaxBatchScenarios, len(inputs))
	}

	batch := types.BatchSimulationResult{ScenarioCount: len(inputs)}
	for _, input := range inputs {
		result, err := s.Simulate(ctx, policyID, input)
		if err != nil {
			return types.BatchSimulationResult{}, err
		}
		if result.WouldPass {
			batch.PassedCount++
		}
		batch.Results = append(batch.Results, result)
	}
	batch.PassRate = float64(batch.PassedCount) / float64(batch.ScenarioCount)
	return batch, nil
}

func (s *Simulator) resolvePolicy(policyID string) (types.Policy, error) {
	if policyID == "" {
		return s.policies.ActivePolicy()
	}
	return s.policies.GetPolicy(policyID)
}

// simulate grades one scenario. Grade F is terminal (hard block, or a
// fairness breach without override); D and C are override passes; B is
// a soft gate waiting on an override; A is a clean pass.
func simulate(input types.SimulationInput, policy types.Policy) types.SimulationResult {
	if input.RiskScore > policy.MaxAllowedMRI {
		return types.SimulationResult{
			WouldPass: false,
			Reason: fmt.Sprintf("risk score %.2f exceeds maximum allowed %.2f, override not permitted",
				input.RiskScore, policy.MaxAllowedMRI),
			ComplianceGrade: types.GradeF,
		}
	}

	if input.DisparityScore > policy.MaxAllowedDisparity {
		if input.Override {
			return types.SimulationResult{
				WouldPass: true,
				Reason: fmt.Sprintf("fairness disparity %.2f exceeds maximum allowed %.2f, passed via override",
					input.DisparityScore, policy.MaxAllowedDisparity),
				ComplianceGrade: types.GradeD,
			}
		}
		return types.SimulationResult{
			WouldPass: false,
			Reason: fmt.Sprintf("fairness disparity %.2f exceeds maximum allowed %.2f, override available",
				input.DisparityScore, policy.MaxAllowedDisparity),
			ComplianceGrade: types.GradeF,
		}
	}

	if input.RiskScore > policy.ApprovalRequiredAboveMRI {
		if input.Override {
			return types.SimulationResult{
				WouldPass: true,
				Reason: fmt.Sprintf("risk score %.2f requires approval above %.2f, passed via override",
					input.RiskScore, policy.ApprovalRequiredAboveMRI),
				ComplianceGrade: types.GradeC,
			}
		}
		return types.SimulationResult{
			WouldPass: false,
			Reason: fmt.Sprintf("risk score %.2f requires approval above %.2f, override available",
				input.RiskScore, policy.ApprovalRequiredAboveMRI),
			ComplianceGrade: types.GradeB,
		}
	}

	return types.SimulationResult{
		WouldPass:       true,
		Reason:          "all governance checks passed",
		ComplianceGrade: types.GradeA,
	}
}
