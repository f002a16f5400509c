// Package governance applies the active policy to a model's latest risk
// and fairness metrics and decides its governance status.
package governance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelgate/modelgate/audit"
	"github.com/modelgate/modelgate/storage"
	"github.com/modelgate/modelgate/telemetry"
	"github.com/modelgate/modelgate/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Evaluator derives a governance verdict from stored metrics and the
// active policy, and writes the resulting status back to the registry.
type Evaluator struct {
	store    storage.GovernanceStore
	rules    *RuleEngine     // optional rego extensions, may be nil
	recorder *audit.Recorder // optional, may be nil
	logger   *telemetry.Logger
	tracer   trace.Tracer
}

// NewEvaluator creates a governance evaluator
func NewEvaluator(store storage.GovernanceStore) *Evaluator {
	return &Evaluator{
		store:  store,
		logger: telemetry.NewLogger("governance-evaluator"),
		tracer: otel.Tracer("governance-evaluator"),
	}
}

// WithRuleEngine attaches compiled rego extension rules. Extensions can
// only tighten the built-in verdict, never relax it.
func (e *Evaluator) WithRuleEngine(rules *RuleEngine) *Evaluator {
	e.rules = rules
	return e
}

// WithRecorder makes every evaluation leave an audit entry. A failed
// audit write is logged and never fails the evaluation.
func (e *Evaluator) WithRecorder(recorder *audit.Recorder) *Evaluator {
	e.recorder = recorder
	return e
}

// Evaluate computes the model's verdict under the active policy and
// persists the resulting status. The whole read-evaluate-write cycle
// runs under the model's lock so concurrent evaluations cannot
// interleave status writes.
func (e *Evaluator) Evaluate(ctx context.Context, modelID string) (types.GovernanceVerdict, error) {
	var verdict types.GovernanceVerdict
	err := e.store.WithModelLock(modelID, func() error {
		var err error
		verdict, err = e.EvaluateLocked(ctx, modelID)
		return err
	})
	return verdict, err
}

// EvaluateLocked is Evaluate without acquiring the model lock. Callers
// must already hold it via the store; the deployment gate uses this to
// evaluate inside its own locked section.
func (e *Evaluator) EvaluateLocked(ctx context.Context, modelID string) (types.GovernanceVerdict, error) {
	ctx, span := e.tracer.Start(ctx, "governance.evaluate",
		trace.WithAttributes(attribute.String("model.id", modelID)))
	defer span.End()

	model, err := e.store.GetModel(modelID)
	if err != nil {
		return types.GovernanceVerdict{}, err
	}

	risk, disparity, err := e.latestScores(modelID)
	if err != nil {
		return types.GovernanceVerdict{}, err
	}

	verdict := types.GovernanceVerdict{
		ModelID:        modelID,
		RiskScore:      risk,
		DisparityScore: disparity,
		EvaluatedAt:    time.Now().UTC(),
	}

	policy, err := e.store.ActivePolicy()
	if errors.Is(err, storage.ErrNoActivePolicy) {
		// Fail open: no policy means no governance, the stored status
		// is left exactly as it was.
		verdict.Status = model.Status
		verdict.Reason = "no active policy"
		verdict.Ungoverned = true
		e.logger.WithContext(ctx).Warn().
			Str("model_id", modelID).
			Msg("evaluation without active policy, status unchanged")
		e.audit(ctx, verdict)
		return verdict, nil
	}
	if err != nil {
		return types.GovernanceVerdict{}, fmt.Errorf("failed to resolve active policy: %w", err)
	}

	verdict.PolicyID = policy.ID
	verdict.Status, verdict.Reason = applyPolicy(risk, disparity, policy)

	if e.rules != nil {
		verdict = e.rules.Tighten(ctx, model, policy, verdict)
	}

	if err := e.store.SetModelStatus(modelID, verdict.Status); err != nil {
		return types.GovernanceVerdict{}, fmt.Errorf("failed to persist status: %w", err)
	}

	e.logger.LogEvaluation(ctx, modelID, verdict.Status, verdict.Reason, risk, disparity)
	e.audit(ctx, verdict)
	return verdict, nil
}

// audit records the verdict in the audit trail, if a recorder is wired
func (e *Evaluator) audit(ctx context.Context, verdict types.GovernanceVerdict) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(ctx, audit.Entry{
		Action:  audit.ActionEvaluation,
		ModelID: verdict.ModelID,
		Reason:  verdict.Reason,
		Details: map[string]any{
			"status":          verdict.Status,
			"risk_score":      verdict.RiskScore,
			"disparity_score": verdict.DisparityScore,
			"policy_id":       verdict.PolicyID,
			"ungoverned":      verdict.Ungoverned,
		},
	})
}

// latestScores reads the newest risk and fairness readings. A model
// without history scores zero on both axes.
func (e *Evaluator) latestScores(modelID string) (risk, disparity float64, err error) {
	riskEntry, ok, err := e.store.LatestRiskEntry(modelID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read risk history: %w", err)
	}
	if ok {
		risk = riskEntry.RiskScore
	}

	fairness, ok, err := e.store.LatestFairnessMetric(modelID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read fairness metrics: %w", err)
	}
	if ok {
		disparity = fairness.DisparityScore
	}
	return risk, disparity, nil
}

// applyPolicy is the core governance rule set. Precedence is fixed:
// the hard risk ceiling wins over the fairness gate, which wins over
// the soft approval gate. All comparisons are strict.
func applyPolicy(risk, disparity float64, policy types.Policy) (status, reason string) {
	if risk > policy.MaxAllowedMRI {
		return types.StatusBlocked, fmt.Sprintf(
			"risk score %.2f exceeds maximum allowed %.2f", risk, policy.MaxAllowedMRI)
	}
	if disparity > policy.MaxAllowedDisparity {
		return types.StatusAtRisk, fmt.Sprintf(
			"fairness disparity %.2f exceeds maximum allowed %.2f", disparity, policy.MaxAllowedDisparity)
	}
	if risk > policy.ApprovalRequiredAboveMRI {
		return types.StatusAtRisk, fmt.Sprintf(
			"risk score %.2f requires approval above %.2f", risk, policy.ApprovalRequiredAboveMRI)
	}
	return types.StatusApproved, "all governance checks passed"
}
