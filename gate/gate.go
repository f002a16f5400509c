// Package gate is the deployment gate: the single enforcement point
// between a governance verdict and a model going live.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/modelgate/modelgate/audit"
	"github.com/modelgate/modelgate/governance"
	"github.com/modelgate/modelgate/internal/emitter"
	"github.com/modelgate/modelgate/storage"
	"github.com/modelgate/modelgate/telemetry"
	"github.com/modelgate/modelgate/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Gate decides deployment requests. Every request re-evaluates the
// model under the active policy; the gate never trusts a stale status.
type Gate struct {
	store     storage.GovernanceStore
	evaluator *governance.Evaluator
	recorder  *audit.Recorder
	metrics   *emitter.Emitter // optional, may be nil
	logger    *telemetry.Logger
	tracer    trace.Tracer
}

// NewGate creates a deployment gate
func NewGate(store storage.GovernanceStore, evaluator *governance.Evaluator, recorder *audit.Recorder) *Gate {
	return &Gate{
		store:     store,
		evaluator: evaluator,
		recorder:  recorder,
		logger:    telemetry.NewLogger("deployment-gate"),
		tracer:    otel.Tracer("deployment-gate"),
	}
}

// WithEmitter makes the gate count deployment decisions and override
// uses as metrics.
func (g *Gate) WithEmitter(metrics *emitter.Emitter) *Gate {
	g.metrics = metrics
	return g
}

// Deploy evaluates the model and either marks it deployed or denies the
// request. The evaluation and the status write happen under the same
// per-model lock, so two racing deploys cannot both slip past the gate.
// Exactly one audit record is written per decision; a failed audit
// write never changes the outcome.
//
// Hard blocks ignore the override flag. Soft gates honor it and record
// who used it.
func (g *Gate) Deploy(ctx context.Context, modelID, actor string, override bool) (types.DeploymentDecision, error) {
	ctx, span := g.tracer.Start(ctx, "gate.deploy",
		trace.WithAttributes(
			attribute.String("model.id", modelID),
			attribute.String("actor", actor),
			attribute.Bool("override", override)))
	defer span.End()

	var decision types.DeploymentDecision
	err := g.store.WithModelLock(modelID, func() error {
		verdict, err := g.evaluator.EvaluateLocked(ctx, modelID)
		if err != nil {
			return err
		}

		decision, err = g.decide(ctx, verdict, actor, override)
		return err
	})
	if err != nil {
		return types.DeploymentDecision{}, err
	}

	if g.metrics != nil {
		g.metrics.RecordDeployment(ctx, decision)
	}
	g.logger.LogDeployment(ctx, modelID, decision.Allowed, decision.OverrideUsed, decision.Reason)
	return decision, nil
}

func (g *Gate) decide(ctx context.Context, verdict types.GovernanceVerdict, actor string, override bool) (types.DeploymentDecision, error) {
	decision := types.DeploymentDecision{
		ModelID:   verdict.ModelID,
		Verdict:   verdict,
		DecidedAt: time.Now().UTC(),
	}

	// The decision is recorded before the registry write: a failed
	// status update must not erase the decision from the audit trail.
	switch {
	case verdict.Ungoverned:
		// Fail open: without a policy there is nothing to enforce.
		decision.Allowed = true
		decision.Reason = "no active policy, deployment ungoverned"
		g.record(ctx, audit.ActionDeployApproved, decision, actor)
		if err := g.store.MarkDeployed(verdict.ModelID); err != nil {
			return decision, fmt.Errorf("failed to mark deployed: %w", err)
		}

	case verdict.Status == types.StatusBlocked:
		decision.Allowed = false
		decision.Code = types.DenyCodeForbidden
		decision.Reason = fmt.Sprintf("deployment blocked: %s (override not permitted for hard blocks)", verdict.Reason)
		g.record(ctx, audit.ActionDeployBlocked, decision, actor)
		if err := g.store.SetDeploymentStatus(verdict.ModelID, types.DeploymentBlocked); err != nil {
			return decision, fmt.Errorf("failed to mark deployment blocked: %w", err)
		}

	case verdict.Status == types.StatusAtRisk && !override:
		decision.Allowed = false
		decision.Code = types.DenyCodeForbidden
		decision.Reason = fmt.Sprintf("model at risk: %s (override available)", verdict.Reason)
		g.record(ctx, audit.ActionDeployDenied, decision, actor)

	case verdict.Status == types.StatusAtRisk:
		decision.Allowed = true
		decision.OverrideUsed = true
		decision.Reason = fmt.Sprintf("deployed via override: %s", verdict.Reason)
		g.record(ctx, audit.ActionDeployOverride, decision, actor)
		if err := g.store.MarkDeployed(verdict.ModelID); err != nil {
			return decision, fmt.Errorf("failed to mark deployed: %w", err)
		}

	default:
		decision.Allowed = true
		decision.Reason = "all governance checks passed"
		g.record(ctx, audit.ActionDeployApproved, decision, actor)
		if err := g.store.MarkDeployed(verdict.ModelID); err != nil {
			return decision, fmt.Errorf("failed to mark deployed: %w", err)
		}
	}

	return decision, nil
}

func (g *Gate) record(ctx context.Context, action audit.Action, decision types.DeploymentDecision, actor string) {
	g.recorder.Record(ctx, audit.Entry{
		Action:   action,
		ModelID:  decision.ModelID,
		Actor:    actor,
		Override: decision.OverrideUsed,
		Reason:   decision.Reason,
		Details: map[string]any{
			"allowed":         decision.Allowed,
			"risk_score":      decision.Verdict.RiskScore,
			"disparity_score": decision.Verdict.DisparityScore,
			"policy_id":       decision.Verdict.PolicyID,
		},
	})
}
