package governance

import (
	"context"
	"errors"
	"time"

	"github.com/modelgate/modelgate/narrative"
	"github.com/modelgate/modelgate/storage"
	"github.com/modelgate/modelgate/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Explain renders a human-readable narrative for the model's current
// governance position. Read-only: it evaluates the same rules as
// Evaluate but writes nothing back, so explaining a model never changes
// its status.
func (e *Evaluator) Explain(ctx context.Context, modelID string, chain *narrative.Chain) (narrative.Explanation, types.GovernanceVerdict, error) {
	ctx, span := e.tracer.Start(ctx, "governance.explain",
		trace.WithAttributes(attribute.String("model.id", modelID)))
	defer span.End()

	model, err := e.store.GetModel(modelID)
	if err != nil {
		return narrative.Explanation{}, types.GovernanceVerdict{}, err
	}

	verdict, policy, hasPolicy, err := e.dryRun(modelID, model)
	if err != nil {
		return narrative.Explanation{}, types.GovernanceVerdict{}, err
	}

	explanation := chain.Generate(ctx, narrative.Input{
		Model:     model,
		Verdict:   verdict,
		Policy:    policy,
		HasPolicy: hasPolicy,
	})
	return explanation, verdict, nil
}

// dryRun computes the verdict without persisting anything
func (e *Evaluator) dryRun(modelID string, model types.Model) (types.GovernanceVerdict, types.Policy, bool, error) {
	risk, disparity, err := e.latestScores(modelID)
	if err != nil {
		return types.GovernanceVerdict{}, types.Policy{}, false, err
	}

	verdict := types.GovernanceVerdict{
		ModelID:        modelID,
		RiskScore:      risk,
		DisparityScore: disparity,
		EvaluatedAt:    time.Now().UTC(),
	}

	policy, err := e.store.ActivePolicy()
	if errors.Is(err, storage.ErrNoActivePolicy) {
		verdict.Status = model.Status
		verdict.Reason = "no active policy"
		verdict.Ungoverned = true
		return verdict, types.Policy{}, false, nil
	}
	if err != nil {
		return types.GovernanceVerdict{}, types.Policy{}, false, err
	}

	verdict.PolicyID = policy.ID
	verdict.Status, verdict.Reason = applyPolicy(risk, disparity, policy)
	return verdict, policy, true, nil
}
