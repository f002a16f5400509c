package governance

import (
	"context"

	"github.com/modelgate/modelgate/audit"
	"github.com/modelgate/modelgate/storage"
	"github.com/modelgate/modelgate/types"
)

// PolicyStore is everything policy administration needs
type PolicyStore interface {
	storage.PolicyReader
	storage.PolicyWriter
}

// PolicyAdmin performs policy changes and records each one in the audit
// trail. Like the deployment gate, a failed audit write is logged by
// the recorder and never rolls the change back.
type PolicyAdmin struct {
	store    PolicyStore
	recorder *audit.Recorder
}

// NewPolicyAdmin creates an audited policy administrator
func NewPolicyAdmin(store PolicyStore, recorder *audit.Recorder) *PolicyAdmin {
	return &PolicyAdmin{store: store, recorder: recorder}
}

// Create stores a new policy
func (p *PolicyAdmin) Create(ctx context.Context, actor string, policy types.Policy) (types.Policy, error) {
	created, err := p.store.PutPolicy(policy)
	if err != nil {
		return types.Policy{}, err
	}
	p.record(ctx, actor, "create", created)
	return created, nil
}

// Activate marks a policy active, deactivating every other one
func (p *PolicyAdmin) Activate(ctx context.Context, actor, policyID string) (types.Policy, error) {
	policy, err := p.store.GetPolicy(policyID)
	if err != nil {
		return types.Policy{}, err
	}
	policy.Active = true
	updated, err := p.store.PutPolicy(policy)
	if err != nil {
		return types.Policy{}, err
	}
	p.record(ctx, actor, "activate", updated)
	return updated, nil
}

// Delete removes a policy
func (p *PolicyAdmin) Delete(ctx context.Context, actor, policyID string) error {
	policy, err := p.store.GetPolicy(policyID)
	if err != nil {
		return err
	}
	if err := p.store.DeletePolicy(policyID); err != nil {
		return err
	}
	p.record(ctx, actor, "delete", policy)
	return nil
}

func (p *PolicyAdmin) record(ctx context.Context, actor, operation string, policy types.Policy) {
	p.recorder.Record(ctx, audit.Entry{
		Action: audit.ActionPolicyChange,
		Actor:  actor,
		Reason: operation + " policy " + policy.Name,
		Details: map[string]any{
			"operation": operation,
			"policy_id": policy.ID,
			"name":      policy.Name,
			"active":    policy.Active,
		},
	})
}
