package governance

import (
	"context"
	"testing"
	"time"

	"github.com/modelgate/modelgate/audit"
	"github.com/modelgate/modelgate/narrative"
	"github.com/modelgate/modelgate/storage"
	"github.com/modelgate/modelgate/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedScores(t *testing.T, store *storage.Store, modelID string, risk, disparity float64) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.AppendRiskEntry(types.RiskEntry{
		ModelID: modelID, RiskScore: risk, Timestamp: now,
	}))
	require.NoError(t, store.AppendFairnessMetrics([]types.FairnessMetric{{
		ModelID: modelID, ProtectedAttribute: "gender", GroupName: "all",
		DisparityScore: disparity, Timestamp: now,
	}}))
}

func activatePolicy(t *testing.T, store *storage.Store) types.Policy {
	t.Helper()
	policy, err := store.PutPolicy(types.Policy{
		Name:                     "default",
		MaxAllowedMRI:            80,
		MaxAllowedDisparity:      0.15,
		ApprovalRequiredAboveMRI: 60,
		Active:                   true,
	})
	require.NoError(t, err)
	return policy
}

func TestEvaluatePrecedence(t *testing.T) {
	tests := []struct {
		name       string
		risk       float64
		disparity  float64
		wantStatus string
	}{
		{"hard ceiling wins", 95, 0.05, types.StatusBlocked},
		{"fairness gate beats soft gate", 70, 0.20, types.StatusAtRisk},
		{"soft approval gate", 65, 0.05, types.StatusAtRisk},
		{"clean pass", 40, 0.05, types.StatusApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit"}))
			activatePolicy(t, store)
			seedScores(t, store, "m1", tt.risk, tt.disparity)

			verdict, err := NewEvaluator(store).Evaluate(context.Background(), "m1")
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, verdict.Status)
			assert.False(t, verdict.Ungoverned)
			assert.NotEmpty(t, verdict.Reason)

			model, err := store.GetModel("m1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, model.Status, "verdict must be persisted")
		})
	}
}

func TestEvaluateBoundariesAreStrict(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit"}))
	activatePolicy(t, store)
	// Exactly at every threshold: nothing strictly exceeded.
	seedScores(t, store, "m1", 60, 0.15)

	verdict, err := NewEvaluator(store).Evaluate(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, verdict.Status, "thresholds are exclusive bounds")
}

func TestEvaluateNoActivePolicy(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit", Status: types.StatusApproved}))
	seedScores(t, store, "m1", 99, 0.99)

	verdict, err := NewEvaluator(store).Evaluate(context.Background(), "m1")
	require.NoError(t, err)

	assert.True(t, verdict.Ungoverned)
	assert.Equal(t, "no active policy", verdict.Reason)
	assert.Equal(t, types.StatusApproved, verdict.Status, "verdict echoes the stored status")

	model, err := store.GetModel("m1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, model.Status, "stored status must not change")
}

func TestEvaluateUnknownModel(t *testing.T) {
	store := newTestStore(t)
	activatePolicy(t, store)

	_, err := NewEvaluator(store).Evaluate(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrModelNotFound)
}

func TestEvaluateNoMetricsApproves(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit"}))
	activatePolicy(t, store)

	verdict, err := NewEvaluator(store).Evaluate(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, verdict.Status)
	assert.Equal(t, 0.0, verdict.RiskScore)
	assert.Equal(t, 0.0, verdict.DisparityScore)
}

func TestExplainIsReadOnly(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit", Status: types.StatusDraft}))
	activatePolicy(t, store)
	seedScores(t, store, "m1", 95, 0.05)

	evaluator := NewEvaluator(store)
	explanation, verdict, err := evaluator.Explain(context.Background(), "m1", narrative.NewChain())
	require.NoError(t, err)

	assert.Equal(t, types.StatusBlocked, verdict.Status)
	assert.Contains(t, explanation.Summary, "blocked")
	assert.NotEmpty(t, explanation.Recommendations)
	assert.False(t, explanation.RealAI)

	model, err := store.GetModel("m1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDraft, model.Status, "explaining must not write status")
}

func TestRuleEngineTightensOnly(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit", Version: "legacy"}))
	activatePolicy(t, store)
	seedScores(t, store, "m1", 40, 0.05)

	rules := NewRuleEngine()
	rule := `package modelgate

import rego.v1

escalate := {"status": "at_risk", "reason": "legacy model versions need review"} if {
	input.model.version == "legacy"
}`
	require.NoError(t, rules.LoadRule(context.Background(), "legacy_review", rule))

	verdict, err := NewEvaluator(store).WithRuleEngine(rules).Evaluate(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusAtRisk, verdict.Status, "extension escalates a clean pass")
	assert.Contains(t, verdict.Reason, "legacy")
}

func TestRuleEngineCannotRelax(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit"}))
	activatePolicy(t, store)
	seedScores(t, store, "m1", 95, 0.05)

	rules := NewRuleEngine()
	rule := `package modelgate

import rego.v1

relax := {"status": "approved", "reason": "trust me"} if {
	input.model.id == "m1"
}`
	require.NoError(t, rules.LoadRule(context.Background(), "overly_permissive", rule))

	verdict, err := NewEvaluator(store).WithRuleEngine(rules).Evaluate(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusBlocked, verdict.Status, "extensions cannot downgrade a block")
}

func newTestLedger(t *testing.T) *audit.Ledger {
	t.Helper()
	ledger, err := audit.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestEvaluateWritesAuditEntry(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit"}))
	activatePolicy(t, store)
	seedScores(t, store, "m1", 95, 0.05)

	ledger := newTestLedger(t)
	recorder := audit.NewRecorder(ledger, time.Second)

	verdict, err := NewEvaluator(store).WithRecorder(recorder).Evaluate(context.Background(), "m1")
	require.NoError(t, err)

	entries, err := ledger.Query(audit.Filter{Action: audit.ActionEvaluation})
	require.NoError(t, err)
	require.Len(t, entries, 1, "every evaluation leaves exactly one audit entry")
	assert.Equal(t, "m1", entries[0].ModelID)
	assert.Equal(t, verdict.Reason, entries[0].Reason)
	assert.Equal(t, types.StatusBlocked, entries[0].Details["status"])
	assert.Equal(t, verdict.PolicyID, entries[0].Details["policy_id"])
}

func TestEvaluateUngovernedIsStillAudited(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit"}))
	seedScores(t, store, "m1", 99, 0.99)

	ledger := newTestLedger(t)
	recorder := audit.NewRecorder(ledger, time.Second)

	_, err := NewEvaluator(store).WithRecorder(recorder).Evaluate(context.Background(), "m1")
	require.NoError(t, err)

	entries, err := ledger.Query(audit.Filter{Action: audit.ActionEvaluation})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "no active policy", entries[0].Reason)
	assert.Equal(t, true, entries[0].Details["ungoverned"])
}
