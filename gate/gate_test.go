package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelgate/modelgate/audit"
	"github.com/modelgate/modelgate/governance"
	"github.com/modelgate/modelgate/internal/emitter"
	"github.com/modelgate/modelgate/storage"
	"github.com/modelgate/modelgate/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fixture struct {
	store  *storage.Store
	ledger *audit.Ledger
	gate   *Gate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ledger, err := audit.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	evaluator := governance.NewEvaluator(store)
	recorder := audit.NewRecorder(ledger, time.Second)
	return &fixture{
		store:  store,
		ledger: ledger,
		gate:   NewGate(store, evaluator, recorder),
	}
}

func (f *fixture) seedModel(t *testing.T, risk, disparity float64) {
	t.Helper()
	require.NoError(t, f.store.PutModel(types.Model{ID: "m1", Name: "credit"}))
	_, err := f.store.PutPolicy(types.Policy{
		Name:                     "default",
		MaxAllowedMRI:            80,
		MaxAllowedDisparity:      0.15,
		ApprovalRequiredAboveMRI: 60,
		Active:                   true,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, f.store.AppendRiskEntry(types.RiskEntry{
		ModelID: "m1", RiskScore: risk, Timestamp: now,
	}))
	require.NoError(t, f.store.AppendFairnessMetrics([]types.FairnessMetric{{
		ModelID: "m1", ProtectedAttribute: "gender", GroupName: "all",
		DisparityScore: disparity, Timestamp: now,
	}}))
}

func (f *fixture) auditEntries(t *testing.T) []audit.Entry {
	t.Helper()
	entries, err := f.ledger.ByModel("m1")
	require.NoError(t, err)
	return entries
}

func TestDeployApproved(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, 40, 0.05)

	decision, err := f.gate.Deploy(context.Background(), "m1", "alice", false)
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.False(t, decision.OverrideUsed)
	assert.Equal(t, 0, decision.Code)

	model, err := f.store.GetModel("m1")
	require.NoError(t, err)
	assert.True(t, model.IsDeployed())
	assert.Equal(t, types.StatusDeployed, model.Status)

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionDeployApproved, entries[0].Action)
	assert.Equal(t, "alice", entries[0].Actor)
}

func TestDeployHardBlockIgnoresOverride(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, 95, 0.05)

	decision, err := f.gate.Deploy(context.Background(), "m1", "alice", true)
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.False(t, decision.OverrideUsed)
	assert.Equal(t, types.DenyCodeForbidden, decision.Code)
	assert.Contains(t, decision.Reason, "override not permitted")

	model, err := f.store.GetModel("m1")
	require.NoError(t, err)
	assert.False(t, model.IsDeployed())
	assert.Equal(t, types.DeploymentBlocked, model.DeploymentStatus)

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionDeployBlocked, entries[0].Action)
}

func TestDeploySoftGateWithoutOverride(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, 65, 0.05)

	decision, err := f.gate.Deploy(context.Background(), "m1", "alice", false)
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Equal(t, types.DenyCodeForbidden, decision.Code)
	assert.Contains(t, decision.Reason, "override available")

	model, err := f.store.GetModel("m1")
	require.NoError(t, err)
	assert.False(t, model.IsDeployed())
	assert.Equal(t, types.StatusAtRisk, model.Status, "evaluation still lands the at_risk status")

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionDeployDenied, entries[0].Action)
}

func TestDeploySoftGateWithOverride(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, 65, 0.05)

	decision, err := f.gate.Deploy(context.Background(), "m1", "alice", true)
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.True(t, decision.OverrideUsed)

	model, err := f.store.GetModel("m1")
	require.NoError(t, err)
	assert.True(t, model.IsDeployed())

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionDeployOverride, entries[0].Action)
	assert.True(t, entries[0].Override)

	overrides, err := f.ledger.OverridesByActor("alice")
	require.NoError(t, err)
	assert.Len(t, overrides, 1)
}

func TestDeployFairnessGateWithOverride(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, 40, 0.20)

	decision, err := f.gate.Deploy(context.Background(), "m1", "alice", true)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.True(t, decision.OverrideUsed)
	assert.Contains(t, decision.Verdict.Reason, "disparity")
}

func TestDeployUngoverned(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.PutModel(types.Model{ID: "m1", Name: "credit"}))

	decision, err := f.gate.Deploy(context.Background(), "m1", "alice", false)
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.True(t, decision.Verdict.Ungoverned)
	assert.Contains(t, decision.Reason, "ungoverned")

	model, err := f.store.GetModel("m1")
	require.NoError(t, err)
	assert.True(t, model.IsDeployed())
}

func TestDeployUnknownModel(t *testing.T) {
	f := newFixture(t)

	_, err := f.gate.Deploy(context.Background(), "ghost", "alice", false)
	assert.ErrorIs(t, err, storage.ErrModelNotFound)
}

func TestDeployReEvaluatesEveryRequest(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, 95, 0.05)

	denied, err := f.gate.Deploy(context.Background(), "m1", "alice", false)
	require.NoError(t, err)
	require.False(t, denied.Allowed)

	// Risk recovers; a newer reading supersedes the old one.
	require.NoError(t, f.store.AppendRiskEntry(types.RiskEntry{
		ModelID: "m1", RiskScore: 20, Timestamp: time.Now().UTC().Add(time.Second),
	}))

	allowed, err := f.gate.Deploy(context.Background(), "m1", "alice", false)
	require.NoError(t, err)
	assert.True(t, allowed.Allowed, "the gate must not trust the stale blocked status")

	entries := f.auditEntries(t)
	assert.Len(t, entries, 2, "one audit record per decision")
}

// failingDeployStore breaks the registry write after the decision
type failingDeployStore struct {
	*storage.Store
}

func (s *failingDeployStore) MarkDeployed(string) error {
	return errors.New("registry write failed")
}

func TestDeployAuditSurvivesStatusWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, 40, 0.05)

	evaluator := governance.NewEvaluator(f.store)
	recorder := audit.NewRecorder(f.ledger, time.Second)
	g := NewGate(&failingDeployStore{Store: f.store}, evaluator, recorder)

	_, err := g.Deploy(context.Background(), "m1", "alice", false)
	require.Error(t, err)

	entries := f.auditEntries(t)
	require.Len(t, entries, 1, "the decision is recorded even when the status write fails")
	assert.Equal(t, audit.ActionDeployApproved, entries[0].Action)
}

func TestDeployCountsDecisionMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	f := newFixture(t)
	f.seedModel(t, 40, 0.05)

	metrics, err := emitter.New()
	require.NoError(t, err)
	f.gate.WithEmitter(metrics)

	_, err = f.gate.Deploy(context.Background(), "m1", "alice", false)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := false
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "modelgate_deployments_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			found = true
		}
	}
	assert.True(t, found, "deployment decisions must be counted")
}
