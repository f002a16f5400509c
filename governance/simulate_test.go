package governance

import (
	"context"
	"testing"

	"github.com/modelgate/modelgate/storage"
	"github.com/modelgate/modelgate/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateGrades(t *testing.T) {
	store := newTestStore(t)
	activatePolicy(t, store) // mri 80, disparity 0.15, approval above 60

	tests := []struct {
		name      string
		input     types.SimulationInput
		wantPass  bool
		wantGrade string
	}{
		{"clean pass", types.SimulationInput{RiskScore: 40, DisparityScore: 0.05}, true, types.GradeA},
		{"soft gate without override", types.SimulationInput{RiskScore: 65, DisparityScore: 0.05}, false, types.GradeB},
		{"soft gate with override", types.SimulationInput{RiskScore: 65, DisparityScore: 0.05, Override: true}, true, types.GradeC},
		{"fairness gate with override", types.SimulationInput{RiskScore: 40, DisparityScore: 0.20, Override: true}, true, types.GradeD},
		{"fairness gate without override", types.SimulationInput{RiskScore: 40, DisparityScore: 0.20}, false, types.GradeF},
		{"hard block ignores override", types.SimulationInput{RiskScore: 95, DisparityScore: 0.05, Override: true}, false, types.GradeF},
	}

	simulator := NewSimulator(store)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := simulator.Simulate(context.Background(), "", tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPass, result.WouldPass)
			assert.Equal(t, tt.wantGrade, result.ComplianceGrade)
			assert.NotEmpty(t, result.Reason)
			assert.Equal(t, 80.0, result.Details["max_allowed_mri"])
		})
	}
}

func TestSimulateByPolicyID(t *testing.T) {
	store := newTestStore(t)
	activatePolicy(t, store)
	strict, err := store.PutPolicy(types.Policy{
		Name:                     "strict",
		MaxAllowedMRI:            50,
		MaxAllowedDisparity:      0.05,
		ApprovalRequiredAboveMRI: 30,
	})
	require.NoError(t, err)

	simulator := NewSimulator(store)
	result, err := simulator.Simulate(context.Background(), strict.ID,
		types.SimulationInput{RiskScore: 60, DisparityScore: 0.01})
	require.NoError(t, err)
	assert.Equal(t, types.GradeF, result.ComplianceGrade, "an inactive policy can still be simulated")
}

func TestSimulateNoPolicy(t *testing.T) {
	store := newTestStore(t)
	simulator := NewSimulator(store)

	_, err := simulator.Simulate(context.Background(), "", types.SimulationInput{RiskScore: 10})
	assert.ErrorIs(t, err, storage.ErrNoActivePolicy)
}

func TestBatchSimulate(t *testing.T) {
	store := newTestStore(t)
	activatePolicy(t, store)

	inputs := []types.SimulationInput{
		{RiskScore: 40, DisparityScore: 0.05},
		{RiskScore: 95, DisparityScore: 0.05},
		{RiskScore: 65, DisparityScore: 0.05, Override: true},
		{RiskScore: 65, DisparityScore: 0.05},
	}

	batch, err := NewSimulator(store).BatchSimulate(context.Background(), "", inputs)
	require.NoError(t, err)
	assert.Equal(t, 4, batch.ScenarioCount)
	assert.Equal(t, 2, batch.PassedCount)
	assert.InDelta(t, 0.5, batch.PassRate, 1e-9)
	assert.Len(t, batch.Results, 4)
}

func TestBatchSimulateLimits(t *testing.T) {
	store := newTestStore(t)
	activatePolicy(t, store)
	simulator := NewSimulator(store)

	_, err := simulator.BatchSimulate(context.Background(), "", nil)
	assert.Error(t, err)

	tooMany := make([]types.SimulationInput, MaxBatchScenarios+1)
	_, err = simulator.BatchSimulate(context.Background(), "", tooMany)
	assert.Error(t, err)
}
