package fairness

import (
	"context"
	"testing"
	"time"

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

// seedGroup appends n logs for one attribute value, positives of them
// scoring above the approval cutoff.
func seedGroup(t *testing.T, store *storage.Store, modelID, gender string, n, positives int) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	logs := make([]types.PredictionLog, 0, n)
	for i := 0; i < n; i++ {
		score := 0.2
		if i < positives {
			score = 0.9
		}
		logs = append(logs, types.PredictionLog{
			ModelID:   modelID,
			Features:  map[string]any{"gender": gender},
			Score:     score,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, store.AppendPredictionLogBatch(modelID, logs))
}

func TestComputeFairnessNoLogs(t *testing.T) {
	store := newTestStore(t)
	calc := NewCalculator(store, store, store, 0)

	result, err := calc.ComputeFairness(context.Background(), "m1", "gender")
	require.NoError(t, err)
	assert.Empty(t, result.Groups)
	assert.Equal(t, 0.0, result.DisparityScore)
	assert.False(t, result.FairnessFlag)
}

func TestComputeFairnessMissingAttribute(t *testing.T) {
	store := newTestStore(t)
	seedGroup(t, store, "m1", "male", 10, 5)

	calc := NewCalculator(store, store, store, 0)
	result, err := calc.ComputeFairness(context.Background(), "m1", "ethnicity")
	require.NoError(t, err)
	assert.Empty(t, result.Groups, "logs without the attribute are excluded")
}

func TestComputeFairnessTwoGroups(t *testing.T) {
	store := newTestStore(t)
	// 0.70 approval vs 0.45 approval, spread 0.25.
	seedGroup(t, store, "m1", "male", 100, 70)
	seedGroup(t, store, "m1", "female", 100, 45)

	calc := NewCalculator(store, store, store, 0)
	result, err := calc.ComputeFairness(context.Background(), "m1", "gender")
	require.NoError(t, err)

	require.Len(t, result.Groups, 2)
	assert.InDelta(t, 0.25, result.DisparityScore, 1e-9)
	assert.False(t, result.FairnessFlag, "0.25 does not strictly exceed the 0.25 fallback")

	byName := map[string]types.FairnessMetric{}
	for _, g := range result.Groups {
		byName[g.GroupName] = g
		assert.InDelta(t, 0.25, g.DisparityScore, 1e-9, "every row of a run carries the run disparity")
		assert.Equal(t, result.FairnessFlag, g.FairnessFlag)
	}
	assert.InDelta(t, 0.70, byName["male"].ApprovalRate, 1e-9)
	assert.InDelta(t, 0.45, byName["female"].ApprovalRate, 1e-9)
	assert.Equal(t, 100, byName["male"].TotalPredictions)
	assert.Equal(t, 70, byName["male"].PositivePredictions)
}

func TestComputeFairnessFlagUsesActivePolicy(t *testing.T) {
	store := newTestStore(t)
	seedGroup(t, store, "m1", "male", 100, 70)
	seedGroup(t, store, "m1", "female", 100, 45)

	_, err := store.PutPolicy(types.Policy{
		Name:                     "strict",
		MaxAllowedMRI:            80,
		MaxAllowedDisparity:      0.10,
		ApprovalRequiredAboveMRI: 60,
		Active:                   true,
	})
	require.NoError(t, err)

	calc := NewCalculator(store, store, store, 0)
	result, err := calc.ComputeFairness(context.Background(), "m1", "gender")
	require.NoError(t, err)
	assert.True(t, result.FairnessFlag, "0.25 spread exceeds the 0.10 policy ceiling")
}

func TestComputeFairnessStrictPositiveCutoff(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UTC()
	logs := []types.PredictionLog{
		{ModelID: "m1", Features: map[string]any{"gender": "male"}, Score: 0.5, Timestamp: base},
		{ModelID: "m1", Features: map[string]any{"gender": "male"}, Score: 0.51, Timestamp: base.Add(time.Second)},
	}
	require.NoError(t, store.AppendPredictionLogBatch("m1", logs))

	calc := NewCalculator(store, store, store, 0)
	result, err := calc.ComputeFairness(context.Background(), "m1", "gender")
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	assert.Equal(t, 1, result.Groups[0].PositivePredictions, "exactly 0.5 is not a positive outcome")
}

func TestComputeFairnessPersistsRows(t *testing.T) {
	store := newTestStore(t)
	seedGroup(t, store, "m1", "male", 50, 30)
	seedGroup(t, store, "m1", "female", 50, 10)

	calc := NewCalculator(store, store, store, 0)
	result, err := calc.ComputeFairness(context.Background(), "m1", "gender")
	require.NoError(t, err)
	require.Len(t, result.Groups, 2)

	latest, ok, err := store.LatestFairnessMetric("m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, result.DisparityScore, latest.DisparityScore, 1e-9)
}
