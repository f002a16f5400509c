package drift

import (
	"context"
	"math/rand"
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

func seedLogs(t *testing.T, store *storage.Store, modelID string, n int, score func(i int) float64, income func(i int) float64) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Duration(n) * time.Second)
	logs := make([]types.PredictionLog, 0, n)
	for i := 0; i < n; i++ {
		logs = append(logs, types.PredictionLog{
			ModelID:   modelID,
			Features:  map[string]any{"income": income(i), "region": "north"},
			Score:     score(i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, store.AppendPredictionLogBatch(modelID, logs))
}

func TestComputeDriftUnknownModel(t *testing.T) {
	store := newTestStore(t)
	calc := NewCalculator(store, store, store, 100, DefaultThresholds())

	result, err := calc.ComputeDrift(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, result.Metrics)
	assert.Empty(t, result.Skipped)
	assert.False(t, result.DriftDetected())
}

func TestComputeDriftNoData(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit"}))

	calc := NewCalculator(store, store, store, 100, DefaultThresholds())
	result, err := calc.ComputeDrift(context.Background(), "m1")
	require.NoError(t, err)
	assert.Empty(t, result.Metrics, "no logs means nothing to evaluate")
}

func TestComputeDriftSmallSampleSkipped(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit"}))
	seedLogs(t, store, "m1", 5,
		func(i int) float64 { return 0.5 },
		func(i int) float64 { return 100.0 })

	calc := NewCalculator(store, store, store, 100, DefaultThresholds())
	result, err := calc.ComputeDrift(context.Background(), "m1")
	require.NoError(t, err)

	assert.Empty(t, result.Metrics)
	assert.Contains(t, result.Skipped, "income")
	assert.Contains(t, result.Skipped, types.PredictionFeature)
}

func TestComputeDriftStableModel(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit"}))

	rng := rand.New(rand.NewSource(1))
	seedLogs(t, store, "m1", 200,
		func(i int) float64 { return 0.4 + 0.2*rng.Float64() },
		func(i int) float64 { return 50000 + 1000*rng.NormFloat64() })

	calc := NewCalculator(store, store, store, 100, DefaultThresholds())
	result, err := calc.ComputeDrift(context.Background(), "m1")
	require.NoError(t, err)

	require.NotEmpty(t, result.Metrics)
	assert.False(t, result.DriftDetected(), "a stationary model must not be flagged")
}

func TestComputeDriftShiftedModel(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit"}))

	rng := rand.New(rand.NewSource(1))
	// First half stationary, second half shifted hard.
	seedLogs(t, store, "m1", 200,
		func(i int) float64 {
			if i < 100 {
				return 0.3 + 0.1*rng.Float64()
			}
			return 0.8 + 0.1*rng.Float64()
		},
		func(i int) float64 {
			if i < 100 {
				return 50000 + 1000*rng.NormFloat64()
			}
			return 90000 + 1000*rng.NormFloat64()
		})

	calc := NewCalculator(store, store, store, 100, DefaultThresholds())
	result, err := calc.ComputeDrift(context.Background(), "m1")
	require.NoError(t, err)

	assert.True(t, result.DriftDetected())
	for _, m := range result.Metrics {
		assert.Equal(t, "m1", m.ModelID)
		assert.True(t, m.DriftFlag, "feature %s should drift", m.FeatureName)
	}

	// Metrics from the run must be readable back.
	stored, err := store.LatestDriftMetrics("m1", 50)
	require.NoError(t, err)
	assert.Len(t, stored, len(result.Metrics))
}

func TestComputeDriftSkipsCategoricalFeatures(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutModel(types.Model{ID: "m1", Name: "credit"}))
	seedLogs(t, store, "m1", 100,
		func(i int) float64 { return 0.5 },
		func(i int) float64 { return 100.0 })

	calc := NewCalculator(store, store, store, 100, DefaultThresholds())
	result, err := calc.ComputeDrift(context.Background(), "m1")
	require.NoError(t, err)

	for _, m := range result.Metrics {
		assert.NotEqual(t, "region", m.FeatureName, "categorical values cannot be binned")
	}
	assert.Contains(t, result.Skipped, "region")
}
