package storage

import (
	"time"

	"github.com/modelgate/modelgate/types"
)

// AppendDriftMetrics persists one drift evaluation run atomically, one
// row per evaluated feature. Existing rows are never mutated.
func (s *Store) AppendDriftMetrics(metrics []types.DriftMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	modelID := metrics[0].ModelID
	timestamps := make([]time.Time, len(metrics))
	for i := range metrics {
		if metrics[i].Timestamp.IsZero() {
			metrics[i].Timestamp = time.Now().UTC()
		}
		timestamps[i] = metrics[i].Timestamp
	}
	return appendSeriesBatch(s, bucketDrift, modelID, timestamps, metrics)
}

// LatestDriftMetrics returns up to limit drift rows, most recent first
func (s *Store) LatestDriftMetrics(modelID string, limit int) ([]types.DriftMetric, error) {
	return latestSeries[types.DriftMetric](s, bucketDrift, modelID, limit)
}

// ResetDriftMetrics deletes all drift rows for a model. Administrative
// reset path only; normal operation never deletes.
func (s *Store) ResetDriftMetrics(modelID string) error {
	return deleteSeries(s, bucketDrift, modelID)
}

// AppendFairnessMetrics persists one fairness evaluation run atomically,
// one row per observed group. History accumulates; prior rows stay.
func (s *Store) AppendFairnessMetrics(metrics []types.FairnessMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	modelID := metrics[0].ModelID
	timestamps := make([]time.Time, len(metrics))
	for i := range metrics {
		if metrics[i].Timestamp.IsZero() {
			metrics[i].Timestamp = time.Now().UTC()
		}
		timestamps[i] = metrics[i].Timestamp
	}
	return appendSeriesBatch(s, bucketFairness, modelID, timestamps, metrics)
}

// LatestFairnessMetric returns the most recent fairness row for a model.
// ok is false when no fairness history exists.
func (s *Store) LatestFairnessMetric(modelID string) (types.FairnessMetric, bool, error) {
	rows, err := latestSeries[types.FairnessMetric](s, bucketFairness, modelID, 1)
	if err != nil || len(rows) == 0 {
		return types.FairnessMetric{}, false, err
	}
	return rows[0], true, nil
}

// LatestFairnessMetrics returns up to limit fairness rows, most recent first
func (s *Store) LatestFairnessMetrics(modelID string, limit int) ([]types.FairnessMetric, error) {
	return latestSeries[types.FairnessMetric](s, bucketFairness, modelID, limit)
}

// AppendRiskEntry persists one MRI snapshot
func (s *Store) AppendRiskEntry(entry types.RiskEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return appendSeries(s, bucketRisk, entry.ModelID, entry.Timestamp, entry)
}

// AppendRiskEntries persists several MRI snapshots atomically. Used by
// the scenario seeder's staged history; failure rolls back all rows.
func (s *Store) AppendRiskEntries(modelID string, entries []types.RiskEntry) error {
	timestamps := make([]time.Time, len(entries))
	for i := range entries {
		if entries[i].Timestamp.IsZero() {
			entries[i].Timestamp = time.Now().UTC()
		}
		timestamps[i] = entries[i].Timestamp
	}
	return appendSeriesBatch(s, bucketRisk, modelID, timestamps, entries)
}

// LatestRiskEntry returns the most recent MRI snapshot for a model.
// ok is false when no risk history exists.
func (s *Store) LatestRiskEntry(modelID string) (types.RiskEntry, bool, error) {
	rows, err := latestSeries[types.RiskEntry](s, bucketRisk, modelID, 1)
	if err != nil || len(rows) == 0 {
		return types.RiskEntry{}, false, err
	}
	return rows[0], true, nil
}

// RiskHistory returns up to limit MRI snapshots, most recent first
func (s *Store) RiskHistory(modelID string, limit int) ([]types.RiskEntry, error) {
	return latestSeries[types.RiskEntry](s, bucketRisk, modelID, limit)
}
