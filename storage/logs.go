package storage

import (
	"time"

	"github.com/modelgate/modelgate/types"
)

// AppendPredictionLog records a single inference event
func (s *Store) AppendPredictionLog(log types.PredictionLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	return appendSeries(s, bucketLogs, log.ModelID, log.Timestamp, log)
}

// AppendPredictionLogBatch records many inference events atomically.
// On failure nothing is persisted and a retryable TransactionError is
// returned.
func (s *Store) AppendPredictionLogBatch(modelID string, logs []types.PredictionLog) error {
	timestamps := make([]time.Time, len(logs))
	for i := range logs {
		if logs[i].Timestamp.IsZero() {
			logs[i].Timestamp = time.Now().UTC()
		}
		timestamps[i] = logs[i].Timestamp
	}
	return appendSeriesBatch(s, bucketLogs, modelID, timestamps, logs)
}

// EarliestLogs returns the oldest n prediction logs for a model,
// ascending by time. Used as the drift baseline window.
func (s *Store) EarliestLogs(modelID string, n int) ([]types.PredictionLog, error) {
	return earliestSeries[types.PredictionLog](s, bucketLogs, modelID, n)
}

// LatestLogs returns the most recent n prediction logs for a model,
// most recent first. Used as the drift recent window.
func (s *Store) LatestLogs(modelID string, n int) ([]types.PredictionLog, error) {
	return latestSeries[types.PredictionLog](s, bucketLogs, modelID, n)
}

// AllLogs returns the full prediction history for a model in time order
func (s *Store) AllLogs(modelID string) ([]types.PredictionLog, error) {
	return earliestSeries[types.PredictionLog](s, bucketLogs, modelID, 0)
}

// CountLogs returns the number of stored prediction logs for a model
func (s *Store) CountLogs(modelID string) (int, error) {
	return countSeries(s, bucketLogs, modelID)
}
