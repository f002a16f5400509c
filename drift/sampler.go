package drift

import (
	"sort"

	"github.com/modelgate/modelgate/storage"
	"github.com/modelgate/modelgate/types"
)

// Sampler extracts numeric feature samples from bounded windows of
// stored prediction logs. Pure reads; never writes.
type Sampler struct {
	logs         storage.LogReader
	baselineSize int
	windowSize   int
}

// NewSampler creates a sampler with the given window sizes
func NewSampler(logs storage.LogReader, baselineSize, windowSize int) *Sampler {
	if baselineSize <= 0 {
		baselineSize = 100
	}
	if windowSize <= 0 {
		windowSize = 100
	}
	return &Sampler{
		logs:         logs,
		baselineSize: baselineSize,
		windowSize:   windowSize,
	}
}

// BaselineSample returns the feature's values from the earliest stored
// logs. Values that cannot be coerced to numeric are skipped.
func (s *Sampler) BaselineSample(modelID, feature string) ([]float64, error) {
	logs, err := s.logs.EarliestLogs(modelID, s.baselineSize)
	if err != nil {
		return nil, err
	}
	return extractValues(logs, feature), nil
}

// RecentSample returns the feature's values from the most recent
// windowSize logs.
func (s *Sampler) RecentSample(modelID, feature string) ([]float64, error) {
	logs, err := s.logs.LatestLogs(modelID, s.windowSize)
	if err != nil {
		return nil, err
	}
	return extractValues(logs, feature), nil
}

// FeatureNames discovers the features to monitor from the earliest
// stored log. The model's own output score is always monitored under
// the reserved "prediction" feature.
func (s *Sampler) FeatureNames(modelID string) ([]string, error) {
	logs, err := s.logs.EarliestLogs(modelID, 1)
	if err != nil {
		return nil, err
	}

	var names []string
	if len(logs) > 0 {
		for name := range logs[0].Features {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	return append(names, types.PredictionFeature), nil
}

func extractValues(logs []types.PredictionLog, feature string) []float64 {
	var values []float64
	for _, log := range logs {
		if v, ok := log.FeatureValue(feature); ok {
			values = append(values, v)
		}
	}
	return values
}
