package drift

import (
	"context"
	"fmt"
	"time"

	"github.com/modelgate/modelgate/storage"
	"github.com/modelgate/modelgate/telemetry"
	"github.com/modelgate/modelgate/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Thresholds configures drift flagging
type Thresholds struct {
	PSI       float64 // flag when PSI >= this (default 0.25)
	KS        float64 // flag when KS >= this (default 0.20)
	Bins      int     // PSI histogram bins (default 10)
	MinSample int     // skip features with fewer values (default 10)
}

// DefaultThresholds returns the standard alerting thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{PSI: 0.25, KS: 0.20, Bins: 10, MinSample: 10}
}

// Calculator computes per-feature distribution drift between the
// baseline window and the recent window of a model's prediction logs.
type Calculator struct {
	models     storage.ModelReader
	metrics    storage.DriftWriter
	sampler    *Sampler
	thresholds Thresholds
	logger     *telemetry.Logger
	tracer     trace.Tracer
}

// NewCalculator creates a drift calculator
func NewCalculator(models storage.ModelReader, logs storage.LogReader, metrics storage.DriftWriter, windowSize int, thresholds Thresholds) *Calculator {
	return &Calculator{
		models:     models,
		metrics:    metrics,
		sampler:    NewSampler(logs, 100, windowSize),
		thresholds: thresholds,
		logger:     telemetry.NewLogger("drift-calculator"),
		tracer:     otel.Tracer("drift-calculator"),
	}
}

// ComputeDrift evaluates every monitored feature of a model and persists
// one DriftMetric row per evaluated feature. An unknown model or a model
// without enough data yields an empty result, not an error: callers
// distinguish "no drift" from "no data" by row counts.
func (c *Calculator) ComputeDrift(ctx context.Context, modelID string) (types.DriftResult, error) {
	ctx, span := c.tracer.Start(ctx, "drift.compute",
		trace.WithAttributes(attribute.String("model.id", modelID)))
	defer span.End()

	result := types.DriftResult{ModelID: modelID, Timestamp: time.Now().UTC()}

	if !c.models.ModelExists(modelID) {
		c.logger.WithContext(ctx).Debug().
			Str("model_id", modelID).
			Msg("drift requested for unknown model, returning empty result")
		return result, nil
	}

	features, err := c.sampler.FeatureNames(modelID)
	if err != nil {
		return result, fmt.Errorf("failed to discover features: %w", err)
	}

	for _, feature := range features {
		metric, ok, err := c.computeFeature(ctx, modelID, feature, result.Timestamp)
		if err != nil {
			return result, err
		}
		if !ok {
			result.Skipped = append(result.Skipped, feature)
			continue
		}
		result.Metrics = append(result.Metrics, metric)
	}

	if len(result.Metrics) > 0 {
		if err := c.metrics.AppendDriftMetrics(result.Metrics); err != nil {
			return result, fmt.Errorf("failed to persist drift metrics: %w", err)
		}
	}

	c.logger.WithContext(ctx).Info().
		Str("model_id", modelID).
		Int("features_evaluated", len(result.Metrics)).
		Int("features_skipped", len(result.Skipped)).
		Bool("drift_detected", result.DriftDetected()).
		Msg("drift computation complete")

	return result, nil
}

// computeFeature evaluates a single feature. ok is false when either
// sample is too small, which is a valid skip, not a failure.
func (c *Calculator) computeFeature(ctx context.Context, modelID, feature string, ts time.Time) (types.DriftMetric, bool, error) {
	baseline, err := c.sampler.BaselineSample(modelID, feature)
	if err != nil {
		return types.DriftMetric{}, false, fmt.Errorf("baseline sample for %s: %w", feature, err)
	}
	recent, err := c.sampler.RecentSample(modelID, feature)
	if err != nil {
		return types.DriftMetric{}, false, fmt.Errorf("recent sample for %s: %w", feature, err)
	}

	if len(baseline) < c.thresholds.MinSample || len(recent) < c.thresholds.MinSample {
		return types.DriftMetric{}, false, nil
	}

	psi := PSI(baseline, recent, c.thresholds.Bins)
	ks := KS(baseline, recent)

	metric := types.DriftMetric{
		ModelID:     modelID,
		FeatureName: feature,
		PSI:         psi,
		KS:          ks,
		DriftFlag:   psi >= c.thresholds.PSI || ks >= c.thresholds.KS,
		Timestamp:   ts,
	}

	c.logger.WithContext(ctx).Debug().
		Str("model_id", modelID).
		Str("feature", feature).
		Float64("psi", psi).
		Float64("ks", ks).
		Bool("drift_flag", metric.DriftFlag).
		Msg("feature drift evaluated")

	return metric, true, nil
}
