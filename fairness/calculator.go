package fairness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/modelgate/modelgate/storage"
	"github.com/modelgate/modelgate/telemetry"
	"github.com/modelgate/modelgate/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// positiveThreshold: a prediction counts as a positive outcome when the
// score is strictly above 0.5.
const positiveThreshold = 0.5

// DefaultDisparityThreshold is the fallback fairness ceiling applied
// when no governance policy is active. The threshold normally comes
// from the active policy; the fallback keeps the calculator usable on
// an ungoverned install.
const DefaultDisparityThreshold = 0.25

// Calculator computes per-group approval rates and the disparity spread
// for a protected attribute over a model's full prediction history.
type Calculator struct {
	logs     storage.LogReader
	metrics  storage.FairnessWriter
	policies storage.PolicyReader
	fallback float64
	logger   *telemetry.Logger
	tracer   trace.Tracer
}

// NewCalculator creates a fairness calculator
func NewCalculator(logs storage.LogReader, metrics storage.FairnessWriter, policies storage.PolicyReader, fallbackThreshold float64) *Calculator {
	if fallbackThreshold <= 0 {
		fallbackThreshold = DefaultDisparityThreshold
	}
	return &Calculator{
		logs:     logs,
		metrics:  metrics,
		policies: policies,
		fallback: fallbackThreshold,
		logger:   telemetry.NewLogger("fairness-calculator"),
		tracer:   otel.Tracer("fairness-calculator"),
	}
}

// ComputeFairness groups the model's full prediction history by the
// protected attribute's string value, computes per-group approval rates
// and the disparity spread (max - min), and persists one FairnessMetric
// row per group. Every row from one run carries the identical disparity
// score and flag. Zero logs, or zero logs carrying the attribute, yield
// a zero result rather than an error.
func (c *Calculator) ComputeFairness(ctx context.Context, modelID, protectedAttribute string) (types.FairnessResult, error) {
	ctx, span := c.tracer.Start(ctx, "fairness.compute",
		trace.WithAttributes(
			attribute.String("model.id", modelID),
			attribute.String("protected.attribute", protectedAttribute)))
	defer span.End()

	result := types.FairnessResult{
		ModelID:            modelID,
		ProtectedAttribute: protectedAttribute,
		Timestamp:          time.Now().UTC(),
	}

	logs, err := c.logs.AllLogs(modelID)
	if err != nil {
		return result, fmt.Errorf("failed to read prediction logs: %w", err)
	}
	if len(logs) == 0 {
		return result, nil
	}

	groups := groupStats(logs, protectedAttribute)
	if len(groups) == 0 {
		return result, nil
	}

	result.DisparityScore = disparity(groups)
	threshold := c.disparityThreshold(ctx, modelID)
	result.FairnessFlag = result.DisparityScore > threshold

	for _, g := range groups {
		result.Groups = append(result.Groups, types.FairnessMetric{
			ModelID:             modelID,
			ProtectedAttribute:  protectedAttribute,
			GroupName:           g.name,
			TotalPredictions:    g.total,
			PositivePredictions: g.positive,
			ApprovalRate:        g.approvalRate(),
			DisparityScore:      result.DisparityScore,
			FairnessFlag:        result.FairnessFlag,
			Timestamp:           result.Timestamp,
		})
	}

	if err := c.metrics.AppendFairnessMetrics(result.Groups); err != nil {
		return result, fmt.Errorf("failed to persist fairness metrics: %w", err)
	}

	c.logger.WithContext(ctx).Info().
		Str("model_id", modelID).
		Str("protected_attribute", protectedAttribute).
		Float64("disparity_score", result.DisparityScore).
		Float64("threshold", threshold).
		Bool("fairness_flag", result.FairnessFlag).
		Int("groups", len(result.Groups)).
		Msg("fairness computation complete")

	return result, nil
}

// disparityThreshold resolves the fairness ceiling from the active
// policy, falling back to the configured default when none is active.
// Threshold enforcement belongs to the governance layer; the fallback
// here is kept for behavioral parity and logged as a warning.
func (c *Calculator) disparityThreshold(ctx context.Context, modelID string) float64 {
	policy, err := c.policies.ActivePolicy()
	if err != nil {
		if errors.Is(err, storage.ErrNoActivePolicy) {
			c.logger.LogPolicyFallback(ctx, modelID, c.fallback)
		} else {
			c.logger.LogStorageError(ctx, "active_policy", err)
		}
		return c.fallback
	}
	return policy.MaxAllowedDisparity
}

type group struct {
	name     string
	total    int
	positive int
}

func (g group) approvalRate() float64 {
	if g.total == 0 {
		return 0
	}
	return float64(g.positive) / float64(g.total)
}

// groupStats tallies totals and positives per attribute value. Logs
// missing the attribute are excluded entirely.
func groupStats(logs []types.PredictionLog, attribute string) []group {
	tally := make(map[string]*group)
	for _, log := range logs {
		value, ok := log.GroupValue(attribute)
		if !ok {
			continue
		}
		g, exists := tally[value]
		if !exists {
			g = &group{name: value}
			tally[value] = g
		}
		g.total++
		if log.Score > positiveThreshold {
			g.positive++
		}
	}

	groups := make([]group, 0, len(tally))
	for _, g := range tally {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].name < groups[j].name })
	return groups
}

// disparity is the spread between the best and worst approval rate
func disparity(groups []group) float64 {
	if len(groups) == 0 {
		return 0
	}
	minRate := groups[0].approvalRate()
	maxRate := minRate
	for _, g := range groups[1:] {
		rate := g.approvalRate()
		if rate < minRate {
			minRate = rate
		}
		if rate > maxRate {
			maxRate = rate
		}
	}
	return maxRate - minRate
}
