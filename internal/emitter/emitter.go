// Package emitter publishes governance metrics via OTEL.
package emitter

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/modelgate/modelgate/types"
)

// Emitter records governance activity as metrics
type Emitter struct {
	meter metric.Meter

	evaluationsTotal metric.Int64Counter
	deploymentsTotal metric.Int64Counter
	overridesTotal   metric.Int64Counter
	driftFlagsTotal  metric.Int64Counter
	pipelineDuration metric.Float64Histogram
	riskScore        metric.Float64Histogram
}

// New creates an emitter on the global meter provider
func New() (*Emitter, error) {
	e := &Emitter{meter: otel.Meter("modelgate")}
	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return e, nil
}

func (e *Emitter) initMetrics() error {
	var err error

	e.evaluationsTotal, err = e.meter.Int64Counter(
		"modelgate_evaluations_total",
		metric.WithDescription("Total governance evaluations by resulting status"),
	)
	if err != nil {
		return fmt.Errorf("create evaluations counter: %w", err)
	}

	e.deploymentsTotal, err = e.meter.Int64Counter(
		"modelgate_deployments_total",
		metric.WithDescription("Total deployment decisions by outcome"),
	)
	if err != nil {
		return fmt.Errorf("create deployments counter: %w", err)
	}

	e.overridesTotal, err = e.meter.Int64Counter(
		"modelgate_overrides_total",
		metric.WithDescription("Total deployments that used an override"),
	)
	if err != nil {
		return fmt.Errorf("create overrides counter: %w", err)
	}

	e.driftFlagsTotal, err = e.meter.Int64Counter(
		"modelgate_drift_flags_total",
		metric.WithDescription("Total features flagged for drift"),
	)
	if err != nil {
		return fmt.Errorf("create drift flags counter: %w", err)
	}

	e.pipelineDuration, err = e.meter.Float64Histogram(
		"modelgate_pipeline_duration_seconds",
		metric.WithDescription("Duration of evaluation pipeline stages"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create pipeline duration histogram: %w", err)
	}

	e.riskScore, err = e.meter.Float64Histogram(
		"modelgate_risk_score",
		metric.WithDescription("Composed model risk index values"),
	)
	if err != nil {
		return fmt.Errorf("create risk score histogram: %w", err)
	}

	return nil
}

// RecordEvaluation counts one governance evaluation
func (e *Emitter) RecordEvaluation(ctx context.Context, verdict types.GovernanceVerdict) {
	status := verdict.Status
	if verdict.Ungoverned {
		status = types.StatusUngoverned
	}
	e.evaluationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model_id", verdict.ModelID),
		attribute.String("status", status),
	))
}

// RecordDeployment counts one deployment decision
func (e *Emitter) RecordDeployment(ctx context.Context, decision types.DeploymentDecision) {
	outcome := "denied"
	if decision.Allowed {
		outcome = "allowed"
	}
	e.deploymentsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model_id", decision.ModelID),
		attribute.String("outcome", outcome),
	))
	if decision.OverrideUsed {
		e.overridesTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("model_id", decision.ModelID),
		))
	}
}

// RecordDrift counts flagged features from one drift run
func (e *Emitter) RecordDrift(ctx context.Context, result types.DriftResult) {
	for _, m := range result.Metrics {
		if !m.DriftFlag {
			continue
		}
		e.driftFlagsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("model_id", m.ModelID),
			attribute.String("feature", m.FeatureName),
		))
	}
}

// RecordRisk observes one composed risk score
func (e *Emitter) RecordRisk(ctx context.Context, entry types.RiskEntry) {
	e.riskScore.Record(ctx, entry.RiskScore, metric.WithAttributes(
		attribute.String("model_id", entry.ModelID),
	))
}

// RecordStage observes the duration of one pipeline stage
func (e *Emitter) RecordStage(ctx context.Context, stage string, d time.Duration) {
	e.pipelineDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
	))
}
