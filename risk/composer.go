package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/modelgate/modelgate/storage"
	"github.com/modelgate/modelgate/telemetry"
	"github.com/modelgate/modelgate/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Component and composite weights. PSI carries more signal than KS, and
// drift carries more signal than fairness, so both blends lean that way.
const (
	psiWeight      = 60.0
	ksWeight       = 40.0
	driftWindow    = 50 // drift rows considered per composition
	driftWeight    = 0.6
	fairnessWeight = 0.4
)

// Composer folds the latest drift and fairness metrics into a single
// Model Risk Index on a 0-100 scale and appends it to risk history.
type Composer struct {
	drift    storage.DriftReader
	fairness storage.FairnessReader
	history  storage.RiskWriter
	logger   *telemetry.Logger
	tracer   trace.Tracer
}

// NewComposer creates a risk composer
func NewComposer(drift storage.DriftReader, fairness storage.FairnessReader, history storage.RiskWriter) *Composer {
	return &Composer{
		drift:    drift,
		fairness: fairness,
		history:  history,
		logger:   telemetry.NewLogger("risk-composer"),
		tracer:   otel.Tracer("risk-composer"),
	}
}

// ComposeRisk computes the model's current MRI and appends one entry to
// the risk history. A model with no metrics at all composes to zero,
// which is a valid entry: absence of evidence reads as low risk until
// monitoring produces data.
func (c *Composer) ComposeRisk(ctx context.Context, modelID string) (types.RiskEntry, error) {
	ctx, span := c.tracer.Start(ctx, "risk.compose",
		trace.WithAttributes(attribute.String("model.id", modelID)))
	defer span.End()

	driftComponent, err := c.driftComponent(modelID)
	if err != nil {
		return types.RiskEntry{}, fmt.Errorf("drift component: %w", err)
	}
	fairnessComponent, err := c.fairnessComponent(modelID)
	if err != nil {
		return types.RiskEntry{}, fmt.Errorf("fairness component: %w", err)
	}

	entry := types.RiskEntry{
		ModelID:           modelID,
		RiskScore:         Round2(clamp(driftComponent*driftWeight + fairnessComponent*fairnessWeight)),
		DriftComponent:    driftComponent,
		FairnessComponent: fairnessComponent,
		Timestamp:         time.Now().UTC(),
	}

	if err := c.history.AppendRiskEntry(entry); err != nil {
		return types.RiskEntry{}, fmt.Errorf("failed to persist risk entry: %w", err)
	}

	c.logger.WithContext(ctx).Info().
		Str("model_id", modelID).
		Float64("risk_score", entry.RiskScore).
		Float64("drift_component", driftComponent).
		Float64("fairness_component", fairnessComponent).
		Msg("risk composition complete")

	return entry, nil
}

// driftComponent averages PSI and KS over the latest drift rows and
// blends them onto a 0-100 scale. The 1.6 divisor normalizes the blend
// so a PSI of 1.0 and KS of 1.0 map to roughly the top of the scale.
func (c *Composer) driftComponent(modelID string) (float64, error) {
	metrics, err := c.drift.LatestDriftMetrics(modelID, driftWindow)
	if err != nil {
		return 0, err
	}
	if len(metrics) == 0 {
		return 0, nil
	}

	var psiSum, ksSum float64
	for _, m := range metrics {
		psiSum += m.PSI
		ksSum += m.KS
	}
	n := float64(len(metrics))
	avgPSI := psiSum / n
	avgKS := ksSum / n

	raw := (avgPSI*psiWeight + avgKS*ksWeight) / 1.6
	return Round2(clamp(raw)), nil
}

// fairnessComponent maps the latest run's disparity spread onto 0-100
func (c *Composer) fairnessComponent(modelID string) (float64, error) {
	latest, ok, err := c.fairness.LatestFairnessMetric(modelID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return Round2(clamp(latest.DisparityScore * 100)), nil
}

// Round2 rounds to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
