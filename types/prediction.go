package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// PredictionFeature is the reserved feature name for the model's own
// output score. Drift is always computed for it.
const PredictionFeature = "prediction"

// PredictionLog is one production inference event. Immutable once written.
type PredictionLog struct {
	ModelID   string         `json:"model_id"`
	Features  map[string]any `json:"features"`
	Score     float64        `json:"score"`
	Label     *float64       `json:"label,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// FeatureValue extracts a named feature as float64. The reserved
// "prediction" feature resolves to the logged score. Categorical values
// that cannot be coerced return ok=false and are skipped by drift math.
func (p *PredictionLog) FeatureValue(name string) (float64, bool) {
	if name == PredictionFeature {
		return p.Score, true
	}
	raw, exists := p.Features[name]
	if !exists {
		return 0, false
	}
	return coerceNumeric(raw)
}

// GroupValue extracts a named feature as its string form for fairness
// grouping. Missing attributes return ok=false.
func (p *PredictionLog) GroupValue(name string) (string, bool) {
	raw, exists := p.Features[name]
	if !exists {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

func coerceNumeric(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
