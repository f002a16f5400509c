package types

import "time"

// DriftMetric is one feature's drift result for a model at a point in time.
// Created only by the drift calculator, never mutated.
type DriftMetric struct {
	ModelID     string    `json:"model_id"`
	FeatureName string    `json:"feature_name"`
	PSI         float64   `json:"psi"`
	KS          float64   `json:"ks"`
	DriftFlag   bool      `json:"drift_flag"`
	Timestamp   time.Time `json:"timestamp"`
}

// FairnessMetric is one (protected attribute, group) pair's fairness
// snapshot. Every group row from a single evaluation run carries the
// same DisparityScore and FairnessFlag.
type FairnessMetric struct {
	ModelID             string    `json:"model_id"`
	ProtectedAttribute  string    `json:"protected_attribute"`
	GroupName           string    `json:"group_name"`
	TotalPredictions    int       `json:"total_predictions"`
	PositivePredictions int       `json:"positive_predictions"`
	ApprovalRate        float64   `json:"approval_rate"`
	DisparityScore      float64   `json:"disparity_score"`
	FairnessFlag        bool      `json:"fairness_flag"`
	Timestamp           time.Time `json:"timestamp"`
}

// RiskEntry is one Model Risk Index snapshot. Append-only; the latest
// entry by timestamp is authoritative for "current risk".
// Invariant: RiskScore == clamp(Drift*0.6 + Fairness*0.4, 0, 100)
// rounded to 2 decimals.
type RiskEntry struct {
	ModelID           string    `json:"model_id"`
	RiskScore         float64   `json:"risk_score"`
	DriftComponent    float64   `json:"drift_component"`
	FairnessComponent float64   `json:"fairness_component"`
	Timestamp         time.Time `json:"timestamp"`
}
