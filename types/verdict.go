package types

import "time"

// DriftResult is the outcome of one drift computation run
type DriftResult struct {
	ModelID   string        `json:"model_id"`
	Metrics   []DriftMetric `json:"metrics"`
	Skipped   []string      `json:"skipped,omitempty"` // features with insufficient samples
	Timestamp time.Time     `json:"timestamp"`
}

// DriftDetected reports whether any evaluated feature flagged drift
func (r *DriftResult) DriftDetected() bool {
	for _, m := range r.Metrics {
		if m.DriftFlag {
			return true
		}
	}
	return false
}

// FairnessResult is the outcome of one fairness computation run
type FairnessResult struct {
	ModelID            string           `json:"model_id"`
	ProtectedAttribute string           `json:"protected_attribute"`
	DisparityScore     float64          `json:"disparity_score"`
	FairnessFlag       bool             `json:"fairness_flag"`
	Groups             []FairnessMetric `json:"groups"`
	Timestamp          time.Time        `json:"timestamp"`
}

// GovernanceVerdict is the result of evaluating a model against the
// active policy. Status is the resulting model status; Ungoverned is set
// when no active policy exists and the stored status was left untouched.
type GovernanceVerdict struct {
	ModelID        string    `json:"model_id"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason"`
	RiskScore      float64   `json:"risk_score"`
	DisparityScore float64   `json:"disparity_score"`
	PolicyID       string    `json:"policy_id,omitempty"`
	Ungoverned     bool      `json:"ungoverned,omitempty"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
}

// Deny codes mirror the HTTP-like semantics clients key off
const (
	DenyCodeNotFound  = 404
	DenyCodeForbidden = 403
)

// DeploymentDecision is the deployment gate's answer to a deploy request
type DeploymentDecision struct {
	ModelID      string            `json:"model_id"`
	Allowed      bool              `json:"allowed"`
	Reason       string            `json:"reason"`
	Code         int               `json:"code,omitempty"` // set on deny
	OverrideUsed bool              `json:"override_used"`
	Verdict      GovernanceVerdict `json:"verdict"`
	DecidedAt    time.Time         `json:"decided_at"`
}

// Compliance grades returned by the read-only governance simulation
const (
	GradeA = "A" // all checks passed
	GradeB = "B" // soft gate triggered, no override requested
	GradeC = "C" // soft gate passed via override
	GradeD = "D" // fairness gate passed via override
	GradeF = "F" // hard block, or fairness gate without override
)

// SimulationInput is an arbitrary risk/disparity pair to evaluate
// against a policy without touching stored state
type SimulationInput struct {
	RiskScore      float64 `json:"risk_score"`
	DisparityScore float64 `json:"disparity_score"`
	Override       bool    `json:"override"`
}

// SimulationResult mirrors the production rule order and precedence
type SimulationResult struct {
	WouldPass       bool           `json:"would_pass"`
	Reason          string         `json:"reason"`
	ComplianceGrade string         `json:"compliance_grade"`
	Details         map[string]any `json:"details,omitempty"`
}

// BatchSimulationResult aggregates a batch of simulated scenarios
type BatchSimulationResult struct {
	ScenarioCount int                `json:"scenario_count"`
	PassedCount   int                `json:"passed_count"`
	PassRate      float64            `json:"pass_rate"`
	Results       []SimulationResult `json:"results"`
}
