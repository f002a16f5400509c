// Package narrative renders governance verdicts into human-readable
// explanations. Providers form a chain; the deterministic template
// provider always sits last so an explanation is never unavailable.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelgate/modelgate/types"
)

// Input is everything a provider needs to explain a verdict
type Input struct {
	Model     types.Model
	Verdict   types.GovernanceVerdict
	Policy    types.Policy
	HasPolicy bool
}

// Explanation is a rendered governance narrative
type Explanation struct {
	Summary         string   `json:"summary"`
	RiskAssessment  string   `json:"risk_assessment"`
	Recommendations []string `json:"recommendations"`
	RealAI          bool     `json:"real_ai"` // true only when a generative provider produced the text
}

// Provider produces explanations. Available reports whether the
// provider can serve right now; TryGenerate may still fail, in which
// case the chain moves on.
type Provider interface {
	Available() bool
	TryGenerate(ctx context.Context, input Input) (Explanation, error)
}

// Chain tries providers in order and falls back to the next on failure
type Chain struct {
	providers []Provider
}

// NewChain builds a chain ending in the template provider, so Generate
// never fails.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: append(providers, TemplateProvider{})}
}

// Generate returns the first provider's successful explanation
func (c *Chain) Generate(ctx context.Context, input Input) Explanation {
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		explanation, err := p.TryGenerate(ctx, input)
		if err == nil {
			return explanation
		}
	}
	// Unreachable: the template provider cannot fail.
	return Explanation{}
}

// TemplateProvider renders explanations from fixed templates. It is the
// chain's terminal provider and never errors.
type TemplateProvider struct{}

func (TemplateProvider) Available() bool { return true }

func (TemplateProvider) TryGenerate(_ context.Context, input Input) (Explanation, error) {
	riskLevel := riskBucket(input.Verdict.RiskScore, input.Policy, input.HasPolicy)
	fairnessLevel := fairnessBucket(input.Verdict.DisparityScore, input.Policy, input.HasPolicy)

	name := input.Model.Name
	if name == "" {
		name = input.Model.ID
	}

	summary := fmt.Sprintf("Model %q is %s: %s. Risk index %.2f (%s), fairness disparity %.2f (%s).",
		name, statusPhrase(input.Verdict), input.Verdict.Reason,
		input.Verdict.RiskScore, riskLevel,
		input.Verdict.DisparityScore, fairnessLevel)

	return Explanation{
		Summary:         summary,
		RiskAssessment:  riskAssessment(riskLevel, fairnessLevel),
		Recommendations: recommendations(input.Verdict, riskLevel, fairnessLevel),
		RealAI:          false,
	}, nil
}

func statusPhrase(v types.GovernanceVerdict) string {
	if v.Ungoverned {
		return "ungoverned"
	}
	switch v.Status {
	case types.StatusBlocked:
		return "blocked from deployment"
	case types.StatusAtRisk:
		return "flagged at risk"
	case types.StatusApproved:
		return "approved"
	default:
		return v.Status
	}
}

// riskBucket grades the MRI relative to the policy's hard ceiling.
// Without a policy the default ceiling of 80 applies.
func riskBucket(risk float64, policy types.Policy, hasPolicy bool) string {
	ceiling := 80.0
	if hasPolicy {
		ceiling = policy.MaxAllowedMRI
	}
	switch {
	case risk >= ceiling+20:
		return "critical"
	case risk >= ceiling:
		return "high"
	case risk >= ceiling*0.75:
		return "medium"
	default:
		return "low"
	}
}

func fairnessBucket(disparity float64, policy types.Policy, hasPolicy bool) string {
	ceiling := 0.25
	if hasPolicy {
		ceiling = policy.MaxAllowedDisparity
	}
	if disparity > ceiling {
		return "concerning"
	}
	return "acceptable"
}

func riskAssessment(riskLevel, fairnessLevel string) string {
	var parts []string
	switch riskLevel {
	case "critical":
		parts = append(parts, "The model risk index is far beyond the tolerated ceiling.")
	case "high":
		parts = append(parts, "The model risk index exceeds the tolerated ceiling.")
	case "medium":
		parts = append(parts, "The model risk index is approaching the tolerated ceiling.")
	default:
		parts = append(parts, "The model risk index is comfortably within tolerance.")
	}
	if fairnessLevel == "concerning" {
		parts = append(parts, "Approval rates differ across protected groups beyond the allowed spread.")
	} else {
		parts = append(parts, "Approval rates are balanced across protected groups.")
	}
	return strings.Join(parts, " ")
}

func recommendations(v types.GovernanceVerdict, riskLevel, fairnessLevel string) []string {
	var recs []string
	switch riskLevel {
	case "critical", "high":
		recs = append(recs,
			"Investigate recent feature drift and consider retraining on current data.",
			"Hold deployment until the risk index returns below the policy ceiling.")
	case "medium":
		recs = append(recs, "Monitor drift metrics closely; schedule a retraining checkpoint.")
	}
	if fairnessLevel == "concerning" {
		recs = append(recs, "Review training data balance for the protected attribute and re-evaluate group outcomes.")
	}
	if v.Ungoverned {
		recs = append(recs, "Activate a governance policy so evaluations can gate deployment.")
	}
	if len(recs) == 0 {
		recs = append(recs, "No action required; continue routine monitoring.")
	}
	return recs
}
