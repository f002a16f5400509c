package governance

import (
	"context"
	"fmt"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/modelgate/modelgate/telemetry"
	"github.com/modelgate/modelgate/types"
)

// RuleEngine evaluates optional rego extension rules on top of the
// built-in policy checks. Extensions can escalate a verdict (approved
// to at_risk, at_risk to blocked) but never relax one: the built-in
// thresholds are a floor, not a suggestion.
type RuleEngine struct {
	queries map[string]rego.PreparedEvalQuery
	logger  *telemetry.Logger
}

// RuleInput is the document extension rules evaluate against
type RuleInput struct {
	Model     types.Model             `json:"model"`
	Policy    types.Policy            `json:"policy"`
	Verdict   types.GovernanceVerdict `json:"verdict"`
	Timestamp time.Time               `json:"timestamp"`
}

// NewRuleEngine creates an empty rule engine
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{
		queries: make(map[string]rego.PreparedEvalQuery),
		logger:  telemetry.NewLogger("governance-rules"),
	}
}

// LoadRule compiles and registers a rego module. Rules live under the
// modelgate namespace and may bind "status" and "reason".
func (re *RuleEngine) LoadRule(ctx context.Context, name, regoCode string) error {
	query := rego.New(
		rego.Query("data.modelgate"),
		rego.Module(name, regoCode),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to compile rule %s: %w", name, err)
	}

	re.queries[name] = prepared
	re.logger.WithContext(ctx).Info().
		Str("rule_name", name).
		Msg("extension rule loaded")
	return nil
}

// Tighten runs every loaded rule and applies the most severe escalation
// found. A rule that fails to evaluate is logged and skipped; extension
// rules must never take governance down with them.
func (re *RuleEngine) Tighten(ctx context.Context, model types.Model, policy types.Policy, verdict types.GovernanceVerdict) types.GovernanceVerdict {
	if len(re.queries) == 0 {
		return verdict
	}

	input := RuleInput{
		Model:     model,
		Policy:    policy,
		Verdict:   verdict,
		Timestamp: time.Now().UTC(),
	}

	for name, query := range re.queries {
		results, err := query.Eval(ctx, rego.EvalInput(input))
		if err != nil {
			re.logger.WithContext(ctx).Error().
				Err(err).
				Str("rule_name", name).
				Msg("extension rule evaluation failed, skipping")
			continue
		}

		status, reason := parseRuleResult(results)
		if status == "" {
			continue
		}
		if severity(status) > severity(verdict.Status) {
			verdict.Status = status
			verdict.Reason = fmt.Sprintf("%s (rule %s)", reason, name)
		}
	}
	return verdict
}

// parseRuleResult extracts status and reason bindings from the rego
// result set. OPA returns untyped JSON, so the walk is dynamic.
func parseRuleResult(results rego.ResultSet) (status, reason string) {
	for _, res := range results {
		for _, expr := range res.Expressions {
			doc, ok := expr.Value.(map[string]interface{})
			if !ok {
				continue
			}
			for _, rule := range doc {
				fields, ok := rule.(map[string]interface{})
				if !ok {
					continue
				}
				if s, ok := fields["status"].(string); ok {
					status = s
				}
				if r, ok := fields["reason"].(string); ok {
					reason = r
				}
			}
		}
	}
	return status, reason
}

func severity(status string) int {
	switch status {
	case types.StatusBlocked:
		return 3
	case types.StatusAtRisk:
		return 2
	case types.StatusApproved:
		return 1
	default:
		return 0
	}
}
