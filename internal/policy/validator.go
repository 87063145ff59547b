// Package policy validates generated IAM policy documents before they are
// applied, catching over-broad grants at deploy time instead of in review.
package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

//go:embed iam.rego
var policyContent string

type Validator struct {
	allowQuery      rego.PreparedEvalQuery
	violationsQuery rego.PreparedEvalQuery
}

type ValidationResult struct {
	Allowed    bool     `json:"allowed"`
	Violations []string `json:"violations,omitempty"`
}

func NewValidator() (*Validator, error) {
	allowQuery, err := rego.New(
		rego.Query("data.iam.allow"),
		rego.Module("iam.rego", policyContent),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy query: %w", err)
	}

	violationsQuery, err := rego.New(
		rego.Query("data.iam.violations"),
		rego.Module("iam.rego", policyContent),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare violations query: %w", err)
	}

	return &Validator{
		allowQuery:      allowQuery,
		violationsQuery: violationsQuery,
	}, nil
}

// ValidateDocument evaluates one IAM policy document (JSON) against the
// embedded rules.
func (v *Validator) ValidateDocument(ctx context.Context, document string) (*ValidationResult, error) {
	var input map[string]interface{}
	if err := json.Unmarshal([]byte(document), &input); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}

	allowResults, err := v.allowQuery.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	result := &ValidationResult{}
	if len(allowResults) > 0 && len(allowResults[0].Expressions) > 0 {
		if allowed, ok := allowResults[0].Expressions[0].Value.(bool); ok {
			result.Allowed = allowed
		}
	}

	if result.Allowed {
		return result, nil
	}

	violationResults, err := v.violationsQuery.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate violations: %w", err)
	}

	for _, r := range violationResults {
		for _, expr := range r.Expressions {
			values, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, value := range values {
				if msg, ok := value.(string); ok {
					result.Violations = append(result.Violations, msg)
				}
			}
		}
	}

	return result, nil
}
