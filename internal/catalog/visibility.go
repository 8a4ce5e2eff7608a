// internal/catalog/visibility.go
package catalog

import (
	"fmt"

	"github.com/openbenefits/medscreen/internal/expr"
	"github.com/openbenefits/medscreen/internal/types"
)

// derivedKeys are engine-injected answer identifiers; rules may reference
// them even though no catalog question produces them.
var derivedKeys = types.EngineKeys()

// IsQuestionVisible evaluates a question's visibility gate against the
// current answers. Questions without a gate are always visible. A rule id
// that does not resolve is an authoring error; Validate catches it before
// publication, so here it is reported rather than silently shown/hidden.
func IsQuestionVisible(q types.Question, answers types.AnswerSnapshot, rules []types.ConditionalRule) (bool, error) {
	if q.VisibilityRuleID == "" {
		return true, nil
	}
	var rule *types.ConditionalRule
	for i := range rules {
		if rules[i].RuleID == q.VisibilityRuleID {
			rule = &rules[i]
			break
		}
	}
	if rule == nil {
		return false, fmt.Errorf("%w: %q for question %q", types.ErrMissingRule, q.VisibilityRuleID, q.QuestionID)
	}

	node, err := expr.Parse(rule.Expression)
	if err != nil {
		return false, fmt.Errorf("rule %s: %w", rule.RuleID, err)
	}
	// Missing answers degrade to false inside the evaluator: a question
	// gated on data not yet collected stays hidden.
	return expr.EvaluateBool(node, answers), nil
}

// VisibleQuestions filters the catalog to questions whose gates pass,
// preserving display order.
func VisibleQuestions(questions []types.Question, answers types.AnswerSnapshot, rules []types.ConditionalRule) ([]types.Question, error) {
	out := make([]types.Question, 0, len(questions))
	for _, q := range questions {
		visible, err := IsQuestionVisible(q, answers, rules)
		if err != nil {
			return nil, err
		}
		if visible {
			out = append(out, q)
		}
	}
	return out, nil
}
