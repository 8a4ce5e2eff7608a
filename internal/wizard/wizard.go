// Package wizard routes the screening questionnaire: which step comes next
// for a given answer set, and which downstream steps go stale when an
// upstream answer changes.
package wizard

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/openbenefits/medscreen/internal/expr"
	"github.com/openbenefits/medscreen/internal/types"
)

// Navigator evaluates a published step set. It is immutable after
// construction and safe for concurrent use.
type Navigator struct {
	byID    map[string]types.StepDefinition
	ordered []types.StepDefinition // ascending sequence
}

// NewNavigator indexes the step set. Duplicate ids or missing sequences are
// publication bugs caught by catalog validation; they are rejected here too
// so a Navigator can never hold an ambiguous ordering.
func NewNavigator(steps []types.StepDefinition) (*Navigator, error) {
	byID := make(map[string]types.StepDefinition, len(steps))
	ordered := make([]types.StepDefinition, 0, len(steps))
	for _, st := range steps {
		if _, dup := byID[st.StepID]; dup {
			return nil, fmt.Errorf("duplicate step id %q", st.StepID)
		}
		if st.Sequence <= 0 {
			return nil, fmt.Errorf("step %q has no sequence", st.StepID)
		}
		byID[st.StepID] = st
		ordered = append(ordered, st)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })
	return &Navigator{byID: byID, ordered: ordered}, nil
}

// Step returns a step definition by id.
func (n *Navigator) Step(stepID string) (types.StepDefinition, error) {
	st, ok := n.byID[stepID]
	if !ok {
		return types.StepDefinition{}, fmt.Errorf("%w: %q", types.ErrUnknownStep, stepID)
	}
	return st, nil
}

// NextStep evaluates the current step's navigation rules top to bottom
// against the full answer snapshot and returns the first truthy target.
// A nil result with nil error means the wizard is complete from this
// branch, a normal terminal condition: steps with no navigation rules (or
// none matching) are terminal.
func (n *Navigator) NextStep(currentStepID string, answers types.AnswerSnapshot) (*types.StepDefinition, error) {
	current, err := n.Step(currentStepID)
	if err != nil {
		return nil, err
	}

	for _, rule := range current.NavigationRules {
		matched := true
		if rule.Condition != "" {
			node, err := expr.Parse(rule.Condition)
			if err != nil {
				return nil, fmt.Errorf("step %q navigation: %w", currentStepID, err)
			}
			// Non-boolean condition results go through the truthiness
			// rules; missing answers degrade the condition to false.
			matched = expr.EvaluateBool(node, answers)
		}
		if matched {
			target, err := n.Step(rule.TargetStep)
			if err != nil {
				return nil, err
			}
			return &target, nil
		}
	}
	return nil, nil
}

// DownstreamOf returns the ids of every step whose sequence is strictly
// greater than the given step's, in ascending sequence order.
func (n *Navigator) DownstreamOf(stepID string) ([]string, error) {
	current, err := n.Step(stepID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, st := range n.ordered {
		if st.Sequence > current.Sequence {
			out = append(out, st.StepID)
		}
	}
	return out, nil
}

// InvalidationsFor computes which steps must be revalidated after an answer
// submission. A structurally unchanged answer (deep equality on the
// payload) invalidates nothing; a changed one invalidates every downstream
// step.
func (n *Navigator) InvalidationsFor(stepID string, previous, submitted any) ([]string, error) {
	if _, err := n.Step(stepID); err != nil {
		return nil, err
	}
	if reflect.DeepEqual(previous, submitted) {
		return nil, nil
	}
	return n.DownstreamOf(stepID)
}
