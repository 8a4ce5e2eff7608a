// Package catalog validates and serves the question/step definition set.
//
// Definitions are authored by administrative tooling (YAML or the catalog
// tables) and read-only to the evaluation core. Validation collects every
// problem across passes instead of failing fast so authors fix the whole
// definition in one round trip.
package catalog

import (
	"fmt"
	"sort"

	"github.com/openbenefits/medscreen/internal/expr"
	"github.com/openbenefits/medscreen/internal/types"
)

/*
 * Two-pass validation.
 *
 * Pass 1, reference integrity: every visibility rule a question names must
 * exist, every variable inside a rule must name a known question, choice
 * questions must carry options, step navigation targets must name known
 * steps, and sequences must be present and unique.
 *
 * Pass 2, cycle detection: runs only when pass 1 is clean. Building a
 * dependency graph over unresolved references would report phantom cycles,
 * so reference errors block the graph pass entirely.
 */

// Validate checks the full definition set. Returns nil when clean, or a
// *types.ValidationError aggregating every discovered problem.
func Validate(questions []types.Question, rules []types.ConditionalRule, steps []types.StepDefinition) error {
	var problems []types.Problem

	ruleByID := make(map[string]types.ConditionalRule, len(rules))
	for _, r := range rules {
		if _, dup := ruleByID[r.RuleID]; dup {
			problems = append(problems, types.Problem{
				Code: "duplicate_rule", Subject: r.RuleID,
				Detail: "conditional rule id defined more than once",
			})
			continue
		}
		ruleByID[r.RuleID] = r
	}

	questionByID := make(map[string]types.Question, len(questions))
	for _, q := range questions {
		if _, dup := questionByID[q.QuestionID]; dup {
			problems = append(problems, types.Problem{
				Code: "duplicate_question", Subject: q.QuestionID,
				Detail: "question id defined more than once",
			})
			continue
		}
		questionByID[q.QuestionID] = q
	}

	// Engine-injected answer keys are legal references even though no
	// question produces them.
	known := make(map[string]struct{}, len(questionByID)+len(derivedKeys))
	for id := range questionByID {
		known[id] = struct{}{}
	}
	for _, k := range derivedKeys {
		known[k] = struct{}{}
	}

	// Parse each rule once; malformed rules are authoring errors.
	ruleRefs := make(map[string][]string, len(ruleByID))
	for id, r := range ruleByID {
		refs, err := expr.ReferencedKeysText(r.Expression)
		if err != nil {
			problems = append(problems, types.Problem{
				Code: "malformed_expression", Subject: id,
				Detail: err.Error(),
			})
			continue
		}
		ruleRefs[id] = refs
		for _, ref := range refs {
			if _, ok := known[ref]; !ok {
				problems = append(problems, types.Problem{
					Code: "unknown_question_reference", Subject: id,
					Detail: fmt.Sprintf("%v: %q", types.ErrUnknownQuestion, ref),
				})
			}
		}
	}

	for _, q := range questions {
		if q.VisibilityRuleID != "" {
			if _, ok := ruleByID[q.VisibilityRuleID]; !ok {
				problems = append(problems, types.Problem{
					Code: "missing_rule", Subject: q.QuestionID,
					Detail: fmt.Sprintf("%v: %q", types.ErrMissingRule, q.VisibilityRuleID),
				})
			}
		}
		if (q.FieldType == types.FieldTypeChoice || q.FieldType == types.FieldTypeMultiChoice) && len(q.Options) == 0 {
			problems = append(problems, types.Problem{
				Code: "missing_options", Subject: q.QuestionID,
				Detail: "choice question has no selectable options",
			})
		}
	}

	problems = append(problems, validateSteps(steps, known)...)

	if len(problems) > 0 {
		sortProblems(problems)
		return &types.ValidationError{Problems: problems}
	}

	// Reference-clean: safe to build the dependency graph.
	if cycle := detectCycle(questions, ruleRefs); len(cycle) > 0 {
		return &types.ValidationError{Problems: []types.Problem{{
			Code:    "circular_dependency",
			Subject: cycle[0],
			Detail:  fmt.Sprintf("%v: involves %v", types.ErrCircularDependency, cycle),
		}}}
	}
	return nil
}

// detectCycle builds the visibility dependency graph (edge A -> B when A's
// visibility rule references B) and runs a Kahn topological sort: compute
// in-degrees, repeatedly remove zero-in-degree nodes; any node left
// unprocessed sits on a cycle. Returns the sorted ids of leftover nodes,
// empty when acyclic.
func detectCycle(questions []types.Question, ruleRefs map[string][]string) []string {
	adjacent := make(map[string][]string, len(questions))
	inDegree := make(map[string]int, len(questions))
	for _, q := range questions {
		inDegree[q.QuestionID] = 0
	}

	for _, q := range questions {
		if q.VisibilityRuleID == "" {
			continue
		}
		for _, dep := range ruleRefs[q.VisibilityRuleID] {
			if _, isQuestion := inDegree[dep]; !isQuestion {
				continue // derived engine key, not part of the graph
			}
			adjacent[dep] = append(adjacent[dep], q.QuestionID)
			inDegree[q.QuestionID]++
		}
	}

	queue := make([]string, 0, len(inDegree))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue) // deterministic processing order

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, next := range adjacent[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if processed == len(inDegree) {
		return nil
	}
	var leftover []string
	for id, deg := range inDegree {
		if deg > 0 {
			leftover = append(leftover, id)
		}
	}
	sort.Strings(leftover)
	return leftover
}

func validateSteps(steps []types.StepDefinition, known map[string]struct{}) []types.Problem {
	var problems []types.Problem

	stepByID := make(map[string]struct{}, len(steps))
	seqSeen := make(map[int]string, len(steps))
	for _, st := range steps {
		if _, dup := stepByID[st.StepID]; dup {
			problems = append(problems, types.Problem{
				Code: "duplicate_step", Subject: st.StepID,
				Detail: "step id defined more than once",
			})
			continue
		}
		stepByID[st.StepID] = struct{}{}

		if st.Sequence <= 0 {
			problems = append(problems, types.Problem{
				Code: "missing_sequence", Subject: st.StepID,
				Detail: "step sequence is required and must be positive",
			})
		} else if prev, dup := seqSeen[st.Sequence]; dup {
			problems = append(problems, types.Problem{
				Code: "duplicate_sequence", Subject: st.StepID,
				Detail: fmt.Sprintf("sequence %d already used by %q", st.Sequence, prev),
			})
		} else {
			seqSeen[st.Sequence] = st.StepID
		}
	}

	for _, st := range steps {
		for _, nav := range st.NavigationRules {
			if _, ok := stepByID[nav.TargetStep]; !ok {
				problems = append(problems, types.Problem{
					Code: "unknown_step_target", Subject: st.StepID,
					Detail: fmt.Sprintf("%v: navigation target %q", types.ErrUnknownStep, nav.TargetStep),
				})
			}
			if nav.Condition != "" {
				if _, err := expr.ReferencedKeysText(nav.Condition); err != nil {
					problems = append(problems, types.Problem{
						Code: "malformed_expression", Subject: st.StepID,
						Detail: err.Error(),
					})
				}
			}
		}
		if st.VisibilityRule != "" {
			refs, err := expr.ReferencedKeysText(st.VisibilityRule)
			if err != nil {
				problems = append(problems, types.Problem{
					Code: "malformed_expression", Subject: st.StepID,
					Detail: err.Error(),
				})
				continue
			}
			for _, ref := range refs {
				if _, ok := known[ref]; !ok {
					problems = append(problems, types.Problem{
						Code: "unknown_question_reference", Subject: st.StepID,
						Detail: fmt.Sprintf("%v: %q", types.ErrUnknownQuestion, ref),
					})
				}
			}
		}
	}
	return problems
}

func sortProblems(problems []types.Problem) {
	sort.SliceStable(problems, func(i, j int) bool {
		if problems[i].Subject != problems[j].Subject {
			return problems[i].Subject < problems[j].Subject
		}
		return problems[i].Code < problems[j].Code
	})
}
