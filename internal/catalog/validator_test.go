// internal/catalog/validator_test.go
package catalog

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/openbenefits/medscreen/internal/types"
)

func validQuestions() []types.Question {
	return []types.Question{
		{QuestionID: "household-size", Text: "How many people live with you?", FieldType: types.FieldTypeNumber, Required: true},
		{QuestionID: "has-income", Text: "Does anyone earn income?", FieldType: types.FieldTypeBoolean, Required: true},
		{QuestionID: "income-amount", Text: "Monthly income", FieldType: types.FieldTypeNumber, VisibilityRuleID: "show-income"},
	}
}

func validRules() []types.ConditionalRule {
	return []types.ConditionalRule{
		{RuleID: "show-income", Expression: "has-income == true"},
	}
}

func validSteps() []types.StepDefinition {
	return []types.StepDefinition{
		{StepID: "household", Sequence: 1, Title: "Household", QuestionIDs: []string{"household-size"}},
		{StepID: "income", Sequence: 2, Title: "Income", QuestionIDs: []string{"has-income", "income-amount"},
			NavigationRules: []types.NavigationRule{{TargetStep: "review"}}},
		{StepID: "review", Sequence: 3, Title: "Review"},
	}
}

func problemCodes(t *testing.T, err error) []string {
	t.Helper()
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *types.ValidationError", err)
	}
	codes := make([]string, len(verr.Problems))
	for i, p := range verr.Problems {
		codes[i] = p.Code
	}
	return codes
}

func TestValidate_CleanCatalog(t *testing.T) {
	if err := Validate(validQuestions(), validRules(), validSteps()); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_MissingRule(t *testing.T) {
	questions := validQuestions()
	questions[2].VisibilityRuleID = "does-not-exist"

	err := Validate(questions, validRules(), validSteps())
	codes := problemCodes(t, err)
	if len(codes) != 1 || codes[0] != "missing_rule" {
		t.Errorf("codes = %v, want [missing_rule]", codes)
	}
}

func TestValidate_UnknownQuestionReference(t *testing.T) {
	rules := []types.ConditionalRule{
		{RuleID: "show-income", Expression: "no-such-question == true"},
	}

	err := Validate(validQuestions(), rules, validSteps())
	codes := problemCodes(t, err)
	if len(codes) != 1 || codes[0] != "unknown_question_reference" {
		t.Errorf("codes = %v, want [unknown_question_reference]", codes)
	}
}

func TestValidate_DerivedKeysAreKnown(t *testing.T) {
	rules := []types.ConditionalRule{
		{RuleID: "show-income", Expression: "fplRatioPercent > 100 AND householdSize >= 2"},
	}

	if err := Validate(validQuestions(), rules, validSteps()); err != nil {
		t.Errorf("Validate() error = %v, derived engine keys should be legal references", err)
	}
}

func TestValidate_MalformedExpression(t *testing.T) {
	rules := []types.ConditionalRule{
		{RuleID: "show-income", Expression: "has-income === true"},
	}

	err := Validate(validQuestions(), rules, validSteps())
	codes := problemCodes(t, err)
	if len(codes) != 1 || codes[0] != "malformed_expression" {
		t.Errorf("codes = %v, want [malformed_expression]", codes)
	}
}

func TestValidate_ChoiceWithoutOptions(t *testing.T) {
	questions := append(validQuestions(), types.Question{
		QuestionID: "coverage-type", Text: "Coverage type", FieldType: types.FieldTypeChoice,
	})

	err := Validate(questions, validRules(), validSteps())
	codes := problemCodes(t, err)
	if len(codes) != 1 || codes[0] != "missing_options" {
		t.Errorf("codes = %v, want [missing_options]", codes)
	}
}

func TestValidate_StepProblems(t *testing.T) {
	steps := []types.StepDefinition{
		{StepID: "a", Sequence: 1, Title: "A",
			NavigationRules: []types.NavigationRule{{TargetStep: "ghost"}}},
		{StepID: "b", Title: "B"},              // no sequence
		{StepID: "c", Sequence: 1, Title: "C"}, // duplicate sequence
		{StepID: "c", Sequence: 4, Title: "C again"},
	}

	err := Validate(validQuestions(), validRules(), steps)
	codes := problemCodes(t, err)

	want := map[string]bool{
		"unknown_step_target": false,
		"missing_sequence":    false,
		"duplicate_sequence":  false,
		"duplicate_step":      false,
	}
	for _, code := range codes {
		if _, ok := want[code]; ok {
			want[code] = true
		}
	}
	for code, seen := range want {
		if !seen {
			t.Errorf("expected problem %q not reported; got %v", code, codes)
		}
	}
}

func TestValidate_ProblemsAreCollectedAndSorted(t *testing.T) {
	questions := validQuestions()
	questions[2].VisibilityRuleID = "ghost-rule"
	rules := []types.ConditionalRule{
		{RuleID: "orphan", Expression: "nobody == 1"},
	}

	err := Validate(questions, rules, validSteps())
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want aggregate", err)
	}
	if len(verr.Problems) != 2 {
		t.Fatalf("problems = %v, want both reported in one pass", verr.Problems)
	}
	for i := 1; i < len(verr.Problems); i++ {
		a, b := verr.Problems[i-1], verr.Problems[i]
		if a.Subject > b.Subject || (a.Subject == b.Subject && a.Code > b.Code) {
			t.Errorf("problems not sorted: %v before %v", a, b)
		}
	}
}

func TestValidate_DirectCycle(t *testing.T) {
	questions := []types.Question{
		{QuestionID: "a", Text: "A", FieldType: types.FieldTypeBoolean, VisibilityRuleID: "rule-a"},
		{QuestionID: "b", Text: "B", FieldType: types.FieldTypeBoolean, VisibilityRuleID: "rule-b"},
	}
	rules := []types.ConditionalRule{
		{RuleID: "rule-a", Expression: "b == true"},
		{RuleID: "rule-b", Expression: "a == true"},
	}

	err := Validate(questions, rules, nil)
	codes := problemCodes(t, err)
	if len(codes) != 1 || codes[0] != "circular_dependency" {
		t.Errorf("codes = %v, want [circular_dependency]", codes)
	}
}

func TestValidate_SelfCycle(t *testing.T) {
	questions := []types.Question{
		{QuestionID: "a", Text: "A", FieldType: types.FieldTypeBoolean, VisibilityRuleID: "rule-a"},
	}
	rules := []types.ConditionalRule{
		{RuleID: "rule-a", Expression: "a == true"},
	}

	err := Validate(questions, rules, nil)
	codes := problemCodes(t, err)
	if len(codes) != 1 || codes[0] != "circular_dependency" {
		t.Errorf("codes = %v, want [circular_dependency]", codes)
	}
}

// Reference errors block the cycle pass: a graph built over unresolved
// references would report phantom cycles.
func TestValidate_ReferenceErrorsSuppressCyclePass(t *testing.T) {
	questions := []types.Question{
		{QuestionID: "a", Text: "A", FieldType: types.FieldTypeBoolean, VisibilityRuleID: "rule-a"},
	}
	rules := []types.ConditionalRule{
		{RuleID: "rule-a", Expression: "a == true AND ghost == true"},
	}

	err := Validate(questions, rules, nil)
	codes := problemCodes(t, err)
	for _, code := range codes {
		if code == "circular_dependency" {
			t.Errorf("cycle reported despite reference errors: %v", codes)
		}
	}
}

// Property: a linear chain of visibility dependencies of any length is
// acyclic; closing it into a ring is always a cycle.
func TestDetectCycle_ChainVersusRing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	build := func(n int, ring bool) ([]types.Question, []types.ConditionalRule) {
		questions := make([]types.Question, n)
		rules := make([]types.ConditionalRule, 0, n)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("q%03d", i)
			questions[i] = types.Question{QuestionID: id, Text: id, FieldType: types.FieldTypeBoolean}
			if i > 0 {
				ruleID := "rule-" + id
				questions[i].VisibilityRuleID = ruleID
				rules = append(rules, types.ConditionalRule{
					RuleID:     ruleID,
					Expression: fmt.Sprintf("q%03d == true", i-1),
				})
			}
		}
		if ring && n > 1 {
			ruleID := "rule-q000"
			questions[0].VisibilityRuleID = ruleID
			rules = append(rules, types.ConditionalRule{
				RuleID:     ruleID,
				Expression: fmt.Sprintf("q%03d == true", n-1),
			})
		}
		return questions, rules
	}

	properties.Property("chains validate, rings are cycles", prop.ForAll(
		func(n int) bool {
			questions, rules := build(n, false)
			if err := Validate(questions, rules, nil); err != nil {
				return false
			}

			questions, rules = build(n, true)
			err := Validate(questions, rules, nil)
			if err == nil {
				return false
			}
			var verr *types.ValidationError
			return errors.As(err, &verr) && verr.Problems[0].Code == "circular_dependency"
		},
		gen.IntRange(2, 30),
	))

	properties.TestingRun(t)
}
