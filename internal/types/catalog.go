// internal/types/catalog.go
package types

/*
 * Catalog types for the question/step definition set.
 *
 * Questions, conditional visibility rules, and step definitions are authored
 * by administrative tooling and read-only to the evaluation core. Rule bodies
 * are stored as expression text in the catalog surface; parsing into node
 * trees happens in internal/expr at validation/evaluation time.
 */

// FieldType describes the answer widget/value type of a question.
type FieldType string

const (
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeNumber      FieldType = "number"
	FieldTypeText        FieldType = "text"
	FieldTypeChoice      FieldType = "choice"
	FieldTypeMultiChoice FieldType = "multi_choice"
)

// ConditionalRule gates question visibility. Many questions may reference
// the same rule by id. Expression holds the textual grammar surface
// (IDENT OP LITERAL joined by AND/OR) shared with the client-side mirror.
type ConditionalRule struct {
	RuleID      string `db:"rule_id" json:"ruleId" yaml:"id"`
	Expression  string `db:"expression" json:"expression" yaml:"expression"`
	Description string `db:"description" json:"description,omitempty" yaml:"description,omitempty"`
}

// Question is one entry of the question catalog.
type Question struct {
	QuestionID   string    `db:"question_id" json:"questionId" yaml:"id"`
	DisplayOrder int       `db:"display_order" json:"displayOrder" yaml:"order"`
	Text         string    `db:"text" json:"text" yaml:"text"`
	FieldType    FieldType `db:"field_type" json:"fieldType" yaml:"type"`
	Required     bool      `db:"required" json:"required" yaml:"required"`
	// VisibilityRuleID references a ConditionalRule; empty means always visible.
	VisibilityRuleID string   `db:"visibility_rule_id" json:"visibilityRuleId,omitempty" yaml:"visibleWhen,omitempty"`
	Options          []string `db:"-" json:"options,omitempty" yaml:"options,omitempty"`
}

// NavigationRule routes the wizard from a step. Condition uses the textual
// expression grammar; an empty condition always matches (default branch).
type NavigationRule struct {
	Condition  string `json:"condition,omitempty" yaml:"when,omitempty"`
	TargetStep string `json:"targetStep" yaml:"goto"`
}

// StepDefinition is one wizard step. Sequence is a required, explicit field:
// downstream invalidation orders steps by it, and catalog validation rejects
// steps without one or with duplicates.
type StepDefinition struct {
	StepID          string           `db:"step_id" json:"stepId" yaml:"id"`
	Sequence        int              `db:"sequence" json:"sequence" yaml:"sequence"`
	Title           string           `db:"title" json:"title" yaml:"title"`
	QuestionIDs     []string         `db:"-" json:"questionIds" yaml:"questions"`
	VisibilityRule  string           `db:"visibility_rule" json:"visibilityRule,omitempty" yaml:"visibleWhen,omitempty"`
	NavigationRules []NavigationRule `db:"-" json:"navigationRules,omitempty" yaml:"navigation,omitempty"`
}
