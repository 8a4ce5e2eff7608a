package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for medscreen evaluation and validation.
var (
	// ErrMalformedExpression indicates unparsable rule/condition text.
	// Surfaced to whoever authored the rule, never coerced to false.
	ErrMalformedExpression = errors.New("malformed expression")

	// ErrUnknownOperator indicates an operator outside the fixed grammar.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrExpressionTooDeep indicates a node tree exceeds MaxExpressionDepth.
	ErrExpressionTooDeep = errors.New("expression exceeds maximum depth")

	// ErrTooManyInValues indicates an IN list exceeds MaxInListValues.
	ErrTooManyInValues = errors.New("IN operator has too many values")

	// ErrUnknownQuestion indicates a rule references a question id that
	// does not exist in the catalog.
	ErrUnknownQuestion = errors.New("unknown question reference")

	// ErrMissingRule indicates a question references a conditional rule
	// that does not exist.
	ErrMissingRule = errors.New("missing conditional rule")

	// ErrCircularDependency indicates a cycle in the visibility-rule
	// dependency graph. Blocks publishing of the question set.
	ErrCircularDependency = errors.New("circular visibility dependency")

	// ErrReferenceDataMissing indicates no FPL row exists for a
	// (year, household size) pair. Fatal to the specific evaluation;
	// a silent zero threshold would corrupt eligibility math.
	ErrReferenceDataMissing = errors.New("reference data missing")

	// ErrNoActiveRule indicates a program has no active rule version for
	// the requested instant. The program is excluded from batch results,
	// not treated as a batch failure.
	ErrNoActiveRule = errors.New("no active rule version")

	// ErrUnknownStep indicates a step id that does not exist.
	ErrUnknownStep = errors.New("unknown step")
)

// Problem is one discovered catalog-validation issue.
type Problem struct {
	Code    string // stable machine code, e.g. "unknown_question_reference"
	Subject string // question/rule/step id the problem is about
	Detail  string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s [%s]: %s", p.Code, p.Subject, p.Detail)
}

// ValidationError aggregates catalog problems. Validation collects every
// problem across passes instead of failing fast so authors can fix the
// whole definition set in one round trip.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("validation failed with %d problem(s): %s",
		len(e.Problems), strings.Join(parts, "; "))
}
