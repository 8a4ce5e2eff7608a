// internal/types/rules.go
package types

import (
	"encoding/json"
	"time"
)

/*
 * Domain types for eligibility rule versions.
 *
 * EligibilityRule carries its logic as a stored JSON node tree (RawLogic);
 * internal/expr owns decoding it into an expression node. These types are
 * wire-format agnostic - HTTP DTO conversion happens at the API boundary.
 */

// RuleID identifies one eligibility rule version. UUIDv7 string alias:
// type safety with plain JSON string serialization, time-ordered for
// B-tree-friendly inserts.
type RuleID string

// EligibilityRule is one versioned rule for a (state, program) pair.
//
// Active-version invariant: for a given (state, program) at most one version
// is active at any instant, defined as effectiveDate <= now <= endDate
// (nil endDate = open-ended). When multiple versions satisfy the window,
// the highest Version wins.
type EligibilityRule struct {
	RuleID        RuleID          `db:"rule_id" json:"ruleId"`
	ProgramID     string          `db:"program_id" json:"programId"`
	StateCode     string          `db:"state_code" json:"stateCode"`
	Version       int             `db:"version" json:"version"`
	RawLogic      json.RawMessage `db:"logic" json:"logic"`
	FPLPercent    int             `db:"fpl_percent" json:"fplPercent"`
	EffectiveDate time.Time       `db:"effective_date" json:"effectiveDate"`
	EndDate       *time.Time      `db:"end_date" json:"endDate,omitempty"`
}

// ActiveAt reports whether the rule's effective window contains t.
func (r *EligibilityRule) ActiveAt(t time.Time) bool {
	if t.Before(r.EffectiveDate) {
		return false
	}
	if r.EndDate != nil && t.After(*r.EndDate) {
		return false
	}
	return true
}
