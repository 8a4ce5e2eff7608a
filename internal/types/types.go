// Package types provides domain models shared across medscreen components.
//
// Zero-dependency design: types.go and errors.go use only the standard
// library so the evaluation core can be embedded without pulling in storage
// or transport dependencies. ID utilities in ids.go import uuid but are
// isolated for selective inclusion.
package types

import "time"

// AnswerSnapshot is a flat mapping from question/step identifier to a typed
// scalar or list value. Allowed value types are bool, float64, int64, string
// and []string. A snapshot is immutable per evaluation call; it is rebuilt
// fresh from persisted answers at the start of each request.
type AnswerSnapshot map[string]any

// Lookup returns the answer for key. A missing key yields (nil, false);
// evaluators treat that as the defined "absent" value, never an error.
func (s AnswerSnapshot) Lookup(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// Pathway identifies the legal category through which an applicant qualifies.
type Pathway string

const (
	PathwayMAGI      Pathway = "magi"
	PathwayAged      Pathway = "non_magi_aged"
	PathwayDisabled  Pathway = "non_magi_disabled"
	PathwaySSILinked Pathway = "ssi_linked"
	PathwayPregnancy Pathway = "pregnancy"
	PathwayOther     Pathway = "other"
)

// MedicaidProgram is pure reference data describing one screenable program.
type MedicaidProgram struct {
	ProgramID string  `db:"program_id" json:"programId"`
	StateCode string  `db:"state_code" json:"stateCode"`
	Name      string  `db:"name" json:"name"`
	Pathway   Pathway `db:"pathway" json:"pathway"`
}

// FederalPovertyLevel is one row of the poverty-level table. A nil StateCode
// marks the national baseline; a state-specific row overrides the baseline
// for the same (year, household size).
type FederalPovertyLevel struct {
	Year          int     `db:"year" json:"year"`
	HouseholdSize int     `db:"household_size" json:"householdSize"`
	StateCode     *string `db:"state_code" json:"stateCode,omitempty"`
	AnnualCents   int64   `db:"annual_cents" json:"annualCents"`
}

// EligibilityStatus is the verdict tier for a program or the overall result.
type EligibilityStatus string

const (
	StatusLikelyEligible   EligibilityStatus = "LIKELY_ELIGIBLE"
	StatusPossiblyEligible EligibilityStatus = "POSSIBLY_ELIGIBLE"
	StatusUnlikelyEligible EligibilityStatus = "UNLIKELY_ELIGIBLE"
)

// Score-to-status thresholds. Part of the public contract consumed by the
// presentation layer; changing them is a breaking change.
const (
	LikelyFloor   = 60 // score >= 60 -> LIKELY_ELIGIBLE
	PossiblyFloor = 40 // 40..59 -> POSSIBLY_ELIGIBLE, below -> UNLIKELY_ELIGIBLE
)

// StatusForScore maps a clamped confidence score to its status tier.
func StatusForScore(score int) EligibilityStatus {
	switch {
	case score >= LikelyFloor:
		return StatusLikelyEligible
	case score >= PossiblyFloor:
		return StatusPossiblyEligible
	default:
		return StatusUnlikelyEligible
	}
}

// ConfidenceLabel derives the presentation-layer label for a score.
// Thresholds: 0-19 Uncertain, 20-39 Low, 40-59 Some, 60-79 High, 80-100 Very high.
func ConfidenceLabel(score int) string {
	switch {
	case score >= 80:
		return "Very high"
	case score >= 60:
		return "High"
	case score >= 40:
		return "Some"
	case score >= 20:
		return "Low"
	default:
		return "Uncertain"
	}
}

// ApplicantInput is the screening request payload. Monetary amounts are
// monthly cents. Optional verification-dependent factors use pointers;
// nil means the applicant has not (yet) answered.
type ApplicantInput struct {
	StateCode          string `json:"stateCode" binding:"required,statecode"`
	HouseholdSize      int    `json:"householdSize" binding:"required,gte=1,lte=20"`
	MonthlyIncomeCents int64  `json:"monthlyIncomeCents" binding:"gte=0"`
	Age                int    `json:"age" binding:"gte=0,lte=130"`
	IsDisabled         *bool  `json:"isDisabled,omitempty"`
	IsPregnant         *bool  `json:"isPregnant,omitempty"`
	ReceivesSSI        *bool  `json:"receivesSSI,omitempty"`
	IsCitizen          *bool  `json:"isCitizen,omitempty"`
	AssetsCents        *int64 `json:"assetsCents,omitempty"`
}

// ProgramMatch is the per-program evaluation outcome.
type ProgramMatch struct {
	ProgramID            string            `json:"programId"`
	ProgramName          string            `json:"programName"`
	Pathway              Pathway           `json:"pathway"`
	Status               EligibilityStatus `json:"status"`
	ConfidenceScore      int               `json:"confidenceScore"`
	ConfidenceLabel      string            `json:"confidenceLabel"`
	Explanation          string            `json:"explanation"`
	MatchingFactors      []string          `json:"matchingFactors,omitempty"`
	DisqualifyingFactors []string          `json:"disqualifyingFactors,omitempty"`
	UnresolvedFactors    []string          `json:"unresolvedFactors,omitempty"`
}

// EligibilityResult is the aggregate screening outcome. Not persisted by the
// evaluation core; the session layer owns storage.
type EligibilityResult struct {
	OverallStatus   EligibilityStatus `json:"overallStatus"`
	ConfidenceScore int               `json:"confidenceScore"`
	ConfidenceLabel string            `json:"confidenceLabel"`
	Explanation     string            `json:"explanation"`
	Matches         []ProgramMatch    `json:"matches"`
	EvaluatedAt     time.Time         `json:"evaluatedAt"`
}

// Resource limits enforced at parse/validation time to keep evaluation cheap.
const (
	// MaxExpressionDepth bounds recursion when evaluating node trees.
	// 32 levels is far beyond any authored visibility or eligibility rule.
	MaxExpressionDepth = 32

	// MaxInListValues limits IN operator list size to keep membership
	// checks linear over small sets.
	MaxInListValues = 64

	// MaxAnswerKeyLength bounds question identifiers; catalog authoring
	// tools generate kebab-case ids well under this.
	MaxAnswerKeyLength = 128
)
