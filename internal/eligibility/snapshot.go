// internal/eligibility/snapshot.go
package eligibility

import (
	"github.com/openbenefits/medscreen/internal/types"
)

// Local aliases for the shared answer-key identifiers.
const (
	KeyStateCode       = types.KeyStateCode
	KeyHouseholdSize   = types.KeyHouseholdSize
	KeyMonthlyIncome   = types.KeyMonthlyIncome
	KeyAnnualIncome    = types.KeyAnnualIncome
	KeyAge             = types.KeyAge
	KeyIsDisabled      = types.KeyIsDisabled
	KeyIsPregnant      = types.KeyIsPregnant
	KeyReceivesSSI     = types.KeyReceivesSSI
	KeyIsCitizen       = types.KeyIsCitizen
	KeyAssets          = types.KeyAssets
	KeyFPLThreshold    = types.KeyFPLThreshold
	KeyIncomeWithinFPL = types.KeyIncomeWithinFPL
	KeyFPLRatioPercent = types.KeyFPLRatioPercent
)

// verificationKeys are optional factors whose absence marks a verdict as
// unresolved rather than incomplete: the applicant can screen without them,
// but a caseworker determination is needed to firm up the answer.
var verificationKeys = map[string]struct{}{
	KeyIsDisabled:  {},
	KeyIsPregnant:  {},
	KeyReceivesSSI: {},
}

// buildSnapshot converts applicant input into the flat answer snapshot rule
// logic evaluates against. Optional nil fields are omitted entirely so
// comparisons against them degrade to false per the evaluator contract.
func buildSnapshot(in types.ApplicantInput) types.AnswerSnapshot {
	s := types.AnswerSnapshot{
		KeyStateCode:     in.StateCode,
		KeyHouseholdSize: in.HouseholdSize,
		KeyMonthlyIncome: in.MonthlyIncomeCents,
		KeyAnnualIncome:  in.MonthlyIncomeCents * 12,
		KeyAge:           in.Age,
	}
	if in.IsDisabled != nil {
		s[KeyIsDisabled] = *in.IsDisabled
	}
	if in.IsPregnant != nil {
		s[KeyIsPregnant] = *in.IsPregnant
	}
	if in.ReceivesSSI != nil {
		s[KeyReceivesSSI] = *in.ReceivesSSI
	}
	if in.IsCitizen != nil {
		s[KeyIsCitizen] = *in.IsCitizen
	}
	if in.AssetsCents != nil {
		s[KeyAssets] = *in.AssetsCents
	}
	return s
}

// withThreshold returns a copy of the snapshot extended with the derived
// FPL keys for one program's threshold. The base snapshot is never mutated;
// snapshots are immutable per evaluation call.
func withThreshold(s types.AnswerSnapshot, annualIncomeCents, thresholdCents, baseCents int64) types.AnswerSnapshot {
	out := make(types.AnswerSnapshot, len(s)+3)
	for k, v := range s {
		out[k] = v
	}
	out[KeyFPLThreshold] = thresholdCents
	// Boundary inclusive: income exactly at the threshold passes.
	out[KeyIncomeWithinFPL] = annualIncomeCents <= thresholdCents
	if baseCents > 0 {
		out[KeyFPLRatioPercent] = float64(annualIncomeCents) / float64(baseCents) * 100
	}
	return out
}
