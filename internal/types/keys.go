// internal/types/keys.go
package types

// Answer keys injected by the rule engine (derived values) or produced from
// applicant input. Rule and catalog authors reference these identifiers;
// validation accepts them alongside question ids.
const (
	KeyStateCode       = "stateCode"
	KeyHouseholdSize   = "householdSize"
	KeyMonthlyIncome   = "monthlyIncomeCents"
	KeyAnnualIncome    = "annualIncomeCents"
	KeyAge             = "age"
	KeyIsDisabled      = "isDisabled"
	KeyIsPregnant      = "isPregnant"
	KeyReceivesSSI     = "receivesSSI"
	KeyIsCitizen       = "isCitizen"
	KeyAssets          = "assetsCents"
	KeyFPLThreshold    = "fplThresholdCents"
	KeyIncomeWithinFPL = "incomeWithinThreshold"
	KeyFPLRatioPercent = "fplRatioPercent"
)

// EngineKeys lists every key above, in declaration order.
func EngineKeys() []string {
	return []string{
		KeyStateCode, KeyHouseholdSize, KeyMonthlyIncome, KeyAnnualIncome,
		KeyAge, KeyIsDisabled, KeyIsPregnant, KeyReceivesSSI, KeyIsCitizen,
		KeyAssets, KeyFPLThreshold, KeyIncomeWithinFPL, KeyFPLRatioPercent,
	}
}
