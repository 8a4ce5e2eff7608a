// internal/eligibility/engine_test.go
package eligibility

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/openbenefits/medscreen/internal/cache"
	"github.com/openbenefits/medscreen/internal/fpl"
	"github.com/openbenefits/medscreen/internal/types"
)

var asOf = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type stubRepo struct {
	programs  []types.MedicaidProgram
	rules     map[string][]types.EligibilityRule // keyed by program id
	ruleCalls int
}

func (s *stubRepo) ProgramsByState(ctx context.Context, stateCode string) ([]types.MedicaidProgram, error) {
	return s.programs, nil
}

func (s *stubRepo) RulesForProgram(ctx context.Context, stateCode, programID string) ([]types.EligibilityRule, error) {
	s.ruleCalls++
	return s.rules[programID], nil
}

type stubFPL struct{}

func (stubFPL) FPLTable(ctx context.Context, year int) ([]types.FederalPovertyLevel, error) {
	return []types.FederalPovertyLevel{
		{Year: 2025, HouseholdSize: 1, AnnualCents: 1565000},
		{Year: 2025, HouseholdSize: 2, AnnualCents: 2115000},
		{Year: 2025, HouseholdSize: 4, AnnualCents: 3215000},
	}, nil
}

func frozenClock() time.Time { return asOf }

func newTestEngine(repo *stubRepo) *Engine {
	calc := fpl.NewCalculator(stubFPL{}, cache.NewFPLCache(frozenClock))
	return NewEngine(repo, calc, cache.NewRuleCache(frozenClock, time.Hour), frozenClock)
}

func magiLogic() json.RawMessage {
	return json.RawMessage(`{
		"op": "AND",
		"args": [
			{"op": "==", "args": [{"var": "incomeWithinThreshold"}, {"lit": true}]},
			{"op": ">=", "args": [{"var": "age"}, {"lit": 19}]}
		]
	}`)
}

func magiRule(version int) types.EligibilityRule {
	return types.EligibilityRule{
		RuleID:        types.RuleID("r-magi-v" + string(rune('0'+version))),
		ProgramID:     "ny-magi-adult",
		StateCode:     "NY",
		Version:       version,
		RawLogic:      magiLogic(),
		FPLPercent:    138,
		EffectiveDate: asOf.AddDate(-1, 0, 0),
	}
}

func magiProgram() types.MedicaidProgram {
	return types.MedicaidProgram{
		ProgramID: "ny-magi-adult",
		StateCode: "NY",
		Name:      "NY Medicaid for Adults",
		Pathway:   types.PathwayMAGI,
	}
}

func nyRepo() *stubRepo {
	return &stubRepo{
		programs: []types.MedicaidProgram{magiProgram()},
		rules: map[string][]types.EligibilityRule{
			"ny-magi-adult": {magiRule(1)},
		},
	}
}

// Household of 1, 138% of $15,650 = $21,597.00 annual threshold.
const magiThresholdCents = 1565000 * 138 / 100

func TestEvaluateAll_ClearlyEligible(t *testing.T) {
	engine := newTestEngine(nyRepo())

	result, err := engine.EvaluateAllAt(context.Background(), types.ApplicantInput{
		StateCode:          "NY",
		HouseholdSize:      1,
		MonthlyIncomeCents: 100000, // $12,000/yr, well under threshold
		Age:                30,
	}, asOf)
	if err != nil {
		t.Fatalf("EvaluateAllAt() error = %v", err)
	}

	if result.OverallStatus != types.StatusLikelyEligible {
		t.Errorf("status = %v, want LIKELY_ELIGIBLE", result.OverallStatus)
	}
	if result.ConfidenceScore != 95 {
		t.Errorf("score = %d, want 95", result.ConfidenceScore)
	}
	if result.ConfidenceLabel != "Very high" {
		t.Errorf("label = %q, want Very high", result.ConfidenceLabel)
	}
	if len(result.Matches) != 1 || len(result.Matches[0].DisqualifyingFactors) != 0 {
		t.Errorf("matches = %+v, want one clean match", result.Matches)
	}
}

func TestEvaluateAll_ClearlyIneligible(t *testing.T) {
	engine := newTestEngine(nyRepo())

	result, err := engine.EvaluateAllAt(context.Background(), types.ApplicantInput{
		StateCode:          "NY",
		HouseholdSize:      1,
		MonthlyIncomeCents: 400000, // $48,000/yr, far over
		Age:                30,
	}, asOf)
	if err != nil {
		t.Fatalf("EvaluateAllAt() error = %v", err)
	}

	if result.OverallStatus != types.StatusUnlikelyEligible {
		t.Errorf("status = %v, want UNLIKELY_ELIGIBLE", result.OverallStatus)
	}
	if result.Explanation != "No program matched the provided answers." {
		t.Errorf("explanation = %q", result.Explanation)
	}
	if len(result.Matches) != 1 || result.Matches[0].ConfidenceScore != 5 {
		t.Errorf("matches = %+v, want single score-5 match", result.Matches)
	}
}

// Income exactly at the threshold passes the inclusive boundary but the
// score reads borderline, not confident.
func TestEvaluateAll_BoundaryIncome(t *testing.T) {
	engine := newTestEngine(nyRepo())

	result, err := engine.EvaluateAllAt(context.Background(), types.ApplicantInput{
		StateCode:          "NY",
		HouseholdSize:      1,
		MonthlyIncomeCents: magiThresholdCents / 12, // exactly at threshold
		Age:                30,
	}, asOf)
	if err != nil {
		t.Fatalf("EvaluateAllAt() error = %v", err)
	}

	match := result.Matches[0]
	if match.ConfidenceScore != 55 {
		t.Errorf("score = %d, want 55 at exact boundary", match.ConfidenceScore)
	}
	if match.Status != types.StatusPossiblyEligible {
		t.Errorf("status = %v, want POSSIBLY_ELIGIBLE", match.Status)
	}

	// One cent of monthly income over: fails the gate but still borderline.
	result, err = engine.EvaluateAllAt(context.Background(), types.ApplicantInput{
		StateCode:          "NY",
		HouseholdSize:      1,
		MonthlyIncomeCents: magiThresholdCents/12 + 1,
		Age:                30,
	}, asOf)
	if err != nil {
		t.Fatalf("EvaluateAllAt() error = %v", err)
	}

	match = result.Matches[0]
	if match.ConfidenceScore != 45 {
		t.Errorf("score = %d, want 45 just over boundary", match.ConfidenceScore)
	}
	if match.Status != types.StatusPossiblyEligible {
		t.Errorf("status = %v, want POSSIBLY_ELIGIBLE", match.Status)
	}
}

// The boundary the engine scores against is the calculator's threshold, not
// a private recomputation.
func TestEvaluateAll_ThresholdMatchesCalculator(t *testing.T) {
	calc := fpl.NewCalculator(stubFPL{}, cache.NewFPLCache(frozenClock))
	threshold, err := calc.ThresholdCents(context.Background(), 2025, 1, "NY", 138)
	if err != nil {
		t.Fatalf("ThresholdCents() error = %v", err)
	}
	if threshold != magiThresholdCents {
		t.Fatalf("ThresholdCents() = %d, want %d", threshold, magiThresholdCents)
	}

	engine := newTestEngine(nyRepo())
	result, err := engine.EvaluateAllAt(context.Background(), types.ApplicantInput{
		StateCode:          "NY",
		HouseholdSize:      1,
		MonthlyIncomeCents: threshold / 12,
		Age:                30,
	}, asOf)
	if err != nil {
		t.Fatalf("EvaluateAllAt() error = %v", err)
	}
	if got := result.Matches[0].ConfidenceScore; got != 55 {
		t.Errorf("score at calculator threshold = %d, want 55", got)
	}
}

func TestEvaluateAll_UnresolvedVerificationFactor(t *testing.T) {
	repo := nyRepo()
	repo.rules["ny-magi-adult"] = []types.EligibilityRule{{
		RuleID:    "r-disabled",
		ProgramID: "ny-magi-adult",
		StateCode: "NY",
		Version:   1,
		RawLogic: json.RawMessage(`{
			"op": "AND",
			"args": [
				{"op": "==", "args": [{"var": "isDisabled"}, {"lit": true}]},
				{"op": "==", "args": [{"var": "incomeWithinThreshold"}, {"lit": true}]}
			]
		}`),
		FPLPercent:    100,
		EffectiveDate: asOf.AddDate(-1, 0, 0),
	}}
	engine := newTestEngine(repo)

	// isDisabled left unanswered: the verdict is unresolved, clamped into
	// the uncertain band instead of reading as a confident rejection.
	result, err := engine.EvaluateAllAt(context.Background(), types.ApplicantInput{
		StateCode:          "NY",
		HouseholdSize:      1,
		MonthlyIncomeCents: 50000,
		Age:                40,
	}, asOf)
	if err != nil {
		t.Fatalf("EvaluateAllAt() error = %v", err)
	}

	match := result.Matches[0]
	if match.ConfidenceScore < unresolvedFloor || match.ConfidenceScore > unresolvedCeiling {
		t.Errorf("score = %d, want within [%d, %d]", match.ConfidenceScore, unresolvedFloor, unresolvedCeiling)
	}
	if !reflect.DeepEqual(match.UnresolvedFactors, []string{"isDisabled"}) {
		t.Errorf("UnresolvedFactors = %v, want [isDisabled]", match.UnresolvedFactors)
	}
}

func TestEvaluateAll_MissingRequiredKey(t *testing.T) {
	repo := nyRepo()
	repo.rules["ny-magi-adult"] = []types.EligibilityRule{{
		RuleID:    "r-citizen",
		ProgramID: "ny-magi-adult",
		StateCode: "NY",
		Version:   1,
		RawLogic: json.RawMessage(`{
			"op": "AND",
			"args": [
				{"op": "==", "args": [{"var": "isCitizen"}, {"lit": true}]},
				{"op": "==", "args": [{"var": "incomeWithinThreshold"}, {"lit": true}]}
			]
		}`),
		FPLPercent:    138,
		EffectiveDate: asOf.AddDate(-1, 0, 0),
	}}
	engine := newTestEngine(repo)

	result, err := engine.EvaluateAllAt(context.Background(), types.ApplicantInput{
		StateCode:          "NY",
		HouseholdSize:      1,
		MonthlyIncomeCents: 50000,
		Age:                40,
	}, asOf)
	if err != nil {
		t.Fatalf("EvaluateAllAt() error = %v", err)
	}

	if score := result.Matches[0].ConfidenceScore; score >= 50 {
		t.Errorf("score = %d, want < 50 with required answer missing", score)
	}
}

func TestActiveRule_HighestActiveVersionWins(t *testing.T) {
	repo := nyRepo()
	retired := magiRule(1)
	end := asOf.AddDate(0, -1, 0)
	retired.EndDate = &end

	v2 := magiRule(2)
	v3 := magiRule(3)
	future := magiRule(4)
	future.EffectiveDate = asOf.AddDate(0, 1, 0)

	repo.rules["ny-magi-adult"] = []types.EligibilityRule{retired, v3, v2, future}
	engine := newTestEngine(repo)

	rule, err := engine.activeRule(context.Background(), "NY", "ny-magi-adult", asOf)
	if err != nil {
		t.Fatalf("activeRule() error = %v", err)
	}
	if rule.Version != 3 {
		t.Errorf("version = %d, want 3 (highest active)", rule.Version)
	}
}

func TestEvaluateAll_ProgramWithoutActiveRuleIsSkipped(t *testing.T) {
	repo := nyRepo()
	repo.programs = append(repo.programs, types.MedicaidProgram{
		ProgramID: "ny-future-program",
		StateCode: "NY",
		Name:      "Not yet live",
		Pathway:   types.PathwayOther,
	})
	notYet := magiRule(1)
	notYet.ProgramID = "ny-future-program"
	notYet.EffectiveDate = asOf.AddDate(1, 0, 0)
	repo.rules["ny-future-program"] = []types.EligibilityRule{notYet}

	engine := newTestEngine(repo)
	result, err := engine.EvaluateAllAt(context.Background(), types.ApplicantInput{
		StateCode:          "NY",
		HouseholdSize:      1,
		MonthlyIncomeCents: 100000,
		Age:                30,
	}, asOf)
	if err != nil {
		t.Fatalf("EvaluateAllAt() error = %v", err)
	}

	if len(result.Matches) != 1 || result.Matches[0].ProgramID != "ny-magi-adult" {
		t.Errorf("matches = %+v, want only the live program", result.Matches)
	}
}

func TestEvaluateAll_RuleCacheAvoidsRefetch(t *testing.T) {
	repo := nyRepo()
	engine := newTestEngine(repo)
	in := types.ApplicantInput{StateCode: "NY", HouseholdSize: 1, MonthlyIncomeCents: 100000, Age: 30}

	for i := 0; i < 3; i++ {
		if _, err := engine.EvaluateAllAt(context.Background(), in, asOf); err != nil {
			t.Fatalf("EvaluateAllAt() error = %v", err)
		}
	}
	if repo.ruleCalls != 1 {
		t.Errorf("repository rule fetches = %d, want 1", repo.ruleCalls)
	}
}

func TestEvaluateAll_MissingFPLDataIsFatal(t *testing.T) {
	engine := newTestEngine(nyRepo())

	_, err := engine.EvaluateAllAt(context.Background(), types.ApplicantInput{
		StateCode:          "NY",
		HouseholdSize:      9, // no FPL row for household of 9
		MonthlyIncomeCents: 100000,
		Age:                30,
	}, asOf)
	if !errors.Is(err, types.ErrReferenceDataMissing) {
		t.Errorf("error = %v, want ErrReferenceDataMissing", err)
	}
}

func TestEvaluateAll_MalformedStoredLogicIsError(t *testing.T) {
	repo := nyRepo()
	broken := magiRule(1)
	broken.RawLogic = json.RawMessage(`{"op": "XOR", "args": [{"var": "a"}, {"lit": 1}]}`)
	repo.rules["ny-magi-adult"] = []types.EligibilityRule{broken}
	engine := newTestEngine(repo)

	_, err := engine.EvaluateAllAt(context.Background(), types.ApplicantInput{
		StateCode: "NY", HouseholdSize: 1, MonthlyIncomeCents: 100000, Age: 30,
	}, asOf)
	if !errors.Is(err, types.ErrUnknownOperator) {
		t.Errorf("error = %v, want ErrUnknownOperator", err)
	}
}

// Identical input at a fixed instant always yields an identical result.
func TestEvaluateAll_Deterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	engine := newTestEngine(nyRepo())

	properties.Property("evaluation is deterministic", prop.ForAll(
		func(monthlyCents int64, age int) bool {
			in := types.ApplicantInput{
				StateCode:          "NY",
				HouseholdSize:      1,
				MonthlyIncomeCents: monthlyCents,
				Age:                age,
			}
			a, errA := engine.EvaluateAllAt(context.Background(), in, asOf)
			b, errB := engine.EvaluateAllAt(context.Background(), in, asOf)
			if errA != nil || errB != nil {
				return errA != nil && errB != nil
			}
			return reflect.DeepEqual(a, b)
		},
		gen.Int64Range(0, 1000000),
		gen.IntRange(0, 100),
	))

	properties.Property("scores stay within bounds and match status tiers", prop.ForAll(
		func(monthlyCents int64, age int) bool {
			result, err := engine.EvaluateAllAt(context.Background(), types.ApplicantInput{
				StateCode:          "NY",
				HouseholdSize:      1,
				MonthlyIncomeCents: monthlyCents,
				Age:                age,
			}, asOf)
			if err != nil {
				return false
			}
			for _, m := range result.Matches {
				if m.ConfidenceScore < 0 || m.ConfidenceScore > 100 {
					return false
				}
				if types.StatusForScore(m.ConfidenceScore) != m.Status {
					return false
				}
			}
			return true
		},
		gen.Int64Range(0, 1000000),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
