// Package eligibility turns applicant input and versioned per-program rules
// into eligibility verdicts with confidence scores and explanations.
//
// Evaluation is deterministic: identical applicant input against an
// identical active rule set at a fixed instant always produces an identical
// result. Everything that could introduce order dependence (map walks,
// equal-score ties) is sorted.
package eligibility

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/openbenefits/medscreen/internal/cache"
	"github.com/openbenefits/medscreen/internal/expr"
	"github.com/openbenefits/medscreen/internal/fpl"
	"github.com/openbenefits/medscreen/internal/types"
)

// Repository supplies programs and rule versions from the backing store.
type Repository interface {
	ProgramsByState(ctx context.Context, stateCode string) ([]types.MedicaidProgram, error)
	// RulesForProgram returns every stored version for the pair; the engine
	// selects the active one.
	RulesForProgram(ctx context.Context, stateCode, programID string) ([]types.EligibilityRule, error)
}

// Engine is the rule evaluation core. Stateless aside from the injected
// caches; safe for concurrent use.
type Engine struct {
	repo      Repository
	fpl       *fpl.Calculator
	ruleCache *cache.RuleCache
	now       func() time.Time
}

// NewEngine wires the engine. now defaults to time.Now when nil.
func NewEngine(repo Repository, calc *fpl.Calculator, ruleCache *cache.RuleCache, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{repo: repo, fpl: calc, ruleCache: ruleCache, now: now}
}

// EvaluateAll screens the applicant against every program of their state
// with an active rule, at the current instant.
func (e *Engine) EvaluateAll(ctx context.Context, in types.ApplicantInput) (types.EligibilityResult, error) {
	return e.EvaluateAllAt(ctx, in, e.now().UTC())
}

// EvaluateAllAt is EvaluateAll pinned to an explicit instant. Programs with
// no active rule at asOf are skipped, not failed; missing FPL reference
// data is fatal to the whole request.
func (e *Engine) EvaluateAllAt(ctx context.Context, in types.ApplicantInput, asOf time.Time) (types.EligibilityResult, error) {
	programs, err := e.repo.ProgramsByState(ctx, in.StateCode)
	if err != nil {
		return types.EligibilityResult{}, fmt.Errorf("loading programs for %s: %w", in.StateCode, err)
	}

	// Stable program order regardless of repository ordering.
	sort.Slice(programs, func(i, j int) bool { return programs[i].ProgramID < programs[j].ProgramID })

	base := buildSnapshot(in)
	matches := make([]types.ProgramMatch, 0, len(programs))

	for _, prog := range programs {
		rule, err := e.activeRule(ctx, in.StateCode, prog.ProgramID, asOf)
		if err != nil {
			if errors.Is(err, types.ErrNoActiveRule) {
				continue
			}
			return types.EligibilityResult{}, err
		}

		match, err := e.evaluateProgram(ctx, in, base, prog, rule, asOf)
		if err != nil {
			// Missing reference data poisons every threshold computation.
			return types.EligibilityResult{}, err
		}
		matches = append(matches, match)
	}

	// Descending confidence, program id breaks ties deterministically.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].ConfidenceScore != matches[j].ConfidenceScore {
			return matches[i].ConfidenceScore > matches[j].ConfidenceScore
		}
		return matches[i].ProgramID < matches[j].ProgramID
	})

	result := types.EligibilityResult{
		Matches:     matches,
		EvaluatedAt: asOf,
	}

	if len(matches) > 0 && matches[0].ConfidenceScore >= types.PossiblyFloor {
		top := matches[0]
		result.OverallStatus = top.Status
		result.ConfidenceScore = top.ConfidenceScore
		result.ConfidenceLabel = top.ConfidenceLabel
		result.Explanation = fmt.Sprintf("Best match: %s. %s", top.ProgramName, top.Explanation)
	} else {
		result.OverallStatus = types.StatusUnlikelyEligible
		result.ConfidenceScore = 0
		if len(matches) > 0 {
			result.ConfidenceScore = matches[0].ConfidenceScore
		}
		result.ConfidenceLabel = types.ConfidenceLabel(result.ConfidenceScore)
		result.Explanation = "No program matched the provided answers."
	}
	return result, nil
}

// Evaluate screens the applicant against a single rule. Exposed for
// catalog tooling and tests; EvaluateAll is the request path.
func (e *Engine) Evaluate(ctx context.Context, in types.ApplicantInput, prog types.MedicaidProgram, rule types.EligibilityRule, asOf time.Time) (types.ProgramMatch, error) {
	return e.evaluateProgram(ctx, in, buildSnapshot(in), prog, rule, asOf)
}

// activeRule selects the single active version for (state, program) at asOf:
// effectiveDate <= asOf <= endDate, highest version wins among candidates.
// Version lists come through the rolling-TTL rule cache.
func (e *Engine) activeRule(ctx context.Context, stateCode, programID string, asOf time.Time) (types.EligibilityRule, error) {
	key := cache.RuleKey{StateCode: stateCode, ProgramID: programID}
	rules, ok := e.ruleCache.Get(key)
	if !ok {
		fetched, err := e.repo.RulesForProgram(ctx, stateCode, programID)
		if err != nil {
			return types.EligibilityRule{}, fmt.Errorf("loading rules for %s/%s: %w", stateCode, programID, err)
		}
		e.ruleCache.Set(key, fetched)
		rules = fetched
	}

	var best *types.EligibilityRule
	for i := range rules {
		r := &rules[i]
		if !r.ActiveAt(asOf) {
			continue
		}
		if best == nil || r.Version > best.Version {
			best = r
		}
	}
	if best == nil {
		return types.EligibilityRule{}, fmt.Errorf("%w: %s/%s at %s", types.ErrNoActiveRule, stateCode, programID, asOf.Format(time.RFC3339))
	}
	return *best, nil
}

func (e *Engine) evaluateProgram(ctx context.Context, in types.ApplicantInput, base types.AnswerSnapshot, prog types.MedicaidProgram, rule types.EligibilityRule, asOf time.Time) (types.ProgramMatch, error) {
	logic, err := expr.DecodeNode(rule.RawLogic)
	if err != nil {
		return types.ProgramMatch{}, fmt.Errorf("rule %s logic: %w", rule.RuleID, err)
	}

	percent := rule.FPLPercent
	if percent <= 0 {
		percent = fpl.DefaultPercent(prog.Pathway)
	}

	baseCents, err := e.fpl.BaseCents(ctx, asOf.Year(), in.HouseholdSize, in.StateCode)
	if err != nil {
		return types.ProgramMatch{}, err
	}
	thresholdCents, err := e.fpl.ThresholdCents(ctx, asOf.Year(), in.HouseholdSize, in.StateCode, percent)
	if err != nil {
		return types.ProgramMatch{}, err
	}
	annualIncome := in.MonthlyIncomeCents * 12

	answers := withThreshold(base, annualIncome, thresholdCents, baseCents)
	gate := expr.EvaluateBool(logic, answers)

	// Completeness: keys the rule references but the snapshot lacks.
	known := make(map[string]struct{}, len(answers))
	for k := range answers {
		known[k] = struct{}{}
	}
	missing := expr.ResolvesAgainst(logic, known)

	var requiredMissing, unresolved []string
	for _, key := range missing {
		if _, verification := verificationKeys[key]; verification {
			unresolved = append(unresolved, key)
		} else {
			requiredMissing = append(requiredMissing, key)
		}
	}

	refs := expr.ReferencedKeys(logic)
	incomeGated := false
	for _, k := range []string{KeyIncomeWithinFPL, KeyFPLRatioPercent, KeyAnnualIncome, KeyMonthlyIncome} {
		if _, ok := refs[k]; ok {
			incomeGated = true
			break
		}
	}

	margin := 0.0
	if thresholdCents > 0 {
		margin = math.Abs(float64(annualIncome-thresholdCents)) / float64(thresholdCents)
	}

	score := confidenceScore(scoreInput{
		gatePassed:      gate,
		requiredMissing: len(requiredMissing),
		unresolved:      len(unresolved),
		incomeGated:     incomeGated,
		boundaryMargin:  margin,
	})

	matching, disqualifying := factorBreakdown(logic, answers)

	match := types.ProgramMatch{
		ProgramID:            prog.ProgramID,
		ProgramName:          prog.Name,
		Pathway:              prog.Pathway,
		Status:               types.StatusForScore(score),
		ConfidenceScore:      score,
		ConfidenceLabel:      types.ConfidenceLabel(score),
		Explanation:          explain(gate, percent, annualIncome, thresholdCents, requiredMissing, unresolved),
		MatchingFactors:      matching,
		DisqualifyingFactors: disqualifying,
		UnresolvedFactors:    unresolved,
	}
	return match, nil
}

// factorBreakdown evaluates each top-level AND conjunct independently so the
// explanation can name what matched and what disqualified. OR subtrees stay
// intact as single factors.
func factorBreakdown(logic *expr.Node, answers types.AnswerSnapshot) (matching, disqualifying []string) {
	for _, conjunct := range conjuncts(logic) {
		text := expr.Format(conjunct)
		if expr.EvaluateBool(conjunct, answers) {
			matching = append(matching, text)
		} else {
			disqualifying = append(disqualifying, text)
		}
	}
	return matching, disqualifying
}

func conjuncts(n *expr.Node) []*expr.Node {
	if n == nil {
		return nil
	}
	if n.Kind == expr.KindOperator && n.Op == expr.OpAnd {
		var out []*expr.Node
		for _, c := range n.Children {
			out = append(out, conjuncts(c)...)
		}
		return out
	}
	return []*expr.Node{n}
}

func explain(gate bool, percent int, annualIncome, threshold int64, requiredMissing, unresolved []string) string {
	var s string
	if threshold > 0 {
		ratio := float64(annualIncome) / float64(threshold) * 100
		s = fmt.Sprintf("Household income is %.0f%% of the %d%% FPL threshold. ", ratio, percent)
	}
	if gate {
		s += "All eligibility conditions were met."
	} else {
		s += "One or more eligibility conditions were not met."
	}
	if len(requiredMissing) > 0 {
		s += fmt.Sprintf(" Missing required answers: %v.", requiredMissing)
	}
	if len(unresolved) > 0 {
		s += fmt.Sprintf(" Pending verification: %v.", unresolved)
	}
	return s
}
