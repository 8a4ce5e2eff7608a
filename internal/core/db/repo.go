package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openbenefits/medscreen/internal/types"
)

// Store exposes typed reads and seed writes over the named query layer.
// It satisfies the repository interfaces of the eligibility engine and the
// poverty-level calculator.
type Store struct {
	queries *Queries
}

// NewStore wraps a loaded query set.
func NewStore(queries *Queries) *Store {
	return &Store{queries: queries}
}

// ProgramsByState returns the screenable programs for a state, ordered by id.
func (s *Store) ProgramsByState(ctx context.Context, stateCode string) ([]types.MedicaidProgram, error) {
	var programs []types.MedicaidProgram
	if err := s.queries.Select(ctx, "get-programs-by-state", &programs, stateCode); err != nil {
		return nil, fmt.Errorf("loading programs for %s: %w", stateCode, err)
	}
	return programs, nil
}

// ruleRow mirrors one eligibility_rules row. Dates are RFC3339 TEXT in both
// drivers so the same scan path works for SQLite and PostgreSQL.
type ruleRow struct {
	RuleID        string         `db:"rule_id"`
	ProgramID     string         `db:"program_id"`
	StateCode     string         `db:"state_code"`
	Version       int            `db:"version"`
	Logic         string         `db:"logic"`
	FPLPercent    int            `db:"fpl_percent"`
	EffectiveDate string         `db:"effective_date"`
	EndDate       sql.NullString `db:"end_date"`
}

// RulesForProgram returns every stored rule version for a (state, program)
// pair, newest version first. Active-window filtering is the engine's job.
func (s *Store) RulesForProgram(ctx context.Context, stateCode, programID string) ([]types.EligibilityRule, error) {
	var rows []ruleRow
	if err := s.queries.Select(ctx, "get-rules-for-program", &rows, programID, stateCode); err != nil {
		return nil, fmt.Errorf("loading rules for %s/%s: %w", stateCode, programID, err)
	}

	rules := make([]types.EligibilityRule, 0, len(rows))
	for _, r := range rows {
		effective, err := time.Parse(time.RFC3339, r.EffectiveDate)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid effective_date %q: %w", r.RuleID, r.EffectiveDate, err)
		}

		var end *time.Time
		if r.EndDate.Valid {
			parsed, err := time.Parse(time.RFC3339, r.EndDate.String)
			if err != nil {
				return nil, fmt.Errorf("rule %s: invalid end_date %q: %w", r.RuleID, r.EndDate.String, err)
			}
			end = &parsed
		}

		rules = append(rules, types.EligibilityRule{
			RuleID:        types.RuleID(r.RuleID),
			ProgramID:     r.ProgramID,
			StateCode:     r.StateCode,
			Version:       r.Version,
			RawLogic:      json.RawMessage(r.Logic),
			FPLPercent:    r.FPLPercent,
			EffectiveDate: effective,
			EndDate:       end,
		})
	}
	return rules, nil
}

// FPLTable returns all poverty-level rows for a year, national baselines and
// state overrides together.
func (s *Store) FPLTable(ctx context.Context, year int) ([]types.FederalPovertyLevel, error) {
	var rows []types.FederalPovertyLevel
	if err := s.queries.Select(ctx, "get-fpl-table", &rows, year); err != nil {
		return nil, fmt.Errorf("loading poverty levels for %d: %w", year, err)
	}
	return rows, nil
}

// questionRow mirrors one questions row; options is a JSON string array.
type questionRow struct {
	QuestionID       string         `db:"question_id"`
	StateCode        string         `db:"state_code"`
	DisplayOrder     int            `db:"display_order"`
	Text             string         `db:"text"`
	FieldType        string         `db:"field_type"`
	Required         bool           `db:"required"`
	VisibilityRuleID sql.NullString `db:"visibility_rule_id"`
	Options          sql.NullString `db:"options"`
}

// QuestionsByState returns the question catalog for a state in display order.
func (s *Store) QuestionsByState(ctx context.Context, stateCode string) ([]types.Question, error) {
	var rows []questionRow
	if err := s.queries.Select(ctx, "get-questions-by-state", &rows, stateCode); err != nil {
		return nil, fmt.Errorf("loading questions for %s: %w", stateCode, err)
	}

	questions := make([]types.Question, 0, len(rows))
	for _, r := range rows {
		q := types.Question{
			QuestionID:       r.QuestionID,
			DisplayOrder:     r.DisplayOrder,
			Text:             r.Text,
			FieldType:        types.FieldType(r.FieldType),
			Required:         r.Required,
			VisibilityRuleID: r.VisibilityRuleID.String,
		}
		if r.Options.Valid && r.Options.String != "" {
			if err := json.Unmarshal([]byte(r.Options.String), &q.Options); err != nil {
				return nil, fmt.Errorf("question %s: invalid options: %w", r.QuestionID, err)
			}
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// ConditionalRulesByState returns the visibility rules for a state.
func (s *Store) ConditionalRulesByState(ctx context.Context, stateCode string) ([]types.ConditionalRule, error) {
	var rules []types.ConditionalRule
	if err := s.queries.Select(ctx, "get-conditional-rules-by-state", &rules, stateCode); err != nil {
		return nil, fmt.Errorf("loading conditional rules for %s: %w", stateCode, err)
	}
	return rules, nil
}

// stepRow mirrors one steps row; question_ids and navigation are JSON.
type stepRow struct {
	StepID         string `db:"step_id"`
	StateCode      string `db:"state_code"`
	Sequence       int    `db:"sequence"`
	Title          string `db:"title"`
	VisibilityRule string `db:"visibility_rule"`
	QuestionIDs    string `db:"question_ids"`
	Navigation     string `db:"navigation"`
}

// StepsByState returns the wizard steps for a state ordered by sequence.
func (s *Store) StepsByState(ctx context.Context, stateCode string) ([]types.StepDefinition, error) {
	var rows []stepRow
	if err := s.queries.Select(ctx, "get-steps-by-state", &rows, stateCode); err != nil {
		return nil, fmt.Errorf("loading steps for %s: %w", stateCode, err)
	}

	steps := make([]types.StepDefinition, 0, len(rows))
	for _, r := range rows {
		step := types.StepDefinition{
			StepID:         r.StepID,
			Sequence:       r.Sequence,
			Title:          r.Title,
			VisibilityRule: r.VisibilityRule,
		}
		if err := json.Unmarshal([]byte(r.QuestionIDs), &step.QuestionIDs); err != nil {
			return nil, fmt.Errorf("step %s: invalid question_ids: %w", r.StepID, err)
		}
		if err := json.Unmarshal([]byte(r.Navigation), &step.NavigationRules); err != nil {
			return nil, fmt.Errorf("step %s: invalid navigation: %w", r.StepID, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// InsertProgram seeds one program row.
func (s *Store) InsertProgram(ctx context.Context, p types.MedicaidProgram) error {
	_, err := s.queries.Exec(ctx, "insert-program", p.ProgramID, p.StateCode, p.Name, string(p.Pathway))
	return err
}

// InsertRule seeds one eligibility rule version.
func (s *Store) InsertRule(ctx context.Context, r types.EligibilityRule) error {
	var end any
	if r.EndDate != nil {
		end = r.EndDate.UTC().Format(time.RFC3339)
	}
	_, err := s.queries.Exec(ctx, "insert-rule",
		string(r.RuleID), r.ProgramID, r.StateCode, r.Version,
		string(r.RawLogic), r.FPLPercent,
		r.EffectiveDate.UTC().Format(time.RFC3339), end,
	)
	return err
}

// InsertFPL seeds one poverty-level row.
func (s *Store) InsertFPL(ctx context.Context, row types.FederalPovertyLevel) error {
	var state any
	if row.StateCode != nil {
		state = *row.StateCode
	}
	_, err := s.queries.Exec(ctx, "insert-fpl", row.Year, row.HouseholdSize, state, row.AnnualCents)
	return err
}

// ReplaceCatalog swaps a state's question/rule/step definitions for the
// given set. Intended for seed and administrative reload flows, not for
// request-path writes.
func (s *Store) ReplaceCatalog(ctx context.Context, stateCode string, questions []types.Question, rules []types.ConditionalRule, steps []types.StepDefinition) error {
	for _, name := range []string{"delete-questions-for-state", "delete-conditional-rules-for-state", "delete-steps-for-state"} {
		if _, err := s.queries.Exec(ctx, name, stateCode); err != nil {
			return fmt.Errorf("clearing catalog for %s: %w", stateCode, err)
		}
	}

	for _, q := range questions {
		var visibility any
		if q.VisibilityRuleID != "" {
			visibility = q.VisibilityRuleID
		}
		var options any
		if len(q.Options) > 0 {
			encoded, err := json.Marshal(q.Options)
			if err != nil {
				return fmt.Errorf("question %s: encoding options: %w", q.QuestionID, err)
			}
			options = string(encoded)
		}
		_, err := s.queries.Exec(ctx, "insert-question",
			q.QuestionID, stateCode, q.DisplayOrder, q.Text, string(q.FieldType),
			q.Required, visibility, options,
		)
		if err != nil {
			return fmt.Errorf("inserting question %s: %w", q.QuestionID, err)
		}
	}

	for _, r := range rules {
		if _, err := s.queries.Exec(ctx, "insert-conditional-rule", r.RuleID, stateCode, r.Expression, r.Description); err != nil {
			return fmt.Errorf("inserting conditional rule %s: %w", r.RuleID, err)
		}
	}

	for _, step := range steps {
		questionIDs, err := json.Marshal(step.QuestionIDs)
		if err != nil {
			return fmt.Errorf("step %s: encoding question ids: %w", step.StepID, err)
		}
		navigation, err := json.Marshal(step.NavigationRules)
		if err != nil {
			return fmt.Errorf("step %s: encoding navigation: %w", step.StepID, err)
		}
		_, err = s.queries.Exec(ctx, "insert-step",
			step.StepID, stateCode, step.Sequence, step.Title, step.VisibilityRule,
			string(questionIDs), string(navigation),
		)
		if err != nil {
			return fmt.Errorf("inserting step %s: %w", step.StepID, err)
		}
	}

	return nil
}
