// Package fpl computes Federal Poverty Level income thresholds.
//
// The calculator is a pure function of its inputs plus the year-keyed cache
// in front of the repository: no hidden state, safe for concurrent use.
package fpl

import (
	"context"
	"fmt"

	"github.com/openbenefits/medscreen/internal/cache"
	"github.com/openbenefits/medscreen/internal/types"
)

// Repository supplies FPL rows from the backing store on cache misses.
type Repository interface {
	// FPLTable returns every row for the year: national baselines and
	// state-specific overrides.
	FPLTable(ctx context.Context, year int) ([]types.FederalPovertyLevel, error)
}

// DefaultPercent returns the statutory pathway percentage applied to the
// base FPL amount when a rule does not carry its own.
func DefaultPercent(p types.Pathway) int {
	switch p {
	case types.PathwayMAGI:
		return 138
	case types.PathwayPregnancy:
		return 213
	default:
		return 100
	}
}

// Calculator resolves (year, household size, state, percentage) to an
// annual threshold in cents.
type Calculator struct {
	repo  Repository
	table *cache.FPLCache
}

// NewCalculator wires the calculator to its repository and cache.
func NewCalculator(repo Repository, table *cache.FPLCache) *Calculator {
	return &Calculator{repo: repo, table: table}
}

// ThresholdCents returns the comparison threshold: the base annual amount
// for (year, householdSize, stateCode) scaled by percent.
//
// Lookup order: exact state row, then national baseline. Absence of both is
// types.ErrReferenceDataMissing, never a zero default - a silent zero would
// corrupt eligibility math downstream.
func (c *Calculator) ThresholdCents(ctx context.Context, year, householdSize int, stateCode string, percent int) (int64, error) {
	base, err := c.BaseCents(ctx, year, householdSize, stateCode)
	if err != nil {
		return 0, err
	}
	return base * int64(percent) / 100, nil
}

// BaseCents returns the unscaled annual FPL amount for the household.
func (c *Calculator) BaseCents(ctx context.Context, year, householdSize int, stateCode string) (int64, error) {
	rows, ok := c.table.Get(year)
	if !ok {
		fetched, err := c.repo.FPLTable(ctx, year)
		if err != nil {
			return 0, fmt.Errorf("fetching FPL table for %d: %w", year, err)
		}
		c.table.Set(year, fetched)
		rows = fetched
	}

	var baseline *types.FederalPovertyLevel
	for i := range rows {
		row := &rows[i]
		if row.Year != year || row.HouseholdSize != householdSize {
			continue
		}
		if row.StateCode != nil {
			if *row.StateCode == stateCode {
				return row.AnnualCents, nil
			}
			continue
		}
		baseline = row
	}

	if baseline != nil {
		return baseline.AnnualCents, nil
	}
	return 0, fmt.Errorf("%w: no FPL row for year=%d household_size=%d", types.ErrReferenceDataMissing, year, householdSize)
}
