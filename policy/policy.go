/*
policy.go - Employee type policies

PURPOSE:
  An EmployeeTypePolicy is the contract between the organization and an
  employee category about how a working day is measured and paid. It is
  read-only configuration: constructed once per category, never mutated by
  the engine.

KEY CONCEPTS:
  - EmployeeType: Regular or Administrative
  - CalculationMethod: how the day's bounds are derived from punches
  - Tiers: which overtime tiers apply (the extraordinary tier always does)
  - Caps: how many minutes each tier can absorb before spilling over
  - Rates: surcharge applied on top of the base wage per tier

CALCULATION METHODS:
  ENTRY_EXIT:
    - Day runs from the earliest entry-type punch to the latest exit-type punch
    - Used for fixed-schedule staff

  FIRST_LAST_MOVEMENT:
    - Day runs from the first to the last punch of any kind
    - Used for flexible/administrative staff who rarely punch breaks

MINIMUM HOURS:
  A policy with MinimumPerDay > 0 does not count days under that threshold:
  they produce no hours at all. ShouldProcessAttendanceRecord answers this.

SEE ALSO:
  - defaults.go: Regular and Administrative presets
  - registry.go: lookup by employee type
  - overtime/calculator.go: consumes Tiers, Caps and Rates
*/
package policy

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/core"
)

// =============================================================================
// EMPLOYEE TYPE
// =============================================================================

type EmployeeType string

const (
	TypeRegular        EmployeeType = "regular"
	TypeAdministrative EmployeeType = "administrative"
)

func ParseEmployeeType(s string) (EmployeeType, error) {
	switch EmployeeType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeRegular:
		return TypeRegular, nil
	case TypeAdministrative:
		return TypeAdministrative, nil
	}
	return "", core.Invalid("employee_type", s, "must be regular or administrative")
}

func (t EmployeeType) Valid() bool {
	return t == TypeRegular || t == TypeAdministrative
}

// =============================================================================
// CALCULATION METHOD
// =============================================================================

type CalculationMethod string

const (
	MethodEntryExit         CalculationMethod = "ENTRY_EXIT"
	MethodFirstLastMovement CalculationMethod = "FIRST_LAST_MOVEMENT"
)

func ParseCalculationMethod(s string) (CalculationMethod, error) {
	switch CalculationMethod(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodEntryExit:
		return MethodEntryExit, nil
	case MethodFirstLastMovement:
		return MethodFirstLastMovement, nil
	}
	return "", core.Invalid("calculation_method", s, "must be ENTRY_EXIT or FIRST_LAST_MOVEMENT")
}

// =============================================================================
// TIERS, CAPS, RATES
// =============================================================================

// Tiers selects which overtime tiers a policy uses. Hours that no enabled
// tier absorbs fall into the extraordinary tier, which cannot be disabled.
type Tiers struct {
	Surcharge25      bool
	Supplementary50  bool
	Extraordinary100 bool
}

// Caps bounds how many minutes each tier absorbs on a weekday.
type Caps struct {
	Regular       core.Minutes
	Surcharge     core.Minutes
	Supplementary core.Minutes
}

// Rates are surcharges over the base wage: 0.25 means the hour pays 125%.
type Rates struct {
	Surcharge     decimal.Decimal
	Supplementary decimal.Decimal
	Extraordinary decimal.Decimal
}

var (
	maxSurchargeRate     = decimal.NewFromInt(2) // 200%
	maxExtraordinaryRate = decimal.NewFromInt(3) // 300%
)

// DefaultRates are 25%, 50% and 100%.
func DefaultRates() Rates {
	return Rates{
		Surcharge:     decimal.RequireFromString("0.25"),
		Supplementary: decimal.RequireFromString("0.50"),
		Extraordinary: decimal.NewFromInt(1),
	}
}

// Validate enforces non-negative rates below the sanity ceilings.
func (r Rates) Validate() error {
	check := func(field string, v, ceiling decimal.Decimal) error {
		if v.IsNegative() {
			return core.Invalid(field, v.String(), "must not be negative")
		}
		if v.GreaterThan(ceiling) {
			return core.Invalid(field, v.String(), "exceeds "+ceiling.Mul(decimal.NewFromInt(100)).String()+"%")
		}
		return nil
	}
	if err := check("surcharge_rate", r.Surcharge, maxSurchargeRate); err != nil {
		return err
	}
	if err := check("supplementary_rate", r.Supplementary, maxSurchargeRate); err != nil {
		return err
	}
	return check("extraordinary_rate", r.Extraordinary, maxExtraordinaryRate)
}

// =============================================================================
// POLICY
// =============================================================================

// Policy is the EmployeeTypePolicy of one employee category.
type Policy struct {
	Type                    EmployeeType
	Name                    string
	HasFixedSchedule        bool
	CanWorkMultipleBranches bool
	MaxBranches             int
	CalculationMethod       CalculationMethod
	MinimumPerDay           core.Minutes
	Tiers                   Tiers
	Caps                    Caps
	Rates                   Rates
	Version                 int
}

// ShouldProcessAttendanceRecord reports whether a day with the given worked
// minutes counts toward period totals.
func (p Policy) ShouldProcessAttendanceRecord(worked core.Minutes, _ core.Date) bool {
	if p.MinimumPerDay <= 0 {
		return true
	}
	return worked >= p.MinimumPerDay
}

// MinimumHoursPerDay is MinimumPerDay in hours.
func (p Policy) MinimumHoursPerDay() float64 { return p.MinimumPerDay.Hours() }

// RegularCapFor returns how many minutes of a weekday count as regular.
// Fixed-schedule staff are also bounded by their scheduled hours.
func (p Policy) RegularCapFor(scheduled core.Minutes) core.Minutes {
	if p.HasFixedSchedule {
		return p.Caps.Regular.Min(scheduled)
	}
	return p.Caps.Regular
}

// AllowsBranches reports whether n distinct branches fit this policy.
func (p Policy) AllowsBranches(n int) bool {
	if n <= 1 {
		return true
	}
	return p.CanWorkMultipleBranches && n <= p.MaxBranches
}

func (p Policy) Validate() error {
	if !p.Type.Valid() {
		return core.Invalid("employee_type", string(p.Type), "must be regular or administrative")
	}
	if _, err := ParseCalculationMethod(string(p.CalculationMethod)); err != nil {
		return err
	}
	if p.MinimumPerDay < 0 || p.MinimumPerDay > core.MinutesPerDay {
		return core.Invalid("minimum_hours_per_day", p.MinimumPerDay.Hours(), "must be between 0 and 24")
	}
	if p.Caps.Regular < 0 || p.Caps.Regular > core.MinutesPerDay {
		return core.Invalid("regular_cap", p.Caps.Regular.Hours(), "must be between 0 and 24")
	}
	if p.Caps.Surcharge < 0 || p.Caps.Supplementary < 0 {
		return core.Invalid("tier_cap", nil, "must not be negative")
	}
	if !p.Tiers.Extraordinary100 {
		return core.Invalid("tiers", nil, "extraordinary tier cannot be disabled")
	}
	if p.MaxBranches < 1 {
		return core.Invalid("max_branches", p.MaxBranches, "must be at least 1")
	}
	if !p.CanWorkMultipleBranches && p.MaxBranches != 1 {
		return core.Invalid("max_branches", p.MaxBranches, "single-branch policy must allow exactly 1")
	}
	return p.Rates.Validate()
}
