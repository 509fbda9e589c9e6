/*
Package factory provides JSON to Go policy conversion.

PURPOSE:
  Converts JSON policy definitions into policy.Policy values. This lets HR
  retune an employee category (caps, tiers, rates, minimum hours) through a
  config file instead of a release.

OVERRIDES, NOT REPLACEMENTS:
  Every definition starts from the built-in policy of its employee type.
  Fields left out of the JSON keep the built-in value, so a file can be as
  small as one changed cap.

JSON SCHEMA:
  {
    "employee_type": "regular",
    "name": "Regular (plant)",
    "has_fixed_schedule": true,
    "can_work_multiple_branches": false,
    "max_branches": 1,
    "calculation_method": "ENTRY_EXIT",
    "minimum_hours_per_day": 0,
    "tiers": {"surcharge_25": true, "supplementary_50": true, "extraordinary_100": true},
    "caps": {"regular_hours": 8, "surcharge_hours": 2, "supplementary_hours": 2},
    "rates": {"surcharge": "0.25", "supplementary": "0.50", "extraordinary": "1.00"},
    "version": 2
  }

  A policy file holds either one definition, an array of them, or
  {"policies": [...]}.

USAGE:
  f := factory.NewPolicyFactory()
  p, err := f.ParsePolicy(jsonString)

  reg, err := factory.LoadRegistry("policies.json")
  rc := attendance.NewReconciler(reg, cal, loc, logger)

SEE ALSO:
  - policy/policy.go: Policy type definition
  - policy/defaults.go: the built-in values overrides start from
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/policy"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a policy. Nil fields keep the
// built-in value of the employee type.
type PolicyJSON struct {
	EmployeeType            string     `json:"employee_type"`
	Name                    string     `json:"name,omitempty"`
	HasFixedSchedule        *bool      `json:"has_fixed_schedule,omitempty"`
	CanWorkMultipleBranches *bool      `json:"can_work_multiple_branches,omitempty"`
	MaxBranches             *int       `json:"max_branches,omitempty"`
	CalculationMethod       string     `json:"calculation_method,omitempty"`
	MinimumHoursPerDay      *float64   `json:"minimum_hours_per_day,omitempty"`
	Tiers                   *TiersJSON `json:"tiers,omitempty"`
	Caps                    *CapsJSON  `json:"caps,omitempty"`
	Rates                   *RatesJSON `json:"rates,omitempty"`
	Version                 int        `json:"version,omitempty"`
}

type TiersJSON struct {
	Surcharge25      bool `json:"surcharge_25"`
	Supplementary50  bool `json:"supplementary_50"`
	Extraordinary100 bool `json:"extraordinary_100"`
}

// CapsJSON holds tier capacities in hours.
type CapsJSON struct {
	RegularHours       *float64 `json:"regular_hours,omitempty"`
	SurchargeHours     *float64 `json:"surcharge_hours,omitempty"`
	SupplementaryHours *float64 `json:"supplementary_hours,omitempty"`
}

// RatesJSON holds surcharges as fractions of the base wage ("0.25" = 25%).
type RatesJSON struct {
	Surcharge     *decimal.Decimal `json:"surcharge,omitempty"`
	Supplementary *decimal.Decimal `json:"supplementary,omitempty"`
	Extraordinary *decimal.Decimal `json:"extraordinary,omitempty"`
}

type fileJSON struct {
	Policies []PolicyJSON `json:"policies"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct{}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a single JSON definition.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (policy.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return policy.Policy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// ParsePolicies parses a policy file: one definition, an array, or an
// object with a "policies" array.
func (f *PolicyFactory) ParsePolicies(data []byte) ([]policy.Policy, error) {
	var defs []PolicyJSON
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return nil, core.Invalid("policies", nil, "empty policy file")
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &defs); err != nil {
			return nil, fmt.Errorf("failed to parse policy JSON: %w", err)
		}
	default:
		var file fileJSON
		if err := json.Unmarshal(trimmed, &file); err != nil {
			return nil, fmt.Errorf("failed to parse policy JSON: %w", err)
		}
		defs = file.Policies
		if defs == nil {
			var one PolicyJSON
			if err := json.Unmarshal(trimmed, &one); err != nil {
				return nil, fmt.Errorf("failed to parse policy JSON: %w", err)
			}
			defs = []PolicyJSON{one}
		}
	}

	out := make([]policy.Policy, 0, len(defs))
	for i, pj := range defs {
		p, err := f.FromJSON(pj)
		if err != nil {
			return nil, fmt.Errorf("policy %d (%s): %w", i, pj.EmployeeType, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// FromJSON overlays pj on the built-in policy of its employee type and
// validates the result.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (policy.Policy, error) {
	t, err := policy.ParseEmployeeType(pj.EmployeeType)
	if err != nil {
		return policy.Policy{}, err
	}
	p, err := policy.Default(t)
	if err != nil {
		return policy.Policy{}, err
	}

	if pj.Name != "" {
		p.Name = pj.Name
	}
	if pj.HasFixedSchedule != nil {
		p.HasFixedSchedule = *pj.HasFixedSchedule
	}
	if pj.CanWorkMultipleBranches != nil {
		p.CanWorkMultipleBranches = *pj.CanWorkMultipleBranches
		if !p.CanWorkMultipleBranches && pj.MaxBranches == nil {
			p.MaxBranches = 1
		}
	}
	if pj.MaxBranches != nil {
		p.MaxBranches = *pj.MaxBranches
	}
	if pj.CalculationMethod != "" {
		m, err := policy.ParseCalculationMethod(pj.CalculationMethod)
		if err != nil {
			return policy.Policy{}, err
		}
		p.CalculationMethod = m
	}
	if pj.MinimumHoursPerDay != nil {
		p.MinimumPerDay = core.MinutesFromHours(*pj.MinimumHoursPerDay)
	}
	if pj.Tiers != nil {
		p.Tiers = policy.Tiers{
			Surcharge25:      pj.Tiers.Surcharge25,
			Supplementary50:  pj.Tiers.Supplementary50,
			Extraordinary100: pj.Tiers.Extraordinary100,
		}
	}
	if pj.Caps != nil {
		p.Caps = parseCaps(*pj.Caps, p.Caps)
	}
	if pj.Rates != nil {
		p.Rates = parseRates(*pj.Rates, p.Rates)
	}
	if pj.Version > 0 {
		p.Version = pj.Version
	}

	if err := p.Validate(); err != nil {
		return policy.Policy{}, err
	}
	return p, nil
}

// ToJSON converts a Policy to a fully populated PolicyJSON.
func (f *PolicyFactory) ToJSON(p policy.Policy) PolicyJSON {
	fixed, multi, branches := p.HasFixedSchedule, p.CanWorkMultipleBranches, p.MaxBranches
	minimum := p.MinimumPerDay.Hours()
	regular, surcharge, supplementary := p.Caps.Regular.Hours(), p.Caps.Surcharge.Hours(), p.Caps.Supplementary.Hours()
	rs, rp, re := p.Rates.Surcharge, p.Rates.Supplementary, p.Rates.Extraordinary

	return PolicyJSON{
		EmployeeType:            string(p.Type),
		Name:                    p.Name,
		HasFixedSchedule:        &fixed,
		CanWorkMultipleBranches: &multi,
		MaxBranches:             &branches,
		CalculationMethod:       string(p.CalculationMethod),
		MinimumHoursPerDay:      &minimum,
		Tiers: &TiersJSON{
			Surcharge25:      p.Tiers.Surcharge25,
			Supplementary50:  p.Tiers.Supplementary50,
			Extraordinary100: p.Tiers.Extraordinary100,
		},
		Caps: &CapsJSON{
			RegularHours:       &regular,
			SurchargeHours:     &surcharge,
			SupplementaryHours: &supplementary,
		},
		Rates:   &RatesJSON{Surcharge: &rs, Supplementary: &rp, Extraordinary: &re},
		Version: p.Version,
	}
}

// =============================================================================
// REGISTRY LOADING
// =============================================================================

// LoadRegistry returns the default registry with the definitions of the
// file at path registered over it. An empty path yields the defaults.
func LoadRegistry(path string) (*policy.Registry, error) {
	reg := policy.DefaultRegistry()
	if path == "" {
		return reg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	policies, err := NewPolicyFactory().ParsePolicies(data)
	if err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	for _, p := range policies {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseCaps(cj CapsJSON, base policy.Caps) policy.Caps {
	if cj.RegularHours != nil {
		base.Regular = core.MinutesFromHours(*cj.RegularHours)
	}
	if cj.SurchargeHours != nil {
		base.Surcharge = core.MinutesFromHours(*cj.SurchargeHours)
	}
	if cj.SupplementaryHours != nil {
		base.Supplementary = core.MinutesFromHours(*cj.SupplementaryHours)
	}
	return base
}

func parseRates(rj RatesJSON, base policy.Rates) policy.Rates {
	if rj.Surcharge != nil {
		base.Surcharge = *rj.Surcharge
	}
	if rj.Supplementary != nil {
		base.Supplementary = *rj.Supplementary
	}
	if rj.Extraordinary != nil {
		base.Extraordinary = *rj.Extraordinary
	}
	return base
}
