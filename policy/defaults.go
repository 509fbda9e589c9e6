package policy

import "github.com/warp/attendance-engine/core"

// =============================================================================
// DEFAULT POLICIES
// =============================================================================

const (
	DefaultScheduled     = 8 * core.MinutesPerHour
	MaxScheduled         = 12 * core.MinutesPerHour
	defaultSurchargeCap  = 2 * core.MinutesPerHour
	defaultSupplementCap = 2 * core.MinutesPerHour
)

// Regular is the policy for fixed-schedule staff: up to 8h (or the schedule,
// if shorter) regular, then 2h at 25%, 2h at 50%, the rest at 100%.
func Regular() Policy {
	return Policy{
		Type:                    TypeRegular,
		Name:                    "Regular",
		HasFixedSchedule:        true,
		CanWorkMultipleBranches: false,
		MaxBranches:             1,
		CalculationMethod:       MethodEntryExit,
		MinimumPerDay:           0,
		Tiers:                   Tiers{Surcharge25: true, Supplementary50: true, Extraordinary100: true},
		Caps: Caps{
			Regular:       DefaultScheduled,
			Surcharge:     defaultSurchargeCap,
			Supplementary: defaultSupplementCap,
		},
		Rates:   DefaultRates(),
		Version: 1,
	}
}

// Administrative is the policy for flexible staff: days under 4h do not
// count, up to 8h regular, everything beyond at 100%.
func Administrative() Policy {
	return Policy{
		Type:                    TypeAdministrative,
		Name:                    "Administrative",
		HasFixedSchedule:        false,
		CanWorkMultipleBranches: true,
		MaxBranches:             5,
		CalculationMethod:       MethodFirstLastMovement,
		MinimumPerDay:           4 * core.MinutesPerHour,
		Tiers:                   Tiers{Extraordinary100: true},
		Caps:                    Caps{Regular: 8 * core.MinutesPerHour},
		Rates:                   DefaultRates(),
		Version:                 1,
	}
}

// Default returns the built-in policy of an employee type.
func Default(t EmployeeType) (Policy, error) {
	switch t {
	case TypeRegular:
		return Regular(), nil
	case TypeAdministrative:
		return Administrative(), nil
	}
	return Policy{}, core.Invalid("employee_type", string(t), "must be regular or administrative")
}
