package policy

import (
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/core"
)

// Profile is what the engine needs to know about an employee.
type Profile struct {
	EmployeeID         core.EmployeeID
	Name               string
	Type               EmployeeType
	ScheduledMinutes   core.Minutes // 0 means the default 8h
	AssignedBranch     string
	AdditionalBranches []string
	HourlyWage         *decimal.Decimal
}

// Scheduled returns the daily schedule, defaulting to 8h.
func (p Profile) Scheduled() core.Minutes {
	if p.ScheduledMinutes == 0 {
		return DefaultScheduled
	}
	return p.ScheduledMinutes
}

// Branches returns the assigned branch followed by distinct additional ones.
func (p Profile) Branches() []string {
	seen := map[string]bool{}
	var out []string
	for _, b := range append([]string{p.AssignedBranch}, p.AdditionalBranches...) {
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// Validate checks the profile on its own and against its policy.
func (p Profile) Validate(pol Policy) error {
	if p.EmployeeID == "" {
		return core.Invalid("employee_id", nil, "is required")
	}
	if !p.Type.Valid() {
		return core.Invalid("employee_type", string(p.Type), "must be regular or administrative")
	}
	if p.ScheduledMinutes < 0 || p.ScheduledMinutes > MaxScheduled {
		return core.Invalid("scheduled_hours", p.ScheduledMinutes.Hours(), "must be between 0 and 12")
	}
	if p.HourlyWage != nil && p.HourlyWage.IsNegative() {
		return core.Invalid("hourly_wage", p.HourlyWage.String(), "must not be negative")
	}
	if n := len(p.Branches()); !pol.AllowsBranches(n) {
		return core.Invalid("branches", n, "not allowed by the "+pol.Name+" policy")
	}
	return nil
}
