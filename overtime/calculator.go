/*
calculator.go - Tiered hour breakdown of a working day

PURPOSE:
  Splits the minutes worked on one day into regular time and the overtime
  tiers of the employee's policy, reports night minutes alongside, and
  prices every tier when an hourly wage is known.

TIERS (weekday, all tiers enabled):
  0h ──── regular cap ──── +2h ──── +2h ──── ...
  │  regular  │ surcharge 25% │ suppl. 50% │ extraordinary 100%

  The regular cap is 8h, or the scheduled hours when shorter on a fixed
  schedule. A disabled tier is skipped: its minutes flow to the next one.
  Weekends and holidays go entirely to the extraordinary tier.

MINIMUM HOURS:
  A day under the context's minimum does not count. Every field is zero
  and Counted is false, so the day adds nothing to period totals.

INVARIANT:
  Counted => Regular + Surcharge25 + Supplementary50 + Extraordinary100 == Worked

  Arithmetic is done in whole minutes; hours appear only in the Hours view.

SEE ALSO:
  - night.go: 22:00-06:00 overlap
  - combine.go: period totals
*/
package overtime

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/policy"
)

// Input to Compute.
type Input struct {
	Total     core.Minutes
	Day       DayContext
	Policy    policy.Policy
	Wage      *decimal.Decimal // optional hourly wage
	Intervals []Interval       // worked stretches, for night minutes
	Location  *time.Location   // wall clock for night windows
}

// Breakdown is the tiered result of one day, or the sum of several.
type Breakdown struct {
	Worked           core.Minutes
	Regular          core.Minutes
	Surcharge25      core.Minutes
	Supplementary50  core.Minutes
	Extraordinary100 core.Minutes
	Night            core.Minutes
	Counted          bool
	DaysCounted      int
	Pay              *Pay
}

// Pay mirrors the tiers in money.
type Pay struct {
	Regular          decimal.Decimal
	Surcharge25      decimal.Decimal
	Supplementary50  decimal.Decimal
	Extraordinary100 decimal.Decimal
	Total            decimal.Decimal
}

// TotalOvertime is every minute past the regular tier.
func (b Breakdown) TotalOvertime() core.Minutes {
	return b.Surcharge25 + b.Supplementary50 + b.Extraordinary100
}

// Total is regular plus overtime.
func (b Breakdown) Total() core.Minutes { return b.Regular + b.TotalOvertime() }

// Compute produces the breakdown of one day.
func Compute(in Input) (Breakdown, error) {
	if err := validate(in); err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{Worked: in.Total}
	if in.Total < in.Day.Minimum {
		return b, nil
	}
	b.Counted = true
	b.DaysCounted = 1

	remaining := in.Total
	if !in.Day.IsSpecial() {
		b.Regular = remaining.Min(in.Policy.RegularCapFor(in.Day.Scheduled))
		remaining -= b.Regular
		if in.Policy.Tiers.Surcharge25 {
			b.Surcharge25 = remaining.Min(in.Policy.Caps.Surcharge)
			remaining -= b.Surcharge25
		}
		if in.Policy.Tiers.Supplementary50 {
			b.Supplementary50 = remaining.Min(in.Policy.Caps.Supplementary)
			remaining -= b.Supplementary50
		}
	}
	b.Extraordinary100 = remaining
	b.Night = NightMinutesOf(in.Intervals, in.Location)

	if in.Wage != nil {
		b.Pay = price(b, *in.Wage, in.Policy.Rates)
	}
	return b, nil
}

func validate(in Input) error {
	if in.Total < 0 || in.Total > core.MinutesPerDay {
		return core.Invalid("total_hours", in.Total.Hours(), "must be between 0 and 24")
	}
	if err := in.Day.Validate(); err != nil {
		return err
	}
	if in.Day.EmployeeType != "" && in.Day.EmployeeType != in.Policy.Type {
		return core.Invalid("employee_type", string(in.Day.EmployeeType), "does not match policy "+string(in.Policy.Type))
	}
	if err := in.Policy.Rates.Validate(); err != nil {
		return err
	}
	if in.Wage != nil && in.Wage.IsNegative() {
		return core.Invalid("hourly_wage", in.Wage.String(), "must not be negative")
	}
	return nil
}

var minutesPerHour = decimal.NewFromInt(int64(core.MinutesPerHour))

func price(b Breakdown, wage decimal.Decimal, r policy.Rates) *Pay {
	one := decimal.NewFromInt(1)
	tier := func(m core.Minutes, rate decimal.Decimal) decimal.Decimal {
		return decimal.NewFromInt(int64(m)).Mul(wage).Mul(one.Add(rate)).Div(minutesPerHour)
	}
	p := &Pay{
		Regular:          tier(b.Regular, decimal.Zero),
		Surcharge25:      tier(b.Surcharge25, r.Surcharge),
		Supplementary50:  tier(b.Supplementary50, r.Supplementary),
		Extraordinary100: tier(b.Extraordinary100, r.Extraordinary),
	}
	p.Total = p.Regular.Add(p.Surcharge25).Add(p.Supplementary50).Add(p.Extraordinary100)
	return p
}

// =============================================================================
// HOURS VIEW
// =============================================================================

// Hours is the fractional-hour rendering used at output boundaries.
type Hours struct {
	Worked           float64  `json:"worked_hours"`
	Regular          float64  `json:"regular_hours"`
	Surcharge25      float64  `json:"surcharge_25_hours"`
	Supplementary50  float64  `json:"supplementary_50_hours"`
	Extraordinary100 float64  `json:"extraordinary_100_hours"`
	Night            float64  `json:"night_hours"`
	TotalOvertime    float64  `json:"total_overtime_hours"`
	Counted          bool     `json:"counted"`
	DaysCounted      int      `json:"days_counted,omitempty"`
	Pay              *PayView `json:"pay,omitempty"`
}

// PayView renders money with two decimals.
type PayView struct {
	Regular          string `json:"regular"`
	Surcharge25      string `json:"surcharge_25"`
	Supplementary50  string `json:"supplementary_50"`
	Extraordinary100 string `json:"extraordinary_100"`
	Total            string `json:"total"`
}

func (b Breakdown) Hours() Hours {
	h := Hours{
		Worked:           b.Worked.Hours(),
		Regular:          b.Regular.Hours(),
		Surcharge25:      b.Surcharge25.Hours(),
		Supplementary50:  b.Supplementary50.Hours(),
		Extraordinary100: b.Extraordinary100.Hours(),
		Night:            b.Night.Hours(),
		TotalOvertime:    b.TotalOvertime().Hours(),
		Counted:          b.Counted,
		DaysCounted:      b.DaysCounted,
	}
	if b.Pay != nil {
		h.Pay = &PayView{
			Regular:          b.Pay.Regular.StringFixed(2),
			Surcharge25:      b.Pay.Surcharge25.StringFixed(2),
			Supplementary50:  b.Pay.Supplementary50.StringFixed(2),
			Extraordinary100: b.Pay.Extraordinary100.StringFixed(2),
			Total:            b.Pay.Total.StringFixed(2),
		}
	}
	return h
}
