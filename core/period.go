package core

import "time"

// =============================================================================
// PERIOD - Payroll aggregation window
// =============================================================================

// Period is an inclusive range of calendar days [Start, End].
type Period struct {
	Start Date
	End   Date
}

func NewPeriod(start, end Date) (Period, error) {
	if err := start.Validate(); err != nil {
		return Period{}, err
	}
	if err := end.Validate(); err != nil {
		return Period{}, err
	}
	if end.Before(start) {
		return Period{}, Invalid("period", start.String()+".."+end.String(), "end before start")
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns every day in the period.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

func (p Period) Len() int { return DaysBetween(p.Start, p.End) + 1 }

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// PeriodType defines how pay periods are cut.
type PeriodType string

const (
	PeriodMonthly     PeriodType = "monthly"      // 1st - last day of month
	PeriodSemiMonthly PeriodType = "semi_monthly" // 1st-15th, 16th-end
	PeriodWeekly      PeriodType = "weekly"       // Monday - Sunday
)

// PeriodFor returns the pay period of the given type that contains date.
func PeriodFor(t PeriodType, date Date) Period {
	switch t {
	case PeriodSemiMonthly:
		if date.Day() <= 15 {
			return Period{Start: StartOfMonth(date.Year(), date.Month()), End: NewDate(date.Year(), date.Month(), 15)}
		}
		return Period{Start: NewDate(date.Year(), date.Month(), 16), End: EndOfMonth(date.Year(), date.Month())}

	case PeriodWeekly:
		offset := (int(date.Weekday()) + 6) % 7 // days since Monday
		start := date.AddDays(-offset)
		return Period{Start: start, End: start.AddDays(6)}

	default:
		return Period{Start: StartOfMonth(date.Year(), date.Month()), End: EndOfMonth(date.Year(), date.Month())}
	}
}

// MonthPeriod is the calendar month containing year/month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}
