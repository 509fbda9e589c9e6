package overtime

import (
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/policy"
)

// DayContext is what the calculator needs to know about the calendar date
// being computed. It is derived per calculation and never persisted.
type DayContext struct {
	Date         core.Date
	IsWeekend    bool
	IsHoliday    bool
	EmployeeType policy.EmployeeType
	Scheduled    core.Minutes
	Minimum      core.Minutes
}

// NewDayContext derives the context of date for an employee. A nil calendar
// means no holidays.
func NewDayContext(date core.Date, profile policy.Profile, pol policy.Policy, cal core.HolidayCalendar) DayContext {
	if cal == nil {
		cal = core.NoHolidays{}
	}
	return DayContext{
		Date:         date,
		IsWeekend:    date.IsWeekend(),
		IsHoliday:    cal.IsHoliday(date),
		EmployeeType: pol.Type,
		Scheduled:    profile.Scheduled(),
		Minimum:      pol.MinimumPerDay,
	}
}

// IsSpecial reports a weekend or holiday.
func (d DayContext) IsSpecial() bool { return d.IsWeekend || d.IsHoliday }

func (d DayContext) Validate() error {
	if err := d.Date.Validate(); err != nil {
		return err
	}
	if d.Scheduled < 0 || d.Scheduled > policy.MaxScheduled {
		return core.Invalid("scheduled_hours", d.Scheduled.Hours(), "must be between 0 and 12")
	}
	if d.Minimum < 0 || d.Minimum > core.MinutesPerDay {
		return core.Invalid("minimum_hours", d.Minimum.Hours(), "must be between 0 and 24")
	}
	return nil
}
