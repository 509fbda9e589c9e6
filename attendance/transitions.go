package attendance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/overtime"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/workcode"
)

// =============================================================================
// TERMS
// =============================================================================

// Terms is everything hours are computed against for one record.
type Terms struct {
	Policy   policy.Policy
	Day      overtime.DayContext
	Wage     *decimal.Decimal
	Location *time.Location
}

// NewTerms builds the terms of date for an employee.
func NewTerms(profile policy.Profile, pol policy.Policy, date core.Date, cal core.HolidayCalendar, loc *time.Location) Terms {
	return Terms{
		Policy:   pol,
		Day:      overtime.NewDayContext(date, profile, pol, cal),
		Wage:     profile.HourlyWage,
		Location: loc,
	}
}

// Edit identifies who changed a record and when.
type Edit struct {
	By string
	At time.Time
}

// Correction is a human edit of a record. Nil fields keep their value.
type Correction struct {
	Entry        *time.Time
	Exit         *time.Time
	Entry2       *time.Time
	Exit2        *time.Time
	LunchMinutes *core.Minutes
	Reason       string
}

// RecalculateOptions controls which human flags Recalculate drops.
type RecalculateOptions struct {
	ClearModified bool
	ClearReview   bool
}

// =============================================================================
// TRANSITIONS
// =============================================================================
// Every transition returns a new snapshot. On error the input record is
// returned unchanged alongside the error.

// New creates an empty record for an employee-day.
func New(employee core.EmployeeID, date core.Date) (Record, error) {
	r := Record{
		ID:            newRecordID(),
		EmployeeID:    employee,
		Date:          date,
		Status:        StatusAbsent,
		SequenceValid: true,
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// RegisterEntry records a manual entry. After a complete first pair it
// opens the second pair. Replacing an entry already on the record is a
// correction: the record becomes MODIFICADO so later punches keep it.
func RegisterEntry(r Record, at time.Time, e Edit, t Terms) (Record, error) {
	if err := guard(r, ActionRegisterEntry); err != nil {
		return r, err
	}
	if at.IsZero() {
		return r, core.Invalid("entry", nil, "is required")
	}
	next := r.Clone()
	switch {
	case r.Entry != nil && r.Exit != nil && at.After(*r.Exit):
		if r.Exit2 != nil && !at.Before(*r.Exit2) {
			return r, core.Invalid("entry", at, "must be before exit")
		}
		next.Modified = next.Modified || r.Entry2 != nil
		next.Entry2 = &at
	case r.Exit != nil && !at.Before(*r.Exit):
		return r, core.Invalid("entry", at, "must be before exit")
	default:
		next.Modified = next.Modified || r.Entry != nil
		next.Entry = &at
	}
	next.insertMovement(manualMovement(workcode.Entry, at))
	next.touch(e, true)
	return settleOrKeep(r, next, t)
}

// RegisterExit records a manual exit, closing the open pair. Replacing an
// exit already on the record is a correction, as in RegisterEntry.
func RegisterExit(r Record, at time.Time, e Edit, t Terms) (Record, error) {
	if err := guard(r, ActionRegisterExit); err != nil {
		return r, err
	}
	if at.IsZero() {
		return r, core.Invalid("exit", nil, "is required")
	}
	next := r.Clone()
	if r.Entry2 != nil {
		if !r.Entry2.Before(at) {
			return r, core.Invalid("exit", at, "must be after entry")
		}
		next.Modified = next.Modified || r.Exit2 != nil
		next.Exit2 = &at
	} else {
		if r.Entry != nil && !r.Entry.Before(at) {
			return r, core.Invalid("exit", at, "must be after entry")
		}
		next.Modified = next.Modified || r.Exit != nil
		next.Exit = &at
	}
	next.insertMovement(manualMovement(workcode.Exit, at))
	next.touch(e, true)
	return settleOrKeep(r, next, t)
}

// SetLunch overrides the lunch duration.
func SetLunch(r Record, lunch core.Minutes, e Edit, t Terms) (Record, error) {
	if err := guard(r, ActionSetLunch); err != nil {
		return r, err
	}
	if lunch < 0 || lunch > maxLunchMinutes {
		return r, core.Invalid("lunch_minutes", int(lunch), "must be between 0 and 240")
	}
	next := r.Clone()
	next.LunchMinutes = lunch
	next.touch(e, true)
	return settleOrKeep(r, next, t)
}

// Correct applies a human edit. The record becomes MODIFICADO until a
// Recalculate explicitly clears it.
func Correct(r Record, c Correction, e Edit, t Terms) (Record, error) {
	if err := guard(r, ActionCorrect); err != nil {
		return r, err
	}
	next := r.Clone()
	if c.Entry != nil {
		next.Entry = copyTime(c.Entry)
	}
	if c.Exit != nil {
		next.Exit = copyTime(c.Exit)
	}
	if c.Entry2 != nil {
		next.Entry2 = copyTime(c.Entry2)
	}
	if c.Exit2 != nil {
		next.Exit2 = copyTime(c.Exit2)
	}
	if c.LunchMinutes != nil {
		if *c.LunchMinutes < 0 || *c.LunchMinutes > maxLunchMinutes {
			return r, core.Invalid("lunch_minutes", int(*c.LunchMinutes), "must be between 0 and 240")
		}
		next.LunchMinutes = *c.LunchMinutes
	}
	if err := validatePairs(next); err != nil {
		return r, err
	}
	next.Modified = true
	if c.Reason != "" {
		next.Notes = c.Reason
	}
	next.touch(e, false)
	return settleOrKeep(r, next, t)
}

// ApplyLeave puts the day on leave: bounds are cleared, hours zeroed and the
// leave status holds until ClearLeave.
func ApplyLeave(r Record, leave Status, e Edit) (Record, error) {
	if !leave.IsLeave() {
		return r, core.Invalid("leave", string(leave), "must be VACACIONES, PERMISO, INCAPACIDAD or FERIADO")
	}
	if r.Leave != "" {
		return r, core.Invalid("leave", string(leave), "record already on "+string(r.Leave))
	}
	next := r.Clone()
	next.Leave = leave
	next.Entry, next.Exit, next.Entry2, next.Exit2 = nil, nil, nil, nil
	next.LunchMinutes, next.BreakMinutes = 0, 0
	next.Hours = overtime.Breakdown{}
	next.Status = leave
	next.touch(e, false)
	if err := next.Validate(); err != nil {
		return r, err
	}
	return next, nil
}

// ClearLeave lifts a held leave and derives the status again.
func ClearLeave(r Record, e Edit, t Terms) (Record, error) {
	if r.Leave == "" {
		return r, core.Invalid("leave", nil, "record is not on leave")
	}
	next := r.Clone()
	next.Leave = ""
	next.touch(e, false)
	return settleOrKeep(r, next, t)
}

// FlagReview marks the record for human review.
func FlagReview(r Record, reason string) (Record, error) {
	if err := guard(r, ActionFlagReview); err != nil {
		return r, err
	}
	next := r.Clone()
	next.Review = true
	next.ReviewReason = reason
	next.Status = next.derive()
	return next, nil
}

// Recalculate recomputes hours and status under t. Human flags survive
// unless opts drop them.
func Recalculate(r Record, t Terms, opts RecalculateOptions) (Record, error) {
	next := r.Clone()
	if opts.ClearModified {
		next.Modified = false
	}
	if opts.ClearReview {
		next.Review = false
		next.ReviewReason = ""
	}
	return settleOrKeep(r, next, t)
}

// =============================================================================
// HELPERS
// =============================================================================

func guard(r Record, a Action) error {
	if r.Leave != "" {
		return core.Invalid("status", string(r.Leave), "record is on leave, "+string(a)+" not allowed")
	}
	return nil
}

// settle recomputes hours and status. Leave days carry no hours.
func settle(r Record, t Terms) (Record, error) {
	if r.Leave != "" {
		r.Hours = overtime.Breakdown{}
		r.Status = r.Leave
		return r, r.Validate()
	}
	b, err := overtime.Compute(overtime.Input{
		Total:     r.WorkedMinutes(),
		Day:       t.Day,
		Policy:    t.Policy,
		Wage:      t.Wage,
		Intervals: r.Intervals(),
		Location:  t.Location,
	})
	if err != nil {
		return r, err
	}
	r.Hours = b
	r.Status = r.derive()
	return r, r.Validate()
}

func settleOrKeep(orig, next Record, t Terms) (Record, error) {
	out, err := settle(next, t)
	if err != nil {
		return orig, err
	}
	return out, nil
}

func (r *Record) touch(e Edit, manual bool) {
	if manual {
		r.Manual = true
	}
	if e.By != "" {
		r.ModifiedBy = e.By
	}
	if !e.At.IsZero() {
		at := e.At
		r.ModifiedAt = &at
	}
}

// insertMovement keeps movements sorted and recomputes sequence validity.
func (r *Record) insertMovement(m Movement) {
	r.Movements = append(r.Movements, m)
	sort.SliceStable(r.Movements, func(i, j int) bool {
		return r.Movements[i].Timestamp.Before(r.Movements[j].Timestamp)
	})
	var codes []workcode.Code
	if r.Continued {
		codes = append(codes, workcode.Entry)
	}
	for _, mv := range r.Movements {
		if !mv.Duplicate {
			codes = append(codes, mv.WorkCode)
		}
	}
	r.SequenceValid = workcode.ValidateSequence(codes).Valid
}

// ManualDevice is the device ID of movements entered by hand.
const ManualDevice core.DeviceID = "manual"

func manualMovement(code workcode.Code, at time.Time) Movement {
	return Movement{
		EventID:      biometric.NewEventID(),
		DeviceID:     ManualDevice,
		Timestamp:    at,
		WorkCode:     code,
		Verification: biometric.VerifyManual,
		Confidence:   100,
		Effective:    true,
	}
}

func validatePairs(r Record) error {
	if r.Entry != nil && r.Exit != nil && !r.Entry.Before(*r.Exit) {
		return core.Invalid("exit", *r.Exit, "must be after entry")
	}
	if r.Entry2 == nil && r.Exit2 == nil {
		return nil
	}
	if r.Entry2 == nil || r.Exit2 == nil {
		return core.Invalid("second_pair", nil, "entry and exit are both required")
	}
	if !r.Entry2.Before(*r.Exit2) {
		return core.Invalid("exit2", *r.Exit2, "must be after second entry")
	}
	if r.Exit == nil || r.Entry2.Before(*r.Exit) {
		return core.Invalid("entry2", *r.Entry2, "second pair overlaps the first")
	}
	return nil
}
