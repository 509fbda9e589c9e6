/*
reconcile.go - Punches to attendance record

PURPOSE:
  The Reconciler is the engine's entry point: given an employee profile, a
  calendar date and raw punches, it produces the day's AttendanceRecord and
  the conflicts found along the way.

FLOW:
  1. Resolve the employee's policy and the day's terms (calendar, wage)
  2. Reject punches of another employee (fatal)
  3. Set aside punches outside the local date (conflict)
  4. Run the biometric processor over existing + new punches
  5. Rebuild bounds, durations and sequence validity from the result
  6. Flag for review once anomalies reach the threshold
  7. Compute hours and derive the status

INCREMENTAL:
  Apply merges new punches into an existing record. A punch whose ID is
  already on the record is ignored, so replays are no-ops. Human state
  (leave, correction, review) survives: a held leave keeps the day at zero
  hours and a correction keeps its bounds, only filling a missing entry or
  exit from punches; the punches are still recorded.

SEE ALSO:
  - biometric/processor.go
  - transitions.go
*/
package attendance

import (
	"fmt"
	"time"

	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/policy"
	"go.uber.org/zap"
)

const DefaultReviewThreshold = 3

type Reconciler struct {
	Policies        *policy.Registry
	Calendar        core.HolidayCalendar
	Processor       *biometric.Processor
	Location        *time.Location
	ReviewThreshold int
	Logger          *zap.Logger
}

// NewReconciler wires a reconciler with default processor and threshold.
func NewReconciler(policies *policy.Registry, cal core.HolidayCalendar, loc *time.Location, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policies == nil {
		policies = policy.DefaultRegistry()
	}
	if cal == nil {
		cal = core.NoHolidays{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{
		Policies:        policies,
		Calendar:        cal,
		Processor:       biometric.NewProcessor(logger),
		Location:        loc,
		ReviewThreshold: DefaultReviewThreshold,
		Logger:          logger.Named("reconciler"),
	}
}

// DayInput describes one employee-day to reconcile.
type DayInput struct {
	Profile  policy.Profile
	Date     core.Date
	Events   []biometric.Event
	Previous *biometric.Event     // prior day's last punch, if known
	Calendar core.HolidayCalendar // overrides Reconciler.Calendar when set
}

// Result of a reconciliation.
type Result struct {
	Record    Record
	Conflicts []biometric.Conflict
}

// ReconcileDay builds the record of date from scratch.
func (rc *Reconciler) ReconcileDay(profile policy.Profile, date core.Date, events []biometric.Event) (Result, error) {
	return rc.Reconcile(DayInput{Profile: profile, Date: date, Events: events})
}

// Reconcile builds the record of in.Date from scratch.
func (rc *Reconciler) Reconcile(in DayInput) (Result, error) {
	r, err := New(in.Profile.EmployeeID, in.Date)
	if err != nil {
		return Result{}, err
	}
	return rc.ApplyDay(r, in)
}

// Apply merges events into prev.
func (rc *Reconciler) Apply(prev Record, profile policy.Profile, events []biometric.Event) (Result, error) {
	return rc.ApplyDay(prev, DayInput{Profile: profile, Date: prev.Date, Events: events})
}

// Terms resolves the policy and day context of an employee-day.
func (rc *Reconciler) Terms(profile policy.Profile, date core.Date, cal core.HolidayCalendar) (Terms, error) {
	pol, err := rc.policies().ForProfile(profile)
	if err != nil {
		return Terms{}, fmt.Errorf("resolve policy for %s: %w", profile.EmployeeID, err)
	}
	if cal == nil {
		cal = rc.Calendar
	}
	return NewTerms(profile, pol, date, cal, rc.location()), nil
}

// ApplyDay merges in.Events into prev and recomputes the day.
func (rc *Reconciler) ApplyDay(prev Record, in DayInput) (Result, error) {
	if prev.EmployeeID != in.Profile.EmployeeID {
		return Result{Record: prev}, core.Invalid("employee_id", string(in.Profile.EmployeeID), "does not match record")
	}
	if !prev.Date.Equal(in.Date) {
		return Result{Record: prev}, core.Invalid("date", in.Date.String(), "does not match record")
	}
	terms, err := rc.Terms(in.Profile, in.Date, in.Calendar)
	if err != nil {
		return Result{Record: prev}, err
	}

	known := make(map[core.EventID]bool, len(prev.Movements))
	events := make([]biometric.Event, 0, len(prev.Movements)+len(in.Events))
	for _, m := range prev.Movements {
		known[m.EventID] = true
		events = append(events, m.Event(prev.EmployeeID))
	}

	var conflicts []biometric.Conflict
	dayStart, dayEnd := in.Date.Start(rc.location()), in.Date.AddDays(1).Start(rc.location())
	for _, e := range in.Events {
		if e.EmployeeID != in.Profile.EmployeeID {
			return Result{Record: prev}, core.Invalid("employee_id", string(e.EmployeeID), "event "+string(e.ID)+" belongs to another employee")
		}
		if known[e.ID] {
			continue
		}
		if e.Timestamp.Before(dayStart) || !e.Timestamp.Before(dayEnd) {
			conflicts = append(conflicts, biometric.Conflict{
				Kind:    biometric.ConflictOutsideDay,
				EventID: e.ID,
				Code:    e.WorkCode,
				At:      e.Timestamp,
				Message: "punch falls outside " + in.Date.String(),
			})
			continue
		}
		known[e.ID] = true
		events = append(events, e)
	}

	res, err := rc.processor().Process(biometric.Input{
		Events:   events,
		Method:   terms.Policy.CalculationMethod,
		Previous: in.Previous,
		DayStart: dayStart,
	})
	if err != nil {
		return Result{Record: prev}, err
	}
	conflicts = append(res.Conflicts, conflicts...)

	next := prev.Clone()
	next.Movements = next.Movements[:0]
	for _, pe := range res.Events {
		next.Movements = append(next.Movements, movementOf(pe))
	}
	next.SequenceValid = res.Sequence.Valid
	next.Continued = res.Continued

	if next.Leave == "" && next.Modified {
		fillOpenBounds(&next, res)
	}
	if next.Leave == "" && !next.Modified {
		next.Entry, next.Exit = copyTime(res.Entry), copyTime(res.Exit)
		next.Entry2, next.Exit2 = copyTime(res.Entry2), copyTime(res.Exit2)
		next.BreakMinutes = res.BreakMinutes
		next.LunchMinutes = res.LunchMinutes
		if next.LunchMinutes > maxLunchMinutes {
			conflicts = append(conflicts, biometric.Conflict{
				Kind:    biometric.ConflictLunchClamped,
				Message: fmt.Sprintf("lunch of %s capped at %s", res.LunchMinutes, maxLunchMinutes),
			})
			next.LunchMinutes = maxLunchMinutes
		}
	}

	if n := biometric.CountAnomalies(conflicts); n >= rc.threshold() && !next.Review {
		next.Review = true
		next.ReviewReason = fmt.Sprintf("%d anomalies", n)
	}

	out, err := settle(next, terms)
	if err != nil {
		return Result{Record: prev}, err
	}

	if out.Leave == "" && out.Entry != nil && out.Exit != nil && !out.Hours.Counted {
		conflicts = append(conflicts, biometric.Conflict{
			Kind:    biometric.ConflictBelowMinimum,
			Message: fmt.Sprintf("worked %s under the %s minimum", out.WorkedMinutes(), terms.Policy.MinimumPerDay),
		})
	}
	out.Conflicts = conflicts

	if len(conflicts) > 0 {
		rc.logger().Debug("day reconciled with conflicts",
			zap.String("employee_id", string(out.EmployeeID)),
			zap.String("date", out.Date.String()),
			zap.String("status", string(out.Status)),
			zap.Int("conflicts", len(conflicts)),
		)
	}
	return Result{Record: out, Conflicts: conflicts}, nil
}

// fillOpenBounds completes a corrected record from punches without moving
// the bounds a person set: only a missing entry or exit of the first pair is
// taken from res, and only when it keeps the pair ordered.
func fillOpenBounds(r *Record, res biometric.Result) {
	if r.Entry == nil && res.Entry != nil && (r.Exit == nil || res.Entry.Before(*r.Exit)) {
		r.Entry = copyTime(res.Entry)
	}
	if r.Exit == nil && r.Entry2 == nil && res.Exit != nil && (r.Entry == nil || r.Entry.Before(*res.Exit)) {
		r.Exit = copyTime(res.Exit)
	}
}

func (rc *Reconciler) policies() *policy.Registry {
	if rc.Policies == nil {
		return policy.DefaultRegistry()
	}
	return rc.Policies
}

func (rc *Reconciler) processor() *biometric.Processor {
	if rc.Processor == nil {
		return biometric.NewProcessor(rc.logger())
	}
	return rc.Processor
}

func (rc *Reconciler) location() *time.Location {
	if rc.Location == nil {
		return time.UTC
	}
	return rc.Location
}

func (rc *Reconciler) threshold() int {
	if rc.ReviewThreshold <= 0 {
		return DefaultReviewThreshold
	}
	return rc.ReviewThreshold
}

func (rc *Reconciler) logger() *zap.Logger {
	if rc.Logger == nil {
		return zap.NewNop()
	}
	return rc.Logger
}
