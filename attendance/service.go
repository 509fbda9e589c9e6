/*
service.go - Attendance service: punches and human actions over a store

PURPOSE:
  Glue between the pure engine and persistence. Every operation follows
  the same loop: read the current record, compute the next snapshot with a
  transition or the Reconciler, write it with a version check. A lost race
  (core.ErrConcurrentModification) re-reads and recomputes, up to
  MaxRetries times.

PUNCH FLOW:
  Ingest -> batch check (punch shape, known employees) -> Journal
  (idempotent by event ID) -> group by employee and local date ->
  Reconciler.ApplyDay with the punches not yet on the record -> SaveRecord

  Punches already in the journal are counted as replayed. They only touch
  a record when an earlier ingest journaled them but failed to save it.

HUMAN ACTIONS:
  RegisterManual, SetLunch, Correct, ApplyLeave, ClearLeave, FlagReview and
  Recalculate. Each is checked against the actions the current status
  allows. Manual punches are journaled like terminal punches so a rebuild
  from the journal reproduces them.

DAILY CLOSE:
  CloseDay materializes AUSENTE records for working days without punches
  and flags days still PENDIENTE for review.
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/workcode"
	"go.uber.org/zap"
)

const DefaultMaxRetries = 3

type Service struct {
	repo       Repository
	journal    *biometric.Journal
	reconciler *Reconciler
	logger     *zap.Logger
	now        func() time.Time

	MaxRetries int
}

func NewService(repo Repository, rc *Reconciler, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rc == nil {
		rc = NewReconciler(nil, nil, nil, logger)
	}
	return &Service{
		repo:       repo,
		journal:    biometric.NewJournal(repo, logger),
		reconciler: rc,
		logger:     logger.Named("attendance"),
		now:        time.Now,
		MaxRetries: DefaultMaxRetries,
	}
}

// WithClock replaces the service clock. Used in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Reconciler returns the engine the service drives.
func (s *Service) Reconciler() *Reconciler { return s.reconciler }

// Location is the wall clock used to assign punches to dates.
func (s *Service) Location() *time.Location { return s.reconciler.location() }

// =============================================================================
// PUNCHES
// =============================================================================

// IngestResult summarizes one Ingest call.
type IngestResult struct {
	Accepted  int
	Replayed  int
	Records   []Record
	Conflicts []biometric.Conflict
}

type dayKey struct {
	employee core.EmployeeID
	date     core.Date
}

// Ingest journals punches and reconciles every employee-day they touch.
// The batch is checked as a whole before anything is journaled. Punches
// already journaled but missing from their record are applied again, so a
// resend after a failed ingest completes it.
func (s *Service) Ingest(ctx context.Context, events []biometric.Event) (IngestResult, error) {
	if err := s.checkBatch(ctx, events); err != nil {
		return IngestResult{}, err
	}
	added, err := s.journal.Record(ctx, events)
	if err != nil {
		return IngestResult{}, err
	}
	out := IngestResult{Accepted: len(added), Replayed: len(events) - len(added)}

	groups := make(map[dayKey][]biometric.Event)
	var keys []dayKey
	for _, e := range events {
		k := dayKey{e.EmployeeID, core.DateIn(e.Timestamp, s.Location())}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], e)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].employee != keys[j].employee {
			return keys[i].employee < keys[j].employee
		}
		return keys[i].date.Before(keys[j].date)
	})

	for _, k := range keys {
		var conflicts []biometric.Conflict
		rec, err := s.update(ctx, k.employee, k.date, "", func(cur Record, day workday) (Record, error) {
			pending := unapplied(cur, groups[k])
			if len(pending) == 0 {
				return cur, errUnchanged
			}
			res, err := s.reconciler.ApplyDay(cur, DayInput{
				Profile:  day.profile,
				Date:     k.date,
				Events:   pending,
				Previous: day.previous,
				Calendar: day.calendar,
			})
			conflicts = res.Conflicts
			return res.Record, err
		})
		if errors.Is(err, errUnchanged) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("reconcile %s on %s: %w", k.employee, k.date, err)
		}
		out.Records = append(out.Records, rec)
		out.Conflicts = append(out.Conflicts, conflicts...)
	}

	s.logger.Info("punches ingested",
		zap.Int("accepted", out.Accepted),
		zap.Int("replayed", out.Replayed),
		zap.Int("records", len(out.Records)),
	)
	return out, nil
}

// checkBatch rejects a batch with any invalid punch or unknown employee.
func (s *Service) checkBatch(ctx context.Context, events []biometric.Event) error {
	seen := make(map[core.EmployeeID]bool)
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("event %d (%s): %w", i, e.ID, err)
		}
		if seen[e.EmployeeID] {
			continue
		}
		seen[e.EmployeeID] = true
		if _, err := s.repo.GetProfile(ctx, e.EmployeeID); err != nil {
			return err
		}
	}
	return nil
}

// unapplied returns the events whose IDs are not yet movements of r.
func unapplied(r Record, events []biometric.Event) []biometric.Event {
	known := make(map[core.EventID]bool, len(r.Movements))
	for _, m := range r.Movements {
		known[m.EventID] = true
	}
	var out []biometric.Event
	for _, e := range events {
		if !known[e.ID] {
			known[e.ID] = true
			out = append(out, e)
		}
	}
	return out
}

// Rebuild reapplies the journaled punches of an employee-day to its record.
func (s *Service) Rebuild(ctx context.Context, employee core.EmployeeID, date core.Date) (Record, error) {
	return s.update(ctx, employee, date, "", func(cur Record, day workday) (Record, error) {
		loc := s.Location()
		events, err := s.journal.Range(ctx, employee, date.Start(loc), date.AddDays(1).Start(loc))
		if err != nil {
			return cur, err
		}
		res, err := s.reconciler.ApplyDay(cur, DayInput{
			Profile:  day.profile,
			Date:     date,
			Events:   events,
			Previous: day.previous,
			Calendar: day.calendar,
		})
		return res.Record, err
	})
}

// =============================================================================
// HUMAN ACTIONS
// =============================================================================

// ManualPunch is an entry or exit typed in by a person.
type ManualPunch struct {
	EmployeeID core.EmployeeID
	Date       core.Date
	Code       workcode.Code
	At         time.Time
	By         string
}

// RegisterManual applies a manual entry or exit and journals it.
func (s *Service) RegisterManual(ctx context.Context, p ManualPunch) (Record, error) {
	var action Action
	switch p.Code {
	case workcode.Entry:
		action = ActionRegisterEntry
	case workcode.Exit:
		action = ActionRegisterExit
	default:
		return Record{}, core.Invalid("work_code", p.Code.String(), "manual punches must be ENTRY or EXIT")
	}

	var before Record
	saved, err := s.update(ctx, p.EmployeeID, p.Date, action, func(cur Record, day workday) (Record, error) {
		before = cur
		e := s.edit(p.By)
		if p.Code == workcode.Entry {
			return RegisterEntry(cur, p.At, e, day.terms)
		}
		return RegisterExit(cur, p.At, e, day.terms)
	})
	if err != nil {
		return Record{}, err
	}

	var manual []biometric.Event
	for _, m := range addedMovements(before, saved) {
		if m.Manual() {
			manual = append(manual, m.Event(saved.EmployeeID))
		}
	}
	if _, err := s.journal.Record(ctx, manual); err != nil {
		return saved, fmt.Errorf("journal manual punch: %w", err)
	}
	return saved, nil
}

func (s *Service) SetLunch(ctx context.Context, employee core.EmployeeID, date core.Date, lunch core.Minutes, by string) (Record, error) {
	return s.update(ctx, employee, date, ActionSetLunch, func(cur Record, day workday) (Record, error) {
		return SetLunch(cur, lunch, s.edit(by), day.terms)
	})
}

func (s *Service) Correct(ctx context.Context, employee core.EmployeeID, date core.Date, c Correction, by string) (Record, error) {
	return s.update(ctx, employee, date, ActionCorrect, func(cur Record, day workday) (Record, error) {
		return Correct(cur, c, s.edit(by), day.terms)
	})
}

func (s *Service) ApplyLeave(ctx context.Context, employee core.EmployeeID, date core.Date, leave Status, by string) (Record, error) {
	return s.update(ctx, employee, date, ActionApplyLeave, func(cur Record, _ workday) (Record, error) {
		return ApplyLeave(cur, leave, s.edit(by))
	})
}

// ClearLeave lifts the leave and derives the day again from its punches.
func (s *Service) ClearLeave(ctx context.Context, employee core.EmployeeID, date core.Date, by string) (Record, error) {
	return s.update(ctx, employee, date, ActionClearLeave, func(cur Record, day workday) (Record, error) {
		cleared, err := ClearLeave(cur, s.edit(by), day.terms)
		if err != nil {
			return cur, err
		}
		res, err := s.reconciler.ApplyDay(cleared, DayInput{
			Profile:  day.profile,
			Date:     date,
			Previous: day.previous,
			Calendar: day.calendar,
		})
		return res.Record, err
	})
}

func (s *Service) FlagReview(ctx context.Context, employee core.EmployeeID, date core.Date, reason string) (Record, error) {
	return s.update(ctx, employee, date, ActionFlagReview, func(cur Record, _ workday) (Record, error) {
		return FlagReview(cur, reason)
	})
}

// Recalculate recomputes a record under the current policy and calendar.
func (s *Service) Recalculate(ctx context.Context, employee core.EmployeeID, date core.Date, opts RecalculateOptions) (Record, error) {
	return s.update(ctx, employee, date, "", func(cur Record, day workday) (Record, error) {
		return Recalculate(cur, day.terms, opts)
	})
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns the stored record, or an AUSENTE record that was never saved.
func (s *Service) Get(ctx context.Context, employee core.EmployeeID, date core.Date) (Record, error) {
	if _, err := s.repo.GetProfile(ctx, employee); err != nil {
		return Record{}, err
	}
	return s.current(ctx, employee, date)
}

func (s *Service) List(ctx context.Context, employee core.EmployeeID, from, to core.Date) ([]Record, error) {
	if to.Before(from) {
		return nil, core.Invalid("to", to.String(), "must not be before from")
	}
	return s.repo.ListRecords(ctx, employee, from, to)
}

// Calendar returns the configured calendar merged with stored holidays.
func (s *Service) Calendar(ctx context.Context) (core.HolidayCalendar, error) {
	holidays, err := s.repo.ListHolidays(ctx)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	return core.Calendars{s.reconciler.Calendar, core.NewStaticCalendar(holidays...)}, nil
}

// =============================================================================
// DAILY CLOSE
// =============================================================================

// CloseResult summarizes a CloseDay run.
type CloseResult struct {
	Absent  int
	Flagged int
}

// CloseDay finalizes date for every employee: untouched working days become
// AUSENTE records and days still PENDIENTE are flagged for review.
func (s *Service) CloseDay(ctx context.Context, date core.Date) (CloseResult, error) {
	profiles, err := s.repo.ListProfiles(ctx)
	if err != nil {
		return CloseResult{}, err
	}
	var out CloseResult
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		var absent bool
		_, err := s.update(ctx, p.EmployeeID, date, "", func(cur Record, day workday) (Record, error) {
			switch {
			case cur.Version == 0 && !day.terms.Day.IsSpecial():
				absent = true
				return Recalculate(cur, day.terms, RecalculateOptions{})
			case cur.Status == StatusPending:
				absent = false
				return FlagReview(cur, "still pending at day close")
			}
			return cur, errUnchanged
		})
		switch {
		case errors.Is(err, errUnchanged):
		case err != nil:
			return out, fmt.Errorf("close %s for %s: %w", date, p.EmployeeID, err)
		case absent:
			out.Absent++
		default:
			out.Flagged++
		}
	}
	s.logger.Info("day closed",
		zap.String("date", date.String()),
		zap.Int("absent", out.Absent),
		zap.Int("flagged", out.Flagged),
	)
	return out, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

var errUnchanged = errors.New("record unchanged")

type workday struct {
	profile  policy.Profile
	terms    Terms
	calendar core.HolidayCalendar
	previous *biometric.Event
}

func (s *Service) workday(ctx context.Context, employee core.EmployeeID, date core.Date) (workday, error) {
	profile, err := s.repo.GetProfile(ctx, employee)
	if err != nil {
		return workday{}, err
	}
	cal, err := s.Calendar(ctx)
	if err != nil {
		return workday{}, err
	}
	terms, err := s.reconciler.Terms(profile, date, cal)
	if err != nil {
		return workday{}, err
	}
	prev, err := s.journal.LastBefore(ctx, employee, date.Start(s.Location()))
	if err != nil {
		return workday{}, err
	}
	return workday{profile: profile, terms: terms, calendar: cal, previous: prev}, nil
}

func (s *Service) current(ctx context.Context, employee core.EmployeeID, date core.Date) (Record, error) {
	r, err := s.repo.GetRecord(ctx, employee, date)
	if core.IsNotFound(err) {
		return New(employee, date)
	}
	return r, err
}

// update runs the read-compute-write loop. A non-empty action must be
// allowed by the current status.
func (s *Service) update(ctx context.Context, employee core.EmployeeID, date core.Date, action Action, fn func(Record, workday) (Record, error)) (Record, error) {
	if err := date.Validate(); err != nil {
		return Record{}, err
	}
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}
		day, err := s.workday(ctx, employee, date)
		if err != nil {
			return Record{}, err
		}
		cur, err := s.current(ctx, employee, date)
		if err != nil {
			return Record{}, err
		}
		if action != "" && !cur.Status.Allows(action) {
			return Record{}, core.Invalid("action", string(action), "not allowed while "+string(cur.Status))
		}
		next, err := fn(cur, day)
		if err != nil {
			return Record{}, err
		}
		saved, err := s.repo.SaveRecord(ctx, next)
		if err == nil {
			return saved, nil
		}
		if core.IsRetryable(err) && attempt < s.maxRetries() {
			s.logger.Warn("record changed concurrently, retrying",
				zap.String("employee_id", string(employee)),
				zap.String("date", date.String()),
				zap.Int("attempt", attempt),
			)
			continue
		}
		return Record{}, fmt.Errorf("save record %s %s: %w", employee, date, err)
	}
}

func (s *Service) maxRetries() int {
	if s.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return s.MaxRetries
}

func (s *Service) edit(by string) Edit {
	return Edit{By: by, At: s.now().UTC()}
}

func addedMovements(before, after Record) []Movement {
	seen := make(map[core.EventID]bool, len(before.Movements))
	for _, m := range before.Movements {
		seen[m.EventID] = true
	}
	var out []Movement
	for _, m := range after.Movements {
		if !seen[m.EventID] {
			out = append(out, m)
		}
	}
	return out
}
