package attendance_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/workcode"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	wednesday = core.NewDate(2025, time.March, 12)
	saturday  = core.NewDate(2025, time.March, 15)
)

func regular() policy.Profile {
	return policy.Profile{EmployeeID: "emp-1", Name: "Ana", Type: policy.TypeRegular, AssignedBranch: "north"}
}

func administrative() policy.Profile {
	return policy.Profile{EmployeeID: "emp-1", Name: "Ana", Type: policy.TypeAdministrative, AssignedBranch: "north"}
}

func newReconciler() *attendance.Reconciler {
	return attendance.NewReconciler(nil, nil, time.UTC, nil)
}

func clock(d core.Date, hour, min int) time.Time { return d.At(time.UTC, hour, min) }

type punchSeq struct{ n int }

func (p *punchSeq) at(d core.Date, code workcode.Code, hour, min int) biometric.Event {
	p.n++
	return biometric.Event{
		ID:           core.EventID(fmt.Sprintf("ev-%d", p.n)),
		EmployeeID:   "emp-1",
		DeviceID:     "dev-1",
		Timestamp:    clock(d, hour, min),
		WorkCode:     code,
		Verification: biometric.VerifyFingerprint,
		Confidence:   97,
	}
}

func terms(t *testing.T, profile policy.Profile, date core.Date) attendance.Terms {
	t.Helper()
	tm, err := newReconciler().Terms(profile, date, nil)
	require.NoError(t, err)
	return tm
}

func fullDay(p *punchSeq, d core.Date) []biometric.Event {
	return []biometric.Event{
		p.at(d, workcode.Entry, 8, 0),
		p.at(d, workcode.LunchStart, 12, 0),
		p.at(d, workcode.LunchEnd, 13, 0),
		p.at(d, workcode.Exit, 17, 0),
	}
}

// =============================================================================
// RECONCILE
// =============================================================================

func TestReconcileDay_EightHourDay(t *testing.T) {
	// GIVEN: ENTRY 08:00, LUNCH 12:00-13:00, EXIT 17:00 on a weekday
	// WHEN: reconciled for a regular employee
	// THEN: 480 worked minutes, 8h regular, no overtime, COMPLETO
	var p punchSeq
	res, err := newReconciler().ReconcileDay(regular(), wednesday, fullDay(&p, wednesday))
	require.NoError(t, err)

	r := res.Record
	assert.Equal(t, core.Minutes(480), r.WorkedMinutes())
	assert.Equal(t, core.HoursOf(8), r.Hours.Regular)
	assert.Zero(t, r.Hours.TotalOvertime())
	assert.Equal(t, attendance.StatusComplete, r.Status)
	assert.Equal(t, core.Minutes(60), r.LunchMinutes)
	assert.Empty(t, res.Conflicts)
	assert.Len(t, r.Movements, 4)
	assert.Equal(t, 8.0, r.Hours.Hours().Regular)
}

func TestReconcileDay_LateExitHasOneHourSurcharge(t *testing.T) {
	// GIVEN: ENTRY 08:00, LUNCH 12:00-13:00, EXIT 18:00 on a weekday
	// WHEN: reconciled for a regular employee
	// THEN: 540 worked minutes, 8h regular and 1h at 25%
	var p punchSeq
	res, err := newReconciler().ReconcileDay(regular(), wednesday, []biometric.Event{
		p.at(wednesday, workcode.Entry, 8, 0),
		p.at(wednesday, workcode.LunchStart, 12, 0),
		p.at(wednesday, workcode.LunchEnd, 13, 0),
		p.at(wednesday, workcode.Exit, 18, 0),
	})
	require.NoError(t, err)

	r := res.Record
	assert.Equal(t, core.Minutes(540), r.WorkedMinutes())
	assert.Equal(t, core.HoursOf(8), r.Hours.Regular)
	assert.Equal(t, core.HoursOf(1), r.Hours.Surcharge25)
	assert.Zero(t, r.Hours.Supplementary50)
	assert.Equal(t, attendance.StatusComplete, r.Status)
}

func TestReconcileDay_EntryOnlyIsPending(t *testing.T) {
	var p punchSeq
	res, err := newReconciler().ReconcileDay(regular(), wednesday, []biometric.Event{p.at(wednesday, workcode.Entry, 8, 0)})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPending, res.Record.Status)
	assert.Zero(t, res.Record.Hours.Regular)
}

func TestReconcileDay_NoPunchesIsAbsent(t *testing.T) {
	res, err := newReconciler().ReconcileDay(regular(), wednesday, nil)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, res.Record.Status)
}

func TestReconcileDay_ExitOnlyIsInconsistent(t *testing.T) {
	var p punchSeq
	res, err := newReconciler().ReconcileDay(regular(), wednesday, []biometric.Event{p.at(wednesday, workcode.Exit, 17, 0)})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusInconsistent, res.Record.Status)
	assert.False(t, res.Record.SequenceValid)
}

func TestReconcileDay_BadSequenceIsInconsistent(t *testing.T) {
	var p punchSeq
	res, err := newReconciler().ReconcileDay(regular(), wednesday, []biometric.Event{
		p.at(wednesday, workcode.Entry, 8, 0),
		p.at(wednesday, workcode.LunchEnd, 13, 0),
		p.at(wednesday, workcode.Exit, 17, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusInconsistent, res.Record.Status)
	assert.Equal(t, 1, res.Record.Anomalies())
}

func TestReconcileDay_ElevenHoursSplitsTiers(t *testing.T) {
	var p punchSeq
	res, err := newReconciler().ReconcileDay(regular(), wednesday, []biometric.Event{
		p.at(wednesday, workcode.Entry, 7, 0),
		p.at(wednesday, workcode.Exit, 18, 0),
	})
	require.NoError(t, err)
	h := res.Record.Hours
	assert.Equal(t, core.HoursOf(8), h.Regular)
	assert.Equal(t, core.HoursOf(2), h.Surcharge25)
	assert.Equal(t, core.HoursOf(1), h.Supplementary50)
	assert.Zero(t, h.Extraordinary100)
}

func TestReconcileDay_WeekendAllExtraordinary(t *testing.T) {
	var p punchSeq
	res, err := newReconciler().ReconcileDay(regular(), saturday, []biometric.Event{
		p.at(saturday, workcode.Entry, 9, 0),
		p.at(saturday, workcode.Exit, 14, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, core.HoursOf(5), res.Record.Hours.Extraordinary100)
	assert.Zero(t, res.Record.Hours.Regular)
}

func TestReconcileDay_HolidayFromCalendar(t *testing.T) {
	var p punchSeq
	rc := attendance.NewReconciler(nil, core.NewStaticCalendar(core.Holiday{Date: wednesday, Name: "Local"}), time.UTC, nil)
	res, err := rc.ReconcileDay(regular(), wednesday, fullDay(&p, wednesday))
	require.NoError(t, err)
	assert.Equal(t, core.HoursOf(8), res.Record.Hours.Extraordinary100)
}

func TestReconcileDay_AdministrativeUnderMinimum(t *testing.T) {
	var p punchSeq
	res, err := newReconciler().ReconcileDay(administrative(), wednesday, []biometric.Event{
		p.at(wednesday, workcode.Entry, 9, 0),
		p.at(wednesday, workcode.Exit, 12, 0),
	})
	require.NoError(t, err)

	r := res.Record
	assert.Equal(t, attendance.StatusComplete, r.Status)
	assert.False(t, r.Hours.Counted)
	assert.Zero(t, r.Hours.Total())
	require.NotEmpty(t, res.Conflicts)
	assert.Equal(t, biometric.ConflictBelowMinimum, res.Conflicts[len(res.Conflicts)-1].Kind)
}

func TestReconcileDay_AnomaliesTriggerReview(t *testing.T) {
	var p punchSeq
	entry := p.at(wednesday, workcode.Entry, 8, 0)
	dup1 := p.at(wednesday, workcode.Entry, 8, 1)
	dup2 := p.at(wednesday, workcode.Entry, 8, 1)
	weak := p.at(wednesday, workcode.Exit, 17, 0)
	weak.Confidence = 50

	res, err := newReconciler().ReconcileDay(regular(), wednesday, []biometric.Event{entry, dup1, dup2, weak})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Record.Anomalies())
	assert.True(t, res.Record.Review)
	assert.Equal(t, attendance.StatusReview, res.Record.Status)
	// Hours are still computed for the reviewer.
	assert.Equal(t, core.HoursOf(8)+60, res.Record.Hours.Total())
}

func TestReconcileDay_WeakPunchesShapeTheDayButAreFlagged(t *testing.T) {
	// GIVEN: a full day whose lunch end and exit were read with low confidence
	var p punchSeq
	events := fullDay(&p, wednesday)
	events[2].Confidence = 60
	events[3].Confidence = 84

	// WHEN: reconciled
	res, err := newReconciler().ReconcileDay(regular(), wednesday, events)
	require.NoError(t, err)
	r := res.Record

	// THEN: the weak punches still set lunch and exit
	require.NotNil(t, r.Exit)
	assert.Equal(t, clock(wednesday, 17, 0), *r.Exit)
	assert.Equal(t, core.Minutes(60), r.LunchMinutes)
	assert.Equal(t, core.HoursOf(8), r.WorkedMinutes())

	// AND: each is flagged and not effective, so the day waits for review
	assert.Len(t, res.Conflicts, 2)
	assert.False(t, r.Movements[2].Effective)
	assert.False(t, r.Movements[3].Effective)
	assert.True(t, r.Movements[0].Effective)
	assert.Equal(t, attendance.StatusReview, r.Status)
}

func TestReconcileDay_OutsideDayIsSetAside(t *testing.T) {
	var p punchSeq
	stray := p.at(wednesday.AddDays(1), workcode.Entry, 8, 0)
	events := append(fullDay(&p, wednesday), stray)

	res, err := newReconciler().ReconcileDay(regular(), wednesday, events)
	require.NoError(t, err)
	assert.Len(t, res.Record.Movements, 4)
	assert.Equal(t, biometric.ConflictOutsideDay, res.Conflicts[0].Kind)
	assert.Equal(t, attendance.StatusComplete, res.Record.Status)
}

func TestReconcileDay_RejectsOtherEmployee(t *testing.T) {
	var p punchSeq
	e := p.at(wednesday, workcode.Entry, 8, 0)
	e.EmployeeID = "emp-2"
	_, err := newReconciler().ReconcileDay(regular(), wednesday, []biometric.Event{e})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestReconcileDay_LongLunchIsClamped(t *testing.T) {
	var p punchSeq
	res, err := newReconciler().ReconcileDay(regular(), wednesday, []biometric.Event{
		p.at(wednesday, workcode.Entry, 7, 0),
		p.at(wednesday, workcode.LunchStart, 10, 0),
		p.at(wednesday, workcode.LunchEnd, 15, 0),
		p.at(wednesday, workcode.Exit, 20, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, core.Minutes(240), res.Record.LunchMinutes)
	assert.Equal(t, core.HoursOf(9), res.Record.WorkedMinutes())
	assert.Equal(t, biometric.ConflictLunchClamped, res.Conflicts[len(res.Conflicts)-1].Kind)
}

func TestReconcileDay_WageProducesPay(t *testing.T) {
	var p punchSeq
	wage := decimal.NewFromInt(20)
	profile := regular()
	profile.HourlyWage = &wage

	res, err := newReconciler().ReconcileDay(profile, wednesday, fullDay(&p, wednesday))
	require.NoError(t, err)
	require.NotNil(t, res.Record.Hours.Pay)
	assert.True(t, res.Record.Hours.Pay.Total.Equal(decimal.NewFromInt(160)))
}

func TestReconcile_OvernightContinuation(t *testing.T) {
	var p punchSeq
	prev := p.at(wednesday.AddDays(-1), workcode.Entry, 22, 0)
	res, err := newReconciler().Reconcile(attendance.DayInput{
		Profile:  regular(),
		Date:     wednesday,
		Events:   []biometric.Event{p.at(wednesday, workcode.Exit, 6, 0)},
		Previous: &prev,
	})
	require.NoError(t, err)

	r := res.Record
	assert.True(t, r.Continued)
	assert.Equal(t, attendance.StatusComplete, r.Status)
	assert.Equal(t, core.HoursOf(6), r.WorkedMinutes())
	assert.Equal(t, core.HoursOf(6), r.Hours.Night)
}

// =============================================================================
// APPLY (incremental)
// =============================================================================

func TestApply_IncrementalAndReplay(t *testing.T) {
	var p punchSeq
	rc := newReconciler()
	day := fullDay(&p, wednesday)

	first, err := rc.ReconcileDay(regular(), wednesday, day[:1])
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPending, first.Record.Status)

	second, err := rc.Apply(first.Record, regular(), day[1:])
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusComplete, second.Record.Status)
	assert.Equal(t, first.Record.ID, second.Record.ID)

	replay, err := rc.Apply(second.Record, regular(), day)
	require.NoError(t, err)
	assert.Equal(t, second.Record.Movements, replay.Record.Movements)
	assert.Equal(t, second.Record.Hours, replay.Record.Hours)
	assert.Empty(t, replay.Conflicts)
}

func TestApply_DoesNotModifyPrevious(t *testing.T) {
	var p punchSeq
	rc := newReconciler()
	first, err := rc.ReconcileDay(regular(), wednesday, []biometric.Event{p.at(wednesday, workcode.Entry, 8, 0)})
	require.NoError(t, err)

	_, err = rc.Apply(first.Record, regular(), []biometric.Event{p.at(wednesday, workcode.Exit, 17, 0)})
	require.NoError(t, err)
	assert.Nil(t, first.Record.Exit)
	assert.Len(t, first.Record.Movements, 1)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestRegisterExit_BeforeEntryFailsAndKeepsState(t *testing.T) {
	tm := terms(t, regular(), wednesday)
	r, err := attendance.New("emp-1", wednesday)
	require.NoError(t, err)
	r, err = attendance.RegisterEntry(r, clock(wednesday, 9, 0), attendance.Edit{By: "sup"}, tm)
	require.NoError(t, err)
	require.Equal(t, attendance.StatusPending, r.Status)

	for _, bad := range []time.Time{clock(wednesday, 9, 0), clock(wednesday, 8, 0)} {
		got, err := attendance.RegisterExit(r, bad, attendance.Edit{By: "sup"}, tm)
		assert.ErrorIs(t, err, core.ErrValidation)
		assert.Equal(t, r, got)
	}

	r, err = attendance.RegisterExit(r, clock(wednesday, 17, 0), attendance.Edit{By: "sup"}, tm)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusComplete, r.Status)
	assert.True(t, r.Manual)
	assert.Equal(t, "sup", r.ModifiedBy)
	assert.Len(t, r.Movements, 2)
	assert.True(t, r.Movements[0].Manual())
}

func TestRegisterEntry_OpensSecondPair(t *testing.T) {
	tm := terms(t, regular(), wednesday)
	r, _ := attendance.New("emp-1", wednesday)
	r, err := attendance.RegisterEntry(r, clock(wednesday, 6, 0), attendance.Edit{}, tm)
	require.NoError(t, err)
	r, err = attendance.RegisterExit(r, clock(wednesday, 10, 0), attendance.Edit{}, tm)
	require.NoError(t, err)
	r, err = attendance.RegisterEntry(r, clock(wednesday, 16, 0), attendance.Edit{}, tm)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPending, r.Status)

	r, err = attendance.RegisterExit(r, clock(wednesday, 20, 0), attendance.Edit{}, tm)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusComplete, r.Status)
	assert.Equal(t, core.HoursOf(8), r.WorkedMinutes())
}

func TestRegisterEntry_ReplacingEntrySurvivesLaterPunches(t *testing.T) {
	// GIVEN: a terminal ENTRY at 08:00
	var p punchSeq
	rc := newReconciler()
	res, err := rc.ReconcileDay(regular(), wednesday, []biometric.Event{p.at(wednesday, workcode.Entry, 8, 0)})
	require.NoError(t, err)
	tm := terms(t, regular(), wednesday)

	// WHEN: a supervisor sets the entry to 09:00
	r, err := attendance.RegisterEntry(res.Record, clock(wednesday, 9, 0), attendance.Edit{By: "sup"}, tm)
	require.NoError(t, err)
	assert.True(t, r.Modified)
	assert.Equal(t, attendance.StatusModified, r.Status)
	assert.Equal(t, clock(wednesday, 9, 0), *r.Entry)

	// THEN: the terminal EXIT closes the day without restoring 08:00
	res, err = rc.Apply(r, regular(), []biometric.Event{p.at(wednesday, workcode.Exit, 17, 0)})
	require.NoError(t, err)
	got := res.Record
	assert.Equal(t, clock(wednesday, 9, 0), *got.Entry)
	require.NotNil(t, got.Exit)
	assert.Equal(t, clock(wednesday, 17, 0), *got.Exit)
	assert.Equal(t, core.HoursOf(8), got.WorkedMinutes())
	assert.Equal(t, attendance.StatusModified, got.Status)
	assert.Len(t, got.Movements, 3)
}

func TestRegisterEntry_FirstEntryIsNotACorrection(t *testing.T) {
	tm := terms(t, regular(), wednesday)
	r, _ := attendance.New("emp-1", wednesday)
	r, err := attendance.RegisterEntry(r, clock(wednesday, 8, 0), attendance.Edit{}, tm)
	require.NoError(t, err)
	assert.False(t, r.Modified)

	r, err = attendance.RegisterExit(r, clock(wednesday, 17, 0), attendance.Edit{}, tm)
	require.NoError(t, err)
	assert.False(t, r.Modified)

	r, err = attendance.RegisterExit(r, clock(wednesday, 16, 0), attendance.Edit{}, tm)
	require.NoError(t, err)
	assert.True(t, r.Modified, "replacing the exit is a correction")
	assert.Equal(t, clock(wednesday, 16, 0), *r.Exit)
}

func TestSetLunch_Bounds(t *testing.T) {
	var p punchSeq
	res, err := newReconciler().ReconcileDay(regular(), wednesday, []biometric.Event{
		p.at(wednesday, workcode.Entry, 8, 0),
		p.at(wednesday, workcode.Exit, 18, 0),
	})
	require.NoError(t, err)
	tm := terms(t, regular(), wednesday)

	for _, bad := range []core.Minutes{-1, 241} {
		got, err := attendance.SetLunch(res.Record, bad, attendance.Edit{}, tm)
		assert.ErrorIs(t, err, core.ErrValidation)
		assert.Equal(t, res.Record, got)
	}

	r, err := attendance.SetLunch(res.Record, 120, attendance.Edit{By: "hr"}, tm)
	require.NoError(t, err)
	assert.Equal(t, core.HoursOf(8), r.Hours.Regular)
	assert.Zero(t, r.Hours.TotalOvertime())
	assert.Equal(t, core.HoursOf(2), res.Record.Hours.Surcharge25, "input untouched")
}

func TestCorrect_ModifiedUntilExplicitRecalculate(t *testing.T) {
	var p punchSeq
	res, err := newReconciler().ReconcileDay(regular(), wednesday, []biometric.Event{p.at(wednesday, workcode.Exit, 17, 0)})
	require.NoError(t, err)
	require.Equal(t, attendance.StatusInconsistent, res.Record.Status)
	tm := terms(t, regular(), wednesday)

	entry := clock(wednesday, 8, 0)
	r, err := attendance.Correct(res.Record, attendance.Correction{Entry: &entry, Reason: "forgot to punch"}, attendance.Edit{By: "hr"}, tm)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusModified, r.Status)
	assert.Equal(t, core.HoursOf(9), r.WorkedMinutes())
	assert.Equal(t, "forgot to punch", r.Notes)

	r, err = attendance.Recalculate(r, tm, attendance.RecalculateOptions{})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusModified, r.Status)

	r, err = attendance.Recalculate(r, tm, attendance.RecalculateOptions{ClearModified: true})
	require.NoError(t, err)
	// The stored sequence still lacks an ENTRY punch.
	assert.Equal(t, attendance.StatusInconsistent, r.Status)
}

func TestCorrect_RejectsInvertedAndOverlappingPairs(t *testing.T) {
	tm := terms(t, regular(), wednesday)
	r, _ := attendance.New("emp-1", wednesday)
	in, out := clock(wednesday, 17, 0), clock(wednesday, 8, 0)

	got, err := attendance.Correct(r, attendance.Correction{Entry: &in, Exit: &out}, attendance.Edit{}, tm)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, r, got)

	e1, x1 := clock(wednesday, 8, 0), clock(wednesday, 12, 0)
	e2, x2 := clock(wednesday, 11, 0), clock(wednesday, 15, 0)
	_, err = attendance.Correct(r, attendance.Correction{Entry: &e1, Exit: &x1, Entry2: &e2, Exit2: &x2}, attendance.Edit{}, tm)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestLeave_IsStickyUntilCleared(t *testing.T) {
	var p punchSeq
	rc := newReconciler()
	tm := terms(t, regular(), wednesday)

	res, err := rc.ReconcileDay(regular(), wednesday, fullDay(&p, wednesday)[:1])
	require.NoError(t, err)

	r, err := attendance.ApplyLeave(res.Record, attendance.StatusVacation, attendance.Edit{By: "hr"})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusVacation, r.Status)
	assert.Nil(t, r.Entry)
	assert.Zero(t, r.Hours.Total())

	// Punches keep arriving; the day stays on leave.
	applied, err := rc.Apply(r, regular(), []biometric.Event{p.at(wednesday, workcode.Exit, 17, 0)})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusVacation, applied.Record.Status)
	assert.Zero(t, applied.Record.Hours.Total())
	assert.Len(t, applied.Record.Movements, 2)

	_, err = attendance.RegisterEntry(applied.Record, clock(wednesday, 8, 0), attendance.Edit{}, tm)
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = attendance.ApplyLeave(applied.Record, attendance.StatusPermission, attendance.Edit{})
	assert.ErrorIs(t, err, core.ErrValidation)

	cleared, err := attendance.ClearLeave(applied.Record, attendance.Edit{By: "hr"}, tm)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, cleared.Status)

	rebuilt, err := rc.Apply(cleared, regular(), nil)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusComplete, rebuilt.Record.Status)
	assert.Equal(t, core.HoursOf(9), rebuilt.Record.Hours.Total())
}

func TestApplyLeave_RejectsNonLeave(t *testing.T) {
	r, _ := attendance.New("emp-1", wednesday)
	got, err := attendance.ApplyLeave(r, attendance.StatusComplete, attendance.Edit{})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, r, got)
}

func TestFlagReview(t *testing.T) {
	var p punchSeq
	res, err := newReconciler().ReconcileDay(regular(), wednesday, fullDay(&p, wednesday)[:1])
	require.NoError(t, err)

	r, err := attendance.FlagReview(res.Record, "left early")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusReview, r.Status)
	assert.Equal(t, "left early", r.ReviewReason)
	assert.Equal(t, attendance.StatusPending, res.Record.Status)
}

func TestNew_RejectsZeroDate(t *testing.T) {
	_, err := attendance.New("emp-1", core.Date{})
	assert.ErrorIs(t, err, core.ErrValidation)
}

// =============================================================================
// STATUS TABLES
// =============================================================================

func TestStatusTables_AreExhaustive(t *testing.T) {
	for _, s := range attendance.AllStatuses() {
		assert.NotEqual(t, "Unknown", s.Description(), s)
		assert.NotEqual(t, "#000000", s.Color(), s)
		assert.NotEmpty(t, s.Actions(), s)
	}
	assert.Equal(t, []attendance.Action{attendance.ActionClearLeave}, attendance.StatusSickLeave.Actions())
	assert.True(t, attendance.StatusPending.Allows(attendance.ActionRegisterExit))
	assert.False(t, attendance.StatusComplete.Allows(attendance.ActionRegisterEntry))
}

func TestParseLeave(t *testing.T) {
	s, err := attendance.ParseLeave("permiso")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPermission, s)

	_, err = attendance.ParseLeave("COMPLETO")
	assert.ErrorIs(t, err, core.ErrValidation)
}
