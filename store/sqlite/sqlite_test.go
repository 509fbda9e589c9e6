package sqlite_test

import (
	"context"
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
	"github.com/warp/attendance-engine/store/sqlite"
	"github.com/warp/attendance-engine/workcode"
)

var date = core.NewDate(2025, time.March, 12)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func punch(id string, code workcode.Code, hour int) biometric.Event {
	return biometric.Event{
		ID:           core.EventID(id),
		EmployeeID:   "emp-1",
		DeviceID:     "dev-1",
		Timestamp:    date.At(time.UTC, hour, 0),
		WorkCode:     code,
		Verification: biometric.VerifyFace,
		Confidence:   91,
	}
}

func TestSaveRecord_VersionCheck(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	// GIVEN: a record saved once
	r, err := attendance.New("emp-1", date)
	require.NoError(t, err)
	saved, err := s.SaveRecord(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)

	// WHEN: another writer creates the same day from scratch
	other, _ := attendance.New("emp-1", date)
	_, err = s.SaveRecord(ctx, other)

	// THEN: it conflicts with the stored version
	var conflict *core.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 0, conflict.Expected)
	assert.Equal(t, 1, conflict.Actual)

	// AND: a stale update conflicts too
	saved.Notes = "one"
	_, err = s.SaveRecord(ctx, saved)
	require.NoError(t, err)
	saved.Notes = "two"
	_, err = s.SaveRecord(ctx, saved)
	assert.ErrorIs(t, err, core.ErrConcurrentModification)

	got, err := s.GetRecord(ctx, "emp-1", date)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "one", got.Notes)
}

func TestRecord_RoundTripsThroughService(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	wage := decimal.RequireFromString("12.50")
	require.NoError(t, s.SaveProfile(ctx, policy.Profile{
		EmployeeID: "emp-1", Name: "Ana", Type: policy.TypeRegular, HourlyWage: &wage,
	}))
	svc := attendance.NewService(s, attendance.NewReconciler(nil, nil, time.UTC, nil), nil)

	_, err := svc.Ingest(ctx, []biometric.Event{
		punch("a", workcode.Entry, 7),
		punch("b", workcode.LunchStart, 12),
		punch("c", workcode.LunchEnd, 13),
		punch("d", workcode.Exit, 18),
	})
	require.NoError(t, err)

	got, err := s.GetRecord(ctx, "emp-1", date)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusComplete, got.Status)
	require.NotNil(t, got.Entry)
	assert.True(t, got.Entry.Equal(date.At(time.UTC, 7, 0)))
	assert.Equal(t, core.Minutes(60), got.LunchMinutes)
	assert.Equal(t, core.HoursOf(8), got.Hours.Regular)
	assert.Equal(t, core.HoursOf(2), got.Hours.Surcharge25)
	require.Len(t, got.Movements, 4)
	assert.Equal(t, workcode.LunchStart, got.Movements[1].WorkCode)
	require.NotNil(t, got.Hours.Pay)
	// 100 + 2h * 12.50 * 1.25
	assert.True(t, got.Hours.Pay.Total.Equal(decimal.RequireFromString("131.25")), got.Hours.Pay.Total.String())
}

func TestDeleteRecord_IsSoft(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r, _ := attendance.New("emp-1", date)
	_, err := s.SaveRecord(ctx, r)
	require.NoError(t, err)

	require.NoError(t, s.DeleteRecord(ctx, "emp-1", date))
	_, err = s.GetRecord(ctx, "emp-1", date)
	assert.True(t, core.IsNotFound(err))
	assert.True(t, core.IsNotFound(s.DeleteRecord(ctx, "emp-1", date)))

	list, err := s.ListRecords(ctx, "emp-1", date, date)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListRecords(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, d := range []core.Date{date.AddDays(3), date, date.AddDays(1)} {
		r, _ := attendance.New("emp-1", d)
		_, err := s.SaveRecord(ctx, r)
		require.NoError(t, err)
	}
	r, _ := attendance.New("emp-2", date)
	_, err := s.SaveRecord(ctx, r)
	require.NoError(t, err)

	got, err := s.ListRecords(ctx, "emp-1", date, date.AddDays(1))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Date.Equal(date))

	byDate, err := s.ListRecordsByDate(ctx, date)
	require.NoError(t, err)
	assert.Len(t, byDate, 2)
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	wage := decimal.NewFromInt(15)
	p := policy.Profile{
		EmployeeID:         "emp-1",
		Name:               "Ana",
		Type:               policy.TypeAdministrative,
		ScheduledMinutes:   core.HoursOf(6),
		AssignedBranch:     "north",
		AdditionalBranches: []string{"south", "east"},
		HourlyWage:         &wage,
	}
	require.NoError(t, s.SaveProfile(ctx, p))

	got, err := s.GetProfile(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Type, got.Type)
	assert.Equal(t, p.ScheduledMinutes, got.ScheduledMinutes)
	assert.Equal(t, p.AdditionalBranches, got.AdditionalBranches)
	require.NotNil(t, got.HourlyWage)
	assert.True(t, got.HourlyWage.Equal(wage))

	p.Name = "Ana María"
	p.HourlyWage = nil
	require.NoError(t, s.SaveProfile(ctx, p))
	got, err = s.GetProfile(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana María", got.Name)
	assert.Nil(t, got.HourlyWage)

	_, err = s.GetProfile(ctx, "ghost")
	assert.True(t, core.IsNotFound(err))

	list, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestHolidays(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveHoliday(ctx, core.Holiday{Date: date, Name: "Founders", Recurring: true}))
	require.NoError(t, s.SaveHoliday(ctx, core.Holiday{Date: date.AddDays(-30), Name: "Earlier"}))

	got, err := s.ListHolidays(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Earlier", got[0].Name)
	assert.True(t, got[1].Recurring)

	require.NoError(t, s.DeleteHoliday(ctx, date))
	assert.True(t, core.IsNotFound(s.DeleteHoliday(ctx, date)))
}

func TestEvents_AppendOnce(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	e := punch("ev-1", workcode.Entry, 8)

	require.NoError(t, s.AppendEvent(ctx, e))
	assert.ErrorIs(t, s.AppendEvent(ctx, e), core.ErrDuplicateEvent)

	ok, err := s.EventExists(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.EventExists(ctx, "ev-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvents_LoadIsOrderedAndHalfOpen(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for i, h := range []int{17, 8, 12, 0} {
		require.NoError(t, s.AppendEvent(ctx, punch(fmt.Sprintf("ev-%d", i), workcode.Entry, h)))
	}
	next := punch("ev-next", workcode.Exit, 0)
	next.Timestamp = date.AddDays(1).Start(time.UTC)
	require.NoError(t, s.AppendEvent(ctx, next))

	got, err := s.LoadEvents(ctx, "emp-1", date.Start(time.UTC), date.AddDays(1).Start(time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Timestamp.Before(got[i].Timestamp))
	}
	assert.Equal(t, biometric.VerifyFace, got[0].Verification)
	assert.Equal(t, 91, got[0].Confidence)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveProfile(ctx, policy.Profile{EmployeeID: "emp-1", Type: policy.TypeRegular}))
	require.NoError(t, s.AppendEvent(ctx, punch("ev-1", workcode.Entry, 8)))

	require.NoError(t, s.Reset(ctx))
	list, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	ok, err := s.EventExists(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
