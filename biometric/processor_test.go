package biometric_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/workcode"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var day = time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)

func at(hour, min, sec int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second)
}

var seq int

func punch(code workcode.Code, ts time.Time) biometric.Event {
	seq++
	return biometric.Event{
		ID:           core.EventID(fmt.Sprintf("ev-%03d", seq)),
		EmployeeID:   "emp-1",
		DeviceID:     "dev-1",
		Timestamp:    ts,
		WorkCode:     code,
		Verification: biometric.VerifyFingerprint,
		Confidence:   95,
	}
}

func process(t *testing.T, method policy.CalculationMethod, events ...biometric.Event) biometric.Result {
	t.Helper()
	res, err := biometric.NewProcessor(nil).Process(biometric.Input{Events: events, Method: method})
	require.NoError(t, err)
	return res
}

func kinds(conflicts []biometric.Conflict) []biometric.ConflictKind {
	var out []biometric.ConflictKind
	for _, c := range conflicts {
		out = append(out, c.Kind)
	}
	return out
}

// =============================================================================
// DEDUP
// =============================================================================

func TestDedup_WindowBoundary(t *testing.T) {
	first := punch(workcode.Entry, at(8, 0, 0))

	res := process(t, policy.MethodEntryExit, first, punch(workcode.Entry, at(8, 1, 59)))
	require.Len(t, res.Events, 2)
	assert.True(t, res.Events[1].Duplicate, "119s apart is a duplicate")
	assert.Equal(t, first.ID, res.Events[1].DuplicateOf)
	assert.Contains(t, kinds(res.Conflicts), biometric.ConflictDuplicate)

	res = process(t, policy.MethodEntryExit, first, punch(workcode.Entry, at(8, 2, 1)))
	assert.False(t, res.Events[1].Duplicate, "121s apart is not a duplicate")
}

func TestDedup_KeyIncludesDeviceAndCode(t *testing.T) {
	a := punch(workcode.Entry, at(8, 0, 0))
	b := punch(workcode.Entry, at(8, 0, 30))
	b.DeviceID = "dev-2"
	c := punch(workcode.Exit, at(8, 0, 40))

	res := process(t, policy.MethodEntryExit, a, b, c)
	for _, pe := range res.Events {
		assert.False(t, pe.Duplicate, pe.ID)
	}
}

func TestDedup_ComparesAgainstLastKept(t *testing.T) {
	// 0s kept, 100s duplicate of it, 200s is 200s after the kept one: kept.
	a := punch(workcode.Entry, at(8, 0, 0))
	b := punch(workcode.Entry, at(8, 1, 40))
	c := punch(workcode.Entry, at(8, 3, 20))

	res := process(t, policy.MethodEntryExit, c, b, a)
	require.Len(t, res.Events, 3)
	assert.Equal(t, a.ID, res.Events[0].ID)
	assert.False(t, res.Events[0].Duplicate)
	assert.True(t, res.Events[1].Duplicate)
	assert.False(t, res.Events[2].Duplicate)
}

func TestProcess_IsIdempotentUnderReplay(t *testing.T) {
	events := []biometric.Event{
		punch(workcode.Entry, at(8, 0, 0)),
		punch(workcode.LunchStart, at(12, 0, 0)),
		punch(workcode.LunchEnd, at(13, 0, 0)),
		punch(workcode.Exit, at(18, 0, 0)),
	}
	once := process(t, policy.MethodEntryExit, events...)
	twice := process(t, policy.MethodEntryExit, append(append([]biometric.Event{}, events...), events...)...)

	assert.Equal(t, *once.Entry, *twice.Entry)
	assert.Equal(t, *once.Exit, *twice.Exit)
	assert.Equal(t, once.LunchMinutes, twice.LunchMinutes)
	assert.Len(t, twice.Kept(), 4)
}

// =============================================================================
// DERIVATION
// =============================================================================

func TestDerive_EntryExitWithLunch(t *testing.T) {
	res := process(t, policy.MethodEntryExit,
		punch(workcode.Exit, at(18, 0, 0)),
		punch(workcode.LunchEnd, at(13, 0, 0)),
		punch(workcode.Entry, at(8, 0, 0)),
		punch(workcode.LunchStart, at(12, 0, 0)),
	)

	require.NotNil(t, res.Entry)
	require.NotNil(t, res.Exit)
	assert.Equal(t, at(8, 0, 0), *res.Entry)
	assert.Equal(t, at(18, 0, 0), *res.Exit)
	assert.Equal(t, core.Minutes(60), res.LunchMinutes)
	assert.True(t, res.Sequence.Valid)
	assert.Empty(t, res.Conflicts)
	for _, pe := range res.Events {
		assert.True(t, pe.Effective)
	}
}

func TestDerive_SplitShift(t *testing.T) {
	res := process(t, policy.MethodEntryExit,
		punch(workcode.Entry, at(6, 0, 0)),
		punch(workcode.Exit, at(10, 0, 0)),
		punch(workcode.Entry, at(16, 0, 0)),
		punch(workcode.Exit, at(20, 0, 0)),
	)

	assert.Equal(t, at(6, 0, 0), *res.Entry)
	assert.Equal(t, at(10, 0, 0), *res.Exit)
	require.NotNil(t, res.Entry2)
	require.NotNil(t, res.Exit2)
	assert.Equal(t, at(16, 0, 0), *res.Entry2)
	assert.Equal(t, at(20, 0, 0), *res.Exit2)
	assert.True(t, res.Sequence.Valid)
}

func TestDerive_FirstLastMovement(t *testing.T) {
	res := process(t, policy.MethodFirstLastMovement,
		punch(workcode.BreakStart, at(9, 0, 0)),
		punch(workcode.BreakEnd, at(9, 15, 0)),
		punch(workcode.LunchStart, at(17, 30, 0)),
	)
	assert.Equal(t, at(9, 0, 0), *res.Entry)
	assert.Equal(t, at(17, 30, 0), *res.Exit)
	assert.Equal(t, core.Minutes(15), res.BreakMinutes)

	single := process(t, policy.MethodFirstLastMovement, punch(workcode.Entry, at(9, 0, 0)))
	assert.NotNil(t, single.Entry)
	assert.Nil(t, single.Exit)
}

func TestDerive_EntryOnly(t *testing.T) {
	res := process(t, policy.MethodEntryExit, punch(workcode.Entry, at(8, 0, 0)))
	assert.NotNil(t, res.Entry)
	assert.Nil(t, res.Exit)
	assert.True(t, res.Sequence.Valid)
}

// =============================================================================
// CONFLICTS
// =============================================================================

func TestConflicts_OutOfSequence(t *testing.T) {
	res := process(t, policy.MethodEntryExit,
		punch(workcode.Exit, at(17, 0, 0)),
	)
	assert.False(t, res.Sequence.Valid)
	assert.Equal(t, []biometric.ConflictKind{biometric.ConflictOutOfSequence}, kinds(res.Conflicts))
	assert.Equal(t, 1, res.Anomalies())
	assert.Nil(t, res.Entry)
	assert.NotNil(t, res.Exit)
}

func TestConflicts_LowConfidence(t *testing.T) {
	weak := punch(workcode.Entry, at(8, 0, 0))
	weak.Confidence = 84
	res := process(t, policy.MethodEntryExit, weak, punch(workcode.Exit, at(16, 0, 0)))

	assert.False(t, res.Events[0].Effective)
	assert.True(t, res.Events[1].Effective)
	assert.Equal(t, []biometric.ConflictKind{biometric.ConflictLowConfidence}, kinds(res.Conflicts))
	assert.Equal(t, at(8, 0, 0), *res.Entry, "low confidence still shapes the day")
}

func TestConflicts_UnpairedLunch(t *testing.T) {
	res := process(t, policy.MethodEntryExit,
		punch(workcode.Entry, at(8, 0, 0)),
		punch(workcode.LunchStart, at(12, 0, 0)),
	)
	assert.Contains(t, kinds(res.Conflicts), biometric.ConflictUnpairedBreak)
	assert.Zero(t, res.LunchMinutes)
	assert.Zero(t, res.Anomalies())
}

func TestOvernightContinuation(t *testing.T) {
	prev := punch(workcode.Entry, day.Add(-2*time.Hour))
	exit := punch(workcode.Exit, at(6, 0, 0))

	res, err := biometric.NewProcessor(nil).Process(biometric.Input{
		Events:   []biometric.Event{exit},
		Method:   policy.MethodEntryExit,
		Previous: &prev,
		DayStart: day,
	})
	require.NoError(t, err)

	assert.True(t, res.Continued)
	assert.True(t, res.Sequence.Valid)
	assert.Equal(t, []biometric.ConflictKind{biometric.ConflictOvernight}, kinds(res.Conflicts))
	assert.Equal(t, day, *res.Entry)
	assert.Equal(t, at(6, 0, 0), *res.Exit)
	assert.Len(t, res.Events, 1)
}

func TestOvernight_NotImpliedWhenDayOpensWithEntry(t *testing.T) {
	prev := punch(workcode.Entry, day.Add(-2*time.Hour))
	res, err := biometric.NewProcessor(nil).Process(biometric.Input{
		Events:   []biometric.Event{punch(workcode.Entry, at(8, 0, 0))},
		Method:   policy.MethodEntryExit,
		Previous: &prev,
	})
	require.NoError(t, err)
	assert.False(t, res.Continued)
	assert.Empty(t, res.Conflicts)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestProcess_RejectsMalformedEvents(t *testing.T) {
	cases := map[string]func(*biometric.Event){
		"no timestamp":  func(e *biometric.Event) { e.Timestamp = time.Time{} },
		"bad code":      func(e *biometric.Event) { e.WorkCode = 6 },
		"confidence":    func(e *biometric.Event) { e.Confidence = 101 },
		"no employee":   func(e *biometric.Event) { e.EmployeeID = "" },
		"negative conf": func(e *biometric.Event) { e.Confidence = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			bad := punch(workcode.Exit, at(17, 0, 0))
			mutate(&bad)
			_, err := biometric.NewProcessor(nil).Process(biometric.Input{
				Events: []biometric.Event{punch(workcode.Entry, at(8, 0, 0)), bad},
				Method: policy.MethodEntryExit,
			})
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestProcess_DoesNotModifyInput(t *testing.T) {
	events := []biometric.Event{punch(workcode.Exit, at(17, 0, 0)), punch(workcode.Entry, at(8, 0, 0))}
	first := events[0].ID
	process(t, policy.MethodEntryExit, events...)
	assert.Equal(t, first, events[0].ID)
}

func TestParseVerificationType(t *testing.T) {
	v, err := biometric.ParseVerificationType("face")
	require.NoError(t, err)
	assert.Equal(t, biometric.VerifyFace, v)

	_, err = biometric.ParseVerificationType("retina")
	assert.ErrorIs(t, err, core.ErrValidation)
}
