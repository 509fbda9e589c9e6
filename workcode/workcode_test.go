package workcode_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/workcode"
)

func TestValidateSequence_EntryAloneIsValid(t *testing.T) {
	v := workcode.ValidateSequence([]workcode.Code{workcode.Entry})
	assert.True(t, v.Valid)
	assert.Empty(t, v.Violations)
}

func TestValidateSequence_ExitAloneNamesEntry(t *testing.T) {
	v := workcode.ValidateSequence([]workcode.Code{workcode.Exit})

	require.False(t, v.Valid)
	require.Len(t, v.Violations, 1)
	assert.Contains(t, v.Violations[0].Missing, workcode.Entry)
	assert.Contains(t, v.Messages()[0], "ENTRY")
}

func TestValidateSequence_FullDay(t *testing.T) {
	day := []workcode.Code{
		workcode.Entry,
		workcode.BreakStart, workcode.BreakEnd,
		workcode.LunchStart, workcode.LunchEnd,
		workcode.Exit,
	}
	v := workcode.ValidateSequence(day)
	assert.True(t, v.Valid, v.Messages())
}

func TestValidateSequence_LunchEndWithoutStart(t *testing.T) {
	v := workcode.ValidateSequence([]workcode.Code{workcode.Entry, workcode.LunchEnd, workcode.Exit})

	require.False(t, v.Valid)
	require.Len(t, v.Violations, 1)
	assert.Equal(t, 1, v.Violations[0].Index)
	assert.Equal(t, workcode.LunchEnd, v.Violations[0].Code)
	assert.Equal(t, []workcode.Code{workcode.LunchStart}, v.Violations[0].Missing)
}

func TestValidateSequence_ReportsEveryViolation(t *testing.T) {
	v := workcode.ValidateSequence([]workcode.Code{workcode.BreakEnd, workcode.LunchEnd, workcode.Code(9)})

	assert.False(t, v.Valid)
	assert.Len(t, v.Violations, 3)
}

func TestValidateSequence_Empty(t *testing.T) {
	assert.True(t, workcode.ValidateSequence(nil).Valid)
}

func TestExpectedNext(t *testing.T) {
	assert.ElementsMatch(t,
		[]workcode.Code{workcode.Exit, workcode.BreakStart, workcode.LunchStart},
		workcode.ExpectedNext(workcode.Entry))
	assert.Equal(t, []workcode.Code{workcode.LunchEnd}, workcode.ExpectedNext(workcode.LunchStart))
	assert.Equal(t, []workcode.Code{workcode.BreakEnd}, workcode.ExpectedNext(workcode.BreakStart))
	assert.True(t, workcode.IsExpected(workcode.Exit, workcode.Entry))
	assert.False(t, workcode.IsExpected(workcode.LunchStart, workcode.Exit))
}

func TestFlags(t *testing.T) {
	for _, c := range []workcode.Code{workcode.Entry, workcode.BreakEnd, workcode.LunchEnd} {
		assert.True(t, c.IsEntry(), c.String())
		assert.False(t, c.IsExit(), c.String())
	}
	for _, c := range []workcode.Code{workcode.Exit, workcode.BreakStart, workcode.LunchStart} {
		assert.True(t, c.IsExit(), c.String())
	}
	assert.Equal(t, 1, workcode.Entry.Priority())
	assert.Equal(t, 2, workcode.LunchStart.Priority())
	assert.Empty(t, workcode.Entry.Predecessors())
}

func TestParse(t *testing.T) {
	c, err := workcode.Parse(4)
	require.NoError(t, err)
	assert.Equal(t, workcode.LunchStart, c)

	_, err = workcode.Parse(6)
	assert.ErrorIs(t, err, core.ErrValidation)

	c, err = workcode.ParseName("break_end")
	require.NoError(t, err)
	assert.Equal(t, workcode.BreakEnd, c)
}

func TestJSON_AcceptsNumbersAndNames(t *testing.T) {
	var got struct {
		A workcode.Code `json:"a"`
		B workcode.Code `json:"b"`
		C workcode.Code `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":"5","c":"BREAK_START"}`), &got))
	assert.Equal(t, workcode.Exit, got.A)
	assert.Equal(t, workcode.LunchEnd, got.B)
	assert.Equal(t, workcode.BreakStart, got.C)

	out, err := json.Marshal(workcode.LunchStart)
	require.NoError(t, err)
	assert.Equal(t, `"LUNCH_START"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a":7}`), &got))
}
