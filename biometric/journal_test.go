package biometric_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/store/memory"
	"github.com/warp/attendance-engine/workcode"
)

func TestJournal_RecordSkipsReplays(t *testing.T) {
	ctx := context.Background()
	j := biometric.NewJournal(memory.New(), nil)
	in, out := punch(workcode.Entry, at(8, 0, 0)), punch(workcode.Exit, at(17, 0, 0))

	added, err := j.Record(ctx, []biometric.Event{in, out})
	require.NoError(t, err)
	assert.Len(t, added, 2)

	added, err = j.Record(ctx, []biometric.Event{out, in})
	require.NoError(t, err)
	assert.Empty(t, added)

	got, err := j.Range(ctx, "emp-1", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, in.ID, got[0].ID, "ordered by timestamp")
}

func TestJournal_InvalidEventRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	j := biometric.NewJournal(memory.New(), nil)
	good := punch(workcode.Entry, at(8, 0, 0))
	bad := punch(workcode.Exit, at(17, 0, 0))
	bad.Confidence = 150

	added, err := j.Record(ctx, []biometric.Event{good, bad})
	require.Error(t, err)
	assert.Empty(t, added)

	got, err := j.Range(ctx, "emp-1", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got, "nothing is journaled")

	added, err = j.Record(ctx, []biometric.Event{good})
	require.NoError(t, err)
	assert.Len(t, added, 1)
}

func TestJournal_RangeIsHalfOpen(t *testing.T) {
	ctx := context.Background()
	j := biometric.NewJournal(memory.New(), nil)
	midnight := punch(workcode.Exit, day.Add(24*time.Hour))
	_, err := j.Record(ctx, []biometric.Event{punch(workcode.Entry, day), midnight})
	require.NoError(t, err)

	got, err := j.Range(ctx, "emp-1", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestJournal_LastBefore(t *testing.T) {
	ctx := context.Background()
	j := biometric.NewJournal(memory.New(), nil)

	none, err := j.LastBefore(ctx, "emp-1", day)
	require.NoError(t, err)
	assert.Nil(t, none)

	late := punch(workcode.Entry, day.Add(-2*time.Hour))
	stale := punch(workcode.Exit, day.Add(-72*time.Hour))
	_, err = j.Record(ctx, []biometric.Event{stale, late, punch(workcode.Exit, at(6, 0, 0))})
	require.NoError(t, err)

	prev, err := j.LastBefore(ctx, "emp-1", day)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, late.ID, prev.ID)

	prev, err = j.LastBefore(ctx, "emp-1", day.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, prev, "punches older than the lookback are ignored")
}
