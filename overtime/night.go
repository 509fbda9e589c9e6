package overtime

import (
	"time"

	"github.com/warp/attendance-engine/core"
)

const (
	NightStartHour = 22
	NightEndHour   = 6
)

// Interval is a worked stretch [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Minutes is the interval length, zero if End is not after Start.
func (iv Interval) Minutes() core.Minutes {
	if !iv.End.After(iv.Start) {
		return 0
	}
	return core.MinutesBetween(iv.Start, iv.End)
}

// NightMinutes returns how much of iv falls inside 22:00-06:00 windows,
// measured on the wall clock of loc (iv.Start's location when nil).
func NightMinutes(iv Interval, loc *time.Location) core.Minutes {
	if !iv.End.After(iv.Start) {
		return 0
	}
	if loc == nil {
		loc = iv.Start.Location()
	}
	start, end := iv.Start.In(loc), iv.End.In(loc)

	// The window opening the evening before start can still cover its morning.
	y, m, d := start.Date()
	day := time.Date(y, m, d-1, 0, 0, 0, 0, loc)

	var total time.Duration
	for !day.After(end) {
		dy, dm, dd := day.Date()
		wStart := time.Date(dy, dm, dd, NightStartHour, 0, 0, 0, loc)
		wEnd := time.Date(dy, dm, dd+1, NightEndHour, 0, 0, 0, loc)
		total += overlap(start, end, wStart, wEnd)
		day = time.Date(dy, dm, dd+1, 0, 0, 0, 0, loc)
	}
	return core.Minutes(total / time.Minute)
}

// NightMinutesOf sums NightMinutes over every interval.
func NightMinutesOf(intervals []Interval, loc *time.Location) core.Minutes {
	var n core.Minutes
	for _, iv := range intervals {
		n += NightMinutes(iv, loc)
	}
	return n
}

func overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	lo, hi := aStart, aEnd
	if bStart.After(lo) {
		lo = bStart
	}
	if bEnd.Before(hi) {
		hi = bEnd
	}
	if !hi.After(lo) {
		return 0
	}
	return hi.Sub(lo)
}
