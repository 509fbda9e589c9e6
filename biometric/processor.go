/*
processor.go - From raw punches to a coherent day

PURPOSE:
  Turns one employee-day of raw punches into ordered, deduplicated
  movements, derives entry/exit bounds and lunch/break durations, and
  collects every plausibility anomaly as a Conflict.

PIPELINE:
  1. Validate every event (fatal: nothing is returned)
  2. Stable sort by timestamp, ties by ID
  3. Dedup: same employee+device+code within the window of the last kept
     punch of that key is a duplicate of it
  4. Derive entry/exit from kept punches per calculation method
  5. Validate the kept code sequence (advisory)
  6. Mark Effective = kept and confident enough

OVERNIGHT:
  If the previous day ended on an entry-type punch and today does not open
  with ENTRY, the shift is treated as continuing: an ENTRY is implied at
  DayStart so the morning EXIT is neither flagged nor orphaned.

IDEMPOTENCY:
  Replaying a punch (same ID, device and code) lands inside the window and
  is discarded, so entry/exit and durations do not move.

SEE ALSO:
  - workcode/sequence.go: sequence rules
  - attendance/reconcile.go: the caller
*/
package biometric

import (
	"fmt"
	"sort"
	"time"

	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/workcode"
	"go.uber.org/zap"
)

const (
	DefaultDuplicateWindow = 120 * time.Second
	DefaultMinConfidence   = 85
)

type Processor struct {
	DuplicateWindow time.Duration
	MinConfidence   int
	Logger          *zap.Logger
}

// NewProcessor returns a processor with default thresholds.
func NewProcessor(logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		DuplicateWindow: DefaultDuplicateWindow,
		MinConfidence:   DefaultMinConfidence,
		Logger:          logger.Named("biometric"),
	}
}

// Input to Process.
type Input struct {
	Events   []Event
	Method   policy.CalculationMethod
	Previous *Event    // last punch of the prior day, if known
	DayStart time.Time // start of the local day; implied overnight ENTRY time
}

// Result of Process. Times are nil when they could not be derived.
type Result struct {
	Events       []ProcessedEvent
	Entry        *time.Time
	Exit         *time.Time
	Entry2       *time.Time
	Exit2        *time.Time
	LunchMinutes core.Minutes
	BreakMinutes core.Minutes
	Sequence     workcode.Validation
	Continued    bool
	Conflicts    []Conflict
}

// Kept returns the non-duplicate punches in order.
func (r Result) Kept() []Event {
	var out []Event
	for _, pe := range r.Events {
		if !pe.Duplicate {
			out = append(out, pe.Event)
		}
	}
	return out
}

// Anomalies counts duplicates, low-confidence and out-of-sequence conflicts.
func (r Result) Anomalies() int { return CountAnomalies(r.Conflicts) }

func (p *Processor) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *Processor) window() time.Duration {
	if p.DuplicateWindow <= 0 {
		return DefaultDuplicateWindow
	}
	return p.DuplicateWindow
}

// Process runs the pipeline over in.Events. The input slice is not modified.
func (p *Processor) Process(in Input) (Result, error) {
	for i, e := range in.Events {
		if err := e.Validate(); err != nil {
			return Result{}, fmt.Errorf("event %d: %w", i, err)
		}
	}

	sorted := make([]Event, len(in.Events))
	copy(sorted, in.Events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var res Result
	res.Events = p.dedup(sorted, &res.Conflicts)

	kept := res.Kept()
	if in.Previous != nil && in.Previous.WorkCode.IsEntry() && len(kept) > 0 && kept[0].WorkCode != workcode.Entry {
		res.Continued = true
		at := in.DayStart
		if at.IsZero() {
			at = in.Previous.Timestamp
		}
		res.Conflicts = append(res.Conflicts, Conflict{
			Kind:    ConflictOvernight,
			EventID: in.Previous.ID,
			Code:    in.Previous.WorkCode,
			At:      in.Previous.Timestamp,
			Message: "shift continues from the previous day",
		})
		kept = append([]Event{{ID: in.Previous.ID, EmployeeID: in.Previous.EmployeeID, Timestamp: at, WorkCode: workcode.Entry}}, kept...)
	}

	p.derive(&res, kept, in.Method)
	p.durations(&res, kept)
	p.sequence(&res, kept)

	// A weak read still shapes bounds and durations; it is only flagged.
	for i := range res.Events {
		pe := &res.Events[i]
		if pe.Duplicate {
			continue
		}
		pe.Effective = pe.Confidence >= p.MinConfidence
		if !pe.Effective {
			res.Conflicts = append(res.Conflicts, Conflict{
				Kind:    ConflictLowConfidence,
				EventID: pe.ID,
				Code:    pe.WorkCode,
				At:      pe.Timestamp,
				Message: fmt.Sprintf("confidence %d below %d", pe.Confidence, p.MinConfidence),
			})
		}
	}

	if n := res.Anomalies(); n > 0 {
		p.logger().Debug("punch anomalies",
			zap.Int("events", len(in.Events)),
			zap.Int("anomalies", n),
		)
	}
	return res, nil
}

type dedupKey struct {
	employee core.EmployeeID
	device   core.DeviceID
	code     workcode.Code
}

func (p *Processor) dedup(sorted []Event, conflicts *[]Conflict) []ProcessedEvent {
	out := make([]ProcessedEvent, len(sorted))
	last := make(map[dedupKey]Event)
	for i, e := range sorted {
		out[i] = ProcessedEvent{Event: e}
		k := dedupKey{e.EmployeeID, e.DeviceID, e.WorkCode}
		if prev, ok := last[k]; ok && e.Timestamp.Sub(prev.Timestamp) < p.window() {
			out[i].Duplicate = true
			out[i].DuplicateOf = prev.ID
			*conflicts = append(*conflicts, Conflict{
				Kind:    ConflictDuplicate,
				EventID: e.ID,
				Code:    e.WorkCode,
				At:      e.Timestamp,
				Message: fmt.Sprintf("duplicate of %s (%s apart)", prev.ID, e.Timestamp.Sub(prev.Timestamp)),
			})
			continue
		}
		last[k] = e
	}
	return out
}

// derive sets entry/exit bounds. ENTRY_EXIT splits the day into two pairs
// when an EXIT is followed by a fresh ENTRY.
func (p *Processor) derive(res *Result, kept []Event, method policy.CalculationMethod) {
	if len(kept) == 0 {
		return
	}
	if method == policy.MethodFirstLastMovement {
		res.Entry = timePtr(kept[0].Timestamp)
		if len(kept) >= 2 {
			res.Exit = timePtr(kept[len(kept)-1].Timestamp)
		}
		return
	}

	split := -1
	for i, e := range kept {
		if e.WorkCode != workcode.Exit {
			continue
		}
		for j := i + 1; j < len(kept); j++ {
			if kept[j].WorkCode == workcode.Entry {
				split = j
				break
			}
		}
		if split >= 0 {
			res.Entry = firstEntry(kept[:i+1])
			res.Exit = timePtr(e.Timestamp)
			res.Entry2 = timePtr(kept[split].Timestamp)
			res.Exit2 = lastExit(kept[split:])
			if extra := countCode(kept[split+1:], workcode.Entry); extra > 0 {
				res.Conflicts = append(res.Conflicts, Conflict{
					Kind:    ConflictTooManyPairs,
					Code:    workcode.Entry,
					Message: fmt.Sprintf("%d additional shift(s) folded into the second pair", extra),
				})
			}
			return
		}
	}
	res.Entry = firstEntry(kept)
	res.Exit = lastExit(kept)
}

// durations pairs each LUNCH_START/BREAK_START with the next matching end.
func (p *Processor) durations(res *Result, kept []Event) {
	var lunchAt, breakAt *Event
	for i := range kept {
		e := &kept[i]
		switch e.WorkCode {
		case workcode.LunchStart:
			if lunchAt != nil {
				res.Conflicts = append(res.Conflicts, unpaired(*lunchAt))
			}
			lunchAt = e
		case workcode.LunchEnd:
			if lunchAt != nil {
				res.LunchMinutes += core.MinutesBetween(lunchAt.Timestamp, e.Timestamp)
				lunchAt = nil
			}
		case workcode.BreakStart:
			if breakAt != nil {
				res.Conflicts = append(res.Conflicts, unpaired(*breakAt))
			}
			breakAt = e
		case workcode.BreakEnd:
			if breakAt != nil {
				res.BreakMinutes += core.MinutesBetween(breakAt.Timestamp, e.Timestamp)
				breakAt = nil
			}
		}
	}
	for _, open := range []*Event{lunchAt, breakAt} {
		if open != nil {
			res.Conflicts = append(res.Conflicts, unpaired(*open))
		}
	}
}

func (p *Processor) sequence(res *Result, kept []Event) {
	codes := make([]workcode.Code, len(kept))
	for i, e := range kept {
		codes[i] = e.WorkCode
	}
	offset := 0
	if res.Continued {
		offset = 1
	}
	v := workcode.ValidateSequence(codes)
	res.Sequence = workcode.Validation{Valid: v.Valid}
	for _, viol := range v.Violations {
		viol.Index -= offset
		res.Sequence.Violations = append(res.Sequence.Violations, viol)
		c := Conflict{Kind: ConflictOutOfSequence, Code: viol.Code, Message: viol.Message}
		if i := viol.Index + offset; i >= 0 && i < len(kept) {
			c.EventID = kept[i].ID
			c.At = kept[i].Timestamp
		}
		res.Conflicts = append(res.Conflicts, c)
	}
}

func unpaired(e Event) Conflict {
	return Conflict{
		Kind:    ConflictUnpairedBreak,
		EventID: e.ID,
		Code:    e.WorkCode,
		At:      e.Timestamp,
		Message: e.WorkCode.String() + " has no matching end",
	}
}

func firstEntry(events []Event) *time.Time {
	for _, e := range events {
		if e.WorkCode.IsEntry() {
			return timePtr(e.Timestamp)
		}
	}
	return nil
}

func lastExit(events []Event) *time.Time {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].WorkCode.IsExit() {
			return timePtr(events[i].Timestamp)
		}
	}
	return nil
}

func countCode(events []Event, c workcode.Code) int {
	n := 0
	for _, e := range events {
		if e.WorkCode == c {
			n++
		}
	}
	return n
}

func timePtr(t time.Time) *time.Time { return &t }
