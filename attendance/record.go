/*
record.go - One employee, one calendar date

PURPOSE:
  An AttendanceRecord is a snapshot: the movements of a day, the bounds
  derived from them, the hour breakdown and the status. Snapshots are
  values. Every change goes through a transition function (transitions.go)
  that returns a new snapshot and leaves its input untouched.

STATUS DERIVATION (first match wins):
  leave held                          -> that leave (sticky)
  manual correction held              -> MODIFICADO
  review flagged                      -> REVISION
  no entry, no exit                   -> AUSENTE
  entry only, or second pair open     -> PENDIENTE
  exit only                           -> INCONSISTENTE
  entry < exit and sequence valid     -> COMPLETO
  otherwise                           -> INCONSISTENTE

WORKED MINUTES:
  (exit - entry) + (exit2 - entry2) - lunch, floored at zero. Pairs that
  are incomplete or inverted contribute nothing. Breaks are paid.

SEE ALSO:
  - transitions.go: New, RegisterEntry, Correct, ApplyLeave, ...
  - reconcile.go: punches -> record
*/
package attendance

import (
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/overtime"
	"github.com/warp/attendance-engine/workcode"
)

// MaxLunch bounds the lunch duration of a day.
const MaxLunch = 240 * time.Minute

const maxLunchMinutes = core.Minutes(MaxLunch / time.Minute)

// Movement is a punch as stored on a record.
type Movement struct {
	EventID      core.EventID               `json:"event_id"`
	DeviceID     core.DeviceID              `json:"device_id"`
	Timestamp    time.Time                  `json:"timestamp"`
	WorkCode     workcode.Code              `json:"work_code"`
	Verification biometric.VerificationType `json:"verification_type"`
	Confidence   int                        `json:"confidence_score"`
	Duplicate    bool                       `json:"duplicate,omitempty"`
	Effective    bool                       `json:"effective"`
}

// Manual reports a movement entered by a person rather than a terminal.
func (m Movement) Manual() bool { return m.Verification == biometric.VerifyManual }

// Event rebuilds the raw punch behind the movement.
func (m Movement) Event(employee core.EmployeeID) biometric.Event {
	return biometric.Event{
		ID:           m.EventID,
		EmployeeID:   employee,
		DeviceID:     m.DeviceID,
		Timestamp:    m.Timestamp,
		WorkCode:     m.WorkCode,
		Verification: m.Verification,
		Confidence:   m.Confidence,
	}
}

func movementOf(pe biometric.ProcessedEvent) Movement {
	return Movement{
		EventID:      pe.ID,
		DeviceID:     pe.DeviceID,
		Timestamp:    pe.Timestamp,
		WorkCode:     pe.WorkCode,
		Verification: pe.Verification,
		Confidence:   pe.Confidence,
		Duplicate:    pe.Duplicate,
		Effective:    pe.Effective,
	}
}

// Record is the AttendanceRecord snapshot.
type Record struct {
	ID            core.RecordID
	EmployeeID    core.EmployeeID
	Date          core.Date
	Entry         *time.Time
	Exit          *time.Time
	Entry2        *time.Time
	Exit2         *time.Time
	LunchMinutes  core.Minutes
	BreakMinutes  core.Minutes
	Hours         overtime.Breakdown
	Status        Status
	Leave         Status
	Manual        bool
	Modified      bool
	Review        bool
	ReviewReason  string
	SequenceValid bool
	Continued     bool
	ModifiedBy    string
	ModifiedAt    *time.Time
	Notes         string
	Movements     []Movement
	Conflicts     []biometric.Conflict
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func newRecordID() core.RecordID { return core.RecordID(uuid.NewString()) }

// WorkedMinutes applies the worked-time formula to the record's bounds.
func (r Record) WorkedMinutes() core.Minutes {
	worked := pairMinutes(r.Entry, r.Exit) + pairMinutes(r.Entry2, r.Exit2) - r.LunchMinutes
	if worked < 0 {
		return 0
	}
	return worked
}

// Intervals returns the complete, ordered pairs as work intervals.
func (r Record) Intervals() []overtime.Interval {
	var out []overtime.Interval
	for _, p := range [][2]*time.Time{{r.Entry, r.Exit}, {r.Entry2, r.Exit2}} {
		if p[0] != nil && p[1] != nil && p[0].Before(*p[1]) {
			out = append(out, overtime.Interval{Start: *p[0], End: *p[1]})
		}
	}
	return out
}

// Anomalies counts the record's conflicts that weigh toward review.
func (r Record) Anomalies() int { return biometric.CountAnomalies(r.Conflicts) }

// HasMovements reports whether any punch reached the record.
func (r Record) HasMovements() bool { return len(r.Movements) > 0 }

func (r Record) derive() Status {
	switch {
	case r.Leave != "":
		return r.Leave
	case r.Modified:
		return StatusModified
	case r.Review:
		return StatusReview
	case r.Entry == nil && r.Exit == nil:
		return StatusAbsent
	case r.Entry != nil && r.Exit == nil:
		return StatusPending
	case r.Entry == nil:
		return StatusInconsistent
	case r.Entry2 != nil && r.Exit2 == nil:
		return StatusPending
	}
	if !r.Entry.Before(*r.Exit) || !r.SequenceValid {
		return StatusInconsistent
	}
	if r.Entry2 != nil && (r.Exit2 == nil || !r.Entry2.Before(*r.Exit2)) {
		return StatusInconsistent
	}
	return StatusComplete
}

// Validate enforces the structural invariants of a snapshot.
func (r Record) Validate() error {
	if r.EmployeeID == "" {
		return core.Invalid("employee_id", nil, "is required")
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if r.LunchMinutes < 0 || r.LunchMinutes > maxLunchMinutes {
		return core.Invalid("lunch_minutes", int(r.LunchMinutes), "must be between 0 and 240")
	}
	if r.BreakMinutes < 0 {
		return core.Invalid("break_minutes", int(r.BreakMinutes), "must not be negative")
	}
	h := r.Hours
	for _, m := range []core.Minutes{h.Regular, h.Surcharge25, h.Supplementary50, h.Extraordinary100, h.Night} {
		if m < 0 {
			return core.Invalid("hours", m.Hours(), "must not be negative")
		}
	}
	if r.Leave != "" && !r.Leave.IsLeave() {
		return core.Invalid("leave", string(r.Leave), "unknown leave status")
	}
	for i := 1; i < len(r.Movements); i++ {
		if r.Movements[i].Timestamp.Before(r.Movements[i-1].Timestamp) {
			return core.Invalid("movements", i, "must be sorted by timestamp")
		}
	}
	return nil
}

func pairMinutes(in, out *time.Time) core.Minutes {
	if in == nil || out == nil || !in.Before(*out) {
		return 0
	}
	return core.MinutesBetween(*in, *out)
}

// Clone copies every slice and pointer so the result shares nothing with r.
func (r Record) Clone() Record {
	c := r
	c.Entry = copyTime(r.Entry)
	c.Exit = copyTime(r.Exit)
	c.Entry2 = copyTime(r.Entry2)
	c.Exit2 = copyTime(r.Exit2)
	c.ModifiedAt = copyTime(r.ModifiedAt)
	c.Movements = append([]Movement(nil), r.Movements...)
	c.Conflicts = append([]biometric.Conflict(nil), r.Conflicts...)
	if r.Hours.Pay != nil {
		p := *r.Hours.Pay
		c.Hours.Pay = &p
	}
	return c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
