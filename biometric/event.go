/*
event.go - Raw punches and their annotations

PURPOSE:
  A BiometricEvent is an immutable fact: employee X punched code C on
  device D at time T. The engine never edits one. Processing returns
  annotated copies (ProcessedEvent) saying whether the punch was a
  duplicate and whether it counts.

CONFIDENCE:
  Terminals report a 0-100 match score. Punches under the processor's
  threshold still shape the day but are flagged for review.

SEE ALSO:
  - processor.go: dedup, ordering, entry/exit derivation
  - journal.go: append-only persistence of raw punches
*/
package biometric

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/workcode"
)

type VerificationType string

const (
	VerifyFingerprint VerificationType = "FINGERPRINT"
	VerifyFace        VerificationType = "FACE"
	VerifyCard        VerificationType = "CARD"
	VerifyPIN         VerificationType = "PIN"
	VerifyManual      VerificationType = "MANUAL"
)

func ParseVerificationType(s string) (VerificationType, error) {
	v := VerificationType(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case VerifyFingerprint, VerifyFace, VerifyCard, VerifyPIN, VerifyManual:
		return v, nil
	case "":
		return VerifyFingerprint, nil
	}
	return "", core.Invalid("verification_type", s, "unknown verification type")
}

// Event is a raw punch.
type Event struct {
	ID           core.EventID
	EmployeeID   core.EmployeeID
	DeviceID     core.DeviceID
	Timestamp    time.Time
	WorkCode     workcode.Code
	Verification VerificationType
	Confidence   int
}

// NewEventID generates a random event ID.
func NewEventID() core.EventID { return core.EventID(uuid.NewString()) }

// Validate rejects structurally broken punches.
func (e Event) Validate() error {
	if e.ID == "" {
		return core.Invalid("id", nil, "is required")
	}
	if e.EmployeeID == "" {
		return core.Invalid("employee_id", nil, "is required")
	}
	if e.Timestamp.IsZero() {
		return core.Invalid("timestamp", nil, "is required")
	}
	if !e.WorkCode.Valid() {
		return core.Invalid("work_code", int(e.WorkCode), "must be between 0 and 5")
	}
	if e.Confidence < 0 || e.Confidence > 100 {
		return core.Invalid("confidence_score", e.Confidence, "must be between 0 and 100")
	}
	return nil
}

// ProcessedEvent is an Event annotated by the processor.
type ProcessedEvent struct {
	Event
	Duplicate   bool
	DuplicateOf core.EventID
	Effective   bool
}

// =============================================================================
// CONFLICTS
// =============================================================================

// ConflictKind classifies non-fatal anomalies.
type ConflictKind string

const (
	ConflictDuplicate     ConflictKind = "duplicate"
	ConflictOutOfSequence ConflictKind = "out_of_sequence"
	ConflictLowConfidence ConflictKind = "low_confidence"
	ConflictOvernight     ConflictKind = "overnight_continuation"
	ConflictUnpairedBreak ConflictKind = "unpaired_break"
	ConflictOutsideDay    ConflictKind = "outside_day"
	ConflictLunchClamped  ConflictKind = "lunch_clamped"
	ConflictBelowMinimum  ConflictKind = "below_minimum"
	ConflictTooManyPairs  ConflictKind = "too_many_pairs"
)

// Anomaly reports whether the kind counts toward the review threshold.
func (k ConflictKind) Anomaly() bool {
	switch k {
	case ConflictDuplicate, ConflictOutOfSequence, ConflictLowConfidence:
		return true
	}
	return false
}

// Conflict is a plausibility warning attached to a result.
type Conflict struct {
	Kind    ConflictKind  `json:"kind"`
	EventID core.EventID  `json:"event_id,omitempty"`
	Code    workcode.Code `json:"work_code"`
	At      time.Time     `json:"at,omitempty"`
	Message string        `json:"message"`
}

// CountAnomalies counts conflicts that push a record toward review.
func CountAnomalies(conflicts []Conflict) int {
	n := 0
	for _, c := range conflicts {
		if c.Kind.Anomaly() {
			n++
		}
	}
	return n
}
