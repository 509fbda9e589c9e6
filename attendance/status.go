package attendance

import (
	"strings"

	"github.com/warp/attendance-engine/core"
)

// =============================================================================
// STATUS
// =============================================================================

// Status of an attendance record. It is always derived from the record's
// facts, never assigned directly.
type Status string

const (
	StatusAbsent       Status = "AUSENTE"
	StatusPending      Status = "PENDIENTE"
	StatusInconsistent Status = "INCONSISTENTE"
	StatusComplete     Status = "COMPLETO"
	StatusVacation     Status = "VACACIONES"
	StatusPermission   Status = "PERMISO"
	StatusSickLeave    Status = "INCAPACIDAD"
	StatusHoliday      Status = "FERIADO"
	StatusModified     Status = "MODIFICADO"
	StatusReview       Status = "REVISION"
)

// AllStatuses lists every status in display order.
func AllStatuses() []Status {
	return []Status{
		StatusAbsent, StatusPending, StatusInconsistent, StatusComplete,
		StatusVacation, StatusPermission, StatusSickLeave, StatusHoliday,
		StatusModified, StatusReview,
	}
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllStatuses() {
		if st == known {
			return st, nil
		}
	}
	return "", core.Invalid("status", s, "unknown status")
}

// ParseLeave accepts only leave statuses.
func ParseLeave(s string) (Status, error) {
	st, err := ParseStatus(s)
	if err != nil || !st.IsLeave() {
		return "", core.Invalid("leave", s, "must be VACACIONES, PERMISO, INCAPACIDAD or FERIADO")
	}
	return st, nil
}

func (s Status) IsLeave() bool {
	switch s {
	case StatusVacation, StatusPermission, StatusSickLeave, StatusHoliday:
		return true
	}
	return false
}

func (s Status) Description() string {
	switch s {
	case StatusAbsent:
		return "No movements recorded"
	case StatusPending:
		return "Entry recorded, waiting for exit"
	case StatusInconsistent:
		return "Movements do not form a valid day"
	case StatusComplete:
		return "Entry and exit recorded"
	case StatusVacation:
		return "On vacation"
	case StatusPermission:
		return "Permission granted"
	case StatusSickLeave:
		return "Medical leave"
	case StatusHoliday:
		return "Holiday"
	case StatusModified:
		return "Manually corrected"
	case StatusReview:
		return "Waiting for review"
	}
	return "Unknown"
}

func (s Status) Color() string {
	switch s {
	case StatusAbsent:
		return "#9E9E9E"
	case StatusPending:
		return "#FFC107"
	case StatusInconsistent:
		return "#F44336"
	case StatusComplete:
		return "#4CAF50"
	case StatusVacation:
		return "#2196F3"
	case StatusPermission:
		return "#00BCD4"
	case StatusSickLeave:
		return "#9C27B0"
	case StatusHoliday:
		return "#3F51B5"
	case StatusModified:
		return "#FF9800"
	case StatusReview:
		return "#E91E63"
	}
	return "#000000"
}

// =============================================================================
// ACTIONS
// =============================================================================

// Action is something a user can do to a record.
type Action string

const (
	ActionRegisterEntry Action = "register_entry"
	ActionRegisterExit  Action = "register_exit"
	ActionSetLunch      Action = "set_lunch"
	ActionCorrect       Action = "correct"
	ActionApplyLeave    Action = "apply_leave"
	ActionClearLeave    Action = "clear_leave"
	ActionFlagReview    Action = "flag_review"
	ActionRecalculate   Action = "recalculate"
)

// Actions lists what a user may do in status s.
func (s Status) Actions() []Action {
	switch s {
	case StatusAbsent:
		return []Action{ActionRegisterEntry, ActionApplyLeave, ActionCorrect}
	case StatusPending:
		return []Action{ActionRegisterExit, ActionSetLunch, ActionCorrect, ActionApplyLeave, ActionFlagReview}
	case StatusInconsistent:
		return []Action{ActionRegisterEntry, ActionRegisterExit, ActionCorrect, ActionApplyLeave, ActionFlagReview}
	case StatusComplete:
		return []Action{ActionSetLunch, ActionCorrect, ActionApplyLeave, ActionFlagReview, ActionRecalculate}
	case StatusVacation, StatusPermission, StatusSickLeave, StatusHoliday:
		return []Action{ActionClearLeave}
	case StatusModified:
		return []Action{ActionSetLunch, ActionCorrect, ActionRecalculate, ActionFlagReview}
	case StatusReview:
		return []Action{ActionRegisterEntry, ActionRegisterExit, ActionSetLunch, ActionCorrect, ActionApplyLeave, ActionRecalculate}
	}
	return nil
}

func (s Status) Allows(a Action) bool {
	for _, x := range s.Actions() {
		if x == a {
			return true
		}
	}
	return false
}
