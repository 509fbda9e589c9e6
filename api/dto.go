/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's model from the external API contract: hours travel as
  decimals, money as fixed two-decimal strings, dates as YYYY-MM-DD.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags, checked by decode()
  before a handler sees them. Domain rules (status actions, lunch bounds,
  pair ordering) stay in the engine and come back as core.ErrValidation.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/overtime"
	"github.com/warp/attendance-engine/payroll"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/workcode"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	EmployeeType       string   `json:"employee_type"`
	ScheduledHours     float64  `json:"scheduled_hours"`
	AssignedBranch     string   `json:"assigned_branch,omitempty"`
	AdditionalBranches []string `json:"additional_branches,omitempty"`
	HourlyWage         *string  `json:"hourly_wage,omitempty"`
}

// CreateEmployeeRequest creates or replaces an employee profile.
type CreateEmployeeRequest struct {
	ID                 string           `json:"id" validate:"required,max=64"`
	Name               string           `json:"name" validate:"required,max=200"`
	EmployeeType       string           `json:"employee_type" validate:"required,oneof=regular administrative"`
	ScheduledHours     float64          `json:"scheduled_hours" validate:"gte=0,lte=12"`
	AssignedBranch     string           `json:"assigned_branch" validate:"max=64"`
	AdditionalBranches []string         `json:"additional_branches" validate:"dive,required,max=64"`
	HourlyWage         *decimal.Decimal `json:"hourly_wage"`
}

func toEmployeeDTO(p policy.Profile) EmployeeDTO {
	dto := EmployeeDTO{
		ID:                 string(p.EmployeeID),
		Name:               p.Name,
		EmployeeType:       string(p.Type),
		ScheduledHours:     p.Scheduled().Hours(),
		AssignedBranch:     p.AssignedBranch,
		AdditionalBranches: p.AdditionalBranches,
	}
	if p.HourlyWage != nil {
		w := p.HourlyWage.StringFixed(2)
		dto.HourlyWage = &w
	}
	return dto
}

func (req CreateEmployeeRequest) profile() policy.Profile {
	return policy.Profile{
		EmployeeID:         core.EmployeeID(req.ID),
		Name:               req.Name,
		Type:               policy.EmployeeType(req.EmployeeType),
		ScheduledMinutes:   core.MinutesFromHours(req.ScheduledHours),
		AssignedBranch:     req.AssignedBranch,
		AdditionalBranches: req.AdditionalBranches,
		HourlyWage:         req.HourlyWage,
	}
}

// =============================================================================
// PUNCHES
// =============================================================================

// PunchRequest is one raw punch. A missing ID is generated.
type PunchRequest struct {
	ID               string        `json:"id" validate:"max=64"`
	EmployeeID       string        `json:"employee_id" validate:"required"`
	DeviceID         string        `json:"device_id"`
	Timestamp        time.Time     `json:"timestamp" validate:"required"`
	WorkCode         workcode.Code `json:"work_code" validate:"gte=0,lte=5"`
	VerificationType string        `json:"verification_type" validate:"omitempty,oneof=FINGERPRINT FACE CARD PIN MANUAL"`
	ConfidenceScore  int           `json:"confidence_score" validate:"gte=0,lte=100"`
}

// IngestRequest carries a batch of punches.
type IngestRequest struct {
	Punches []PunchRequest `json:"punches" validate:"required,min=1,max=5000,dive"`
}

func (p PunchRequest) event() (biometric.Event, error) {
	verification, err := biometric.ParseVerificationType(p.VerificationType)
	if err != nil {
		return biometric.Event{}, err
	}
	id := core.EventID(p.ID)
	if id == "" {
		id = biometric.NewEventID()
	}
	return biometric.Event{
		ID:           id,
		EmployeeID:   core.EmployeeID(p.EmployeeID),
		DeviceID:     core.DeviceID(p.DeviceID),
		Timestamp:    p.Timestamp,
		WorkCode:     p.WorkCode,
		Verification: verification,
		Confidence:   p.ConfidenceScore,
	}, nil
}

// IngestResponseDTO summarizes an ingest call.
type IngestResponseDTO struct {
	Accepted  int                  `json:"accepted"`
	Replayed  int                  `json:"replayed"`
	Records   []RecordDTO          `json:"records"`
	Conflicts []biometric.Conflict `json:"conflicts"`
}

// =============================================================================
// ATTENDANCE RECORDS
// =============================================================================

// RecordDTO represents an attendance record in API responses.
type RecordDTO struct {
	ID                string                `json:"id"`
	EmployeeID        string                `json:"employee_id"`
	Date              core.Date             `json:"date"`
	Entry             *time.Time            `json:"entry,omitempty"`
	Exit              *time.Time            `json:"exit,omitempty"`
	Entry2            *time.Time            `json:"entry2,omitempty"`
	Exit2             *time.Time            `json:"exit2,omitempty"`
	LunchMinutes      int                   `json:"lunch_minutes"`
	BreakMinutes      int                   `json:"break_minutes"`
	Hours             overtime.Hours        `json:"hours"`
	Status            string                `json:"status"`
	StatusDescription string                `json:"status_description"`
	StatusColor       string                `json:"status_color"`
	Leave             string                `json:"leave,omitempty"`
	Manual            bool                  `json:"manual"`
	Modified          bool                  `json:"modified"`
	Review            bool                  `json:"review"`
	ReviewReason      string                `json:"review_reason,omitempty"`
	SequenceValid     bool                  `json:"sequence_valid"`
	Continued         bool                  `json:"continued,omitempty"`
	ModifiedBy        string                `json:"modified_by,omitempty"`
	ModifiedAt        *time.Time            `json:"modified_at,omitempty"`
	Notes             string                `json:"notes,omitempty"`
	Movements         []attendance.Movement `json:"movements"`
	Conflicts         []biometric.Conflict  `json:"conflicts"`
	Actions           []attendance.Action   `json:"actions"`
	Version           int                   `json:"version"`
	UpdatedAt         *time.Time            `json:"updated_at,omitempty"`
}

func toRecordDTO(r attendance.Record) RecordDTO {
	dto := RecordDTO{
		ID:                string(r.ID),
		EmployeeID:        string(r.EmployeeID),
		Date:              r.Date,
		Entry:             r.Entry,
		Exit:              r.Exit,
		Entry2:            r.Entry2,
		Exit2:             r.Exit2,
		LunchMinutes:      int(r.LunchMinutes),
		BreakMinutes:      int(r.BreakMinutes),
		Hours:             r.Hours.Hours(),
		Status:            string(r.Status),
		StatusDescription: r.Status.Description(),
		StatusColor:       r.Status.Color(),
		Leave:             string(r.Leave),
		Manual:            r.Manual,
		Modified:          r.Modified,
		Review:            r.Review,
		ReviewReason:      r.ReviewReason,
		SequenceValid:     r.SequenceValid,
		Continued:         r.Continued,
		ModifiedBy:        r.ModifiedBy,
		ModifiedAt:        r.ModifiedAt,
		Notes:             r.Notes,
		Movements:         r.Movements,
		Conflicts:         r.Conflicts,
		Actions:           r.Status.Actions(),
		Version:           r.Version,
	}
	if !r.UpdatedAt.IsZero() {
		u := r.UpdatedAt
		dto.UpdatedAt = &u
	}
	if dto.Movements == nil {
		dto.Movements = []attendance.Movement{}
	}
	if dto.Conflicts == nil {
		dto.Conflicts = []biometric.Conflict{}
	}
	return dto
}

func toRecordDTOs(records []attendance.Record) []RecordDTO {
	out := make([]RecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, toRecordDTO(r))
	}
	return out
}

// ManualPunchRequest is a manual entry or exit.
type ManualPunchRequest struct {
	At time.Time `json:"at" validate:"required"`
	By string    `json:"by" validate:"required,max=100"`
}

// LunchRequest sets the lunch duration of a day.
type LunchRequest struct {
	Minutes int    `json:"minutes" validate:"gte=0,lte=240"`
	By      string `json:"by" validate:"required,max=100"`
}

// CorrectionRequest edits a record. Omitted fields keep their value.
type CorrectionRequest struct {
	Entry        *time.Time `json:"entry"`
	Exit         *time.Time `json:"exit"`
	Entry2       *time.Time `json:"entry2"`
	Exit2        *time.Time `json:"exit2"`
	LunchMinutes *int       `json:"lunch_minutes" validate:"omitempty,gte=0,lte=240"`
	Reason       string     `json:"reason" validate:"required,max=500"`
	By           string     `json:"by" validate:"required,max=100"`
}

func (req CorrectionRequest) correction() attendance.Correction {
	c := attendance.Correction{
		Entry:  req.Entry,
		Exit:   req.Exit,
		Entry2: req.Entry2,
		Exit2:  req.Exit2,
		Reason: req.Reason,
	}
	if req.LunchMinutes != nil {
		m := core.Minutes(*req.LunchMinutes)
		c.LunchMinutes = &m
	}
	return c
}

// LeaveRequest marks a day as leave.
type LeaveRequest struct {
	Leave string `json:"leave" validate:"required,oneof=VACACIONES PERMISO INCAPACIDAD FERIADO"`
	By    string `json:"by" validate:"required,max=100"`
}

// ReviewRequest flags a record for review.
type ReviewRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// RecalculateRequest recomputes a record, optionally dropping human flags.
type RecalculateRequest struct {
	ClearModified bool `json:"clear_modified"`
	ClearReview   bool `json:"clear_review"`
}

// =============================================================================
// ENGINE OPERATIONS
// =============================================================================

// SequenceRequest is a list of work codes, by number or name.
type SequenceRequest struct {
	Codes []workcode.Code `json:"codes" validate:"required,dive,gte=0,lte=5"`
}

// SequenceDTO is the result of a sequence validation.
type SequenceDTO struct {
	Valid      bool           `json:"valid"`
	Violations []ViolationDTO `json:"violations"`
}

type ViolationDTO struct {
	Index   int             `json:"index"`
	Code    workcode.Code   `json:"code"`
	Missing []workcode.Code `json:"missing"`
	Message string          `json:"message"`
}

func toSequenceDTO(v workcode.Validation) SequenceDTO {
	dto := SequenceDTO{Valid: v.Valid, Violations: []ViolationDTO{}}
	for _, viol := range v.Violations {
		dto.Violations = append(dto.Violations, ViolationDTO{
			Index:   viol.Index,
			Code:    viol.Code,
			Missing: viol.Missing,
			Message: viol.Message,
		})
	}
	return dto
}

// IntervalRequest is a worked stretch used for night hours.
type IntervalRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
}

// ComputeRequest computes the breakdown of one day. A missing
// scheduled_hours means the default schedule; zero is taken as given.
type ComputeRequest struct {
	Date           core.Date         `json:"date" validate:"required"`
	EmployeeType   string            `json:"employee_type" validate:"required,oneof=regular administrative"`
	WorkedMinutes  int               `json:"worked_minutes" validate:"gte=0,lte=1440"`
	ScheduledHours *float64          `json:"scheduled_hours" validate:"omitempty,gte=0,lte=12"`
	HourlyWage     *decimal.Decimal  `json:"hourly_wage"`
	Intervals      []IntervalRequest `json:"intervals" validate:"dive"`
}

// CombineRequest computes several days and sums them.
type CombineRequest struct {
	Days []ComputeRequest `json:"days" validate:"required,min=1,max=400,dive"`
}

// CombineDTO is the result of a combine call.
type CombineDTO struct {
	Days  []overtime.Hours `json:"days"`
	Total overtime.Hours   `json:"total"`
}

// =============================================================================
// PAYROLL
// =============================================================================

// EmployeeSummaryDTO is one employee's share of a payroll summary.
type EmployeeSummaryDTO struct {
	EmployeeID   string         `json:"employee_id"`
	Name         string         `json:"name"`
	EmployeeType string         `json:"employee_type"`
	Totals       overtime.Hours `json:"totals"`
	DaysByStatus map[string]int `json:"days_by_status"`
	DaysCounted  int            `json:"days_counted"`
}

// SummaryDTO is a payroll summary over a period.
type SummaryDTO struct {
	From      core.Date            `json:"from"`
	To        core.Date            `json:"to"`
	Employees []EmployeeSummaryDTO `json:"employees"`
	Totals    overtime.Hours       `json:"totals"`
}

func toSummaryDTO(s payroll.Summary) SummaryDTO {
	dto := SummaryDTO{
		From:      s.Period.Start,
		To:        s.Period.End,
		Employees: make([]EmployeeSummaryDTO, 0, len(s.Employees)),
		Totals:    s.Totals.Hours(),
	}
	for _, e := range s.Employees {
		byStatus := make(map[string]int, len(e.DaysByStatus))
		for st, n := range e.DaysByStatus {
			byStatus[string(st)] = n
		}
		dto.Employees = append(dto.Employees, EmployeeSummaryDTO{
			EmployeeID:   string(e.EmployeeID),
			Name:         e.Name,
			EmployeeType: string(e.Type),
			Totals:       e.Totals.Hours(),
			DaysByStatus: byStatus,
			DaysCounted:  e.DaysCounted,
		})
	}
	return dto
}

// =============================================================================
// HOLIDAYS, POLICIES, SCENARIOS
// =============================================================================

// HolidayDTO is a holiday in requests and responses.
type HolidayDTO struct {
	Date      core.Date `json:"date" validate:"required"`
	Name      string    `json:"name" validate:"required,max=200"`
	Recurring bool      `json:"recurring"`
}

// PolicyDTO represents a policy in API responses.
type PolicyDTO struct {
	EmployeeType string             `json:"employee_type"`
	Name         string             `json:"name"`
	Config       factory.PolicyJSON `json:"config"`
	Version      int                `json:"version"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// CloseDayRequest closes a date for every employee.
type CloseDayRequest struct {
	Date core.Date `json:"date" validate:"required"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
