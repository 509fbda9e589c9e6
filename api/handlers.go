/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes the attendance service and the pure engine operations via REST.
  Handles HTTP request/response, JSON serialization and input validation,
  and delegates everything else to the attendance, overtime and payroll
  packages.

ENDPOINTS:
  Punches:
    POST   /api/punches                                   Ingest raw punches

  Employees:
    GET    /api/employees                                 List employees
    POST   /api/employees                                 Create or update employee
    GET    /api/employees/{id}                            Get employee

  Attendance:
    GET    /api/employees/{id}/attendance?from=&to=       Records in a range
    GET    /api/employees/{id}/attendance/{date}          One day
    POST   /api/employees/{id}/attendance/{date}/entry    Manual entry
    POST   /api/employees/{id}/attendance/{date}/exit     Manual exit
    POST   /api/employees/{id}/attendance/{date}/lunch    Set lunch
    POST   /api/employees/{id}/attendance/{date}/correction
    POST   /api/employees/{id}/attendance/{date}/leave    Apply leave
    DELETE /api/employees/{id}/attendance/{date}/leave    Clear leave
    POST   /api/employees/{id}/attendance/{date}/review   Flag for review
    POST   /api/employees/{id}/attendance/{date}/recalculate
    POST   /api/employees/{id}/attendance/{date}/rebuild  Replay journal

  Engine:
    POST   /api/sequence/validate
    POST   /api/overtime/compute
    POST   /api/overtime/combine

  Payroll, holidays, policies, admin: see server.go.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, action not allowed
  - 404: Employee, record or holiday not found
  - 409: Concurrent modification that outlived the retries
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/overtime"
	"github.com/warp/attendance-engine/payroll"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/workcode"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the HTTP layer needs. Reset backs the demo
// scenarios.
type Store interface {
	attendance.Repository
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         Store
	Service       *attendance.Service
	Payroll       *payroll.Aggregator
	PolicyFactory *factory.PolicyFactory

	validate *validator.Validate
	logger   *zap.Logger

	// currently loaded demo scenario
	currentScenario string
}

// NewHandler wires handlers over a store and the service built on it.
func NewHandler(store Store, svc *attendance.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:         store,
		Service:       svc,
		Payroll:       payroll.NewAggregator(store, svc.Reconciler(), logger),
		PolicyFactory: factory.NewPolicyFactory(),
		validate:      newValidator(),
		logger:        logger.Named("api"),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *Handler) policies() *policy.Registry {
	return h.Service.Reconciler().Policies
}

// =============================================================================
// PUNCHES
// =============================================================================

// IngestPunches journals raw punches and reconciles the days they touch.
// POST /api/punches
func (h *Handler) IngestPunches(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !h.decode(w, r, &req) {
		return
	}
	events := make([]biometric.Event, 0, len(req.Punches))
	for i, p := range req.Punches {
		e, err := p.event()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid punch %d", i), err)
			return
		}
		events = append(events, e)
	}

	res, err := h.Service.Ingest(r.Context(), events)
	if err != nil {
		h.writeDomainError(w, "Failed to ingest punches", err)
		return
	}
	conflicts := res.Conflicts
	if conflicts == nil {
		conflicts = []biometric.Conflict{}
	}
	writeJSON(w, http.StatusOK, IngestResponseDTO{
		Accepted:  res.Accepted,
		Replayed:  res.Replayed,
		Records:   toRecordDTOs(res.Records),
		Conflicts: conflicts,
	})
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// ListEmployees returns all employee profiles.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Store.ListProfiles(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, 0, len(profiles))
	for _, p := range profiles {
		dtos = append(dtos, toEmployeeDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns one employee profile.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProfile(r.Context(), core.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(p))
}

// CreateEmployee creates or replaces a profile after checking it against
// the policy of its type.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	p := req.profile()
	if _, err := h.policies().ForProfile(p); err != nil {
		h.writeDomainError(w, "Invalid employee", err)
		return
	}
	if err := h.Store.SaveProfile(r.Context(), p); err != nil {
		h.writeDomainError(w, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(p))
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// ListAttendance returns an employee's records in [from, to]. Both default
// to the current week.
// GET /api/employees/{id}/attendance?from=&to=
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	week := core.PeriodFor(core.PeriodWeekly, core.Today(h.Service.Location()))
	from, ok := queryDate(w, r, "from", week.Start)
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to", week.End)
	if !ok {
		return
	}
	records, err := h.Service.List(r.Context(), core.EmployeeID(chi.URLParam(r, "id")), from, to)
	if err != nil {
		h.writeDomainError(w, "Failed to list attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// GetAttendance returns one day. A day never touched comes back AUSENTE
// with version 0.
// GET /api/employees/{id}/attendance/{date}
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	emp, date, ok := dayParams(w, r)
	if !ok {
		return
	}
	rec, err := h.Service.Get(r.Context(), emp, date)
	if err != nil {
		h.writeDomainError(w, "Failed to get attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// RegisterEntry records a manual entry.
// POST /api/employees/{id}/attendance/{date}/entry
func (h *Handler) RegisterEntry(w http.ResponseWriter, r *http.Request) {
	h.manualPunch(w, r, workcode.Entry)
}

// RegisterExit records a manual exit.
// POST /api/employees/{id}/attendance/{date}/exit
func (h *Handler) RegisterExit(w http.ResponseWriter, r *http.Request) {
	h.manualPunch(w, r, workcode.Exit)
}

func (h *Handler) manualPunch(w http.ResponseWriter, r *http.Request, code workcode.Code) {
	emp, date, ok := dayParams(w, r)
	if !ok {
		return
	}
	var req ManualPunchRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.Service.RegisterManual(r.Context(), attendance.ManualPunch{
		EmployeeID: emp,
		Date:       date,
		Code:       code,
		At:         req.At,
		By:         req.By,
	})
	h.writeRecord(w, rec, err, "Failed to register "+strings.ToLower(code.String()))
}

// SetLunch sets the lunch duration.
// POST /api/employees/{id}/attendance/{date}/lunch
func (h *Handler) SetLunch(w http.ResponseWriter, r *http.Request) {
	emp, date, ok := dayParams(w, r)
	if !ok {
		return
	}
	var req LunchRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.Service.SetLunch(r.Context(), emp, date, core.Minutes(req.Minutes), req.By)
	h.writeRecord(w, rec, err, "Failed to set lunch")
}

// Correct applies a human correction. The record becomes MODIFICADO.
// POST /api/employees/{id}/attendance/{date}/correction
func (h *Handler) Correct(w http.ResponseWriter, r *http.Request) {
	emp, date, ok := dayParams(w, r)
	if !ok {
		return
	}
	var req CorrectionRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.Service.Correct(r.Context(), emp, date, req.correction(), req.By)
	h.writeRecord(w, rec, err, "Failed to correct record")
}

// ApplyLeave marks the day as leave.
// POST /api/employees/{id}/attendance/{date}/leave
func (h *Handler) ApplyLeave(w http.ResponseWriter, r *http.Request) {
	emp, date, ok := dayParams(w, r)
	if !ok {
		return
	}
	var req LeaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	leave, err := attendance.ParseLeave(req.Leave)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid leave", err)
		return
	}
	rec, err := h.Service.ApplyLeave(r.Context(), emp, date, leave, req.By)
	h.writeRecord(w, rec, err, "Failed to apply leave")
}

// ClearLeave lifts a leave. The editor comes from the "by" query parameter.
// DELETE /api/employees/{id}/attendance/{date}/leave?by=
func (h *Handler) ClearLeave(w http.ResponseWriter, r *http.Request) {
	emp, date, ok := dayParams(w, r)
	if !ok {
		return
	}
	by := r.URL.Query().Get("by")
	if by == "" {
		writeError(w, http.StatusBadRequest, "by is required", nil)
		return
	}
	rec, err := h.Service.ClearLeave(r.Context(), emp, date, by)
	h.writeRecord(w, rec, err, "Failed to clear leave")
}

// FlagReview marks the record for human review.
// POST /api/employees/{id}/attendance/{date}/review
func (h *Handler) FlagReview(w http.ResponseWriter, r *http.Request) {
	emp, date, ok := dayParams(w, r)
	if !ok {
		return
	}
	var req ReviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.Service.FlagReview(r.Context(), emp, date, req.Reason)
	h.writeRecord(w, rec, err, "Failed to flag record")
}

// Recalculate recomputes the hours under the current policy and calendar.
// POST /api/employees/{id}/attendance/{date}/recalculate
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	emp, date, ok := dayParams(w, r)
	if !ok {
		return
	}
	var req RecalculateRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	rec, err := h.Service.Recalculate(r.Context(), emp, date, attendance.RecalculateOptions{
		ClearModified: req.ClearModified,
		ClearReview:   req.ClearReview,
	})
	h.writeRecord(w, rec, err, "Failed to recalculate record")
}

// Rebuild reapplies the journaled punches of the day.
// POST /api/employees/{id}/attendance/{date}/rebuild
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	emp, date, ok := dayParams(w, r)
	if !ok {
		return
	}
	rec, err := h.Service.Rebuild(r.Context(), emp, date)
	h.writeRecord(w, rec, err, "Failed to rebuild record")
}

// =============================================================================
// ENGINE OPERATIONS
// =============================================================================

// ValidateSequence checks an ordered list of work codes.
// POST /api/sequence/validate
func (h *Handler) ValidateSequence(w http.ResponseWriter, r *http.Request) {
	var req SequenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, toSequenceDTO(workcode.ValidateSequence(req.Codes)))
}

// ComputeOvertime computes the tier breakdown of a single day.
// POST /api/overtime/compute
func (h *Handler) ComputeOvertime(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if !h.decode(w, r, &req) {
		return
	}
	cal, err := h.Service.Calendar(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load holidays", err)
		return
	}
	b, err := h.compute(req, cal)
	if err != nil {
		h.writeDomainError(w, "Failed to compute overtime", err)
		return
	}
	writeJSON(w, http.StatusOK, b.Hours())
}

// CombineOvertime computes several days and sums their breakdowns.
// POST /api/overtime/combine
func (h *Handler) CombineOvertime(w http.ResponseWriter, r *http.Request) {
	var req CombineRequest
	if !h.decode(w, r, &req) {
		return
	}
	cal, err := h.Service.Calendar(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load holidays", err)
		return
	}
	parts := make([]overtime.Breakdown, 0, len(req.Days))
	days := make([]overtime.Hours, 0, len(req.Days))
	for i, d := range req.Days {
		b, err := h.compute(d, cal)
		if err != nil {
			h.writeDomainError(w, fmt.Sprintf("Failed to compute day %d", i), err)
			return
		}
		parts = append(parts, b)
		days = append(days, b.Hours())
	}
	writeJSON(w, http.StatusOK, CombineDTO{Days: days, Total: overtime.Combine(parts...).Hours()})
}

func (h *Handler) compute(req ComputeRequest, cal core.HolidayCalendar) (overtime.Breakdown, error) {
	profile := policy.Profile{
		EmployeeID: "adhoc",
		Type:       policy.EmployeeType(req.EmployeeType),
		HourlyWage: req.HourlyWage,
	}
	if req.ScheduledHours != nil {
		profile.ScheduledMinutes = core.MinutesFromHours(*req.ScheduledHours)
	}
	pol, err := h.policies().ForProfile(profile)
	if err != nil {
		return overtime.Breakdown{}, err
	}
	day := overtime.NewDayContext(req.Date, profile, pol, cal)
	if req.ScheduledHours != nil {
		day.Scheduled = profile.ScheduledMinutes
	}
	intervals := make([]overtime.Interval, 0, len(req.Intervals))
	for _, iv := range req.Intervals {
		intervals = append(intervals, overtime.Interval{Start: iv.Start, End: iv.End})
	}
	return overtime.Compute(overtime.Input{
		Total:     core.Minutes(req.WorkedMinutes),
		Day:       day,
		Policy:    pol,
		Wage:      req.HourlyWage,
		Intervals: intervals,
		Location:  h.Service.Location(),
	})
}

// =============================================================================
// PAYROLL
// =============================================================================

// PayrollSummary aggregates hours over a period. Repeat "employee" to
// select employees; all are included otherwise.
// GET /api/payroll/summary?from=&to=&employee=
func (h *Handler) PayrollSummary(w http.ResponseWriter, r *http.Request) {
	today := core.Today(h.Service.Location())
	month := core.PeriodFor(core.PeriodMonthly, today)
	from, ok := queryDate(w, r, "from", month.Start)
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to", month.End)
	if !ok {
		return
	}
	var employees []core.EmployeeID
	for _, id := range r.URL.Query()["employee"] {
		employees = append(employees, core.EmployeeID(id))
	}

	s, err := h.Payroll.Summarize(r.Context(), employees, core.Period{Start: from, End: to})
	if err != nil {
		h.writeDomainError(w, "Failed to summarize payroll", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(s))
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// ListHolidays returns the stored holidays.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hd := range holidays {
		dtos = append(dtos, HolidayDTO{Date: hd.Date, Name: hd.Name, Recurring: hd.Recurring})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds or renames a holiday. Existing records are not
// touched; recalculate them to apply it.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayDTO
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Store.SaveHoliday(r.Context(), core.Holiday{Date: req.Date, Name: req.Name, Recurring: req.Recurring}); err != nil {
		h.writeDomainError(w, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// DeleteHoliday removes a holiday.
// DELETE /api/holidays/{date}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	date, err := core.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	if err := h.Store.DeleteHoliday(r.Context(), date); err != nil {
		h.writeDomainError(w, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// POLICIES
// =============================================================================

// ListPolicies returns the active policy of each employee type.
// GET /api/policies
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	list := h.policies().List()
	dtos := make([]PolicyDTO, 0, len(list))
	for _, p := range list {
		dtos = append(dtos, h.policyDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdatePolicy overrides the policy of one employee type at runtime. Fields
// left out keep the built-in value.
// POST /api/policies
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var pj factory.PolicyJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	p, err := h.PolicyFactory.FromJSON(pj)
	if err != nil {
		h.writeDomainError(w, "Invalid policy configuration", err)
		return
	}
	if err := h.policies().Register(p); err != nil {
		h.writeDomainError(w, "Failed to register policy", err)
		return
	}
	h.logger.Info("policy updated", zap.String("employee_type", string(p.Type)), zap.Int("version", p.Version))
	writeJSON(w, http.StatusOK, h.policyDTO(p))
}

func (h *Handler) policyDTO(p policy.Policy) PolicyDTO {
	return PolicyDTO{
		EmployeeType: string(p.Type),
		Name:         p.Name,
		Config:       h.PolicyFactory.ToJSON(p),
		Version:      p.Version,
	}
}

// =============================================================================
// ADMIN
// =============================================================================

// CloseDay runs the daily close for a date.
// POST /api/admin/close-day
func (h *Handler) CloseDay(w http.ResponseWriter, r *http.Request) {
	var req CloseDayRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Service.CloseDay(r.Context(), req.Date)
	if err != nil {
		h.writeDomainError(w, "Failed to close day", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":    req.Date,
		"absent":  res.Absent,
		"flagged": res.Flagged,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body. It writes the 400 itself and
// reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s is invalid (%s)", e.Namespace(), e.Tag()), err)
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func dayParams(w http.ResponseWriter, r *http.Request) (core.EmployeeID, core.Date, bool) {
	date, err := core.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return "", core.Date{}, false
	}
	return core.EmployeeID(chi.URLParam(r, "id")), date, true
}

func queryDate(w http.ResponseWriter, r *http.Request, key string, fallback core.Date) (core.Date, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, true
	}
	d, err := core.ParseDate(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s date (use YYYY-MM-DD)", key), err)
		return core.Date{}, false
	}
	return d, true
}

func (h *Handler) writeRecord(w http.ResponseWriter, rec attendance.Record, err error, message string) {
	if err != nil {
		h.writeDomainError(w, message, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// writeDomainError maps engine errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case core.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case core.IsRetryable(err):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		h.logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
