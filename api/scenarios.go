/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the database with realistic
	punch data. Each scenario creates employees, optional holidays and a
	week of punches that exercise specific engine behavior.

AVAILABLE SCENARIOS:

	regular-week:     Plant worker, normal days plus an 11h day and a Saturday
	night-shift:      Overnight shifts crossing midnight, night hours
	administrative:   Office staff, short days under the 4h minimum
	anomalies:        Duplicate taps, low confidence, out-of-sequence punches
	leave-holiday:    A company holiday and a vacation day in the week

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create employee profiles
 3. Store holidays, if any
 4. Ingest punches for the week before the current one
 5. Optionally apply human actions (leave, corrections)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "night-shift"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/workcode"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, h *Handler, b *punchBuilder) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "regular-week",
			Name:        "Regular Week",
			Description: "Plant worker with normal days, an 11 hour day and a Saturday shift",
		},
		load: loadRegularWeek,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "night-shift",
			Name:        "Night Shift",
			Description: "Overnight shifts that cross midnight and accrue night hours",
		},
		load: loadNightShift,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "administrative",
			Name:        "Administrative Staff",
			Description: "Office employee with a 4 hour daily minimum and split shifts",
		},
		load: loadAdministrative,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "anomalies",
			Name:        "Terminal Anomalies",
			Description: "Duplicate taps, low confidence reads and out-of-sequence punches",
		},
		load: loadAnomalies,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "leave-holiday",
			Name:        "Leave and Holiday",
			Description: "Company holiday worked at 100% and a vacation day",
		},
		load: loadLeaveHoliday,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	s, ok := findScenario(h.currentScenario)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// LoadScenario resets the database and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.writeDomainError(w, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	b := newPunchBuilder(h.Service)
	if err := s.load(ctx, h, b); err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}
	h.currentScenario = s.ID
	h.logger.Info("scenario loaded", zap.String("scenario", s.ID), zap.String("week", b.monday.String()))

	writeJSON(w, http.StatusOK, map[string]any{
		"scenario":  s.ScenarioDTO,
		"week_from": b.monday,
		"week_to":   b.monday.AddDays(6),
	})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// PUNCH BUILDER
// =============================================================================

// punchBuilder collects demo punches for the week before the current one.
type punchBuilder struct {
	svc    *attendance.Service
	monday core.Date
	events []biometric.Event
}

func newPunchBuilder(svc *attendance.Service) *punchBuilder {
	thisWeek := core.PeriodFor(core.PeriodWeekly, core.Today(svc.Location()))
	return &punchBuilder{svc: svc, monday: thisWeek.Start.AddDays(-7)}
}

// day returns the date offset days after the scenario's Monday.
func (b *punchBuilder) day(offset int) core.Date { return b.monday.AddDays(offset) }

func (b *punchBuilder) punch(emp core.EmployeeID, offset int, code workcode.Code, hour, min int) *punchBuilder {
	return b.read(emp, offset, code, hour, min, biometric.VerifyFingerprint, 97)
}

func (b *punchBuilder) read(emp core.EmployeeID, offset int, code workcode.Code, hour, min int, v biometric.VerificationType, confidence int) *punchBuilder {
	b.events = append(b.events, biometric.Event{
		ID:           biometric.NewEventID(),
		EmployeeID:   emp,
		DeviceID:     "demo-gate-1",
		Timestamp:    b.day(offset).At(b.svc.Location(), hour, min),
		WorkCode:     code,
		Verification: v,
		Confidence:   confidence,
	})
	return b
}

// shift adds ENTRY, LUNCH_START, LUNCH_END and EXIT with a one hour lunch
// at noon.
func (b *punchBuilder) shift(emp core.EmployeeID, offset, from, to int) *punchBuilder {
	return b.punch(emp, offset, workcode.Entry, from, 0).
		punch(emp, offset, workcode.LunchStart, 12, 0).
		punch(emp, offset, workcode.LunchEnd, 13, 0).
		punch(emp, offset, workcode.Exit, to, 0)
}

func (b *punchBuilder) ingest(ctx context.Context) error {
	_, err := b.svc.Ingest(ctx, b.events)
	b.events = nil
	return err
}

func saveProfiles(ctx context.Context, h *Handler, profiles ...policy.Profile) error {
	for _, p := range profiles {
		if _, err := h.policies().ForProfile(p); err != nil {
			return err
		}
		if err := h.Store.SaveProfile(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func wage(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadRegularWeek(ctx context.Context, h *Handler, b *punchBuilder) error {
	if err := saveProfiles(ctx, h, policy.Profile{
		EmployeeID:     "ana.torres",
		Name:           "Ana Torres",
		Type:           policy.TypeRegular,
		AssignedBranch: "plant-north",
		HourlyWage:     wage("12.50"),
	}); err != nil {
		return err
	}
	b.shift("ana.torres", 0, 8, 17).
		shift("ana.torres", 1, 7, 19). // 11h: 8 regular, 2 at 25%, 1 at 50%
		shift("ana.torres", 2, 8, 17).
		shift("ana.torres", 3, 8, 17).
		punch("ana.torres", 4, workcode.Entry, 8, 0). // Friday left open
		punch("ana.torres", 5, workcode.Entry, 8, 0).
		punch("ana.torres", 5, workcode.Exit, 13, 0) // Saturday: all at 100%
	return b.ingest(ctx)
}

func loadNightShift(ctx context.Context, h *Handler, b *punchBuilder) error {
	if err := saveProfiles(ctx, h, policy.Profile{
		EmployeeID:     "luis.mejia",
		Name:           "Luis Mejia",
		Type:           policy.TypeRegular,
		AssignedBranch: "plant-south",
		HourlyWage:     wage("11.00"),
	}); err != nil {
		return err
	}
	for d := 0; d < 4; d++ {
		b.punch("luis.mejia", d, workcode.Entry, 22, 0).
			punch("luis.mejia", d+1, workcode.Exit, 6, 0)
	}
	return b.ingest(ctx)
}

func loadAdministrative(ctx context.Context, h *Handler, b *punchBuilder) error {
	if err := saveProfiles(ctx, h,
		policy.Profile{
			EmployeeID:         "carla.ruiz",
			Name:               "Carla Ruiz",
			Type:               policy.TypeAdministrative,
			AssignedBranch:     "hq",
			AdditionalBranches: []string{"plant-north", "plant-south"},
			HourlyWage:         wage("18.00"),
		},
		policy.Profile{
			EmployeeID:       "jorge.paz",
			Name:             "Jorge Paz",
			Type:             policy.TypeAdministrative,
			ScheduledMinutes: core.HoursOf(6),
			AssignedBranch:   "hq",
		},
	); err != nil {
		return err
	}
	b.shift("carla.ruiz", 0, 8, 17).
		punch("carla.ruiz", 1, workcode.Entry, 9, 0).
		punch("carla.ruiz", 1, workcode.Exit, 12, 0). // 3h: below the minimum
		punch("carla.ruiz", 2, workcode.Entry, 7, 0). // split shift
		punch("carla.ruiz", 2, workcode.Exit, 11, 0).
		punch("carla.ruiz", 2, workcode.Entry, 14, 0).
		punch("carla.ruiz", 2, workcode.Exit, 20, 0)
	b.punch("jorge.paz", 0, workcode.Entry, 8, 0).
		punch("jorge.paz", 0, workcode.Exit, 16, 0) // 8h on a 6h schedule
	return b.ingest(ctx)
}

func loadAnomalies(ctx context.Context, h *Handler, b *punchBuilder) error {
	if err := saveProfiles(ctx, h, policy.Profile{
		EmployeeID: "pedro.gil",
		Name:       "Pedro Gil",
		Type:       policy.TypeRegular,
	}); err != nil {
		return err
	}
	b.punch("pedro.gil", 0, workcode.Entry, 8, 0).
		punch("pedro.gil", 0, workcode.Entry, 8, 1). // double tap
		punch("pedro.gil", 0, workcode.Exit, 17, 0)
	b.read("pedro.gil", 1, workcode.Entry, 8, 0, biometric.VerifyFace, 60).
		read("pedro.gil", 1, workcode.LunchEnd, 13, 0, biometric.VerifyFace, 70).
		read("pedro.gil", 1, workcode.BreakEnd, 15, 0, biometric.VerifyFace, 72).
		punch("pedro.gil", 1, workcode.Exit, 17, 0)
	b.punch("pedro.gil", 2, workcode.Exit, 17, 0) // exit without entry
	return b.ingest(ctx)
}

func loadLeaveHoliday(ctx context.Context, h *Handler, b *punchBuilder) error {
	if err := saveProfiles(ctx, h, policy.Profile{
		EmployeeID: "sofia.lara",
		Name:       "Sofia Lara",
		Type:       policy.TypeRegular,
		HourlyWage: wage("14.00"),
	}); err != nil {
		return err
	}
	if err := h.Store.SaveHoliday(ctx, core.Holiday{Date: b.day(2), Name: "Company Day"}); err != nil {
		return err
	}
	b.shift("sofia.lara", 0, 8, 17).
		shift("sofia.lara", 1, 8, 17).
		shift("sofia.lara", 2, 8, 14) // worked on the holiday
	if err := b.ingest(ctx); err != nil {
		return err
	}
	for _, d := range []int{3, 4} {
		if _, err := h.Service.ApplyLeave(ctx, "sofia.lara", b.day(d), attendance.StatusVacation, "hr.demo"); err != nil {
			return err
		}
	}
	return nil
}
