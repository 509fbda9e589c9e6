/*
payroll.go - Period aggregation of attendance hours

PURPOSE:
  Turns an employee's daily records into period totals for payroll. Each day
  is recomputed under the current policy and calendar before it is summed,
  so a policy or holiday change is reflected without rewriting records.

KEY CONCEPTS:
  - Nothing is saved. Stored records keep the hours they were settled with;
    a summary is a read-side view.
  - Employees fan out over a bounded errgroup. Each goroutine writes only
    its own slot of the result slice.
  - Working days without a record count as AUSENTE. Weekends and holidays
    without a record are not counted at all.

SEE ALSO:
  - overtime/combine.go: how day breakdowns add up
  - attendance/transitions.go: Recalculate
*/
package payroll

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/overtime"
	"github.com/warp/attendance-engine/policy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent employee summaries.
const DefaultWorkers = 4

// Records is what the aggregator reads.
type Records interface {
	attendance.Store
	attendance.ProfileStore
	attendance.HolidayStore
}

type Aggregator struct {
	Records    Records
	Reconciler *attendance.Reconciler
	Workers    int
	Logger     *zap.Logger
}

func NewAggregator(records Records, rc *attendance.Reconciler, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		Records:    records,
		Reconciler: rc,
		Workers:    DefaultWorkers,
		Logger:     logger.Named("payroll"),
	}
}

// =============================================================================
// SUMMARIES
// =============================================================================

// EmployeeSummary is one employee's period.
type EmployeeSummary struct {
	EmployeeID   core.EmployeeID
	Name         string
	Type         policy.EmployeeType
	Totals       overtime.Breakdown
	DaysByStatus map[attendance.Status]int
	DaysCounted  int
}

// Summary is the period across employees.
type Summary struct {
	Period    core.Period
	Employees []EmployeeSummary
	Totals    overtime.Breakdown
}

// Summarize aggregates period for the given employees, or for every known
// employee when none are given.
func (a *Aggregator) Summarize(ctx context.Context, employees []core.EmployeeID, period core.Period) (Summary, error) {
	if _, err := core.NewPeriod(period.Start, period.End); err != nil {
		return Summary{}, err
	}
	profiles, err := a.profiles(ctx, employees)
	if err != nil {
		return Summary{}, err
	}
	cal, err := a.calendar(ctx)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{Period: period, Employees: make([]EmployeeSummary, len(profiles))}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers())
	for i, p := range profiles {
		g.Go(func() error {
			s, err := a.summarizeEmployee(gCtx, p, period, cal)
			if err != nil {
				return fmt.Errorf("summarize %s: %w", p.EmployeeID, err)
			}
			out.Employees[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	parts := make([]overtime.Breakdown, len(out.Employees))
	for i, s := range out.Employees {
		parts[i] = s.Totals
	}
	out.Totals = overtime.Combine(parts...)

	a.logger().Info("payroll summarized",
		zap.String("period", period.String()),
		zap.Int("employees", len(out.Employees)),
		zap.Int("days_counted", out.Totals.DaysCounted),
	)
	return out, nil
}

func (a *Aggregator) summarizeEmployee(ctx context.Context, p policy.Profile, period core.Period, cal core.HolidayCalendar) (EmployeeSummary, error) {
	records, err := a.Records.ListRecords(ctx, p.EmployeeID, period.Start, period.End)
	if err != nil {
		return EmployeeSummary{}, err
	}
	byDate := make(map[core.Date]attendance.Record, len(records))
	for _, r := range records {
		byDate[r.Date] = r
	}

	s := EmployeeSummary{
		EmployeeID:   p.EmployeeID,
		Name:         p.Name,
		Type:         p.Type,
		DaysByStatus: make(map[attendance.Status]int),
	}
	var days []overtime.Breakdown
	for _, d := range period.Days() {
		if err := ctx.Err(); err != nil {
			return EmployeeSummary{}, err
		}
		terms, err := a.Reconciler.Terms(p, d, cal)
		if err != nil {
			return EmployeeSummary{}, err
		}
		r, ok := byDate[d]
		if !ok {
			if !terms.Day.IsSpecial() {
				s.DaysByStatus[attendance.StatusAbsent]++
			}
			continue
		}
		fresh, err := attendance.Recalculate(r, terms, attendance.RecalculateOptions{})
		if err != nil {
			return EmployeeSummary{}, fmt.Errorf("recalculate %s: %w", d, err)
		}
		s.DaysByStatus[fresh.Status]++
		days = append(days, fresh.Hours)
	}
	s.Totals = overtime.Combine(days...)
	s.DaysCounted = s.Totals.DaysCounted
	return s, nil
}

func (a *Aggregator) profiles(ctx context.Context, employees []core.EmployeeID) ([]policy.Profile, error) {
	if len(employees) == 0 {
		return a.Records.ListProfiles(ctx)
	}
	out := make([]policy.Profile, 0, len(employees))
	for _, id := range employees {
		p, err := a.Records.GetProfile(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (a *Aggregator) calendar(ctx context.Context) (core.HolidayCalendar, error) {
	holidays, err := a.Records.ListHolidays(ctx)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	return core.Calendars{a.Reconciler.Calendar, core.NewStaticCalendar(holidays...)}, nil
}

func (a *Aggregator) workers() int {
	if a.Workers <= 0 {
		return DefaultWorkers
	}
	return a.Workers
}

func (a *Aggregator) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
