package core

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// DATE - Calendar day (attendance records are keyed by it)
// =============================================================================

const DateLayout = "2006-01-02"

// Date is a calendar day with no time-of-day and no zone. The zero Date is
// invalid and is rejected by Validate.
type Date struct {
	t time.Time // always midnight UTC
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// DateIn returns the calendar day of t as seen from loc.
func DateIn(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(t.In(loc))
}

func Today(loc *time.Location) Date { return DateIn(time.Now(), loc) }

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Value: s, Reason: "must be YYYY-MM-DD"}
	}
	return DateOf(t), nil
}

// MustParseDate is for tests and static tables.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Start returns midnight of the day in loc.
func (d Date) Start(loc *time.Location) time.Time {
	return d.At(loc, 0, 0)
}

// At returns hour:minute of the day in loc. Hours past 23 roll into the next day.
func (d Date) At(loc *time.Location, hour, minute int) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return &ValidationError{Field: "date", Reason: "is required"}
	}
	return nil
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func DaysBetween(from, to Date) int { return int(to.t.Sub(from.t).Hours() / 24) }

func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }
func EndOfMonth(year int, month time.Month) Date {
	return StartOfMonth(year, month).AddMonths(1).AddDays(-1)
}

// =============================================================================
// HOLIDAY CALENDAR - Calendar oracle consumed by the overtime rules
// =============================================================================

// Holiday is a non-working public or company holiday.
type Holiday struct {
	Date      Date
	Name      string
	Recurring bool // same month/day every year
}

// HolidayCalendar answers whether a date is a holiday.
type HolidayCalendar interface {
	IsHoliday(date Date) bool
}

// NoHolidays is a calendar without holidays.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(Date) bool { return false }

// Calendars is a holiday if any member says so. Nil members are skipped.
type Calendars []HolidayCalendar

func (c Calendars) IsHoliday(date Date) bool {
	for _, cal := range c {
		if cal != nil && cal.IsHoliday(date) {
			return true
		}
	}
	return false
}

// StaticCalendar is an immutable in-memory calendar.
type StaticCalendar struct {
	fixed     map[Date]Holiday
	recurring map[string]Holiday // key MM-DD
}

func NewStaticCalendar(holidays ...Holiday) StaticCalendar {
	c := StaticCalendar{
		fixed:     make(map[Date]Holiday),
		recurring: make(map[string]Holiday),
	}
	for _, h := range holidays {
		if h.Recurring {
			c.recurring[monthDay(h.Date)] = h
			continue
		}
		c.fixed[h.Date] = h
	}
	return c
}

func (c StaticCalendar) IsHoliday(date Date) bool {
	_, ok := c.Lookup(date)
	return ok
}

// Lookup returns the holiday falling on date, fixed dates first.
func (c StaticCalendar) Lookup(date Date) (Holiday, bool) {
	if h, ok := c.fixed[date]; ok {
		return h, true
	}
	h, ok := c.recurring[monthDay(date)]
	return h, ok
}

// Holidays lists the holidays of a year, recurring ones projected onto it.
func (c StaticCalendar) Holidays(year int) []Holiday {
	var out []Holiday
	for d, h := range c.fixed {
		if d.Year() == year {
			out = append(out, h)
		}
	}
	for _, h := range c.recurring {
		projected := h
		projected.Date = NewDate(year, h.Date.Month(), h.Date.Day())
		out = append(out, projected)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func monthDay(d Date) string { return fmt.Sprintf("%02d-%02d", d.Month(), d.Day()) }
