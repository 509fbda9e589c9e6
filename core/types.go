/*
Package core provides the shared kernel of the attendance engine.

PURPOSE:
  Holds the small value types every other package agrees on: identifiers,
  integer minute durations, calendar dates, pay periods, the holiday calendar
  port and the error taxonomy. It has no knowledge of work codes, statuses or
  overtime tiers.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: EmployeeID, DeviceID, EventID, RecordID
  - Minutes: the only duration unit used inside the engine

DESIGN PRINCIPLES:
  1. Integer minutes internally; fractional hours only at output boundaries
  2. Type-safe identifiers so an employee ID is never passed as a device ID
  3. Value semantics: nothing in this package holds mutable shared state

SEE ALSO:
  - time.go: Date and HolidayCalendar
  - period.go: Pay periods
  - errors.go: Validation and store errors
*/
package core

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type DeviceID string
type EventID string
type RecordID string

// =============================================================================
// MINUTES - Integer duration unit
// =============================================================================

// Minutes is a whole number of minutes. Hour arithmetic across tier
// boundaries is done in Minutes so no rounding drift can accumulate.
type Minutes int

const (
	MinutesPerHour Minutes = 60
	MinutesPerDay  Minutes = 24 * MinutesPerHour
)

// HoursOf returns n whole hours as Minutes.
func HoursOf(n int) Minutes { return Minutes(n) * MinutesPerHour }

// MinutesFromHours converts fractional hours, rounding to the nearest minute.
func MinutesFromHours(h float64) Minutes {
	return Minutes(math.Round(h * float64(MinutesPerHour)))
}

// MinutesBetween returns the whole minutes from a to b (truncated toward zero).
func MinutesBetween(a, b time.Time) Minutes {
	return Minutes(b.Sub(a) / time.Minute)
}

func (m Minutes) Hours() float64 { return float64(m) / float64(MinutesPerHour) }

// HoursDecimal returns the exact hour value, used for money.
func (m Minutes) HoursDecimal() decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(decimal.NewFromInt(int64(MinutesPerHour)))
}

func (m Minutes) Duration() time.Duration { return time.Duration(m) * time.Minute }
func (m Minutes) IsNegative() bool        { return m < 0 }
func (m Minutes) IsZero() bool            { return m == 0 }

func (m Minutes) Min(o Minutes) Minutes {
	if m < o {
		return m
	}
	return o
}

func (m Minutes) Max(o Minutes) Minutes {
	if m > o {
		return m
	}
	return o
}

// String renders as H:MM, e.g. "8:00" or "-0:30".
func (m Minutes) String() string {
	sign := ""
	v := int(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d:%02d", sign, v/60, v%60)
}
