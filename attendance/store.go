/*
store.go - Persistence contracts for attendance

PURPOSE:
  Defines what the service needs from a database. The engine itself never
  touches these: it computes the next snapshot, the store decides whether
  that snapshot may be written.

ONE WRITER PER DAY:
  SaveRecord is a compare-and-set on Version. The caller passes the record
  it read (Version n); the store writes it as n+1 only if the stored row
  is still at n, and fails with core.ErrConcurrentModification otherwise.
  A new record has Version 0 and fails the same way if the day already
  exists.

SOFT DELETE:
  Records are never physically removed. DeleteRecord hides a record from
  reads; the row stays for audit.

IMPLEMENTATIONS:
  - store/memory: tests and development
  - store/sqlite: single-node deployments
  - store/postgres: production
*/
package attendance

import (
	"context"

	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/policy"
)

// Store persists attendance records.
type Store interface {
	// GetRecord returns the record of an employee-day or a *core.NotFoundError.
	GetRecord(ctx context.Context, employee core.EmployeeID, date core.Date) (Record, error)

	// SaveRecord writes r if the stored version still equals r.Version and
	// returns the stored copy with its new version.
	SaveRecord(ctx context.Context, r Record) (Record, error)

	// ListRecords returns an employee's records in [from, to], by date.
	ListRecords(ctx context.Context, employee core.EmployeeID, from, to core.Date) ([]Record, error)

	// ListRecordsByDate returns every employee's record of one date.
	ListRecordsByDate(ctx context.Context, date core.Date) ([]Record, error)

	// DeleteRecord soft-deletes a record.
	DeleteRecord(ctx context.Context, employee core.EmployeeID, date core.Date) error
}

// ProfileStore persists employee profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, id core.EmployeeID) (policy.Profile, error)
	SaveProfile(ctx context.Context, p policy.Profile) error
	ListProfiles(ctx context.Context) ([]policy.Profile, error)
}

// HolidayStore persists the holiday calendar.
type HolidayStore interface {
	SaveHoliday(ctx context.Context, h core.Holiday) error
	DeleteHoliday(ctx context.Context, date core.Date) error
	ListHolidays(ctx context.Context) ([]core.Holiday, error)
}

// Repository is everything the service persists. All three stores in this
// module implement it.
type Repository interface {
	Store
	ProfileStore
	HolidayStore
	biometric.EventStore
}
