/*
Package sqlite provides a SQLite-backed implementation of attendance.Repository.

PURPOSE:
  Persists attendance records, employee profiles, the holiday calendar and
  the raw punch journal in a single SQLite file. Suited to single-node
  deployments and to tests (":memory:").

INTERFACES IMPLEMENTED:
  attendance.Store:        Daily records (versioned, soft-deleted)
  attendance.ProfileStore: Employee profiles
  attendance.HolidayStore: Holiday calendar
  biometric.EventStore:    Append-only punch journal

KEY TABLES:
  attendance_records: One row per (employee_id, date). The record snapshot
                      is stored as JSON next to the columns queries filter on.
  employees:          Profiles
  holidays:           One row per date
  punch_events:       Immutable raw punches, id is the primary key

VERSIONING:
  SaveRecord is a compare-and-set on the version column:
  - Version 0 inserts; a row already present (even soft-deleted) is a conflict
  - Version n updates WHERE version = n; zero rows affected is a conflict
  Conflicts surface as *core.VersionConflictError.

APPEND-ONLY JOURNAL:
  punch_events is never updated or deleted. A second insert of the same id
  violates the primary key and maps to core.ErrDuplicateEvent.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The version check makes writes safe
  across processes too.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := attendance.NewService(store, reconciler, logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - attendance/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
  - store/postgres: Production implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/workcode"
)

// Store implements attendance.Repository using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

var _ attendance.Repository = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Daily records (one per employee per date)
	CREATE TABLE IF NOT EXISTS attendance_records (
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		id TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		body TEXT NOT NULL,
		deleted_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_records_date
		ON attendance_records(date) WHERE deleted_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_records_status
		ON attendance_records(status);

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		employee_type TEXT NOT NULL,
		scheduled_minutes INTEGER NOT NULL DEFAULT 0,
		assigned_branch TEXT,
		additional_branches TEXT,
		hourly_wage TEXT,
		created_at TEXT NOT NULL
	);

	-- Holidays
	CREATE TABLE IF NOT EXISTS holidays (
		date TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		recurring INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Raw punches (append-only)
	CREATE TABLE IF NOT EXISTS punch_events (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		device_id TEXT NOT NULL,
		ts INTEGER NOT NULL,
		work_code INTEGER NOT NULL,
		verification TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Hot path: one employee's punches in a time window
	CREATE INDEX IF NOT EXISTS idx_punch_events_employee_ts
		ON punch_events(employee_id, ts);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (attendance.Store interface)
// =============================================================================

func (s *Store) GetRecord(ctx context.Context, employee core.EmployeeID, date core.Date) (attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT version, body FROM attendance_records
		WHERE employee_id = ? AND date = ? AND deleted_at IS NULL`,
		employee, date.String(),
	)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.Record{}, recordNotFound(employee, date)
	}
	return r, err
}

func (s *Store) SaveRecord(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	if err := r.Validate(); err != nil {
		return attendance.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	saved := r.Clone()
	saved.Version = r.Version + 1
	saved.UpdatedAt = now
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	body, err := json.Marshal(saved)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to encode record: %w", err)
	}

	if r.Version == 0 {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO attendance_records
			(employee_id, date, id, status, version, body, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.EmployeeID, r.Date.String(), r.ID, saved.Status, saved.Version, string(body),
			saved.CreatedAt.Format(time.RFC3339), now.Format(time.RFC3339),
		)
		if isUniqueConstraintError(err) {
			return attendance.Record{}, s.conflict(ctx, r)
		}
		if err != nil {
			return attendance.Record{}, fmt.Errorf("failed to insert record: %w", err)
		}
		return saved, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET status = ?, version = ?, body = ?, deleted_at = NULL, updated_at = ?
		WHERE employee_id = ? AND date = ? AND version = ?`,
		saved.Status, saved.Version, string(body), now.Format(time.RFC3339),
		r.EmployeeID, r.Date.String(), r.Version,
	)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to update record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.Record{}, s.conflict(ctx, r)
	}
	return saved, nil
}

// conflict reports the version currently stored for r's day.
func (s *Store) conflict(ctx context.Context, r attendance.Record) error {
	var actual int
	err := s.db.QueryRowContext(ctx,
		"SELECT version FROM attendance_records WHERE employee_id = ? AND date = ?",
		r.EmployeeID, r.Date.String(),
	).Scan(&actual)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read record version: %w", err)
	}
	return &core.VersionConflictError{
		Key:      string(r.EmployeeID) + "/" + r.Date.String(),
		Expected: r.Version,
		Actual:   actual,
	}
}

func (s *Store) ListRecords(ctx context.Context, employee core.EmployeeID, from, to core.Date) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx, `
		SELECT version, body FROM attendance_records
		WHERE employee_id = ? AND date >= ? AND date <= ? AND deleted_at IS NULL
		ORDER BY date ASC`,
		employee, from.String(), to.String(),
	)
}

func (s *Store) ListRecordsByDate(ctx context.Context, date core.Date) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx, `
		SELECT version, body FROM attendance_records
		WHERE date = ? AND deleted_at IS NULL
		ORDER BY employee_id ASC`,
		date.String(),
	)
}

// DeleteRecord hides a record. The row stays for audit.
func (s *Store) DeleteRecord(ctx context.Context, employee core.EmployeeID, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE attendance_records SET deleted_at = ?
		WHERE employee_id = ? AND date = ? AND deleted_at IS NULL`,
		s.now().UTC().Format(time.RFC3339), employee, date.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return recordNotFound(employee, date)
	}
	return nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]attendance.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (attendance.Record, error) {
	var (
		r       attendance.Record
		version int
		body    string
	)
	if err := row.Scan(&version, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan record: %w", err)
	}
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return r, fmt.Errorf("failed to decode record: %w", err)
	}
	r.Version = version
	return r, nil
}

func recordNotFound(employee core.EmployeeID, date core.Date) error {
	return &core.NotFoundError{Kind: "attendance record", Key: string(employee) + "/" + date.String()}
}

// =============================================================================
// PROFILE STORE (attendance.ProfileStore interface)
// =============================================================================

func (s *Store) SaveProfile(ctx context.Context, p policy.Profile) error {
	if p.EmployeeID == "" {
		return core.Invalid("employee_id", nil, "is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	branches, _ := json.Marshal(p.AdditionalBranches)
	var wage sql.NullString
	if p.HourlyWage != nil {
		wage = sql.NullString{String: p.HourlyWage.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees
		(id, name, employee_type, scheduled_minutes, assigned_branch, additional_branches, hourly_wage, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			employee_type = excluded.employee_type,
			scheduled_minutes = excluded.scheduled_minutes,
			assigned_branch = excluded.assigned_branch,
			additional_branches = excluded.additional_branches,
			hourly_wage = excluded.hourly_wage`,
		p.EmployeeID, p.Name, p.Type, int(p.ScheduledMinutes), nullString(p.AssignedBranch),
		string(branches), wage, s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id core.EmployeeID) (policy.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := scanProfile(s.db.QueryRowContext(ctx, `
		SELECT id, name, employee_type, scheduled_minutes, assigned_branch, additional_branches, hourly_wage
		FROM employees WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return policy.Profile{}, &core.NotFoundError{Kind: "employee", Key: string(id)}
	}
	return p, err
}

func (s *Store) ListProfiles(ctx context.Context) ([]policy.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, employee_type, scheduled_minutes, assigned_branch, additional_branches, hourly_wage
		FROM employees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var profiles []policy.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanProfile(row scanner) (policy.Profile, error) {
	var (
		p         policy.Profile
		scheduled int
		branch    sql.NullString
		branches  sql.NullString
		wage      sql.NullString
	)
	if err := row.Scan(&p.EmployeeID, &p.Name, &p.Type, &scheduled, &branch, &branches, &wage); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan employee: %w", err)
	}
	p.ScheduledMinutes = core.Minutes(scheduled)
	p.AssignedBranch = branch.String
	if branches.Valid && branches.String != "" && branches.String != "null" {
		if err := json.Unmarshal([]byte(branches.String), &p.AdditionalBranches); err != nil {
			return p, fmt.Errorf("failed to decode branches: %w", err)
		}
	}
	if wage.Valid {
		w, err := decimal.NewFromString(wage.String)
		if err != nil {
			return p, fmt.Errorf("failed to decode hourly wage: %w", err)
		}
		p.HourlyWage = &w
	}
	return p, nil
}

// =============================================================================
// HOLIDAY CALENDAR (attendance.HolidayStore interface)
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h core.Holiday) error {
	if err := h.Date.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (date, name, recurring, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			name = excluded.name,
			recurring = excluded.recurring`,
		h.Date.String(), h.Name, h.Recurring, s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE date = ?", date.String())
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "holiday", Key: date.String()}
	}
	return nil
}

func (s *Store) ListHolidays(ctx context.Context) ([]core.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT date, name, recurring FROM holidays ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []core.Holiday
	for rows.Next() {
		var (
			h    core.Holiday
			date string
		)
		if err := rows.Scan(&date, &h.Name, &h.Recurring); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, err
		}
		h.Date = d
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// PUNCH JOURNAL (biometric.EventStore interface)
// =============================================================================

func (s *Store) AppendEvent(ctx context.Context, e biometric.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO punch_events
		(id, employee_id, device_id, ts, work_code, verification, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EmployeeID, e.DeviceID, e.Timestamp.UnixNano(), int(e.WorkCode),
		string(e.Verification), e.Confidence, s.now().UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return core.ErrDuplicateEvent
	}
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *Store) EventExists(ctx context.Context, id core.EventID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM punch_events WHERE id = ?", id).Scan(&count)
	return count > 0, err
}

// LoadEvents returns punches in [from, to). Timestamps come back in UTC.
func (s *Store) LoadEvents(ctx context.Context, employee core.EmployeeID, from, to time.Time) ([]biometric.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, device_id, ts, work_code, verification, confidence
		FROM punch_events
		WHERE employee_id = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC, id ASC`,
		employee, from.UnixNano(), to.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []biometric.Event
	for rows.Next() {
		var (
			e    biometric.Event
			ts   int64
			code int
		)
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.DeviceID, &ts, &code, &e.Verification, &e.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.WorkCode = workcode.Code(code)
		events = append(events, e)
	}
	return events, rows.Err()
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset deletes all data. Used by demo scenarios and tests.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"attendance_records", "employees", "holidays", "punch_events"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}
