/*
Package postgres provides a PostgreSQL implementation of attendance.Repository.

PURPOSE:
  Production persistence. Same tables and the same version check as
  store/sqlite; the database enforces one writer per employee-day, so no
  process-level lock is taken.

VERSIONING:
  - Version 0: INSERT; a unique violation (23505) on the primary key means
    someone else created the day first
  - Version n: UPDATE ... WHERE version = n; zero rows means a lost race
  Both surface as *core.VersionConflictError.

USAGE:
  store, err := postgres.New(ctx, os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqlite/sqlite.go: the single-node twin of this store
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/workcode"
)

// Pool sizing.
const (
	MaxConns = 25
	MinConns = 5
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

var _ attendance.Repository = (*Store)(nil)

// New connects, pings and migrates.
func New(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	config.MaxConns = MaxConns
	config.MinConns = MinConns

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS attendance_records (
		employee_id TEXT NOT NULL,
		date DATE NOT NULL,
		id TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		body JSONB NOT NULL,
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (employee_id, date)
	);
	CREATE INDEX IF NOT EXISTS idx_records_date
		ON attendance_records(date) WHERE deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		employee_type TEXT NOT NULL,
		scheduled_minutes INTEGER NOT NULL DEFAULT 0,
		assigned_branch TEXT,
		additional_branches JSONB,
		hourly_wage TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS holidays (
		date DATE PRIMARY KEY,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS punch_events (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		device_id TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		work_code INTEGER NOT NULL,
		verification TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_punch_events_employee_ts
		ON punch_events(employee_id, ts);
	`)
	return err
}

// =============================================================================
// RECORDS
// =============================================================================

func (s *Store) GetRecord(ctx context.Context, employee core.EmployeeID, date core.Date) (attendance.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT version, body FROM attendance_records
		WHERE employee_id = $1 AND date = $2 AND deleted_at IS NULL`,
		string(employee), date.Start(time.UTC),
	)
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return attendance.Record{}, recordNotFound(employee, date)
	}
	return r, err
}

func (s *Store) SaveRecord(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	if err := r.Validate(); err != nil {
		return attendance.Record{}, err
	}
	now := time.Now().UTC()
	saved := r.Clone()
	saved.Version = r.Version + 1
	saved.UpdatedAt = now
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	body, err := json.Marshal(saved)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("encode record: %w", err)
	}

	if r.Version == 0 {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO attendance_records
			(employee_id, date, id, status, version, body, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			string(r.EmployeeID), r.Date.Start(time.UTC), string(r.ID), string(saved.Status),
			saved.Version, body, saved.CreatedAt, now,
		)
		if isUniqueViolation(err) {
			return attendance.Record{}, s.conflict(ctx, r)
		}
		if err != nil {
			return attendance.Record{}, fmt.Errorf("insert record: %w", err)
		}
		return saved, nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE attendance_records
		SET status = $1, version = $2, body = $3, deleted_at = NULL, updated_at = $4
		WHERE employee_id = $5 AND date = $6 AND version = $7`,
		string(saved.Status), saved.Version, body, now,
		string(r.EmployeeID), r.Date.Start(time.UTC), r.Version,
	)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return attendance.Record{}, s.conflict(ctx, r)
	}
	return saved, nil
}

func (s *Store) conflict(ctx context.Context, r attendance.Record) error {
	var actual int
	err := s.pool.QueryRow(ctx,
		"SELECT version FROM attendance_records WHERE employee_id = $1 AND date = $2",
		string(r.EmployeeID), r.Date.Start(time.UTC),
	).Scan(&actual)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("read record version: %w", err)
	}
	return &core.VersionConflictError{
		Key:      string(r.EmployeeID) + "/" + r.Date.String(),
		Expected: r.Version,
		Actual:   actual,
	}
}

func (s *Store) ListRecords(ctx context.Context, employee core.EmployeeID, from, to core.Date) ([]attendance.Record, error) {
	return s.queryRecords(ctx, `
		SELECT version, body FROM attendance_records
		WHERE employee_id = $1 AND date BETWEEN $2 AND $3 AND deleted_at IS NULL
		ORDER BY date`,
		string(employee), from.Start(time.UTC), to.Start(time.UTC),
	)
}

func (s *Store) ListRecordsByDate(ctx context.Context, date core.Date) ([]attendance.Record, error) {
	return s.queryRecords(ctx, `
		SELECT version, body FROM attendance_records
		WHERE date = $1 AND deleted_at IS NULL
		ORDER BY employee_id`,
		date.Start(time.UTC),
	)
}

func (s *Store) DeleteRecord(ctx context.Context, employee core.EmployeeID, date core.Date) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE attendance_records SET deleted_at = now()
		WHERE employee_id = $1 AND date = $2 AND deleted_at IS NULL`,
		string(employee), date.Start(time.UTC),
	)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return recordNotFound(employee, date)
	}
	return nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]attendance.Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []attendance.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (attendance.Record, error) {
	var (
		r       attendance.Record
		version int
		body    []byte
	)
	if err := row.Scan(&version, &body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan record: %w", err)
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return r, fmt.Errorf("decode record: %w", err)
	}
	r.Version = version
	return r, nil
}

func recordNotFound(employee core.EmployeeID, date core.Date) error {
	return &core.NotFoundError{Kind: "attendance record", Key: string(employee) + "/" + date.String()}
}

// =============================================================================
// PROFILES
// =============================================================================

func (s *Store) SaveProfile(ctx context.Context, p policy.Profile) error {
	if p.EmployeeID == "" {
		return core.Invalid("employee_id", nil, "is required")
	}
	branches, _ := json.Marshal(p.AdditionalBranches)
	var wage *string
	if p.HourlyWage != nil {
		w := p.HourlyWage.String()
		wage = &w
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO employees
		(id, name, employee_type, scheduled_minutes, assigned_branch, additional_branches, hourly_wage)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			employee_type = EXCLUDED.employee_type,
			scheduled_minutes = EXCLUDED.scheduled_minutes,
			assigned_branch = EXCLUDED.assigned_branch,
			additional_branches = EXCLUDED.additional_branches,
			hourly_wage = EXCLUDED.hourly_wage`,
		string(p.EmployeeID), p.Name, string(p.Type), int(p.ScheduledMinutes),
		p.AssignedBranch, branches, wage,
	)
	if err != nil {
		return fmt.Errorf("save employee: %w", err)
	}
	return nil
}

const profileColumns = `id, name, employee_type, scheduled_minutes, COALESCE(assigned_branch, ''),
	additional_branches, hourly_wage`

func (s *Store) GetProfile(ctx context.Context, id core.EmployeeID) (policy.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx,
		"SELECT "+profileColumns+" FROM employees WHERE id = $1", string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return policy.Profile{}, &core.NotFoundError{Kind: "employee", Key: string(id)}
	}
	return p, err
}

func (s *Store) ListProfiles(ctx context.Context) ([]policy.Profile, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+profileColumns+" FROM employees ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var out []policy.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProfile(row pgx.Row) (policy.Profile, error) {
	var (
		p                 policy.Profile
		id, name, typ, br string
		scheduled         int
		branches          []byte
		wage              *string
	)
	if err := row.Scan(&id, &name, &typ, &scheduled, &br, &branches, &wage); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan employee: %w", err)
	}
	p.EmployeeID = core.EmployeeID(id)
	p.Name = name
	p.Type = policy.EmployeeType(typ)
	p.ScheduledMinutes = core.Minutes(scheduled)
	p.AssignedBranch = br
	if len(branches) > 0 {
		if err := json.Unmarshal(branches, &p.AdditionalBranches); err != nil {
			return p, fmt.Errorf("decode branches: %w", err)
		}
	}
	if wage != nil {
		w, err := decimal.NewFromString(*wage)
		if err != nil {
			return p, fmt.Errorf("decode hourly wage: %w", err)
		}
		p.HourlyWage = &w
	}
	return p, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h core.Holiday) error {
	if err := h.Date.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO holidays (date, name, recurring) VALUES ($1, $2, $3)
		ON CONFLICT (date) DO UPDATE SET name = EXCLUDED.name, recurring = EXCLUDED.recurring`,
		h.Date.Start(time.UTC), h.Name, h.Recurring,
	)
	if err != nil {
		return fmt.Errorf("save holiday: %w", err)
	}
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, date core.Date) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM holidays WHERE date = $1", date.Start(time.UTC))
	if err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Kind: "holiday", Key: date.String()}
	}
	return nil
}

func (s *Store) ListHolidays(ctx context.Context) ([]core.Holiday, error) {
	rows, err := s.pool.Query(ctx, "SELECT date, name, recurring FROM holidays ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("query holidays: %w", err)
	}
	defer rows.Close()

	var out []core.Holiday
	for rows.Next() {
		var (
			h core.Holiday
			d time.Time
		)
		if err := rows.Scan(&d, &h.Name, &h.Recurring); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		h.Date = core.DateOf(d)
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// PUNCH JOURNAL
// =============================================================================

func (s *Store) AppendEvent(ctx context.Context, e biometric.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO punch_events (id, employee_id, device_id, ts, work_code, verification, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.ID), string(e.EmployeeID), string(e.DeviceID), e.Timestamp.UTC(),
		int(e.WorkCode), string(e.Verification), e.Confidence,
	)
	if isUniqueViolation(err) {
		return core.ErrDuplicateEvent
	}
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *Store) EventExists(ctx context.Context, id core.EventID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM punch_events WHERE id = $1)", string(id)).Scan(&exists)
	return exists, err
}

func (s *Store) LoadEvents(ctx context.Context, employee core.EmployeeID, from, to time.Time) ([]biometric.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, employee_id, device_id, ts, work_code, verification, confidence
		FROM punch_events
		WHERE employee_id = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts, id`,
		string(employee), from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []biometric.Event
	for rows.Next() {
		var (
			id, emp, dev, verification string
			ts                         time.Time
			code, confidence           int
		)
		if err := rows.Scan(&id, &emp, &dev, &ts, &code, &verification, &confidence); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, biometric.Event{
			ID:           core.EventID(id),
			EmployeeID:   core.EmployeeID(emp),
			DeviceID:     core.DeviceID(dev),
			Timestamp:    ts.UTC(),
			WorkCode:     workcode.Code(code),
			Verification: biometric.VerificationType(verification),
			Confidence:   confidence,
		})
	}
	return out, rows.Err()
}

// Reset deletes all data.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE attendance_records, employees, holidays, punch_events")
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
