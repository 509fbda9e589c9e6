/*
journal.go - Append-only punch log

PURPOSE:
  Every raw punch that reaches the system is written here once and never
  changed. Attendance records are derived views: they can always be rebuilt
  by replaying the journal for an employee-day.

INVARIANTS:
  1. APPEND-ONLY: no update, no delete
  2. IDEMPOTENT: an event ID is stored at most once; replays are skipped

SEE ALSO:
  - store/memory, store/sqlite, store/postgres: EventStore implementations
*/
package biometric

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/attendance-engine/core"
	"go.uber.org/zap"
)

// EventStore persists raw punches.
type EventStore interface {
	// AppendEvent stores e. Returns core.ErrDuplicateEvent if the ID exists.
	AppendEvent(ctx context.Context, e Event) error

	// EventExists checks whether an event ID is already stored.
	EventExists(ctx context.Context, id core.EventID) (bool, error)

	// LoadEvents returns an employee's punches in [from, to), ordered by time.
	LoadEvents(ctx context.Context, employee core.EmployeeID, from, to time.Time) ([]Event, error)
}

// lookback bounds the search for the previous day's last punch.
const lookback = 36 * time.Hour

type Journal struct {
	Store  EventStore
	Logger *zap.Logger
}

func NewJournal(store EventStore, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{Store: store, Logger: logger.Named("journal")}
}

// Record validates the whole batch, then appends it, skipping IDs already
// stored. An invalid punch rejects the batch before anything is written. It
// returns the events that were new.
func (j *Journal) Record(ctx context.Context, events []Event) ([]Event, error) {
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("event %s: %w", e.ID, err)
		}
	}
	var added []Event
	for _, e := range events {
		err := j.Store.AppendEvent(ctx, e)
		if errors.Is(err, core.ErrDuplicateEvent) {
			j.Logger.Debug("punch already journaled", zap.String("event_id", string(e.ID)))
			continue
		}
		if err != nil {
			return added, fmt.Errorf("append event %s: %w", e.ID, err)
		}
		added = append(added, e)
	}
	return added, nil
}

// Range returns punches in [from, to).
func (j *Journal) Range(ctx context.Context, employee core.EmployeeID, from, to time.Time) ([]Event, error) {
	return j.Store.LoadEvents(ctx, employee, from, to)
}

// LastBefore returns the latest punch before t, or nil.
func (j *Journal) LastBefore(ctx context.Context, employee core.EmployeeID, t time.Time) (*Event, error) {
	events, err := j.Store.LoadEvents(ctx, employee, t.Add(-lookback), t)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	e := events[len(events)-1]
	return &e, nil
}
