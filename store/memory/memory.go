// Package memory provides an in-memory attendance.Repository for tests and
// development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/policy"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu       sync.RWMutex
	records  map[key]attendance.Record
	deleted  map[key]bool
	profiles map[core.EmployeeID]policy.Profile
	holidays map[core.Date]core.Holiday
	events   map[core.EmployeeID][]biometric.Event
	eventIDs map[core.EventID]bool
	now      func() time.Time
}

type key struct {
	employee core.EmployeeID
	date     core.Date
}

var _ attendance.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		records:  make(map[key]attendance.Record),
		deleted:  make(map[key]bool),
		profiles: make(map[core.EmployeeID]policy.Profile),
		holidays: make(map[core.Date]core.Holiday),
		events:   make(map[core.EmployeeID][]biometric.Event),
		eventIDs: make(map[core.EventID]bool),
		now:      time.Now,
	}
}

// =============================================================================
// RECORDS
// =============================================================================

func (s *Store) GetRecord(_ context.Context, employee core.EmployeeID, date core.Date) (attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := key{employee, date}
	r, ok := s.records[k]
	if !ok || s.deleted[k] {
		return attendance.Record{}, &core.NotFoundError{Kind: "attendance record", Key: string(employee) + "/" + date.String()}
	}
	return r.Clone(), nil
}

func (s *Store) SaveRecord(_ context.Context, r attendance.Record) (attendance.Record, error) {
	if err := r.Validate(); err != nil {
		return attendance.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{r.EmployeeID, r.Date}
	current := 0
	if stored, ok := s.records[k]; ok {
		current = stored.Version
		if r.CreatedAt.IsZero() {
			r.CreatedAt = stored.CreatedAt
		}
	}
	if current != r.Version {
		return attendance.Record{}, &core.VersionConflictError{
			Key:      string(r.EmployeeID) + "/" + r.Date.String(),
			Expected: r.Version,
			Actual:   current,
		}
	}

	now := s.now().UTC()
	saved := r.Clone()
	saved.Version = current + 1
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now
	s.records[k] = saved
	delete(s.deleted, k)
	return saved.Clone(), nil
}

func (s *Store) ListRecords(_ context.Context, employee core.EmployeeID, from, to core.Date) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []attendance.Record
	for k, r := range s.records {
		if k.employee == employee && !s.deleted[k] && from.BeforeOrEqual(k.date) && k.date.BeforeOrEqual(to) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) ListRecordsByDate(_ context.Context, date core.Date) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []attendance.Record
	for k, r := range s.records {
		if k.date.Equal(date) && !s.deleted[k] {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (s *Store) DeleteRecord(_ context.Context, employee core.EmployeeID, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{employee, date}
	if _, ok := s.records[k]; !ok || s.deleted[k] {
		return &core.NotFoundError{Kind: "attendance record", Key: string(employee) + "/" + date.String()}
	}
	s.deleted[k] = true
	return nil
}

// =============================================================================
// PROFILES
// =============================================================================

func (s *Store) GetProfile(_ context.Context, id core.EmployeeID) (policy.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return policy.Profile{}, &core.NotFoundError{Kind: "employee", Key: string(id)}
	}
	return p, nil
}

func (s *Store) SaveProfile(_ context.Context, p policy.Profile) error {
	if p.EmployeeID == "" {
		return core.Invalid("employee_id", nil, "is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.AdditionalBranches = append([]string(nil), p.AdditionalBranches...)
	s.profiles[p.EmployeeID] = p
	return nil
}

func (s *Store) ListProfiles(_ context.Context) ([]policy.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]policy.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) SaveHoliday(_ context.Context, h core.Holiday) error {
	if err := h.Date.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidays[h.Date] = h
	return nil
}

func (s *Store) DeleteHoliday(_ context.Context, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.holidays[date]; !ok {
		return &core.NotFoundError{Kind: "holiday", Key: date.String()}
	}
	delete(s.holidays, date)
	return nil
}

func (s *Store) ListHolidays(_ context.Context) ([]core.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Holiday, 0, len(s.holidays))
	for _, h := range s.holidays {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// =============================================================================
// PUNCH JOURNAL (append-only)
// =============================================================================

func (s *Store) AppendEvent(_ context.Context, e biometric.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.eventIDs[e.ID] {
		return core.ErrDuplicateEvent
	}
	evs := s.events[e.EmployeeID]
	i := sort.Search(len(evs), func(i int) bool { return evs[i].Timestamp.After(e.Timestamp) })
	evs = append(evs, biometric.Event{})
	copy(evs[i+1:], evs[i:])
	evs[i] = e
	s.events[e.EmployeeID] = evs
	s.eventIDs[e.ID] = true
	return nil
}

func (s *Store) EventExists(_ context.Context, id core.EventID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventIDs[id], nil
}

func (s *Store) LoadEvents(_ context.Context, employee core.EmployeeID, from, to time.Time) ([]biometric.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []biometric.Event
	for _, e := range s.events[employee] {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Reset deletes all data.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[key]attendance.Record)
	s.deleted = make(map[key]bool)
	s.profiles = make(map[core.EmployeeID]policy.Profile)
	s.holidays = make(map[core.Date]core.Holiday)
	s.events = make(map[core.EmployeeID][]biometric.Event)
	s.eventIDs = make(map[core.EventID]bool)
	return nil
}
