// Package memory provides an in-memory engine.Store for tests and dev runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/obligation-engine/engine"
	"github.com/warp/obligation-engine/ledger"
	"github.com/warp/obligation-engine/obligation"
)

// Store keeps everything in maps guarded by one RWMutex. Reads return copies
// so callers cannot mutate stored state behind the store's back.
type Store struct {
	mu           sync.RWMutex
	accounts     map[ledger.AccountID]ledger.Account
	entries      map[ledger.EntryID]ledger.Entry
	obligations  map[ledger.ObligationID]obligation.Record
	schedules    map[ledger.ScheduleID]obligation.Schedule
	scheduleKeys map[schedKey]ledger.ScheduleID
}

type schedKey struct {
	ObligationID ledger.ObligationID
	Period       ledger.Period
}

var _ engine.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:     make(map[ledger.AccountID]ledger.Account),
		entries:      make(map[ledger.EntryID]ledger.Entry),
		obligations:  make(map[ledger.ObligationID]obligation.Record),
		schedules:    make(map[ledger.ScheduleID]obligation.Schedule),
		scheduleKeys: make(map[schedKey]ledger.ScheduleID),
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) SaveAccount(_ context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) GetAccount(_ context.Context, id ledger.AccountID) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	return a, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// ENTRIES
// =============================================================================

func (s *Store) CreateEntry(_ context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createEntryLocked(e)
}

func (s *Store) CreateEntries(_ context.Context, es []ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range es {
		if _, exists := s.entries[e.ID]; exists {
			return &ledger.ValidationError{Field: "id", Reason: "duplicate entry id " + string(e.ID)}
		}
	}
	for _, e := range es {
		if err := s.createEntryLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createEntryLocked(e ledger.Entry) error {
	if _, exists := s.entries[e.ID]; exists {
		return &ledger.ValidationError{Field: "id", Reason: "duplicate entry id " + string(e.ID)}
	}
	s.entries[e.ID] = e
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, id ledger.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return &ledger.NotFoundError{Kind: "entry", ID: string(id)}
	}
	delete(s.entries, id)
	return nil
}

func (s *Store) GetEntry(_ context.Context, id ledger.EntryID) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return ledger.Entry{}, &ledger.NotFoundError{Kind: "entry", ID: string(id)}
	}
	return e, nil
}

func (s *Store) EntriesByAccount(_ context.Context, id ledger.AccountID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Entry
	for _, e := range s.entries {
		if e.AccountID == id {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (s *Store) EntriesByAccountInRange(_ context.Context, id ledger.AccountID, from, to ledger.Period) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Entry
	for _, e := range s.entries {
		if e.AccountID != id {
			continue
		}
		p := ledger.PeriodOf(e.Date)
		if p.Before(from) || p.After(to) {
			continue
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func (s *Store) EntriesBySchedule(_ context.Context, id ledger.ScheduleID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Entry
	for _, e := range s.entries {
		if e.ScheduleID == id {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(es []ledger.Entry) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].Date.Equal(es[j].Date) {
			return es[i].Date.Before(es[j].Date)
		}
		return es[i].CreatedAt.Before(es[j].CreatedAt)
	})
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

func (s *Store) SaveObligation(_ context.Context, r obligation.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.LegacySchedules = copySchedules(r.LegacySchedules)
	s.obligations[r.ID] = r
	return nil
}

func (s *Store) GetObligation(_ context.Context, id ledger.ObligationID) (obligation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.obligations[id]
	if !ok {
		return obligation.Record{}, &ledger.NotFoundError{Kind: "obligation", ID: string(id)}
	}
	r.LegacySchedules = copySchedules(r.LegacySchedules)
	return r, nil
}

func (s *Store) ListObligations(_ context.Context) ([]obligation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]obligation.Record, 0, len(s.obligations))
	for _, r := range s.obligations {
		r.LegacySchedules = copySchedules(r.LegacySchedules)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copySchedules(in []obligation.Schedule) []obligation.Schedule {
	if in == nil {
		return nil
	}
	out := make([]obligation.Schedule, len(in))
	copy(out, in)
	return out
}

// =============================================================================
// SCHEDULES
// =============================================================================

func (s *Store) UpsertSchedule(_ context.Context, sched obligation.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := schedKey{ObligationID: sched.ObligationID, Period: sched.Period}
	if existing, ok := s.scheduleKeys[key]; ok && existing != sched.ID {
		// The key is the identity; keep the first row's id stable.
		sched.ID = existing
	}
	s.schedules[sched.ID] = sched
	s.scheduleKeys[key] = sched.ID
	return nil
}

func (s *Store) GetSchedule(_ context.Context, id ledger.ScheduleID) (obligation.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.schedules[id]
	if !ok {
		return obligation.Schedule{}, &ledger.NotFoundError{Kind: "schedule", ID: string(id)}
	}
	return sched, nil
}

func (s *Store) ScheduleByKey(_ context.Context, obligationID ledger.ObligationID, p ledger.Period) (obligation.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.scheduleKeys[schedKey{ObligationID: obligationID, Period: p}]
	if !ok {
		return obligation.Schedule{}, &ledger.NotFoundError{Kind: "schedule", ID: string(obligationID) + ":" + p.String()}
	}
	return s.schedules[id], nil
}

func (s *Store) SchedulesByObligation(_ context.Context, obligationID ledger.ObligationID) ([]obligation.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []obligation.Schedule
	for _, sched := range s.schedules {
		if sched.ObligationID == obligationID {
			out = append(out, sched)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx simulates atomicity with a snapshot: if fn fails, the whole state
// is restored. Good enough for a single-writer test store.
func (s *Store) WithTx(_ context.Context, fn func(engine.Store) error) error {
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	accounts     map[ledger.AccountID]ledger.Account
	entries      map[ledger.EntryID]ledger.Entry
	obligations  map[ledger.ObligationID]obligation.Record
	schedules    map[ledger.ScheduleID]obligation.Schedule
	scheduleKeys map[schedKey]ledger.ScheduleID
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		accounts:     make(map[ledger.AccountID]ledger.Account, len(s.accounts)),
		entries:      make(map[ledger.EntryID]ledger.Entry, len(s.entries)),
		obligations:  make(map[ledger.ObligationID]obligation.Record, len(s.obligations)),
		schedules:    make(map[ledger.ScheduleID]obligation.Schedule, len(s.schedules)),
		scheduleKeys: make(map[schedKey]ledger.ScheduleID, len(s.scheduleKeys)),
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	for k, v := range s.entries {
		snap.entries[k] = v
	}
	for k, v := range s.obligations {
		v.LegacySchedules = copySchedules(v.LegacySchedules)
		snap.obligations[k] = v
	}
	for k, v := range s.schedules {
		snap.schedules[k] = v
	}
	for k, v := range s.scheduleKeys {
		snap.scheduleKeys[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.entries = snap.entries
	s.obligations = snap.obligations
	s.schedules = snap.schedules
	s.scheduleKeys = snap.scheduleKeys
}
