/*
Package engine exposes the reconciliation operations to callers.

PURPOSE:
  The Engine is the single write path into the ledger and the read path for
  every derived value. It wires the pure pieces together: sign convention at
  entry creation, lazy schedule materialization, status derivation, balance
  derivation, and billing-cycle sync.

OPERATIONS:
  CreateEntry / CreateTransfer   ledger writes (validated, invalidating)
  DeleteEntry                    the only undo primitive
  ResolveStatus                  derived status, never cached
  ScheduleStatement              status + paid sum + linked entries
  ComputeBalance                 derived balance, never cached
  SyncBillingCycle               atomic, idempotent expected-amount refresh
  ActivateObligation             eager schedule materialization
  MigrateLegacySchedules         one-shot legacy copy

ERROR HANDLING:
  ValidationError for malformed writes and dangling references,
  PreconditionError for capability mismatches, ConsistencyError for
  contradictory stored state. No retries, no partial writes: multi-row
  operations run inside WithTx.
*/
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/billing"
	"github.com/warp/obligation-engine/ledger"
	"github.com/warp/obligation-engine/obligation"
)

// =============================================================================
// STORE - Combined persistence contract
// =============================================================================

// Store is everything the engine needs from persistence. Both store/memory
// and store/sqlite implement it.
type Store interface {
	ledger.AccountStore
	ledger.EntryStore
	obligation.Store
	obligation.ScheduleStore

	// WithTx executes fn atomically: if fn returns an error, none of its
	// writes survive.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store    Store
	Notifier *Notifier

	// Now is the clock used for overdue decisions. Overridable in tests.
	Now func() time.Time
}

func New(store Store) *Engine {
	return &Engine{
		Store:    store,
		Notifier: NewNotifier(),
		Now:      time.Now,
	}
}

var idSeq uint64

func newID(prefix string) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, time.Now().UnixNano(), atomic.AddUint64(&idSeq, 1))
}

// =============================================================================
// LEDGER WRITES
// =============================================================================

// CreateEntryInput describes a ledger write. Magnitude is always positive;
// Kind decides the stored sign. A schedule link is given either directly via
// ScheduleID, or as (ObligationID, Period) to materialize the schedule lazily
// on first payment.
type CreateEntryInput struct {
	AccountID         ledger.AccountID
	Kind              ledger.EntryKind
	Magnitude         decimal.Decimal
	Date              time.Time
	ScheduleID        ledger.ScheduleID
	ObligationID      ledger.ObligationID
	Period            *ledger.Period
	CounterAccountID  ledger.AccountID
	InstallmentLinked bool
	Memo              string
}

// CreateEntry validates the input, resolves or lazily materializes the linked
// schedule, and persists the entry. Fails with a ValidationError when the
// schedule reference does not resolve.
func (e *Engine) CreateEntry(ctx context.Context, in CreateEntryInput) (ledger.Entry, error) {
	if _, err := e.Store.GetAccount(ctx, in.AccountID); err != nil {
		return ledger.Entry{}, err
	}

	entry, err := ledger.NewEntry(ledger.EntryID(newID("ent")), in.AccountID, in.Kind, in.Magnitude, in.Date)
	if err != nil {
		return ledger.Entry{}, err
	}
	entry.CounterAccountID = in.CounterAccountID
	entry.InstallmentLinked = in.InstallmentLinked
	entry.Memo = in.Memo

	sched, linked, err := e.linkSchedule(ctx, in)
	if err != nil {
		return ledger.Entry{}, err
	}
	if linked {
		entry.ScheduleID = sched.ID
		entry.ObligationID = sched.ObligationID
	}

	if err := e.Store.CreateEntry(ctx, entry); err != nil {
		return ledger.Entry{}, err
	}

	e.Notifier.Publish(Invalidation{
		Reason:       ReasonEntryCreated,
		AccountID:    entry.AccountID,
		EntryID:      entry.ID,
		ScheduleID:   entry.ScheduleID,
		ObligationID: entry.ObligationID,
	})
	return entry, nil
}

// linkSchedule resolves the schedule reference of a write, creating the row
// lazily when the caller addressed it by (obligation, period).
func (e *Engine) linkSchedule(ctx context.Context, in CreateEntryInput) (obligation.Schedule, bool, error) {
	switch {
	case in.ScheduleID != "":
		sched, err := e.Store.GetSchedule(ctx, in.ScheduleID)
		if ledger.IsNotFound(err) {
			return obligation.Schedule{}, false, &ledger.ValidationError{
				Field:  "schedule_id",
				Reason: fmt.Sprintf("schedule %s does not exist", in.ScheduleID),
			}
		}
		if err != nil {
			return obligation.Schedule{}, false, err
		}
		return sched, true, nil

	case in.ObligationID != "" && in.Period != nil:
		sched, err := e.ensureSchedule(ctx, in.ObligationID, *in.Period)
		if err != nil {
			return obligation.Schedule{}, false, err
		}
		return sched, true, nil

	case in.ObligationID != "" || in.Period != nil:
		return obligation.Schedule{}, false, &ledger.ValidationError{
			Field:  "obligation_id",
			Reason: "lazy schedule link needs both obligation and period",
		}

	default:
		return obligation.Schedule{}, false, nil
	}
}

// ensureSchedule returns the schedule for (obligation, period), materializing
// it from the obligation's nominal amount when it does not exist yet.
func (e *Engine) ensureSchedule(ctx context.Context, id ledger.ObligationID, p ledger.Period) (obligation.Schedule, error) {
	sched, err := e.Store.ScheduleByKey(ctx, id, p)
	if err == nil {
		return sched, nil
	}
	if !ledger.IsNotFound(err) {
		return obligation.Schedule{}, err
	}

	rec, err := e.Store.GetObligation(ctx, id)
	if ledger.IsNotFound(err) {
		return obligation.Schedule{}, &ledger.ValidationError{
			Field:  "obligation_id",
			Reason: fmt.Sprintf("obligation %s does not exist", id),
		}
	}
	if err != nil {
		return obligation.Schedule{}, err
	}

	obl, err := rec.Obligation()
	if err != nil {
		return obligation.Schedule{}, err
	}
	sched, err = obligation.MaterializeOne(obl, p)
	if err != nil {
		return obligation.Schedule{}, err
	}
	if err := e.Store.UpsertSchedule(ctx, sched); err != nil {
		return obligation.Schedule{}, err
	}
	return sched, nil
}

// TransferInput describes a two-entry transfer between accounts.
type TransferInput struct {
	FromAccountID ledger.AccountID
	ToAccountID   ledger.AccountID
	Magnitude     decimal.Decimal
	Date          time.Time
	Memo          string
}

// CreateTransfer writes both halves of a transfer atomically.
func (e *Engine) CreateTransfer(ctx context.Context, in TransferInput) (ledger.Entry, ledger.Entry, error) {
	if _, err := e.Store.GetAccount(ctx, in.FromAccountID); err != nil {
		return ledger.Entry{}, ledger.Entry{}, err
	}
	if _, err := e.Store.GetAccount(ctx, in.ToAccountID); err != nil {
		return ledger.Entry{}, ledger.Entry{}, err
	}

	out, in2, err := ledger.Transfer(
		ledger.EntryID(newID("ent")), ledger.EntryID(newID("ent")),
		in.FromAccountID, in.ToAccountID, in.Magnitude, in.Date,
	)
	if err != nil {
		return ledger.Entry{}, ledger.Entry{}, err
	}
	out.Memo, in2.Memo = in.Memo, in.Memo

	if err := e.Store.CreateEntries(ctx, []ledger.Entry{out, in2}); err != nil {
		return ledger.Entry{}, ledger.Entry{}, err
	}

	e.Notifier.Publish(Invalidation{Reason: ReasonEntryCreated, AccountID: out.AccountID, EntryID: out.ID})
	e.Notifier.Publish(Invalidation{Reason: ReasonEntryCreated, AccountID: in2.AccountID, EntryID: in2.ID})
	return out, in2, nil
}

// DeleteEntry removes an entry unconditionally. Schedule-linked entries get
// no special handling: the next ResolveStatus sees the reduced entry set and
// regresses on its own.
func (e *Engine) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	entry, err := e.Store.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Store.DeleteEntry(ctx, id); err != nil {
		return err
	}

	e.Notifier.Publish(Invalidation{
		Reason:       ReasonEntryDeleted,
		AccountID:    entry.AccountID,
		EntryID:      entry.ID,
		ScheduleID:   entry.ScheduleID,
		ObligationID: entry.ObligationID,
	})
	return nil
}

// =============================================================================
// DERIVED READS
// =============================================================================

// ResolveStatus derives the current status of a schedule from its linked
// entries. Never mutates storage. Surfaces a ConsistencyError when a linked
// entry references a different obligation than the schedule.
func (e *Engine) ResolveStatus(ctx context.Context, id ledger.ScheduleID) (obligation.Status, error) {
	sched, linked, err := e.scheduleEntries(ctx, id)
	if err != nil {
		return "", err
	}
	return obligation.Resolve(sched, linked, e.Now()), nil
}

// Statement is the read model for one schedule: the row plus everything
// derived from its linked entries.
type Statement struct {
	Schedule obligation.Schedule
	Status   obligation.Status
	PaidSum  decimal.Decimal
	Entries  []ledger.Entry
}

// ScheduleStatement returns the schedule with its derived status, paid sum
// and linked entries.
func (e *Engine) ScheduleStatement(ctx context.Context, id ledger.ScheduleID) (Statement, error) {
	sched, linked, err := e.scheduleEntries(ctx, id)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Schedule: sched,
		Status:   obligation.Resolve(sched, linked, e.Now()),
		PaidSum:  obligation.PaidSum(linked),
		Entries:  linked,
	}, nil
}

func (e *Engine) scheduleEntries(ctx context.Context, id ledger.ScheduleID) (obligation.Schedule, []ledger.Entry, error) {
	sched, err := e.Store.GetSchedule(ctx, id)
	if err != nil {
		return obligation.Schedule{}, nil, err
	}
	linked, err := e.Store.EntriesBySchedule(ctx, id)
	if err != nil {
		return obligation.Schedule{}, nil, err
	}
	for _, entry := range linked {
		if entry.ObligationID != "" && entry.ObligationID != sched.ObligationID {
			return obligation.Schedule{}, nil, &ledger.ConsistencyError{
				ScheduleID:     sched.ID,
				EntryID:        entry.ID,
				WantObligation: sched.ObligationID,
				GotObligation:  entry.ObligationID,
			}
		}
	}
	return sched, linked, nil
}

// ComputeBalance derives the account balance from its full entry set.
func (e *Engine) ComputeBalance(ctx context.Context, id ledger.AccountID) (decimal.Decimal, error) {
	account, err := e.Store.GetAccount(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	entries, err := e.Store.EntriesByAccount(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.Balance(account, entries), nil
}

// =============================================================================
// OBLIGATION LIFECYCLE
// =============================================================================

// ActivateObligation stores the record and eagerly materializes its first
// run of schedules (DefaultEagerPeriods when count is zero). Lazy-lifecycle
// callers pass count < 0 to skip materialization entirely.
func (e *Engine) ActivateObligation(ctx context.Context, rec obligation.Record, count int) error {
	if rec.Source == "" {
		rec.Source = obligation.SourceNormalized
	}
	obl, err := rec.Obligation()
	if err != nil {
		return err
	}
	if rec.BillingCycleSynced() {
		account, err := e.Store.GetAccount(ctx, rec.LinkedAccountID)
		if err != nil {
			return err
		}
		if !account.IsRevolving() {
			return &ledger.PreconditionError{
				Subject: "obligation " + string(rec.ID),
				Reason:  "linked account is not a revolving-credit account",
			}
		}
	}

	return e.Store.WithTx(ctx, func(s Store) error {
		if err := s.SaveObligation(ctx, rec); err != nil {
			return err
		}
		if count < 0 || rec.Source == obligation.SourceLegacyEmbedded {
			return nil
		}
		for _, sched := range obligation.MaterializeEager(obl, count) {
			if err := s.UpsertSchedule(ctx, sched); err != nil {
				return err
			}
		}
		return nil
	})
}

// SyncBillingCycle recomputes the expected amounts of a billing-cycle-synced
// obligation from its linked revolving-credit account. All affected schedules
// are written in one transaction; a failure leaves every row untouched.
// Re-running with an unchanged entry set produces identical schedule state.
func (e *Engine) SyncBillingCycle(ctx context.Context, id ledger.ObligationID) error {
	rec, err := e.Store.GetObligation(ctx, id)
	if err != nil {
		return err
	}
	if !rec.BillingCycleSynced() {
		return &ledger.PreconditionError{
			Subject: "obligation " + string(id),
			Reason:  "not linked to a revolving-credit account",
		}
	}
	account, err := e.Store.GetAccount(ctx, rec.LinkedAccountID)
	if err != nil {
		return err
	}
	entries, err := e.Store.EntriesByAccount(ctx, account.ID)
	if err != nil {
		return err
	}
	totals, err := billing.Aggregate(account, entries, billing.Options{})
	if err != nil {
		return err
	}
	obl, err := rec.Obligation()
	if err != nil {
		return err
	}

	err = e.Store.WithTx(ctx, func(s Store) error {
		for period, total := range totals {
			sched, err := s.ScheduleByKey(ctx, id, period)
			if ledger.IsNotFound(err) {
				sched = obligation.Schedule{
					ID:           obligation.NewScheduleID(id, period),
					ObligationID: id,
					Kind:         rec.Kind,
					Period:       period,
					DueDate:      obl.DueDateFor(period),
					CreatedAt:    time.Now().UTC(),
				}
			} else if err != nil {
				return err
			}
			sched.ExpectedAmount = total
			if err := s.UpsertSchedule(ctx, sched); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.Notifier.Publish(Invalidation{Reason: ReasonCycleSynced, AccountID: account.ID, ObligationID: id})
	return nil
}

// MigrateLegacySchedules copies an obligation's embedded legacy schedules
// into the normalized store. One-shot and idempotent; the second call reports
// zero copied rows.
func (e *Engine) MigrateLegacySchedules(ctx context.Context, id ledger.ObligationID) (int, error) {
	rec, err := e.Store.GetObligation(ctx, id)
	if err != nil {
		return 0, err
	}

	var copied int
	err = e.Store.WithTx(ctx, func(s Store) error {
		copied, err = obligation.MigrateLegacy(ctx, &rec, s, s)
		return err
	})
	if err != nil {
		return 0, err
	}

	if copied > 0 {
		e.Notifier.Publish(Invalidation{Reason: ReasonLegacyMigrated, ObligationID: id})
	}
	return copied, nil
}

// ObligationSchedules returns an obligation's schedules from whichever
// representation it uses, each with its derived statement.
func (e *Engine) ObligationSchedules(ctx context.Context, id ledger.ObligationID) ([]Statement, error) {
	rec, err := e.Store.GetObligation(ctx, id)
	if err != nil {
		return nil, err
	}
	schedules, err := obligation.SchedulesFor(ctx, rec, e.Store)
	if err != nil {
		return nil, err
	}

	statements := make([]Statement, 0, len(schedules))
	for _, sched := range schedules {
		linked, err := e.Store.EntriesBySchedule(ctx, sched.ID)
		if err != nil {
			return nil, err
		}
		statements = append(statements, Statement{
			Schedule: sched,
			Status:   obligation.Resolve(sched, linked, e.Now()),
			PaidSum:  obligation.PaidSum(linked),
			Entries:  linked,
		})
	}
	return statements, nil
}

// ConsistencyCheck sweeps one obligation's schedules and fails on the first
// linked entry that references a different obligation. Detection only; the
// contradiction is surfaced, never repaired.
func (e *Engine) ConsistencyCheck(ctx context.Context, id ledger.ObligationID) error {
	rec, err := e.Store.GetObligation(ctx, id)
	if err != nil {
		return err
	}
	schedules, err := obligation.SchedulesFor(ctx, rec, e.Store)
	if err != nil {
		return err
	}
	for _, sched := range schedules {
		linked, err := e.Store.EntriesBySchedule(ctx, sched.ID)
		if err != nil {
			return err
		}
		for _, entry := range linked {
			if entry.ObligationID != "" && entry.ObligationID != sched.ObligationID {
				return &ledger.ConsistencyError{
					ScheduleID:     sched.ID,
					EntryID:        entry.ID,
					WantObligation: sched.ObligationID,
					GotObligation:  entry.ObligationID,
				}
			}
		}
	}
	return nil
}
