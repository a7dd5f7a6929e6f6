package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/obligation-engine/engine"
	"github.com/warp/obligation-engine/ledger"
	"github.com/warp/obligation-engine/obligation"
	"github.com/warp/obligation-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*engine.Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	eng := engine.New(store)
	eng.Now = func() time.Time {
		return time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC)
	}
	return eng, store
}

func seedAccount(t *testing.T, eng *engine.Engine, id ledger.AccountID, opening string) {
	t.Helper()
	err := eng.Store.SaveAccount(context.Background(), ledger.Account{
		ID:      id,
		Name:    string(id),
		Kind:    ledger.AccountOrdinary,
		Opening: ledger.MustDecimal(opening),
	})
	require.NoError(t, err)
}

func seedCard(t *testing.T, eng *engine.Engine, id ledger.AccountID, anchor int) {
	t.Helper()
	err := eng.Store.SaveAccount(context.Background(), ledger.Account{
		ID:               id,
		Name:             string(id),
		Kind:             ledger.AccountRevolvingCredit,
		Opening:          ledger.MustDecimal("0"),
		BillingAnchorDay: anchor,
	})
	require.NoError(t, err)
}

func rentRecord() obligation.Record {
	return obligation.Record{
		ID:            "obl-rent",
		Name:          "Rent",
		Kind:          obligation.KindBiller,
		NominalAmount: ledger.MustDecimal("1450"),
		DueDay:        5,
		Activation:    ledger.NewPeriod(2025, time.November),
		Source:        obligation.SourceNormalized,
	}
}

func jan(day int) time.Time {
	return time.Date(2026, time.January, day, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// LEDGER WRITE TESTS
// =============================================================================

func TestCreateEntry_UnknownAccountRejected(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.CreateEntry(context.Background(), engine.CreateEntryInput{
		AccountID: "acc-ghost",
		Kind:      ledger.KindDeposit,
		Magnitude: ledger.MustDecimal("10"),
		Date:      jan(2),
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCreateEntry_DanglingScheduleRejected(t *testing.T) {
	// A payment pointing at a schedule that does not exist must fail the
	// write, not create an orphaned reference.
	eng, _ := newTestEngine(t)
	seedAccount(t, eng, "acc-1", "1000")

	_, err := eng.CreateEntry(context.Background(), engine.CreateEntryInput{
		AccountID:  "acc-1",
		Kind:       ledger.KindPayment,
		Magnitude:  ledger.MustDecimal("100"),
		Date:       jan(3),
		ScheduleID: "obl-ghost:2026-01",
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCreateEntry_LazyMaterialization(t *testing.T) {
	// GIVEN: An obligation activated without any schedules
	// WHEN: A payment addresses it by (obligation, period)
	// THEN: The schedule row appears with the nominal expected amount, and
	//       the entry is stamped with both references

	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, eng, "acc-1", "5000")
	require.NoError(t, eng.ActivateObligation(ctx, rentRecord(), -1))

	before, err := store.SchedulesByObligation(ctx, "obl-rent")
	require.NoError(t, err)
	require.Empty(t, before)

	p := ledger.NewPeriod(2026, time.January)
	entry, err := eng.CreateEntry(ctx, engine.CreateEntryInput{
		AccountID:    "acc-1",
		Kind:         ledger.KindPayment,
		Magnitude:    ledger.MustDecimal("1450"),
		Date:         jan(4),
		ObligationID: "obl-rent",
		Period:       &p,
	})
	require.NoError(t, err)
	assert.Equal(t, obligation.NewScheduleID("obl-rent", p), entry.ScheduleID)
	assert.Equal(t, ledger.ObligationID("obl-rent"), entry.ObligationID)

	sched, err := store.GetSchedule(ctx, entry.ScheduleID)
	require.NoError(t, err)
	assert.True(t, sched.ExpectedAmount.Equal(ledger.MustDecimal("1450")))

	status, err := eng.ResolveStatus(ctx, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, obligation.StatusPaid, status)
}

func TestCreateEntry_LazyLinkNeedsBothHalves(t *testing.T) {
	eng, _ := newTestEngine(t)
	seedAccount(t, eng, "acc-1", "100")

	_, err := eng.CreateEntry(context.Background(), engine.CreateEntryInput{
		AccountID:    "acc-1",
		Kind:         ledger.KindPayment,
		Magnitude:    ledger.MustDecimal("10"),
		Date:         jan(4),
		ObligationID: "obl-rent", // no period
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCreateTransfer_BothLegsOrNeither(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, eng, "acc-a", "500")
	seedAccount(t, eng, "acc-b", "0")

	out, in, err := eng.CreateTransfer(ctx, engine.TransferInput{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-b",
		Magnitude:     ledger.MustDecimal("200"),
		Date:          jan(6),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.AccountID("acc-b"), out.CounterAccountID)
	assert.Equal(t, ledger.AccountID("acc-a"), in.CounterAccountID)

	fromBal, err := eng.ComputeBalance(ctx, "acc-a")
	require.NoError(t, err)
	toBal, err := eng.ComputeBalance(ctx, "acc-b")
	require.NoError(t, err)
	assert.True(t, fromBal.Equal(ledger.MustDecimal("300")))
	assert.True(t, toBal.Equal(ledger.MustDecimal("200")))
}

func TestCreateTransfer_UnknownDestinationWritesNothing(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, eng, "acc-a", "500")

	_, _, err := eng.CreateTransfer(ctx, engine.TransferInput{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-ghost",
		Magnitude:     ledger.MustDecimal("200"),
		Date:          jan(6),
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	entries, err := store.EntriesByAccount(ctx, "acc-a")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// =============================================================================
// DELETE AND STATUS REGRESSION
// =============================================================================

func TestDeleteEntry_StatusRegresses(t *testing.T) {
	// GIVEN: A schedule paid in full, past its due date
	// WHEN: The payment entry is deleted
	// THEN: The next resolve reports overdue with no special-case handling

	eng, _ := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, eng, "acc-1", "5000")
	require.NoError(t, eng.ActivateObligation(ctx, rentRecord(), 12))

	schedID := obligation.NewScheduleID("obl-rent", ledger.NewPeriod(2026, time.January))
	entry, err := eng.CreateEntry(ctx, engine.CreateEntryInput{
		AccountID:  "acc-1",
		Kind:       ledger.KindPayment,
		Magnitude:  ledger.MustDecimal("1450"),
		Date:       jan(4),
		ScheduleID: schedID,
	})
	require.NoError(t, err)

	status, err := eng.ResolveStatus(ctx, schedID)
	require.NoError(t, err)
	require.Equal(t, obligation.StatusPaid, status)

	require.NoError(t, eng.DeleteEntry(ctx, entry.ID))

	status, err = eng.ResolveStatus(ctx, schedID)
	require.NoError(t, err)
	assert.Equal(t, obligation.StatusOverdue, status)

	// The balance regressed too.
	balance, err := eng.ComputeBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(ledger.MustDecimal("5000")))
}

func TestDeleteEntry_Unknown(t *testing.T) {
	eng, _ := newTestEngine(t)
	assert.ErrorIs(t, eng.DeleteEntry(context.Background(), "ent-ghost"), ledger.ErrNotFound)
}

// =============================================================================
// STATEMENTS AND CONSISTENCY
// =============================================================================

func TestScheduleStatement_PartialPayments(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, eng, "acc-1", "5000")
	require.NoError(t, eng.ActivateObligation(ctx, rentRecord(), 12))

	schedID := obligation.NewScheduleID("obl-rent", ledger.NewPeriod(2026, time.February))
	for _, m := range []string{"500", "300"} {
		_, err := eng.CreateEntry(ctx, engine.CreateEntryInput{
			AccountID:  "acc-1",
			Kind:       ledger.KindPayment,
			Magnitude:  ledger.MustDecimal(m),
			Date:       jan(10),
			ScheduleID: schedID,
		})
		require.NoError(t, err)
	}

	st, err := eng.ScheduleStatement(ctx, schedID)
	require.NoError(t, err)
	assert.Equal(t, obligation.StatusPartial, st.Status)
	assert.True(t, st.PaidSum.Equal(ledger.MustDecimal("800")))
	assert.Len(t, st.Entries, 2)
}

func TestScheduleStatement_ContradictoryLinkFailsLoudly(t *testing.T) {
	// An entry whose obligation stamp disagrees with its schedule cannot be
	// produced through the engine; plant one directly in the store.
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, eng, "acc-1", "5000")
	require.NoError(t, eng.ActivateObligation(ctx, rentRecord(), 1))

	schedID := obligation.NewScheduleID("obl-rent", ledger.NewPeriod(2025, time.November))
	rogue, err := ledger.NewEntry("ent-rogue", "acc-1", ledger.KindPayment,
		ledger.MustDecimal("100"), jan(2))
	require.NoError(t, err)
	rogue.ScheduleID = schedID
	rogue.ObligationID = "obl-other"
	require.NoError(t, store.CreateEntry(ctx, rogue))

	_, err = eng.ScheduleStatement(ctx, schedID)
	assert.ErrorIs(t, err, ledger.ErrConsistency)

	err = eng.ConsistencyCheck(ctx, "obl-rent")
	assert.ErrorIs(t, err, ledger.ErrConsistency)

	var cerr *ledger.ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ledger.EntryID("ent-rogue"), cerr.EntryID)
	assert.Equal(t, ledger.ObligationID("obl-rent"), cerr.WantObligation)
	assert.Equal(t, ledger.ObligationID("obl-other"), cerr.GotObligation)
}

// =============================================================================
// OBLIGATION LIFECYCLE TESTS
// =============================================================================

func TestActivateObligation_EagerSchedules(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.ActivateObligation(ctx, rentRecord(), 0))

	schedules, err := store.SchedulesByObligation(ctx, "obl-rent")
	require.NoError(t, err)
	require.Len(t, schedules, obligation.DefaultEagerPeriods)
	assert.Equal(t, ledger.NewPeriod(2025, time.November), schedules[0].Period)
	assert.Equal(t, ledger.NewPeriod(2026, time.October), schedules[11].Period)
}

func TestActivateObligation_LinkedAccountMustBeRevolving(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, eng, "acc-1", "0")

	rec := rentRecord()
	rec.LinkedAccountID = "acc-1"
	err := eng.ActivateObligation(ctx, rec, 0)
	assert.ErrorIs(t, err, ledger.ErrPrecondition)
}

func TestObligationSchedules_Statements(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, eng, "acc-1", "5000")
	require.NoError(t, eng.ActivateObligation(ctx, rentRecord(), 3))

	_, err := eng.CreateEntry(ctx, engine.CreateEntryInput{
		AccountID:  "acc-1",
		Kind:       ledger.KindPayment,
		Magnitude:  ledger.MustDecimal("1450"),
		Date:       jan(4),
		ScheduleID: obligation.NewScheduleID("obl-rent", ledger.NewPeriod(2025, time.December)),
	})
	require.NoError(t, err)

	statements, err := eng.ObligationSchedules(ctx, "obl-rent")
	require.NoError(t, err)
	require.Len(t, statements, 3)

	byPeriod := map[ledger.Period]engine.Statement{}
	for _, st := range statements {
		byPeriod[st.Schedule.Period] = st
	}
	assert.Equal(t, obligation.StatusOverdue, byPeriod[ledger.NewPeriod(2025, time.November)].Status)
	assert.Equal(t, obligation.StatusPaid, byPeriod[ledger.NewPeriod(2025, time.December)].Status)
	assert.Equal(t, obligation.StatusOverdue, byPeriod[ledger.NewPeriod(2026, time.January)].Status)
}

// =============================================================================
// BILLING-CYCLE SYNC TESTS
// =============================================================================

func cardObligation() obligation.Record {
	return obligation.Record{
		ID:              "obl-card",
		Name:            "Card statement",
		Kind:            obligation.KindBiller,
		NominalAmount:   ledger.MustDecimal("0"),
		DueDay:          20,
		Activation:      ledger.NewPeriod(2025, time.December),
		LinkedAccountID: "acc-card",
		Source:          obligation.SourceNormalized,
	}
}

func cardSpend(t *testing.T, eng *engine.Engine, magnitude string, date time.Time) ledger.Entry {
	t.Helper()
	entry, err := eng.CreateEntry(context.Background(), engine.CreateEntryInput{
		AccountID: "acc-card",
		Kind:      ledger.KindWithdrawal,
		Magnitude: ledger.MustDecimal(magnitude),
		Date:      date,
	})
	require.NoError(t, err)
	return entry
}

func TestSyncBillingCycle_ExpectedFromSpending(t *testing.T) {
	// GIVEN: Anchor 10, spending 100 + 50 + 125 on Jan 15/20/25
	// WHEN: The cycle is synced
	// THEN: The February schedule expects 275

	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedCard(t, eng, "acc-card", 10)
	require.NoError(t, eng.ActivateObligation(ctx, cardObligation(), -1))

	cardSpend(t, eng, "100", jan(15))
	cardSpend(t, eng, "50", jan(20))
	cardSpend(t, eng, "125", jan(25))

	require.NoError(t, eng.SyncBillingCycle(ctx, "obl-card"))

	feb := ledger.NewPeriod(2026, time.February)
	sched, err := store.ScheduleByKey(ctx, "obl-card", feb)
	require.NoError(t, err)
	assert.True(t, sched.ExpectedAmount.Equal(ledger.MustDecimal("275")), "got %s", sched.ExpectedAmount)
	assert.Equal(t, 20, sched.DueDate.Day())
}

func TestSyncBillingCycle_Reconverges(t *testing.T) {
	// Deleting a purchase and re-syncing shrinks the expected amount; the
	// schedule row keeps its identity.
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedCard(t, eng, "acc-card", 10)
	require.NoError(t, eng.ActivateObligation(ctx, cardObligation(), -1))

	keep := cardSpend(t, eng, "100", jan(15))
	drop := cardSpend(t, eng, "75", jan(16))
	_ = keep
	require.NoError(t, eng.SyncBillingCycle(ctx, "obl-card"))

	require.NoError(t, eng.DeleteEntry(ctx, drop.ID))
	require.NoError(t, eng.SyncBillingCycle(ctx, "obl-card"))

	feb := ledger.NewPeriod(2026, time.February)
	sched, err := store.ScheduleByKey(ctx, "obl-card", feb)
	require.NoError(t, err)
	assert.True(t, sched.ExpectedAmount.Equal(ledger.MustDecimal("100")), "got %s", sched.ExpectedAmount)
}

func TestSyncBillingCycle_Idempotent(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedCard(t, eng, "acc-card", 10)
	require.NoError(t, eng.ActivateObligation(ctx, cardObligation(), -1))
	cardSpend(t, eng, "42.42", jan(12))

	require.NoError(t, eng.SyncBillingCycle(ctx, "obl-card"))
	first, err := store.SchedulesByObligation(ctx, "obl-card")
	require.NoError(t, err)

	require.NoError(t, eng.SyncBillingCycle(ctx, "obl-card"))
	second, err := store.SchedulesByObligation(ctx, "obl-card")
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Period, second[i].Period)
		assert.True(t, first[i].ExpectedAmount.Equal(second[i].ExpectedAmount))
	}
}

func TestSyncBillingCycle_RequiresLinkedAccount(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.ActivateObligation(ctx, rentRecord(), -1))

	err := eng.SyncBillingCycle(ctx, "obl-rent")
	assert.ErrorIs(t, err, ledger.ErrPrecondition)
}

func TestSyncBillingCycle_InstallmentLinkedExcluded(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedCard(t, eng, "acc-card", 10)
	require.NoError(t, eng.ActivateObligation(ctx, cardObligation(), -1))

	_, err := eng.CreateEntry(ctx, engine.CreateEntryInput{
		AccountID:         "acc-card",
		Kind:              ledger.KindWithdrawal,
		Magnitude:         ledger.MustDecimal("900"),
		Date:              jan(15),
		InstallmentLinked: true,
	})
	require.NoError(t, err)
	cardSpend(t, eng, "60", jan(16))

	require.NoError(t, eng.SyncBillingCycle(ctx, "obl-card"))

	sched, err := store.ScheduleByKey(ctx, "obl-card", ledger.NewPeriod(2026, time.February))
	require.NoError(t, err)
	assert.True(t, sched.ExpectedAmount.Equal(ledger.MustDecimal("60")), "got %s", sched.ExpectedAmount)
}

// failingStore wraps a memory store and fails schedule upserts after a number
// of successes, to exercise transactional rollback.
type failingStore struct {
	engine.Store
	remaining int
}

func (f *failingStore) UpsertSchedule(ctx context.Context, s obligation.Schedule) error {
	if f.remaining <= 0 {
		return assert.AnError
	}
	f.remaining--
	return f.Store.UpsertSchedule(ctx, s)
}

func (f *failingStore) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	return f.Store.WithTx(ctx, func(engine.Store) error { return fn(f) })
}

func TestSyncBillingCycle_PartialFailureWritesNothing(t *testing.T) {
	// Two cycles need updating; the second upsert fails. Neither row may
	// survive.
	mem := memory.New()
	eng := engine.New(&failingStore{Store: mem, remaining: 1})
	eng.Now = func() time.Time { return jan(20) }

	ctx := context.Background()
	seedCard(t, eng, "acc-card", 10)
	require.NoError(t, eng.ActivateObligation(ctx, cardObligation(), -1))
	cardSpend(t, eng, "30", jan(5))  // December cycle, due January
	cardSpend(t, eng, "70", jan(15)) // January cycle, due February

	err := eng.SyncBillingCycle(ctx, "obl-card")
	require.Error(t, err)

	schedules, err := mem.SchedulesByObligation(ctx, "obl-card")
	require.NoError(t, err)
	assert.Empty(t, schedules)
}

// =============================================================================
// LEGACY MIGRATION TESTS
// =============================================================================

func TestMigrateLegacySchedules_EndToEnd(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	rec := rentRecord()
	rec.Source = obligation.SourceLegacyEmbedded
	rec.LegacySchedules = []obligation.Schedule{
		{
			ObligationID:   rec.ID,
			Kind:           rec.Kind,
			Period:         ledger.NewPeriod(2025, time.November),
			ExpectedAmount: ledger.MustDecimal("1450"),
			DueDate:        time.Date(2025, time.November, 5, 0, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, store.SaveObligation(ctx, rec))

	copied, err := eng.MigrateLegacySchedules(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, copied)

	// Second run is a no-op.
	copied, err = eng.MigrateLegacySchedules(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, copied)

	saved, err := store.GetObligation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, obligation.SourceNormalized, saved.Source)
}

// =============================================================================
// INVALIDATION TESTS
// =============================================================================

func TestInvalidations_WritePathPublishes(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, eng, "acc-1", "1000")

	id, events := eng.Notifier.Subscribe(8)
	defer eng.Notifier.Unsubscribe(id)

	entry, err := eng.CreateEntry(ctx, engine.CreateEntryInput{
		AccountID: "acc-1",
		Kind:      ledger.KindDeposit,
		Magnitude: ledger.MustDecimal("100"),
		Date:      jan(3),
	})
	require.NoError(t, err)
	require.NoError(t, eng.DeleteEntry(ctx, entry.ID))

	created := <-events
	assert.Equal(t, engine.ReasonEntryCreated, created.Reason)
	assert.Equal(t, entry.ID, created.EntryID)
	assert.Equal(t, ledger.AccountID("acc-1"), created.AccountID)
	assert.False(t, created.At.IsZero())

	deleted := <-events
	assert.Equal(t, engine.ReasonEntryDeleted, deleted.Reason)
	assert.Equal(t, entry.ID, deleted.EntryID)
}

func TestInvalidations_SlowSubscriberNeverBlocksWrites(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, eng, "acc-1", "1000")

	// Subscribe with a tiny buffer and never read.
	id, _ := eng.Notifier.Subscribe(1)
	defer eng.Notifier.Unsubscribe(id)

	for i := 0; i < 10; i++ {
		_, err := eng.CreateEntry(ctx, engine.CreateEntryInput{
			AccountID: "acc-1",
			Kind:      ledger.KindDeposit,
			Magnitude: ledger.MustDecimal("1"),
			Date:      jan(3),
		})
		require.NoError(t, err)
	}

	balance, err := eng.ComputeBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(ledger.MustDecimal("1010")))
}
