package obligation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/obligation-engine/ledger"
	"github.com/warp/obligation-engine/obligation"
	"github.com/warp/obligation-engine/store/memory"
)

func legacyRecord() obligation.Record {
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
		{
			ObligationID:   rec.ID,
			Kind:           rec.Kind,
			Period:         ledger.NewPeriod(2025, time.December),
			ExpectedAmount: ledger.MustDecimal("1450"),
			DueDate:        time.Date(2025, time.December, 5, 0, 0, 0, 0, time.UTC),
		},
	}
	return rec
}

// =============================================================================
// DUAL-REPRESENTATION READS
// =============================================================================

func TestSchedulesFor_ServesBothRepresentations(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	// Legacy: rows come from the embedded slice, store untouched.
	legacy := legacyRecord()
	fromLegacy, err := obligation.SchedulesFor(ctx, legacy, store)
	require.NoError(t, err)
	assert.Len(t, fromLegacy, 2)

	// Normalized: rows come from the schedule store.
	normalized := rentRecord()
	obl, err := normalized.Obligation()
	require.NoError(t, err)
	for _, s := range obligation.MaterializeEager(obl, 2) {
		require.NoError(t, store.UpsertSchedule(ctx, s))
	}

	fromStore, err := obligation.SchedulesFor(ctx, normalized, store)
	require.NoError(t, err)
	assert.Len(t, fromStore, 2)
}

// =============================================================================
// MIGRATION
// =============================================================================

func TestMigrateLegacy_CopiesAndFlips(t *testing.T) {
	// GIVEN: A legacy record with two embedded schedules
	// WHEN: Migration runs
	// THEN: Rows land in the store, the record flips to normalized, the
	//       embedded slice is cleared

	ctx := context.Background()
	store := memory.New()
	rec := legacyRecord()
	require.NoError(t, store.SaveObligation(ctx, rec))

	copied, err := obligation.MigrateLegacy(ctx, &rec, store, store)
	require.NoError(t, err)
	assert.Equal(t, 2, copied)
	assert.Equal(t, obligation.SourceNormalized, rec.Source)
	assert.Nil(t, rec.LegacySchedules)

	stored, err := store.SchedulesByObligation(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, s := range stored {
		assert.Equal(t, obligation.NewScheduleID(rec.ID, s.Period), s.ID)
	}

	// The saved record is normalized too.
	saved, err := store.GetObligation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, obligation.SourceNormalized, saved.Source)
	assert.Empty(t, saved.LegacySchedules)
}

func TestMigrateLegacy_SecondRunCopiesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := legacyRecord()
	require.NoError(t, store.SaveObligation(ctx, rec))

	_, err := obligation.MigrateLegacy(ctx, &rec, store, store)
	require.NoError(t, err)

	copied, err := obligation.MigrateLegacy(ctx, &rec, store, store)
	require.NoError(t, err)
	assert.Equal(t, 0, copied)

	stored, err := store.SchedulesByObligation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestMigrateLegacy_ForeignObligationRowRejected(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := legacyRecord()
	rec.LegacySchedules[1].ObligationID = "obl-other"

	_, err := obligation.MigrateLegacy(ctx, &rec, store, store)
	assert.ErrorIs(t, err, ledger.ErrConsistency)
}

func TestMigratedReadsLookIdentical(t *testing.T) {
	// Reads through SchedulesFor return the same periods and amounts before
	// and after migration.
	ctx := context.Background()
	store := memory.New()
	rec := legacyRecord()
	require.NoError(t, store.SaveObligation(ctx, rec))

	before, err := obligation.SchedulesFor(ctx, rec, store)
	require.NoError(t, err)

	_, err = obligation.MigrateLegacy(ctx, &rec, store, store)
	require.NoError(t, err)

	after, err := obligation.SchedulesFor(ctx, rec, store)
	require.NoError(t, err)

	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].Period, after[i].Period)
		assert.True(t, before[i].ExpectedAmount.Equal(after[i].ExpectedAmount))
	}
}
