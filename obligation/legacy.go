/*
legacy.go - Dual legacy/normalized schedule representations

PURPOSE:
  Obligations historically carried their schedules embedded in the obligation
  record; current data keeps them in the normalized schedule store. During
  the transition both shapes exist side by side, so reads go through one
  function that serves either, and a one-shot migration copies embedded rows
  into the store. There are no dual writes: a record is either legacy or
  normalized, never both.
*/
package obligation

import (
	"context"

	"github.com/warp/obligation-engine/ledger"
)

// SchedulesFor reads an obligation's schedules from whichever representation
// the record uses. The caller cannot tell the sources apart.
func SchedulesFor(ctx context.Context, r Record, schedules ScheduleStore) ([]Schedule, error) {
	if r.Source == SourceLegacyEmbedded {
		out := make([]Schedule, len(r.LegacySchedules))
		copy(out, r.LegacySchedules)
		return out, nil
	}
	return schedules.SchedulesByObligation(ctx, r.ID)
}

// MigrateLegacy copies a legacy record's embedded schedule rows into the
// normalized store, flips the record to normalized, and clears the embedded
// slice. It returns the number of rows copied.
//
// Idempotent one-shot: a record that is already normalized migrates zero
// rows and nothing is written. Re-running after a partial failure is safe
// because rows are upserted by their (obligation, period) key.
func MigrateLegacy(ctx context.Context, r *Record, schedules ScheduleStore, obligations Store) (int, error) {
	if r.Source != SourceLegacyEmbedded {
		return 0, nil
	}

	copied := 0
	for _, s := range r.LegacySchedules {
		if s.ID == "" {
			s.ID = NewScheduleID(r.ID, s.Period)
		}
		if s.ObligationID == "" {
			s.ObligationID = r.ID
		}
		if s.ObligationID != r.ID {
			return 0, &ledger.ConsistencyError{
				ScheduleID:     s.ID,
				WantObligation: r.ID,
				GotObligation:  s.ObligationID,
			}
		}
		if err := schedules.UpsertSchedule(ctx, s); err != nil {
			return 0, err
		}
		copied++
	}

	r.Source = SourceNormalized
	r.LegacySchedules = nil
	if err := obligations.SaveObligation(ctx, *r); err != nil {
		return 0, err
	}
	return copied, nil
}
