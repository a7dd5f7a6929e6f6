package obligation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/ledger"
)

// =============================================================================
// SCHEDULE - Expected amount for one (obligation, period)
// =============================================================================

// Schedule is uniquely keyed by (ObligationID, Period). It carries the
// expected amount and the due date for that period, and nothing about payment
// state: paid/partial/pending is always recomputed from the entries that
// reference the schedule (resolver.go). Rows may be materialized eagerly at
// activation or lazily at first linked payment; the key and the derivation
// rule are identical either way.
type Schedule struct {
	ID             ledger.ScheduleID
	ObligationID   ledger.ObligationID
	Kind           Kind
	Period         ledger.Period
	ExpectedAmount decimal.Decimal
	DueDate        time.Time
	CreatedAt      time.Time
}

// NewScheduleID builds the deterministic id for an (obligation, period) key.
// Determinism is what makes eager materialization, lazy materialization and
// billing-cycle sync converge on the same row no matter which ran first.
func NewScheduleID(obligationID ledger.ObligationID, p ledger.Period) ledger.ScheduleID {
	return ledger.ScheduleID(fmt.Sprintf("%s:%s", obligationID, p))
}

// =============================================================================
// PERSISTENCE CONTRACTS
// =============================================================================

// Store persists obligation records.
type Store interface {
	SaveObligation(ctx context.Context, r Record) error
	GetObligation(ctx context.Context, id ledger.ObligationID) (Record, error)
	ListObligations(ctx context.Context) ([]Record, error)
}

// ScheduleStore persists schedule rows. Upsert is keyed by
// (obligation, period): re-running materialization or billing-cycle sync for
// the same inputs leaves the store unchanged.
type ScheduleStore interface {
	UpsertSchedule(ctx context.Context, s Schedule) error
	GetSchedule(ctx context.Context, id ledger.ScheduleID) (Schedule, error)
	ScheduleByKey(ctx context.Context, obligationID ledger.ObligationID, p ledger.Period) (Schedule, error)
	SchedulesByObligation(ctx context.Context, obligationID ledger.ObligationID) ([]Schedule, error)
}
