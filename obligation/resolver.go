/*
resolver.go - Derived payment status

PURPOSE:
  Maps a schedule and its linked ledger entries to pending/partial/paid/
  overdue. This is the function the whole engine exists to keep honest: no
  stored status field, no memory of previous answers. Deleting a linked entry
  and resolving again moves the status backward exactly as if the payment had
  never happened.

CONTRACT:
  paidSum = sum of |entry.amount| over linked entries
  paid    if paidSum >= expectedAmount (overpayment is still paid)
  partial if 0 < paidSum < expectedAmount
  overdue if paidSum == 0 and the due date has elapsed
  pending otherwise

  The resolver never queries storage; the caller passes the current entry
  snapshot. Calling twice with the same inputs yields the same output.
*/
package obligation

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/ledger"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// =============================================================================
// RESOLVER - Pure derivation, no state
// =============================================================================

// PaidSum returns the total unsigned amount paid toward a schedule. Payments
// made from an ordinary account are stored positive and repayments received
// negative, so the absolute value is what counts in both directions.
func PaidSum(linked []ledger.Entry) decimal.Decimal {
	return ledger.SumAbs(linked)
}

// Resolve derives the payment status of a schedule from the entries whose
// schedule reference equals its id. asOf decides whether an unpaid schedule
// is still pending or already overdue.
//
// The first rule also settles a zero expected amount with nothing paid: a
// billing cycle with no spending has nothing due.
func Resolve(s Schedule, linked []ledger.Entry, asOf time.Time) Status {
	paid := PaidSum(linked)
	switch {
	case paid.GreaterThanOrEqual(s.ExpectedAmount):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	case asOf.After(s.DueDate):
		return StatusOverdue
	default:
		return StatusPending
	}
}

// Remaining returns the outstanding amount for a schedule, never negative.
func Remaining(s Schedule, linked []ledger.Entry) decimal.Decimal {
	rest := s.ExpectedAmount.Sub(PaidSum(linked))
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}
