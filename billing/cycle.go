/*
Package billing aggregates revolving-credit spending into billing cycles.

PURPOSE:
  A revolving-credit account with anchor day d is billed in windows
  [monthStart+d, nextMonthStart+d). The payment for the cycle that opens in
  month M is due in period M+1, matching real statement timing: spending
  between Jan 10 and Feb 9 appears on the statement payable in February.

  Aggregate sums the absolute value of the account's entries per cycle and
  yields the expected amount for each due period. The result feeds the
  schedule store of the obligation linked to the account; the function itself
  is pure and writes nothing.

EXCLUSION RULE:
  Entries flagged installment-linked are never counted. Their principal is
  already tracked period by period through a separate installment obligation,
  and counting them here would book it twice. Options can only widen the
  exclusion set, never re-include installment-linked entries.
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/ledger"
)

// Options narrows which entries count toward a cycle. The zero value counts
// every non-installment-linked entry on the account.
type Options struct {
	// ExcludeKinds drops additional entry kinds from aggregation, e.g.
	// repayments made toward the card itself.
	ExcludeKinds []ledger.EntryKind
}

func (o Options) excluded(k ledger.EntryKind) bool {
	for _, ex := range o.ExcludeKinds {
		if ex == k {
			return true
		}
	}
	return false
}

// Aggregate maps an account's entries into per-period expected amounts.
// Entries belonging to other accounts are ignored, so an unfiltered snapshot
// may be passed. Re-running with the same inputs produces the same mapping.
//
// Fails with a PreconditionError when the account is not a revolving-credit
// account or lacks a billing anchor day.
func Aggregate(account ledger.Account, entries []ledger.Entry, opts Options) (map[ledger.Period]decimal.Decimal, error) {
	if !account.IsRevolving() {
		return nil, &ledger.PreconditionError{
			Subject: "account " + string(account.ID),
			Reason:  "billing-cycle aggregation requires a revolving-credit account",
		}
	}
	if !account.HasBillingAnchor() {
		return nil, &ledger.PreconditionError{
			Subject: "account " + string(account.ID),
			Reason:  "revolving-credit account has no billing anchor day",
		}
	}

	totals := make(map[ledger.Period]decimal.Decimal)
	for _, e := range entries {
		if e.AccountID != account.ID || e.InstallmentLinked || opts.excluded(e.Kind) {
			continue
		}
		due := DuePeriod(account.BillingAnchorDay, e.Date)
		totals[due] = totals[due].Add(e.Amount.Abs())
	}
	return totals, nil
}

// CycleStart returns the opening day of the billing cycle containing t for
// the given anchor day. Dates before the anchor fall into the cycle that
// opened the previous month.
func CycleStart(anchorDay int, t time.Time) time.Time {
	start := time.Date(t.Year(), t.Month(), anchorDay, 0, 0, 0, 0, time.UTC)
	if t.Day() < anchorDay {
		start = start.AddDate(0, -1, 0)
	}
	return start
}

// CycleEnd returns the first instant after the cycle containing t, i.e. the
// next cycle's opening day.
func CycleEnd(anchorDay int, t time.Time) time.Time {
	return CycleStart(anchorDay, t).AddDate(0, 1, 0)
}

// DuePeriod returns the period in which the cycle containing t is payable:
// the month after the cycle opens.
func DuePeriod(anchorDay int, t time.Time) ledger.Period {
	return ledger.PeriodOf(CycleStart(anchorDay, t)).Next()
}
