/*
balance.go - Balance derivation from signed entries

PURPOSE:
  Computes an account's balance by replaying its ledger entries. There is no
  stored balance field anywhere; the sum is recomputed on every read so a
  deleted entry is reflected immediately.

KEY INSIGHT:
  The calculator contains no per-kind branching. An entry's kind decided its
  sign exactly once, at creation (SignedAmount); from then on a transfer, a
  loan disbursement and a plain withdrawal are all just signed amounts.

SEE ALSO:
  - types.go: SignedAmount and the sign convention
*/
package ledger

import "github.com/shopspring/decimal"

// Balance computes the current balance of an account from its entries:
//
//	balance = opening - sum(amount)
//
// Entries belonging to other accounts are ignored, so callers may pass an
// unfiltered snapshot. The sum is order independent.
func Balance(account Account, entries []Entry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		if e.AccountID != account.ID {
			continue
		}
		sum = sum.Add(e.Amount)
	}
	return account.Opening.Sub(sum)
}

// SumAbs returns the total unsigned volume of the given entries. Used for
// paid-sum derivation and billing-cycle totals.
func SumAbs(entries []Entry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount.Abs())
	}
	return sum
}
