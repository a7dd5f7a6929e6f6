/*
Package ledger provides the core monetary types of the reconciliation engine.

PURPOSE:
  Accounts, signed ledger entries ("transactions"), and month/year periods.
  Every derived value in the system (account balances, obligation statuses,
  billing-cycle totals) is recomputed from these records on demand; nothing
  in this package stores a derived result.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: ordinary debit account or revolving-credit account
  - Entry: an immutable signed monetary movement
  - EntryKind: determines the stored sign exactly once, at creation
  - Typed IDs to keep account/entry/obligation/schedule references apart

SIGN CONVENTION:
  For an ordinary account, an entry that removes value (withdrawal,
  transfer-out, obligation payment, loan disbursed) is stored as a POSITIVE
  amount; an entry that adds value (deposit, transfer-in, loan repayment) is
  stored as a NEGATIVE amount. Balance is opening minus the sum of amounts.
  The sign is
  assigned by SignedAmount at creation and never reinterpreted downstream.

DESIGN PRINCIPLES:
  1. Immutability: entry amounts are never edited; deletion is the only undo
  2. Precision: decimal.Decimal everywhere, no floating point in money paths
  3. Derivation: status and balance are functions of the entry set, not fields

SEE ALSO:
  - period.go: month/year period keys
  - balance.go: balance derivation
  - store.go: persistence contracts
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type EntryID string
type ObligationID string
type ScheduleID string

// =============================================================================
// ACCOUNT
// =============================================================================

type AccountKind string

const (
	// AccountOrdinary is a debit account: movements affect the balance
	// immediately.
	AccountOrdinary AccountKind = "ordinary"

	// AccountRevolvingCredit is billed in periodic cycles; spending is
	// aggregated per billing window rather than settled per movement.
	AccountRevolvingCredit AccountKind = "revolving_credit"
)

// Account is referenced by ledger entries. The persistence layer owns the
// record; the engine only reads it.
type Account struct {
	ID      AccountID
	Name    string
	Kind    AccountKind
	Opening decimal.Decimal

	// BillingAnchorDay is the day-of-month on which a revolving-credit
	// account's billing cycle opens (1-28). Zero for ordinary accounts.
	BillingAnchorDay int

	CreatedAt time.Time
}

func (a Account) IsRevolving() bool { return a.Kind == AccountRevolvingCredit }

// HasBillingAnchor reports whether the account carries a usable anchor day.
// Days above 28 are rejected so every month contains the anchor.
func (a Account) HasBillingAnchor() bool {
	return a.BillingAnchorDay >= 1 && a.BillingAnchorDay <= 28
}

// =============================================================================
// ENTRY KIND - Assigns the sign, once
// =============================================================================

type EntryKind string

const (
	KindWithdrawal    EntryKind = "withdrawal"
	KindDeposit       EntryKind = "deposit"
	KindTransferOut   EntryKind = "transfer_out"
	KindTransferIn    EntryKind = "transfer_in"
	KindPayment       EntryKind = "payment" // obligation payment made
	KindLoanDisbursed EntryKind = "loan_disbursed"
	KindLoanRepayment EntryKind = "loan_repayment"
)

// RemovesValue reports whether the kind takes value out of the owning account.
// Value-removing kinds store a positive amount, value-adding kinds a negative
// one. This is the single place the convention is encoded.
func (k EntryKind) RemovesValue() bool {
	switch k {
	case KindWithdrawal, KindTransferOut, KindPayment, KindLoanDisbursed:
		return true
	default:
		return false
	}
}

func (k EntryKind) Valid() bool {
	switch k {
	case KindWithdrawal, KindDeposit, KindTransferOut, KindTransferIn,
		KindPayment, KindLoanDisbursed, KindLoanRepayment:
		return true
	}
	return false
}

// SignedAmount converts a positive magnitude into the stored signed amount for
// the given kind. The magnitude must be strictly positive; the caller never
// passes a pre-signed value.
func SignedAmount(kind EntryKind, magnitude decimal.Decimal) (decimal.Decimal, error) {
	if !kind.Valid() {
		return decimal.Zero, &ValidationError{Field: "kind", Reason: "unknown entry kind " + string(kind)}
	}
	if !magnitude.IsPositive() {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "magnitude must be positive"}
	}
	if kind.RemovesValue() {
		return magnitude, nil
	}
	return magnitude.Neg(), nil
}

// =============================================================================
// ENTRY - Immutable signed monetary movement
// =============================================================================

// Entry is append/delete only. The Amount carries the sign assigned at
// creation; it is never edited afterwards.
type Entry struct {
	ID        EntryID
	AccountID AccountID
	Amount    decimal.Decimal // signed per the convention above
	Date      time.Time
	Kind      EntryKind

	// CounterAccountID links the two halves of a transfer.
	CounterAccountID AccountID

	// ScheduleID marks the entry as a payment toward one obligation period.
	// ObligationID is stamped from that schedule at creation so consistency
	// between the two references can be checked on read.
	ScheduleID   ScheduleID
	ObligationID ObligationID

	// InstallmentLinked excludes the entry from revolving-credit billing-cycle
	// aggregation: the principal is already tracked by an installment
	// obligation and must not be booked twice.
	InstallmentLinked bool

	Memo      string
	CreatedAt time.Time
}

// Magnitude returns the unsigned size of the movement.
func (e Entry) Magnitude() decimal.Decimal { return e.Amount.Abs() }

// NewEntry builds an entry with the sign convention applied. Magnitude must be
// positive; the kind decides the stored sign.
func NewEntry(id EntryID, accountID AccountID, kind EntryKind, magnitude decimal.Decimal, date time.Time) (Entry, error) {
	if accountID == "" {
		return Entry{}, &ValidationError{Field: "account_id", Reason: "required"}
	}
	amount, err := SignedAmount(kind, magnitude)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ID:        id,
		AccountID: accountID,
		Amount:    amount,
		Date:      date,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Transfer builds the two linked entries of a transfer: source transfer-out
// (positive) and destination transfer-in (negative), equal magnitude, mutual
// counter-account references. The pair must be persisted atomically.
func Transfer(srcID, dstID EntryID, from, to AccountID, magnitude decimal.Decimal, date time.Time) (Entry, Entry, error) {
	if from == to {
		return Entry{}, Entry{}, &ValidationError{Field: "counter_account_id", Reason: "transfer to same account"}
	}
	out, err := NewEntry(srcID, from, KindTransferOut, magnitude, date)
	if err != nil {
		return Entry{}, Entry{}, err
	}
	in, err := NewEntry(dstID, to, KindTransferIn, magnitude, date)
	if err != nil {
		return Entry{}, Entry{}, err
	}
	out.CounterAccountID = to
	in.CounterAccountID = from
	return out, in, nil
}

// MustDecimal parses a decimal literal, returning zero on malformed input.
// Intended for constants and tests.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
