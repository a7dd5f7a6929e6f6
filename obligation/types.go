/*
Package obligation models recurring financial commitments and derives their
payment status from the ledger.

PURPOSE:
  An obligation is either a fixed biller (open-ended recurring amount) or an
  installment (fixed term, monthly amount). Both variants share one
  capability: producing schedule rows keyed (obligation, period). A schedule
  carries an expected amount and nothing else about payment state: whether a
  period is paid is always derived from the ledger entries that reference it.

KEY CONCEPTS:
  - Record: the stored, flat representation of an obligation
  - Obligation: the behavioral interface the two variants implement
  - Schedule: the expected-amount row for one (obligation, period)
  - Status: the derived pending/partial/paid/overdue value

SEE ALSO:
  - resolver.go: status derivation
  - materialize.go: eager and lazy schedule creation
  - legacy.go: embedded-vs-normalized schedule sources and migration
*/
package obligation

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/ledger"
)

// =============================================================================
// KINDS AND SOURCES
// =============================================================================

type Kind string

const (
	KindBiller      Kind = "biller"
	KindInstallment Kind = "installment"
)

// Source marks where an obligation's schedule rows live. Historical data
// embedded schedules inside the obligation record; current data keeps them in
// the normalized schedule store. One read path serves both; see legacy.go.
type Source string

const (
	SourceNormalized     Source = "normalized"
	SourceLegacyEmbedded Source = "legacy_embedded"
)

// =============================================================================
// RECORD - Stored representation
// =============================================================================

// Record is the flat, persisted form of an obligation. Obligation() turns it
// into the behavioral variant.
type Record struct {
	ID            ledger.ObligationID
	Name          string
	Kind          Kind
	NominalAmount decimal.Decimal
	DueDay        int // day-of-month payment is due (1-28)
	Activation    ledger.Period
	TermMonths    int // installment only

	// LinkedAccountID ties the obligation to a revolving-credit account.
	// When set, billing-cycle sync populates the expected amounts instead of
	// the nominal amount.
	LinkedAccountID ledger.AccountID

	Source          Source
	LegacySchedules []Schedule // populated only while Source is legacy_embedded

	CreatedAt time.Time
}

// BillingCycleSynced reports whether expected amounts come from billing-cycle
// aggregation of the linked account.
func (r Record) BillingCycleSynced() bool { return r.LinkedAccountID != "" }

// Validate checks the stored fields without constructing a variant.
func (r Record) Validate() error {
	if r.ID == "" {
		return &ledger.ValidationError{Field: "id", Reason: "required"}
	}
	if r.Kind != KindBiller && r.Kind != KindInstallment {
		return &ledger.ValidationError{Field: "kind", Reason: "unknown obligation kind " + string(r.Kind)}
	}
	if r.NominalAmount.IsNegative() {
		return &ledger.ValidationError{Field: "nominal_amount", Reason: "must not be negative"}
	}
	if r.DueDay < 1 || r.DueDay > 28 {
		return &ledger.ValidationError{Field: "due_day", Reason: "must be between 1 and 28"}
	}
	if !r.Activation.Valid() {
		return &ledger.ValidationError{Field: "activation", Reason: "invalid period"}
	}
	if r.Kind == KindInstallment && r.TermMonths < 1 {
		return &ledger.ValidationError{Field: "term_months", Reason: "installment requires a positive term"}
	}
	return nil
}

// Obligation constructs the behavioral variant for this record.
func (r Record) Obligation() (Obligation, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	switch r.Kind {
	case KindInstallment:
		return &Installment{
			ObligationID: r.ID,
			Monthly:      r.NominalAmount,
			DueDay:       r.DueDay,
			Activation:   r.Activation,
			TermMonths:   r.TermMonths,
		}, nil
	default:
		return &FixedBiller{
			ObligationID: r.ID,
			Nominal:      r.NominalAmount,
			DueDay:       r.DueDay,
			Activation:   r.Activation,
		}, nil
	}
}

// =============================================================================
// OBLIGATION - Shared capability of both variants
// =============================================================================

// Obligation is the capability shared by fixed billers and installments:
// answering which periods are active, what amount is expected in each, and
// when payment is due. Schedule materialization (eager or lazy) is built on
// these three answers so both strategies key rows identically.
type Obligation interface {
	ID() ledger.ObligationID
	Kind() Kind

	// ExpectedFor returns the nominal expected amount for the period, and
	// false when the period is outside the obligation's active window.
	ExpectedFor(p ledger.Period) (decimal.Decimal, bool)

	// DueDateFor returns the payment due date within the period.
	DueDateFor(p ledger.Period) time.Time

	// ActivePeriods returns up to limit active periods starting at the
	// activation anchor. Installments stop at the end of their term.
	ActivePeriods(limit int) []ledger.Period
}

// =============================================================================
// FIXED BILLER - Open-ended recurring amount
// =============================================================================

type FixedBiller struct {
	ObligationID ledger.ObligationID
	Nominal      decimal.Decimal
	DueDay       int
	Activation   ledger.Period
}

func (b *FixedBiller) ID() ledger.ObligationID { return b.ObligationID }
func (b *FixedBiller) Kind() Kind              { return KindBiller }

func (b *FixedBiller) ExpectedFor(p ledger.Period) (decimal.Decimal, bool) {
	if p.Before(b.Activation) {
		return decimal.Zero, false
	}
	return b.Nominal, true
}

func (b *FixedBiller) DueDateFor(p ledger.Period) time.Time {
	return dueDate(p, b.DueDay)
}

func (b *FixedBiller) ActivePeriods(limit int) []ledger.Period {
	return periodRun(b.Activation, limit)
}

// =============================================================================
// INSTALLMENT - Fixed term, monthly amount
// =============================================================================

type Installment struct {
	ObligationID ledger.ObligationID
	Monthly      decimal.Decimal
	DueDay       int
	Activation   ledger.Period
	TermMonths   int
}

func (i *Installment) ID() ledger.ObligationID { return i.ObligationID }
func (i *Installment) Kind() Kind              { return KindInstallment }

// ExpectedFor is true only inside [activation, activation+term).
func (i *Installment) ExpectedFor(p ledger.Period) (decimal.Decimal, bool) {
	if p.Before(i.Activation) || !p.Before(i.Activation.AddMonths(i.TermMonths)) {
		return decimal.Zero, false
	}
	return i.Monthly, true
}

func (i *Installment) DueDateFor(p ledger.Period) time.Time {
	return dueDate(p, i.DueDay)
}

func (i *Installment) ActivePeriods(limit int) []ledger.Period {
	if limit > i.TermMonths {
		limit = i.TermMonths
	}
	return periodRun(i.Activation, limit)
}

// Total returns the full amount over the term.
func (i *Installment) Total() decimal.Decimal {
	return i.Monthly.Mul(decimal.NewFromInt(int64(i.TermMonths)))
}

// =============================================================================
// HELPERS
// =============================================================================

func dueDate(p ledger.Period, day int) time.Time {
	if max := p.DaysIn(); day > max {
		day = max
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

func periodRun(from ledger.Period, n int) []ledger.Period {
	if n <= 0 {
		return nil
	}
	periods := make([]ledger.Period, n)
	p := from
	for i := 0; i < n; i++ {
		periods[i] = p
		p = p.Next()
	}
	return periods
}
