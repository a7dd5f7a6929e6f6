/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Decimal values travel as strings ("1450.00") to avoid float rounding in
  clients. Dates are RFC3339; periods are {"year": 2026, "month": 2}.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/obligation.go: ObligationJSON definition type
*/
package api

import (
	"time"

	"github.com/warp/obligation-engine/engine"
	"github.com/warp/obligation-engine/factory"
	"github.com/warp/obligation-engine/ledger"
	"github.com/warp/obligation-engine/obligation"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Kind             string `json:"kind"`
	Opening          string `json:"opening"`
	BillingAnchorDay int    `json:"billing_anchor_day,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Kind             string `json:"kind"`
	Opening          string `json:"opening"`
	BillingAnchorDay int    `json:"billing_anchor_day,omitempty"`
}

// BalanceDTO is a derived account balance.
type BalanceDTO struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
	AsOf      string `json:"as_of"`
}

// =============================================================================
// ENTRIES
// =============================================================================

// EntryDTO represents a ledger entry in API responses. Amount carries the
// stored sign; magnitude is the user-facing absolute value.
type EntryDTO struct {
	ID                string `json:"id"`
	AccountID         string `json:"account_id"`
	Amount            string `json:"amount"`
	Magnitude         string `json:"magnitude"`
	Date              string `json:"date"`
	Kind              string `json:"kind"`
	CounterAccountID  string `json:"counter_account_id,omitempty"`
	ScheduleID        string `json:"schedule_id,omitempty"`
	ObligationID      string `json:"obligation_id,omitempty"`
	InstallmentLinked bool   `json:"installment_linked,omitempty"`
	Memo              string `json:"memo,omitempty"`
	CreatedAt         string `json:"created_at,omitempty"`
}

// CreateEntryRequest is the request to record a ledger entry. Amount is the
// positive magnitude; kind decides the stored sign. The schedule link is
// either schedule_id, or obligation_id plus period for lazy materialization.
type CreateEntryRequest struct {
	AccountID         string             `json:"account_id"`
	Kind              string             `json:"kind"`
	Amount            string             `json:"amount"`
	Date              string             `json:"date"`
	ScheduleID        string             `json:"schedule_id,omitempty"`
	ObligationID      string             `json:"obligation_id,omitempty"`
	Period            *factory.PeriodJSON `json:"period,omitempty"`
	CounterAccountID  string             `json:"counter_account_id,omitempty"`
	InstallmentLinked bool               `json:"installment_linked,omitempty"`
	Memo              string             `json:"memo,omitempty"`
}

// CreateTransferRequest is the request to move an amount between accounts.
type CreateTransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	Memo          string `json:"memo,omitempty"`
}

// =============================================================================
// OBLIGATIONS AND SCHEDULES
// =============================================================================

// ObligationDTO represents an obligation in API responses.
type ObligationDTO struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Kind               string `json:"kind"`
	Amount             string `json:"amount"`
	DueDay             int    `json:"due_day"`
	Activation         string `json:"activation"`
	TermMonths         int    `json:"term_months,omitempty"`
	RevolvingAccountID string `json:"revolving_account_id,omitempty"`
	Source             string `json:"source"`
	CreatedAt          string `json:"created_at,omitempty"`
}

// CreateObligationRequest wraps the factory definition plus the
// materialization choice: eager_periods > 0 creates that many schedules up
// front, 0 uses the default run, -1 defers everything to first payment.
type CreateObligationRequest struct {
	Definition   factory.ObligationJSON `json:"definition"`
	EagerPeriods *int                   `json:"eager_periods,omitempty"`
}

// ScheduleDTO represents one expected payment row.
type ScheduleDTO struct {
	ID             string `json:"id"`
	ObligationID   string `json:"obligation_id"`
	Kind           string `json:"kind"`
	Period         string `json:"period"`
	ExpectedAmount string `json:"expected_amount"`
	DueDate        string `json:"due_date"`
}

// StatementDTO is a schedule with its derived payment state.
type StatementDTO struct {
	Schedule ScheduleDTO `json:"schedule"`
	Status   string      `json:"status"`
	PaidSum  string      `json:"paid_sum"`
	Entries  []EntryDTO  `json:"entries"`
}

// MigrationResultDTO reports a legacy schedule migration.
type MigrationResultDTO struct {
	ObligationID string `json:"obligation_id"`
	Copied       int    `json:"copied"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func accountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:               string(a.ID),
		Name:             a.Name,
		Kind:             string(a.Kind),
		Opening:          a.Opening.String(),
		BillingAnchorDay: a.BillingAnchorDay,
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}
}

func entryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:                string(e.ID),
		AccountID:         string(e.AccountID),
		Amount:            e.Amount.String(),
		Magnitude:         e.Magnitude().String(),
		Date:              e.Date.Format(time.RFC3339),
		Kind:              string(e.Kind),
		CounterAccountID:  string(e.CounterAccountID),
		ScheduleID:        string(e.ScheduleID),
		ObligationID:      string(e.ObligationID),
		InstallmentLinked: e.InstallmentLinked,
		Memo:              e.Memo,
		CreatedAt:         e.CreatedAt.Format(time.RFC3339),
	}
}

func obligationDTO(r obligation.Record) ObligationDTO {
	return ObligationDTO{
		ID:                 string(r.ID),
		Name:               r.Name,
		Kind:               string(r.Kind),
		Amount:             r.NominalAmount.String(),
		DueDay:             r.DueDay,
		Activation:         r.Activation.String(),
		TermMonths:         r.TermMonths,
		RevolvingAccountID: string(r.LinkedAccountID),
		Source:             string(r.Source),
		CreatedAt:          r.CreatedAt.Format(time.RFC3339),
	}
}

func scheduleDTO(s obligation.Schedule) ScheduleDTO {
	return ScheduleDTO{
		ID:             string(s.ID),
		ObligationID:   string(s.ObligationID),
		Kind:           string(s.Kind),
		Period:         s.Period.String(),
		ExpectedAmount: s.ExpectedAmount.String(),
		DueDate:        s.DueDate.Format("2006-01-02"),
	}
}

func statementDTO(st engine.Statement) StatementDTO {
	entries := make([]EntryDTO, len(st.Entries))
	for i, e := range st.Entries {
		entries[i] = entryDTO(e)
	}
	return StatementDTO{
		Schedule: scheduleDTO(st.Schedule),
		Status:   string(st.Status),
		PaidSum:  st.PaidSum.String(),
		Entries:  entries,
	}
}
