/*
Package factory provides JSON to Go obligation conversion.

PURPOSE:
  Converts JSON obligation definitions into obligation.Record values. This
  enables obligation configuration without code changes: operations can
  define billers and installments in JSON, and the factory produces the
  validated record.

JSON SCHEMA:
  {
    "id": "obl-rent",
    "name": "Apartment rent",
    "kind": "biller",
    "amount": "1450.00",
    "due_day": 5,
    "activation": {"year": 2025, "month": 11},
    "term_months": 12,
    "revolving_account_id": "acc-card"
  }

  "kind" is "biller" or "installment". "term_months" applies to installments
  only. "revolving_account_id" links the obligation to a revolving-credit
  account so billing-cycle sync fills its expected amounts.

USAGE:
  f := factory.New()
  record, err := f.Parse(jsonString)

SEE ALSO:
  - obligation/types.go: Record definition and validation
  - engine/engine.go: ActivateObligation, SyncBillingCycle
*/
package factory

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/ledger"
	"github.com/warp/obligation-engine/obligation"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ObligationJSON is the JSON representation of an obligation definition.
type ObligationJSON struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Kind               string     `json:"kind"`
	Amount             string     `json:"amount"`
	DueDay             int        `json:"due_day"`
	Activation         PeriodJSON `json:"activation"`
	TermMonths         int        `json:"term_months,omitempty"`
	RevolvingAccountID string     `json:"revolving_account_id,omitempty"`
}

// PeriodJSON is a calendar month.
type PeriodJSON struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// =============================================================================
// FACTORY
// =============================================================================

// Factory converts JSON obligation definitions to records.
type Factory struct{}

func New() *Factory {
	return &Factory{}
}

// Parse parses a JSON string into a validated obligation record.
func (f *Factory) Parse(jsonStr string) (obligation.Record, error) {
	var oj ObligationJSON
	if err := json.Unmarshal([]byte(jsonStr), &oj); err != nil {
		return obligation.Record{}, &ledger.ValidationError{
			Field:  "definition",
			Reason: "malformed obligation JSON: " + err.Error(),
		}
	}
	return f.FromJSON(oj)
}

// FromJSON converts ObligationJSON to an obligation.Record.
func (f *Factory) FromJSON(oj ObligationJSON) (obligation.Record, error) {
	amount, err := decimal.NewFromString(oj.Amount)
	if err != nil {
		return obligation.Record{}, &ledger.ValidationError{
			Field:  "amount",
			Reason: "not a decimal: " + oj.Amount,
		}
	}

	r := obligation.Record{
		ID:              ledger.ObligationID(oj.ID),
		Name:            oj.Name,
		Kind:            parseKind(oj.Kind),
		NominalAmount:   amount,
		DueDay:          oj.DueDay,
		Activation:      ledger.Period{Year: oj.Activation.Year, Month: time.Month(oj.Activation.Month)},
		TermMonths:      oj.TermMonths,
		LinkedAccountID: ledger.AccountID(oj.RevolvingAccountID),
		Source:          obligation.SourceNormalized,
	}
	if err := r.Validate(); err != nil {
		return obligation.Record{}, err
	}
	return r, nil
}

// ToJSON converts a record back to its JSON definition.
func (f *Factory) ToJSON(r obligation.Record) ObligationJSON {
	return ObligationJSON{
		ID:                 string(r.ID),
		Name:               r.Name,
		Kind:               string(r.Kind),
		Amount:             r.NominalAmount.String(),
		DueDay:             r.DueDay,
		Activation:         PeriodJSON{Year: r.Activation.Year, Month: int(r.Activation.Month)},
		TermMonths:         r.TermMonths,
		RevolvingAccountID: string(r.LinkedAccountID),
	}
}

func parseKind(s string) obligation.Kind {
	switch s {
	case "installment":
		return obligation.KindInstallment
	case "biller", "":
		return obligation.KindBiller
	default:
		// Validate rejects it downstream with the original string intact.
		return obligation.Kind(s)
	}
}

// =============================================================================
// PRESET DEFINITIONS
// =============================================================================

// MonthlyBillerJSON returns the definition for an open-ended fixed biller.
func MonthlyBillerJSON(id, name, amount string, dueDay int, activation ledger.Period) string {
	b, _ := json.Marshal(ObligationJSON{
		ID:         id,
		Name:       name,
		Kind:       "biller",
		Amount:     amount,
		DueDay:     dueDay,
		Activation: PeriodJSON{Year: activation.Year, Month: int(activation.Month)},
	})
	return string(b)
}

// InstallmentJSON returns the definition for a fixed-term installment plan.
func InstallmentJSON(id, name, monthly string, dueDay, termMonths int, activation ledger.Period) string {
	b, _ := json.Marshal(ObligationJSON{
		ID:         id,
		Name:       name,
		Kind:       "installment",
		Amount:     monthly,
		DueDay:     dueDay,
		Activation: PeriodJSON{Year: activation.Year, Month: int(activation.Month)},
		TermMonths: termMonths,
	})
	return string(b)
}

// RevolvingBillerJSON returns the definition for an obligation whose expected
// amounts come from billing-cycle sync of a revolving-credit account.
func RevolvingBillerJSON(id, name string, dueDay int, activation ledger.Period, accountID ledger.AccountID) string {
	b, _ := json.Marshal(ObligationJSON{
		ID:                 id,
		Name:               name,
		Kind:               "biller",
		Amount:             "0",
		DueDay:             dueDay,
		Activation:         PeriodJSON{Year: activation.Year, Month: int(activation.Month)},
		RevolvingAccountID: string(accountID),
	})
	return string(b)
}
