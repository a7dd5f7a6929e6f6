/*
handlers.go - HTTP API handlers for the obligation engine

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the engine.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                    List all accounts
    POST   /api/accounts                    Create account
    GET    /api/accounts/{id}               Get account details
    GET    /api/accounts/{id}/balance       Derived balance
    GET    /api/accounts/{id}/entries       Entry history

  Entries:
    POST   /api/entries                     Record a ledger entry
    POST   /api/entries/transfer            Record a two-leg transfer
    DELETE /api/entries/{id}                Delete an entry

  Obligations:
    GET    /api/obligations                 List all obligations
    POST   /api/obligations                 Create from JSON definition
    GET    /api/obligations/{id}            Get obligation details
    GET    /api/obligations/{id}/schedules  Schedules with derived status
    POST   /api/obligations/{id}/sync       Billing-cycle sync
    POST   /api/obligations/{id}/migrate    Legacy schedule migration
    GET    /api/obligations/{id}/check      Consistency sweep

  Schedules:
    GET    /api/schedules/{id}              Statement for one schedule
    GET    /api/schedules/{id}/status       Derived status only

  Events:
    GET    /api/events                      Invalidation stream (SSE)

ERROR HANDLING:
  Errors map to HTTP status by taxonomy:
  - 400: validation errors (malformed input, dangling references)
  - 404: record not found
  - 409: precondition and consistency errors
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - engine/engine.go: The operations behind every endpoint
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/engine"
	"github.com/warp/obligation-engine/factory"
	"github.com/warp/obligation-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *engine.Engine
	Factory *factory.Factory
}

// NewHandler creates a new handler around the engine.
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{
		Engine:  eng,
		Factory: factory.New(),
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Engine.Store.ListAccounts(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = accountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount creates a new account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	opening := decimal.Zero
	if req.Opening != "" {
		var err error
		opening, err = decimal.NewFromString(req.Opening)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid opening balance", err)
			return
		}
	}

	account := ledger.Account{
		ID:               ledger.AccountID(req.ID),
		Name:             req.Name,
		Kind:             ledger.AccountKind(req.Kind),
		Opening:          opening,
		BillingAnchorDay: req.BillingAnchorDay,
		CreatedAt:        time.Now().UTC(),
	}
	if account.ID == "" {
		writeError(w, http.StatusBadRequest, "Account id is required", nil)
		return
	}
	if account.Kind == ledger.AccountRevolvingCredit && !account.HasBillingAnchor() {
		writeError(w, http.StatusBadRequest, "Revolving-credit account needs billing_anchor_day 1-28", nil)
		return
	}

	if err := h.Engine.Store.SaveAccount(r.Context(), account); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountDTO(account))
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	account, err := h.Engine.Store.GetAccount(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountDTO(account))
}

// GetBalance returns the account's derived balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	balance, err := h.Engine.ComputeBalance(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		AccountID: string(id),
		Balance:   balance.String(),
		AsOf:      time.Now().UTC().Format(time.RFC3339),
	})
}

// GetEntries returns the account's entry history.
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	if _, err := h.Engine.Store.GetAccount(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	entries, err := h.Engine.Store.EntriesByAccount(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = entryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// CreateEntry records a ledger entry.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	magnitude, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	in := engine.CreateEntryInput{
		AccountID:         ledger.AccountID(req.AccountID),
		Kind:              ledger.EntryKind(req.Kind),
		Magnitude:         magnitude,
		Date:              date,
		ScheduleID:        ledger.ScheduleID(req.ScheduleID),
		ObligationID:      ledger.ObligationID(req.ObligationID),
		CounterAccountID:  ledger.AccountID(req.CounterAccountID),
		InstallmentLinked: req.InstallmentLinked,
		Memo:              req.Memo,
	}
	if req.Period != nil {
		p := ledger.Period{Year: req.Period.Year, Month: time.Month(req.Period.Month)}
		in.Period = &p
	}

	entry, err := h.Engine.CreateEntry(r.Context(), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entryDTO(entry))
}

// CreateTransfer records both legs of a transfer atomically.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	magnitude, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	out, in, err := h.Engine.CreateTransfer(r.Context(), engine.TransferInput{
		FromAccountID: ledger.AccountID(req.FromAccountID),
		ToAccountID:   ledger.AccountID(req.ToAccountID),
		Magnitude:     magnitude,
		Date:          date,
		Memo:          req.Memo,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, []EntryDTO{entryDTO(out), entryDTO(in)})
}

// DeleteEntry removes an entry. Derived statuses regress on the next read.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	if err := h.Engine.DeleteEntry(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": string(id)})
}

// =============================================================================
// OBLIGATION HANDLERS
// =============================================================================

// ListObligations returns all obligations.
func (h *Handler) ListObligations(w http.ResponseWriter, r *http.Request) {
	records, err := h.Engine.Store.ListObligations(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]ObligationDTO, len(records))
	for i, rec := range records {
		dtos[i] = obligationDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateObligation creates an obligation from its JSON definition and
// materializes its first schedules per the eager_periods choice.
func (h *Handler) CreateObligation(w http.ResponseWriter, r *http.Request) {
	var req CreateObligationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	record, err := h.Factory.FromJSON(req.Definition)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	record.CreatedAt = time.Now().UTC()

	count := 0
	if req.EagerPeriods != nil {
		count = *req.EagerPeriods
	}
	if err := h.Engine.ActivateObligation(r.Context(), record, count); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, obligationDTO(record))
}

// GetObligation returns a single obligation.
func (h *Handler) GetObligation(w http.ResponseWriter, r *http.Request) {
	id := ledger.ObligationID(chi.URLParam(r, "id"))

	record, err := h.Engine.Store.GetObligation(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obligationDTO(record))
}

// GetObligationSchedules returns the obligation's schedules with derived
// status, from whichever representation the record uses.
func (h *Handler) GetObligationSchedules(w http.ResponseWriter, r *http.Request) {
	id := ledger.ObligationID(chi.URLParam(r, "id"))

	statements, err := h.Engine.ObligationSchedules(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]StatementDTO, len(statements))
	for i, st := range statements {
		dtos[i] = statementDTO(st)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SyncObligation refreshes expected amounts from the linked revolving-credit
// account's billing cycles.
func (h *Handler) SyncObligation(w http.ResponseWriter, r *http.Request) {
	id := ledger.ObligationID(chi.URLParam(r, "id"))

	if err := h.Engine.SyncBillingCycle(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"synced": string(id)})
}

// MigrateObligation copies legacy embedded schedules into the normalized
// store. Safe to call twice; the second call copies zero rows.
func (h *Handler) MigrateObligation(w http.ResponseWriter, r *http.Request) {
	id := ledger.ObligationID(chi.URLParam(r, "id"))

	copied, err := h.Engine.MigrateLegacySchedules(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MigrationResultDTO{ObligationID: string(id), Copied: copied})
}

// CheckObligation sweeps the obligation's schedules for contradictory links.
func (h *Handler) CheckObligation(w http.ResponseWriter, r *http.Request) {
	id := ledger.ObligationID(chi.URLParam(r, "id"))

	if err := h.Engine.ConsistencyCheck(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"consistent": string(id)})
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// GetStatement returns one schedule with derived status, paid sum and linked
// entries.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	id := ledger.ScheduleID(chi.URLParam(r, "id"))

	statement, err := h.Engine.ScheduleStatement(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statementDTO(statement))
}

// GetStatus returns a schedule's derived status only.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := ledger.ScheduleID(chi.URLParam(r, "id"))

	status, err := h.Engine.ResolveStatus(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"schedule_id": string(id),
		"status":      string(status),
	})
}

// =============================================================================
// EVENT STREAM
// =============================================================================

// StreamEvents streams invalidation messages as server-sent events until the
// client disconnects.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	subID, events := h.Engine.Notifier.Subscribe(64)
	defer h.Engine.Notifier.Unsubscribe(subID)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Reason, payload)
			flusher.Flush()
		}
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps the error taxonomy onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, ledger.ErrPrecondition):
		writeError(w, http.StatusConflict, "Precondition failed", err)
	case errors.Is(err, ledger.ErrConsistency):
		writeError(w, http.StatusConflict, "Consistency violation", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
