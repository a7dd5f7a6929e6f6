/*
Package sqlite provides the SQLite-backed engine.Store.

PURPOSE:
  Persists accounts, ledger entries, obligations and schedules. The schema is
  migrated on open; use ":memory:" for tests.

TABLES:
  accounts:     account records (kind, opening balance, billing anchor)
  entries:      the ledger; insert and delete only, no update path exists
  obligations:  obligation records, legacy schedules embedded as JSON
  schedules:    expected amounts, unique per (obligation, period)

MUTATION CONTRACT:
  Entries have no UPDATE statement anywhere in this package. Amounts are
  written once with their sign and either survive or are deleted. Schedules
  are upserted by their (obligation, period) key so re-running billing-cycle
  sync converges instead of duplicating rows. Nothing stores a status or a
  paid sum.

CONCURRENCY:
  sync.RWMutex plus WAL mode, same discipline as a single-node deployment
  needs. WithTx wraps multi-row writes in a database transaction.

SEE ALSO:
  - engine/engine.go: Store interface definition
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/engine"
	"github.com/warp/obligation-engine/ledger"
	"github.com/warp/obligation-engine/obligation"
)

// Store implements engine.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ engine.Store = (*Store)(nil)

// New opens (and migrates) the database at dbPath. ":memory:" is supported.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A second pooled connection to ":memory:" would see a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		opening TEXT NOT NULL,
		billing_anchor_day INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- The ledger. Insert and delete only; amounts are never updated.
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		kind TEXT NOT NULL,
		counter_account_id TEXT,
		schedule_id TEXT,
		obligation_id TEXT,
		installment_linked INTEGER NOT NULL DEFAULT 0,
		memo TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_account_date
		ON entries(account_id, entry_date);
	CREATE INDEX IF NOT EXISTS idx_entries_schedule
		ON entries(schedule_id) WHERE schedule_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS obligations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		nominal_amount TEXT NOT NULL,
		due_day INTEGER NOT NULL,
		activation_year INTEGER NOT NULL,
		activation_month INTEGER NOT NULL,
		term_months INTEGER NOT NULL DEFAULT 0,
		linked_account_id TEXT,
		source TEXT NOT NULL,
		legacy_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		obligation_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		period_year INTEGER NOT NULL,
		period_month INTEGER NOT NULL,
		expected_amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- The (obligation, period) key is the schedule's identity.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_schedules_key
		ON schedules(obligation_id, period_year, period_month);
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the query helpers can run
// inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNTS (ledger.AccountStore)
// =============================================================================

func (s *Store) SaveAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccount(ctx, s.db, a)
}

func saveAccount(ctx context.Context, db dbtx, a ledger.Account) error {
	query := `
		INSERT INTO accounts (id, name, kind, opening, billing_anchor_day, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			opening = excluded.opening,
			billing_anchor_day = excluded.billing_anchor_day
	`
	_, err := db.ExecContext(ctx, query,
		a.ID, a.Name, a.Kind, a.Opening.String(), a.BillingAnchorDay,
		timestamp(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

const accountColumns = `id, name, kind, opening, billing_anchor_day, created_at`

func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, id)
}

func getAccount(ctx context.Context, db dbtx, id ledger.AccountID) (ledger.Account, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	if err != nil {
		return ledger.Account{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		return ledger.Account{}, &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	return scanAccount(rows)
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAccounts(ctx, s.db)
}

func listAccounts(ctx context.Context, db dbtx) ([]ledger.Account, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func scanAccount(rows *sql.Rows) (ledger.Account, error) {
	var (
		a         ledger.Account
		opening   string
		createdAt string
	)
	if err := rows.Scan(&a.ID, &a.Name, &a.Kind, &opening, &a.BillingAnchorDay, &createdAt); err != nil {
		return a, fmt.Errorf("failed to scan account: %w", err)
	}
	a.Opening = parseDecimal(opening)
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

// =============================================================================
// ENTRIES (ledger.EntryStore)
// =============================================================================

const entryColumns = `id, account_id, amount, entry_date, kind, counter_account_id,
	schedule_id, obligation_id, installment_linked, memo, created_at`

func (s *Store) CreateEntry(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertEntry(ctx, s.db, e)
}

// CreateEntries inserts all entries atomically.
func (s *Store) CreateEntries(ctx context.Context, es []ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range es {
		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertEntry(ctx context.Context, db dbtx, e ledger.Entry) error {
	query := `
		INSERT INTO entries
		(id, account_id, amount, entry_date, kind, counter_account_id,
		 schedule_id, obligation_id, installment_linked, memo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		e.ID,
		e.AccountID,
		e.Amount.String(),
		e.Date.UTC().Format(time.RFC3339),
		e.Kind,
		nullString(string(e.CounterAccountID)),
		nullString(string(e.ScheduleID)),
		nullString(string(e.ObligationID)),
		e.InstallmentLinked,
		e.Memo,
		timestamp(e.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &ledger.ValidationError{Field: "id", Reason: "duplicate entry id " + string(e.ID)}
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEntry(ctx, s.db, id)
}

func deleteEntry(ctx context.Context, db dbtx, id ledger.EntryID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "entry", ID: string(id)}
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id ledger.EntryID) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEntry(ctx, s.db, id)
}

func getEntry(ctx context.Context, db dbtx, id ledger.EntryID) (ledger.Entry, error) {
	entries, err := queryEntries(ctx, db,
		"SELECT "+entryColumns+" FROM entries WHERE id = ?", id)
	if err != nil {
		return ledger.Entry{}, err
	}
	if len(entries) == 0 {
		return ledger.Entry{}, &ledger.NotFoundError{Kind: "entry", ID: string(id)}
	}
	return entries[0], nil
}

func (s *Store) EntriesByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entriesByAccount(ctx, s.db, id)
}

func entriesByAccount(ctx context.Context, db dbtx, id ledger.AccountID) ([]ledger.Entry, error) {
	return queryEntries(ctx, db,
		"SELECT "+entryColumns+` FROM entries
		 WHERE account_id = ? ORDER BY entry_date ASC, created_at ASC`, id)
}

func (s *Store) EntriesByAccountInRange(ctx context.Context, id ledger.AccountID, from, to ledger.Period) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entriesByAccountInRange(ctx, s.db, id, from, to)
}

func entriesByAccountInRange(ctx context.Context, db dbtx, id ledger.AccountID, from, to ledger.Period) ([]ledger.Entry, error) {
	return queryEntries(ctx, db,
		"SELECT "+entryColumns+` FROM entries
		 WHERE account_id = ? AND entry_date >= ? AND entry_date < ?
		 ORDER BY entry_date ASC, created_at ASC`,
		id,
		from.Start().Format(time.RFC3339),
		to.Next().Start().Format(time.RFC3339),
	)
}

func (s *Store) EntriesBySchedule(ctx context.Context, id ledger.ScheduleID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entriesBySchedule(ctx, s.db, id)
}

func entriesBySchedule(ctx context.Context, db dbtx, id ledger.ScheduleID) ([]ledger.Entry, error) {
	return queryEntries(ctx, db,
		"SELECT "+entryColumns+` FROM entries
		 WHERE schedule_id = ? ORDER BY entry_date ASC, created_at ASC`, id)
}

func queryEntries(ctx context.Context, db dbtx, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (ledger.Entry, error) {
	var (
		e              ledger.Entry
		amount         string
		entryDate      string
		counterAccount sql.NullString
		scheduleID     sql.NullString
		obligationID   sql.NullString
		memo           sql.NullString
		createdAt      string
	)
	err := rows.Scan(
		&e.ID, &e.AccountID, &amount, &entryDate, &e.Kind,
		&counterAccount, &scheduleID, &obligationID, &e.InstallmentLinked,
		&memo, &createdAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}
	e.Amount = parseDecimal(amount)
	e.Date = parseTime(entryDate)
	e.CounterAccountID = ledger.AccountID(counterAccount.String)
	e.ScheduleID = ledger.ScheduleID(scheduleID.String)
	e.ObligationID = ledger.ObligationID(obligationID.String)
	e.Memo = memo.String
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

// =============================================================================
// OBLIGATIONS (obligation.Store)
// =============================================================================

const obligationColumns = `id, name, kind, nominal_amount, due_day, activation_year,
	activation_month, term_months, linked_account_id, source, legacy_json, created_at`

func (s *Store) SaveObligation(ctx context.Context, r obligation.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveObligation(ctx, s.db, r)
}

func saveObligation(ctx context.Context, db dbtx, r obligation.Record) error {
	var legacyJSON any
	if len(r.LegacySchedules) > 0 {
		b, err := json.Marshal(r.LegacySchedules)
		if err != nil {
			return fmt.Errorf("failed to encode legacy schedules: %w", err)
		}
		legacyJSON = string(b)
	}

	query := `
		INSERT INTO obligations
		(id, name, kind, nominal_amount, due_day, activation_year, activation_month,
		 term_months, linked_account_id, source, legacy_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			nominal_amount = excluded.nominal_amount,
			due_day = excluded.due_day,
			activation_year = excluded.activation_year,
			activation_month = excluded.activation_month,
			term_months = excluded.term_months,
			linked_account_id = excluded.linked_account_id,
			source = excluded.source,
			legacy_json = excluded.legacy_json
	`
	_, err := db.ExecContext(ctx, query,
		r.ID, r.Name, r.Kind, r.NominalAmount.String(), r.DueDay,
		r.Activation.Year, int(r.Activation.Month),
		r.TermMonths, nullString(string(r.LinkedAccountID)), r.Source,
		legacyJSON, timestamp(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save obligation: %w", err)
	}
	return nil
}

func (s *Store) GetObligation(ctx context.Context, id ledger.ObligationID) (obligation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getObligation(ctx, s.db, id)
}

func getObligation(ctx context.Context, db dbtx, id ledger.ObligationID) (obligation.Record, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+obligationColumns+" FROM obligations WHERE id = ?", id)
	if err != nil {
		return obligation.Record{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		return obligation.Record{}, &ledger.NotFoundError{Kind: "obligation", ID: string(id)}
	}
	return scanObligation(rows)
}

func (s *Store) ListObligations(ctx context.Context) ([]obligation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listObligations(ctx, s.db)
}

func listObligations(ctx context.Context, db dbtx) ([]obligation.Record, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+obligationColumns+" FROM obligations ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []obligation.Record
	for rows.Next() {
		r, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanObligation(rows *sql.Rows) (obligation.Record, error) {
	var (
		r               obligation.Record
		nominal         string
		activationMonth int
		linkedAccount   sql.NullString
		legacyJSON      sql.NullString
		createdAt       string
	)
	err := rows.Scan(
		&r.ID, &r.Name, &r.Kind, &nominal, &r.DueDay,
		&r.Activation.Year, &activationMonth, &r.TermMonths,
		&linkedAccount, &r.Source, &legacyJSON, &createdAt,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan obligation: %w", err)
	}
	r.NominalAmount = parseDecimal(nominal)
	r.Activation.Month = time.Month(activationMonth)
	r.LinkedAccountID = ledger.AccountID(linkedAccount.String)
	r.CreatedAt = parseTime(createdAt)
	if legacyJSON.Valid && legacyJSON.String != "" {
		if err := json.Unmarshal([]byte(legacyJSON.String), &r.LegacySchedules); err != nil {
			return r, fmt.Errorf("failed to decode legacy schedules: %w", err)
		}
	}
	return r, nil
}

// =============================================================================
// SCHEDULES (obligation.ScheduleStore)
// =============================================================================

const scheduleColumns = `id, obligation_id, kind, period_year, period_month,
	expected_amount, due_date, created_at`

func (s *Store) UpsertSchedule(ctx context.Context, sched obligation.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertSchedule(ctx, s.db, sched)
}

func upsertSchedule(ctx context.Context, db dbtx, sched obligation.Schedule) error {
	// The id never changes on conflict; (obligation, period) is the identity.
	query := `
		INSERT INTO schedules
		(id, obligation_id, kind, period_year, period_month, expected_amount, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(obligation_id, period_year, period_month) DO UPDATE SET
			expected_amount = excluded.expected_amount,
			due_date = excluded.due_date
	`
	_, err := db.ExecContext(ctx, query,
		sched.ID, sched.ObligationID, sched.Kind,
		sched.Period.Year, int(sched.Period.Month),
		sched.ExpectedAmount.String(),
		sched.DueDate.UTC().Format(time.RFC3339),
		timestamp(sched.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert schedule: %w", err)
	}
	return nil
}

func (s *Store) GetSchedule(ctx context.Context, id ledger.ScheduleID) (obligation.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getScheduleByID(ctx, s.db, id)
}

func getScheduleByID(ctx context.Context, db dbtx, id ledger.ScheduleID) (obligation.Schedule, error) {
	return getSchedule(ctx, db,
		"SELECT "+scheduleColumns+" FROM schedules WHERE id = ?",
		&ledger.NotFoundError{Kind: "schedule", ID: string(id)}, id)
}

func (s *Store) ScheduleByKey(ctx context.Context, obligationID ledger.ObligationID, p ledger.Period) (obligation.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scheduleByKey(ctx, s.db, obligationID, p)
}

func scheduleByKey(ctx context.Context, db dbtx, obligationID ledger.ObligationID, p ledger.Period) (obligation.Schedule, error) {
	return getSchedule(ctx, db,
		"SELECT "+scheduleColumns+` FROM schedules
		 WHERE obligation_id = ? AND period_year = ? AND period_month = ?`,
		&ledger.NotFoundError{Kind: "schedule", ID: string(obligationID) + ":" + p.String()},
		obligationID, p.Year, int(p.Month))
}

func getSchedule(ctx context.Context, db dbtx, query string, notFound error, args ...any) (obligation.Schedule, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return obligation.Schedule{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		return obligation.Schedule{}, notFound
	}
	return scanSchedule(rows)
}

func (s *Store) SchedulesByObligation(ctx context.Context, obligationID ledger.ObligationID) ([]obligation.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return schedulesByObligation(ctx, s.db, obligationID)
}

func schedulesByObligation(ctx context.Context, db dbtx, obligationID ledger.ObligationID) ([]obligation.Schedule, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+scheduleColumns+` FROM schedules
		 WHERE obligation_id = ? ORDER BY period_year, period_month`,
		obligationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []obligation.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

func scanSchedule(rows *sql.Rows) (obligation.Schedule, error) {
	var (
		sched       obligation.Schedule
		periodMonth int
		expected    string
		dueDate     string
		createdAt   string
	)
	err := rows.Scan(
		&sched.ID, &sched.ObligationID, &sched.Kind,
		&sched.Period.Year, &periodMonth, &expected, &dueDate, &createdAt,
	)
	if err != nil {
		return sched, fmt.Errorf("failed to scan schedule: %w", err)
	}
	sched.Period.Month = time.Month(periodMonth)
	sched.ExpectedAmount = parseDecimal(expected)
	sched.DueDate = parseTime(dueDate)
	sched.CreatedAt = parseTime(createdAt)
	return sched, nil
}

// =============================================================================
// TRANSACTIONS (engine.Store)
// =============================================================================

// WithTx executes fn inside one database transaction. Every store call made
// through the view fn receives runs on that transaction, so reads observe the
// transaction's own pending writes.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore routes every operation through the open transaction.
type txStore struct {
	tx *sql.Tx
}

var _ engine.Store = (*txStore)(nil)

func (ts *txStore) SaveAccount(ctx context.Context, a ledger.Account) error {
	return saveAccount(ctx, ts.tx, a)
}

func (ts *txStore) GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	return getAccount(ctx, ts.tx, id)
}

func (ts *txStore) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return listAccounts(ctx, ts.tx)
}

func (ts *txStore) CreateEntry(ctx context.Context, e ledger.Entry) error {
	return insertEntry(ctx, ts.tx, e)
}

func (ts *txStore) CreateEntries(ctx context.Context, es []ledger.Entry) error {
	for _, e := range es {
		if err := insertEntry(ctx, ts.tx, e); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	return deleteEntry(ctx, ts.tx, id)
}

func (ts *txStore) GetEntry(ctx context.Context, id ledger.EntryID) (ledger.Entry, error) {
	return getEntry(ctx, ts.tx, id)
}

func (ts *txStore) EntriesByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.Entry, error) {
	return entriesByAccount(ctx, ts.tx, id)
}

func (ts *txStore) EntriesByAccountInRange(ctx context.Context, id ledger.AccountID, from, to ledger.Period) ([]ledger.Entry, error) {
	return entriesByAccountInRange(ctx, ts.tx, id, from, to)
}

func (ts *txStore) EntriesBySchedule(ctx context.Context, id ledger.ScheduleID) ([]ledger.Entry, error) {
	return entriesBySchedule(ctx, ts.tx, id)
}

func (ts *txStore) SaveObligation(ctx context.Context, r obligation.Record) error {
	return saveObligation(ctx, ts.tx, r)
}

func (ts *txStore) GetObligation(ctx context.Context, id ledger.ObligationID) (obligation.Record, error) {
	return getObligation(ctx, ts.tx, id)
}

func (ts *txStore) ListObligations(ctx context.Context) ([]obligation.Record, error) {
	return listObligations(ctx, ts.tx)
}

func (ts *txStore) UpsertSchedule(ctx context.Context, sched obligation.Schedule) error {
	return upsertSchedule(ctx, ts.tx, sched)
}

func (ts *txStore) GetSchedule(ctx context.Context, id ledger.ScheduleID) (obligation.Schedule, error) {
	return getScheduleByID(ctx, ts.tx, id)
}

func (ts *txStore) ScheduleByKey(ctx context.Context, obligationID ledger.ObligationID, p ledger.Period) (obligation.Schedule, error) {
	return scheduleByKey(ctx, ts.tx, obligationID, p)
}

func (ts *txStore) SchedulesByObligation(ctx context.Context, obligationID ledger.ObligationID) ([]obligation.Schedule, error) {
	return schedulesByObligation(ctx, ts.tx, obligationID)
}

// Nested WithTx reuses the open transaction.
func (ts *txStore) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	return fn(ts)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
