/*
store.go - Persistence contracts for accounts and ledger entries

PURPOSE:
  Defines the interface between the engine and the database. Implementations
  live in store/memory (tests, dev) and store/sqlite (production).

MUTATION CONTRACT:
  Entries are append/delete only. There is no UpdateEntry: amounts are never
  edited once the sign convention is applied at creation. Deleting an entry is
  the sole undo primitive; every derived value regresses on the next read
  because nothing caches the old answer.
*/
package ledger

import "context"

// AccountStore persists account records.
type AccountStore interface {
	SaveAccount(ctx context.Context, a Account) error

	// GetAccount returns a NotFoundError when the id is unknown.
	GetAccount(ctx context.Context, id AccountID) (Account, error)

	ListAccounts(ctx context.Context) ([]Account, error)
}

// EntryStore persists ledger entries. Append/delete only; no update.
type EntryStore interface {
	CreateEntry(ctx context.Context, e Entry) error

	// CreateEntries persists several entries atomically. Used for the two
	// halves of a transfer: either both exist or neither does.
	CreateEntries(ctx context.Context, es []Entry) error

	// DeleteEntry removes an entry unconditionally. Schedule-linked entries
	// are not special-cased; derivation alone makes status regress.
	DeleteEntry(ctx context.Context, id EntryID) error

	GetEntry(ctx context.Context, id EntryID) (Entry, error)

	// EntriesByAccount returns all entries owned by the account, ordered by
	// date then creation time.
	EntriesByAccount(ctx context.Context, id AccountID) ([]Entry, error)

	// EntriesByAccountInRange returns the account's entries with dates in
	// [from, to].
	EntriesByAccountInRange(ctx context.Context, id AccountID, from, to Period) ([]Entry, error)

	// EntriesBySchedule returns the entries whose schedule reference equals
	// the given id. This is the input set for status derivation.
	EntriesBySchedule(ctx context.Context, id ScheduleID) ([]Entry, error)
}
