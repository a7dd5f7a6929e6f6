/*
events.go - Explicit invalidation messages from the write path

PURPOSE:
  Every write that can change a derived value (entry created or deleted,
  billing cycle synced, legacy schedules migrated) publishes an Invalidation.
  Read paths that cache or display derived status subscribe and re-derive on
  receipt. This replaces any implicit "refresh on state change" coupling with
  an explicit message: the engine says what changed, subscribers decide what
  to recompute.
*/
package engine

import (
	"sync"
	"time"

	"github.com/warp/obligation-engine/ledger"
)

// =============================================================================
// INVALIDATION - What changed, not what to conclude
// =============================================================================

type Reason string

const (
	ReasonEntryCreated   Reason = "entry_created"
	ReasonEntryDeleted   Reason = "entry_deleted"
	ReasonCycleSynced    Reason = "cycle_synced"
	ReasonLegacyMigrated Reason = "legacy_migrated"
)

// Invalidation identifies the records a write touched. Unset IDs mean the
// write did not involve that record type.
type Invalidation struct {
	Reason       Reason              `json:"reason"`
	AccountID    ledger.AccountID    `json:"account_id,omitempty"`
	EntryID      ledger.EntryID      `json:"entry_id,omitempty"`
	ScheduleID   ledger.ScheduleID   `json:"schedule_id,omitempty"`
	ObligationID ledger.ObligationID `json:"obligation_id,omitempty"`
	At           time.Time           `json:"at"`
}

// =============================================================================
// NOTIFIER - Non-blocking fan-out
// =============================================================================

// Notifier fans invalidations out to subscribers. Publishing never blocks:
// a subscriber that falls behind misses messages rather than stalling the
// write path, which is acceptable because subscribers re-derive from current
// state instead of replaying events.
type Notifier struct {
	mu   sync.Mutex
	subs map[int]chan Invalidation
	next int
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan Invalidation)}
}

// Subscribe registers a buffered subscription. The returned id releases it.
func (n *Notifier) Subscribe(buffer int) (int, <-chan Invalidation) {
	if buffer < 1 {
		buffer = 16
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan Invalidation, buffer)
	n.subs[id] = ch
	return id, ch
}

// Unsubscribe releases a subscription and closes its channel.
func (n *Notifier) Unsubscribe(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if ch, ok := n.subs[id]; ok {
		delete(n.subs, id)
		close(ch)
	}
}

// Publish delivers the invalidation to every subscriber with room.
func (n *Notifier) Publish(ev Invalidation) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
