/*
scheduler.go - Automated billing-cycle sync scheduler

PURPOSE:
  Periodically re-runs billing-cycle sync for every obligation linked to a
  revolving-credit account, so expected amounts track spending without a
  manual sync call after each purchase.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Sync is idempotent, so re-running against unchanged ledgers is a no-op
  - Each obligation syncs independently; one failure does not stop the sweep

USAGE:
  scheduler := NewSyncScheduler(eng)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - engine/engine.go: SyncBillingCycle
  - handlers.go: SyncObligation endpoint (manual sync)
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/obligation-engine/engine"
)

// SyncScheduler re-runs billing-cycle sync on an interval.
type SyncScheduler struct {
	Engine        *engine.Engine
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSyncScheduler creates a new scheduler.
func NewSyncScheduler(eng *engine.Engine) *SyncScheduler {
	return &SyncScheduler{
		Engine:        eng,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SyncScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started with check interval: %v", ss.CheckInterval)
}

// Stop stops the scheduler.
func (ss *SyncScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SyncScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.syncAll()

	for {
		select {
		case <-ss.ticker.C:
			ss.syncAll()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SyncScheduler) syncAll() {
	ctx := context.Background()

	records, err := ss.Engine.Store.ListObligations(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing obligations: %v", err)
		return
	}

	synced := 0
	for _, rec := range records {
		if !rec.BillingCycleSynced() {
			continue
		}
		if err := ss.Engine.SyncBillingCycle(ctx, rec.ID); err != nil {
			log.Printf("[Scheduler] Error syncing %s: %v", rec.ID, err)
			continue
		}
		synced++
	}

	if synced > 0 {
		log.Printf("[Scheduler] Synced %d billing-cycle obligations", synced)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ss *SyncScheduler) RunNow() {
	ss.syncAll()
}
