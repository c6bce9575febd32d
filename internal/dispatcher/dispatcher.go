// Package dispatcher owns the per-repository quiescence timers. Every
// ingestion activity runs the immediate repair worker and (re)arms a
// watcher; a watcher that survives the quiescence period untouched runs the
// full tier-2/3 enhancement cycle.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codegraphhq/codegraph/internal/enrich"
	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// Dispatcher maintains one quiescence watcher per repository. The watcher
// map is the only shared mutable state; all mutations happen under mu.
type Dispatcher struct {
	store      graph.Store
	engine     *enrich.Engine
	quiescence time.Duration
	log        *slog.Logger

	mu       sync.Mutex
	watchers map[string]*watcher
	cycling  map[string]bool

	wg sync.WaitGroup
}

type watcher struct {
	cancel context.CancelFunc
}

// New creates a dispatcher with the given quiescence period T_Q.
func New(store graph.Store, engine *enrich.Engine, quiescence time.Duration) *Dispatcher {
	if quiescence <= 0 {
		quiescence = 60 * time.Second
	}
	return &Dispatcher{
		store:      store,
		engine:     engine,
		quiescence: quiescence,
		log:        logging.Component("dispatcher"),
		watchers:   make(map[string]*watcher),
		cycling:    make(map[string]bool),
	}
}

// NotifyIngestionActivity is called by the ingestion host after every
// successfully persisted file. It runs the repair worker synchronously,
// refreshes the repository heartbeat, and resets the quiescence timer.
func (d *Dispatcher) NotifyIngestionActivity(ctx context.Context, repoSlug string, entities []model.CodeEntity, refs []model.CallSiteReference) {
	d.engine.RunRepairWorker(ctx, repoSlug, entities, refs)
	d.engine.InvalidateVocabulary(repoSlug)

	if err := d.store.UpdateHeartbeat(ctx, repoSlug, model.HeartbeatActive, ""); err != nil {
		d.log.Error("heartbeat update failed", "repo", repoSlug, "error", err)
	}

	d.mu.Lock()
	if existing, ok := d.watchers[repoSlug]; ok {
		existing.cancel()
	}
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.watchers[repoSlug] = &watcher{cancel: cancel}
	d.mu.Unlock()

	d.wg.Add(1)
	go d.watchForQuiescence(watchCtx, repoSlug)
}

// watchForQuiescence is the countdown timer for one repository. Cancelled
// by new activity; completion triggers the full enhancement cycle.
func (d *Dispatcher) watchForQuiescence(ctx context.Context, repoSlug string) {
	defer d.wg.Done()
	d.log.Info("starting quiescence watch", "repo", repoSlug, "timer", d.quiescence)

	timer := time.NewTimer(d.quiescence)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		d.log.Info("watch cancelled, activity detected", "repo", repoSlug)
		d.removeWatcher(repoSlug)
		return
	case <-timer.C:
	}

	d.removeWatcher(repoSlug)

	// At most one cycle per repository at a time. A cycle still running
	// from a previous quiescence window wins; this one is skipped.
	d.mu.Lock()
	if d.cycling[repoSlug] {
		d.mu.Unlock()
		d.log.Warn("enhancement cycle already running, skipping", "repo", repoSlug)
		return
	}
	d.cycling[repoSlug] = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.cycling, repoSlug)
		d.mu.Unlock()
	}()

	d.log.Info("quiescence detected, dispatching enhancement cycle", "repo", repoSlug)
	d.runFullEnhancementCycle(ctx, repoSlug)
}

func (d *Dispatcher) removeWatcher(repoSlug string) {
	d.mu.Lock()
	delete(d.watchers, repoSlug)
	d.mu.Unlock()
}

// runFullEnhancementCycle promotes pending links and runs tiers 2 and 3
// concurrently, isolating failures: one failing tier does not abort the
// other, but any failure marks the heartbeat failed and ends the cycle.
// The watcher does not reschedule itself; the next ingestion activity
// retries.
func (d *Dispatcher) runFullEnhancementCycle(ctx context.Context, repoSlug string) {
	log := d.log.With("cycle", repoSlug)

	if err := d.store.UpdateHeartbeat(ctx, repoSlug, model.HeartbeatEnhancing, ""); err != nil {
		log.Error("heartbeat update failed", "error", err)
	}

	if _, err := d.engine.PromotePending(ctx, repoSlug); err != nil {
		log.Error("link promotion failed, marking cycle failed", "error", err)
		d.markFailed(ctx, repoSlug, err)
		return
	}

	// Tier 2 and tier 3 run concurrently. The errgroup context is not
	// shared so one tier's failure never cancels the other mid-flight.
	var g errgroup.Group
	g.Go(func() error { return d.engine.RunTier2(ctx, repoSlug) })
	g.Go(func() error { return d.engine.RunTier3(ctx, repoSlug) })

	if err := g.Wait(); err != nil {
		log.Error("enhancement task failed, marking cycle failed", "error", err)
		d.markFailed(ctx, repoSlug, err)
		return
	}

	if err := d.engine.MaterializeAwaiting(ctx, repoSlug); err != nil {
		log.Error("materialization sweep failed, marking cycle failed", "error", err)
		d.markFailed(ctx, repoSlug, err)
		return
	}

	if err := d.store.UpdateHeartbeat(ctx, repoSlug, model.HeartbeatActive, ""); err != nil {
		log.Error("heartbeat update failed", "error", err)
	}
	log.Info("full enhancement cycle completed")
}

func (d *Dispatcher) markFailed(ctx context.Context, repoSlug string, cause error) {
	if err := d.store.UpdateHeartbeat(ctx, repoSlug, model.HeartbeatFailed, cause.Error()); err != nil {
		d.log.Error("failed to mark heartbeat failed", "repo", repoSlug, "error", err)
	}
}

// CancelWatch cancels any in-flight watcher for a repository.
func (d *Dispatcher) CancelWatch(repoSlug string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.watchers[repoSlug]; ok {
		w.cancel()
		delete(d.watchers, repoSlug)
	}
}

// ActiveWatchers returns the number of live watchers, for tests and status
// reporting.
func (d *Dispatcher) ActiveWatchers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.watchers)
}

// Wait blocks until every watcher goroutine has exited. Callers cancel or
// let timers fire before waiting; in-flight cycles complete and commit.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
