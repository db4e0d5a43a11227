package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrSyncInProgress is returned when a run is requested while another one is
// still going. Only one orchestrated sync runs at a time.
var ErrSyncInProgress = errors.New("sync already in progress")

// ProgressFunc receives coarse progress for a whole sync run. percent is
// monotonic within a run and reaches 100 exactly once, on the terminal
// report.
type ProgressFunc func(percent int, message string)

// Result summarizes one orchestrated run.
type Result struct {
	Started      time.Time `json:"started"`
	Finished     time.Time `json:"finished"`
	Forced       bool      `json:"forced"`
	OrdersPushed int       `json:"orders_pushed"`
	Errors       []string  `json:"errors,omitempty"`
}

// Success reports whether every stage completed cleanly.
func (r *Result) Success() bool { return len(r.Errors) == 0 }

// Progress checkpoints for the three stages. Pull spreads its share across
// the reference entities.
const (
	progressPullStart = 5
	progressPullEnd   = 60
	progressPushEnd   = 80
	progressReconcile = 95
)

// Orchestrator runs the three sync stages in order: pull reference data,
// push pending orders, reconcile order state. A stage failure is recorded
// and the remaining stages still run.
type Orchestrator struct {
	pull      *PullSynchronizer
	push      *PushSynchronizer
	reconcile *Reconciler
	progress  ProgressFunc

	mu      sync.Mutex
	running bool
	last    *Result
}

// NewOrchestrator wires the three stages. progress may be nil.
func NewOrchestrator(pull *PullSynchronizer, push *PushSynchronizer, reconcile *Reconciler, progress ProgressFunc) *Orchestrator {
	return &Orchestrator{pull: pull, push: push, reconcile: reconcile, progress: progress}
}

// Run executes one full sync. Returns ErrSyncInProgress when another run
// holds the slot; any stage errors are carried in the Result, not returned.
func (o *Orchestrator) Run(ctx context.Context, force bool) (*Result, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	o.running = true
	o.mu.Unlock()

	res := &Result{Started: time.Now().UTC(), Forced: force}
	defer func() {
		res.Finished = time.Now().UTC()
		o.mu.Lock()
		o.running = false
		o.last = res
		o.mu.Unlock()
	}()

	reported := 0
	report := func(percent int, message string) {
		if percent < reported {
			percent = reported
		}
		reported = percent
		if o.progress != nil {
			o.progress(percent, message)
		}
	}

	log.Printf("🔄 Sync started (force=%v)", force)
	report(0, "sync started")

	pullSpan := progressPullEnd - progressPullStart
	err := o.pull.Sync(ctx, force, func(entity string, index, total int) {
		report(progressPullStart+pullSpan*index/total, fmt.Sprintf("pulling %s", entity))
	})
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	report(progressPullEnd, "reference data pulled")

	sent, err := o.push.SyncPending(ctx)
	res.OrdersPushed = sent
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	report(progressPushEnd, fmt.Sprintf("pushed %d order(s)", sent))

	if err := o.reconcile.Sync(ctx); err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	report(progressReconcile, "orders reconciled")

	if res.Success() {
		log.Printf("✅ Sync finished in %s", time.Since(res.Started).Round(time.Millisecond))
		report(100, "sync finished")
	} else {
		log.Printf("⚠️ Sync finished with %d error(s)", len(res.Errors))
		report(100, "sync finished with errors")
	}
	return res, nil
}

// Running reports whether a run is currently executing.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// LastResult returns the most recent finished run, or nil.
func (o *Orchestrator) LastResult() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}
