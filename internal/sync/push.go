package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lunaretail/posync/internal/models"
	"github.com/lunaretail/posync/internal/remote"
)

// DefaultGraceWindow is how long a freshly imported remote order is excluded
// from the pending scan, so reconciliation and push do not race over it.
const DefaultGraceWindow = 5 * time.Minute

// PushSynchronizer uploads locally created purchase orders the server has
// not acknowledged yet. Pushes are idempotent: the order id is generated
// locally, and a conflict answer means the server already has the row.
type PushSynchronizer struct {
	api   RemoteAPI
	store PushStore
	grace time.Duration

	mu       sync.Mutex
	inflight map[string]bool
}

// NewPushSynchronizer wires a push synchronizer. grace <= 0 selects the
// default window.
func NewPushSynchronizer(api RemoteAPI, store PushStore, grace time.Duration) *PushSynchronizer {
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	return &PushSynchronizer{
		api:      api,
		store:    store,
		grace:    grace,
		inflight: make(map[string]bool),
	}
}

// SyncPending scans unacknowledged orders oldest-first and pushes each one.
// Returns how many were acknowledged this run. Transport failures leave the
// order pending for the next run; validation failures are logged and the
// order stays local.
func (p *PushSynchronizer) SyncPending(ctx context.Context) (int, error) {
	orders, err := p.store.PendingPurchaseOrders(p.grace)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending orders: %w", err)
	}
	if len(orders) == 0 {
		return 0, nil
	}
	log.Printf("📤 Pushing %d pending order(s)", len(orders))

	sent := 0
	var errs []error
	for _, po := range orders {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ok, err := p.pushOne(ctx, po)
		if ok {
			sent++
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("order %s: %w", po.ID, err))
		}
	}
	return sent, errors.Join(errs...)
}

// pushOne uploads a single order, serializing concurrent pushes of the same
// id. Reports whether the server acknowledged it.
func (p *PushSynchronizer) pushOne(ctx context.Context, po models.PurchaseOrder) (bool, error) {
	if !p.begin(po.ID) {
		// another push of the same order is running
		return false, nil
	}
	defer p.end(po.ID)

	_, err := p.api.CreatePurchaseOrder(ctx, remote.NewPurchaseOrderRecord(po))
	switch {
	case err == nil:
		// acknowledged
	case remote.IsConflict(err):
		// the server already has this id from an earlier attempt
		log.Printf("ℹ️ Order %s already known to server", po.ID)
	case remote.IsValidation(err):
		log.Printf("⚠️ Order %s rejected by server: %v", po.ID, err)
		return false, err
	default:
		return false, err
	}

	if err := p.store.MarkPurchaseOrderSent(po.ID, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("failed to record acknowledgment: %w", err)
	}
	return true, nil
}

func (p *PushSynchronizer) begin(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight[id] {
		return false
	}
	p.inflight[id] = true
	return true
}

func (p *PushSynchronizer) end(id string) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.mu.Unlock()
}
