package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lunaretail/posync/internal/models"
	"github.com/lunaretail/posync/internal/remote"
)

func newReconciler(api *fakeAPI, store *fakeStore) *Reconciler {
	return NewReconciler(api, store, NewBookkeeper(store), "S01", 0)
}

func TestReconcileAppliesRemotePurchaseOrders(t *testing.T) {
	api := newFakeAPI()
	updated := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	api.pos = []remote.PurchaseOrderRecord{{
		ID:         "S01-260402090000-aaa",
		StoreCode:  "S01",
		StatusCode: 2,
		FinalTotal: 30,
		Items:      []remote.PurchaseOrderItemRecord{{ProductEAN: "111", Quantity: 2, LineTotal: 30}},
		UpdatedAt:  flexTime(updated),
	}}
	store := newFakeStore()

	if err := newReconciler(api, store).Sync(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if len(store.savedPOs) != 1 {
		t.Fatalf("saved %d purchase orders, want 1", len(store.savedPOs))
	}
	po := store.savedPOs[0]
	if po.Status != models.PurchaseOrderCompleted {
		t.Errorf("status = %s, want completed (code 2)", po.Status)
	}
	if len(po.Items) != 1 || po.Items[0].ProductEAN != "111" {
		t.Errorf("item lines not carried over: %+v", po.Items)
	}

	st, _ := store.SyncState(EntityPurchaseOrders)
	if st == nil || !st.LastUpdated.Equal(updated) {
		t.Errorf("bookkeeping not committed: %+v", st)
	}
}

func TestUnknownStatusCodeDefaultsToProcessing(t *testing.T) {
	if got := statusFromCode(7); got != models.PurchaseOrderProcessing {
		t.Errorf("statusFromCode(7) = %s, want processing", got)
	}
}

func TestReconcileAppliesRemoteOrders(t *testing.T) {
	api := newFakeAPI()
	api.orders = []remote.OrderRecord{{
		ID:                    "S01-260402090000-aaa",
		SourcePurchaseOrderID: "S01-260402090000-aaa",
		StoreCode:             "S01",
		Status:                "completed",
		FinalTotal:            30,
		UpdatedAt:             flexTime(time.Now().UTC()),
	}}
	store := newFakeStore()

	if err := newReconciler(api, store).Sync(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(store.savedOrders) != 1 {
		t.Fatalf("saved %d orders, want 1", len(store.savedOrders))
	}
	if store.savedOrders[0].Status != "completed" {
		t.Errorf("status = %s", store.savedOrders[0].Status)
	}
}

func TestReconcileRowFailureBlocksBookkeeping(t *testing.T) {
	api := newFakeAPI()
	api.pos = []remote.PurchaseOrderRecord{{ID: "a"}, {ID: "b"}}
	store := newFakeStore()
	store.savePOErr = errors.New("disk full")

	err := newReconciler(api, store).Sync(context.Background())
	var pae *PartialApplyError
	if !errors.As(err, &pae) {
		t.Fatalf("expected PartialApplyError, got %v", err)
	}
	if st, _ := store.SyncState(EntityPurchaseOrders); st != nil {
		t.Errorf("bookkeeping advanced past failed rows")
	}
}

func TestReconcileOrderFailureDoesNotBlockPurchaseOrders(t *testing.T) {
	api := newFakeAPI()
	api.fetchErr[EntityOrders] = errors.New("boom")
	api.pos = []remote.PurchaseOrderRecord{{ID: "a", StatusCode: 1}}
	store := newFakeStore()

	err := newReconciler(api, store).Sync(context.Background())
	if err == nil {
		t.Fatal("expected the orders failure to surface")
	}
	if len(store.savedPOs) != 1 {
		t.Error("purchase orders skipped after orders failure")
	}
}

func TestReconcileUsesIncrementalBound(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	prev := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	store.states[EntityOrders] = &models.SyncState{Entity: EntityOrders, LastUpdated: prev}

	if err := newReconciler(api, store).Sync(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	q := api.lastQuery[EntityOrders]
	if q.Since == nil || !q.Since.Equal(prev) {
		t.Errorf("orders since = %v, want %v", q.Since, prev)
	}
	if q.StoreID != "S01" {
		t.Errorf("store scope missing: %q", q.StoreID)
	}
}
