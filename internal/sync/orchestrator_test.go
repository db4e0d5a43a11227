package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lunaretail/posync/internal/models"
	"github.com/lunaretail/posync/internal/remote"
)

func newOrchestrator(api *fakeAPI, store *fakeStore, progress ProgressFunc) *Orchestrator {
	book := NewBookkeeper(store)
	return NewOrchestrator(
		NewPullSynchronizer(api, store, book, nil, PullOptions{StoreCode: "S01"}),
		NewPushSynchronizer(api, store, 0),
		NewReconciler(api, store, book, "S01", 0),
		progress,
	)
}

func TestOrchestratorRunsAllStages(t *testing.T) {
	api := newFakeAPI()
	api.taxes = []remote.TaxRecord{taxRecord("A", time.Now().UTC())}
	api.orders = []remote.OrderRecord{{ID: "o1", UpdatedAt: flexTime(time.Now().UTC())}}
	store := newFakeStore()
	store.pending = []models.PurchaseOrder{pendingOrder("S01-260401120000-abc")}

	o := newOrchestrator(api, store, nil)
	res, err := o.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success() {
		t.Fatalf("unexpected stage errors: %v", res.Errors)
	}
	if store.replaced[EntityTaxes] != 1 {
		t.Error("pull stage did not run")
	}
	if res.OrdersPushed != 1 {
		t.Errorf("push stage reported %d orders", res.OrdersPushed)
	}
	if len(store.savedOrders) != 1 {
		t.Error("reconcile stage did not run")
	}
	if res.Finished.Before(res.Started) {
		t.Error("finished before started")
	}
}

func TestProgressIsMonotonicAndTerminates(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()

	var percents []int
	o := newOrchestrator(api, store, func(percent int, _ string) {
		percents = append(percents, percent)
	})
	if _, err := o.Run(context.Background(), false); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(percents) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress regressed: %v", percents)
		}
	}
	if last := percents[len(percents)-1]; last != 100 {
		t.Errorf("terminal progress = %d, want 100", last)
	}
}

func TestStageFailureDoesNotStopLaterStages(t *testing.T) {
	api := newFakeAPI()
	api.fetchErr[EntityTaxes] = errors.New("boom")
	store := newFakeStore()
	store.pending = []models.PurchaseOrder{pendingOrder("S01-260401120000-abc")}

	o := newOrchestrator(api, store, nil)
	res, err := o.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Success() {
		t.Fatal("pull failure not recorded")
	}
	if res.OrdersPushed != 1 {
		t.Error("push stage skipped after pull failure")
	}
}

func TestOnlyOneRunAtATime(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()

	var o *Orchestrator
	var nested error
	reported := false
	o = newOrchestrator(api, store, func(percent int, _ string) {
		if !reported {
			reported = true
			_, nested = o.Run(context.Background(), false)
		}
	})

	if _, err := o.Run(context.Background(), false); err != nil {
		t.Fatalf("run: %v", err)
	}
	if nested != ErrSyncInProgress {
		t.Errorf("nested run returned %v, want ErrSyncInProgress", nested)
	}
	if o.Running() {
		t.Error("still marked running after return")
	}
	if o.LastResult() == nil {
		t.Error("last result not recorded")
	}
}
