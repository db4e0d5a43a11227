package handlers

import (
	"context"
	"net/http"

	"github.com/lunaretail/posync/internal/sync"
)

// triggerSync starts a sync run in the background. ?force=true replaces all
// reference data instead of pulling incrementally.
func (r *Router) triggerSync(w http.ResponseWriter, req *http.Request) {
	force := req.URL.Query().Get("force") == "true"

	if r.orch.Running() {
		respondError(w, http.StatusConflict, "Sync already in progress")
		return
	}

	go func() {
		// detached from the request; progress goes out over the websocket
		_, _ = r.orch.Run(context.Background(), force)
	}()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
		"forced": force,
	})
}

// syncStatus reports whether a run is active plus the last finished result
// and the per-entity bookkeeping.
func (r *Router) syncStatus(w http.ResponseWriter, req *http.Request) {
	entities := map[string]interface{}{}
	for _, entity := range []string{
		sync.EntityTaxes, sync.EntityProducts, sync.EntityDeliveryCenters,
		sync.EntityStores, sync.EntityUsers, sync.EntityPurchaseOrders, sync.EntityOrders,
	} {
		st, err := r.repo.SyncState(entity)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to read sync state")
			return
		}
		if st != nil {
			entities[entity] = st
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"running":  r.orch.Running(),
		"last_run": r.orch.LastResult(),
		"entities": entities,
	})
}
