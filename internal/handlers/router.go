package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lunaretail/posync/internal/assets"
	"github.com/lunaretail/posync/internal/buildinfo"
	"github.com/lunaretail/posync/internal/repository"
	"github.com/lunaretail/posync/internal/services/orders"
	"github.com/lunaretail/posync/internal/sync"
	ws "github.com/lunaretail/posync/internal/websocket"
)

// Router wraps the mux router and the services the terminal talks to.
type Router struct {
	*mux.Router
	repo   *repository.Repository
	orch   *sync.Orchestrator
	cache  *assets.Manager
	orders *orders.Service
	hub    *ws.Hub
}

// NewRouter creates the HTTP router with all routes.
func NewRouter(repo *repository.Repository, orch *sync.Orchestrator, cache *assets.Manager, ordersSvc *orders.Service, hub *ws.Hub) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		repo:   repo,
		orch:   orch,
		cache:  cache,
		orders: ordersSvc,
		hub:    hub,
	}

	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWs(hub, w, req)
	})

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/sync", r.triggerSync).Methods("POST")
	api.HandleFunc("/sync/status", r.syncStatus).Methods("GET")

	api.HandleFunc("/orders", r.createOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", r.getOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/complete", r.completeOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/receipt", r.orderReceipt).Methods("GET")

	api.HandleFunc("/assets/status", r.assetStatus).Methods("GET")
	api.HandleFunc("/assets/clear", r.clearAssets).Methods("POST")
	api.HandleFunc("/assets/resume", r.resumeAssets).Methods("POST")
	api.HandleFunc("/assets", r.getAsset).Methods("GET")

	return r
}

// healthCheck reports liveness and build provenance.
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"build_time":  buildinfo.BuildTime,
		"commit":      buildinfo.CommitHash,
		"started_at":  buildinfo.StartTime,
		"commit_time": buildinfo.CommitTime,
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
