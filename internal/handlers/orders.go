package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lunaretail/posync/internal/services/orders"
	"github.com/lunaretail/posync/internal/services/printer"
)

// CreateOrderRequest is the body of POST /api/orders.
type CreateOrderRequest struct {
	UserEmail string        `json:"user_email"`
	Lines     []orders.Line `json:"lines"`
}

func (r *Router) createOrder(w http.ResponseWriter, req *http.Request) {
	var body CreateOrderRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	po, err := r.orders.Create(body.UserEmail, body.Lines)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, po)
}

func (r *Router) getOrder(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	po, err := r.orders.Get(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load order")
		return
	}
	if po == nil {
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}
	respondJSON(w, http.StatusOK, po)
}

func (r *Router) completeOrder(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	order, err := r.orders.Complete(id)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (r *Router) orderReceipt(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	po, err := r.orders.Get(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load order")
		return
	}
	if po == nil {
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}

	storeName := req.URL.Query().Get("store_name")
	if storeName == "" {
		storeName = po.StoreCode
	}
	pdf, err := printer.GenerateReceiptPDF(po, storeName)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate receipt")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", po.ID))
	w.Write(pdf)
}
