package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lunaretail/posync/internal/models"
	"github.com/lunaretail/posync/internal/remote"
)

// remoteStatusCodes maps the server's numeric purchase-order states onto
// local statuses. Unknown codes fall back to processing: the server clearly
// knows the order, we just don't know the terminal state yet.
var remoteStatusCodes = map[int]models.PurchaseOrderStatus{
	0: models.PurchaseOrderUncommunicated,
	1: models.PurchaseOrderProcessing,
	2: models.PurchaseOrderCompleted,
}

func statusFromCode(code int) models.PurchaseOrderStatus {
	if s, ok := remoteStatusCodes[code]; ok {
		return s
	}
	return models.PurchaseOrderProcessing
}

// Reconciler pulls the server-authoritative copies of orders and purchase
// orders for this store and overwrites the local rows. Remote always wins;
// item lines are replaced wholesale.
type Reconciler struct {
	api       RemoteAPI
	store     ReconcileStore
	book      *Bookkeeper
	storeCode string
	pageSize  int
}

// NewReconciler wires a reconciler for one store.
func NewReconciler(api RemoteAPI, store ReconcileStore, book *Bookkeeper, storeCode string, pageSize int) *Reconciler {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Reconciler{api: api, store: store, book: book, storeCode: storeCode, pageSize: pageSize}
}

// Sync reconciles orders first, then purchase orders. Each collection keeps
// its own bookkeeping; a failure in one does not block the other.
func (r *Reconciler) Sync(ctx context.Context) error {
	var errs []error
	if n, err := r.syncOrders(ctx); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", EntityOrders, err))
	} else if n > 0 {
		log.Printf("✅ Reconciled %d order(s)", n)
	}
	if n, err := r.syncPurchaseOrders(ctx); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", EntityPurchaseOrders, err))
	} else if n > 0 {
		log.Printf("✅ Reconciled %d purchase order(s)", n)
	}
	return errors.Join(errs...)
}

func (r *Reconciler) syncOrders(ctx context.Context) (int, error) {
	requestTime := time.Now().UTC()

	q, err := r.incrementalQuery(EntityOrders)
	if err != nil {
		return 0, err
	}
	records, err := fetchAll(ctx, r.api.FetchOrders, q, r.pageSize)
	if err != nil {
		return 0, err
	}

	applied := 0
	var serverTime time.Time
	for _, rec := range records {
		o := rec.ToModel()
		if err := r.store.SaveOrderFromRemote(&o); err != nil {
			log.Printf("⚠️ Failed to apply order %s: %v", o.ID, err)
			continue
		}
		applied++
		if rec.UpdatedAt.After(serverTime) {
			serverTime = rec.UpdatedAt.Time
		}
	}
	if applied != len(records) {
		return applied, &PartialApplyError{Entity: EntityOrders, Fetched: len(records), Applied: applied}
	}
	return applied, r.book.Commit(EntityOrders, requestTime, serverTime)
}

func (r *Reconciler) syncPurchaseOrders(ctx context.Context) (int, error) {
	requestTime := time.Now().UTC()

	q, err := r.incrementalQuery(EntityPurchaseOrders)
	if err != nil {
		return 0, err
	}
	records, err := fetchAll(ctx, r.api.FetchPurchaseOrders, q, r.pageSize)
	if err != nil {
		return 0, err
	}

	applied := 0
	var serverTime time.Time
	for _, rec := range records {
		po := purchaseOrderFromRecord(rec)
		if err := r.store.SavePurchaseOrderFromRemote(&po); err != nil {
			log.Printf("⚠️ Failed to apply purchase order %s: %v", po.ID, err)
			continue
		}
		applied++
		if rec.UpdatedAt.After(serverTime) {
			serverTime = rec.UpdatedAt.Time
		}
	}
	if applied != len(records) {
		return applied, &PartialApplyError{Entity: EntityPurchaseOrders, Fetched: len(records), Applied: applied}
	}
	return applied, r.book.Commit(EntityPurchaseOrders, requestTime, serverTime)
}

func (r *Reconciler) incrementalQuery(entity string) (remote.Query, error) {
	q := remote.Query{StoreID: r.storeCode}
	st, err := r.book.Config(entity)
	if err != nil {
		return q, err
	}
	if st != nil {
		since := st.LastUpdated
		q.Since = &since
	}
	return q, nil
}

// purchaseOrderFromRecord builds the server-authoritative local row. Origin
// and acknowledgment are filled in by the store when it saves the row.
func purchaseOrderFromRecord(rec remote.PurchaseOrderRecord) models.PurchaseOrder {
	po := models.PurchaseOrder{
		ID:         rec.ID,
		StoreCode:  rec.StoreCode.String(),
		UserEmail:  rec.UserEmail.String(),
		Status:     statusFromCode(rec.StatusCode),
		Subtotal:   rec.Subtotal,
		TaxTotal:   rec.TaxTotal,
		FinalTotal: rec.FinalTotal,
	}
	for _, it := range rec.Items {
		po.Items = append(po.Items, models.PurchaseOrderItem{
			PurchaseOrderID: rec.ID,
			ProductEAN:      it.ProductEAN.String(),
			Title:           it.Title.String(),
			Description:     it.Description.String(),
			Unit:            it.Unit.String(),
			QuantityMeasure: it.QuantityMeasure.String(),
			ImageURL:        it.ImageURL.String(),
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			TaxRate:         it.TaxRate,
			LineTotal:       it.LineTotal,
		})
	}
	return po
}
