package sync

import (
	"context"
	"time"

	"github.com/lunaretail/posync/internal/models"
	"github.com/lunaretail/posync/internal/remote"
)

// Entity names, as recorded in the bookkeeper.
const (
	EntityTaxes           = "taxes"
	EntityProducts        = "products"
	EntityDeliveryCenters = "delivery_centers"
	EntityStores          = "stores"
	EntityUsers           = "users"
	EntityPurchaseOrders  = "purchase_orders"
	EntityOrders          = "orders"
)

// pullOrder fixes the reference-entity dependency order. Products come after
// taxes (tax rates), stores and users after delivery centers.
var pullOrder = []string{
	EntityTaxes,
	EntityProducts,
	EntityDeliveryCenters,
	EntityStores,
	EntityUsers,
}

// RemoteAPI is the slice of the remote service the synchronizers consume.
// *remote.Client satisfies it.
type RemoteAPI interface {
	FetchTaxes(ctx context.Context, q remote.Query) ([]remote.TaxRecord, int, error)
	FetchProducts(ctx context.Context, q remote.Query) ([]remote.ProductRecord, int, error)
	FetchStores(ctx context.Context, q remote.Query) ([]remote.StoreRecord, int, error)
	FetchUsers(ctx context.Context, q remote.Query) ([]remote.UserRecord, int, error)
	FetchDeliveryCenters(ctx context.Context, q remote.Query) ([]remote.DeliveryCenterRecord, int, error)
	FetchPurchaseOrders(ctx context.Context, q remote.Query) ([]remote.PurchaseOrderRecord, int, error)
	FetchOrders(ctx context.Context, q remote.Query) ([]remote.OrderRecord, int, error)
	CreatePurchaseOrder(ctx context.Context, rec remote.PurchaseOrderRecord) (*remote.PurchaseOrderRecord, error)
}

// BookkeeperStore persists per-entity sync state.
type BookkeeperStore interface {
	SyncState(entity string) (*models.SyncState, error)
	SaveSyncState(st *models.SyncState) error
}

// PullStore is the repository slice the pull synchronizer writes through.
type PullStore interface {
	ReplaceTaxes(rows []models.Tax, batchSize int) (int, error)
	UpsertTaxes(rows []models.Tax, batchSize int) (int, error)
	ReplaceProducts(rows []models.Product, batchSize int) (int, error)
	UpsertProducts(rows []models.Product, batchSize int) (int, error)
	ReplaceStores(rows []models.Store, batchSize int) (int, error)
	UpsertStores(rows []models.Store, batchSize int) (int, error)
	ReplaceUsers(rows []models.User, batchSize int) (int, error)
	UpsertUsers(rows []models.User, batchSize int) (int, error)
	ReplaceDeliveryCenters(rows []models.DeliveryCenter, batchSize int) (int, error)
	UpsertDeliveryCenters(rows []models.DeliveryCenter, batchSize int) (int, error)
	CountActiveProducts() (int64, error)
	CountActiveProductsWithRef() (int64, error)
}

// PushStore is the repository slice the push synchronizer uses.
type PushStore interface {
	PendingPurchaseOrders(grace time.Duration) ([]models.PurchaseOrder, error)
	MarkPurchaseOrderSent(id string, at time.Time) error
}

// ReconcileStore is the repository slice reconciliation writes through.
type ReconcileStore interface {
	SavePurchaseOrderFromRemote(po *models.PurchaseOrder) error
	SaveOrderFromRemote(o *models.Order) error
}

// AssetSink receives the image URLs discovered during a product pull. The
// asset cache manager satisfies it; enqueueing must not block the sync.
type AssetSink interface {
	Enqueue(urls []string)
}
