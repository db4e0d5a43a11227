package sync

import (
	"context"
	"time"

	"github.com/lunaretail/posync/internal/models"
	"github.com/lunaretail/posync/internal/remote"
)

// fakeAPI serves canned collections with real pagination so the fetch loop
// is exercised the same way the HTTP client would drive it.
type fakeAPI struct {
	taxes    []remote.TaxRecord
	products []remote.ProductRecord
	stores   []remote.StoreRecord
	users    []remote.UserRecord
	centers  []remote.DeliveryCenterRecord
	pos      []remote.PurchaseOrderRecord
	orders   []remote.OrderRecord

	fetchErr  map[string]error
	lastQuery map[string]remote.Query
	pageCalls map[string]int

	createErr error
	created   []remote.PurchaseOrderRecord
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		fetchErr:  make(map[string]error),
		lastQuery: make(map[string]remote.Query),
		pageCalls: make(map[string]int),
	}
}

func pageOf[T any](items []T, q remote.Query) ([]T, int) {
	total := len(items)
	if q.Offset >= total {
		return nil, total
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return items[q.Offset:end], total
}

func fetchFake[T any](f *fakeAPI, entity string, items []T, q remote.Query) ([]T, int, error) {
	f.lastQuery[entity] = q
	f.pageCalls[entity]++
	if err := f.fetchErr[entity]; err != nil {
		return nil, 0, err
	}
	page, total := pageOf(items, q)
	return page, total, nil
}

func (f *fakeAPI) FetchTaxes(_ context.Context, q remote.Query) ([]remote.TaxRecord, int, error) {
	return fetchFake(f, EntityTaxes, f.taxes, q)
}

func (f *fakeAPI) FetchProducts(_ context.Context, q remote.Query) ([]remote.ProductRecord, int, error) {
	return fetchFake(f, EntityProducts, f.products, q)
}

func (f *fakeAPI) FetchStores(_ context.Context, q remote.Query) ([]remote.StoreRecord, int, error) {
	return fetchFake(f, EntityStores, f.stores, q)
}

func (f *fakeAPI) FetchUsers(_ context.Context, q remote.Query) ([]remote.UserRecord, int, error) {
	return fetchFake(f, EntityUsers, f.users, q)
}

func (f *fakeAPI) FetchDeliveryCenters(_ context.Context, q remote.Query) ([]remote.DeliveryCenterRecord, int, error) {
	return fetchFake(f, EntityDeliveryCenters, f.centers, q)
}

func (f *fakeAPI) FetchPurchaseOrders(_ context.Context, q remote.Query) ([]remote.PurchaseOrderRecord, int, error) {
	return fetchFake(f, EntityPurchaseOrders, f.pos, q)
}

func (f *fakeAPI) FetchOrders(_ context.Context, q remote.Query) ([]remote.OrderRecord, int, error) {
	return fetchFake(f, EntityOrders, f.orders, q)
}

func (f *fakeAPI) CreatePurchaseOrder(_ context.Context, rec remote.PurchaseOrderRecord) (*remote.PurchaseOrderRecord, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, rec)
	return &rec, nil
}

// fakeStore implements every store slice the synchronizers need, entirely in
// memory.
type fakeStore struct {
	states map[string]*models.SyncState

	replaced map[string]int
	upserted map[string]int
	// shortfall simulates rows that failed to apply for an entity
	shortfall map[string]int

	lastProducts []models.Product

	activeProducts  int64
	productsWithRef int64
	countErr        error

	pending     []models.PurchaseOrder
	pendingErr  error
	sentAt      map[string]time.Time
	markSentErr error

	savedPOs    []models.PurchaseOrder
	savedOrders []models.Order
	savePOErr   error
	saveOrdErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states:    make(map[string]*models.SyncState),
		replaced:  make(map[string]int),
		upserted:  make(map[string]int),
		shortfall: make(map[string]int),
		sentAt:    make(map[string]time.Time),
	}
}

func (s *fakeStore) SyncState(entity string) (*models.SyncState, error) {
	st, ok := s.states[entity]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (s *fakeStore) SaveSyncState(st *models.SyncState) error {
	cp := *st
	s.states[st.Entity] = &cp
	return nil
}

func (s *fakeStore) apply(entity string, n int, replaced bool) (int, error) {
	applied := n - s.shortfall[entity]
	if applied < 0 {
		applied = 0
	}
	if replaced {
		s.replaced[entity] += applied
	} else {
		s.upserted[entity] += applied
	}
	return applied, nil
}

func (s *fakeStore) ReplaceTaxes(rows []models.Tax, _ int) (int, error) {
	return s.apply(EntityTaxes, len(rows), true)
}

func (s *fakeStore) UpsertTaxes(rows []models.Tax, _ int) (int, error) {
	return s.apply(EntityTaxes, len(rows), false)
}

func (s *fakeStore) ReplaceProducts(rows []models.Product, _ int) (int, error) {
	s.lastProducts = rows
	return s.apply(EntityProducts, len(rows), true)
}

func (s *fakeStore) UpsertProducts(rows []models.Product, _ int) (int, error) {
	s.lastProducts = rows
	return s.apply(EntityProducts, len(rows), false)
}

func (s *fakeStore) ReplaceStores(rows []models.Store, _ int) (int, error) {
	return s.apply(EntityStores, len(rows), true)
}

func (s *fakeStore) UpsertStores(rows []models.Store, _ int) (int, error) {
	return s.apply(EntityStores, len(rows), false)
}

func (s *fakeStore) ReplaceUsers(rows []models.User, _ int) (int, error) {
	return s.apply(EntityUsers, len(rows), true)
}

func (s *fakeStore) UpsertUsers(rows []models.User, _ int) (int, error) {
	return s.apply(EntityUsers, len(rows), false)
}

func (s *fakeStore) ReplaceDeliveryCenters(rows []models.DeliveryCenter, _ int) (int, error) {
	return s.apply(EntityDeliveryCenters, len(rows), true)
}

func (s *fakeStore) UpsertDeliveryCenters(rows []models.DeliveryCenter, _ int) (int, error) {
	return s.apply(EntityDeliveryCenters, len(rows), false)
}

func (s *fakeStore) CountActiveProducts() (int64, error) {
	return s.activeProducts, s.countErr
}

func (s *fakeStore) CountActiveProductsWithRef() (int64, error) {
	return s.productsWithRef, s.countErr
}

func (s *fakeStore) PendingPurchaseOrders(time.Duration) ([]models.PurchaseOrder, error) {
	return s.pending, s.pendingErr
}

func (s *fakeStore) MarkPurchaseOrderSent(id string, at time.Time) error {
	if s.markSentErr != nil {
		return s.markSentErr
	}
	s.sentAt[id] = at
	return nil
}

func (s *fakeStore) SavePurchaseOrderFromRemote(po *models.PurchaseOrder) error {
	if s.savePOErr != nil {
		return s.savePOErr
	}
	s.savedPOs = append(s.savedPOs, *po)
	return nil
}

func (s *fakeStore) SaveOrderFromRemote(o *models.Order) error {
	if s.saveOrdErr != nil {
		return s.saveOrdErr
	}
	s.savedOrders = append(s.savedOrders, *o)
	return nil
}

// fakeSink records enqueued asset URLs.
type fakeSink struct {
	urls []string
}

func (s *fakeSink) Enqueue(urls []string) {
	s.urls = append(s.urls, urls...)
}

func flexTime(t time.Time) remote.FlexTime { return remote.FlexTime{Time: t} }

func taxRecord(code string, updated time.Time) remote.TaxRecord {
	rate := 0.1
	return remote.TaxRecord{
		Code:      remote.FlexString(code),
		Name:      remote.FlexString("tax " + code),
		Rate:      &rate,
		UpdatedAt: flexTime(updated),
	}
}

func productRecord(ean string, updated time.Time) remote.ProductRecord {
	price := 2.5
	return remote.ProductRecord{
		EAN:       remote.FlexString(ean),
		Ref:       remote.FlexString("ref-" + ean),
		Title:     remote.FlexString("product " + ean),
		Price:     &price,
		UpdatedAt: flexTime(updated),
	}
}
