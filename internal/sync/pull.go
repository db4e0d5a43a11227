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

const (
	defaultPageSize  = 1000
	defaultBatchSize = 500
)

// PullOptions tunes the pull synchronizer.
type PullOptions struct {
	StoreCode string
	PageSize  int
	BatchSize int
}

// PullProgress is invoked once per entity, before that entity is pulled.
type PullProgress func(entity string, index, total int)

// PullSynchronizer mirrors the server's reference data into the local
// database. Each entity is pulled independently in dependency order; a
// failure on one entity does not stop the others.
type PullSynchronizer struct {
	api    RemoteAPI
	store  PullStore
	book   *Bookkeeper
	assets AssetSink
	opts   PullOptions
}

// NewPullSynchronizer wires a pull synchronizer. assets may be nil when no
// cache manager is running.
func NewPullSynchronizer(api RemoteAPI, store PullStore, book *Bookkeeper, assets AssetSink, opts PullOptions) *PullSynchronizer {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &PullSynchronizer{api: api, store: store, book: book, assets: assets, opts: opts}
}

// Sync pulls every reference entity in order. force skips the incremental
// path and replaces each table wholesale. Per-entity errors are collected
// and joined; successfully pulled entities still advance their bookkeeping.
func (p *PullSynchronizer) Sync(ctx context.Context, force bool, progress PullProgress) error {
	var errs []error
	for i, entity := range pullOrder {
		if progress != nil {
			progress(entity, i, len(pullOrder))
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := p.pullEntity(ctx, entity, force); err != nil {
			log.Printf("❌ Pull failed for %s: %v", entity, err)
			errs = append(errs, fmt.Errorf("%s: %w", entity, err))
		}
	}
	return errors.Join(errs...)
}

func (p *PullSynchronizer) pullEntity(ctx context.Context, entity string, force bool) error {
	switch entity {
	case EntityTaxes:
		return pullOne(ctx, p, entity, force,
			p.api.FetchTaxes, remote.TaxRecord.ToModel, taxUpdatedAt,
			p.store.ReplaceTaxes, p.store.UpsertTaxes, nil)
	case EntityProducts:
		return p.pullProducts(ctx, force)
	case EntityDeliveryCenters:
		return pullOne(ctx, p, entity, force,
			p.api.FetchDeliveryCenters, remote.DeliveryCenterRecord.ToModel, dcUpdatedAt,
			p.store.ReplaceDeliveryCenters, p.store.UpsertDeliveryCenters, nil)
	case EntityStores:
		return pullOne(ctx, p, entity, force,
			p.api.FetchStores, remote.StoreRecord.ToModel, storeUpdatedAt,
			p.store.ReplaceStores, p.store.UpsertStores, nil)
	case EntityUsers:
		return pullOne(ctx, p, entity, force,
			p.api.FetchUsers, remote.UserRecord.ToModel, userUpdatedAt,
			p.store.ReplaceUsers, p.store.UpsertUsers, nil)
	default:
		return fmt.Errorf("unknown entity %q", entity)
	}
}

// pullProducts adds the two product-specific behaviors on top of the common
// pull: the local-integrity check that forces a full resync, and feeding the
// asset cache with the image URLs of applied products.
func (p *PullSynchronizer) pullProducts(ctx context.Context, force bool) error {
	if !force {
		healthy, reason, err := p.productsHealthy()
		if err != nil {
			return err
		}
		if !healthy {
			log.Printf("⚠️ %v", &IntegrityError{Entity: EntityProducts, Reason: reason})
			force = true
		}
	}
	return pullOne(ctx, p, EntityProducts, force,
		p.api.FetchProducts, remote.ProductRecord.ToModel, productUpdatedAt,
		p.store.ReplaceProducts, p.store.UpsertProducts,
		func(rows []models.Product) {
			var urls []string
			for _, prod := range rows {
				urls = append(urls, prod.ImageURLs()...)
			}
			p.enqueueProductImages(urls)
		})
}

// productsHealthy validates the existing catalog before trusting an
// incremental pull. An empty or ref-less catalog means earlier data was lost
// or half-applied, so incremental timestamps cannot be trusted.
func (p *PullSynchronizer) productsHealthy() (bool, string, error) {
	st, err := p.book.Config(EntityProducts)
	if err != nil {
		return false, "", err
	}
	if st == nil {
		// first sync, nothing to validate
		return true, "", nil
	}

	active, err := p.store.CountActiveProducts()
	if err != nil {
		return false, "", err
	}
	if active == 0 {
		return false, "no active products despite previous sync", nil
	}
	withRef, err := p.store.CountActiveProductsWithRef()
	if err != nil {
		return false, "", err
	}
	if withRef == 0 {
		return false, "no active products carry a reference code", nil
	}
	return true, "", nil
}

func (p *PullSynchronizer) enqueueProductImages(urls []string) {
	if p.assets == nil || len(urls) == 0 {
		return
	}
	p.assets.Enqueue(urls)
}

// pullOne runs the shared pull pipeline for one entity: decide mode, page
// through the collection, convert, apply, and commit bookkeeping only when
// every fetched record was applied.
func pullOne[R any, M any](
	ctx context.Context,
	p *PullSynchronizer,
	entity string,
	force bool,
	fetch func(context.Context, remote.Query) ([]R, int, error),
	convert func(R) M,
	updatedAt func(R) time.Time,
	replace func([]M, int) (int, error),
	upsert func([]M, int) (int, error),
	sideEffect func(rows []M),
) error {
	requestTime := time.Now().UTC()

	st, err := p.book.Config(entity)
	if err != nil {
		return err
	}
	full := force || st == nil

	q := remote.Query{StoreID: p.opts.StoreCode}
	if !full {
		since := st.LastUpdated
		q.Since = &since
	}

	records, err := fetchAll(ctx, fetch, q, p.opts.PageSize)
	if err != nil {
		return err
	}

	rows := make([]M, 0, len(records))
	var serverTime time.Time
	for _, rec := range records {
		rows = append(rows, convert(rec))
		if t := updatedAt(rec); t.After(serverTime) {
			serverTime = t
		}
	}

	var applied int
	if full {
		applied, err = replace(rows, p.opts.BatchSize)
	} else {
		applied, err = upsert(rows, p.opts.BatchSize)
	}
	if err != nil {
		return err
	}
	if applied != len(records) {
		return &PartialApplyError{Entity: entity, Fetched: len(records), Applied: applied}
	}

	if sideEffect != nil {
		sideEffect(rows)
	}

	mode := "incremental"
	if full {
		mode = "full"
	}
	log.Printf("✅ Pulled %s (%s): %d records applied", entity, mode, applied)

	return p.book.Commit(entity, requestTime, serverTime)
}

// fetchAll pages through a remote collection until a short page or the
// reported total is reached.
func fetchAll[R any](ctx context.Context, fetch func(context.Context, remote.Query) ([]R, int, error), q remote.Query, pageSize int) ([]R, error) {
	var all []R
	offset := 0
	for {
		q.Limit = pageSize
		q.Offset = offset
		items, total, err := fetch(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < pageSize || len(all) >= total {
			return all, nil
		}
		offset += len(items)
	}
}

func taxUpdatedAt(r remote.TaxRecord) time.Time { return r.UpdatedAt.Time }

func productUpdatedAt(r remote.ProductRecord) time.Time { return r.UpdatedAt.Time }

func storeUpdatedAt(r remote.StoreRecord) time.Time { return r.UpdatedAt.Time }

func userUpdatedAt(r remote.UserRecord) time.Time { return r.UpdatedAt.Time }

func dcUpdatedAt(r remote.DeliveryCenterRecord) time.Time { return r.UpdatedAt.Time }
