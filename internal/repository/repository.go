package repository

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lunaretail/posync/internal/database"
	"github.com/lunaretail/posync/internal/models"
)

// Repository is the GORM-backed entity store shared by the synchronizers,
// the order service and the asset cache manager. It is the only component
// that touches the database directly.
type Repository struct {
	db         *database.DB
	generation string // active asset cache generation
}

// New creates a repository bound to the given asset cache generation.
func New(db *database.DB, assetGeneration string) *Repository {
	return &Repository{db: db, generation: assetGeneration}
}

// Migrate creates or updates every table the client owns.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Tax{},
		&models.Product{},
		&models.Store{},
		&models.User{},
		&models.DeliveryCenter{},
		&models.PurchaseOrder{},
		&models.PurchaseOrderItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.SyncState{},
		&models.CachedAsset{},
		&models.AssetQueueEntry{},
	)
}

// ---- sync bookkeeping ----

// SyncState returns the bookkeeping record for an entity, or nil when the
// entity has never been synced.
func (r *Repository) SyncState(entity string) (*models.SyncState, error) {
	var st models.SyncState
	err := r.db.First(&st, "entity = ?", entity).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state for %s: %w", entity, err)
	}
	return &st, nil
}

// SaveSyncState upserts a bookkeeping record.
func (r *Repository) SaveSyncState(st *models.SyncState) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity"}},
		UpdateAll: true,
	}).Create(st).Error
}

// ---- reference entities ----

// dedupeByKey collapses duplicate natural keys, last write wins. Returns the
// surviving rows and, per key, how many input rows it absorbed, so callers
// can count duplicates as applied.
func dedupeByKey[T any](key func(T) string, rows []T) ([]T, map[string]int) {
	seen := make(map[string]int, len(rows))
	counts := make(map[string]int, len(rows))
	deduped := make([]T, 0, len(rows))
	for _, row := range rows {
		k := key(row)
		counts[k]++
		if idx, ok := seen[k]; ok {
			deduped[idx] = row
			continue
		}
		seen[k] = len(deduped)
		deduped = append(deduped, row)
	}
	return deduped, counts
}

// replaceAll clears a table and bulk-inserts the fetched set in one
// transaction. Used for full pulls. Duplicate keys across pages collapse
// last-write-wins but still count as applied.
func replaceAll[T any](db *gorm.DB, key func(T) string, rows []T, batchSize int) (int, error) {
	deduped, _ := dedupeByKey(key, rows)

	var model T
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model).Error; err != nil {
			return err
		}
		if len(deduped) == 0 {
			return nil
		}
		return tx.CreateInBatches(deduped, batchSize).Error
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// upsertByKey applies rows in batches keyed on a natural-key column. When a
// whole batch fails it falls back to one-row-at-a-time insertion so a single
// malformed record cannot abort the sync and can be identified in the log.
func upsertByKey[T any](db *gorm.DB, keyColumn string, key func(T) string, rows []T, batchSize int) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	deduped, counts := dedupeByKey(key, rows)

	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: keyColumn}},
		UpdateAll: true,
	}

	applied := 0
	for start := 0; start < len(deduped); start += batchSize {
		end := start + batchSize
		if end > len(deduped) {
			end = len(deduped)
		}
		batch := deduped[start:end]

		if err := db.Clauses(onConflict).Create(&batch).Error; err == nil {
			for i := range batch {
				applied += counts[key(batch[i])]
			}
			continue
		}

		// Batch failed: retry row by row to isolate the bad record.
		for i := range batch {
			if err := db.Clauses(onConflict).Create(&batch[i]).Error; err != nil {
				log.Printf("⚠️  Failed to apply record %s=%s: %v", keyColumn, key(batch[i]), err)
				continue
			}
			applied += counts[key(batch[i])]
		}
	}
	return applied, nil
}

// ReplaceTaxes wipes and reloads the taxes table.
func (r *Repository) ReplaceTaxes(rows []models.Tax, batchSize int) (int, error) {
	return replaceAll(r.db.DB, func(t models.Tax) string { return t.Code }, rows, batchSize)
}

// UpsertTaxes applies an incremental batch keyed by code.
func (r *Repository) UpsertTaxes(rows []models.Tax, batchSize int) (int, error) {
	return upsertByKey(r.db.DB, "code", func(t models.Tax) string { return t.Code }, rows, batchSize)
}

// ReplaceProducts wipes and reloads the products table.
func (r *Repository) ReplaceProducts(rows []models.Product, batchSize int) (int, error) {
	return replaceAll(r.db.DB, func(p models.Product) string { return p.EAN }, rows, batchSize)
}

// UpsertProducts applies an incremental batch keyed by EAN.
func (r *Repository) UpsertProducts(rows []models.Product, batchSize int) (int, error) {
	return upsertByKey(r.db.DB, "ean", func(p models.Product) string { return p.EAN }, rows, batchSize)
}

// ReplaceStores wipes and reloads the stores table.
func (r *Repository) ReplaceStores(rows []models.Store, batchSize int) (int, error) {
	return replaceAll(r.db.DB, func(s models.Store) string { return s.Code }, rows, batchSize)
}

// UpsertStores applies an incremental batch keyed by code.
func (r *Repository) UpsertStores(rows []models.Store, batchSize int) (int, error) {
	return upsertByKey(r.db.DB, "code", func(s models.Store) string { return s.Code }, rows, batchSize)
}

// ReplaceUsers wipes and reloads the users table.
func (r *Repository) ReplaceUsers(rows []models.User, batchSize int) (int, error) {
	return replaceAll(r.db.DB, func(u models.User) string { return u.Email }, rows, batchSize)
}

// UpsertUsers applies an incremental batch keyed by email.
func (r *Repository) UpsertUsers(rows []models.User, batchSize int) (int, error) {
	return upsertByKey(r.db.DB, "email", func(u models.User) string { return u.Email }, rows, batchSize)
}

// ReplaceDeliveryCenters wipes and reloads the delivery centers table.
func (r *Repository) ReplaceDeliveryCenters(rows []models.DeliveryCenter, batchSize int) (int, error) {
	return replaceAll(r.db.DB, func(d models.DeliveryCenter) string { return d.Code }, rows, batchSize)
}

// UpsertDeliveryCenters applies an incremental batch keyed by code.
func (r *Repository) UpsertDeliveryCenters(rows []models.DeliveryCenter, batchSize int) (int, error) {
	return upsertByKey(r.db.DB, "code", func(d models.DeliveryCenter) string { return d.Code }, rows, batchSize)
}

// CountActiveProducts counts active catalog rows.
func (r *Repository) CountActiveProducts() (int64, error) {
	var n int64
	err := r.db.Model(&models.Product{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}

// CountActiveProductsWithRef counts active rows carrying the secondary
// catalog code. Zero across a non-empty active set means the previous sync
// was incomplete and a full pull is required.
func (r *Repository) CountActiveProductsWithRef() (int64, error) {
	var n int64
	err := r.db.Model(&models.Product{}).
		Where("is_active = ? AND ref <> ''", true).
		Count(&n).Error
	return n, err
}

// ProductByEAN loads one product by natural key, or nil when absent.
func (r *Repository) ProductByEAN(ean string) (*models.Product, error) {
	var p models.Product
	err := r.db.First(&p, "ean = ?", ean).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// touchNow is a seam for tests.
var touchNow = func() time.Time { return time.Now().UTC() }
