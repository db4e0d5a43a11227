package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lunaretail/posync/internal/models"
)

// Downloads that failed this often are dropped from the queue so they stop
// blocking the head of the FIFO.
const maxAssetAttempts = 5

// EnqueueAssets adds URLs to the durable download queue, skipping anything
// already cached in the current generation or already queued. Returns how
// many entries were actually added.
func (r *Repository) EnqueueAssets(urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	var cached []string
	if err := r.db.Model(&models.CachedAsset{}).
		Where("generation = ? AND url IN ?", r.generation, urls).
		Pluck("url", &cached).Error; err != nil {
		return 0, fmt.Errorf("failed to check cached assets: %w", err)
	}

	cachedSet := make(map[string]bool, len(cached))
	for _, u := range cached {
		cachedSet[u] = true
	}

	entries := make([]models.AssetQueueEntry, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if u == "" || cachedSet[u] || seen[u] {
			continue
		}
		seen[u] = true
		entries = append(entries, models.AssetQueueEntry{URL: u, EnqueuedAt: touchNow()})
	}
	if len(entries) == 0 {
		return 0, nil
	}

	// Already-queued URLs are ignored by the unique index.
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoNothing: true,
	}).Create(&entries)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to enqueue assets: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// NextAssetBatch returns up to n queued downloads, oldest first. Entries that
// failed before sort behind fresh ones so one bad URL cannot wedge the queue.
func (r *Repository) NextAssetBatch(n int) ([]models.AssetQueueEntry, error) {
	var entries []models.AssetQueueEntry
	err := r.db.Order("attempts ASC, id ASC").Limit(n).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// IsAssetCached reports whether a URL is present in the current generation.
func (r *Repository) IsAssetCached(url string) (bool, error) {
	var n int64
	err := r.db.Model(&models.CachedAsset{}).
		Where("generation = ? AND url = ?", r.generation, url).
		Count(&n).Error
	return n > 0, err
}

// StoreAsset persists a downloaded binary and removes its queue entry in one
// transaction.
func (r *Repository) StoreAsset(url, contentType string, data []byte) error {
	asset := models.CachedAsset{
		URL:         url,
		Generation:  r.generation,
		ContentType: contentType,
		Size:        len(data),
		Data:        data,
		FetchedAt:   touchNow(),
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}, {Name: "generation"}},
			UpdateAll: true,
		}).Create(&asset).Error; err != nil {
			return err
		}
		return tx.Where("url = ?", url).Delete(&models.AssetQueueEntry{}).Error
	})
}

// DequeueAsset drops a queue entry without storing anything (cache hit).
func (r *Repository) DequeueAsset(url string) error {
	return r.db.Where("url = ?", url).Delete(&models.AssetQueueEntry{}).Error
}

// AssetFailed bumps the attempt counter and drops entries that exhausted
// their attempts.
func (r *Repository) AssetFailed(url, reason string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AssetQueueEntry{}).
			Where("url = ?", url).
			Updates(map[string]interface{}{
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": reason,
			}).Error; err != nil {
			return err
		}
		return tx.Where("url = ? AND attempts >= ?", url, maxAssetAttempts).
			Delete(&models.AssetQueueEntry{}).Error
	})
}

// CachedAssetCount counts entries in the current generation.
func (r *Repository) CachedAssetCount() (int64, error) {
	var n int64
	err := r.db.Model(&models.CachedAsset{}).Where("generation = ?", r.generation).Count(&n).Error
	return n, err
}

// AssetQueueLength counts pending downloads.
func (r *Repository) AssetQueueLength() (int64, error) {
	var n int64
	err := r.db.Model(&models.AssetQueueEntry{}).Count(&n).Error
	return n, err
}

// CachedAsset loads one cached binary from the current generation, or nil.
func (r *Repository) CachedAsset(url string) (*models.CachedAsset, error) {
	var a models.CachedAsset
	err := r.db.First(&a, "generation = ? AND url = ?", r.generation, url).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ClearAssetCache deletes the whole current generation and resets the queue.
func (r *Repository) ClearAssetCache() error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("generation = ?", r.generation).Delete(&models.CachedAsset{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.AssetQueueEntry{}).Error
	})
}

// PruneAssetGenerations garbage-collects every entry outside the current
// generation. Called once on startup after a version bump.
func (r *Repository) PruneAssetGenerations() (int64, error) {
	res := r.db.Where("generation <> ?", r.generation).Delete(&models.CachedAsset{})
	return res.RowsAffected, res.Error
}
