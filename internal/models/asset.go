package models

import "time"

// CachedAsset is one downloaded binary, keyed by URL within a cache
// generation. Bumping the generation string invalidates everything from
// previous generations; they are garbage-collected on startup.
type CachedAsset struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	URL         string    `gorm:"uniqueIndex:idx_asset_url_gen;not null" json:"url"`
	Generation  string    `gorm:"uniqueIndex:idx_asset_url_gen;index;not null" json:"generation"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	Data        []byte    `gorm:"type:bytea" json:"-"`
	FetchedAt   time.Time `json:"fetched_at"`
}

func (CachedAsset) TableName() string { return "cached_assets" }

// AssetQueueEntry is one pending download. The queue is durable so that a
// suspended or restarted worker loses nothing; in-flight batch state is
// simply re-derived from what is not yet cached.
type AssetQueueEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	URL        string    `gorm:"uniqueIndex;not null" json:"url"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempts   int       `gorm:"default:0" json:"attempts"`
	LastError  string    `json:"last_error"`
}

func (AssetQueueEntry) TableName() string { return "asset_queue" }
