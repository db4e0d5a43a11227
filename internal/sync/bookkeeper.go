package sync

import (
	"fmt"
	"time"

	"github.com/lunaretail/posync/internal/models"
)

// Bookkeeper tracks, per entity, when a pull was last requested and the last
// confirmed server-update time. Absent state means "never synced" and forces
// a full pull. Callers commit only after a pull applied completely.
type Bookkeeper struct {
	store BookkeeperStore
}

// NewBookkeeper creates a bookkeeper over the given store.
func NewBookkeeper(store BookkeeperStore) *Bookkeeper {
	return &Bookkeeper{store: store}
}

// Config returns the sync state for an entity, or nil when never synced.
func (b *Bookkeeper) Config(entity string) (*models.SyncState, error) {
	return b.store.SyncState(entity)
}

// Commit records a fully applied pull. Both timestamps are clamped so they
// never regress, whatever the caller observed.
func (b *Bookkeeper) Commit(entity string, requestTime, serverTime time.Time) error {
	st, err := b.store.SyncState(entity)
	if err != nil {
		return fmt.Errorf("bookkeeper: %w", err)
	}
	if st == nil {
		st = &models.SyncState{Entity: entity}
	}

	if requestTime.After(st.LastRequest) {
		st.LastRequest = requestTime
	}
	if serverTime.After(st.LastUpdated) {
		st.LastUpdated = serverTime
	}

	if err := b.store.SaveSyncState(st); err != nil {
		return fmt.Errorf("bookkeeper: failed to save state for %s: %w", entity, err)
	}
	return nil
}
