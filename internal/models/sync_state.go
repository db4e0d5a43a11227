package models

import "time"

// SyncState is the per-entity bookkeeping record behind incremental pulls.
// LastRequest is the client clock when a pull was issued; LastUpdated is the
// max server-modification time confirmed by the last fully applied pull.
// Both only ever move forward, and LastUpdated moves only when a pull batch
// applied completely.
type SyncState struct {
	Entity      string    `gorm:"primaryKey" json:"entity"`
	LastRequest time.Time `json:"last_request"`
	LastUpdated time.Time `json:"last_updated"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (SyncState) TableName() string { return "sync_states" }
