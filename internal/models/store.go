package models

import "time"

// Store mirrors a remote retail store. Natural key is Code.
type Store struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Code     string `gorm:"uniqueIndex;not null" json:"code"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Phone    string `json:"phone"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	ServerUpdatedAt time.Time `json:"server_updated_at"`
	LastSyncedAt    time.Time `json:"last_synced_at"`
}

func (Store) TableName() string { return "stores" }
