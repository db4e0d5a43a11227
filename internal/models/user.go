package models

import "time"

// User mirrors a remote account allowed to order from this client.
// Natural key is Email. Credentials stay server-side; the local row only
// carries what offline browsing and order attribution need.
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	StoreCode string `gorm:"index" json:"store_code"`
	IsActive  bool   `gorm:"default:true" json:"is_active"`

	ServerUpdatedAt time.Time `json:"server_updated_at"`
	LastSyncedAt    time.Time `json:"last_synced_at"`
}

func (User) TableName() string { return "users" }
