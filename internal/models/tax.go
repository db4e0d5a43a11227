package models

import "time"

// DefaultTaxRate is applied when the remote service omits the rate field.
const DefaultTaxRate = 0.21

// Tax mirrors a remote tax definition. Natural key is Code.
type Tax struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Code     string  `gorm:"uniqueIndex;not null" json:"code"`
	Name     string  `json:"name"`
	Rate     float64 `json:"rate"`
	IsActive bool    `gorm:"default:true" json:"is_active"`

	ServerUpdatedAt time.Time `json:"server_updated_at"`
	LastSyncedAt    time.Time `json:"last_synced_at"`
}

func (Tax) TableName() string { return "taxes" }
