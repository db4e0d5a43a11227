package models

import "time"

// DeliveryCenter mirrors a remote delivery center. Natural key is Code.
type DeliveryCenter struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Code      string `gorm:"uniqueIndex;not null" json:"code"`
	Name      string `json:"name"`
	StoreCode string `gorm:"index" json:"store_code"`
	IsActive  bool   `gorm:"default:true" json:"is_active"`

	ServerUpdatedAt time.Time `json:"server_updated_at"`
	LastSyncedAt    time.Time `json:"last_synced_at"`
}

func (DeliveryCenter) TableName() string { return "delivery_centers" }
