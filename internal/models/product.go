package models

import (
	"time"

	"gorm.io/datatypes"
)

// Product mirrors a remote catalog product. Natural key is EAN.
// Ref carries the secondary catalog code; a whole active set without it
// indicates a broken previous sync and forces a full re-pull.
type Product struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	EAN             string  `gorm:"uniqueIndex;not null" json:"ean"`
	Ref             string  `gorm:"index" json:"ref"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Unit            string  `json:"unit"`
	QuantityMeasure string  `json:"quantity_measure"`
	Price           float64 `json:"price"`
	TaxCode         string  `gorm:"index" json:"tax_code"`
	TaxRate         float64 `json:"tax_rate"`
	ImageURL        string  `json:"image_url"`
	LabelImageURL   string  `json:"label_image_url"`
	IsActive        bool    `gorm:"default:true;index" json:"is_active"`

	ServerUpdatedAt time.Time      `json:"server_updated_at"`
	LastSyncedAt    time.Time      `json:"last_synced_at"`
	RawData         datatypes.JSON `json:"raw_data"`
}

func (Product) TableName() string { return "products" }

// ImageURLs returns the distinct, non-empty image URLs referenced by the product.
func (p Product) ImageURLs() []string {
	urls := make([]string, 0, 2)
	if p.ImageURL != "" {
		urls = append(urls, p.ImageURL)
	}
	if p.LabelImageURL != "" && p.LabelImageURL != p.ImageURL {
		urls = append(urls, p.LabelImageURL)
	}
	return urls
}
