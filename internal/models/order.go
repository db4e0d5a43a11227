package models

import "time"

// Order derives 1:1 from a PurchaseOrder that reached completed. The server
// may rewrite it wholesale during reconciliation (substitutions, quantity and
// price changes), so it can diverge from its source purchase order.
type Order struct {
	ID                    string `gorm:"primaryKey" json:"id"`
	SourcePurchaseOrderID string `gorm:"index" json:"source_purchase_order_id"`
	StoreCode             string `gorm:"index" json:"store_code"`
	Status                string `json:"status"`

	Subtotal   float64 `json:"subtotal"`
	TaxTotal   float64 `json:"tax_total"`
	FinalTotal float64 `json:"final_total"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`

	ServerUpdatedAt time.Time `json:"server_updated_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// OrderItem carries the same snapshot fields as a purchase order line.
type OrderItem struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	OrderID         string  `gorm:"index;not null" json:"order_id"`
	ProductEAN      string  `gorm:"index" json:"product_ean"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Unit            string  `json:"unit"`
	QuantityMeasure string  `json:"quantity_measure"`
	ImageURL        string  `json:"image_url"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	TaxRate         float64 `json:"tax_rate"`
	LineTotal       float64 `json:"line_total"`
}

func (OrderItem) TableName() string { return "order_items" }
