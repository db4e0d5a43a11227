package models

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// PurchaseOrderStatus defines the lifecycle of a locally created order.
type PurchaseOrderStatus string

const (
	PurchaseOrderUncommunicated PurchaseOrderStatus = "uncommunicated" // created, not yet acknowledged by the server
	PurchaseOrderProcessing     PurchaseOrderStatus = "processing"     // server has it, still open
	PurchaseOrderCompleted      PurchaseOrderStatus = "completed"      // closed; an Order row derives from it
)

// OrderOrigin records where a purchase order row came from. Rows imported
// during reconciliation must never be pushed back to the server.
type OrderOrigin string

const (
	OriginLocal  OrderOrigin = "local"
	OriginRemote OrderOrigin = "remote"
)

// PurchaseOrder is an order created on this client. The id is generated
// locally ({store-code}-{YYMMDDHHMMSS}-{3 alnum}) so offline creation never
// collides with the server sequence.
type PurchaseOrder struct {
	ID        string              `gorm:"primaryKey" json:"id"`
	StoreCode string              `gorm:"index;not null" json:"store_code"`
	UserEmail string              `gorm:"index" json:"user_email"`
	Status    PurchaseOrderStatus `gorm:"default:uncommunicated;index" json:"status"`
	Origin    OrderOrigin         `gorm:"default:local;index" json:"origin"`

	Subtotal   float64 `json:"subtotal"`
	TaxTotal   float64 `json:"tax_total"`
	FinalTotal float64 `json:"final_total"`

	// Null until the push succeeds or the server confirms the id already exists.
	ServerSentAt *time.Time `gorm:"index" json:"server_sent_at"`

	Items []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE" json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PurchaseOrder) TableName() string { return "purchase_orders" }

// PurchaseOrderItem is an immutable snapshot of the referenced product at
// order time. Later catalog mutation or deactivation never touches it.
type PurchaseOrderItem struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	PurchaseOrderID string  `gorm:"index;not null" json:"purchase_order_id"`
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

func (PurchaseOrderItem) TableName() string { return "purchase_order_items" }

const idSuffixCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewPurchaseOrderID builds the composite order id for a store at a given time.
func NewPurchaseOrderID(storeCode string, t time.Time) string {
	suffix := make([]byte, 3)
	for i := range suffix {
		suffix[i] = idSuffixCharset[rand.IntN(len(idSuffixCharset))]
	}
	return fmt.Sprintf("%s-%s-%s", storeCode, t.Format("060102150405"), suffix)
}
