package remote

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/lunaretail/posync/internal/models"
)

// FlexString tolerates the remote service's loose typing: empty text fields
// may arrive as false or null, and numeric codes as numbers.
type FlexString string

func (fs *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*fs = FlexString(s)
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		// false stands in for an empty string
		if b {
			*fs = "true"
		} else {
			*fs = ""
		}
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*fs = FlexString(strconv.FormatFloat(n, 'f', -1, 64))
		return nil
	}

	if string(data) == "null" {
		*fs = ""
		return nil
	}

	return errors.New("FlexString: cannot unmarshal value")
}

func (fs FlexString) String() string { return string(fs) }

// FlexTime parses the timestamps the remote service emits, with or without
// a timezone designator. Zero when absent or unparseable.
type FlexTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (ft *FlexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		ft.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ft.Time = t.UTC()
			return nil
		}
	}
	ft.Time = time.Time{}
	return nil
}

// Query selects a slice of a remote collection.
type Query struct {
	Since   *time.Time // exclusive lower bound on server modification time
	Limit   int
	Offset  int
	StoreID string
}

func (q Query) variables() map[string]interface{} {
	vars := map[string]interface{}{
		"limit":  q.Limit,
		"offset": q.Offset,
	}
	if q.Since != nil {
		vars["timestamp"] = q.Since.UTC().Format(time.RFC3339)
	}
	if q.StoreID != "" {
		vars["store_id"] = q.StoreID
	}
	return vars
}

// page is the collection envelope every list query returns.
type page struct {
	Items  json.RawMessage `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// TaxRecord is the wire shape of a tax definition.
type TaxRecord struct {
	Code      FlexString `json:"code"`
	Name      FlexString `json:"name"`
	Rate      *float64   `json:"rate"`
	Active    *bool      `json:"is_active"`
	UpdatedAt FlexTime   `json:"updated_at"`
}

// ToModel converts the record, filling documented defaults for absent fields.
func (r TaxRecord) ToModel() models.Tax {
	rate := models.DefaultTaxRate
	if r.Rate != nil {
		rate = *r.Rate
	}
	return models.Tax{
		Code:            r.Code.String(),
		Name:            r.Name.String(),
		Rate:            rate,
		IsActive:        boolOrDefault(r.Active, true),
		ServerUpdatedAt: r.UpdatedAt.Time,
		LastSyncedAt:    time.Now().UTC(),
	}
}

// ProductRecord is the wire shape of a catalog product.
type ProductRecord struct {
	EAN             FlexString `json:"ean"`
	Ref             FlexString `json:"ref"`
	Title           FlexString `json:"title"`
	Description     FlexString `json:"description"`
	Unit            FlexString `json:"unit"`
	QuantityMeasure FlexString `json:"quantity_measure"`
	Price           *float64   `json:"price"`
	TaxCode         FlexString `json:"tax_code"`
	TaxRate         *float64   `json:"tax_rate"`
	ImageURL        FlexString `json:"image"`
	LabelImageURL   FlexString `json:"image_label"`
	Active          *bool      `json:"is_active"`
	UpdatedAt       FlexTime   `json:"updated_at"`
}

func (r ProductRecord) ToModel() models.Product {
	taxRate := models.DefaultTaxRate
	if r.TaxRate != nil {
		taxRate = *r.TaxRate
	}
	var price float64
	if r.Price != nil {
		price = *r.Price
	}
	raw, _ := json.Marshal(r)
	return models.Product{
		EAN:             r.EAN.String(),
		Ref:             r.Ref.String(),
		Title:           r.Title.String(),
		Description:     r.Description.String(),
		Unit:            r.Unit.String(),
		QuantityMeasure: r.QuantityMeasure.String(),
		Price:           price,
		TaxCode:         r.TaxCode.String(),
		TaxRate:         taxRate,
		ImageURL:        r.ImageURL.String(),
		LabelImageURL:   r.LabelImageURL.String(),
		IsActive:        boolOrDefault(r.Active, true),
		ServerUpdatedAt: r.UpdatedAt.Time,
		LastSyncedAt:    time.Now().UTC(),
		RawData:         raw,
	}
}

// StoreRecord is the wire shape of a retail store.
type StoreRecord struct {
	Code      FlexString `json:"code"`
	Name      FlexString `json:"name"`
	Address   FlexString `json:"address"`
	City      FlexString `json:"city"`
	Phone     FlexString `json:"phone"`
	Active    *bool      `json:"is_active"`
	UpdatedAt FlexTime   `json:"updated_at"`
}

func (r StoreRecord) ToModel() models.Store {
	return models.Store{
		Code:            r.Code.String(),
		Name:            r.Name.String(),
		Address:         r.Address.String(),
		City:            r.City.String(),
		Phone:           r.Phone.String(),
		IsActive:        boolOrDefault(r.Active, true),
		ServerUpdatedAt: r.UpdatedAt.Time,
		LastSyncedAt:    time.Now().UTC(),
	}
}

// UserRecord is the wire shape of an account.
type UserRecord struct {
	Email     FlexString `json:"email"`
	Name      FlexString `json:"name"`
	Role      FlexString `json:"role"`
	StoreCode FlexString `json:"store_code"`
	Active    *bool      `json:"is_active"`
	UpdatedAt FlexTime   `json:"updated_at"`
}

func (r UserRecord) ToModel() models.User {
	return models.User{
		Email:           r.Email.String(),
		Name:            r.Name.String(),
		Role:            r.Role.String(),
		StoreCode:       r.StoreCode.String(),
		IsActive:        boolOrDefault(r.Active, true),
		ServerUpdatedAt: r.UpdatedAt.Time,
		LastSyncedAt:    time.Now().UTC(),
	}
}

// DeliveryCenterRecord is the wire shape of a delivery center.
type DeliveryCenterRecord struct {
	Code      FlexString `json:"code"`
	Name      FlexString `json:"name"`
	StoreCode FlexString `json:"store_code"`
	Active    *bool      `json:"is_active"`
	UpdatedAt FlexTime   `json:"updated_at"`
}

func (r DeliveryCenterRecord) ToModel() models.DeliveryCenter {
	return models.DeliveryCenter{
		Code:            r.Code.String(),
		Name:            r.Name.String(),
		StoreCode:       r.StoreCode.String(),
		IsActive:        boolOrDefault(r.Active, true),
		ServerUpdatedAt: r.UpdatedAt.Time,
		LastSyncedAt:    time.Now().UTC(),
	}
}

// PurchaseOrderItemRecord is the wire shape of one snapshot line.
type PurchaseOrderItemRecord struct {
	ProductEAN      FlexString `json:"product_ean"`
	Title           FlexString `json:"title"`
	Description     FlexString `json:"description"`
	Unit            FlexString `json:"unit"`
	QuantityMeasure FlexString `json:"quantity_measure"`
	ImageURL        FlexString `json:"image"`
	Quantity        float64    `json:"quantity"`
	UnitPrice       float64    `json:"unit_price"`
	TaxRate         float64    `json:"tax_rate"`
	LineTotal       float64    `json:"line_total"`
}

// PurchaseOrderRecord is the wire shape of a purchase order, used both for
// pushing local orders and for pulling the server-authoritative copy.
type PurchaseOrderRecord struct {
	ID         string                    `json:"id"`
	StoreCode  FlexString                `json:"store_code"`
	UserEmail  FlexString                `json:"user_email"`
	StatusCode int                       `json:"status_code"`
	Subtotal   float64                   `json:"subtotal"`
	TaxTotal   float64                   `json:"tax_total"`
	FinalTotal float64                   `json:"final_total"`
	Items      []PurchaseOrderItemRecord `json:"items"`
	UpdatedAt  FlexTime                  `json:"updated_at"`
}

// NewPurchaseOrderRecord serializes a local purchase order and its immutable
// item snapshots for the create mutation.
func NewPurchaseOrderRecord(po models.PurchaseOrder) PurchaseOrderRecord {
	rec := PurchaseOrderRecord{
		ID:         po.ID,
		StoreCode:  FlexString(po.StoreCode),
		UserEmail:  FlexString(po.UserEmail),
		Subtotal:   po.Subtotal,
		TaxTotal:   po.TaxTotal,
		FinalTotal: po.FinalTotal,
	}
	for _, it := range po.Items {
		rec.Items = append(rec.Items, PurchaseOrderItemRecord{
			ProductEAN:      FlexString(it.ProductEAN),
			Title:           FlexString(it.Title),
			Description:     FlexString(it.Description),
			Unit:            FlexString(it.Unit),
			QuantityMeasure: FlexString(it.QuantityMeasure),
			ImageURL:        FlexString(it.ImageURL),
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			TaxRate:         it.TaxRate,
			LineTotal:       it.LineTotal,
		})
	}
	return rec
}

// OrderRecord is the wire shape of a server-side order derived from a
// completed purchase order.
type OrderRecord struct {
	ID                    string                    `json:"id"`
	SourcePurchaseOrderID FlexString                `json:"source_purchase_order_id"`
	StoreCode             FlexString                `json:"store_code"`
	Status                FlexString                `json:"status"`
	Subtotal              float64                   `json:"subtotal"`
	TaxTotal              float64                   `json:"tax_total"`
	FinalTotal            float64                   `json:"final_total"`
	Items                 []PurchaseOrderItemRecord `json:"items"`
	UpdatedAt             FlexTime                  `json:"updated_at"`
}

func (r OrderRecord) ToModel() models.Order {
	o := models.Order{
		ID:                    r.ID,
		SourcePurchaseOrderID: r.SourcePurchaseOrderID.String(),
		StoreCode:             r.StoreCode.String(),
		Status:                r.Status.String(),
		Subtotal:              r.Subtotal,
		TaxTotal:              r.TaxTotal,
		FinalTotal:            r.FinalTotal,
		ServerUpdatedAt:       r.UpdatedAt.Time,
	}
	for _, it := range r.Items {
		o.Items = append(o.Items, models.OrderItem{
			OrderID:         r.ID,
			ProductEAN:      it.ProductEAN.String(),
			Title:           it.Title.String(),
			Description:     it.Description.String(),
			Unit:            it.Unit.String(),
			QuantityMeasure: it.QuantityMeasure.String(),
			ImageURL:        it.ImageURL.String(),
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			TaxRate:         it.TaxRate,
			LineTotal:       it.LineTotal,
		})
	}
	return o
}

func boolOrDefault(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
