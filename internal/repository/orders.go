package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lunaretail/posync/internal/models"
)

// CreatePurchaseOrder stores a new local order with its item snapshots in a
// single transaction.
func (r *Repository) CreatePurchaseOrder(po *models.PurchaseOrder) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(po).Error
	})
}

// PurchaseOrder loads an order with its items, or nil when absent.
func (r *Repository) PurchaseOrder(id string) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := r.db.Preload("Items").First(&po, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// PendingPurchaseOrders returns orders the server has not acknowledged,
// excluding remote-imported rows younger than the grace window. The window
// is a best-effort provenance guard, not an exact check.
func (r *Repository) PendingPurchaseOrders(grace time.Duration) ([]models.PurchaseOrder, error) {
	cutoff := touchNow().Add(-grace)

	var orders []models.PurchaseOrder
	err := r.db.Preload("Items").
		Where("server_sent_at IS NULL").
		Where("NOT (origin = ? AND created_at > ?)", models.OriginRemote, cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending orders: %w", err)
	}
	return orders, nil
}

// MarkPurchaseOrderSent records server acknowledgment. An uncommunicated
// order moves to processing at the same time.
func (r *Repository) MarkPurchaseOrderSent(id string, at time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PurchaseOrder{}).
			Where("id = ?", id).
			Update("server_sent_at", at)
		if res.Error != nil {
			return res.Error
		}
		return tx.Model(&models.PurchaseOrder{}).
			Where("id = ? AND status = ?", id, models.PurchaseOrderUncommunicated).
			Update("status", models.PurchaseOrderProcessing).Error
	})
}

// CompletePurchaseOrder transitions an order to completed and derives its
// Order row, copying the snapshot lines. Both writes commit atomically.
func (r *Repository) CompletePurchaseOrder(id string) (*models.Order, error) {
	po, err := r.PurchaseOrder(id)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, fmt.Errorf("purchase order %s not found", id)
	}

	order := &models.Order{
		ID:                    po.ID,
		SourcePurchaseOrderID: po.ID,
		StoreCode:             po.StoreCode,
		Status:                string(models.PurchaseOrderCompleted),
		Subtotal:              po.Subtotal,
		TaxTotal:              po.TaxTotal,
		FinalTotal:            po.FinalTotal,
	}
	for _, it := range po.Items {
		order.Items = append(order.Items, models.OrderItem{
			OrderID:         po.ID,
			ProductEAN:      it.ProductEAN,
			Title:           it.Title,
			Description:     it.Description,
			Unit:            it.Unit,
			QuantityMeasure: it.QuantityMeasure,
			ImageURL:        it.ImageURL,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			TaxRate:         it.TaxRate,
			LineTotal:       it.LineTotal,
		})
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PurchaseOrder{}).
			Where("id = ?", id).
			Update("status", models.PurchaseOrderCompleted).Error; err != nil {
			return err
		}
		return tx.Create(order).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete order %s: %w", id, err)
	}
	return order, nil
}

// SavePurchaseOrderFromRemote applies the server-authoritative copy: status,
// totals and item lines are overwritten (clear-then-reinsert) when a local
// row exists, or the row is inserted fresh. Remote always wins.
func (r *Repository) SavePurchaseOrderFromRemote(po *models.PurchaseOrder) error {
	po.Origin = models.OriginRemote
	if po.ServerSentAt == nil {
		now := touchNow()
		po.ServerSentAt = &now
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.PurchaseOrder
		err := tx.First(&existing, "id = ?", po.ID).Error
		switch err {
		case gorm.ErrRecordNotFound:
			return tx.Create(po).Error
		case nil:
		default:
			return err
		}

		if err := tx.Model(&models.PurchaseOrder{}).Where("id = ?", po.ID).Updates(map[string]interface{}{
			"status":         po.Status,
			"subtotal":       po.Subtotal,
			"tax_total":      po.TaxTotal,
			"final_total":    po.FinalTotal,
			"server_sent_at": po.ServerSentAt,
		}).Error; err != nil {
			return err
		}

		if err := tx.Where("purchase_order_id = ?", po.ID).Delete(&models.PurchaseOrderItem{}).Error; err != nil {
			return err
		}
		for i := range po.Items {
			po.Items[i].ID = 0
			po.Items[i].PurchaseOrderID = po.ID
		}
		if len(po.Items) > 0 {
			return tx.Create(&po.Items).Error
		}
		return nil
	})
}

// SaveOrderFromRemote overwrites or inserts a server-side order wholesale.
func (r *Repository) SaveOrderFromRemote(o *models.Order) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Order
		err := tx.First(&existing, "id = ?", o.ID).Error
		switch err {
		case gorm.ErrRecordNotFound:
			return tx.Create(o).Error
		case nil:
		default:
			return err
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", o.ID).Updates(map[string]interface{}{
			"source_purchase_order_id": o.SourcePurchaseOrderID,
			"store_code":               o.StoreCode,
			"status":                   o.Status,
			"subtotal":                 o.Subtotal,
			"tax_total":                o.TaxTotal,
			"final_total":              o.FinalTotal,
			"server_updated_at":        o.ServerUpdatedAt,
		}).Error; err != nil {
			return err
		}

		if err := tx.Where("order_id = ?", o.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		for i := range o.Items {
			o.Items[i].ID = 0
			o.Items[i].OrderID = o.ID
		}
		if len(o.Items) > 0 {
			return tx.Create(&o.Items).Error
		}
		return nil
	})
}

// Order loads one order with items, or nil when absent.
func (r *Repository) Order(id string) (*models.Order, error) {
	var o models.Order
	err := r.db.Preload("Items").First(&o, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
