package orders

import (
	"fmt"
	"math"
	"time"

	"github.com/lunaretail/posync/internal/models"
)

// Store is the repository slice the order service needs.
type Store interface {
	ProductByEAN(ean string) (*models.Product, error)
	CreatePurchaseOrder(po *models.PurchaseOrder) error
	PurchaseOrder(id string) (*models.PurchaseOrder, error)
	CompletePurchaseOrder(id string) (*models.Order, error)
}

// Line is one requested order position.
type Line struct {
	EAN      string  `json:"ean"`
	Quantity float64 `json:"quantity"`
}

// Service creates and completes purchase orders for one store. Creation is
// fully local: the order gets a client-generated id and item snapshots, and
// the push synchronizer uploads it whenever connectivity allows.
type Service struct {
	store     Store
	storeCode string
}

// NewService creates an order service bound to a store code.
func NewService(store Store, storeCode string) *Service {
	return &Service{store: store, storeCode: storeCode}
}

// Create builds a purchase order from the current catalog. Every line is
// snapshotted so later catalog changes never alter the order.
func (s *Service) Create(userEmail string, lines []Line) (*models.PurchaseOrder, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("order needs at least one line")
	}

	now := time.Now().UTC()
	po := &models.PurchaseOrder{
		ID:        models.NewPurchaseOrderID(s.storeCode, now),
		StoreCode: s.storeCode,
		UserEmail: userEmail,
		Status:    models.PurchaseOrderUncommunicated,
		Origin:    models.OriginLocal,
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("invalid quantity %v for %s", line.Quantity, line.EAN)
		}
		prod, err := s.store.ProductByEAN(line.EAN)
		if err != nil {
			return nil, fmt.Errorf("failed to look up product %s: %w", line.EAN, err)
		}
		if prod == nil {
			return nil, fmt.Errorf("unknown product %s", line.EAN)
		}
		if !prod.IsActive {
			return nil, fmt.Errorf("product %s is not available", line.EAN)
		}

		lineTotal := round2(line.Quantity * prod.Price)
		po.Items = append(po.Items, models.PurchaseOrderItem{
			PurchaseOrderID: po.ID,
			ProductEAN:      prod.EAN,
			Title:           prod.Title,
			Description:     prod.Description,
			Unit:            prod.Unit,
			QuantityMeasure: prod.QuantityMeasure,
			ImageURL:        prod.ImageURL,
			Quantity:        line.Quantity,
			UnitPrice:       prod.Price,
			TaxRate:         prod.TaxRate,
			LineTotal:       lineTotal,
		})
		po.Subtotal = round2(po.Subtotal + lineTotal)
		po.TaxTotal = round2(po.TaxTotal + lineTotal*prod.TaxRate)
	}
	po.FinalTotal = round2(po.Subtotal + po.TaxTotal)

	if err := s.store.CreatePurchaseOrder(po); err != nil {
		return nil, fmt.Errorf("failed to store order: %w", err)
	}
	return po, nil
}

// Get loads one purchase order, or nil when absent.
func (s *Service) Get(id string) (*models.PurchaseOrder, error) {
	return s.store.PurchaseOrder(id)
}

// Complete closes a purchase order and derives its Order row.
func (s *Service) Complete(id string) (*models.Order, error) {
	po, err := s.store.PurchaseOrder(id)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, fmt.Errorf("purchase order %s not found", id)
	}
	if po.Status == models.PurchaseOrderCompleted {
		return nil, fmt.Errorf("purchase order %s is already completed", id)
	}
	return s.store.CompletePurchaseOrder(id)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
