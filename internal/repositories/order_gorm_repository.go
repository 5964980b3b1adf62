package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dimispapa/bouldering-cyprus/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository. The
// unique index on stripe_piid is the only coordination primitive between
// the two checkout triggers; there is no application-level locking.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
// The gorm.DB must be opened with TranslateError enabled so unique
// constraint violations surface as gorm.ErrDuplicatedKey.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// GetAll retrieves all orders, newest first, with their children.
func (r *GORMOrderRepository) GetAll() ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Items").Preload("Bookings").
		Order("created_at DESC").Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// GetByID retrieves a single order with its children.
func (r *GORMOrderRepository) GetByID(id string) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Items").Preload("Bookings").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// FindByPaymentRef looks up an order by its payment reference, returning
// (nil, nil) when none exists yet.
func (r *GORMOrderRepository) FindByPaymentRef(piid string) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Items").Preload("Bookings").
		First(&order, "stripe_piid = ?", piid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order by payment reference %s: %w", piid, err)
	}
	return &order, nil
}

// Create inserts the order row, its line items and bookings, and
// decrements product stock, all inside one transaction. Each decrement is
// guarded so stock never goes negative, even under concurrent orders for
// the same product.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}
	for i := range order.Bookings {
		if order.Bookings[i].ID == "" {
			order.Bookings[i].ID = uuid.New().String()
		}
		order.Bookings[i].OrderID = order.ID
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		for _, item := range order.Items {
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
			if res.Error != nil {
				return fmt.Errorf("failed to decrement stock for product %s: %w", item.ProductID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("product %s: %w", item.ProductID, ErrStockConflict)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("payment reference %s: %w", order.StripePIID, ErrDuplicatePaymentRef)
		}
		if errors.Is(err, ErrStockConflict) {
			return err
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// Delete releases stock for every product line, then removes the order and
// its children. Any restock failure rolls the whole deletion back.
func (r *GORMOrderRepository) Delete(id string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Preload("Items").Preload("Bookings").First(&order, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order with ID %s not found for deletion", id)
			}
			return fmt.Errorf("failed to load order %s for deletion: %w", id, err)
		}
		for _, item := range order.Items {
			res := tx.Model(&models.Product{}).
				Where("id = ?", item.ProductID).
				UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity))
			if res.Error != nil {
				return fmt.Errorf("product %s: %w: %v", item.ProductID, ErrStockRelease, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("product %s no longer exists: %w", item.ProductID, ErrStockRelease)
			}
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete order items for order %s: %w", id, err)
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.CrashpadBooking{}).Error; err != nil {
			return fmt.Errorf("failed to delete bookings for order %s: %w", id, err)
		}
		if err := tx.Delete(&models.Order{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete order %s: %w", id, err)
		}
		return nil
	})
	return err
}
