package repositories

import (
	"errors"

	"github.com/dimispapa/bouldering-cyprus/internal/models"
)

// ErrDuplicatePaymentRef is returned by Create when another order already
// holds the same payment reference. It signals a lost creation race, not a
// failure: the caller re-reads the winner's row.
var ErrDuplicatePaymentRef = errors.New("order with this payment reference already exists")

// ErrStockConflict is returned when a guarded stock decrement finds less
// stock than the order requires. The transaction is rolled back whole.
var ErrStockConflict = errors.New("insufficient stock at order creation")

// ErrStockRelease is returned when restoring stock during order deletion
// fails. The deletion is aborted rather than silently losing inventory.
var ErrStockRelease = errors.New("failed to release stock")

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
	// FindByPaymentRef returns (nil, nil) when no order exists for the
	// given payment reference.
	FindByPaymentRef(piid string) (*models.Order, error)
	// Create persists the order, its line items and bookings, and
	// decrements product stock, all in one atomic transaction.
	Create(order *models.Order) error
	// Delete releases reserved stock back to the products and removes
	// the order and its children. Restock failure aborts the deletion.
	Delete(id string) error
}
