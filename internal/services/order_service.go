package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/dimispapa/bouldering-cyprus/internal/models"
	"github.com/dimispapa/bouldering-cyprus/internal/repositories"
)

// OrderService handles order queries and deletion.
type OrderService struct {
	orderRepo repositories.OrderRepository
}

// NewOrderService creates a new OrderService.
func NewOrderService(orderRepo repositories.OrderRepository) *OrderService {
	return &OrderService{orderRepo: orderRepo}
}

// GetAllOrders retrieves all orders.
func (s *OrderService) GetAllOrders() ([]models.Order, error) {
	return s.orderRepo.GetAll()
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(id string) (*models.Order, error) {
	return s.orderRepo.GetByID(id)
}

// DeleteOrder removes an order after releasing its reserved stock back to
// the products. If stock cannot be released the deletion fails closed:
// losing an order row is recoverable, silently losing inventory is not.
func (s *OrderService) DeleteOrder(id string) error {
	if err := s.orderRepo.Delete(id); err != nil {
		if errors.Is(err, repositories.ErrStockRelease) {
			log.Printf("Aborted deletion of order %s: %v", id, err)
			return fmt.Errorf("order %s not deleted, stock release failed: %w", id, err)
		}
		return err
	}
	log.Printf("Deleted order %s and released its stock", id)
	return nil
}
