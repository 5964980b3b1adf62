package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dimispapa/bouldering-cyprus/internal/cart"
	"github.com/dimispapa/bouldering-cyprus/internal/models"
	"github.com/dimispapa/bouldering-cyprus/internal/repositories"
)

// AvailabilityService checks cart lines against live inventory: stock
// counts for products, confirmed booking overlaps for rentals.
type AvailabilityService struct {
	productRepo  repositories.ProductRepository
	crashpadRepo repositories.CrashpadRepository
	bookingRepo  repositories.BookingRepository
	now          func() time.Time
}

// NewAvailabilityService creates a new AvailabilityService.
func NewAvailabilityService(productRepo repositories.ProductRepository, crashpadRepo repositories.CrashpadRepository, bookingRepo repositories.BookingRepository) *AvailabilityService {
	return &AvailabilityService{
		productRepo:  productRepo,
		crashpadRepo: crashpadRepo,
		bookingRepo:  bookingRepo,
		now:          time.Now,
	}
}

// ValidateCart walks the cart in line order and returns the first problem
// found as a *CartValidationError, or nil when every line is satisfiable.
func (s *AvailabilityService) ValidateCart(c *cart.Cart) error {
	for _, li := range c.Items() {
		switch li.Kind {
		case cart.KindProduct:
			if err := s.validateProductLine(li); err != nil {
				return err
			}
		case cart.KindRental:
			if err := s.validateRentalLine(li); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *AvailabilityService) validateProductLine(li *cart.LineItem) error {
	product, err := s.productRepo.GetByID(li.ItemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// A product deleted since it was added reads as zero stock.
		return &CartValidationError{
			Reason:    InsufficientStock,
			ItemKind:  cart.KindProduct,
			ItemID:    li.ItemID,
			Requested: li.Quantity,
			Available: 0,
		}
	}
	if err != nil {
		return fmt.Errorf("failed to check stock for product %s: %w", li.ItemID, err)
	}
	if !product.HasStock(li.Quantity) {
		return &CartValidationError{
			Reason:    InsufficientStock,
			ItemKind:  cart.KindProduct,
			ItemID:    product.ID,
			ItemName:  product.Name,
			Requested: li.Quantity,
			Available: product.Stock,
		}
	}
	return nil
}

func (s *AvailabilityService) validateRentalLine(li *cart.LineItem) error {
	pad, err := s.crashpadRepo.GetByID(li.ItemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// A crashpad deleted since it was added reads as unavailable.
		return &CartValidationError{
			Reason:   DatesUnavailable,
			ItemKind: cart.KindRental,
			ItemID:   li.ItemID,
			CheckIn:  li.CheckIn,
			CheckOut: li.CheckOut,
		}
	}
	if err != nil {
		return fmt.Errorf("failed to look up crashpad %s: %w", li.ItemID, err)
	}
	today := cart.NormalizeDate(s.now())
	if li.CheckIn.Before(today) {
		return &CartValidationError{
			Reason:   DatesInPast,
			ItemKind: cart.KindRental,
			ItemID:   pad.ID,
			ItemName: pad.Name,
			CheckIn:  li.CheckIn,
			CheckOut: li.CheckOut,
		}
	}
	conflict, err := s.bookingRepo.HasConflict(pad.ID, li.CheckIn, li.CheckOut)
	if err != nil {
		return fmt.Errorf("failed to check availability for crashpad %s: %w", pad.ID, err)
	}
	if conflict {
		return &CartValidationError{
			Reason:   DatesUnavailable,
			ItemKind: cart.KindRental,
			ItemID:   pad.ID,
			ItemName: pad.Name,
			CheckIn:  li.CheckIn,
			CheckOut: li.CheckOut,
		}
	}
	return nil
}

// AvailableCrashpads returns the crashpads free over the given stay,
// filtering the catalog with one batch conflict query rather than one
// query per pad.
func (s *AvailabilityService) AvailableCrashpads(checkIn, checkOut time.Time) ([]models.Crashpad, error) {
	checkIn = cart.NormalizeDate(checkIn)
	checkOut = cart.NormalizeDate(checkOut)
	if !checkOut.After(checkIn) {
		return nil, fmt.Errorf("check-out date must be after check-in date")
	}
	if checkIn.Before(cart.NormalizeDate(s.now())) {
		return nil, fmt.Errorf("check-in date cannot be in the past")
	}

	unavailable, err := s.bookingRepo.UnavailableCrashpadIDs(checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	booked := make(map[string]struct{}, len(unavailable))
	for _, id := range unavailable {
		booked[id] = struct{}{}
	}

	pads, err := s.crashpadRepo.GetAll()
	if err != nil {
		return nil, err
	}
	available := make([]models.Crashpad, 0, len(pads))
	for _, pad := range pads {
		if _, taken := booked[pad.ID]; !taken {
			available = append(available, pad)
		}
	}
	return available, nil
}
