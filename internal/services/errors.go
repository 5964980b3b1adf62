package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/dimispapa/bouldering-cyprus/internal/cart"
)

// Checkout failures that abort reconciliation before anything is created.
var (
	// ErrInvalidCartState means the cart was empty at checkout.
	ErrInvalidCartState = errors.New("cart is empty")
	// ErrMissingCheckoutData means neither the session nor the gateway
	// metadata could supply a cart and customer details.
	ErrMissingCheckoutData = errors.New("no cart or order form data available")
	// ErrPaymentNotSucceeded means the gateway reports the intent in any
	// state other than succeeded.
	ErrPaymentNotSucceeded = errors.New("payment has not succeeded")
)

// GatewayError wraps a network or API failure while talking to the payment
// gateway.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ValidationReason tags the first structural problem found in a cart.
type ValidationReason string

const (
	InsufficientStock ValidationReason = "insufficient_stock"
	DatesUnavailable  ValidationReason = "dates_unavailable"
	DatesInPast       ValidationReason = "dates_in_past"
)

// CartValidationError reports the first invalid line item found. Validation
// stops at the first conflict: this is the single message the customer
// sees.
type CartValidationError struct {
	Reason    ValidationReason
	ItemKind  cart.ItemKind
	ItemID    string
	ItemName  string
	Requested int
	Available int
	CheckIn   time.Time
	CheckOut  time.Time
}

func (e *CartValidationError) Error() string {
	return fmt.Sprintf("cart validation failed: %s for %s %s", e.Reason, e.ItemKind, e.ItemID)
}

// Message is the customer-facing text for this validation failure.
func (e *CartValidationError) Message() string {
	switch e.Reason {
	case InsufficientStock:
		return fmt.Sprintf("Sorry, %s only has %d items in stock", e.ItemName, e.Available)
	case DatesUnavailable:
		return fmt.Sprintf("Sorry, %s is no longer available for the dates %s to %s",
			e.ItemName, e.CheckIn.Format(cart.DateLayout), e.CheckOut.Format(cart.DateLayout))
	case DatesInPast:
		return fmt.Sprintf("The selected dates %s to %s for %s are in the past",
			e.CheckIn.Format(cart.DateLayout), e.CheckOut.Format(cart.DateLayout), e.ItemName)
	default:
		return "An error occurred validating your cart."
	}
}
