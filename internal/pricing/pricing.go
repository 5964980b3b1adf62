// Package pricing computes line, cart and order totals. Every amount is a
// decimal; floats never touch money.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dimispapa/bouldering-cyprus/internal/models"
)

var hundred = decimal.NewFromInt(100)

// InclusiveDays returns the number of rental days for a stay. Both boundary
// dates count: checking in and out on consecutive days is a two day rental.
func InclusiveDays(checkIn, checkOut time.Time) int {
	days := int(checkOut.Sub(checkIn).Hours()/24) + 1
	if days < 0 {
		return 0
	}
	return days
}

// DailyRate selects the tiered rate for a stay of the given inclusive
// length.
func DailyRate(pad *models.Crashpad, days int) decimal.Decimal {
	switch {
	case days >= 14:
		return pad.FourteenDayRate
	case days >= 7:
		return pad.SevenDayRate
	default:
		return pad.DayRate
	}
}

// RentalTotal is dailyRate x rentalDays. Rentals always have quantity one,
// so quantity does not participate.
func RentalTotal(dailyRate decimal.Decimal, rentalDays int) decimal.Decimal {
	return dailyRate.Mul(decimal.NewFromInt(int64(rentalDays)))
}

// ProductTotal is unitPrice x quantity.
func ProductTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Totals aggregates a cart's charges.
type Totals struct {
	CartTotal    decimal.Decimal `json:"cart_total"`
	DeliveryCost decimal.Decimal `json:"delivery_cost"`
	HandlingFee  decimal.Decimal `json:"handling_fee"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
}

// Engine applies the shop's delivery and handling rules. Thresholds and
// fees are fixed at construction.
type Engine struct {
	freeDeliveryThreshold decimal.Decimal
	deliveryPercentage    decimal.Decimal
	rentalHandlingFee     decimal.Decimal
}

func NewEngine(freeDeliveryThreshold, deliveryPercentage, rentalHandlingFee decimal.Decimal) *Engine {
	return &Engine{
		freeDeliveryThreshold: freeDeliveryThreshold,
		deliveryPercentage:    deliveryPercentage,
		rentalHandlingFee:     rentalHandlingFee,
	}
}

// DeliveryCost applies only to product lines: below the free delivery
// threshold it is a percentage of the product subtotal, above it zero.
// Rentals are handed over in person and never incur delivery.
func (e *Engine) DeliveryCost(productSubtotal decimal.Decimal, hasProducts bool) decimal.Decimal {
	if !hasProducts || productSubtotal.GreaterThanOrEqual(e.freeDeliveryThreshold) {
		return decimal.Zero
	}
	return productSubtotal.Mul(e.deliveryPercentage).Div(hundred).Round(2)
}

// HandlingFee is a flat charge applied once when the cart contains any
// rental, independent of how many.
func (e *Engine) HandlingFee(hasRentals bool) decimal.Decimal {
	if !hasRentals {
		return decimal.Zero
	}
	return e.rentalHandlingFee
}

// Totals computes the full charge breakdown from the cart subtotals.
func (e *Engine) Totals(productSubtotal, rentalSubtotal decimal.Decimal, hasProducts, hasRentals bool) Totals {
	cartTotal := productSubtotal.Add(rentalSubtotal)
	delivery := e.DeliveryCost(productSubtotal, hasProducts)
	handling := e.HandlingFee(hasRentals)
	return Totals{
		CartTotal:    cartTotal,
		DeliveryCost: delivery,
		HandlingFee:  handling,
		GrandTotal:   cartTotal.Add(delivery).Add(handling),
	}
}

// MinorUnits converts an amount to integer cents for the payment gateway.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Mul(hundred).IntPart()
}
