// Package cart implements the shopping cart: an ordered collection of
// product and rental line items keyed by (kind, id), living in
// caller-supplied storage for the duration of a checkout attempt.
package cart

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dimispapa/bouldering-cyprus/internal/models"
	"github.com/dimispapa/bouldering-cyprus/internal/pricing"
)

// ItemKind discriminates the two line item variants.
type ItemKind string

const (
	KindProduct ItemKind = "product"
	KindRental  ItemKind = "rental"
)

// DateLayout is the wire format for rental dates.
const DateLayout = "2006-01-02"

// LineItem is a tagged union: a product line (ItemID, Quantity, UnitPrice)
// or a rental line (ItemID, CheckIn, CheckOut, DailyRate, RentalDays, with
// Quantity pinned to 1). Kind selects the variant.
type LineItem struct {
	Kind       ItemKind        `json:"kind"`
	ItemID     string          `json:"item_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	CheckIn    time.Time       `json:"check_in,omitempty"`
	CheckOut   time.Time       `json:"check_out,omitempty"`
	DailyRate  decimal.Decimal `json:"daily_rate"`
	RentalDays int             `json:"rental_days,omitempty"`
}

// Key identifies a line item within the cart.
func (li *LineItem) Key() string {
	return string(li.Kind) + "_" + li.ItemID
}

// Total returns the frozen line total: price x quantity for products,
// daily rate x rental days for rentals.
func (li *LineItem) Total() decimal.Decimal {
	if li.Kind == KindRental {
		return pricing.RentalTotal(li.DailyRate, li.RentalDays)
	}
	return pricing.ProductTotal(li.UnitPrice, li.Quantity)
}

// Cart is an ordered mapping of key to line item. Items keep their
// insertion order, which also fixes the order validation errors are
// reported in.
type Cart struct {
	items []*LineItem
}

func New() *Cart {
	return &Cart{}
}

// Get returns the line item for the given kind and id, or nil.
func (c *Cart) Get(kind ItemKind, itemID string) *LineItem {
	for _, li := range c.items {
		if li.Kind == kind && li.ItemID == itemID {
			return li
		}
	}
	return nil
}

// AddProduct adds a product line or adjusts an existing one. The unit price
// is frozen on first add. When update is true the quantity is set rather
// than incremented; setting it to zero removes the line. Returns the
// resulting quantity.
func (c *Cart) AddProduct(p *models.Product, quantity int, update bool) int {
	li := c.Get(KindProduct, p.ID)
	if li == nil {
		li = &LineItem{Kind: KindProduct, ItemID: p.ID, UnitPrice: p.Price}
		c.items = append(c.items, li)
	}
	if update {
		li.Quantity = quantity
	} else {
		li.Quantity += quantity
	}
	if li.Quantity <= 0 {
		c.Remove(KindProduct, p.ID)
		return 0
	}
	return li.Quantity
}

// AddRental adds a rental line for the pad over the given stay. The first
// add fixes the dates, the inclusive day count and the tier-selected daily
// rate; re-adding the same pad only touches the quantity, which is clamped
// to exactly one. Changing dates requires removing the line and adding it
// again.
func (c *Cart) AddRental(pad *models.Crashpad, checkIn, checkOut time.Time, quantity int) int {
	checkIn = NormalizeDate(checkIn)
	checkOut = NormalizeDate(checkOut)
	li := c.Get(KindRental, pad.ID)
	if li == nil {
		days := pricing.InclusiveDays(checkIn, checkOut)
		li = &LineItem{
			Kind:       KindRental,
			ItemID:     pad.ID,
			CheckIn:    checkIn,
			CheckOut:   checkOut,
			RentalDays: days,
			DailyRate:  pricing.DailyRate(pad, days),
		}
		c.items = append(c.items, li)
	}
	if quantity != 1 {
		log.Printf("rental quantity %d for crashpad %s clamped to 1", quantity, pad.ID)
	}
	li.Quantity = 1
	return li.Quantity
}

// Remove deletes a line item. Removing an absent key is a no-op.
func (c *Cart) Remove(kind ItemKind, itemID string) {
	for i, li := range c.items {
		if li.Kind == kind && li.ItemID == itemID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Items returns the line items in insertion order.
func (c *Cart) Items() []*LineItem {
	return c.items
}

// ItemCount is the total number of physical items: product quantities
// summed plus one per rental.
func (c *Cart) ItemCount() int {
	count := 0
	for _, li := range c.items {
		count += li.Quantity
	}
	return count
}

// ProductSubtotal sums the product line totals.
func (c *Cart) ProductSubtotal() decimal.Decimal {
	total := decimal.Zero
	for _, li := range c.items {
		if li.Kind == KindProduct {
			total = total.Add(li.Total())
		}
	}
	return total
}

// RentalSubtotal sums the rental line totals.
func (c *Cart) RentalSubtotal() decimal.Decimal {
	total := decimal.Zero
	for _, li := range c.items {
		if li.Kind == KindRental {
			total = total.Add(li.Total())
		}
	}
	return total
}

// Total is the sum of all line totals, before delivery and handling.
func (c *Cart) Total() decimal.Decimal {
	return c.ProductSubtotal().Add(c.RentalSubtotal())
}

// Totals runs the cart through the pricing engine.
func (c *Cart) Totals(engine *pricing.Engine) pricing.Totals {
	return engine.Totals(c.ProductSubtotal(), c.RentalSubtotal(), c.HasProducts(), c.HasRentals())
}

func (c *Cart) HasProducts() bool {
	for _, li := range c.items {
		if li.Kind == KindProduct {
			return true
		}
	}
	return false
}

func (c *Cart) HasRentals() bool {
	for _, li := range c.items {
		if li.Kind == KindRental {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// OrderType derives the order classification from which variants are
// present.
func (c *Cart) OrderType() models.OrderType {
	switch {
	case c.HasProducts() && c.HasRentals():
		return models.OrderTypeMixed
	case c.HasProducts():
		return models.OrderTypeProductsOnly
	case c.HasRentals():
		return models.OrderTypeRentalsOnly
	default:
		return models.OrderTypeEmpty
	}
}

// Clear destroys the whole line item set, as happens after an order is
// placed.
func (c *Cart) Clear() {
	c.items = nil
}

// Marshal serializes the cart for session storage.
func (c *Cart) Marshal() ([]byte, error) {
	return json.Marshal(c.items)
}

// Unmarshal restores a cart from its session representation.
func Unmarshal(data []byte) (*Cart, error) {
	var items []*LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return &Cart{items: items}, nil
}

// NormalizeDate truncates a timestamp to a UTC calendar date so that date
// arithmetic and comparisons are exact.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
