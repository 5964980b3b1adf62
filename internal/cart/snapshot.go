package cart

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dimispapa/bouldering-cyprus/internal/models"
	"github.com/dimispapa/bouldering-cyprus/internal/pricing"
)

// Gateway metadata keys carrying the snapshot. Values are size-constrained
// by the gateway, which is why products and rentals travel as two separate
// compact arrays.
const (
	MetaCartItems     = "cart_items"
	MetaRentalItems   = "rental_items"
	MetaCartTotal     = "cart_total"
	MetaDeliveryCost  = "delivery_cost"
	MetaHandlingFee   = "handling_fee"
	MetaGrandTotal    = "grand_total"
	MetaOrderType     = "order_type"
	MetaOrderFormData = "order_form_data"
)

// ProductSnapshotItem is one product line in portable form.
type ProductSnapshotItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
}

// RentalSnapshotItem is one rental line in portable form.
type RentalSnapshotItem struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	DayRate    decimal.Decimal `json:"day_rate"`
	CheckIn    string          `json:"check_in"`
	CheckOut   string          `json:"check_out"`
	RentalDays int             `json:"rental_days"`
	Total      decimal.Decimal `json:"total"`
}

// Snapshot is the serialized form of a cart, portable outside session
// storage. It carries enough to rebuild every line item and the totals that
// were quoted to the customer, so the webhook trigger can reconstruct the
// checkout without a session.
type Snapshot struct {
	CartItems    []ProductSnapshotItem `json:"cart_items"`
	RentalItems  []RentalSnapshotItem  `json:"rental_items"`
	CartTotal    decimal.Decimal       `json:"cart_total"`
	DeliveryCost decimal.Decimal       `json:"delivery_cost"`
	HandlingFee  decimal.Decimal       `json:"handling_fee"`
	GrandTotal   decimal.Decimal       `json:"grand_total"`
	OrderType    models.OrderType      `json:"order_type"`
}

// NewSnapshot freezes the cart with its computed totals. names maps item id
// to display name for both variants; missing names are tolerated.
func NewSnapshot(c *Cart, totals pricing.Totals, names map[string]string) *Snapshot {
	snap := &Snapshot{
		CartItems:    []ProductSnapshotItem{},
		RentalItems:  []RentalSnapshotItem{},
		CartTotal:    totals.CartTotal,
		DeliveryCost: totals.DeliveryCost,
		HandlingFee:  totals.HandlingFee,
		GrandTotal:   totals.GrandTotal,
		OrderType:    c.OrderType(),
	}
	for _, li := range c.Items() {
		switch li.Kind {
		case KindProduct:
			snap.CartItems = append(snap.CartItems, ProductSnapshotItem{
				ID:       li.ItemID,
				Name:     names[li.ItemID],
				Price:    li.UnitPrice,
				Quantity: li.Quantity,
				Total:    li.Total(),
			})
		case KindRental:
			snap.RentalItems = append(snap.RentalItems, RentalSnapshotItem{
				ID:         li.ItemID,
				Name:       names[li.ItemID],
				DayRate:    li.DailyRate,
				CheckIn:    li.CheckIn.Format(DateLayout),
				CheckOut:   li.CheckOut.Format(DateLayout),
				RentalDays: li.RentalDays,
				Total:      li.Total(),
			})
		}
	}
	return snap
}

// ToMetadata renders the snapshot as gateway metadata key/values.
func (s *Snapshot) ToMetadata() (map[string]string, error) {
	cartItems, err := json.Marshal(s.CartItems)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart items: %w", err)
	}
	rentalItems, err := json.Marshal(s.RentalItems)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rental items: %w", err)
	}
	return map[string]string{
		MetaCartItems:    string(cartItems),
		MetaRentalItems:  string(rentalItems),
		MetaCartTotal:    s.CartTotal.StringFixed(2),
		MetaDeliveryCost: s.DeliveryCost.StringFixed(2),
		MetaHandlingFee:  s.HandlingFee.StringFixed(2),
		MetaGrandTotal:   s.GrandTotal.StringFixed(2),
		MetaOrderType:    string(s.OrderType),
	}, nil
}

// SnapshotFromMetadata parses a snapshot back out of gateway metadata.
// Returns nil when the metadata carries no snapshot at all.
func SnapshotFromMetadata(metadata map[string]string) (*Snapshot, error) {
	cartItems, hasProducts := metadata[MetaCartItems]
	rentalItems, hasRentals := metadata[MetaRentalItems]
	if !hasProducts && !hasRentals {
		return nil, nil
	}

	snap := &Snapshot{OrderType: models.OrderType(metadata[MetaOrderType])}
	if hasProducts {
		if err := json.Unmarshal([]byte(cartItems), &snap.CartItems); err != nil {
			return nil, fmt.Errorf("failed to decode cart items: %w", err)
		}
	}
	if hasRentals {
		if err := json.Unmarshal([]byte(rentalItems), &snap.RentalItems); err != nil {
			return nil, fmt.Errorf("failed to decode rental items: %w", err)
		}
	}

	var err error
	if snap.CartTotal, err = parseAmount(metadata[MetaCartTotal]); err != nil {
		return nil, err
	}
	if snap.DeliveryCost, err = parseAmount(metadata[MetaDeliveryCost]); err != nil {
		return nil, err
	}
	if snap.HandlingFee, err = parseAmount(metadata[MetaHandlingFee]); err != nil {
		return nil, err
	}
	if snap.GrandTotal, err = parseAmount(metadata[MetaGrandTotal]); err != nil {
		return nil, err
	}
	return snap, nil
}

// Cart rebuilds a live cart from the snapshot. Line prices and rates come
// from the snapshot, not from the live catalog: the customer pays what they
// were quoted.
func (s *Snapshot) Cart() (*Cart, error) {
	c := New()
	for _, it := range s.CartItems {
		c.items = append(c.items, &LineItem{
			Kind:      KindProduct,
			ItemID:    it.ID,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
		})
	}
	for _, it := range s.RentalItems {
		checkIn, err := time.Parse(DateLayout, it.CheckIn)
		if err != nil {
			return nil, fmt.Errorf("invalid check_in for crashpad %s: %w", it.ID, err)
		}
		checkOut, err := time.Parse(DateLayout, it.CheckOut)
		if err != nil {
			return nil, fmt.Errorf("invalid check_out for crashpad %s: %w", it.ID, err)
		}
		c.items = append(c.items, &LineItem{
			Kind:       KindRental,
			ItemID:     it.ID,
			Quantity:   1,
			CheckIn:    NormalizeDate(checkIn),
			CheckOut:   NormalizeDate(checkOut),
			DailyRate:  it.DayRate,
			RentalDays: it.RentalDays,
		})
	}
	return c, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q in snapshot: %w", s, err)
	}
	return d, nil
}
