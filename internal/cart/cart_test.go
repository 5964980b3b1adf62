package cart_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimispapa/bouldering-cyprus/internal/cart"
	"github.com/dimispapa/bouldering-cyprus/internal/models"
	"github.com/dimispapa/bouldering-cyprus/internal/pricing"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testProduct() *models.Product {
	return &models.Product{ID: "prod-1", Name: "Chalk Bag", Price: dec("19.99"), Stock: 10}
}

func testPad() *models.Crashpad {
	return &models.Crashpad{
		ID:              "pad-1",
		Name:            "Mondo",
		DayRate:         dec("5.00"),
		SevenDayRate:    dec("4.00"),
		FourteenDayRate: dec("3.00"),
	}
}

func testEngine() *pricing.Engine {
	return pricing.NewEngine(dec("50.00"), dec("10"), dec("2.50"))
}

func TestAddProductIncrementsQuantity(t *testing.T) {
	c := cart.New()
	p := testProduct()

	assert.Equal(t, 2, c.AddProduct(p, 2, false))
	assert.Equal(t, 3, c.AddProduct(p, 1, false))

	li := c.Get(cart.KindProduct, p.ID)
	require.NotNil(t, li)
	assert.Equal(t, 3, li.Quantity)
	assert.True(t, dec("59.97").Equal(li.Total()))
	assert.Len(t, c.Items(), 1)
}

func TestAddProductUpdateSetsQuantity(t *testing.T) {
	c := cart.New()
	p := testProduct()

	c.AddProduct(p, 5, false)
	assert.Equal(t, 2, c.AddProduct(p, 2, true))
	assert.Equal(t, 2, c.Get(cart.KindProduct, p.ID).Quantity)
}

func TestAddProductZeroQuantityRemovesLine(t *testing.T) {
	c := cart.New()
	p := testProduct()

	c.AddProduct(p, 3, false)
	assert.Equal(t, 0, c.AddProduct(p, 0, true))
	assert.Nil(t, c.Get(cart.KindProduct, p.ID))
	assert.True(t, c.IsEmpty())
}

func TestAddProductFreezesPriceOnFirstAdd(t *testing.T) {
	c := cart.New()
	p := testProduct()
	c.AddProduct(p, 1, false)

	// A catalog price change must not affect the line already in the cart.
	p.Price = dec("25.00")
	c.AddProduct(p, 1, false)

	assert.True(t, dec("19.99").Equal(c.Get(cart.KindProduct, p.ID).UnitPrice))
}

func TestAddRentalFixesDatesAndTierRate(t *testing.T) {
	c := cart.New()
	pad := testPad()

	c.AddRental(pad, date(2026, 6, 1), date(2026, 6, 7), 1)

	li := c.Get(cart.KindRental, pad.ID)
	require.NotNil(t, li)
	assert.Equal(t, 7, li.RentalDays)
	assert.True(t, dec("4.00").Equal(li.DailyRate))
	assert.True(t, dec("28.00").Equal(li.Total()))
}

func TestAddRentalQuantityClampedToOne(t *testing.T) {
	c := cart.New()
	pad := testPad()

	assert.Equal(t, 1, c.AddRental(pad, date(2026, 6, 1), date(2026, 6, 3), 4))
	// Re-adding the same pad does not change the frozen dates or stack up
	// quantity.
	assert.Equal(t, 1, c.AddRental(pad, date(2026, 7, 1), date(2026, 7, 20), 1))

	li := c.Get(cart.KindRental, pad.ID)
	assert.Equal(t, 1, li.Quantity)
	assert.Equal(t, date(2026, 6, 1), li.CheckIn)
	assert.Equal(t, 3, li.RentalDays)
}

func TestRemove(t *testing.T) {
	c := cart.New()
	p := testProduct()
	pad := testPad()
	c.AddProduct(p, 1, false)
	c.AddRental(pad, date(2026, 6, 1), date(2026, 6, 3), 1)

	c.Remove(cart.KindProduct, p.ID)
	assert.Nil(t, c.Get(cart.KindProduct, p.ID))
	assert.NotNil(t, c.Get(cart.KindRental, pad.ID))

	// Removing something absent is a no-op.
	c.Remove(cart.KindProduct, "missing")
	assert.Len(t, c.Items(), 1)
}

func TestItemCount(t *testing.T) {
	c := cart.New()
	c.AddProduct(testProduct(), 3, false)
	c.AddRental(testPad(), date(2026, 6, 1), date(2026, 6, 3), 1)

	assert.Equal(t, 4, c.ItemCount())
}

func TestOrderType(t *testing.T) {
	c := cart.New()
	assert.Equal(t, models.OrderTypeEmpty, c.OrderType())

	c.AddProduct(testProduct(), 1, false)
	assert.Equal(t, models.OrderTypeProductsOnly, c.OrderType())

	c.AddRental(testPad(), date(2026, 6, 1), date(2026, 6, 3), 1)
	assert.Equal(t, models.OrderTypeMixed, c.OrderType())

	c.Remove(cart.KindProduct, "prod-1")
	assert.Equal(t, models.OrderTypeRentalsOnly, c.OrderType())
}

func TestTotals(t *testing.T) {
	c := cart.New()
	c.AddProduct(testProduct(), 2, false) // 39.98
	c.AddRental(testPad(), date(2026, 6, 1), date(2026, 6, 3), 1) // 3 days x 5.00

	totals := c.Totals(testEngine())
	assert.True(t, dec("54.98").Equal(totals.CartTotal), "got %s", totals.CartTotal)
	// Below the 50.00 threshold on the product subtotal alone.
	assert.True(t, dec("4.00").Equal(totals.DeliveryCost), "got %s", totals.DeliveryCost)
	assert.True(t, dec("2.50").Equal(totals.HandlingFee))
	assert.True(t, dec("61.48").Equal(totals.GrandTotal), "got %s", totals.GrandTotal)
}

func TestMarshalRoundTrip(t *testing.T) {
	c := cart.New()
	c.AddProduct(testProduct(), 2, false)
	c.AddRental(testPad(), date(2026, 6, 1), date(2026, 6, 7), 1)

	data, err := c.Marshal()
	require.NoError(t, err)

	restored, err := cart.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, restored.Items(), 2)

	// Insertion order and frozen line data survive the round trip.
	assert.Equal(t, cart.KindProduct, restored.Items()[0].Kind)
	assert.Equal(t, cart.KindRental, restored.Items()[1].Kind)
	assert.True(t, c.Total().Equal(restored.Total()))
	assert.Equal(t, 7, restored.Items()[1].RentalDays)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := cart.Unmarshal([]byte("{not json"))
	assert.Error(t, err)
}

func TestSnapshotMetadataRoundTrip(t *testing.T) {
	c := cart.New()
	c.AddProduct(testProduct(), 2, false)
	c.AddRental(testPad(), date(2026, 6, 1), date(2026, 6, 7), 1)
	totals := c.Totals(testEngine())

	snap := cart.NewSnapshot(c, totals, map[string]string{
		"prod-1": "Chalk Bag",
		"pad-1":  "Mondo",
	})
	metadata, err := snap.ToMetadata()
	require.NoError(t, err)
	assert.Equal(t, "MIXED", metadata[cart.MetaOrderType])
	assert.Equal(t, totals.GrandTotal.StringFixed(2), metadata[cart.MetaGrandTotal])

	restored, err := cart.SnapshotFromMetadata(metadata)
	require.NoError(t, err)
	require.NotNil(t, restored)
	require.Len(t, restored.CartItems, 1)
	require.Len(t, restored.RentalItems, 1)
	assert.Equal(t, "Chalk Bag", restored.CartItems[0].Name)
	assert.True(t, totals.GrandTotal.Equal(restored.GrandTotal))

	rebuilt, err := restored.Cart()
	require.NoError(t, err)
	require.Len(t, rebuilt.Items(), 2)
	// Rebuilt lines keep the quoted price, dates and tier rate.
	assert.True(t, dec("19.99").Equal(rebuilt.Items()[0].UnitPrice))
	assert.Equal(t, date(2026, 6, 1), rebuilt.Items()[1].CheckIn)
	assert.True(t, dec("4.00").Equal(rebuilt.Items()[1].DailyRate))
	assert.True(t, c.Total().Equal(rebuilt.Total()))
}

func TestSnapshotFromMetadataAbsent(t *testing.T) {
	snap, err := cart.SnapshotFromMetadata(map[string]string{"unrelated": "x"})
	assert.NoError(t, err)
	assert.Nil(t, snap)
}

func TestNormalizeDate(t *testing.T) {
	loc := time.FixedZone("EET", 2*60*60)
	stamped := time.Date(2026, 6, 1, 15, 30, 45, 0, loc)
	assert.Equal(t, date(2026, 6, 1), cart.NormalizeDate(stamped))
}
