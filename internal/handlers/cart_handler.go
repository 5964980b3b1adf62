package handlers

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/dimispapa/bouldering-cyprus/internal/cart"
	"github.com/dimispapa/bouldering-cyprus/internal/pricing"
	"github.com/dimispapa/bouldering-cyprus/internal/repositories"
)

// CartHandler handles HTTP requests for the session cart.
type CartHandler struct {
	store        *session.Store
	productRepo  repositories.ProductRepository
	crashpadRepo repositories.CrashpadRepository
	engine       *pricing.Engine
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(store *session.Store, productRepo repositories.ProductRepository, crashpadRepo repositories.CrashpadRepository, engine *pricing.Engine) *CartHandler {
	return &CartHandler{
		store:        store,
		productRepo:  productRepo,
		crashpadRepo: crashpadRepo,
		engine:       engine,
	}
}

// RegisterRoutes registers the cart routes with the Fiber app.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Post("/products/:id", h.HandleAddProduct)
	cartRoutes.Post("/rentals/:id", h.HandleAddRental)
	cartRoutes.Delete("/:kind/:id", h.HandleRemoveItem)
	cartRoutes.Post("/clear", h.HandleClearCart)
}

// HandleGetCart returns the cart contents enriched with catalog names and
// the full charge breakdown.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		log.Printf("Error getting session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load session",
		})
	}
	sc := cartFromSession(sess)
	return c.JSON(h.cartView(sc))
}

// HandleAddProduct adds a product line to the cart or adjusts its quantity.
func (h *CartHandler) HandleAddProduct(c *fiber.Ctx) error {
	var req struct {
		Quantity int  `json:"quantity"`
		Update   bool `json:"update"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if req.Quantity < 0 || (!req.Update && req.Quantity == 0) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Quantity must be positive",
		})
	}

	product, err := h.productRepo.GetByID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Product not found",
		})
	}

	sess, err := h.store.Get(c)
	if err != nil {
		log.Printf("Error getting session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load session",
		})
	}
	sc := cartFromSession(sess)

	// Cap the resulting quantity at current stock so the cart never starts
	// out unfulfillable. Stock is re-checked at checkout either way.
	resulting := req.Quantity
	if !req.Update {
		if existing := sc.Get(cart.KindProduct, product.ID); existing != nil {
			resulting += existing.Quantity
		}
	}
	if resulting > 0 && !product.HasStock(resulting) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": fmt.Sprintf("Sorry, %s only has %d items in stock", product.Name, product.Stock),
		})
	}

	sc.AddProduct(product, req.Quantity, req.Update)
	if err := saveCartToSession(sess, sc); err != nil {
		log.Printf("Error saving cart: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not save cart",
		})
	}
	return c.JSON(h.cartView(sc))
}

// HandleAddRental adds a rental line for a crashpad over a stay given as
// check_in and check_out dates.
func (h *CartHandler) HandleAddRental(c *fiber.Ctx) error {
	var req struct {
		CheckIn  string `json:"check_in"`
		CheckOut string `json:"check_out"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	checkIn, err := time.Parse(cart.DateLayout, req.CheckIn)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid check_in date, expected YYYY-MM-DD",
		})
	}
	checkOut, err := time.Parse(cart.DateLayout, req.CheckOut)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid check_out date, expected YYYY-MM-DD",
		})
	}
	if checkOut.Before(checkIn) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "check_out must not be before check_in",
		})
	}

	pad, err := h.crashpadRepo.GetByID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Crashpad not found",
		})
	}

	sess, err := h.store.Get(c)
	if err != nil {
		log.Printf("Error getting session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load session",
		})
	}
	sc := cartFromSession(sess)
	sc.AddRental(pad, checkIn, checkOut, 1)
	if err := saveCartToSession(sess, sc); err != nil {
		log.Printf("Error saving cart: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not save cart",
		})
	}
	return c.JSON(h.cartView(sc))
}

// HandleRemoveItem deletes a line item by kind and id.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	kind := cart.ItemKind(c.Params("kind"))
	if kind != cart.KindProduct && kind != cart.KindRental {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Unknown item kind",
		})
	}

	sess, err := h.store.Get(c)
	if err != nil {
		log.Printf("Error getting session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load session",
		})
	}
	sc := cartFromSession(sess)
	sc.Remove(kind, c.Params("id"))
	if err := saveCartToSession(sess, sc); err != nil {
		log.Printf("Error saving cart: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not save cart",
		})
	}
	return c.JSON(h.cartView(sc))
}

// HandleClearCart empties the cart.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		log.Printf("Error getting session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load session",
		})
	}
	sc := cartFromSession(sess)
	sc.Clear()
	if err := saveCartToSession(sess, sc); err != nil {
		log.Printf("Error saving cart: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not save cart",
		})
	}
	return c.JSON(fiber.Map{"message": "Cart cleared"})
}

// cartView builds the JSON representation of a cart, joining display names
// in from the catalog with one batch query per kind.
func (h *CartHandler) cartView(sc *cart.Cart) fiber.Map {
	var productIDs, padIDs []string
	for _, li := range sc.Items() {
		if li.Kind == cart.KindProduct {
			productIDs = append(productIDs, li.ItemID)
		} else {
			padIDs = append(padIDs, li.ItemID)
		}
	}
	names := make(map[string]string)
	if products, err := h.productRepo.GetByIDs(productIDs); err == nil {
		for _, p := range products {
			names[p.ID] = p.Name
		}
	}
	if pads, err := h.crashpadRepo.GetByIDs(padIDs); err == nil {
		for _, pad := range pads {
			names[pad.ID] = pad.Name
		}
	}

	items := make([]fiber.Map, 0, len(sc.Items()))
	for _, li := range sc.Items() {
		item := fiber.Map{
			"kind":     li.Kind,
			"item_id":  li.ItemID,
			"name":     names[li.ItemID],
			"quantity": li.Quantity,
			"total":    li.Total(),
		}
		if li.Kind == cart.KindRental {
			item["check_in"] = li.CheckIn.Format(cart.DateLayout)
			item["check_out"] = li.CheckOut.Format(cart.DateLayout)
			item["rental_days"] = li.RentalDays
			item["daily_rate"] = li.DailyRate
		} else {
			item["unit_price"] = li.UnitPrice
		}
		items = append(items, item)
	}

	return fiber.Map{
		"items":      items,
		"item_count": sc.ItemCount(),
		"order_type": sc.OrderType(),
		"totals":     sc.Totals(h.engine),
	}
}
