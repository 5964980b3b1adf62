package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dimispapa/bouldering-cyprus/internal/cart"
	"github.com/dimispapa/bouldering-cyprus/internal/repositories"
	"github.com/dimispapa/bouldering-cyprus/internal/services"
)

// RentalHandler handles HTTP requests for the crashpad rental catalog and
// availability lookups.
type RentalHandler struct {
	crashpadRepo repositories.CrashpadRepository
	availability *services.AvailabilityService
}

// NewRentalHandler creates a new RentalHandler.
func NewRentalHandler(crashpadRepo repositories.CrashpadRepository, availability *services.AvailabilityService) *RentalHandler {
	return &RentalHandler{
		crashpadRepo: crashpadRepo,
		availability: availability,
	}
}

// RegisterRoutes registers the rental routes with the Fiber app.
func (h *RentalHandler) RegisterRoutes(router fiber.Router) {
	rentalRoutes := router.Group("/crashpads")
	rentalRoutes.Get("/", h.HandleGetCrashpads)
	rentalRoutes.Get("/available", h.HandleGetAvailable)
	rentalRoutes.Get("/:id", h.HandleGetCrashpadByID)
}

// HandleGetCrashpads retrieves the full crashpad catalog.
func (h *RentalHandler) HandleGetCrashpads(c *fiber.Ctx) error {
	pads, err := h.crashpadRepo.GetAll()
	if err != nil {
		log.Printf("Error getting all crashpads: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve crashpads",
		})
	}
	return c.JSON(pads)
}

// HandleGetAvailable lists the crashpads free between check_in and
// check_out.
func (h *RentalHandler) HandleGetAvailable(c *fiber.Ctx) error {
	checkIn, err := time.Parse(cart.DateLayout, c.Query("check_in"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid check_in date, expected YYYY-MM-DD",
		})
	}
	checkOut, err := time.Parse(cart.DateLayout, c.Query("check_out"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid check_out date, expected YYYY-MM-DD",
		})
	}

	pads, err := h.availability.AvailableCrashpads(checkIn, checkOut)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"check_in":  checkIn.Format(cart.DateLayout),
		"check_out": checkOut.Format(cart.DateLayout),
		"crashpads": pads,
	})
}

// HandleGetCrashpadByID retrieves a single crashpad by its ID.
func (h *RentalHandler) HandleGetCrashpadByID(c *fiber.Ctx) error {
	pad, err := h.crashpadRepo.GetByID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Crashpad not found",
		})
	}
	return c.JSON(pad)
}
