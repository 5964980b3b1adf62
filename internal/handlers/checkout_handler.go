package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/dimispapa/bouldering-cyprus/internal/models"
	"github.com/dimispapa/bouldering-cyprus/internal/services"
	"github.com/dimispapa/bouldering-cyprus/pkg/stripe"
)

// CheckoutHandler handles HTTP requests for the checkout flow: creating a
// payment intent for the session cart and the redirect the customer lands
// on after paying.
type CheckoutHandler struct {
	store    *session.Store
	checkout *services.CheckoutService
	validate *validator.Validate
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(store *session.Store, checkout *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		store:    store,
		checkout: checkout,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the checkout routes with the Fiber app.
func (h *CheckoutHandler) RegisterRoutes(router fiber.Router) {
	checkoutRoutes := router.Group("/checkout")
	checkoutRoutes.Post("/intent", h.HandleCreateIntent)
	checkoutRoutes.Get("/success", h.HandleCheckoutSuccess)
}

// HandleCreateIntent validates the customer details and the cart, then
// creates (or updates) the payment intent the frontend confirms. The order
// form and intent id are cached in the session so the redirect can finish
// the checkout without resubmitting anything.
func (h *CheckoutHandler) HandleCreateIntent(c *fiber.Ctx) error {
	var form models.OrderForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(form); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
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
	existingIntentID, _ := sess.Get(sessionIntentKey).(string)

	intent, err := h.checkout.PrepareIntent(c.UserContext(), sc, &form, existingIntentID)
	if err != nil {
		var vErr *services.CartValidationError
		var gErr *services.GatewayError
		switch {
		case errors.Is(err, services.ErrInvalidCartState):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Your cart is empty",
			})
		case errors.As(err, &vErr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": vErr.Message(),
				"reason":  vErr.Reason,
			})
		case errors.As(err, &gErr):
			log.Printf("Gateway error creating intent: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"message": "Payment service unavailable, please try again",
			})
		default:
			log.Printf("Error preparing payment intent: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not start checkout",
			})
		}
	}

	// One Save: Fiber releases the session instance on Save.
	if formJSON, err := json.Marshal(form); err == nil {
		sess.Set(sessionFormKey, string(formJSON))
	}
	sess.Set(sessionIntentKey, intent.ID)
	if err := sess.Save(); err != nil {
		log.Printf("Error saving session: %v", err)
	}

	return c.JSON(fiber.Map{
		"payment_intent_id": intent.ID,
		"client_secret":     intent.ClientSecret,
		"amount":            intent.Amount,
		"currency":          intent.Currency,
	})
}

// HandleCheckoutSuccess is the redirect trigger. The gateway sends the
// customer here after payment; the webhook may already have created the
// order, so this first waits for it and only creates one itself when none
// appears. Failures redirect back to checkout with an error message.
func (h *CheckoutHandler) HandleCheckoutSuccess(c *fiber.Ctx) error {
	piid := c.Query("payment_intent")
	if piid == "" {
		return redirectWithError(c, "/checkout", "Missing payment reference")
	}

	sess, err := h.store.Get(c)
	if err != nil {
		log.Printf("Error getting session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load session",
		})
	}

	// Never trust the redirect parameters alone: confirm the payment state
	// with the gateway before touching any order.
	intent, err := h.checkout.RetrieveIntent(c.UserContext(), piid)
	if err != nil {
		log.Printf("Error retrieving intent %s: %v", piid, err)
		return redirectWithError(c, "/checkout", "Could not verify your payment, please try again")
	}
	if intent.Status != stripe.StatusSucceeded {
		log.Printf("Redirect for intent %s in status %s", piid, intent.Status)
		return redirectWithError(c, "/checkout", "Your payment has not completed")
	}

	order, err := h.checkout.WaitForExistingOrder(c.UserContext(), piid)
	if err != nil {
		log.Printf("Error waiting for order for payment %s: %v", piid, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not confirm your order",
		})
	}
	created := false

	if order == nil {
		// The webhook has not landed; reconcile the order here.
		data, err := h.checkout.ResolveCheckoutData(intent, cartFromSession(sess), formFromSession(sess))
		if err != nil {
			log.Printf("Error resolving checkout data for payment %s: %v", piid, err)
			return redirectWithError(c, "/checkout", "Your checkout session has expired, please try again")
		}
		order, created, err = h.checkout.CreateOrReturnOrder(c.UserContext(), intent, data)
		if err != nil {
			var vErr *services.CartValidationError
			if errors.As(err, &vErr) {
				return redirectWithError(c, "/cart", vErr.Message())
			}
			log.Printf("Error creating order for payment %s: %v", piid, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not create your order",
			})
		}
	}

	clearCheckoutSession(sess)
	return c.JSON(fiber.Map{
		"message":      fmt.Sprintf("Thank you for your order! A confirmation email has been sent to %s", order.Email),
		"order_number": order.OrderNumber,
		"created":      created,
		"order":        order,
	})
}

// redirectWithError sends the customer back to a frontend page carrying the
// error text as a query parameter.
func redirectWithError(c *fiber.Ctx, path, message string) error {
	return c.Redirect(path+"?error="+url.QueryEscape(message), fiber.StatusSeeOther)
}
