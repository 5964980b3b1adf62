package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/dimispapa/bouldering-cyprus/internal/services"
	"github.com/dimispapa/bouldering-cyprus/pkg/stripe"
)

// WebhookHandler is the webhook trigger: the payment gateway's server-side
// notification of payment outcomes. It has no session, so checkout data
// comes from the metadata snapshot on the intent.
type WebhookHandler struct {
	checkout      *services.CheckoutService
	webhookSecret string
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(checkout *services.CheckoutService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		checkout:      checkout,
		webhookSecret: webhookSecret,
	}
}

// RegisterRoutes registers the webhook route with the Fiber app.
func (h *WebhookHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/stripe/webhook", h.HandleStripeWebhook)
}

// HandleStripeWebhook verifies the event signature and reconciles the order
// for succeeded payments. The gateway retries deliveries that do not get a
// 2xx, so only failures worth redelivering return an error status.
func (h *WebhookHandler) HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	event, err := stripe.ConstructEvent(payload, c.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		log.Printf("Rejected webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid webhook signature",
		})
	}

	switch event.Type {
	case stripe.EventPaymentSucceeded:
		return h.handlePaymentSucceeded(c, event)
	case stripe.EventPaymentFailed:
		intent, err := event.Intent()
		if err == nil {
			reason := "unknown"
			if intent.LastError != nil {
				reason = intent.LastError.Message
			}
			log.Printf("Payment %s failed: %s", intent.ID, reason)
			h.checkout.NotifyPaymentFailed(intent)
		}
		return c.JSON(fiber.Map{"received": true})
	default:
		log.Printf("Unhandled webhook event type %s", event.Type)
		return c.JSON(fiber.Map{"received": true})
	}
}

func (h *WebhookHandler) handlePaymentSucceeded(c *fiber.Ctx, event *stripe.Event) error {
	intent, err := event.Intent()
	if err != nil {
		log.Printf("Malformed payment_intent.succeeded payload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Malformed event payload",
		})
	}

	// No session here: the cart and order form must come from the intent's
	// metadata snapshot.
	data, err := h.checkout.ResolveCheckoutData(intent, nil, nil)
	if err != nil {
		log.Printf("No checkout data for payment %s: %v", intent.ID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "No checkout data on payment intent",
		})
	}

	order, created, err := h.checkout.CreateOrReturnOrder(c.UserContext(), intent, data)
	if err != nil {
		var vErr *services.CartValidationError
		if errors.As(err, &vErr) {
			// The cart became unfulfillable after payment. Redelivering the
			// event will not change that, so acknowledge with an error body
			// for the gateway's dashboard.
			log.Printf("Webhook order for payment %s rejected: %v", intent.ID, err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": vErr.Message(),
			})
		}
		if errors.Is(err, services.ErrPaymentNotSucceeded) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Payment has not succeeded",
			})
		}
		log.Printf("Error creating order from webhook for payment %s: %v", intent.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create order",
		})
	}

	if created {
		log.Printf("Webhook created order %s for payment %s", order.OrderNumber, intent.ID)
	}
	return c.JSON(fiber.Map{
		"received":     true,
		"order_number": order.OrderNumber,
		"created":      created,
	})
}
