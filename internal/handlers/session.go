package handlers

import (
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/dimispapa/bouldering-cyprus/internal/cart"
	"github.com/dimispapa/bouldering-cyprus/internal/models"
)

// Session keys for the checkout flow. The cart and the cached order form
// live in the session for the redirect trigger; the webhook trigger has no
// session and falls back to the gateway metadata snapshot.
const (
	sessionCartKey   = "cart"
	sessionFormKey   = "order_form_data"
	sessionIntentKey = "payment_intent_id"
)

// cartFromSession restores the session cart, returning an empty cart when
// none is stored or the stored one cannot be decoded.
func cartFromSession(sess *session.Session) *cart.Cart {
	raw, ok := sess.Get(sessionCartKey).(string)
	if !ok || raw == "" {
		return cart.New()
	}
	c, err := cart.Unmarshal([]byte(raw))
	if err != nil {
		log.Printf("Discarding undecodable session cart: %v", err)
		return cart.New()
	}
	return c
}

func saveCartToSession(sess *session.Session, c *cart.Cart) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	sess.Set(sessionCartKey, string(data))
	return sess.Save()
}

// formFromSession returns the cached order form, or nil when absent.
func formFromSession(sess *session.Session) *models.OrderForm {
	raw, ok := sess.Get(sessionFormKey).(string)
	if !ok || raw == "" {
		return nil
	}
	var form models.OrderForm
	if err := json.Unmarshal([]byte(raw), &form); err != nil {
		log.Printf("Discarding undecodable session order form: %v", err)
		return nil
	}
	return &form
}

// clearCheckoutSession destroys the cart and cached checkout state so a
// refreshed browser tab cannot resubmit the order.
func clearCheckoutSession(sess *session.Session) {
	sess.Delete(sessionCartKey)
	sess.Delete(sessionFormKey)
	sess.Delete(sessionIntentKey)
	if err := sess.Save(); err != nil {
		log.Printf("Failed to clear checkout session: %v", err)
	}
}
