package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dimispapa/bouldering-cyprus/internal/cart"
	"github.com/dimispapa/bouldering-cyprus/internal/models"
	"github.com/dimispapa/bouldering-cyprus/internal/pricing"
	"github.com/dimispapa/bouldering-cyprus/internal/repositories"
	"github.com/dimispapa/bouldering-cyprus/pkg/rabbitmq"
	"github.com/dimispapa/bouldering-cyprus/pkg/stripe"
)

// PaymentGateway is the slice of the gateway API the checkout flow uses.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, params stripe.IntentParams) (*stripe.PaymentIntent, error)
	RetrieveIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	ModifyIntent(ctx context.Context, id string, params stripe.IntentParams) (*stripe.PaymentIntent, error)
}

// EventPublisher delivers checkout events to the message broker.
type EventPublisher interface {
	Publish(routingKey string, body []byte) error
}

// CheckoutConfig carries the reconciliation tunables.
type CheckoutConfig struct {
	Currency          string
	OrderNumberPrefix string
	// Retries and RetryDelay shape the redirect trigger's wait for an
	// order the webhook may be creating concurrently.
	Retries    int
	RetryDelay time.Duration
}

// CheckoutData is a resolved cart plus customer details, from either the
// live session or the gateway metadata snapshot.
type CheckoutData struct {
	Cart *cart.Cart
	Form *models.OrderForm
}

// CheckoutService is the order reconciliation engine. Given a succeeded
// payment and a cart, it produces exactly one persisted order no matter
// which trigger invokes it first or whether both run concurrently. The
// database's unique constraint on the payment reference is the only
// coordination between the triggers.
type CheckoutService struct {
	orderRepo    repositories.OrderRepository
	productRepo  repositories.ProductRepository
	crashpadRepo repositories.CrashpadRepository
	availability *AvailabilityService
	engine       *pricing.Engine
	gateway      PaymentGateway
	events       EventPublisher
	cfg          CheckoutConfig
	now          func() time.Time
}

// NewCheckoutService creates a new CheckoutService. events may be nil, in
// which case confirmation events are skipped with a log line.
func NewCheckoutService(
	orderRepo repositories.OrderRepository,
	productRepo repositories.ProductRepository,
	crashpadRepo repositories.CrashpadRepository,
	availability *AvailabilityService,
	engine *pricing.Engine,
	gateway PaymentGateway,
	events EventPublisher,
	cfg CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		crashpadRepo: crashpadRepo,
		availability: availability,
		engine:       engine,
		gateway:      gateway,
		events:       events,
		cfg:          cfg,
		now:          time.Now,
	}
}

// RetrieveIntent confirms the intent's current state with the gateway.
func (s *CheckoutService) RetrieveIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	intent, err := s.gateway.RetrieveIntent(ctx, id)
	if err != nil {
		return nil, &GatewayError{Op: "retrieve intent", Err: err}
	}
	return intent, nil
}

// PrepareIntent validates the cart, computes totals and creates or updates
// the payment intent, storing the cart snapshot and order form in the
// intent's metadata so the webhook trigger can reconstruct the checkout
// without a session.
func (s *CheckoutService) PrepareIntent(ctx context.Context, c *cart.Cart, form *models.OrderForm, existingIntentID string) (*stripe.PaymentIntent, error) {
	if c == nil || c.IsEmpty() {
		return nil, ErrInvalidCartState
	}
	if err := s.availability.ValidateCart(c); err != nil {
		return nil, err
	}

	totals := c.Totals(s.engine)
	snap, err := s.snapshotFor(c, totals)
	if err != nil {
		return nil, err
	}
	metadata, err := snap.ToMetadata()
	if err != nil {
		return nil, err
	}
	formJSON, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order form: %w", err)
	}
	metadata[cart.MetaOrderFormData] = string(formJSON)

	params := stripe.IntentParams{
		Amount:       pricing.MinorUnits(totals.GrandTotal),
		Currency:     s.cfg.Currency,
		Metadata:     metadata,
		ReceiptEmail: form.Email,
		Shipping: &stripe.Shipping{
			Name:  form.FullName(),
			Phone: form.Phone,
			Address: stripe.Address{
				Line1:      form.AddressLine1,
				Line2:      form.AddressLine2,
				City:       form.TownOrCity,
				PostalCode: form.PostalCode,
				Country:    form.Country,
			},
		},
	}

	if existingIntentID != "" {
		intent, err := s.gateway.ModifyIntent(ctx, existingIntentID, params)
		if err == nil {
			return intent, nil
		}
		log.Printf("Failed to modify intent %s, creating a new one: %v", existingIntentID, err)
	}
	intent, err := s.gateway.CreateIntent(ctx, params)
	if err != nil {
		return nil, &GatewayError{Op: "create intent", Err: err}
	}
	return intent, nil
}

// ResolveCheckoutData picks the cart and customer details for
// reconciliation: the live session when present, otherwise the snapshot
// the intent carries in its metadata (the webhook trigger has no session).
func (s *CheckoutService) ResolveCheckoutData(intent *stripe.PaymentIntent, sessionCart *cart.Cart, sessionForm *models.OrderForm) (*CheckoutData, error) {
	if sessionCart != nil && !sessionCart.IsEmpty() && sessionForm != nil {
		return &CheckoutData{Cart: sessionCart, Form: sessionForm}, nil
	}

	snap, err := cart.SnapshotFromMetadata(intent.Metadata)
	if err != nil {
		return nil, err
	}
	formJSON := intent.Metadata[cart.MetaOrderFormData]
	if snap == nil || formJSON == "" {
		return nil, ErrMissingCheckoutData
	}
	recovered, err := snap.Cart()
	if err != nil {
		return nil, err
	}
	var form models.OrderForm
	if err := json.Unmarshal([]byte(formJSON), &form); err != nil {
		return nil, fmt.Errorf("failed to decode order form from metadata: %w", err)
	}
	return &CheckoutData{Cart: recovered, Form: &form}, nil
}

// WaitForExistingOrder polls for an order another trigger may be creating
// for this payment reference. It sleeps before each of the first Retries
// checks and performs one final check without sleeping, so the redirect
// trigger prefers observing the webhook's order over racing it. Returns
// (nil, nil) when no order appeared.
func (s *CheckoutService) WaitForExistingOrder(ctx context.Context, piid string) (*models.Order, error) {
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if attempt < s.cfg.Retries {
			if err := sleepCtx(ctx, s.cfg.RetryDelay); err != nil {
				return nil, err
			}
		}
		order, err := s.orderRepo.FindByPaymentRef(piid)
		if err != nil {
			return nil, err
		}
		if order != nil {
			log.Printf("Found existing order %s for payment %s on attempt %d",
				order.OrderNumber, piid, attempt+1)
			return order, nil
		}
	}
	return nil, nil
}

// CreateOrReturnOrder is the reconciliation protocol both triggers run.
// It returns the order for the intent's payment reference and whether this
// call created it. Losing the creation race to a concurrent trigger is not
// an error: the winner's row is re-read and returned.
func (s *CheckoutService) CreateOrReturnOrder(ctx context.Context, intent *stripe.PaymentIntent, data *CheckoutData) (*models.Order, bool, error) {
	if intent.Status != stripe.StatusSucceeded {
		return nil, false, ErrPaymentNotSucceeded
	}

	// Idempotency short-circuit: a second call for the same payment
	// reference returns the existing order with zero side effects.
	existing, err := s.orderRepo.FindByPaymentRef(intent.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if data == nil || data.Cart == nil || data.Form == nil {
		return nil, false, ErrMissingCheckoutData
	}
	if data.Cart.IsEmpty() {
		return nil, false, ErrInvalidCartState
	}

	// Stock and availability may have changed while the payer was on the
	// gateway page, so the cart is re-validated here regardless of any
	// earlier check.
	if err := s.availability.ValidateCart(data.Cart); err != nil {
		return nil, false, err
	}

	order, err := s.buildOrder(intent, data)
	if err != nil {
		return nil, false, err
	}

	if err := s.orderRepo.Create(order); err != nil {
		if errors.Is(err, repositories.ErrDuplicatePaymentRef) {
			// Another trigger won the race. Re-read and return its row.
			winner, findErr := s.orderRepo.FindByPaymentRef(intent.ID)
			if findErr != nil {
				return nil, false, findErr
			}
			if winner != nil {
				log.Printf("Lost order creation race for payment %s, returning order %s",
					intent.ID, winner.OrderNumber)
				return winner, false, nil
			}
		}
		return nil, false, err
	}

	log.Printf("Created order %s for payment %s", order.OrderNumber, intent.ID)
	s.publishConfirmations(order)
	return order, true, nil
}

func (s *CheckoutService) buildOrder(intent *stripe.PaymentIntent, data *CheckoutData) (*models.Order, error) {
	c, form := data.Cart, data.Form
	totals := c.Totals(s.engine)

	snap, err := s.snapshotFor(c, totals)
	if err != nil {
		return nil, err
	}
	originalCart, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart snapshot: %w", err)
	}

	order := &models.Order{
		ID:           uuid.New().String(),
		OrderNumber:  s.generateOrderNumber(),
		StripePIID:   intent.ID,
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		Email:        form.Email,
		Phone:        form.Phone,
		AddressLine1: form.AddressLine1,
		AddressLine2: form.AddressLine2,
		TownOrCity:   form.TownOrCity,
		PostalCode:   form.PostalCode,
		Country:      form.Country,
		Comments:     form.Comments,
		OriginalCart: string(originalCart),
		OrderTotal:   totals.CartTotal,
		DeliveryCost: totals.DeliveryCost,
		HandlingFee:  totals.HandlingFee,
		GrandTotal:   totals.GrandTotal,
		OrderType:    c.OrderType(),
	}

	for _, li := range c.Items() {
		switch li.Kind {
		case cart.KindProduct:
			order.Items = append(order.Items, models.OrderItem{
				ProductID: li.ItemID,
				Quantity:  li.Quantity,
				ItemTotal: li.Total(),
			})
		case cart.KindRental:
			order.Bookings = append(order.Bookings, models.CrashpadBooking{
				BookingNumber: generateBookingNumber(),
				CrashpadID:    li.ItemID,
				CheckIn:       li.CheckIn,
				CheckOut:      li.CheckOut,
				RentalDays:    li.RentalDays,
				DailyRate:     li.DailyRate,
				TotalPrice:    li.Total(),
				CustomerName:  form.FullName(),
				CustomerEmail: form.Email,
				CustomerPhone: form.Phone,
				Status:        models.BookingConfirmed,
			})
		}
	}
	return order, nil
}

// snapshotFor freezes the cart with display names joined in from the live
// catalog.
func (s *CheckoutService) snapshotFor(c *cart.Cart, totals pricing.Totals) (*cart.Snapshot, error) {
	var productIDs, padIDs []string
	for _, li := range c.Items() {
		if li.Kind == cart.KindProduct {
			productIDs = append(productIDs, li.ItemID)
		} else {
			padIDs = append(padIDs, li.ItemID)
		}
	}
	names := make(map[string]string)
	products, err := s.productRepo.GetByIDs(productIDs)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		names[p.ID] = p.Name
	}
	pads, err := s.crashpadRepo.GetByIDs(padIDs)
	if err != nil {
		return nil, err
	}
	for _, pad := range pads {
		names[pad.ID] = pad.Name
	}
	return cart.NewSnapshot(c, totals, names), nil
}

// publishConfirmations emits the confirmation email events. Failures are
// logged, never fatal: the order is already committed.
func (s *CheckoutService) publishConfirmations(order *models.Order) {
	if s.events == nil {
		log.Printf("Event publisher not configured, skipping confirmation events for order %s", order.OrderNumber)
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"order_number": order.OrderNumber,
		"email":        order.Email,
		"first_name":   order.FirstName,
		"grand_total":  order.GrandTotal,
		"order_type":   order.OrderType,
	})
	if err == nil {
		if err := s.events.Publish(rabbitmq.RouteOrderConfirmed, body); err != nil {
			log.Printf("Failed to publish order confirmation for %s: %v", order.OrderNumber, err)
		}
	}

	if len(order.Bookings) == 0 {
		return
	}
	type bookingInfo struct {
		BookingNumber string `json:"booking_number"`
		CrashpadID    string `json:"crashpad_id"`
		CheckIn       string `json:"check_in"`
		CheckOut      string `json:"check_out"`
	}
	bookings := make([]bookingInfo, 0, len(order.Bookings))
	for _, b := range order.Bookings {
		bookings = append(bookings, bookingInfo{
			BookingNumber: b.BookingNumber,
			CrashpadID:    b.CrashpadID,
			CheckIn:       b.CheckIn.Format(cart.DateLayout),
			CheckOut:      b.CheckOut.Format(cart.DateLayout),
		})
	}
	body, err = json.Marshal(map[string]interface{}{
		"order_number": order.OrderNumber,
		"email":        order.Email,
		"bookings":     bookings,
	})
	if err == nil {
		if err := s.events.Publish(rabbitmq.RouteRentalConfirmed, body); err != nil {
			log.Printf("Failed to publish rental confirmation for %s: %v", order.OrderNumber, err)
		}
	}
}

// NotifyPaymentFailed emits a payment failure event for monitoring. Like
// the confirmations, delivery failures are logged and swallowed.
func (s *CheckoutService) NotifyPaymentFailed(intent *stripe.PaymentIntent) {
	if s.events == nil {
		return
	}
	reason := ""
	if intent.LastError != nil {
		reason = intent.LastError.Message
	}
	body, err := json.Marshal(map[string]interface{}{
		"payment_intent_id": intent.ID,
		"receipt_email":     intent.ReceiptEmail,
		"reason":            reason,
	})
	if err == nil {
		if err := s.events.Publish(rabbitmq.RoutePaymentFailed, body); err != nil {
			log.Printf("Failed to publish payment failure for %s: %v", intent.ID, err)
		}
	}
}

// generateOrderNumber builds PREFIX-YYYYMMDD-XXXXXX with six uppercase hex
// characters of entropy. Collisions are negligible and not retried; the
// payment reference, not the order number, is the idempotency key.
func (s *CheckoutService) generateOrderNumber() string {
	entropy := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("%s-%s-%s", s.cfg.OrderNumberPrefix, s.now().Format("20060102"), entropy[:6])
}

func generateBookingNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
