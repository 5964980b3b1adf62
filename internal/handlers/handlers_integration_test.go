package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dimispapa/bouldering-cyprus/internal/handlers"
	"github.com/dimispapa/bouldering-cyprus/internal/middleware"
	"github.com/dimispapa/bouldering-cyprus/internal/models"
	"github.com/dimispapa/bouldering-cyprus/internal/pricing"
	"github.com/dimispapa/bouldering-cyprus/internal/repositories"
	"github.com/dimispapa/bouldering-cyprus/internal/services"
	"github.com/dimispapa/bouldering-cyprus/pkg/stripe"
)

const testWebhookSecret = "whsec_test_secret"

// fakeGateway is an in-memory payment gateway. Tests flip an intent to
// succeeded to simulate the customer completing payment.
type fakeGateway struct {
	mu      sync.Mutex
	intents map[string]*stripe.PaymentIntent
	seq     int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: make(map[string]*stripe.PaymentIntent)}
}

func (g *fakeGateway) CreateIntent(_ context.Context, params stripe.IntentParams) (*stripe.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	intent := &stripe.PaymentIntent{
		ID:           fmt.Sprintf("pi_test_%d", g.seq),
		ClientSecret: fmt.Sprintf("pi_test_%d_secret", g.seq),
		Status:       "requires_payment_method",
		Amount:       params.Amount,
		Currency:     params.Currency,
		Metadata:     params.Metadata,
	}
	g.intents[intent.ID] = intent
	return intent, nil
}

func (g *fakeGateway) RetrieveIntent(_ context.Context, id string) (*stripe.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		return nil, &stripe.APIError{StatusCode: 404, Message: "no such payment_intent"}
	}
	return intent, nil
}

func (g *fakeGateway) ModifyIntent(_ context.Context, id string, params stripe.IntentParams) (*stripe.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		return nil, &stripe.APIError{StatusCode: 404, Message: "no such payment_intent"}
	}
	intent.Amount = params.Amount
	intent.Metadata = params.Metadata
	return intent, nil
}

func (g *fakeGateway) succeed(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id].Status = stripe.StatusSucceeded
}

type testEnv struct {
	app     *fiber.App
	db      *gorm.DB
	gateway *fakeGateway
	auth    *services.AuthService
}

// setupApp wires the full application against in-memory SQLite and the fake
// gateway, mirroring the production composition.
func setupApp(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.Crashpad{},
		&models.Order{},
		&models.OrderItem{},
		&models.CrashpadBooking{},
		&models.User{},
	))

	productRepo := repositories.NewGORMProductRepository(db)
	crashpadRepo := repositories.NewGORMCrashpadRepository(db)
	bookingRepo := repositories.NewGORMBookingRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	engine := pricing.NewEngine(dec("50.00"), dec("10"), dec("2.50"))
	availability := services.NewAvailabilityService(productRepo, crashpadRepo, bookingRepo)
	gateway := newFakeGateway()
	checkoutService := services.NewCheckoutService(
		orderRepo, productRepo, crashpadRepo, availability, engine, gateway, nil,
		services.CheckoutConfig{
			Currency:          "eur",
			OrderNumberPrefix: "BC",
			Retries:           3,
			RetryDelay:        time.Millisecond,
		},
	)
	authService := services.NewAuthService(userRepo, "test_jwt_secret")
	require.NoError(t, authService.SeedAdmin("admin@example.com", "admin_password"))

	store := session.New()
	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	handlers.NewProductHandler(services.NewProductService(productRepo)).RegisterRoutes(apiV1)
	handlers.NewRentalHandler(crashpadRepo, availability).RegisterRoutes(apiV1)
	handlers.NewCartHandler(store, productRepo, crashpadRepo, engine).RegisterRoutes(apiV1)
	handlers.NewCheckoutHandler(store, checkoutService).RegisterRoutes(apiV1)
	handlers.NewWebhookHandler(checkoutService, testWebhookSecret).RegisterRoutes(apiV1)
	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1)

	adminV1 := apiV1.Group("/admin", middleware.AuthRequired(authService))
	handlers.NewOrderHandler(services.NewOrderService(orderRepo)).RegisterRoutes(adminV1)

	return &testEnv{app: app, db: db, gateway: gateway, auth: authService}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:       uuid.New().String(),
		Name:     name,
		Slug:     uuid.New().String(),
		Price:    dec(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedCrashpad(t *testing.T, db *gorm.DB, name string) *models.Crashpad {
	t.Helper()
	pad := &models.Crashpad{
		ID:              uuid.New().String(),
		Name:            name,
		DayRate:         dec("5.00"),
		SevenDayRate:    dec("4.00"),
		FourteenDayRate: dec("3.00"),
	}
	require.NoError(t, db.Create(pad).Error)
	return pad
}

// client carries the session cookie across requests, like a browser.
type client struct {
	t       *testing.T
	app     *fiber.App
	cookies []*http.Cookie
}

func (c *client) do(method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	if set := resp.Cookies(); len(set) > 0 {
		c.cookies = set
	}

	var decoded map[string]interface{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	resp.Body.Close()
	if len(data) > 0 {
		// Redirect responses have no JSON body.
		_ = json.Unmarshal(data, &decoded)
	}
	return resp, decoded
}

func checkoutForm() map[string]interface{} {
	return map[string]interface{}{
		"first_name":    "Dimi",
		"last_name":     "Papa",
		"email":         "dimi@example.com",
		"phone":         "+35799123456",
		"address_line1": "1 Limestone Way",
		"town_or_city":  "Nicosia",
		"postal_code":   "1010",
		"country":       "CY",
	}
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestCartEndpoints(t *testing.T) {
	env := setupApp(t)
	p := seedProduct(t, env.db, "Chalk Bag", "19.99", 5)
	pad := seedCrashpad(t, env.db, "Mondo")
	c := &client{t: t, app: env.app}

	resp, body := c.do(http.MethodPost, "/api/v1/cart/products/"+p.ID, map[string]interface{}{"quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["item_count"])

	resp, body = c.do(http.MethodPost, "/api/v1/cart/rentals/"+pad.ID, map[string]interface{}{
		"check_in":  "2030-06-01",
		"check_out": "2030-06-07",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), body["item_count"])
	assert.Equal(t, "MIXED", body["order_type"])

	totals := body["totals"].(map[string]interface{})
	// 39.98 products + 28.00 rental, 4.00 delivery, 2.50 handling.
	assert.Equal(t, "67.98", totals["cart_total"])
	assert.Equal(t, "4", totals["delivery_cost"])
	assert.Equal(t, "2.5", totals["handling_fee"])
	assert.Equal(t, "74.48", totals["grand_total"])

	// Requesting more than stock is rejected at the cart boundary.
	resp, body = c.do(http.MethodPost, "/api/v1/cart/products/"+p.ID, map[string]interface{}{"quantity": 10, "update": true})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["message"], "only has 5 items in stock")

	resp, body = c.do(http.MethodDelete, "/api/v1/cart/product/"+p.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["item_count"])
	assert.Equal(t, "RENTALS_ONLY", body["order_type"])
}

func TestAvailableCrashpadsEndpoint(t *testing.T) {
	env := setupApp(t)
	seedCrashpad(t, env.db, "Mondo")
	c := &client{t: t, app: env.app}

	resp, body := c.do(http.MethodGet, "/api/v1/crashpads/available?check_in=2030-06-01&check_out=2030-06-05", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["crashpads"], 1)

	resp, _ = c.do(http.MethodGet, "/api/v1/crashpads/available?check_in=2030-06-05&check_out=2030-06-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/api/v1/crashpads/available?check_in=bogus&check_out=2030-06-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckoutRedirectFlow(t *testing.T) {
	env := setupApp(t)
	p := seedProduct(t, env.db, "Chalk Bag", "19.99", 5)
	c := &client{t: t, app: env.app}

	resp, _ := c.do(http.MethodPost, "/api/v1/cart/products/"+p.ID, map[string]interface{}{"quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := c.do(http.MethodPost, "/api/v1/checkout/intent", checkoutForm())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	piid := body["payment_intent_id"].(string)
	assert.NotEmpty(t, body["client_secret"])

	env.gateway.succeed(piid)

	resp, body = c.do(http.MethodGet, "/api/v1/checkout/success?payment_intent="+piid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["created"])
	orderNumber := body["order_number"].(string)
	assert.Regexp(t, `^BC-\d{8}-[0-9A-F]{6}$`, orderNumber)

	// The session cart is gone after a successful checkout.
	resp, body = c.do(http.MethodGet, "/api/v1/cart/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["item_count"])

	// Refreshing the success page returns the same order without creating
	// another one. The session is empty now, so the data comes back out of
	// the intent metadata.
	resp, body = c.do(http.MethodGet, "/api/v1/checkout/success?payment_intent="+piid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["created"])
	assert.Equal(t, orderNumber, body["order_number"])

	var count int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	var reloaded models.Product
	require.NoError(t, env.db.First(&reloaded, "id = ?", p.ID).Error)
	assert.Equal(t, 3, reloaded.Stock)
}

func TestCheckoutRedirectRejectsUnpaidIntent(t *testing.T) {
	env := setupApp(t)
	p := seedProduct(t, env.db, "Chalk Bag", "19.99", 5)
	c := &client{t: t, app: env.app}

	c.do(http.MethodPost, "/api/v1/cart/products/"+p.ID, map[string]interface{}{"quantity": 1})
	resp, body := c.do(http.MethodPost, "/api/v1/checkout/intent", checkoutForm())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	piid := body["payment_intent_id"].(string)

	// Payment never completed: back to checkout, no order created.
	resp, _ = c.do(http.MethodGet, "/api/v1/checkout/success?payment_intent="+piid, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "/checkout?error=")

	var count int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckoutIntentValidation(t *testing.T) {
	env := setupApp(t)
	p := seedProduct(t, env.db, "Chalk Bag", "19.99", 5)
	c := &client{t: t, app: env.app}

	// Empty cart.
	resp, body := c.do(http.MethodPost, "/api/v1/checkout/intent", checkoutForm())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Your cart is empty", body["message"])

	// Invalid form.
	c.do(http.MethodPost, "/api/v1/cart/products/"+p.ID, map[string]interface{}{"quantity": 1})
	form := checkoutForm()
	form["email"] = "not-an-email"
	resp, body = c.do(http.MethodPost, "/api/v1/checkout/intent", form)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Validation failed", body["message"])
}

func signedWebhookRequest(t *testing.T, intent *stripe.PaymentIntent) *http.Request {
	t.Helper()
	object, err := json.Marshal(intent)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]interface{}{
		"id":      "evt_" + intent.ID,
		"type":    stripe.EventPaymentSucceeded,
		"created": time.Now().Unix(),
		"data":    map[string]interface{}{"object": json.RawMessage(object)},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", stripe.SignPayload(payload, testWebhookSecret, time.Now()))
	return req
}

func TestWebhookCreatesOrderFirst(t *testing.T) {
	env := setupApp(t)
	p := seedProduct(t, env.db, "Chalk Bag", "19.99", 5)
	c := &client{t: t, app: env.app}

	c.do(http.MethodPost, "/api/v1/cart/products/"+p.ID, map[string]interface{}{"quantity": 2})
	resp, body := c.do(http.MethodPost, "/api/v1/checkout/intent", checkoutForm())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	piid := body["payment_intent_id"].(string)
	env.gateway.succeed(piid)
	intent, err := env.gateway.RetrieveIntent(context.Background(), piid)
	require.NoError(t, err)

	// The webhook lands before the customer's redirect.
	req := signedWebhookRequest(t, intent)
	whResp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, whResp.StatusCode)
	var whBody map[string]interface{}
	require.NoError(t, json.NewDecoder(whResp.Body).Decode(&whBody))
	whResp.Body.Close()
	assert.Equal(t, true, whBody["created"])
	orderNumber := whBody["order_number"].(string)

	// A duplicate delivery is acknowledged without a second order.
	req = signedWebhookRequest(t, intent)
	whResp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, whResp.StatusCode)
	require.NoError(t, json.NewDecoder(whResp.Body).Decode(&whBody))
	whResp.Body.Close()
	assert.Equal(t, false, whBody["created"])

	// The redirect then observes the webhook's order.
	resp, body = c.do(http.MethodGet, "/api/v1/checkout/success?payment_intent="+piid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["created"])
	assert.Equal(t, orderNumber, body["order_number"])

	var count int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	var reloaded models.Product
	require.NoError(t, env.db.First(&reloaded, "id = ?", p.ID).Error)
	assert.Equal(t, 3, reloaded.Stock)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := setupApp(t)

	payload := []byte(`{"id": "evt_1", "type": "payment_intent.succeeded"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", stripe.SignPayload(payload, "whsec_wrong", time.Now()))

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminOrderEndpoints(t *testing.T) {
	env := setupApp(t)
	c := &client{t: t, app: env.app}

	// Unauthenticated access is rejected.
	resp, _ := c.do(http.MethodGet, "/api/v1/admin/orders/", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := c.do(http.MethodPost, "/api/v1/admin/login", map[string]string{
		"email":    "admin@example.com",
		"password": "admin_password",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["token"].(string)
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authed, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, authed.StatusCode)
	authed.Body.Close()

	// Wrong credentials.
	resp, _ = c.do(http.MethodPost, "/api/v1/admin/login", map[string]string{
		"email":    "admin@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
