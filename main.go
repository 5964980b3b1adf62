package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dimispapa/bouldering-cyprus/internal/config"
	"github.com/dimispapa/bouldering-cyprus/internal/handlers"
	"github.com/dimispapa/bouldering-cyprus/internal/middleware"
	"github.com/dimispapa/bouldering-cyprus/internal/models"
	"github.com/dimispapa/bouldering-cyprus/internal/pricing"
	"github.com/dimispapa/bouldering-cyprus/internal/repositories"
	"github.com/dimispapa/bouldering-cyprus/internal/services"
	"github.com/dimispapa/bouldering-cyprus/pkg/rabbitmq"
	"github.com/dimispapa/bouldering-cyprus/pkg/stripe"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- Database ---
	// TranslateError is required: order reconciliation relies on unique
	// constraint violations surfacing as gorm.ErrDuplicatedKey.
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Product{},
		&models.Crashpad{},
		&models.Order{},
		&models.OrderItem{},
		&models.CrashpadBooking{},
		&models.User{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// --- RabbitMQ ---
	mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
	if err != nil {
		log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
	}
	defer mqClient.Close()

	// --- Payment gateway ---
	gateway := stripe.NewClient(stripe.Config{
		APIKey:  cfg.StripeSecretKey,
		BaseURL: cfg.StripeAPIBase,
	})

	// --- Repositories ---
	productRepo := repositories.NewGORMProductRepository(db)
	crashpadRepo := repositories.NewGORMCrashpadRepository(db)
	bookingRepo := repositories.NewGORMBookingRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	// --- Services ---
	engine := pricing.NewEngine(cfg.FreeDeliveryThreshold, cfg.StandardDeliveryPercentage, cfg.RentalHandlingFee)
	availability := services.NewAvailabilityService(productRepo, crashpadRepo, bookingRepo)
	checkoutService := services.NewCheckoutService(
		orderRepo, productRepo, crashpadRepo, availability, engine, gateway, mqClient,
		services.CheckoutConfig{
			Currency:          cfg.Currency,
			OrderNumberPrefix: cfg.OrderNumberPrefix,
			Retries:           cfg.OrderCreationRetries,
			RetryDelay:        cfg.OrderCreationRetryDelay,
		},
	)
	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(orderRepo)
	authService := services.NewAuthService(userRepo, cfg.JWTSecret)

	if err := authService.SeedAdmin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("Failed to seed admin account: %v", err)
	}

	// --- Handlers ---
	store := session.New()
	cartHandler := handlers.NewCartHandler(store, productRepo, crashpadRepo, engine)
	checkoutHandler := handlers.NewCheckoutHandler(store, checkoutService)
	webhookHandler := handlers.NewWebhookHandler(checkoutService, cfg.StripeWebhookSecret)
	productHandler := handlers.NewProductHandler(productService)
	rentalHandler := handlers.NewRentalHandler(crashpadRepo, availability)
	orderHandler := handlers.NewOrderHandler(orderService)
	authHandler := handlers.NewAuthHandler(authService)

	// --- Fiber app ---
	app := fiber.New()
	app.Use(logger.New())

	apiV1 := app.Group("/api/v1")
	productHandler.RegisterRoutes(apiV1)
	rentalHandler.RegisterRoutes(apiV1)
	cartHandler.RegisterRoutes(apiV1)
	checkoutHandler.RegisterRoutes(apiV1)
	webhookHandler.RegisterRoutes(apiV1)
	authHandler.RegisterRoutes(apiV1)

	adminV1 := apiV1.Group("/admin", middleware.AuthRequired(authService))
	orderHandler.RegisterRoutes(adminV1)
	productHandler.RegisterAdminRoutes(adminV1)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Confirmation email consumer ---
	// Order and rental confirmations arrive as checkout events; this
	// consumer is where the mailer hangs off.
	go func() {
		log.Println("Starting checkout event consumer...")
		messageHandler := func(msg amqp.Delivery) error {
			log.Printf("Checkout event %s: %s", msg.RoutingKey, string(msg.Body))
			return nil
		}
		if consumerErr := mqClient.ConsumeCheckoutEvents(messageHandler); consumerErr != nil {
			log.Printf("Failed to start checkout event consumer: %v", consumerErr)
		}
	}()

	// --- Start HTTP server ---
	log.Printf("Starting server on %s", cfg.AppPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}
