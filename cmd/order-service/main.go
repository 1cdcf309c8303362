package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"blendshop/internal/auth"
	"blendshop/internal/config"
	"blendshop/internal/database/migrations"
	"blendshop/internal/kafka"
	"blendshop/internal/logger"
	"blendshop/internal/order"
	"blendshop/internal/order/api"
	"blendshop/internal/order/db"
	rediswrap "blendshop/internal/order/redis"
	"blendshop/internal/payment"
	"blendshop/internal/rewards"
)

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx := context.Background()

	// --- PostgreSQL Setup ---
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		defer runner.Close()
	}

	// --- Redis Setup ---
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	orderLocks := rediswrap.NewRedis(redisClient)

	// --- Kafka Setup ---
	var notifier order.Notifier
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topics.OrderNotifications}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic provisioning failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		notifier = kafka.NewNotifier(producer, cfg.Kafka.Topics.OrderNotifications)
	}

	// --- Payment Gateway ---
	gateway, err := payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, log)
	if err != nil {
		log.Fatal("PAYMENT", fmt.Sprintf("Failed to init gateway: %v", err))
	}

	// --- Order Service ---
	rewardDispatcher := rewards.NewDispatcher(rewards.Config{EarnRateBasis: cfg.Rewards.EarnRateBasis}, log)
	pricing := order.PricingRules{
		ShippingFlatCents:    cfg.Pricing.ShippingFlatCents,
		FreeShippingMinCents: cfg.Pricing.FreeShippingMinCents,
		TaxRateBasis:         cfg.Pricing.TaxRateBasis,
	}
	service := order.NewOrderService(
		db.New(bunDB), gateway, rewardDispatcher, notifier, orderLocks, nil,
		pricing, cfg.Stripe.Currency, cfg.Server.PublicBaseURL, log,
	)
	handler := &api.Handler{OrderService: service}

	// --- Setup Router ---
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware())
			r.Post("/orders", handler.CreateOrder)
			r.Get("/orders", handler.ListOrders)
			r.Get("/orders/{orderId}", handler.GetOrder)
		})

		r.Route("/admin/orders/{orderId}", func(r chi.Router) {
			r.Use(auth.AdminMiddleware())
			r.Post("/ship", handler.ShipOrder)
			r.Post("/complete", handler.CompleteOrder)
			r.Post("/cancel", handler.CancelOrder)
			r.Post("/refund", handler.RefundOrder)
		})
	})

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Order service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "Shutdown signal received, cleaning up")

	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("SERVER", fmt.Sprintf("Forced shutdown: %v", err))
	}
	log.Info("SERVER", "Order service exited gracefully")
}
