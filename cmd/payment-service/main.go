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

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"blendshop/internal/config"
	"blendshop/internal/kafka"
	"blendshop/internal/logger"
	"blendshop/internal/order"
	"blendshop/internal/order/db"
	rediswrap "blendshop/internal/order/redis"
	"blendshop/internal/payment"
	handlers "blendshop/internal/payment/handler"
	"blendshop/internal/payment/storage"
	"blendshop/internal/rewards"
)

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx := context.Background()

	// --- PostgreSQL Setup (shared DB, two access paths) ---
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	// Intent mirror store rides the same connection pool.
	intentStore, err := storage.NewPostgreSQLStoreWithDB(sqldb, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to init intent store: %v", err))
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
		db.New(bunDB), gateway, rewardDispatcher, notifier, orderLocks, intentStore,
		pricing, cfg.Stripe.Currency, cfg.Server.PublicBaseURL, log,
	)
	handler := handlers.NewPaymentHandler(service, log)

	// --- Setup Router ---
	router := gin.Default()

	payments := router.Group("/payments")
	{
		payments.POST("/create-intent", handler.CreateIntent)
		payments.GET("/status/:orderId", handler.Status)
		payments.POST("/webhook", handler.Webhook)
		payments.POST("/sync/:orderId", handler.Sync)
	}

	router.GET("/health", func(c *gin.Context) {
		if err := intentStore.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "up"})
	})

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Payment service running on %s", cfg.Server.Port))
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
	log.Info("SERVER", "Payment service exited gracefully")
}
