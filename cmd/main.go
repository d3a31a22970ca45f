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

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/lumapay/bnpl-gateway/internal/api"
	"github.com/lumapay/bnpl-gateway/internal/config"
	"github.com/lumapay/bnpl-gateway/internal/handlers"
	"github.com/lumapay/bnpl-gateway/internal/locker"
	"github.com/lumapay/bnpl-gateway/internal/provider"
	"github.com/lumapay/bnpl-gateway/internal/repository"
	"github.com/lumapay/bnpl-gateway/internal/service"
	"github.com/lumapay/bnpl-gateway/internal/telemetry"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry("bnpl-gateway", cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting BNPL Gateway")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})

	// Initialize order store
	carts := repository.NewRedisCartStore(redisClient)
	store := repository.NewOrderRepository(db, carts)
	if err := store.InitDB(); err != nil {
		telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Connect to Kafka
	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers),
		Topic:    service.StatusChangedTopic,
		Balancer: &kafka.LeastBytes{},
	}
	defer kafkaWriter.Close()

	// Provider client and reconciler
	providerClient := provider.NewClient(cfg.ProviderBaseURL, cfg.ActiveSecretKey)
	locks := locker.NewRedisLocker(redisClient)
	events := service.NewKafkaPublisher(kafkaWriter)

	reconciler := service.NewReconciler(store, providerClient, locks, events, service.Config{
		PublicKey:           cfg.ActivePublicKey,
		AutocompleteOrders:  cfg.AutocompleteOrders,
		ReturnURLBase:       cfg.ReturnURLBase,
		CartURL:             cfg.CartURL,
		CallbackURL:         cfg.CallbackURL,
		SupportedCurrencies: cfg.SupportedCurrencies,
	}, telemetry.Logger)

	// Initialize handlers and router
	gateway := handlers.NewGatewayHandler(reconciler, telemetry.Logger)
	state := handlers.NewOrderStateHandler(store)
	r := api.NewRouter(gateway, state)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("BNPL Gateway starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}
