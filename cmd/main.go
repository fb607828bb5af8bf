package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/poller"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slots, closeSlots, err := openSlots(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("failed to open cart storage", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	defer closeSlots()

	registry := session.NewRegistry(slots, lg, cfg.SessionIdleTTL)
	defer registry.Close()

	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogTimeout)

	var publisher checkout.Publisher = checkout.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := checkout.NewKafkaPublisher(cfg.CheckoutTopic, cfg.KafkaBrokers...)
		defer kp.Close()
		publisher = kp

		p := poller.NewPoller(registry, lg, cfg.CheckoutCompletedTopic, cfg.KafkaBrokers...)
		defer p.Close()
		go p.Run(ctx)
		lg.Info("checkout events enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	handOff, err := checkout.NewHandOff(checkout.Config{
		Phone:          cfg.WhatsAppPhone,
		Currency:       cfg.Currency,
		ClearOnHandOff: cfg.ClearOnHandOff,
	}, publisher, lg)
	if err != nil {
		lg.Fatal("invalid checkout config", zap.Error(err))
	}

	router := h.NewRouter(
		h.RouterConfig{Service: cfg.ServiceName, RequestTimeout: cfg.RequestTimeout, Logger: lg},
		h.NewCartHandler(registry, catalogClient),
		h.NewProductHandler(catalogClient),
		h.NewCheckoutHandler(registry, handOff),
	)

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		lg.Info("storefront listening", zap.String("port", cfg.HTTPPort), zap.String("storage", cfg.StorageBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	lg.Info("shutting down storefront...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server forced to shutdown", zap.Error(err))
	}
	lg.Info("storefront stopped")
}

func openSlots(ctx context.Context, cfg *config.Config, lg *zap.Logger) (storage.Slots, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping failed: %w", err)
		}
		lg.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		return storage.NewRedisSlots(client, cfg.RedisSlotTTL), func() { client.Close() }, nil

	case config.BackendMongo:
		slots, err := storage.OpenMongoSlots(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		lg.Info("connected to mongodb", zap.String("database", cfg.MongoDBName))
		return slots, func() { slots.Close(context.Background()) }, nil

	case config.BackendSQLite:
		slots, err := storage.NewSQLiteSlots(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := slots.RunMigrations(); err != nil {
			slots.Close()
			return nil, nil, err
		}
		lg.Info("sqlite cart storage ready", zap.String("path", cfg.SQLitePath))
		return slots, func() { slots.Close() }, nil

	default:
		lg.Warn("using in-memory cart storage, carts are lost on restart")
		return storage.NewMemorySlots(), func() {}, nil
	}
}
