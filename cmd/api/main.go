package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/consumer"
	"github.com/fjod/storefront/internal/domain"
	healthgrpc "github.com/fjod/storefront/internal/grpc"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/mailer"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/service"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	productCacheTTL = 10 * time.Minute
	cartCacheTTL    = 30 * time.Minute
	breakerFailures = 5
	breakerOpenFor  = 30 * time.Second
	healthInterval  = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("storefront exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logger.New(cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MongoDB
	if err := repository.RunMigrations(cfg.MongoURI, cfg.MongoDBName); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	client, err := repository.ConnectMongoDB(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	store := repository.NewStore(client, cfg.MongoDBName)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			slog.Error("failed to disconnect from MongoDB", "error", err)
		}
	}()
	slog.Info("connected to MongoDB", "database", cfg.MongoDBName)

	db := store.Database()
	users := repository.NewUserRepository(db)
	addresses := repository.NewAddressRepository(db)
	categories := repository.NewCategoryRepository(db)
	products := repository.NewProductRepository(db)
	carts := repository.NewCartRepository(db)
	orders := repository.NewOrderRepository(db)
	payments := repository.NewPaymentRepository(db)
	ratings := repository.NewRatingRepository(db)
	outbox := repository.NewOutboxRepository(db)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// the breaker keeps requests flowing without the cache
		slog.Warn("redis ping failed, continuing without a warm cache", "error", err)
	} else {
		slog.Info("redis ping succeeded", "addr", cfg.RedisAddr)
	}

	productCache := cache.NewBreakerCache[domain.Product]("product-cache",
		cache.NewRedisCache[domain.Product](redisClient, cache.ProductPrefix, productCacheTTL), breakerFailures, breakerOpenFor)
	cartCache := cache.NewBreakerCache[domain.Cart]("cart-cache",
		cache.NewRedisCache[domain.Cart](redisClient, cache.CartPrefix, cartCacheTTL), breakerFailures, breakerOpenFor)

	// Services
	var sender mailer.Sender = mailer.LogSender{}
	if cfg.SMTPHost != "" {
		sender = mailer.NewSMTPSender(mailer.SMTPConfig{Host: cfg.SMTPHost, Port: cfg.SMTPPort, From: cfg.SMTPFrom})
	}
	tokens := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	userService := service.NewUserService(users, tokens, auth.NewPasswordHasher(cfg.BcryptCost), sender,
		cfg.PublicBaseURL+"/api/v1/users/verify-email")

	catalogService := service.NewCatalogService(categories, products, productCache)
	cartService := service.NewCartService(carts, products, cartCache)
	orderService := service.NewOrderService(service.OrderDeps{
		Tx:           store,
		Carts:        carts,
		Products:     products,
		Orders:       orders,
		Users:        users,
		Outbox:       outbox,
		CartCache:    cartCache,
		ProductCache: productCache,
	})
	paymentService := service.NewPaymentService(store, orders, payments, outbox, cfg.PaymentSecret)
	ratingService := service.NewRatingService(store, ratings, products, users, productCache)
	addressService := service.NewAddressService(store, addresses)

	// HTTP
	timeout := cfg.RequestTimeout
	router := h.NewRouter(h.Handlers{
		Users: h.NewUserHandler(userService, h.CookieConfig{
			Secure:     cfg.CookieSecure,
			AccessTTL:  cfg.AccessTokenTTL,
			RefreshTTL: cfg.RefreshTokenTTL,
		}, timeout),
		Addresses: h.NewAddressHandler(addressService, timeout),
		Catalog:   h.NewCatalogHandler(catalogService, timeout),
		Carts:     h.NewCartHandler(cartService, timeout),
		Orders:    h.NewOrdersHandler(orderService, timeout),
		Payments:  h.NewPaymentHandler(paymentService, timeout),
		Ratings:   h.NewRatingHandler(ratingService, timeout),
	}, userService, timeout, cfg.MaxRequestBodySize)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC health
	healthServer := healthgrpc.NewHealthServer(map[string]healthgrpc.Check{
		"mongo": store.Ping,
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}, healthInterval)
	grpcServer := healthgrpc.NewServer(healthServer)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen on grpc port: %w", err)
	}

	// Kafka
	poller := publisher.NewOutboxPoller(outbox, publisher.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...), cfg.OutboxInterval)
	invalidator := consumer.NewCacheInvalidator(consumer.NewKafkaReader(cfg.KafkaTopic, cfg.KafkaBrokers...), productCache, cartCache)

	var wg sync.WaitGroup
	serveErr := make(chan error, 2)

	wg.Add(4)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		invalidator.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		healthServer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		slog.Info("gRPC health server listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			serveErr <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		slog.Info("storefront API listening", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err = <-serveErr:
		slog.Error("server failed, shutting down", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Error("http server forced to shutdown", "error", shutdownErr)
	}
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	invalidator.Close()

	wg.Wait()
	if closeErr := poller.Close(); closeErr != nil {
		slog.Error("failed to close kafka writer", "error", closeErr)
	}
	slog.Info("storefront stopped")
	return err
}
