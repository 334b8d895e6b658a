package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/brenoghost0/dermosul-checkout/internal/cache"
	"github.com/brenoghost0/dermosul-checkout/internal/cep"
	"github.com/brenoghost0/dermosul-checkout/internal/checkout"
	"github.com/brenoghost0/dermosul-checkout/internal/config"
	"github.com/brenoghost0/dermosul-checkout/internal/gateway"
	h "github.com/brenoghost0/dermosul-checkout/internal/http"
	"github.com/brenoghost0/dermosul-checkout/internal/orders"
	"github.com/brenoghost0/dermosul-checkout/internal/publisher"
	"github.com/brenoghost0/dermosul-checkout/internal/repository"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	log.SetFormatter(&log.JSONFormatter{})
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	creds := &repository.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsDir,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	pixCache := cache.NewPixCache(redisClient)

	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.RequestTimeout)
	ordersClient := orders.NewClient(cfg.OrdersBaseURL, cfg.RequestTimeout)
	cepClient := cep.NewClient(cfg.ViaCEPBaseURL, cfg.RequestTimeout)

	paidPublisher := publisher.NewPublisher(cfg.KafkaBrokers...)
	defer paidPublisher.Close()

	svc := checkout.NewService(repo, gatewayClient, ordersClient, pixCache, paidPublisher)

	checkoutHandler := h.NewCheckoutHandler(svc, cfg.RequestTimeout)
	addressHandler := h.NewAddressHandler(cepClient, cfg.RequestTimeout)
	router := h.NewRouter(checkoutHandler, addressHandler, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("checkout service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exited")
}
