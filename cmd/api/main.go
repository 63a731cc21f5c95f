package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront-backend/internal/api"
	"github.com/example/storefront-backend/internal/auth"
	"github.com/example/storefront-backend/internal/config"
	"github.com/example/storefront-backend/internal/domain/coupon"
	"github.com/example/storefront-backend/internal/domain/order"
	"github.com/example/storefront-backend/internal/domain/user"
	"github.com/example/storefront-backend/internal/infrastructure/kafka"
	"github.com/example/storefront-backend/internal/infrastructure/store"
)

func main() {
	log := logrus.WithField("component", "api")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	db, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to PostgreSQL")
	}
	defer db.Close()

	if err := store.Migrate(db, cfg.MigrationsDir); err != nil {
		log.WithError(err).Fatal("failed to apply migrations")
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	orderSvc := order.NewService(store.NewOrderStore(db), producer, order.Policy{
		AllowCancelFulfilled: cfg.AllowCancelFulfilled,
	})
	userSvc := user.NewService(store.NewUserStore(db))
	couponSvc := coupon.NewService(store.NewCouponStore(db))

	verifier := auth.NewVerifier(cfg.JWTSecret)
	authorizer := auth.NewAuthorizer(cfg.AdminEmails)

	handlers := api.NewHandlers(orderSvc, userSvc, couponSvc, authorizer)
	router := api.NewRouter(handlers, verifier, authorizer, cfg.APIKeys)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}
