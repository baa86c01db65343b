package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	availabilityHandler "github.com/wakilipro/booking-api/internal/handler/availability"
	bookingHandler "github.com/wakilipro/booking-api/internal/handler/booking"
	healthHandler "github.com/wakilipro/booking-api/internal/handler/health"
	paymentHandler "github.com/wakilipro/booking-api/internal/handler/payment"
	providerHandler "github.com/wakilipro/booking-api/internal/handler/provider"

	"github.com/wakilipro/booking-api/internal/config"
	"github.com/wakilipro/booking-api/internal/middleware"
	"github.com/wakilipro/booking-api/internal/repository/postgres"
	redisrepo "github.com/wakilipro/booking-api/internal/repository/redis"
	"github.com/wakilipro/booking-api/internal/router"
	availabilityService "github.com/wakilipro/booking-api/internal/service/availability"
	bookingService "github.com/wakilipro/booking-api/internal/service/booking"
	escrowService "github.com/wakilipro/booking-api/internal/service/escrow"
	eventService "github.com/wakilipro/booking-api/internal/service/event"
	providerService "github.com/wakilipro/booking-api/internal/service/provider"
	"github.com/wakilipro/booking-api/pkg/auth"
	"github.com/wakilipro/booking-api/pkg/clock"
	"github.com/wakilipro/booking-api/pkg/logger"
	"github.com/wakilipro/booking-api/pkg/metrics"
	"github.com/wakilipro/booking-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse redis URL")
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	bookingRepo := postgres.NewBookingRepository(db)
	availabilityRepo := postgres.NewAvailabilityRepository(db)
	escrowRepo := postgres.NewEscrowRepository(db)
	providerRepo := postgres.NewProviderRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	refStore := redisrepo.NewReferenceStore(redisClient)

	m := metrics.New("api")
	clk := clock.New()

	eventSvc := eventService.NewService(outboxRepo, appLogger)
	availabilitySvc := availabilityService.NewService(availabilityRepo, bookingRepo, eventSvc, clk, cfg.Booking, appLogger)
	escrowSvc := escrowService.NewService(escrowRepo, bookingRepo, eventSvc, clk, m, appLogger)
	providerSvc := providerService.NewService(providerRepo, time.Duration(cfg.Booking.ProviderCacheTTLMin)*time.Minute)
	bookingSvc := bookingService.NewService(
		bookingRepo, availabilitySvc, providerSvc, escrowSvc,
		eventSvc, refStore, clk, cfg.Booking, m, appLogger,
	)

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)

	var webhookVerifier security.SecretVerifier
	if cfg.Payment.WebhookSecretHash != "" {
		webhookVerifier = security.NewBcryptVerifier(cfg.Payment.WebhookSecretHash)
	}

	r := router.NewRouter(
		authMiddleware,
		bookingHandler.NewHandler(bookingSvc),
		availabilityHandler.NewHandler(availabilitySvc),
		providerHandler.NewHandler(providerSvc),
		paymentHandler.NewHandler(bookingSvc, webhookVerifier),
		healthHandler.NewHandler(db, redisClient),
		router.RouterConfig{
			RateLimit:     rate.Limit(cfg.Server.RateLimitRPS),
			RateBurst:     cfg.Server.RateLimitBurst,
			Timeout:       time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			CORSConfig:    middleware.DefaultCORSConfig(),
			MetricsPrefix: "wakili_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	appLogger.Info("server started", "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
