package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/lib/pq"

	"github.com/wakilipro/booking-api/internal/config"
	"github.com/wakilipro/booking-api/internal/email"
	"github.com/wakilipro/booking-api/internal/model"
	"github.com/wakilipro/booking-api/internal/repository/postgres"
	escrowService "github.com/wakilipro/booking-api/internal/service/escrow"
	eventService "github.com/wakilipro/booking-api/internal/service/event"
	notificationService "github.com/wakilipro/booking-api/internal/service/notification"
	domainworker "github.com/wakilipro/booking-api/internal/worker"
	"github.com/wakilipro/booking-api/pkg/clock"
	"github.com/wakilipro/booking-api/pkg/logger"
	"github.com/wakilipro/booking-api/pkg/messaging"
	"github.com/wakilipro/booking-api/pkg/messaging/redis"
	"github.com/wakilipro/booking-api/pkg/metrics"
	"github.com/wakilipro/booking-api/pkg/worker"
)

const sweepInterval = time.Hour

// Lifecycle channels the notification sink consumes.
var sinkEvents = []string{
	model.EventBookingCreated,
	model.EventPaymentConfirmed,
	model.EventCompletionConfirmed,
	model.EventBookingCompleted,
	model.EventBookingCancelled,
	model.EventBookingRescheduled,
	model.EventEscrowReleased,
	model.EventEscrowRefunded,
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	appLogger := &logger.Logger{ZL: log.Logger}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create redis broker")
	}
	defer broker.Close()

	bookingRepo := postgres.NewBookingRepository(db)
	escrowRepo := postgres.NewEscrowRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	m := metrics.New("worker")
	clk := clock.New()

	eventSvc := eventService.NewService(outboxRepo, appLogger)
	escrowSvc := escrowService.NewService(escrowRepo, bookingRepo, eventSvc, clk, m, appLogger)

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:       cfg.Outbox.BatchSize,
			PollInterval:    time.Duration(cfg.Outbox.PollIntervalSeconds) * time.Second,
			RetryAttempts:   cfg.Outbox.RetryAttempts,
			RetryDelay:      time.Duration(cfg.Outbox.RetryDelaySeconds) * time.Second,
			CleanupInterval: time.Duration(cfg.Outbox.CleanupIntervalHours) * time.Hour,
			RetentionPeriod: time.Duration(cfg.Outbox.RetentionDays) * 24 * time.Hour,
		},
		appLogger,
		m,
	)

	sweep := domainworker.NewEscrowSweepWorker(
		bookingRepo,
		escrowSvc,
		cfg.Booking.EscrowAutoRelease(),
		sweepInterval,
		clk,
		appLogger,
	)

	emailSvc := email.NewSMTPService(cfg.Email)
	notificationSvc := notificationService.NewService(notificationRepo, emailSvc, broker, clk, appLogger)

	setupHealthCheck(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("shutting down worker")
		cancel()
	}()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweep.Start(ctx)
	}()

	for _, eventType := range sinkEvents {
		wg.Add(1)
		go func(eventType string) {
			defer wg.Done()
			consumeEvents(ctx, broker, notificationSvc, eventType, appLogger)
		}(eventType)
	}

	wg.Wait()
}

func consumeEvents(ctx context.Context, broker messaging.Broker, sink notificationService.Service, eventType string, logger *logger.Logger) {
	messages, err := broker.Subscribe(ctx, eventType)
	if err != nil {
		logger.Error(err, "failed to subscribe", "event_type", eventType)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-messages:
			if !ok {
				return
			}
			if err := sink.HandleLifecycleEvent(ctx, eventType, payload); err != nil {
				logger.Error(err, "failed to handle lifecycle event", "event_type", eventType)
			}
		}
	}
}

func setupHealthCheck(logger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			logger.ZL.Error().Err(err).Msg("health check server failed")
			os.Exit(1)
		}
	}()
}
