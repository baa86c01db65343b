package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wakilipro/booking-api/internal/email"
	"github.com/wakilipro/booking-api/internal/model"
	"github.com/wakilipro/booking-api/internal/repository"
	"github.com/wakilipro/booking-api/pkg/clock"
	"github.com/wakilipro/booking-api/pkg/logger"
	"github.com/wakilipro/booking-api/pkg/messaging"
)

const (
	maxRetries = 3
	retryDelay = 5 * time.Second

	channelEmail = "email"
	channelInApp = "in_app"
)

type Service interface {
	Send(ctx context.Context, notification *model.Notification) error
	HandleLifecycleEvent(ctx context.Context, eventType string, payload []byte) error
}

type service struct {
	repo     repository.NotificationRepository
	emailSvc email.Service
	broker   messaging.Broker
	clock    clock.Clock
	logger   *logger.Logger
}

func NewService(repo repository.NotificationRepository, emailSvc email.Service, broker messaging.Broker, clk clock.Clock, logger *logger.Logger) Service {
	return &service{
		repo:     repo,
		emailSvc: emailSvc,
		broker:   broker,
		clock:    clk,
		logger:   logger,
	}
}

// Send records the notification and dispatches it asynchronously. Delivery
// failures are retried by the sink itself and never propagate to the
// lifecycle transition that triggered them.
func (s *service) Send(ctx context.Context, notification *model.Notification) error {
	if err := s.validate(notification); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	now := s.clock.Now()
	notification.ID = uuid.New()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	notification.Status = model.NotificationStatusPending

	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	go s.dispatch(context.Background(), notification)

	return nil
}

// lifecycleEnvelope is the subset of every outbox payload the sink needs.
type lifecycleEnvelope struct {
	BookingID  uuid.UUID `json:"booking_id"`
	ClientID   uuid.UUID `json:"client_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Reason     string    `json:"reason"`
}

// HandleLifecycleEvent fans a published lifecycle event out to the affected
// parties. Unknown event types are ignored so the sink never blocks the
// outbox stream on new producers.
func (s *service) HandleLifecycleEvent(ctx context.Context, eventType string, payload []byte) error {
	var env lifecycleEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", eventType, err)
	}

	var subject, content string
	switch eventType {
	case model.EventBookingCreated:
		subject = "Consultation requested"
		content = fmt.Sprintf("A consultation request %s is awaiting payment.", env.BookingID)
	case model.EventPaymentConfirmed:
		subject = "Consultation confirmed"
		content = fmt.Sprintf("Payment received for consultation %s. The session is confirmed.", env.BookingID)
	case model.EventCompletionConfirmed:
		subject = "Completion acknowledged"
		content = fmt.Sprintf("One party has confirmed completion of consultation %s. Your confirmation releases the payout.", env.BookingID)
	case model.EventBookingCompleted:
		subject = "Consultation completed"
		content = fmt.Sprintf("Consultation %s is complete and the payout has been settled.", env.BookingID)
	case model.EventBookingCancelled:
		subject = "Consultation cancelled"
		content = fmt.Sprintf("Consultation %s was cancelled. Held funds are refunded in full.", env.BookingID)
	case model.EventBookingRescheduled:
		subject = "Consultation rescheduled"
		content = fmt.Sprintf("Consultation %s has been moved. Check your dashboard for the new time.", env.BookingID)
	case model.EventEscrowReleased:
		subject = "Payout released"
		if env.Reason == model.ReleaseReasonAutoTimeout {
			content = fmt.Sprintf("The payout for consultation %s was released after the resolution window elapsed.", env.BookingID)
		} else {
			content = fmt.Sprintf("The payout for consultation %s has been released to the provider.", env.BookingID)
		}
	case model.EventEscrowRefunded:
		subject = "Payment refunded"
		content = fmt.Sprintf("The held payment for consultation %s was refunded to the client.", env.BookingID)
	default:
		s.logger.Debug("ignoring lifecycle event with no notification mapping", "event_type", eventType)
		return nil
	}

	for _, userID := range []uuid.UUID{env.ClientID, env.ProviderID} {
		if userID == uuid.Nil {
			continue
		}
		n := &model.Notification{
			UserID:    userID,
			BookingID: &env.BookingID,
			Channel:   channelInApp,
			Subject:   subject,
			Content:   content,
			Recipient: userID.String(),
		}
		if err := s.Send(ctx, n); err != nil {
			// Sink failures must never surface to the producer.
			s.logger.Error(err, "failed to enqueue lifecycle notification",
				"event_type", eventType, "user_id", userID.String())
		}
	}
	return nil
}

func (s *service) dispatch(ctx context.Context, notification *model.Notification) {
	var err error
	switch notification.Channel {
	case channelEmail:
		err = s.emailSvc.SendCustom(ctx, notification.Recipient, notification.Subject, notification.Content)
	case channelInApp:
		err = s.broker.Publish(ctx, "notifications", notification)
	default:
		err = fmt.Errorf("unsupported channel: %s", notification.Channel)
	}

	if err != nil {
		s.handleError(ctx, notification, err)
		return
	}

	now := s.clock.Now()
	notification.Status = model.NotificationStatusSent
	notification.SentAt = &now
	notification.UpdatedAt = now

	if err := s.repo.Update(ctx, notification); err != nil {
		s.logger.Error(err, "failed to mark notification sent", "id", notification.ID.String())
	}
}

func (s *service) handleError(ctx context.Context, notification *model.Notification, sendErr error) {
	now := s.clock.Now()
	notification.RetryCount++
	msg := sendErr.Error()
	notification.LastError = &msg
	notification.UpdatedAt = now

	if notification.RetryCount >= maxRetries {
		notification.Status = model.NotificationStatusFailed
	} else {
		notification.Status = model.NotificationStatusRetrying
		next := now.Add(retryDelay * time.Duration(notification.RetryCount))
		notification.NextRetryAt = &next
	}

	if err := s.repo.Update(ctx, notification); err != nil {
		s.logger.Error(err, "failed to record notification failure", "id", notification.ID.String())
		return
	}

	s.logger.Warn("notification delivery failed",
		"id", notification.ID.String(),
		"channel", notification.Channel,
		"retry_count", notification.RetryCount,
		"error", msg)
}

func (s *service) validate(notification *model.Notification) error {
	if notification.UserID == uuid.Nil {
		return fmt.Errorf("user ID is required")
	}
	if notification.Channel == "" {
		return fmt.Errorf("channel is required")
	}
	if notification.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	if notification.Content == "" {
		return fmt.Errorf("content is required")
	}
	return nil
}
