package escrow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wakilipro/booking-api/internal/model"
	"github.com/wakilipro/booking-api/internal/repository"
	"github.com/wakilipro/booking-api/internal/service/event"
	"github.com/wakilipro/booking-api/pkg/clock"
	apperrors "github.com/wakilipro/booking-api/pkg/errors"
	"github.com/wakilipro/booking-api/pkg/logger"
	"github.com/wakilipro/booking-api/pkg/metrics"
)

// Settlement errors. Callers need to tell "never paid" apart from "already
// settled" and from "booking not found".
var (
	ErrNoHold         = apperrors.Conflict("no escrow hold exists for booking", nil)
	ErrAlreadySettled = apperrors.Conflict("escrow hold already settled", nil)
	ErrDuplicateHold  = apperrors.Conflict("escrow hold already exists for booking", nil)
)

type Service struct {
	repo        repository.EscrowRepository
	bookingRepo repository.BookingRepository
	eventSvc    *event.Service
	clock       clock.Clock
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

func NewService(
	repo repository.EscrowRepository,
	bookingRepo repository.BookingRepository,
	eventSvc *event.Service,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:        repo,
		bookingRepo: bookingRepo,
		eventSvc:    eventSvc,
		clock:       clk,
		metrics:     m,
		logger:      logger,
	}
}

// HoldParams describes the funds collected for one booking.
type HoldParams struct {
	BookingID  uuid.UUID
	ClientID   uuid.UUID
	ProviderID uuid.UUID
	Amount     model.Money
	Commission model.Money
	Payout     model.Money
}

// HoldPayment creates the escrow hold for a booking. At most one hold can
// exist per booking; a second call fails with ErrDuplicateHold.
func (s *Service) HoldPayment(ctx context.Context, params HoldParams) (*model.EscrowHold, error) {
	if params.Amount <= 0 {
		return nil, apperrors.Validation("hold amount must be positive", nil)
	}
	if params.Commission+params.Payout != params.Amount {
		return nil, apperrors.Validation("commission and payout must sum to the held amount", nil)
	}

	hold := &model.EscrowHold{
		BookingID:  params.BookingID,
		ClientID:   params.ClientID,
		ProviderID: params.ProviderID,
		Amount:     params.Amount,
		Commission: params.Commission,
		Payout:     params.Payout,
	}

	if err := s.repo.CreateHold(ctx, hold); err != nil {
		if apperrors.IsConflict(err) {
			return nil, ErrDuplicateHold
		}
		return nil, fmt.Errorf("failed to hold payment: %w", err)
	}

	s.metrics.EscrowHoldsCreated.Inc()
	s.logger.Info("escrow hold created",
		"booking_id", params.BookingID.String(), "amount", int64(params.Amount))
	return hold, nil
}

// ReleasePayment settles the hold in the provider's favour exactly once.
func (s *Service) ReleasePayment(ctx context.Context, bookingID uuid.UUID, reason string) error {
	hold, err := s.settle(ctx, bookingID, model.EscrowStatusReleased, reason, nil)
	if err != nil {
		return err
	}
	s.metrics.EscrowReleases.WithLabelValues(reason).Inc()
	s.logger.Info("escrow released", "booking_id", bookingID.String(), "reason", reason)
	s.eventSvc.Emit(ctx, model.EventEscrowReleased, map[string]interface{}{
		"booking_id":  bookingID,
		"client_id":   hold.ClientID,
		"provider_id": hold.ProviderID,
		"amount":      hold.Payout,
		"reason":      reason,
	})
	return nil
}

// RefundPayment settles the hold back to the client exactly once, recording
// which party cancelled for dispute resolution. The full held amount is
// refunded.
func (s *Service) RefundPayment(ctx context.Context, bookingID uuid.UUID, reason string, cancelledBy model.PartyRole) error {
	by := string(cancelledBy)
	hold, err := s.settle(ctx, bookingID, model.EscrowStatusRefunded, reason, &by)
	if err != nil {
		return err
	}
	s.metrics.EscrowRefunds.WithLabelValues(by).Inc()
	s.logger.Info("escrow refunded",
		"booking_id", bookingID.String(), "reason", reason, "cancelled_by", by)
	s.eventSvc.Emit(ctx, model.EventEscrowRefunded, map[string]interface{}{
		"booking_id":   bookingID,
		"client_id":    hold.ClientID,
		"provider_id":  hold.ProviderID,
		"amount":       hold.Amount,
		"reason":       reason,
		"cancelled_by": by,
	})
	return nil
}

func (s *Service) GetHold(ctx context.Context, bookingID uuid.UUID) (*model.EscrowHold, error) {
	hold, err := s.repo.GetHoldByBooking(ctx, bookingID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, ErrNoHold
		}
		return nil, err
	}
	return hold, nil
}

func (s *Service) settle(ctx context.Context, bookingID uuid.UUID, status model.EscrowStatus, reason string, cancelledBy *string) (*model.EscrowHold, error) {
	// Existence check first so "never paid" surfaces as ErrNoHold rather
	// than a silent zero-row update.
	hold, err := s.repo.GetHoldByBooking(ctx, bookingID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, ErrNoHold
		}
		return nil, fmt.Errorf("failed to load escrow hold: %w", err)
	}

	settled, err := s.repo.SettleHold(ctx, bookingID, status, reason, cancelledBy, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to settle escrow hold: %w", err)
	}
	if !settled {
		return nil, ErrAlreadySettled
	}

	payout := model.PayoutStatusReleased
	if status == model.EscrowStatusRefunded {
		payout = model.PayoutStatusRefunded
	}
	// Mirror onto the booking; the hold settle above is the atomic gate,
	// so a zero-row update here only means the mirror was already written.
	if _, err := s.bookingRepo.SetPayoutStatus(ctx, bookingID, payout); err != nil {
		return nil, fmt.Errorf("failed to update booking payout status: %w", err)
	}
	return hold, nil
}
