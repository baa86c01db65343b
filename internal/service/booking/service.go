package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wakilipro/booking-api/internal/config"
	"github.com/wakilipro/booking-api/internal/model"
	"github.com/wakilipro/booking-api/internal/repository"
	"github.com/wakilipro/booking-api/internal/service/escrow"
	"github.com/wakilipro/booking-api/internal/service/event"
	"github.com/wakilipro/booking-api/pkg/clock"
	apperrors "github.com/wakilipro/booking-api/pkg/errors"
	"github.com/wakilipro/booking-api/pkg/logger"
	"github.com/wakilipro/booking-api/pkg/metrics"
)

// availabilityChecker is the slice of the availability engine the lifecycle
// needs: re-validating a requested interval at creation and reschedule time.
type availabilityChecker interface {
	IsIntervalAvailable(ctx context.Context, providerID uuid.UUID, start, end time.Time, excludeBookingID uuid.UUID) (bool, error)
}

// providerDirectory supplies rate, verification, and discount state.
type providerDirectory interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*model.Provider, error)
	GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error)
	ConsumeFirstConsultation(ctx context.Context, clientID uuid.UUID) (bool, error)
	RestoreFirstConsultation(ctx context.Context, clientID uuid.UUID) error
}

// escrowLedger is the money-movement surface of the lifecycle.
type escrowLedger interface {
	HoldPayment(ctx context.Context, params escrow.HoldParams) (*model.EscrowHold, error)
	ReleasePayment(ctx context.Context, bookingID uuid.UUID, reason string) error
	RefundPayment(ctx context.Context, bookingID uuid.UUID, reason string, cancelledBy model.PartyRole) error
}

type Service struct {
	repo      repository.BookingRepository
	avail     availabilityChecker
	directory providerDirectory
	ledger    escrowLedger
	eventSvc  *event.Service
	refStore  repository.PaymentReferenceStore
	clock     clock.Clock
	cfg       config.BookingConfig
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewService(
	repo repository.BookingRepository,
	avail availabilityChecker,
	directory providerDirectory,
	ledger escrowLedger,
	eventSvc *event.Service,
	refStore repository.PaymentReferenceStore,
	clk clock.Clock,
	cfg config.BookingConfig,
	m *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		avail:     avail,
		directory: directory,
		ledger:    ledger,
		eventSvc:  eventSvc,
		refStore:  refStore,
		clock:     clk,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

// CreateBooking validates the provider and the requested interval, prices
// the consultation, and persists the booking in PENDING_PAYMENT. The
// availability check here is an early rejection; the data layer's exclusion
// constraint is what actually prevents a concurrent double-booking.
func (s *Service) CreateBooking(ctx context.Context, clientID uuid.UUID, req *model.CreateBookingRequest) (*model.Booking, error) {
	if !req.ScheduledStart.Before(req.ScheduledEnd) {
		return nil, apperrors.Validation("scheduled start must precede end", nil)
	}
	if !req.ScheduledStart.After(s.clock.Now()) {
		return nil, apperrors.Validation("booking cannot be scheduled in the past", nil)
	}

	client, err := s.directory.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	provider, err := s.directory.GetProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	if !provider.IsVerified {
		return nil, apperrors.Conflict("provider is not available for bookings", nil)
	}
	if provider.HourlyRate == nil || *provider.HourlyRate <= 0 {
		return nil, apperrors.Validation("provider has no configured rate", nil)
	}

	available, err := s.avail.IsIntervalAvailable(ctx, req.ProviderID, req.ScheduledStart, req.ScheduledEnd, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if !available {
		s.metrics.SlotConflicts.Inc()
		return nil, apperrors.Conflict("slot is no longer available", nil)
	}

	durationMinutes := int64(req.ScheduledEnd.Sub(req.ScheduledStart) / time.Minute)
	amount := model.Money(int64(*provider.HourlyRate) * durationMinutes / 60)

	discountApplied := false
	// The eligibility read is advisory; ConsumeFirstConsultation's
	// conditional update is what guarantees once-only.
	if provider.OffersFirstSession && !client.HadFirstConsultation {
		consumed, err := s.directory.ConsumeFirstConsultation(ctx, clientID)
		if err != nil {
			return nil, err
		}
		if consumed {
			amount = model.Money(float64(amount) * (1 - s.cfg.FirstConsultationDiscount))
			discountApplied = true
		}
	}

	commission, payout := amount.SplitCommission(s.cfg.CommissionRate)

	booking := &model.Booking{
		ClientID:            clientID,
		ProviderID:          req.ProviderID,
		ScheduledStart:      req.ScheduledStart,
		ScheduledEnd:        req.ScheduledEnd,
		ClientPaymentAmount: amount,
		CommissionRate:      s.cfg.CommissionRate,
		PlatformCommission:  commission,
		ProviderPayout:      payout,
		DiscountApplied:     discountApplied,
		Status:              model.BookingStatusPendingPayment,
		PayoutStatus:        model.PayoutStatusPending,
		Notes:               req.Notes,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		if discountApplied {
			if restoreErr := s.directory.RestoreFirstConsultation(ctx, clientID); restoreErr != nil {
				s.logger.Error(restoreErr, "failed to restore first-consultation discount",
					"client_id", clientID.String())
			}
		}
		if apperrors.IsConflict(err) {
			s.metrics.SlotConflicts.Inc()
		}
		return nil, err
	}

	s.metrics.BookingsCreated.Inc()
	s.eventSvc.Emit(ctx, model.EventBookingCreated, booking)
	return booking, nil
}

// ConfirmPayment applies a gateway callback. Duplicate callbacks are safe:
// the status transition is a conditional update, and a replay against an
// already-confirmed booking only re-ensures the escrow hold.
func (s *Service) ConfirmPayment(ctx context.Context, callback *model.PaymentCallback) error {
	booking, err := s.repo.Get(ctx, callback.BookingID)
	if err != nil {
		return err
	}
	if callback.Amount != booking.ClientPaymentAmount {
		return apperrors.Validation("payment amount does not match booking fee", nil)
	}

	confirmed, err := s.repo.ConfirmPayment(ctx, booking.ID, callback.PaymentReference)
	if err != nil {
		return err
	}
	if !confirmed {
		current, err := s.repo.Get(ctx, booking.ID)
		if err != nil {
			return err
		}
		if current.Status == model.BookingStatusCancelled {
			return apperrors.Conflict("booking is no longer awaiting payment", nil)
		}
		// Duplicate callback for a confirmed booking. An earlier attempt
		// may have won the status gate and then failed before the hold
		// existed, so the gateway's retry must finish the job, not no-op.
		return s.ensureHold(ctx, current, callback)
	}

	// Record the reference only after winning the status gate. Burning it
	// earlier would make the retry of a failed attempt look like a replay
	// and strand the booking without a hold.
	if s.refStore != nil {
		fresh, err := s.refStore.SaveIfAbsent(ctx, callback.PaymentReference, booking.ID, s.cfg.PaymentRefTTL())
		if err != nil {
			// The status gate is the replay protection; the store is an
			// optimization, not the safety mechanism.
			s.logger.Error(err, "payment reference store unavailable",
				"booking_id", booking.ID.String())
		} else if !fresh {
			s.logger.Warn("payment reference reused across bookings",
				"booking_id", booking.ID.String(), "reference", callback.PaymentReference)
		}
	}

	return s.ensureHold(ctx, booking, callback)
}

// ensureHold creates the escrow hold for a confirmed booking if it does not
// exist yet. The confirmation metric and event fire exactly when the hold
// is newly created, so a repaired retry still announces the payment once.
func (s *Service) ensureHold(ctx context.Context, booking *model.Booking, callback *model.PaymentCallback) error {
	_, err := s.ledger.HoldPayment(ctx, escrow.HoldParams{
		BookingID:  booking.ID,
		ClientID:   booking.ClientID,
		ProviderID: booking.ProviderID,
		Amount:     booking.ClientPaymentAmount,
		Commission: booking.PlatformCommission,
		Payout:     booking.ProviderPayout,
	})
	switch {
	case errors.Is(err, escrow.ErrDuplicateHold):
		return nil
	case err != nil:
		return err
	}

	s.metrics.PaymentsConfirmed.Inc()
	s.eventSvc.Emit(ctx, model.EventPaymentConfirmed, map[string]interface{}{
		"booking_id":        booking.ID,
		"client_id":         booking.ClientID,
		"provider_id":       booking.ProviderID,
		"payment_reference": callback.PaymentReference,
		"amount":            callback.Amount,
	})
	return nil
}

// ConfirmCompletion records one party's completion acknowledgment. When it
// is the second acknowledgment the booking completes and, with payment
// settled and payout still pending, the escrow release fires under the
// payout check-and-set gate.
func (s *Service) ConfirmCompletion(ctx context.Context, bookingID, actorID uuid.UUID) (*model.ConfirmationResult, error) {
	booking, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	role, isParty := booking.IsParty(actorID)
	if !isParty {
		return nil, apperrors.Unauthorized(fmt.Errorf("actor is not a party to the booking"))
	}

	if !booking.Status.CanTransitionTo(model.BookingStatusCompleted) {
		return nil, apperrors.Conflict("booking is not awaiting completion", nil)
	}

	now := s.clock.Now()
	if now.Before(booking.ScheduledEnd) {
		return nil, apperrors.Conflict("session has not ended yet", nil)
	}

	set, err := s.repo.SetPartyConfirmed(ctx, bookingID, role, now)
	if err != nil {
		return nil, err
	}
	if !set {
		// Re-confirmation is rejected, not idempotently ignored.
		return nil, apperrors.Conflict("completion already confirmed by this party", nil)
	}

	// Re-read after writing our own flag so near-simultaneous
	// confirmations cannot both miss the other party's flag.
	fresh, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	result := &model.ConfirmationResult{}
	if fresh.ClientConfirmed && fresh.ProviderConfirmed {
		result.BothConfirmed = true

		if err := s.repo.MarkCompleted(ctx, bookingID); err != nil && !apperrors.IsConflict(err) {
			return nil, err
		}

		if fresh.PayoutStatus == model.PayoutStatusPending {
			err := s.ledger.ReleasePayment(ctx, bookingID, model.ReleaseReasonDualConfirmation)
			switch {
			case err == nil:
				result.PayoutReleased = true
			case errors.Is(err, escrow.ErrAlreadySettled):
				// A concurrent confirmation won the settle race.
				result.PayoutReleased = true
			default:
				return nil, err
			}
		}

		s.metrics.BookingsCompleted.Inc()
		s.eventSvc.Emit(ctx, model.EventBookingCompleted, map[string]interface{}{
			"booking_id":      bookingID,
			"client_id":       fresh.ClientID,
			"provider_id":     fresh.ProviderID,
			"payout_released": result.PayoutReleased,
		})
	} else {
		s.eventSvc.Emit(ctx, model.EventCompletionConfirmed, map[string]interface{}{
			"booking_id":   bookingID,
			"client_id":    fresh.ClientID,
			"provider_id":  fresh.ProviderID,
			"confirmed_by": string(role),
		})
	}

	return result, nil
}

// CancelBooking cancels on behalf of either party. Once payment is
// confirmed a policy window applies: cancellations closer to the start than
// the configured window are rejected outright, with no partial-refund path.
func (s *Service) CancelBooking(ctx context.Context, bookingID, actorID uuid.UUID, reason string) error {
	booking, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return err
	}

	role, isParty := booking.IsParty(actorID)
	if !isParty {
		return apperrors.Unauthorized(fmt.Errorf("actor is not a party to the booking"))
	}

	if !booking.Status.CanTransitionTo(model.BookingStatusCancelled) {
		if booking.Status == model.BookingStatusCompleted {
			return apperrors.Conflict("cannot cancel a completed booking", nil)
		}
		return apperrors.Conflict("booking is already cancelled", nil)
	}

	paid := booking.Status == model.BookingStatusPaymentConfirmed
	if paid && booking.ScheduledStart.Sub(s.clock.Now()) < s.cfg.CancellationWindow() {
		return apperrors.Conflict(
			fmt.Sprintf("cancellation requires at least %v notice", s.cfg.CancellationWindow()), nil)
	}

	if err := s.repo.Cancel(ctx, bookingID, role, reason); err != nil {
		return err
	}

	if paid {
		if err := s.ledger.RefundPayment(ctx, bookingID, reason, role); err != nil &&
			!errors.Is(err, escrow.ErrAlreadySettled) {
			return err
		}
	}

	s.metrics.BookingsCancelled.WithLabelValues(string(role)).Inc()
	s.eventSvc.Emit(ctx, model.EventBookingCancelled, map[string]interface{}{
		"booking_id":   bookingID,
		"client_id":    booking.ClientID,
		"provider_id":  booking.ProviderID,
		"cancelled_by": string(role),
		"reason":       reason,
	})
	return nil
}

// RescheduleBooking moves a paid booking to a new interval. Only the client
// may reschedule, the new interval passes the same availability check as
// creation, and the fee stays as charged at booking time even when the new
// duration differs.
func (s *Service) RescheduleBooking(ctx context.Context, bookingID, actorID uuid.UUID, req *model.RescheduleBookingRequest) (*model.Booking, error) {
	booking, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	role, isParty := booking.IsParty(actorID)
	if !isParty {
		return nil, apperrors.Unauthorized(fmt.Errorf("actor is not a party to the booking"))
	}
	if role != model.PartyRoleClient {
		return nil, apperrors.Forbidden("only the client may reschedule", nil)
	}

	if booking.Status != model.BookingStatusPaymentConfirmed {
		return nil, apperrors.Conflict("only paid bookings can be rescheduled", nil)
	}

	if !req.ScheduledStart.Before(req.ScheduledEnd) {
		return nil, apperrors.Validation("scheduled start must precede end", nil)
	}

	available, err := s.avail.IsIntervalAvailable(ctx, booking.ProviderID,
		req.ScheduledStart, req.ScheduledEnd, booking.ID)
	if err != nil {
		return nil, err
	}
	if !available {
		s.metrics.SlotConflicts.Inc()
		return nil, apperrors.Conflict("requested slot is not available", nil)
	}

	if err := s.repo.Reschedule(ctx, bookingID, req.ScheduledStart, req.ScheduledEnd); err != nil {
		return nil, err
	}

	booking.ScheduledStart = req.ScheduledStart
	booking.ScheduledEnd = req.ScheduledEnd

	s.eventSvc.Emit(ctx, model.EventBookingRescheduled, map[string]interface{}{
		"booking_id":      bookingID,
		"client_id":       booking.ClientID,
		"provider_id":     booking.ProviderID,
		"scheduled_start": req.ScheduledStart,
		"scheduled_end":   req.ScheduledEnd,
	})
	return booking, nil
}

// GetBooking returns the booking to one of its parties, with the derived
// in-progress state applied.
func (s *Service) GetBooking(ctx context.Context, bookingID, actorID uuid.UUID) (*model.Booking, error) {
	booking, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if _, isParty := booking.IsParty(actorID); !isParty {
		return nil, apperrors.Unauthorized(fmt.Errorf("actor is not a party to the booking"))
	}
	booking.Status = booking.EffectiveStatus(s.clock.Now())
	return booking, nil
}

func (s *Service) ListBookings(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	bookings, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	now := s.clock.Now()
	for _, b := range bookings {
		b.Status = b.EffectiveStatus(now)
	}
	return bookings, nil
}
