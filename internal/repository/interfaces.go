package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wakilipro/booking-api/internal/model"
)

type (
	BookingRepository interface {
		// Create persists a new booking. The data layer carries an
		// exclusion constraint on (provider_id, scheduled interval) for
		// non-cancelled rows; a violating insert returns a conflict error.
		Create(ctx context.Context, booking *model.Booking) error
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error)

		// GetProviderBookings returns non-cancelled bookings touching the
		// given window, for availability computation.
		GetProviderBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.Booking, error)

		// ConfirmPayment moves PENDING_PAYMENT to PAYMENT_CONFIRMED as a
		// conditional update; returns false when the booking was not in
		// PENDING_PAYMENT (duplicate callback or cancelled).
		ConfirmPayment(ctx context.Context, id uuid.UUID, paymentRef string) (bool, error)

		// SetPartyConfirmed flips one party's confirmation flag exactly
		// once; returns false if that flag was already set.
		SetPartyConfirmed(ctx context.Context, id uuid.UUID, role model.PartyRole, at time.Time) (bool, error)

		// MarkCompleted transitions the booking to COMPLETED.
		MarkCompleted(ctx context.Context, id uuid.UUID) error

		// SetPayoutStatus performs the atomic PENDING -> status gate on
		// the booking's payout. Returns false if payout was not PENDING.
		SetPayoutStatus(ctx context.Context, id uuid.UUID, status model.PayoutStatus) (bool, error)

		Cancel(ctx context.Context, id uuid.UUID, cancelledBy model.PartyRole, reason string) error

		// Reschedule replaces the scheduled interval; the exclusion
		// constraint guards the new interval like a fresh insert.
		Reschedule(ctx context.Context, id uuid.UUID, start, end time.Time) error

		// ListUnresolvedBefore returns paid bookings whose session ended
		// before cutoff with the payout still pending, for the sweep.
		ListUnresolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Booking, error)
	}

	AvailabilityRepository interface {
		GetWorkingHours(ctx context.Context, providerID uuid.UUID) ([]*model.WorkingHours, error)
		// ReplaceWorkingHours swaps the whole weekly template in one
		// transaction; there is no partial-day merge.
		ReplaceWorkingHours(ctx context.Context, providerID uuid.UUID, entries []*model.WorkingHours) error
		GetBlockedSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.BlockedSlot, error)
		CreateBlockedSlot(ctx context.Context, slot *model.BlockedSlot) error
		DeleteBlockedSlot(ctx context.Context, providerID, slotID uuid.UUID) error
	}

	EscrowRepository interface {
		// CreateHold inserts the hold; booking_id is unique so a second
		// hold for the same booking returns a conflict error.
		CreateHold(ctx context.Context, hold *model.EscrowHold) error
		GetHoldByBooking(ctx context.Context, bookingID uuid.UUID) (*model.EscrowHold, error)
		// SettleHold moves PENDING to the given terminal status as one
		// conditional update; returns false when the hold was already
		// settled.
		SettleHold(ctx context.Context, bookingID uuid.UUID, status model.EscrowStatus, reason string, cancelledBy *string, at time.Time) (bool, error)
	}

	ProviderRepository interface {
		GetProvider(ctx context.Context, id uuid.UUID) (*model.Provider, error)
		GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error)
		// ConsumeFirstConsultation marks the client's one-time discount as
		// used; returns false if it was already consumed.
		ConsumeFirstConsultation(ctx context.Context, clientID uuid.UUID) (bool, error)
		// RestoreFirstConsultation compensates a consumed discount when
		// the booking it was consumed for could not be created.
		RestoreFirstConsultation(ctx context.Context, clientID uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		Update(ctx context.Context, notification *model.Notification) error
	}

	// PaymentReferenceStore deduplicates gateway callbacks across
	// instances. Entries expire; the store is externalized key-value, not
	// process memory.
	PaymentReferenceStore interface {
		SaveIfAbsent(ctx context.Context, reference string, bookingID uuid.UUID, ttl time.Duration) (bool, error)
	}
)
