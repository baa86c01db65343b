package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPendingPayment   BookingStatus = "PENDING_PAYMENT"
	BookingStatusPaymentConfirmed BookingStatus = "PAYMENT_CONFIRMED"
	BookingStatusInProgress       BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted        BookingStatus = "COMPLETED"
	BookingStatusCancelled        BookingStatus = "CANCELLED"
)

// bookingTransitions encodes the forward-only lifecycle. A status maps to
// the set of statuses it may move to; terminal states map to nothing.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPendingPayment:   {BookingStatusPaymentConfirmed, BookingStatusCancelled},
	BookingStatusPaymentConfirmed: {BookingStatusInProgress, BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusInProgress:       {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted:        {},
	BookingStatusCancelled:        {},
}

// CanTransitionTo reports whether the lifecycle permits moving from s to
// next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s admits no further transitions.
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

type PayoutStatus string

const (
	PayoutStatusPending  PayoutStatus = "PENDING"
	PayoutStatusReleased PayoutStatus = "RELEASED"
	PayoutStatusRefunded PayoutStatus = "REFUNDED"
)

type PartyRole string

const (
	PartyRoleClient   PartyRole = "client"
	PartyRoleProvider PartyRole = "provider"
)

type Booking struct {
	Base
	ClientID   uuid.UUID `db:"client_id" json:"client_id"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`

	ScheduledStart time.Time `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd   time.Time `db:"scheduled_end" json:"scheduled_end"`

	ClientPaymentAmount Money   `db:"client_payment_amount" json:"client_payment_amount"`
	CommissionRate      float64 `db:"commission_rate" json:"commission_rate"`
	PlatformCommission  Money   `db:"platform_commission" json:"platform_commission"`
	ProviderPayout      Money   `db:"provider_payout" json:"provider_payout"`
	DiscountApplied     bool    `db:"discount_applied" json:"discount_applied"`

	Status              BookingStatus `db:"status" json:"status"`
	ClientConfirmed     bool          `db:"client_confirmed" json:"client_confirmed"`
	ClientConfirmedAt   *time.Time    `db:"client_confirmed_at" json:"client_confirmed_at,omitempty"`
	ProviderConfirmed   bool          `db:"provider_confirmed" json:"provider_confirmed"`
	ProviderConfirmedAt *time.Time    `db:"provider_confirmed_at" json:"provider_confirmed_at,omitempty"`
	PayoutStatus        PayoutStatus  `db:"payout_status" json:"payout_status"`

	PaymentReference *string `db:"payment_reference" json:"payment_reference,omitempty"`
	CancelledBy      *string `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelReason     *string `db:"cancel_reason" json:"cancel_reason,omitempty"`
	Notes            string  `db:"notes" json:"notes,omitempty"`
}

// IsParty reports whether userID is one of the two booking parties and, if
// so, which side.
func (b *Booking) IsParty(userID uuid.UUID) (PartyRole, bool) {
	switch userID {
	case b.ClientID:
		return PartyRoleClient, true
	case b.ProviderID:
		return PartyRoleProvider, true
	}
	return "", false
}

// EffectiveStatus reports IN_PROGRESS for a paid booking whose session is
// currently underway. The stored status stays PAYMENT_CONFIRMED; the
// in-progress state is derived, never written.
func (b *Booking) EffectiveStatus(now time.Time) BookingStatus {
	if b.Status == BookingStatusPaymentConfirmed &&
		!now.Before(b.ScheduledStart) && now.Before(b.ScheduledEnd) {
		return BookingStatusInProgress
	}
	return b.Status
}

type CreateBookingRequest struct {
	ProviderID     uuid.UUID `json:"provider_id" binding:"required"`
	ScheduledStart time.Time `json:"scheduled_start" binding:"required"`
	ScheduledEnd   time.Time `json:"scheduled_end" binding:"required"`
	Notes          string    `json:"notes" binding:"max=1000"`
}

type RescheduleBookingRequest struct {
	ScheduledStart time.Time `json:"scheduled_start" binding:"required"`
	ScheduledEnd   time.Time `json:"scheduled_end" binding:"required"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ConfirmationResult tells the caller whether their confirmation closed the
// loop, so the API can distinguish "waiting for the other party" from
// "session completed, payment released".
type ConfirmationResult struct {
	BothConfirmed  bool `json:"both_confirmed"`
	PayoutReleased bool `json:"payout_released"`
}

type BookingFilters struct {
	ClientID   uuid.UUID
	ProviderID uuid.UUID
	Status     BookingStatus
	StartDate  time.Time
	EndDate    time.Time
}

// PaymentCallback is the payload delivered by the payment gateway.
type PaymentCallback struct {
	BookingID        uuid.UUID `json:"booking_id" binding:"required"`
	PaymentReference string    `json:"payment_reference" binding:"required"`
	Amount           Money     `json:"amount" binding:"required"`
}
