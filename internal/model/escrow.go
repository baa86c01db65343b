package model

import (
	"time"

	"github.com/google/uuid"
)

type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "PENDING"
	EscrowStatusReleased EscrowStatus = "RELEASED"
	EscrowStatusRefunded EscrowStatus = "REFUNDED"
)

// IsTerminal reports whether the hold has been settled either way. A
// settled hold never re-enters PENDING.
func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowStatusReleased || s == EscrowStatusRefunded
}

// EscrowHold is the money-movement record tied 1:1 to a booking. The
// booking_id carries a unique constraint so at most one hold can exist.
type EscrowHold struct {
	Base
	BookingID  uuid.UUID `db:"booking_id" json:"booking_id"`
	ClientID   uuid.UUID `db:"client_id" json:"client_id"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`

	Amount     Money `db:"amount" json:"amount"`
	Commission Money `db:"commission" json:"commission"`
	Payout     Money `db:"payout" json:"payout"`

	Status      EscrowStatus `db:"status" json:"status"`
	ResolvedAt  *time.Time   `db:"resolved_at" json:"resolved_at,omitempty"`
	Reason      *string      `db:"reason" json:"reason,omitempty"`
	CancelledBy *string      `db:"cancelled_by" json:"cancelled_by,omitempty"`
}

// Release reasons recorded on settlement for audit.
const (
	ReleaseReasonDualConfirmation = "dual_confirmation"
	ReleaseReasonAutoTimeout      = "auto_release_timeout"
)
