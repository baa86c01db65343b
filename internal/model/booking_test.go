package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBookingStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    BookingStatus
		to      BookingStatus
		allowed bool
	}{
		{"pending to paid", BookingStatusPendingPayment, BookingStatusPaymentConfirmed, true},
		{"pending to cancelled", BookingStatusPendingPayment, BookingStatusCancelled, true},
		{"pending to completed", BookingStatusPendingPayment, BookingStatusCompleted, false},
		{"paid to completed", BookingStatusPaymentConfirmed, BookingStatusCompleted, true},
		{"paid to cancelled", BookingStatusPaymentConfirmed, BookingStatusCancelled, true},
		{"paid back to pending", BookingStatusPaymentConfirmed, BookingStatusPendingPayment, false},
		{"in progress to completed", BookingStatusInProgress, BookingStatusCompleted, true},
		{"completed to cancelled", BookingStatusCompleted, BookingStatusCancelled, false},
		{"cancelled to paid", BookingStatusCancelled, BookingStatusPaymentConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestBookingStatusIsTerminal(t *testing.T) {
	assert.True(t, BookingStatusCompleted.IsTerminal())
	assert.True(t, BookingStatusCancelled.IsTerminal())
	assert.False(t, BookingStatusPendingPayment.IsTerminal())
	assert.False(t, BookingStatusPaymentConfirmed.IsTerminal())
	assert.False(t, BookingStatusInProgress.IsTerminal())
}

func TestMoneySplitCommission(t *testing.T) {
	tests := []struct {
		name       string
		amount     Money
		rate       float64
		commission Money
		payout     Money
	}{
		{"even split", 100000, 0.10, 10000, 90000},
		{"kenyan shilling consultation", 150000, 0.10, 15000, 135000},
		{"rounding up", 105, 0.10, 11, 94},
		{"rounding down", 104, 0.10, 10, 94},
		{"zero rate", 100000, 0, 0, 100000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commission, payout := tt.amount.SplitCommission(tt.rate)
			assert.Equal(t, tt.commission, commission)
			assert.Equal(t, tt.payout, payout)
			// The split must always reassemble exactly.
			assert.Equal(t, tt.amount, commission+payout)
		})
	}
}

func TestTimeSlotOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	slot := TimeSlot{Start: base, End: base.Add(time.Hour)}

	// Half-open intervals: touching endpoints do not overlap.
	assert.False(t, slot.Overlaps(base.Add(-time.Hour), base))
	assert.False(t, slot.Overlaps(base.Add(time.Hour), base.Add(2*time.Hour)))

	assert.True(t, slot.Overlaps(base.Add(30*time.Minute), base.Add(90*time.Minute)))
	assert.True(t, slot.Overlaps(base.Add(-30*time.Minute), base.Add(30*time.Minute)))
	assert.True(t, slot.Overlaps(base.Add(-time.Hour), base.Add(2*time.Hour)))
	assert.True(t, slot.Overlaps(base.Add(15*time.Minute), base.Add(45*time.Minute)))
}

func TestBookingEffectiveStatus(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	b := &Booking{
		Status:         BookingStatusPaymentConfirmed,
		ScheduledStart: start,
		ScheduledEnd:   start.Add(time.Hour),
	}

	assert.Equal(t, BookingStatusPaymentConfirmed, b.EffectiveStatus(start.Add(-time.Minute)))
	assert.Equal(t, BookingStatusInProgress, b.EffectiveStatus(start))
	assert.Equal(t, BookingStatusInProgress, b.EffectiveStatus(start.Add(30*time.Minute)))
	assert.Equal(t, BookingStatusPaymentConfirmed, b.EffectiveStatus(start.Add(time.Hour)))

	// Only the paid state derives in-progress.
	b.Status = BookingStatusPendingPayment
	assert.Equal(t, BookingStatusPendingPayment, b.EffectiveStatus(start.Add(30*time.Minute)))
}

func TestBookingIsParty(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	b := &Booking{ClientID: clientID, ProviderID: providerID}

	role, ok := b.IsParty(clientID)
	assert.True(t, ok)
	assert.Equal(t, PartyRoleClient, role)

	role, ok = b.IsParty(providerID)
	assert.True(t, ok)
	assert.Equal(t, PartyRoleProvider, role)

	_, ok = b.IsParty(uuid.New())
	assert.False(t, ok)
}
