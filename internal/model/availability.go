package model

import (
	"time"

	"github.com/google/uuid"
)

type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps tests the half-open intervals [s.Start, s.End) and [start, end).
func (s TimeSlot) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && start.Before(s.End)
}

// BlockedSlot is an ad-hoc unavailability window owned by a provider. It is
// independent of bookings; both are checked when computing availability.
type BlockedSlot struct {
	Base
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`
	StartTime  time.Time `db:"start_time" json:"start_time"`
	EndTime    time.Time `db:"end_time" json:"end_time"`
	Reason     *string   `db:"reason" json:"reason,omitempty"`
}

// WorkingHours is one weekday entry of a provider's weekly template. Times
// are minutes since midnight in the provider's timezone; a weekday with no
// row is unavailable.
type WorkingHours struct {
	Base
	ProviderID   uuid.UUID    `db:"provider_id" json:"provider_id"`
	Weekday      time.Weekday `db:"weekday" json:"weekday"`
	StartMinutes int          `db:"start_minutes" json:"start_minutes"`
	EndMinutes   int          `db:"end_minutes" json:"end_minutes"`
}

type BlockSlotRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
	Reason    string    `json:"reason" binding:"max=500"`
}

type WorkingHoursEntry struct {
	Weekday      time.Weekday `json:"weekday" binding:"min=0,max=6"`
	StartMinutes int          `json:"start_minutes" binding:"min=0,max=1439"`
	EndMinutes   int          `json:"end_minutes" binding:"min=1,max=1440"`
}

// SetWorkingHoursRequest replaces the provider's weekly template wholesale.
type SetWorkingHoursRequest struct {
	Entries []WorkingHoursEntry `json:"entries" binding:"required,dive"`
}

// DaySlots is the availability of one calendar day.
type DaySlots struct {
	Date  string     `json:"date"`
	Slots []TimeSlot `json:"slots"`
}
