package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wakilipro/booking-api/internal/config"
	"github.com/wakilipro/booking-api/internal/model"
	"github.com/wakilipro/booking-api/internal/repository"
	"github.com/wakilipro/booking-api/internal/service/event"
	"github.com/wakilipro/booking-api/pkg/clock"
	apperrors "github.com/wakilipro/booking-api/pkg/errors"
	"github.com/wakilipro/booking-api/pkg/logger"
)

// Block policies applied when a provider blocks a window that already holds
// a confirmed booking.
const (
	BlockPolicyAllow  = "allow"
	BlockPolicyReject = "reject"
)

type Service struct {
	repo        repository.AvailabilityRepository
	bookingRepo repository.BookingRepository
	eventSvc    *event.Service
	clock       clock.Clock
	cfg         config.BookingConfig
	logger      *logger.Logger
}

func NewService(
	repo repository.AvailabilityRepository,
	bookingRepo repository.BookingRepository,
	eventSvc *event.Service,
	clk clock.Clock,
	cfg config.BookingConfig,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:        repo,
		bookingRepo: bookingRepo,
		eventSvc:    eventSvc,
		clock:       clk,
		cfg:         cfg,
		logger:      logger,
	}
}

// ComputeAvailableSlots tiles the provider's working interval for the given
// calendar date into back-to-back slots of the requested duration, then
// removes slots overlapping a blocked window or a non-cancelled booking,
// and slots already started when the date is today. It is a pure read: the
// same stored state always yields the same slots.
func (s *Service) ComputeAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time, slotDuration time.Duration) ([]model.TimeSlot, error) {
	if err := s.validateSlotDuration(slotDuration); err != nil {
		return nil, err
	}

	hours, err := s.repo.GetWorkingHours(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get working hours: %w", err)
	}

	var entry *model.WorkingHours
	for _, h := range hours {
		if h.Weekday == date.Weekday() {
			entry = h
			break
		}
	}
	// No template entry for this weekday means the provider is off; that
	// is an empty result, not an error.
	if entry == nil {
		return []model.TimeSlot{}, nil
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)
	workStart := dayStart.Add(time.Duration(entry.StartMinutes) * time.Minute)
	workEnd := dayStart.Add(time.Duration(entry.EndMinutes) * time.Minute)

	blocked, err := s.repo.GetBlockedSlots(ctx, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to get blocked slots: %w", err)
	}

	bookings, err := s.bookingRepo.GetProviderBookings(ctx, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider bookings: %w", err)
	}

	now := s.clock.Now()
	today := sameDay(now.In(date.Location()), dayStart)

	slots := make([]model.TimeSlot, 0)
	// Tiling discards a trailing partial slot that would run past the end
	// of the working interval.
	for start := workStart; !start.Add(slotDuration).After(workEnd); start = start.Add(slotDuration) {
		slot := model.TimeSlot{Start: start, End: start.Add(slotDuration)}

		if today && !slot.Start.After(now) {
			continue
		}
		if overlapsBlocked(slot, blocked) || overlapsBooking(slot, bookings, uuid.Nil) {
			continue
		}
		slots = append(slots, slot)
	}

	return slots, nil
}

// ComputeAvailableSlotsForRange applies the per-day computation across an
// inclusive date range. No cross-day slot merging happens.
func (s *Service) ComputeAvailableSlotsForRange(ctx context.Context, providerID uuid.UUID, startDate, endDate time.Time, slotDuration time.Duration) ([]model.DaySlots, error) {
	if endDate.Before(startDate) {
		return nil, apperrors.Validation("end date must not precede start date", nil)
	}

	days := int(endDate.Sub(startDate).Hours()/24) + 1
	if days > s.cfg.MaxRangeDays {
		return nil, apperrors.Validation(
			fmt.Sprintf("date range exceeds maximum of %d days", s.cfg.MaxRangeDays), nil)
	}

	result := make([]model.DaySlots, 0, days)
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		slots, err := s.ComputeAvailableSlots(ctx, providerID, d, slotDuration)
		if err != nil {
			return nil, err
		}
		result = append(result, model.DaySlots{
			Date:  d.Format("2006-01-02"),
			Slots: slots,
		})
	}
	return result, nil
}

// IsIntervalAvailable reports whether [start, end) is one of the provider's
// currently available slots of that exact duration. excludeBookingID lets a
// reschedule ignore the booking being moved.
func (s *Service) IsIntervalAvailable(ctx context.Context, providerID uuid.UUID, start, end time.Time, excludeBookingID uuid.UUID) (bool, error) {
	if !start.Before(end) {
		return false, apperrors.Validation("interval start must precede end", nil)
	}
	duration := end.Sub(start)
	if err := s.validateSlotDuration(duration); err != nil {
		return false, err
	}

	hours, err := s.repo.GetWorkingHours(ctx, providerID)
	if err != nil {
		return false, fmt.Errorf("failed to get working hours: %w", err)
	}

	var entry *model.WorkingHours
	for _, h := range hours {
		if h.Weekday == start.Weekday() {
			entry = h
			break
		}
	}
	if entry == nil {
		return false, nil
	}

	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	workStart := dayStart.Add(time.Duration(entry.StartMinutes) * time.Minute)
	workEnd := dayStart.Add(time.Duration(entry.EndMinutes) * time.Minute)

	// The interval must land on the slot grid and fit inside the working
	// window.
	if start.Before(workStart) || end.After(workEnd) {
		return false, nil
	}
	if start.Sub(workStart)%duration != 0 {
		return false, nil
	}

	if !start.After(s.clock.Now()) {
		return false, nil
	}

	blocked, err := s.repo.GetBlockedSlots(ctx, providerID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return false, fmt.Errorf("failed to get blocked slots: %w", err)
	}
	bookings, err := s.bookingRepo.GetProviderBookings(ctx, providerID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return false, fmt.Errorf("failed to get provider bookings: %w", err)
	}

	slot := model.TimeSlot{Start: start, End: end}
	if overlapsBlocked(slot, blocked) || overlapsBooking(slot, bookings, excludeBookingID) {
		return false, nil
	}
	return true, nil
}

// BlockSlot records an ad-hoc unavailability window. Blocking does not
// consult bookings unless the configured policy rejects conflicts; an
// allowed block over a confirmed booking is flagged through the event sink.
func (s *Service) BlockSlot(ctx context.Context, providerID uuid.UUID, req *model.BlockSlotRequest) (*model.BlockedSlot, error) {
	if !req.StartTime.Before(req.EndTime) {
		return nil, apperrors.Validation("block start must precede end", nil)
	}

	conflicting, err := s.bookingRepo.GetProviderBookings(ctx, providerID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("failed to check bookings: %w", err)
	}
	if len(conflicting) > 0 {
		if s.cfg.BlockOverBookingPolicy == BlockPolicyReject {
			return nil, apperrors.Conflict("window overlaps a confirmed booking", nil)
		}
		s.logger.Warn("blocked slot overlaps existing bookings",
			"provider_id", providerID.String(), "bookings", len(conflicting))
		s.eventSvc.Emit(ctx, model.EventSlotBlockedConflict, map[string]interface{}{
			"provider_id": providerID,
			"start_time":  req.StartTime,
			"end_time":    req.EndTime,
			"bookings":    len(conflicting),
		})
	}

	slot := &model.BlockedSlot{
		ProviderID: providerID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	}
	if req.Reason != "" {
		slot.Reason = &req.Reason
	}

	if err := s.repo.CreateBlockedSlot(ctx, slot); err != nil {
		return nil, fmt.Errorf("failed to block slot: %w", err)
	}
	return slot, nil
}

func (s *Service) UnblockSlot(ctx context.Context, providerID, slotID uuid.UUID) error {
	return s.repo.DeleteBlockedSlot(ctx, providerID, slotID)
}

// SetWorkingHours replaces the provider's weekly template wholesale.
func (s *Service) SetWorkingHours(ctx context.Context, providerID uuid.UUID, req *model.SetWorkingHoursRequest) error {
	seen := make(map[time.Weekday]bool)
	entries := make([]*model.WorkingHours, 0, len(req.Entries))
	for _, e := range req.Entries {
		if e.StartMinutes >= e.EndMinutes {
			return apperrors.Validation("working hours start must precede end", nil)
		}
		if seen[e.Weekday] {
			return apperrors.Validation("duplicate weekday in working hours", nil)
		}
		seen[e.Weekday] = true
		entries = append(entries, &model.WorkingHours{
			Weekday:      e.Weekday,
			StartMinutes: e.StartMinutes,
			EndMinutes:   e.EndMinutes,
		})
	}

	if err := s.repo.ReplaceWorkingHours(ctx, providerID, entries); err != nil {
		return fmt.Errorf("failed to replace working hours: %w", err)
	}
	return nil
}

func (s *Service) GetWorkingHours(ctx context.Context, providerID uuid.UUID) ([]*model.WorkingHours, error) {
	return s.repo.GetWorkingHours(ctx, providerID)
}

func (s *Service) GetBlockedSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.BlockedSlot, error) {
	return s.repo.GetBlockedSlots(ctx, providerID, from, to)
}

func (s *Service) validateSlotDuration(d time.Duration) error {
	minD := time.Duration(s.cfg.MinSlotMinutes) * time.Minute
	maxD := time.Duration(s.cfg.MaxSlotMinutes) * time.Minute
	if d < minD || d > maxD {
		return apperrors.Validation(
			fmt.Sprintf("slot duration must be between %v and %v", minD, maxD), nil)
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func overlapsBlocked(slot model.TimeSlot, blocked []*model.BlockedSlot) bool {
	for _, b := range blocked {
		if slot.Overlaps(b.StartTime, b.EndTime) {
			return true
		}
	}
	return false
}

func overlapsBooking(slot model.TimeSlot, bookings []*model.Booking, exclude uuid.UUID) bool {
	for _, b := range bookings {
		if b.ID == exclude {
			continue
		}
		if slot.Overlaps(b.ScheduledStart, b.ScheduledEnd) {
			return true
		}
	}
	return false
}
