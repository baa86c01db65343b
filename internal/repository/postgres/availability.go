package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wakilipro/booking-api/internal/model"
	apperrors "github.com/wakilipro/booking-api/pkg/errors"
)

func (r *availabilityRepository) GetWorkingHours(ctx context.Context, providerID uuid.UUID) ([]*model.WorkingHours, error) {
	query := `
		SELECT id, provider_id, weekday, start_minutes, end_minutes, created_at, updated_at
		FROM working_hours
		WHERE provider_id = $1
		ORDER BY weekday ASC
	`
	var hours []*model.WorkingHours
	if err := r.db.SelectContext(ctx, &hours, query, providerID); err != nil {
		return nil, fmt.Errorf("failed to get working hours: %w", err)
	}
	return hours, nil
}

func (r *availabilityRepository) ReplaceWorkingHours(ctx context.Context, providerID uuid.UUID, entries []*model.WorkingHours) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM working_hours WHERE provider_id = $1`, providerID); err != nil {
		return fmt.Errorf("failed to clear working hours: %w", err)
	}

	query := `
		INSERT INTO working_hours (
			id, provider_id, weekday, start_minutes, end_minutes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	now := time.Now()
	for _, entry := range entries {
		entry.ID = uuid.New()
		entry.ProviderID = providerID
		entry.CreatedAt = now
		entry.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, query,
			entry.ID, entry.ProviderID, entry.Weekday,
			entry.StartMinutes, entry.EndMinutes, entry.CreatedAt, entry.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert working hours: %w", err)
		}
	}

	return tx.Commit()
}

func (r *availabilityRepository) GetBlockedSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.BlockedSlot, error) {
	query := `
		SELECT id, provider_id, start_time, end_time, reason, created_at, updated_at
		FROM blocked_slots
		WHERE provider_id = $1
		AND start_time < $3
		AND end_time > $2
		ORDER BY start_time ASC
	`
	var slots []*model.BlockedSlot
	if err := r.db.SelectContext(ctx, &slots, query, providerID, from, to); err != nil {
		return nil, fmt.Errorf("failed to get blocked slots: %w", err)
	}
	return slots, nil
}

func (r *availabilityRepository) CreateBlockedSlot(ctx context.Context, slot *model.BlockedSlot) error {
	query := `
		INSERT INTO blocked_slots (
			id, provider_id, start_time, end_time, reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	slot.ID = uuid.New()
	slot.CreatedAt = time.Now()
	slot.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		slot.ID, slot.ProviderID, slot.StartTime, slot.EndTime,
		slot.Reason, slot.CreatedAt, slot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create blocked slot: %w", err)
	}
	return nil
}

func (r *availabilityRepository) DeleteBlockedSlot(ctx context.Context, providerID, slotID uuid.UUID) error {
	query := `DELETE FROM blocked_slots WHERE id = $1 AND provider_id = $2`

	result, err := r.db.ExecContext(ctx, query, slotID, providerID)
	if err != nil {
		return fmt.Errorf("failed to delete blocked slot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("blocked slot", nil)
	}
	return nil
}
