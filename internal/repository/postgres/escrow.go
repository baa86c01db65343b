package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wakilipro/booking-api/internal/model"
	apperrors "github.com/wakilipro/booking-api/pkg/errors"
)

func (r *escrowRepository) CreateHold(ctx context.Context, hold *model.EscrowHold) error {
	query := `
		INSERT INTO escrow_holds (
			id, booking_id, client_id, provider_id,
			amount, commission, payout, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	hold.ID = uuid.New()
	hold.Status = model.EscrowStatusPending
	hold.CreatedAt = time.Now()
	hold.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		hold.ID,
		hold.BookingID,
		hold.ClientID,
		hold.ProviderID,
		hold.Amount,
		hold.Commission,
		hold.Payout,
		hold.Status,
		hold.CreatedAt,
		hold.UpdatedAt,
	)
	if err != nil {
		if isSchedulingConflict(err) {
			return apperrors.Conflict("escrow hold already exists for booking", err)
		}
		return fmt.Errorf("failed to create escrow hold: %w", err)
	}
	return nil
}

func (r *escrowRepository) GetHoldByBooking(ctx context.Context, bookingID uuid.UUID) (*model.EscrowHold, error) {
	query := `
		SELECT id, booking_id, client_id, provider_id,
			   amount, commission, payout, status,
			   resolved_at, reason, cancelled_by,
			   created_at, updated_at
		FROM escrow_holds
		WHERE booking_id = $1
	`
	var hold model.EscrowHold
	if err := r.db.GetContext(ctx, &hold, query, bookingID); err != nil {
		return nil, mapNotFound(err, "escrow hold")
	}
	return &hold, nil
}

func (r *escrowRepository) SettleHold(ctx context.Context, bookingID uuid.UUID, status model.EscrowStatus, reason string, cancelledBy *string, at time.Time) (bool, error) {
	// Settlement is a single conditional update so a hold can never be
	// released and refunded both.
	query := `
		UPDATE escrow_holds
		SET status = $1, reason = $2, cancelled_by = $3,
			resolved_at = $4, updated_at = NOW()
		WHERE booking_id = $5 AND status = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		status, reason, cancelledBy, at, bookingID, model.EscrowStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to settle escrow hold: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}
