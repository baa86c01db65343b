package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wakilipro/booking-api/internal/model"
	apperrors "github.com/wakilipro/booking-api/pkg/errors"
)

const bookingColumns = `
	id, client_id, provider_id, scheduled_start, scheduled_end,
	client_payment_amount, commission_rate, platform_commission,
	provider_payout, discount_applied, status,
	client_confirmed, client_confirmed_at,
	provider_confirmed, provider_confirmed_at,
	payout_status, payment_reference, cancelled_by, cancel_reason,
	notes, created_at, updated_at
`

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (
			id, client_id, provider_id, scheduled_start, scheduled_end,
			client_payment_amount, commission_rate, platform_commission,
			provider_payout, discount_applied, status, payout_status,
			notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	booking.ID = uuid.New()
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		booking.ID,
		booking.ClientID,
		booking.ProviderID,
		booking.ScheduledStart,
		booking.ScheduledEnd,
		booking.ClientPaymentAmount,
		booking.CommissionRate,
		booking.PlatformCommission,
		booking.ProviderPayout,
		booking.DiscountApplied,
		booking.Status,
		booking.PayoutStatus,
		booking.Notes,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		if isSchedulingConflict(err) {
			return apperrors.Conflict("slot is no longer available", err)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var booking model.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, mapNotFound(err, "booking")
	}
	return &booking, nil
}

func (r *bookingRepository) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters.ClientID != uuid.Nil {
		query += fmt.Sprintf(" AND client_id = $%d", argCount)
		args = append(args, filters.ClientID)
		argCount++
	}
	if filters.ProviderID != uuid.Nil {
		query += fmt.Sprintf(" AND provider_id = $%d", argCount)
		args = append(args, filters.ProviderID)
		argCount++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}
	if !filters.StartDate.IsZero() {
		query += fmt.Sprintf(" AND scheduled_start >= $%d", argCount)
		args = append(args, filters.StartDate)
		argCount++
	}
	if !filters.EndDate.IsZero() {
		query += fmt.Sprintf(" AND scheduled_end <= $%d", argCount)
		args = append(args, filters.EndDate)
		argCount++
	}

	query += " ORDER BY scheduled_start ASC"

	var bookings []*model.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (r *bookingRepository) GetProviderBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE provider_id = $1
		AND status <> $2
		AND scheduled_start < $4
		AND scheduled_end > $3
		ORDER BY scheduled_start ASC
	`
	var bookings []*model.Booking
	err := r.db.SelectContext(ctx, &bookings, query, providerID, model.BookingStatusCancelled, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider bookings: %w", err)
	}
	return bookings, nil
}

func (r *bookingRepository) ConfirmPayment(ctx context.Context, id uuid.UUID, paymentRef string) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $1, payment_reference = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query,
		model.BookingStatusPaymentConfirmed, paymentRef, id, model.BookingStatusPendingPayment)
	if err != nil {
		return false, fmt.Errorf("failed to confirm payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *bookingRepository) SetPartyConfirmed(ctx context.Context, id uuid.UUID, role model.PartyRole, at time.Time) (bool, error) {
	var query string
	switch role {
	case model.PartyRoleClient:
		query = `
			UPDATE bookings
			SET client_confirmed = TRUE, client_confirmed_at = $1, updated_at = NOW()
			WHERE id = $2 AND client_confirmed = FALSE
		`
	case model.PartyRoleProvider:
		query = `
			UPDATE bookings
			SET provider_confirmed = TRUE, provider_confirmed_at = $1, updated_at = NOW()
			WHERE id = $2 AND provider_confirmed = FALSE
		`
	default:
		return false, fmt.Errorf("unknown party role: %s", role)
	}

	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to set confirmation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *bookingRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query,
		model.BookingStatusCompleted, id, model.BookingStatusPaymentConfirmed)
	if err != nil {
		return fmt.Errorf("failed to complete booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Conflict("booking is not in a completable state", nil)
	}
	return nil
}

func (r *bookingRepository) SetPayoutStatus(ctx context.Context, id uuid.UUID, status model.PayoutStatus) (bool, error) {
	// Single conditional update: the read-PENDING-then-set is indivisible,
	// so concurrent settlements cannot both win.
	query := `
		UPDATE bookings
		SET payout_status = $1, updated_at = NOW()
		WHERE id = $2 AND payout_status = $3
	`
	result, err := r.db.ExecContext(ctx, query, status, id, model.PayoutStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to set payout status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *bookingRepository) Cancel(ctx context.Context, id uuid.UUID, cancelledBy model.PartyRole, reason string) error {
	query := `
		UPDATE bookings
		SET status = $1, cancelled_by = $2, cancel_reason = $3, updated_at = NOW()
		WHERE id = $4 AND status NOT IN ($5, $1)
	`
	result, err := r.db.ExecContext(ctx, query,
		model.BookingStatusCancelled, string(cancelledBy), reason, id, model.BookingStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Conflict("booking cannot be cancelled", nil)
	}
	return nil
}

func (r *bookingRepository) Reschedule(ctx context.Context, id uuid.UUID, start, end time.Time) error {
	query := `
		UPDATE bookings
		SET scheduled_start = $1, scheduled_end = $2, updated_at = NOW()
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, start, end, id)
	if err != nil {
		if isSchedulingConflict(err) {
			return apperrors.Conflict("new slot is no longer available", err)
		}
		return fmt.Errorf("failed to reschedule booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("booking", nil)
	}
	return nil
}

func (r *bookingRepository) ListUnresolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = $1
		AND payout_status = $2
		AND scheduled_end < $3
		ORDER BY scheduled_end ASC
		LIMIT $4
	`
	var bookings []*model.Booking
	err := r.db.SelectContext(ctx, &bookings, query,
		model.BookingStatusPaymentConfirmed, model.PayoutStatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved bookings: %w", err)
	}
	return bookings, nil
}
