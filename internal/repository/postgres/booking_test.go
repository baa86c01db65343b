package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakilipro/booking-api/internal/model"
	apperrors "github.com/wakilipro/booking-api/pkg/errors"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func testBooking() *model.Booking {
	return &model.Booking{
		ClientID:            uuid.New(),
		ProviderID:          uuid.New(),
		ScheduledStart:      time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		ScheduledEnd:        time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC),
		ClientPaymentAmount: 100000,
		CommissionRate:      0.10,
		PlatformCommission:  10000,
		ProviderPayout:      90000,
		Status:              model.BookingStatusPendingPayment,
		PayoutStatus:        model.PayoutStatusPending,
	}
}

func TestBookingCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(0, 1))

	booking := testBooking()
	require.NoError(t, repo.Create(context.Background(), booking))
	assert.NotEqual(t, uuid.Nil, booking.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingCreateExclusionViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	// The overlap exclusion constraint raises 23P01 on a concurrent insert
	// for the same provider interval.
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnError(&pq.Error{Code: "23P01", Constraint: "bookings_no_overlap"})

	err := repo.Create(context.Background(), testBooking())
	assert.True(t, apperrors.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingCreateUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	mock.ExpectExec("INSERT INTO bookings").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), testBooking())
	assert.True(t, apperrors.IsConflict(err))
}

func TestConfirmPaymentConditionalUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	id := uuid.New()

	mock.ExpectExec("UPDATE bookings").
		WithArgs(model.BookingStatusPaymentConfirmed, "MPESA-123", id, model.BookingStatusPendingPayment).
		WillReturnResult(sqlmock.NewResult(0, 1))

	confirmed, err := repo.ConfirmPayment(context.Background(), id, "MPESA-123")
	require.NoError(t, err)
	assert.True(t, confirmed)
}

func TestConfirmPaymentAlreadyConfirmed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	id := uuid.New()

	// Zero rows: the booking already left PENDING_PAYMENT.
	mock.ExpectExec("UPDATE bookings").
		WithArgs(model.BookingStatusPaymentConfirmed, "MPESA-123", id, model.BookingStatusPendingPayment).
		WillReturnResult(sqlmock.NewResult(0, 0))

	confirmed, err := repo.ConfirmPayment(context.Background(), id, "MPESA-123")
	require.NoError(t, err)
	assert.False(t, confirmed)
}

func TestMarkCompletedWrongState(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	mock.ExpectExec("UPDATE bookings").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkCompleted(context.Background(), uuid.New())
	assert.True(t, apperrors.IsConflict(err))
}

func TestSetPartyConfirmedIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	id := uuid.New()
	at := time.Now()

	mock.ExpectExec("UPDATE bookings").
		WithArgs(at, id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	set, err := repo.SetPartyConfirmed(context.Background(), id, model.PartyRoleClient, at)
	require.NoError(t, err)
	assert.False(t, set)
}

func TestSetPartyConfirmedUnknownRole(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewBookingRepository(db)

	_, err := repo.SetPartyConfirmed(context.Background(), uuid.New(), model.PartyRole("auditor"), time.Now())
	assert.Error(t, err)
}

func TestSettleHoldConditionalUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEscrowRepository(db)
	bookingID := uuid.New()
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE escrow_holds").
		WithArgs(model.EscrowStatusReleased, model.ReleaseReasonDualConfirmation, nil, at, bookingID, model.EscrowStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	settled, err := repo.SettleHold(context.Background(), bookingID, model.EscrowStatusReleased,
		model.ReleaseReasonDualConfirmation, nil, at)
	require.NoError(t, err)
	assert.True(t, settled)

	// A second settlement matches zero rows.
	mock.ExpectExec("UPDATE escrow_holds").
		WillReturnResult(sqlmock.NewResult(0, 0))

	settled, err = repo.SettleHold(context.Background(), bookingID, model.EscrowStatusRefunded,
		"client cancelled", nil, at)
	require.NoError(t, err)
	assert.False(t, settled)
}

func TestCreateHoldDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEscrowRepository(db)

	mock.ExpectExec("INSERT INTO escrow_holds").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "escrow_holds_booking_id_key"})

	err := repo.CreateHold(context.Background(), &model.EscrowHold{
		BookingID:  uuid.New(),
		ClientID:   uuid.New(),
		ProviderID: uuid.New(),
		Amount:     100000,
		Commission: 10000,
		Payout:     90000,
	})
	assert.True(t, apperrors.IsConflict(err))
}
