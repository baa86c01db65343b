package postgres

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wakilipro/booking-api/internal/repository"
	apperrors "github.com/wakilipro/booking-api/pkg/errors"
)

// SQLSTATE codes surfaced by the scheduling constraints.
const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

type bookingRepository struct {
	db *sqlx.DB
}

type availabilityRepository struct {
	db *sqlx.DB
}

type escrowRepository struct {
	db *sqlx.DB
}

type providerRepository struct {
	db *sqlx.DB
}

type outboxRepository struct {
	db *sqlx.DB
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewBookingRepository(db *sqlx.DB) repository.BookingRepository {
	return &bookingRepository{db: db}
}

func NewAvailabilityRepository(db *sqlx.DB) repository.AvailabilityRepository {
	return &availabilityRepository{db: db}
}

func NewEscrowRepository(db *sqlx.DB) repository.EscrowRepository {
	return &escrowRepository{db: db}
}

func NewProviderRepository(db *sqlx.DB) repository.ProviderRepository {
	return &providerRepository{db: db}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{db: db}
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

// isSchedulingConflict reports whether err is a unique or exclusion
// constraint violation, i.e. the data layer rejected an overlapping or
// duplicate row.
func isSchedulingConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation || pqErr.Code == pgExclusionViolation
	}
	return false
}

func mapNotFound(err error, resource string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, err)
	}
	return err
}
