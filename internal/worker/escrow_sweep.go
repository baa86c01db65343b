package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wakilipro/booking-api/internal/model"
	"github.com/wakilipro/booking-api/internal/repository"
	"github.com/wakilipro/booking-api/internal/service/escrow"
	"github.com/wakilipro/booking-api/pkg/clock"
	"github.com/wakilipro/booking-api/pkg/logger"
)

const sweepBatchSize = 100

// EscrowSweepWorker resolves abandoned holds: paid bookings whose session
// ended more than the resolution window ago with the payout still pending
// get released to the provider. The release goes through the same
// check-and-set gate as a dual-confirmation release, so the sweep can never
// double-settle against a concurrent confirmation.
type EscrowSweepWorker struct {
	bookingRepo   repository.BookingRepository
	escrowSvc     *escrow.Service
	window        time.Duration
	sweepInterval time.Duration
	clock         clock.Clock
	logger        *logger.Logger
}

func NewEscrowSweepWorker(
	bookingRepo repository.BookingRepository,
	escrowSvc *escrow.Service,
	window time.Duration,
	sweepInterval time.Duration,
	clk clock.Clock,
	logger *logger.Logger,
) *EscrowSweepWorker {
	return &EscrowSweepWorker{
		bookingRepo:   bookingRepo,
		escrowSvc:     escrowSvc,
		window:        window,
		sweepInterval: sweepInterval,
		clock:         clk,
		logger:        logger,
	}
}

func (w *EscrowSweepWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	w.logger.Info("starting escrow sweep", "window", w.window.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down escrow sweep")
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error(err, "escrow sweep pass failed")
			}
		}
	}
}

func (w *EscrowSweepWorker) sweep(ctx context.Context) error {
	cutoff := w.clock.Now().Add(-w.window)

	bookings, err := w.bookingRepo.ListUnresolvedBefore(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list unresolved bookings: %w", err)
	}

	for _, b := range bookings {
		err := w.escrowSvc.ReleasePayment(ctx, b.ID, model.ReleaseReasonAutoTimeout)
		switch {
		case err == nil:
			// The ledger emits the escrow_released event with the
			// auto-timeout reason; nothing more to announce here.
			w.logger.Info("auto-released escrow hold",
				"booking_id", b.ID.String(),
				"scheduled_end", b.ScheduledEnd)
		case errors.Is(err, escrow.ErrAlreadySettled):
			// A confirmation landed between the listing and the release.
		default:
			w.logger.Error(err, "failed to auto-release escrow hold",
				"booking_id", b.ID.String())
		}
	}

	return nil
}
