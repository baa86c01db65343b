package booking

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakilipro/booking-api/internal/config"
	"github.com/wakilipro/booking-api/internal/model"
	"github.com/wakilipro/booking-api/internal/service/escrow"
	"github.com/wakilipro/booking-api/internal/service/event"
	"github.com/wakilipro/booking-api/pkg/clock"
	apperrors "github.com/wakilipro/booking-api/pkg/errors"
	"github.com/wakilipro/booking-api/pkg/logger"
	"github.com/wakilipro/booking-api/pkg/metrics"
)

// Shared across the package so prometheus collectors register once.
var testMetrics = metrics.New("booking_service_test")

type fakeBookingRepo struct {
	bookings  map[uuid.UUID]*model.Booking
	createErr error
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]*model.Booking)}
}

func (f *fakeBookingRepo) Create(ctx context.Context, b *model.Booking) error {
	if f.createErr != nil {
		return f.createErr
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	f.bookings[b.ID] = b
	return nil
}

func (f *fakeBookingRepo) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, apperrors.NotFound("booking", nil)
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBookingRepo) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	out := make([]*model.Booking, 0, len(f.bookings))
	for _, b := range f.bookings {
		copied := *b
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeBookingRepo) GetProviderBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.Booking, error) {
	return nil, nil
}

func (f *fakeBookingRepo) ConfirmPayment(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	b, ok := f.bookings[id]
	if !ok || b.Status != model.BookingStatusPendingPayment {
		return false, nil
	}
	b.Status = model.BookingStatusPaymentConfirmed
	b.PaymentReference = &ref
	return true, nil
}

func (f *fakeBookingRepo) SetPartyConfirmed(ctx context.Context, id uuid.UUID, role model.PartyRole, at time.Time) (bool, error) {
	b, ok := f.bookings[id]
	if !ok {
		return false, nil
	}
	switch role {
	case model.PartyRoleClient:
		if b.ClientConfirmed {
			return false, nil
		}
		b.ClientConfirmed = true
		b.ClientConfirmedAt = &at
	case model.PartyRoleProvider:
		if b.ProviderConfirmed {
			return false, nil
		}
		b.ProviderConfirmed = true
		b.ProviderConfirmedAt = &at
	}
	return true, nil
}

func (f *fakeBookingRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	b, ok := f.bookings[id]
	if !ok {
		return apperrors.NotFound("booking", nil)
	}
	if b.Status != model.BookingStatusPaymentConfirmed {
		return apperrors.Conflict("booking is not awaiting completion", nil)
	}
	b.Status = model.BookingStatusCompleted
	return nil
}

func (f *fakeBookingRepo) SetPayoutStatus(ctx context.Context, id uuid.UUID, status model.PayoutStatus) (bool, error) {
	b, ok := f.bookings[id]
	if !ok || b.PayoutStatus != model.PayoutStatusPending {
		return false, nil
	}
	b.PayoutStatus = status
	return true, nil
}

func (f *fakeBookingRepo) Cancel(ctx context.Context, id uuid.UUID, by model.PartyRole, reason string) error {
	b, ok := f.bookings[id]
	if !ok {
		return apperrors.NotFound("booking", nil)
	}
	if b.Status.IsTerminal() {
		return apperrors.Conflict("booking already resolved", nil)
	}
	byStr := string(by)
	b.Status = model.BookingStatusCancelled
	b.CancelledBy = &byStr
	return nil
}

func (f *fakeBookingRepo) Reschedule(ctx context.Context, id uuid.UUID, start, end time.Time) error {
	b, ok := f.bookings[id]
	if !ok {
		return apperrors.NotFound("booking", nil)
	}
	b.ScheduledStart = start
	b.ScheduledEnd = end
	return nil
}

func (f *fakeBookingRepo) ListUnresolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Booking, error) {
	return nil, nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	f.events = append(f.events, e)
	return nil
}
func (f *fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return nil, nil
}
func (f *fakeOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, msg string, retryAt *time.Time) error {
	return nil
}
func (f *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeAvail struct {
	available bool
}

func (f *fakeAvail) IsIntervalAvailable(ctx context.Context, providerID uuid.UUID, start, end time.Time, exclude uuid.UUID) (bool, error) {
	return f.available, nil
}

type fakeDirectory struct {
	provider *model.Provider
	client   *model.Client
	consumed bool
	restored bool
}

func (f *fakeDirectory) GetProvider(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	if f.provider == nil {
		return nil, apperrors.NotFound("provider", nil)
	}
	return f.provider, nil
}

func (f *fakeDirectory) GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	if f.client == nil {
		return nil, apperrors.NotFound("client", nil)
	}
	return f.client, nil
}

func (f *fakeDirectory) ConsumeFirstConsultation(ctx context.Context, clientID uuid.UUID) (bool, error) {
	if f.client == nil || f.client.HadFirstConsultation {
		return false, nil
	}
	f.client.HadFirstConsultation = true
	f.consumed = true
	return true, nil
}

func (f *fakeDirectory) RestoreFirstConsultation(ctx context.Context, clientID uuid.UUID) error {
	f.client.HadFirstConsultation = false
	f.restored = true
	return nil
}

type heldPayment struct {
	params escrow.HoldParams
	status model.EscrowStatus
	reason string
	by     string
}

type fakeLedger struct {
	holds        map[uuid.UUID]*heldPayment
	failHoldOnce error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{holds: make(map[uuid.UUID]*heldPayment)}
}

func (f *fakeLedger) HoldPayment(ctx context.Context, params escrow.HoldParams) (*model.EscrowHold, error) {
	if f.failHoldOnce != nil {
		err := f.failHoldOnce
		f.failHoldOnce = nil
		return nil, err
	}
	if _, exists := f.holds[params.BookingID]; exists {
		return nil, escrow.ErrDuplicateHold
	}
	f.holds[params.BookingID] = &heldPayment{params: params, status: model.EscrowStatusPending}
	return &model.EscrowHold{BookingID: params.BookingID, Amount: params.Amount}, nil
}

func (f *fakeLedger) ReleasePayment(ctx context.Context, bookingID uuid.UUID, reason string) error {
	h, ok := f.holds[bookingID]
	if !ok {
		return escrow.ErrNoHold
	}
	if h.status != model.EscrowStatusPending {
		return escrow.ErrAlreadySettled
	}
	h.status = model.EscrowStatusReleased
	h.reason = reason
	return nil
}

func (f *fakeLedger) RefundPayment(ctx context.Context, bookingID uuid.UUID, reason string, by model.PartyRole) error {
	h, ok := f.holds[bookingID]
	if !ok {
		return escrow.ErrNoHold
	}
	if h.status != model.EscrowStatusPending {
		return escrow.ErrAlreadySettled
	}
	h.status = model.EscrowStatusRefunded
	h.reason = reason
	h.by = string(by)
	return nil
}

type fakeRefStore struct {
	seen map[string]bool
}

func (f *fakeRefStore) SaveIfAbsent(ctx context.Context, reference string, bookingID uuid.UUID, ttl time.Duration) (bool, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[reference] {
		return false, nil
	}
	f.seen[reference] = true
	return true, nil
}

type fixture struct {
	svc       *Service
	repo      *fakeBookingRepo
	avail     *fakeAvail
	directory *fakeDirectory
	ledger    *fakeLedger
	outbox    *fakeOutboxRepo
	clock     *clock.Fixed
	cfg       config.BookingConfig
}

var (
	now       = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	slotStart = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	slotEnd   = slotStart.Add(time.Hour)
)

func hourlyRate(m model.Money) *model.Money { return &m }

func newFixture() *fixture {
	cfg := config.BookingConfig{
		CommissionRate:            0.10,
		FirstConsultationDiscount: 0.50,
		CancellationWindowHours:   24,
		MaxRangeDays:              30,
		MinSlotMinutes:            15,
		MaxSlotMinutes:            480,
		EscrowAutoReleaseDays:     7,
		PaymentRefTTLHours:        48,
	}
	log := logger.NewLogger(&logger.Config{Level: logger.InfoLevel, Output: io.Discard})

	f := &fixture{
		repo:  newFakeBookingRepo(),
		avail: &fakeAvail{available: true},
		directory: &fakeDirectory{
			provider: &model.Provider{
				IsVerified: true,
				HourlyRate: hourlyRate(100000),
			},
			client: &model.Client{HadFirstConsultation: true},
		},
		ledger: newFakeLedger(),
		outbox: &fakeOutboxRepo{},
		clock:  clock.NewFixed(now),
		cfg:    cfg,
	}
	f.svc = NewService(
		f.repo, f.avail, f.directory, f.ledger,
		event.NewService(f.outbox, log),
		&fakeRefStore{}, f.clock, cfg, testMetrics, log,
	)
	return f
}

func (f *fixture) createPaidBooking(t *testing.T, clientID, providerID uuid.UUID) *model.Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), clientID, &model.CreateBookingRequest{
		ProviderID:     providerID,
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	require.NoError(t, err)

	err = f.svc.ConfirmPayment(context.Background(), &model.PaymentCallback{
		BookingID:        b.ID,
		PaymentReference: "MPESA-" + b.ID.String(),
		Amount:           b.ClientPaymentAmount,
	})
	require.NoError(t, err)

	paid, err := f.repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	return paid
}

func TestCreateBookingSplitsCommission(t *testing.T) {
	f := newFixture()

	b, err := f.svc.CreateBooking(context.Background(), uuid.New(), &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	require.NoError(t, err)

	assert.Equal(t, model.Money(100000), b.ClientPaymentAmount)
	assert.Equal(t, model.Money(10000), b.PlatformCommission)
	assert.Equal(t, model.Money(90000), b.ProviderPayout)
	assert.Equal(t, b.ClientPaymentAmount, b.PlatformCommission+b.ProviderPayout)
	assert.Equal(t, model.BookingStatusPendingPayment, b.Status)
	assert.Equal(t, model.PayoutStatusPending, b.PayoutStatus)

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, model.EventBookingCreated, f.outbox.events[0].EventType)
}

func TestCreateBookingProratesFee(t *testing.T) {
	f := newFixture()

	// 30 minutes at 100000/h.
	b, err := f.svc.CreateBooking(context.Background(), uuid.New(), &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotStart.Add(30 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, model.Money(50000), b.ClientPaymentAmount)
}

func TestCreateBookingRejectsPastStart(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateBooking(context.Background(), uuid.New(), &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: now.Add(-time.Hour),
		ScheduledEnd:   now,
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateBookingRejectsUnverifiedProvider(t *testing.T) {
	f := newFixture()
	f.directory.provider.IsVerified = false

	_, err := f.svc.CreateBooking(context.Background(), uuid.New(), &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	assert.True(t, apperrors.IsConflict(err))
}

func TestCreateBookingRejectsMissingRate(t *testing.T) {
	f := newFixture()
	f.directory.provider.HourlyRate = nil

	_, err := f.svc.CreateBooking(context.Background(), uuid.New(), &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateBookingUnknownClient(t *testing.T) {
	f := newFixture()
	f.directory.client = nil

	_, err := f.svc.CreateBooking(context.Background(), uuid.New(), &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCreateBookingRejectsTakenSlot(t *testing.T) {
	f := newFixture()
	f.avail.available = false

	_, err := f.svc.CreateBooking(context.Background(), uuid.New(), &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	assert.True(t, apperrors.IsConflict(err))
}

func TestCreateBookingAppliesFirstConsultationDiscount(t *testing.T) {
	f := newFixture()
	f.directory.provider.OffersFirstSession = true
	f.directory.client = &model.Client{HadFirstConsultation: false}

	b, err := f.svc.CreateBooking(context.Background(), uuid.New(), &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	require.NoError(t, err)

	assert.True(t, b.DiscountApplied)
	assert.Equal(t, model.Money(50000), b.ClientPaymentAmount)
	assert.Equal(t, b.ClientPaymentAmount, b.PlatformCommission+b.ProviderPayout)
	assert.True(t, f.directory.consumed)

	// A second booking gets no discount.
	second, err := f.svc.CreateBooking(context.Background(), uuid.New(), &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart.Add(2 * time.Hour),
		ScheduledEnd:   slotStart.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, second.DiscountApplied)
	assert.Equal(t, model.Money(100000), second.ClientPaymentAmount)
}

func TestCreateBookingRestoresDiscountOnFailure(t *testing.T) {
	f := newFixture()
	f.directory.provider.OffersFirstSession = true
	f.directory.client = &model.Client{HadFirstConsultation: false}
	f.repo.createErr = apperrors.Conflict("slot is no longer available", nil)

	_, err := f.svc.CreateBooking(context.Background(), uuid.New(), &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	assert.True(t, apperrors.IsConflict(err))
	assert.True(t, f.directory.restored)
	assert.False(t, f.directory.client.HadFirstConsultation)
}

func TestConfirmPaymentHoldsEscrow(t *testing.T) {
	f := newFixture()
	clientID, providerID := uuid.New(), uuid.New()

	b := f.createPaidBooking(t, clientID, providerID)
	assert.Equal(t, model.BookingStatusPaymentConfirmed, b.Status)
	require.NotNil(t, b.PaymentReference)

	hold, ok := f.ledger.holds[b.ID]
	require.True(t, ok)
	assert.Equal(t, model.Money(100000), hold.params.Amount)
	assert.Equal(t, model.Money(10000), hold.params.Commission)
	assert.Equal(t, model.Money(90000), hold.params.Payout)
}

func TestConfirmPaymentRejectsAmountMismatch(t *testing.T) {
	f := newFixture()

	b, err := f.svc.CreateBooking(context.Background(), uuid.New(), &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	require.NoError(t, err)

	err = f.svc.ConfirmPayment(context.Background(), &model.PaymentCallback{
		BookingID:        b.ID,
		PaymentReference: "MPESA-1",
		Amount:           b.ClientPaymentAmount - 1,
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestConfirmPaymentDuplicateCallbackIsNoOp(t *testing.T) {
	f := newFixture()

	b, err := f.svc.CreateBooking(context.Background(), uuid.New(), &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	require.NoError(t, err)

	callback := &model.PaymentCallback{
		BookingID:        b.ID,
		PaymentReference: "MPESA-REPLAY",
		Amount:           b.ClientPaymentAmount,
	}
	require.NoError(t, f.svc.ConfirmPayment(context.Background(), callback))
	require.NoError(t, f.svc.ConfirmPayment(context.Background(), callback))

	// One hold, one payment_confirmed event despite the replay.
	assert.Len(t, f.ledger.holds, 1)
	confirmed := 0
	for _, e := range f.outbox.events {
		if e.EventType == model.EventPaymentConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)
}

func TestConfirmPaymentRetryAfterHoldFailure(t *testing.T) {
	f := newFixture()

	b, err := f.svc.CreateBooking(context.Background(), uuid.New(), &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	require.NoError(t, err)

	callback := &model.PaymentCallback{
		BookingID:        b.ID,
		PaymentReference: "MPESA-RETRY",
		Amount:           b.ClientPaymentAmount,
	}

	// The first attempt wins the status gate but dies before the hold exists.
	f.ledger.failHoldOnce = errors.New("ledger unavailable")
	require.Error(t, f.svc.ConfirmPayment(context.Background(), callback))

	stranded, err := f.repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPaymentConfirmed, stranded.Status)
	assert.Empty(t, f.ledger.holds)

	// The gateway's retry must finish the job.
	require.NoError(t, f.svc.ConfirmPayment(context.Background(), callback))

	_, held := f.ledger.holds[b.ID]
	require.True(t, held)

	confirmed := 0
	for _, e := range f.outbox.events {
		if e.EventType == model.EventPaymentConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)
}

func TestConfirmPaymentCancelledBooking(t *testing.T) {
	f := newFixture()
	clientID := uuid.New()

	b, err := f.svc.CreateBooking(context.Background(), clientID, &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.CancelBooking(context.Background(), b.ID, clientID, "changed my mind"))

	err = f.svc.ConfirmPayment(context.Background(), &model.PaymentCallback{
		BookingID:        b.ID,
		PaymentReference: "MPESA-LATE",
		Amount:           b.ClientPaymentAmount,
	})
	assert.True(t, apperrors.IsConflict(err))
	assert.Empty(t, f.ledger.holds)
}

func TestConfirmCompletionBeforeSessionEnd(t *testing.T) {
	f := newFixture()
	clientID, providerID := uuid.New(), uuid.New()
	b := f.createPaidBooking(t, clientID, providerID)

	_, err := f.svc.ConfirmCompletion(context.Background(), b.ID, clientID)
	assert.True(t, apperrors.IsConflict(err))
}

func TestConfirmCompletionRequiresParty(t *testing.T) {
	f := newFixture()
	b := f.createPaidBooking(t, uuid.New(), uuid.New())
	f.clock.Advance(slotEnd.Sub(now) + time.Minute)

	_, err := f.svc.ConfirmCompletion(context.Background(), b.ID, uuid.New())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}

func TestConfirmCompletionDualConfirmationReleasesPayout(t *testing.T) {
	f := newFixture()
	clientID, providerID := uuid.New(), uuid.New()
	b := f.createPaidBooking(t, clientID, providerID)
	f.clock.Advance(slotEnd.Sub(now) + time.Minute)

	first, err := f.svc.ConfirmCompletion(context.Background(), b.ID, clientID)
	require.NoError(t, err)
	assert.False(t, first.BothConfirmed)
	assert.False(t, first.PayoutReleased)

	// Booking stays paid until both parties confirm.
	mid, err := f.repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPaymentConfirmed, mid.Status)

	second, err := f.svc.ConfirmCompletion(context.Background(), b.ID, providerID)
	require.NoError(t, err)
	assert.True(t, second.BothConfirmed)
	assert.True(t, second.PayoutReleased)

	done, err := f.repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCompleted, done.Status)

	hold := f.ledger.holds[b.ID]
	assert.Equal(t, model.EscrowStatusReleased, hold.status)
	assert.Equal(t, model.ReleaseReasonDualConfirmation, hold.reason)
}

func TestConfirmCompletionSamePartyTwice(t *testing.T) {
	f := newFixture()
	clientID, providerID := uuid.New(), uuid.New()
	b := f.createPaidBooking(t, clientID, providerID)
	f.clock.Advance(slotEnd.Sub(now) + time.Minute)

	_, err := f.svc.ConfirmCompletion(context.Background(), b.ID, clientID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmCompletion(context.Background(), b.ID, clientID)
	assert.True(t, apperrors.IsConflict(err))

	// The payout is untouched.
	assert.Equal(t, model.EscrowStatusPending, f.ledger.holds[b.ID].status)
}

func TestConfirmCompletionPendingPaymentRejected(t *testing.T) {
	f := newFixture()
	clientID := uuid.New()

	b, err := f.svc.CreateBooking(context.Background(), clientID, &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	require.NoError(t, err)
	f.clock.Advance(slotEnd.Sub(now) + time.Minute)

	_, err = f.svc.ConfirmCompletion(context.Background(), b.ID, clientID)
	assert.True(t, apperrors.IsConflict(err))
}

func TestCancelPendingPaymentAnyTime(t *testing.T) {
	f := newFixture()
	clientID := uuid.New()

	b, err := f.svc.CreateBooking(context.Background(), clientID, &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelBooking(context.Background(), b.ID, clientID, "no longer needed"))

	cancelled, err := f.repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, cancelled.Status)
	// Nothing was paid, so there is nothing to refund.
	assert.Empty(t, f.ledger.holds)
}

func TestCancelPaidBookingRefundsEscrow(t *testing.T) {
	f := newFixture()
	clientID, providerID := uuid.New(), uuid.New()
	b := f.createPaidBooking(t, clientID, providerID)

	// More than the 24h window remains before the session.
	require.NoError(t, f.svc.CancelBooking(context.Background(), b.ID, providerID, "family emergency"))

	hold := f.ledger.holds[b.ID]
	assert.Equal(t, model.EscrowStatusRefunded, hold.status)
	assert.Equal(t, string(model.PartyRoleProvider), hold.by)
}

func TestCancelPaidBookingInsideWindowRejected(t *testing.T) {
	f := newFixture()
	clientID, providerID := uuid.New(), uuid.New()
	b := f.createPaidBooking(t, clientID, providerID)

	// 2 hours before the session start.
	f.clock.Advance(slotStart.Sub(now) - 2*time.Hour)

	err := f.svc.CancelBooking(context.Background(), b.ID, clientID, "too late")
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, model.EscrowStatusPending, f.ledger.holds[b.ID].status)
}

func TestCancelCompletedBookingRejected(t *testing.T) {
	f := newFixture()
	clientID, providerID := uuid.New(), uuid.New()
	b := f.createPaidBooking(t, clientID, providerID)
	f.clock.Advance(slotEnd.Sub(now) + time.Minute)

	_, err := f.svc.ConfirmCompletion(context.Background(), b.ID, clientID)
	require.NoError(t, err)
	_, err = f.svc.ConfirmCompletion(context.Background(), b.ID, providerID)
	require.NoError(t, err)

	err = f.svc.CancelBooking(context.Background(), b.ID, clientID, "buyer remorse")
	assert.True(t, apperrors.IsConflict(err))
}

func TestCancelCancelledBookingRejected(t *testing.T) {
	f := newFixture()
	clientID := uuid.New()
	b := f.createPaidBooking(t, clientID, uuid.New())

	require.NoError(t, f.svc.CancelBooking(context.Background(), b.ID, clientID, "first"))
	err := f.svc.CancelBooking(context.Background(), b.ID, clientID, "second")
	assert.True(t, apperrors.IsConflict(err))
}

func TestCancelRequiresParty(t *testing.T) {
	f := newFixture()
	b := f.createPaidBooking(t, uuid.New(), uuid.New())

	err := f.svc.CancelBooking(context.Background(), b.ID, uuid.New(), "not mine")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}

func TestRescheduleKeepsFee(t *testing.T) {
	f := newFixture()
	clientID, providerID := uuid.New(), uuid.New()
	b := f.createPaidBooking(t, clientID, providerID)
	originalFee := b.ClientPaymentAmount

	// The new interval is longer; the charged fee does not change.
	newStart := slotStart.AddDate(0, 0, 1)
	updated, err := f.svc.RescheduleBooking(context.Background(), b.ID, clientID, &model.RescheduleBookingRequest{
		ScheduledStart: newStart,
		ScheduledEnd:   newStart.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, newStart, updated.ScheduledStart)
	assert.Equal(t, originalFee, updated.ClientPaymentAmount)

	stored, err := f.repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, newStart, stored.ScheduledStart)
	assert.Equal(t, originalFee, stored.ClientPaymentAmount)
}

func TestRescheduleProviderForbidden(t *testing.T) {
	f := newFixture()
	clientID, providerID := uuid.New(), uuid.New()
	b := f.createPaidBooking(t, clientID, providerID)

	_, err := f.svc.RescheduleBooking(context.Background(), b.ID, providerID, &model.RescheduleBookingRequest{
		ScheduledStart: slotStart.AddDate(0, 0, 1),
		ScheduledEnd:   slotEnd.AddDate(0, 0, 1),
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
}

func TestRescheduleUnpaidBookingRejected(t *testing.T) {
	f := newFixture()
	clientID := uuid.New()

	b, err := f.svc.CreateBooking(context.Background(), clientID, &model.CreateBookingRequest{
		ProviderID:     uuid.New(),
		ScheduledStart: slotStart,
		ScheduledEnd:   slotEnd,
	})
	require.NoError(t, err)

	_, err = f.svc.RescheduleBooking(context.Background(), b.ID, clientID, &model.RescheduleBookingRequest{
		ScheduledStart: slotStart.AddDate(0, 0, 1),
		ScheduledEnd:   slotEnd.AddDate(0, 0, 1),
	})
	assert.True(t, apperrors.IsConflict(err))
}

func TestRescheduleTakenSlotRejected(t *testing.T) {
	f := newFixture()
	clientID, providerID := uuid.New(), uuid.New()
	b := f.createPaidBooking(t, clientID, providerID)
	f.avail.available = false

	_, err := f.svc.RescheduleBooking(context.Background(), b.ID, clientID, &model.RescheduleBookingRequest{
		ScheduledStart: slotStart.AddDate(0, 0, 1),
		ScheduledEnd:   slotEnd.AddDate(0, 0, 1),
	})
	assert.True(t, apperrors.IsConflict(err))
}

func TestGetBookingDerivesInProgress(t *testing.T) {
	f := newFixture()
	clientID, providerID := uuid.New(), uuid.New()
	b := f.createPaidBooking(t, clientID, providerID)

	f.clock.Advance(slotStart.Sub(now) + 30*time.Minute)

	got, err := f.svc.GetBooking(context.Background(), b.ID, clientID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusInProgress, got.Status)

	// The stored status is untouched.
	stored, err := f.repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPaymentConfirmed, stored.Status)
}
