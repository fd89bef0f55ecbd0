package service

import (
	"context"
	"errors"
	"testing"
	"time"

	bookingsrepo "staybook/internal/bookings/repository"
	bookingsservice "staybook/internal/bookings/service"
	bookingsvalidator "staybook/internal/bookings/validator"
	inventoryrepo "staybook/internal/inventory/repository"
	inventoryservice "staybook/internal/inventory/service"
	inventoryvalidator "staybook/internal/inventory/validator"
	pricingrepo "staybook/internal/pricing/repository"
	pricingservice "staybook/internal/pricing/service"
	pricingvalidator "staybook/internal/pricing/validator"
	"staybook/internal/reservations/repository"
	"staybook/internal/reservations/validator"
	"staybook/pkg/calendar"
	"staybook/pkg/config"
	"staybook/pkg/db/memory"
	apperrors "staybook/pkg/errors"
	"staybook/pkg/events"
	"staybook/pkg/logger"
	"staybook/pkg/model"
	"staybook/pkg/money"
	"staybook/pkg/sealer"
)

type quoterFunc func(ctx context.Context, roomID string, rng calendar.Range) ([]model.NightlyPrice, error)

func (f quoterFunc) QuoteNightly(ctx context.Context, roomID string, rng calendar.Range) ([]model.NightlyPrice, error) {
	return f(ctx, roomID, rng)
}

type reservationFixture struct {
	svc      *reservationService
	locks    inventoryservice.LockManager
	bookings bookingsservice.BookingService
	recorder *events.Recorder
	room     *model.Room
	checkIn  time.Time
}

func newReservationFixture(t *testing.T, units int) *reservationFixture {
	t.Helper()

	cfg := config.Default(nil)
	store := memory.New()
	recorder := &events.Recorder{}

	roomRepo := inventoryrepo.NewMemoryRoomRepository(store)
	overrideRepo := inventoryrepo.NewMemoryOverrideRepository(store)
	rooms := inventoryservice.NewRoomService(
		roomRepo,
		overrideRepo,
		inventoryvalidator.NewInventoryValidator(logger.Discard()),
		recorder,
		cfg,
	)

	bookingRepo := bookingsrepo.NewMemoryBookingRepository(store)
	tokenSealer, err := sealer.New(cfg.HoldTokenKey)
	if err != nil {
		t.Fatalf("sealer.New() error = %v", err)
	}
	locks := inventoryservice.NewLockManager(
		roomRepo,
		overrideRepo,
		inventoryrepo.NewMemoryLockRepository(store),
		bookingRepo,
		tokenSealer,
		recorder,
		cfg,
	)
	pricing := pricingservice.NewPricingService(
		pricingrepo.NewMemoryRuleRepository(store),
		rooms,
		pricingvalidator.NewRuleValidator(logger.Discard()),
		recorder,
		cfg,
	)
	bookings := bookingsservice.NewBookingService(
		bookingRepo,
		nil,
		bookingsvalidator.NewBookingValidator(logger.Discard()),
		recorder,
		cfg,
	)

	svc := NewReservationService(
		repository.NewMemoryReservationRepository(store),
		locks,
		pricing,
		bookings,
		rooms,
		validator.NewReservationValidator(logger.Discard()),
		recorder,
		cfg,
	).(*reservationService)

	room := &model.Room{
		AccommodationID: "hotel-1",
		Name:            "Harbour Double",
		DefaultPrice:    money.FromUnits(100),
		TotalUnits:      units,
	}
	if err := rooms.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	return &reservationFixture{
		svc:      svc,
		locks:    locks,
		bookings: bookings,
		recorder: recorder,
		room:     room,
		checkIn:  calendar.Date(time.Now().UTC()).AddDate(0, 0, 30),
	}
}

func (f *reservationFixture) request(quantity int) *model.ReservationRequest {
	return &model.ReservationRequest{
		RoomID:   f.room.ID,
		UserID:   "user-1",
		CheckIn:  f.checkIn,
		CheckOut: f.checkIn.AddDate(0, 0, 2),
		Quantity: quantity,
	}
}

func (f *reservationFixture) create(t *testing.T) *model.Reservation {
	t.Helper()

	reservation, err := f.svc.Create(context.Background(), f.request(1))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return reservation
}

func TestCreate_HoldsCapacity(t *testing.T) {
	f := newReservationFixture(t, 1)
	ctx := context.Background()
	before := time.Now().UTC()

	reservation := f.create(t)
	if reservation.Status != model.ReservationPending {
		t.Errorf("Status = %s, want %s", reservation.Status, model.ReservationPending)
	}
	if reservation.TotalAmount.String() != "200.00" {
		t.Errorf("TotalAmount = %s, want 200.00", reservation.TotalAmount)
	}
	if len(reservation.NightlyPrices) != 2 {
		t.Errorf("NightlyPrices = %d entries, want 2", len(reservation.NightlyPrices))
	}
	if reservation.HoldToken == "" {
		t.Error("HoldToken is empty")
	}
	window := reservation.ExpiresAt.Sub(before)
	if window < 14*time.Minute || window > 16*time.Minute {
		t.Errorf("ExpiresAt is %s after creation, want about 15m", window)
	}

	lock, err := f.locks.GetLock(ctx, reservation.LockID)
	if err != nil {
		t.Fatalf("GetLock() error = %v", err)
	}
	if lock.ReservationID != reservation.ID || lock.LockType != model.LockTypeSoft {
		t.Errorf("lock = %+v, want a soft hold for %s", lock, reservation.ID)
	}

	_, err = f.svc.Create(ctx, f.request(1))
	if !apperrors.HasCode(err, apperrors.CodeCapacityExceeded) {
		t.Errorf("second Create() error = %v, want %s", err, apperrors.CodeCapacityExceeded)
	}
}

func TestCreate_InvalidDates(t *testing.T) {
	f := newReservationFixture(t, 1)

	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		wantCode string
	}{
		{name: "check-out before check-in", checkIn: f.checkIn, checkOut: f.checkIn.AddDate(0, 0, -1), wantCode: apperrors.CodeInvalidDateRange},
		{name: "same day", checkIn: f.checkIn, checkOut: f.checkIn, wantCode: apperrors.CodeInvalidDateRange},
		{name: "check-in in the past", checkIn: f.checkIn.AddDate(0, 0, -60), checkOut: f.checkIn.AddDate(0, 0, -58), wantCode: apperrors.CodeInvalidDateRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(1)
			req.CheckIn = tt.checkIn
			req.CheckOut = tt.checkOut
			_, err := f.svc.Create(context.Background(), req)
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Errorf("Create() error = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestCreate_PricingFailureReleasesHold(t *testing.T) {
	f := newReservationFixture(t, 1)
	pricer := f.svc.pricer
	f.svc.pricer = quoterFunc(func(context.Context, string, calendar.Range) ([]model.NightlyPrice, error) {
		return nil, errors.New("rules unavailable")
	})

	if _, err := f.svc.Create(context.Background(), f.request(1)); err == nil {
		t.Fatal("Create() error = nil, want pricing failure")
	}
	if got := len(f.recorder.OfType(events.TypeHoldReleased)); got != 1 {
		t.Errorf("hold.released events = %d, want 1", got)
	}

	f.svc.pricer = pricer
	f.create(t)
}

func TestExtend_StopsAtLimit(t *testing.T) {
	f := newReservationFixture(t, 1)
	ctx := context.Background()
	reservation := f.create(t)

	for i := 1; i <= f.svc.cfg.MaxExtensions; i++ {
		extended, err := f.svc.Extend(ctx, reservation.ID)
		if err != nil {
			t.Fatalf("Extend() #%d error = %v", i, err)
		}
		if extended.ExtensionCount != i {
			t.Errorf("ExtensionCount = %d, want %d", extended.ExtensionCount, i)
		}
		reservation = extended
	}

	_, err := f.svc.Extend(ctx, reservation.ID)
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("Extend() beyond limit error = %v, want %s", err, apperrors.CodeConflict)
	}

	stored, err := f.svc.Get(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !stored.ExpiresAt.Equal(reservation.ExpiresAt) {
		t.Errorf("ExpiresAt = %s, want unchanged %s", stored.ExpiresAt, reservation.ExpiresAt)
	}
	lock, err := f.locks.GetLock(ctx, reservation.LockID)
	if err != nil {
		t.Fatalf("GetLock() error = %v", err)
	}
	if !lock.ExpiresAt.Equal(stored.ExpiresAt) {
		t.Errorf("lock ExpiresAt = %s, want %s", lock.ExpiresAt, stored.ExpiresAt)
	}
}

func TestExtend_KeepsHardHoldDeadline(t *testing.T) {
	f := newReservationFixture(t, 1)
	ctx := context.Background()
	reservation := f.create(t)

	awaiting, err := f.svc.AttachPayment(ctx, reservation.ID, &model.PaymentAttachment{PaymentURL: "https://pay.example.com/checkout/abc"})
	if err != nil {
		t.Fatalf("AttachPayment() error = %v", err)
	}
	before := awaiting.ExpiresAt

	extended, err := f.svc.Extend(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("Extend() error = %v", err)
	}
	if extended.ExpiresAt.Before(before) {
		t.Errorf("ExpiresAt moved from %s back to %s", before, extended.ExpiresAt)
	}
	if extended.Status != model.ReservationAwaitingPayment {
		t.Errorf("Status = %s, want %s", extended.Status, model.ReservationAwaitingPayment)
	}

	lock, err := f.locks.GetLock(ctx, reservation.LockID)
	if err != nil {
		t.Fatalf("GetLock() error = %v", err)
	}
	if lock.ExpiresAt.Before(before) {
		t.Errorf("lock ExpiresAt moved from %s back to %s", before, lock.ExpiresAt)
	}
	if !lock.ExpiresAt.Equal(extended.ExpiresAt) {
		t.Errorf("lock ExpiresAt = %s, want %s", lock.ExpiresAt, extended.ExpiresAt)
	}
	if lock.LockType != model.LockTypeHard {
		t.Errorf("LockType = %s, want %s", lock.LockType, model.LockTypeHard)
	}
}

func TestLostHoldExpiresOpenReservation(t *testing.T) {
	tests := []struct {
		name string
		call func(f *reservationFixture, ctx context.Context, id string) error
	}{
		{
			name: "extend",
			call: func(f *reservationFixture, ctx context.Context, id string) error {
				_, err := f.svc.Extend(ctx, id)
				return err
			},
		},
		{
			name: "attach payment",
			call: func(f *reservationFixture, ctx context.Context, id string) error {
				_, err := f.svc.AttachPayment(ctx, id, &model.PaymentAttachment{PaymentURL: "https://pay.example.com/checkout/abc"})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReservationFixture(t, 1)
			ctx := context.Background()
			reservation := f.create(t)

			if err := f.locks.ReleaseLock(ctx, reservation.LockID, model.ReleaseReasonExpired); err != nil {
				t.Fatalf("ReleaseLock() error = %v", err)
			}

			err := tt.call(f, ctx, reservation.ID)
			if !apperrors.HasCode(err, apperrors.CodeReservationExpired) {
				t.Fatalf("error = %v, want %s", err, apperrors.CodeReservationExpired)
			}

			stored, err := f.svc.Get(ctx, reservation.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if stored.Status != model.ReservationExpired {
				t.Errorf("Status = %s, want %s", stored.Status, model.ReservationExpired)
			}
		})
	}
}

func TestSweepExpired(t *testing.T) {
	f := newReservationFixture(t, 1)
	ctx := context.Background()
	reservation := f.create(t)

	count, err := f.svc.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("SweepExpired(now) error = %v", err)
	}
	if count != 0 {
		t.Errorf("SweepExpired(now) = %d, want 0", count)
	}

	count, err = f.svc.SweepExpired(ctx, time.Now().UTC().Add(16*time.Minute))
	if err != nil {
		t.Fatalf("SweepExpired(+16m) error = %v", err)
	}
	if count != 1 {
		t.Errorf("SweepExpired(+16m) = %d, want 1", count)
	}

	stored, err := f.svc.Get(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Status != model.ReservationExpired || stored.ClosedAt == nil {
		t.Errorf("Status = %s, ClosedAt = %v", stored.Status, stored.ClosedAt)
	}
	lock, err := f.locks.GetLock(ctx, reservation.LockID)
	if err != nil {
		t.Fatalf("GetLock() error = %v", err)
	}
	if lock.IsActive() || lock.ReleaseReason != model.ReleaseReasonExpired {
		t.Errorf("lock status = %s, reason = %q", lock.Status, lock.ReleaseReason)
	}
	if got := len(f.recorder.OfType(events.TypeReservationExpired)); got != 1 {
		t.Errorf("reservation.expired events = %d, want 1", got)
	}

	f.create(t)
}

func TestConfirm(t *testing.T) {
	f := newReservationFixture(t, 1)
	ctx := context.Background()
	reservation := f.create(t)

	awaiting, err := f.svc.AttachPayment(ctx, reservation.ID, &model.PaymentAttachment{PaymentURL: "https://pay.example.com/checkout/abc"})
	if err != nil {
		t.Fatalf("AttachPayment() error = %v", err)
	}
	if awaiting.Status != model.ReservationAwaitingPayment || awaiting.PaymentURLExpiresAt == nil {
		t.Errorf("Status = %s, PaymentURLExpiresAt = %v", awaiting.Status, awaiting.PaymentURLExpiresAt)
	}
	lock, err := f.locks.GetLock(ctx, reservation.LockID)
	if err != nil {
		t.Fatalf("GetLock() error = %v", err)
	}
	if lock.LockType != model.LockTypeHard {
		t.Errorf("LockType = %s, want %s", lock.LockType, model.LockTypeHard)
	}

	confirmed, err := f.svc.Confirm(ctx, reservation.ID, "pay-1")
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if confirmed.Status != model.ReservationConfirmed || confirmed.BookingID == "" {
		t.Fatalf("Status = %s, BookingID = %q", confirmed.Status, confirmed.BookingID)
	}

	booking, err := f.bookings.GetByID(ctx, confirmed.BookingID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if booking.ReservationID != reservation.ID || booking.AccommodationID != "hotel-1" {
		t.Errorf("booking = %+v", booking)
	}
	lock, err = f.locks.GetLock(ctx, reservation.LockID)
	if err != nil {
		t.Fatalf("GetLock() error = %v", err)
	}
	if lock.Status != model.LockStatusPromoted || lock.BookingID != booking.ID {
		t.Errorf("lock status = %s, booking = %q", lock.Status, lock.BookingID)
	}

	again, err := f.svc.Confirm(ctx, reservation.ID, "pay-1")
	if err != nil {
		t.Fatalf("repeated Confirm() error = %v", err)
	}
	if again.BookingID != confirmed.BookingID {
		t.Errorf("repeated Confirm() booking = %s, want %s", again.BookingID, confirmed.BookingID)
	}
	if got := len(f.recorder.OfType(events.TypeReservationConfirmed)); got != 1 {
		t.Errorf("reservation.confirmed events = %d, want 1", got)
	}

	_, err = f.svc.Confirm(ctx, reservation.ID, "pay-2")
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Errorf("Confirm() with another reference error = %v, want %s", err, apperrors.CodeConflict)
	}
	_, err = f.svc.Cancel(ctx, reservation.ID, "")
	if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Errorf("Cancel() after confirm error = %v, want %s", err, apperrors.CodeInvalidTransition)
	}

	_, err = f.svc.Create(ctx, f.request(1))
	if !apperrors.HasCode(err, apperrors.CodeCapacityExceeded) {
		t.Errorf("Create() after booking error = %v, want %s", err, apperrors.CodeCapacityExceeded)
	}
}

func TestConfirm_AfterDeadline(t *testing.T) {
	f := newReservationFixture(t, 1)
	ctx := context.Background()
	reservation := f.create(t)

	f.svc.now = func() time.Time { return time.Now().UTC().Add(16 * time.Minute) }

	_, err := f.svc.Confirm(ctx, reservation.ID, "pay-1")
	if !apperrors.HasCode(err, apperrors.CodeReservationExpired) {
		t.Fatalf("Confirm() error = %v, want %s", err, apperrors.CodeReservationExpired)
	}

	stored, err := f.svc.Get(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Status != model.ReservationExpired {
		t.Errorf("Status = %s, want %s", stored.Status, model.ReservationExpired)
	}
	lock, err := f.locks.GetLock(ctx, reservation.LockID)
	if err != nil {
		t.Fatalf("GetLock() error = %v", err)
	}
	if lock.IsActive() {
		t.Error("hold still active after the reservation expired")
	}
}

func TestCancel_ReleasesHold(t *testing.T) {
	f := newReservationFixture(t, 1)
	ctx := context.Background()
	reservation := f.create(t)

	cancelled, err := f.svc.Cancel(ctx, reservation.ID, "  plans   changed ")
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if cancelled.Status != model.ReservationCancelled {
		t.Errorf("Status = %s, want %s", cancelled.Status, model.ReservationCancelled)
	}
	if cancelled.CancelReason != "plans changed" {
		t.Errorf("CancelReason = %q, want %q", cancelled.CancelReason, "plans changed")
	}

	again, err := f.svc.Cancel(ctx, reservation.ID, "")
	if err != nil {
		t.Fatalf("repeated Cancel() error = %v", err)
	}
	if again.Version != cancelled.Version {
		t.Errorf("repeated Cancel() changed Version to %d", again.Version)
	}

	_, err = f.svc.Expire(ctx, reservation.ID)
	if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Errorf("Expire() after cancel error = %v, want %s", err, apperrors.CodeInvalidTransition)
	}
	_, err = f.svc.Extend(ctx, reservation.ID)
	if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Errorf("Extend() after cancel error = %v, want %s", err, apperrors.CodeInvalidTransition)
	}
	if got := len(f.recorder.OfType(events.TypeReservationCancelled)); got != 1 {
		t.Errorf("reservation.cancelled events = %d, want 1", got)
	}

	f.create(t)
}

func TestGet_NotFound(t *testing.T) {
	f := newReservationFixture(t, 1)

	_, err := f.svc.Get(context.Background(), "missing")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("Get() error = %v, want %s", err, apperrors.CodeNotFound)
	}
}
