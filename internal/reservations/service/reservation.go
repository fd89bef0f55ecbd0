package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	inventoryservice "staybook/internal/inventory/service"
	reservationserrors "staybook/internal/reservations/errors"
	"staybook/internal/reservations/repository"
	"staybook/internal/reservations/validator"
	"staybook/pkg/calendar"
	"staybook/pkg/config"
	apperrors "staybook/pkg/errors"
	"staybook/pkg/events"
	"staybook/pkg/keyedmutex"
	"staybook/pkg/model"
	"staybook/pkg/money"
	"staybook/pkg/sanitizer"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const sweepBatchSize = 200

type NightlyQuoter interface {
	QuoteNightly(ctx context.Context, roomID string, rng calendar.Range) ([]model.NightlyPrice, error)
}

type BookingCreator interface {
	CreateFromReservation(ctx context.Context, reservation *model.Reservation, accommodationID, paymentReference string) (*model.Booking, error)
}

type RoomReader interface {
	GetRoom(ctx context.Context, id string) (*model.Room, error)
}

type ReservationService interface {
	// Create places a soft hold and prices the stay. Known externally as
	// AcquireHold.
	Create(ctx context.Context, req *model.ReservationRequest) (*model.Reservation, error)
	Get(ctx context.Context, id string) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	Extend(ctx context.Context, id string) (*model.Reservation, error)
	AttachPayment(ctx context.Context, id string, payment *model.PaymentAttachment) (*model.Reservation, error)
	// Confirm books the reservation. Repeating it with the same payment
	// reference returns the confirmed reservation unchanged.
	Confirm(ctx context.Context, id, paymentReference string) (*model.Reservation, error)
	Expire(ctx context.Context, id string) (*model.Reservation, error)
	Cancel(ctx context.Context, id, reason string) (*model.Reservation, error)
	// SweepExpired expires every open reservation past its deadline together
	// with its hold, then expires orphaned holds.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	locks     inventoryservice.LockManager
	pricer    NightlyQuoter
	bookings  BookingCreator
	rooms     RoomReader
	validator *validator.ReservationValidator
	publisher events.Publisher
	writers   *keyedmutex.KeyedMutex
	tracer    trace.Tracer
	cfg       *config.Config
	now       func() time.Time
}

func NewReservationService(
	repo repository.ReservationRepository,
	locks inventoryservice.LockManager,
	pricer NightlyQuoter,
	bookings BookingCreator,
	rooms RoomReader,
	validator *validator.ReservationValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		locks:     locks,
		pricer:    pricer,
		bookings:  bookings,
		rooms:     rooms,
		validator: validator,
		publisher: publisher,
		writers:   keyedmutex.New(),
		tracer:    otel.Tracer("staybook/reservations"),
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *reservationService) Create(ctx context.Context, req *model.ReservationRequest) (*model.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "Reservations.Create", trace.WithAttributes(
		attribute.String("room_id", req.RoomID),
		attribute.Int("quantity", req.Quantity),
	))
	defer span.End()

	req.UserID = sanitizer.TrimAndNormalize(req.UserID)
	if err := s.validator.ValidateRequest(req); err != nil {
		return nil, apperrors.Validation("Invalid reservation request", map[string]any{"error": err.Error()})
	}
	rng, err := calendar.NewRange(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, apperrors.InvalidDateRange("check_out must be after check_in")
	}
	now := s.now()
	if rng.CheckIn.Before(calendar.Date(now)) {
		return nil, apperrors.InvalidDateRange("check_in cannot be in the past")
	}

	id := uuid.New().String()
	handle, err := s.locks.TryAcquireLock(ctx, inventoryservice.AcquireLockInput{
		RoomID:        req.RoomID,
		CheckIn:       rng.CheckIn,
		CheckOut:      rng.CheckOut,
		Quantity:      req.Quantity,
		LockType:      model.LockTypeSoft,
		TTL:           s.cfg.ReservationWindow,
		ReservationID: id,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	nightly, err := s.pricer.QuoteNightly(ctx, req.RoomID, rng)
	if err != nil {
		s.releaseAfterFailure(ctx, handle.Lock.ID, id)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	var perUnit money.Money
	for _, night := range nightly {
		perUnit = perUnit.Add(night.Price)
	}

	created := now.Truncate(time.Millisecond)
	reservation := &model.Reservation{
		ID:            id,
		RoomID:        req.RoomID,
		UserID:        req.UserID,
		CheckIn:       rng.CheckIn,
		CheckOut:      rng.CheckOut,
		Quantity:      req.Quantity,
		NightlyPrices: nightly,
		TotalAmount:   perUnit.Mul(req.Quantity),
		Status:        model.ReservationPending,
		LockID:        handle.Lock.ID,
		HoldToken:     handle.Token,
		// The hold and the reservation share one deadline.
		ExpiresAt: handle.Lock.ExpiresAt,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := s.repo.Create(ctx, reservation); err != nil {
		s.releaseAfterFailure(ctx, handle.Lock.ID, id)
		s.cfg.Log.Error("Failed to store reservation", "reservation_id", id, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.Internal("Failed to create reservation", err)
	}

	span.SetAttributes(attribute.String("reservation_id", id))
	s.cfg.Log.Info("Reservation created",
		"reservation_id", id,
		"room_id", reservation.RoomID,
		"user_id", reservation.UserID,
		"nights", rng.Nights(),
		"total_amount", reservation.TotalAmount,
		"expires_at", reservation.ExpiresAt,
	)
	return reservation, nil
}

func (s *reservationService) Get(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapReservationError(err, id)
	}
	return reservation, nil
}

func (s *reservationService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("User ID cannot be empty")
	}

	var (
		count        int64
		reservations []*model.Reservation
		errCount     error
		errFind      error
		wg           sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByUser(ctx, userID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reservations", "user_id", userID, "error", errCount)
			errCount = apperrors.Internal("Failed to count reservations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reservations, errFind = s.repo.FindByUser(ctx, userID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reservations", "user_id", userID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reservations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return reservations, count, nil
}

func (s *reservationService) Extend(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "Reservations.Extend", trace.WithAttributes(attribute.String("reservation_id", id)))
	defer span.End()

	unlock := s.writers.Lock(id)
	defer unlock()

	reservation, err := s.loadOpen(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if reservation.ExpiresAt.IsZero() {
		return reservation, nil
	}
	if reservation.ExtensionCount >= s.cfg.MaxExtensions {
		return nil, apperrors.Conflict(fmt.Sprintf("Reservation was already extended %d times", reservation.ExtensionCount)).
			WithDetails(map[string]any{"reservation_id": id, "max_extensions": s.cfg.MaxExtensions})
	}

	now := s.now()
	err = s.update(ctx, reservation, func(ctx context.Context, r *model.Reservation) error {
		expiresAt := s.extendedDeadline(r, now)
		if err := s.locks.RenewLock(ctx, r.LockID, expiresAt); err != nil {
			return err
		}
		r.ExpiresAt = expiresAt
		r.ExtensionCount++
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if apperrors.HasCode(err, apperrors.CodeLockExpired) {
			return nil, s.expireAfterDeadline(ctx, reservation)
		}
		return nil, err
	}

	s.cfg.Log.Info("Reservation extended",
		"reservation_id", id,
		"extension_count", reservation.ExtensionCount,
		"expires_at", reservation.ExpiresAt,
	)
	return reservation, nil
}

func (s *reservationService) AttachPayment(ctx context.Context, id string, payment *model.PaymentAttachment) (*model.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "Reservations.AttachPayment", trace.WithAttributes(attribute.String("reservation_id", id)))
	defer span.End()

	payment.PaymentURL = sanitizer.SanitizeURL(payment.PaymentURL)
	if err := s.validator.ValidatePayment(payment); err != nil {
		return nil, apperrors.Validation("Invalid payment details", map[string]any{"error": err.Error()})
	}

	unlock := s.writers.Lock(id)
	defer unlock()

	reservation, err := s.loadOpen(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := s.now()
	urlTTL := s.cfg.PaymentURLTTL
	if payment.TTLSeconds > 0 {
		urlTTL = time.Duration(payment.TTLSeconds) * time.Second
	}
	urlExpiresAt := now.Add(urlTTL).Truncate(time.Millisecond)

	// A zero hard hold TTL keeps the hold, and the reservation, open until
	// the payment outcome arrives.
	var holdExpiresAt time.Time
	if s.cfg.HardHoldTTL > 0 {
		holdExpiresAt = now.Add(s.cfg.HardHoldTTL).Truncate(time.Millisecond)
	}

	err = s.update(ctx, reservation, func(ctx context.Context, r *model.Reservation) error {
		if r.Status == model.ReservationPending {
			if err := s.locks.UpgradeToHard(ctx, r.LockID, holdExpiresAt); err != nil {
				return err
			}
			r.Status = model.ReservationAwaitingPayment
			r.ExpiresAt = holdExpiresAt
		}
		r.PaymentURL = payment.PaymentURL
		r.PaymentURLExpiresAt = &urlExpiresAt
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if apperrors.HasCode(err, apperrors.CodeLockExpired) {
			return nil, s.expireAfterDeadline(ctx, reservation)
		}
		return nil, err
	}

	s.cfg.Log.Info("Payment attached to reservation",
		"reservation_id", id,
		"payment_url_expires_at", urlExpiresAt,
		"expires_at", reservation.ExpiresAt,
	)
	return reservation, nil
}

func (s *reservationService) Confirm(ctx context.Context, id, paymentReference string) (*model.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "Reservations.Confirm", trace.WithAttributes(attribute.String("reservation_id", id)))
	defer span.End()

	confirmation := &model.ReservationConfirmation{PaymentReference: sanitizer.TrimAndNormalize(paymentReference)}
	if err := s.validator.ValidateConfirmation(confirmation); err != nil {
		return nil, apperrors.Validation("Invalid confirmation", map[string]any{"error": err.Error()})
	}
	paymentReference = confirmation.PaymentReference

	unlock := s.writers.Lock(id)
	defer unlock()

	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapReservationError(err, id)
	}
	if reservation.Status == model.ReservationConfirmed {
		if reservation.PaymentReference == paymentReference {
			s.cfg.Log.Debug("Reservation already confirmed", "reservation_id", id)
			return reservation, nil
		}
		return nil, apperrors.Conflict("Reservation was confirmed with a different payment reference").
			WithDetails(map[string]any{"reservation_id": id})
	}

	reservation, err = s.checkOpen(ctx, reservation)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	accommodationID := ""
	if room, err := s.rooms.GetRoom(ctx, reservation.RoomID); err == nil {
		accommodationID = room.AccommodationID
	} else {
		s.cfg.Log.Warn("Room lookup failed during confirmation", "reservation_id", id, "room_id", reservation.RoomID, "error", err)
	}

	now := s.now().Truncate(time.Millisecond)
	err = s.update(ctx, reservation, func(ctx context.Context, r *model.Reservation) error {
		booking, err := s.bookings.CreateFromReservation(ctx, r, accommodationID, paymentReference)
		if err != nil {
			return err
		}
		if err := s.locks.PromoteLock(ctx, r.LockID, booking.ID); err != nil {
			return err
		}
		r.Status = model.ReservationConfirmed
		r.BookingID = booking.ID
		r.PaymentReference = paymentReference
		r.ClosedAt = &now
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if apperrors.HasCode(err, apperrors.CodeLockExpired) {
			return nil, s.expireAfterDeadline(ctx, reservation)
		}
		return nil, err
	}

	s.cfg.Log.Info("Reservation confirmed",
		"reservation_id", id,
		"booking_id", reservation.BookingID,
		"room_id", reservation.RoomID,
	)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.New(events.TypeReservationConfirmed, reservation.RoomID, reservation.ID, map[string]any{
		"booking_id":   reservation.BookingID,
		"total_amount": reservation.TotalAmount.String(),
		"check_in":     calendar.Format(reservation.CheckIn),
		"check_out":    calendar.Format(reservation.CheckOut),
	}))
	return reservation, nil
}

func (s *reservationService) Expire(ctx context.Context, id string) (*model.Reservation, error) {
	return s.closeReservation(ctx, id, model.ReservationExpired, model.ReleaseReasonExpired, "")
}

func (s *reservationService) Cancel(ctx context.Context, id, reason string) (*model.Reservation, error) {
	cancellation := &model.ReservationCancellation{Reason: sanitizer.TrimAndNormalize(reason)}
	if err := s.validator.ValidateCancellation(cancellation); err != nil {
		return nil, apperrors.Validation("Invalid cancellation", map[string]any{"error": err.Error()})
	}
	return s.closeReservation(ctx, id, model.ReservationCancelled, model.ReleaseReasonCancelled, cancellation.Reason)
}

func (s *reservationService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "Reservations.SweepExpired")
	defer span.End()

	var expired int64
	for {
		batch, err := s.repo.FindOpenExpired(ctx, now, sweepBatchSize)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			s.cfg.Log.Error("Failed to find expired reservations", "error", err)
			return expired, apperrors.Internal("Failed to find expired reservations", err)
		}

		progressed := false
		for _, candidate := range batch {
			if err := ctx.Err(); err != nil {
				return expired, err
			}
			closed, err := s.closeExpired(ctx, candidate.ID, now)
			if err != nil {
				s.cfg.Log.Warn("Failed to expire reservation", "reservation_id", candidate.ID, "error", err)
				continue
			}
			if closed {
				expired++
				progressed = true
			}
		}
		if len(batch) < sweepBatchSize || !progressed {
			break
		}
	}

	orphans, err := s.locks.SweepExpired(ctx, now)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return expired, err
	}

	span.SetAttributes(
		attribute.Int64("reservations_expired", expired),
		attribute.Int64("locks_expired", orphans),
	)
	if expired > 0 {
		s.cfg.Log.Info("Expired reservations swept", "count", expired, "orphan_locks", orphans)
	}
	return expired, nil
}

// closeExpired expires one reservation found by the sweep, rechecking its
// deadline under the writer lock.
func (s *reservationService) closeExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	unlock := s.writers.Lock(id)
	defer unlock()

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, mapReservationError(err, id)
	}
	if !reservation.IsPastDeadline(now) {
		return false, nil
	}
	if _, err := s.closeLocked(ctx, reservation, model.ReservationExpired, model.ReleaseReasonExpired, ""); err != nil {
		return false, err
	}
	return true, nil
}

// closeReservation releases the hold before recording the terminal status. Closing an
// already closed reservation with the same status is a no-op.
func (s *reservationService) closeReservation(ctx context.Context, id string, next model.ReservationStatus, releaseReason, cancelReason string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	unlock := s.writers.Lock(id)
	defer unlock()

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapReservationError(err, id)
	}
	if reservation.Status == next {
		return reservation, nil
	}
	if !reservation.Status.CanTransitionTo(next) {
		return nil, apperrors.InvalidTransition("Reservation", string(reservation.Status), string(next))
	}
	return s.closeLocked(ctx, reservation, next, releaseReason, cancelReason)
}

func (s *reservationService) closeLocked(ctx context.Context, reservation *model.Reservation, next model.ReservationStatus, releaseReason, cancelReason string) (*model.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "Reservations.Close", trace.WithAttributes(
		attribute.String("reservation_id", reservation.ID),
		attribute.String("status", string(next)),
	))
	defer span.End()

	if err := s.releaseHold(ctx, reservation.LockID, releaseReason); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.cfg.Log.Error("Failed to release hold", "reservation_id", reservation.ID, "lock_id", reservation.LockID, "error", err)
		return nil, err
	}

	now := s.now().Truncate(time.Millisecond)
	err := s.update(ctx, reservation, func(_ context.Context, r *model.Reservation) error {
		r.Status = next
		r.CancelReason = cancelReason
		r.ClosedAt = &now
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	eventType := events.TypeReservationExpired
	if next == model.ReservationCancelled {
		eventType = events.TypeReservationCancelled
	}
	s.cfg.Log.Info("Reservation closed",
		"reservation_id", reservation.ID,
		"room_id", reservation.RoomID,
		"status", next,
		"reason", cancelReason,
	)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.New(eventType, reservation.RoomID, reservation.ID, map[string]any{
		"lock_id":   reservation.LockID,
		"check_in":  calendar.Format(reservation.CheckIn),
		"check_out": calendar.Format(reservation.CheckOut),
		"quantity":  reservation.Quantity,
		"reason":    cancelReason,
	}))
	return reservation, nil
}

// extendedDeadline renews from now by the window of the current hold type
// and never moves an existing deadline earlier.
func (s *reservationService) extendedDeadline(r *model.Reservation, now time.Time) time.Time {
	window := s.cfg.ReservationWindow
	if r.Status == model.ReservationAwaitingPayment {
		window = s.cfg.HardHoldTTL
	}
	expiresAt := now.Add(window).Truncate(time.Millisecond)
	if r.ExpiresAt.After(expiresAt) {
		return r.ExpiresAt
	}
	return expiresAt
}

// loadOpen returns an open reservation, expiring it first when its deadline
// already passed.
func (s *reservationService) loadOpen(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapReservationError(err, id)
	}
	return s.checkOpen(ctx, reservation)
}

func (s *reservationService) checkOpen(ctx context.Context, reservation *model.Reservation) (*model.Reservation, error) {
	switch {
	case reservation.Status == model.ReservationExpired:
		return nil, apperrors.ReservationExpired(reservation.ID)
	case !reservation.Status.IsOpen():
		return nil, apperrors.InvalidTransition("Reservation", string(reservation.Status), "open")
	case reservation.IsPastDeadline(s.now()):
		return nil, s.expireAfterDeadline(ctx, reservation)
	}
	return reservation, nil
}

// expireAfterDeadline closes a reservation whose hold lapsed and returns
// the error the caller reports.
func (s *reservationService) expireAfterDeadline(ctx context.Context, reservation *model.Reservation) error {
	current, err := s.repo.FindByID(ctx, reservation.ID)
	if err != nil {
		return mapReservationError(err, reservation.ID)
	}
	if current.Status.IsOpen() {
		if _, err := s.closeLocked(ctx, current, model.ReservationExpired, model.ReleaseReasonExpired, ""); err != nil {
			s.cfg.Log.Error("Failed to expire lapsed reservation", "reservation_id", reservation.ID, "error", err)
		}
	}
	return apperrors.ReservationExpired(reservation.ID)
}

// update applies mutate and the Version compare-and-swap in one
// transaction, so hold changes made by mutate roll back with it.
func (s *reservationService) update(ctx context.Context, reservation *model.Reservation, mutate func(ctx context.Context, r *model.Reservation) error) error {
	working := *reservation
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		expected := working.Version
		if err := mutate(ctx, &working); err != nil {
			return err
		}
		working.UpdatedAt = s.now().Truncate(time.Millisecond)
		if err := s.repo.Update(ctx, &working, expected); err != nil {
			return mapReservationError(err, working.ID)
		}
		return nil
	})
	if err != nil {
		if !apperrors.IsAppError(err) || apperrors.HasCode(err, apperrors.CodeInternal) {
			s.cfg.Log.Error("Failed to update reservation", "reservation_id", reservation.ID, "error", err)
		}
		return err
	}
	*reservation = working
	return nil
}

// releaseHold treats a missing or already inactive hold as released.
func (s *reservationService) releaseHold(ctx context.Context, lockID, reason string) error {
	if lockID == "" {
		return nil
	}
	err := s.locks.ReleaseLock(ctx, lockID, reason)
	if err != nil && !apperrors.HasCode(err, apperrors.CodeNotFound) {
		return err
	}
	return nil
}

func (s *reservationService) releaseAfterFailure(ctx context.Context, lockID, reservationID string) {
	if err := s.locks.ReleaseLock(ctx, lockID, model.ReleaseReasonFailed); err != nil {
		s.cfg.Log.Error("Failed to release hold after reservation failure",
			"reservation_id", reservationID,
			"lock_id", lockID,
			"error", err,
		)
	}
}

func mapReservationError(err error, id string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, reservationserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Reservation", id)
	case errors.Is(err, reservationserrors.ErrVersionConflict):
		return apperrors.ConcurrentModification("Reservation", id)
	default:
		return apperrors.Internal("Failed to access reservation", err)
	}
}
