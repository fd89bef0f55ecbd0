package service

import (
	"context"
	"errors"
	"sync"
	"time"

	bookingserrors "staybook/internal/bookings/errors"
	"staybook/internal/bookings/repository"
	"staybook/internal/bookings/validator"
	"staybook/pkg/calendar"
	"staybook/pkg/config"
	apperrors "staybook/pkg/errors"
	"staybook/pkg/events"
	"staybook/pkg/model"
	"staybook/pkg/sanitizer"

	"github.com/google/uuid"
)

// RefundEvaluator opens a refund request for a cancelled booking.
type RefundEvaluator interface {
	Evaluate(ctx context.Context, bookingID string) (*model.RefundRequest, error)
}

type CancelResult struct {
	Booking *model.Booking       `json:"booking"`
	Refund  *model.RefundRequest `json:"refund,omitempty"`
}

type BookingService interface {
	// CreateFromReservation books a confirmed reservation. It returns the
	// existing booking when the reservation was already booked.
	CreateFromReservation(ctx context.Context, reservation *model.Reservation, accommodationID, paymentReference string) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
	CheckIn(ctx context.Context, id string) (*model.Booking, error)
	CheckOut(ctx context.Context, id string) (*model.Booking, error)
	Cancel(ctx context.Context, id string, cancellation *model.BookingCancellation) (*CancelResult, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	refunds   RefundEvaluator
	validator *validator.BookingValidator
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	refunds RefundEvaluator,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		refunds:   refunds,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *bookingService) CreateFromReservation(ctx context.Context, reservation *model.Reservation, accommodationID, paymentReference string) (*model.Booking, error) {
	existing, err := s.repo.FindByReservation(ctx, reservation.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, bookingserrors.ErrNotFound) {
		return nil, apperrors.Internal("Failed to look up booking", err)
	}

	now := s.now().Truncate(time.Millisecond)
	base := reservation.TotalAmount
	tax := base.ApplyPercent(s.cfg.TaxRate)
	fee := base.ApplyPercent(s.cfg.ServiceFeeRate)

	booking := &model.Booking{
		ID:               uuid.New().String(),
		ReservationID:    reservation.ID,
		RoomID:           reservation.RoomID,
		AccommodationID:  accommodationID,
		UserID:           reservation.UserID,
		CheckIn:          reservation.CheckIn,
		CheckOut:         reservation.CheckOut,
		Quantity:         reservation.Quantity,
		BaseAmount:       base,
		TaxAmount:        tax,
		ServiceFee:       fee,
		TotalAmount:      base.Add(tax).Add(fee),
		Status:           model.BookingConfirmed,
		PaymentStatus:    model.PaymentPaid,
		PaymentReference: paymentReference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		if errors.Is(err, bookingserrors.ErrDuplicateBooking) {
			return nil, apperrors.Conflict("Reservation is already booked")
		}
		s.cfg.Log.Error("Failed to create booking", "reservation_id", reservation.ID, "error", err)
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	s.cfg.Log.Info("Booking created",
		"booking_id", booking.ID,
		"reservation_id", reservation.ID,
		"room_id", booking.RoomID,
		"total_amount", booking.TotalAmount,
	)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapBookingError(err, id)
	}
	return booking, nil
}

func (s *bookingService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if err := s.validator.ValidateUserID(userID); err != nil {
		return nil, 0, apperrors.Validation("Invalid user ID", map[string]any{"error": err.Error()})
	}

	var (
		count    int64
		bookings []*model.Booking
		errCount error
		errFind  error
		wg       sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByUser(ctx, userID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "user_id", userID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByUser(ctx, userID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "user_id", userID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return bookings, count, nil
}

func (s *bookingService) CheckIn(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.transition(ctx, id, model.BookingCheckedIn, func(b *model.Booking, now time.Time) error {
		if now.Before(calendar.Date(b.CheckIn)) {
			return apperrors.InvalidInput("Check-in opens on " + calendar.Format(b.CheckIn))
		}
		b.CheckedInAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Info("Guest checked in", "booking_id", id, "room_id", booking.RoomID)
	return booking, nil
}

func (s *bookingService) CheckOut(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.transition(ctx, id, model.BookingCheckedOut, func(b *model.Booking, now time.Time) error {
		b.CheckedOutAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Info("Guest checked out", "booking_id", id, "room_id", booking.RoomID)
	return booking, nil
}

// Cancel frees the booking's capacity and then evaluates a refund. A failed
// evaluation is logged and leaves the booking cancelled; it can be retried
// through the refund engine.
func (s *bookingService) Cancel(ctx context.Context, id string, cancellation *model.BookingCancellation) (*CancelResult, error) {
	cancellation.Reason = sanitizer.TrimAndNormalize(cancellation.Reason)
	if err := s.validator.ValidateCancellation(cancellation); err != nil {
		return nil, apperrors.Validation("Invalid cancellation", map[string]any{"error": err.Error()})
	}

	booking, err := s.transition(ctx, id, model.BookingCancelled, func(b *model.Booking, now time.Time) error {
		b.CancelledAt = &now
		b.CancelReason = cancellation.Reason
		if b.PaymentStatus == model.PaymentPaid {
			b.PaymentStatus = model.PaymentRefundPending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Booking cancelled", "booking_id", id, "room_id", booking.RoomID, "reason", booking.CancelReason)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.New(events.TypeBookingCancelled, booking.RoomID, booking.ID, map[string]any{
		"reason":    booking.CancelReason,
		"check_in":  calendar.Format(booking.CheckIn),
		"check_out": calendar.Format(booking.CheckOut),
		"quantity":  booking.Quantity,
	}))

	result := &CancelResult{Booking: booking}
	refund, err := s.refunds.Evaluate(ctx, booking.ID)
	if err != nil {
		s.cfg.Log.Error("Refund evaluation after cancellation failed", "booking_id", id, "error", err)
		return result, nil
	}
	result.Refund = refund
	return result, nil
}

// transition moves one booking to next in a transaction, guarded by its
// Version. mutate may reject the change.
func (s *bookingService) transition(ctx context.Context, id string, next model.BookingStatus, mutate func(b *model.Booking, now time.Time) error) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	var updated *model.Booking
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		booking, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return mapBookingError(err, id)
		}
		if !booking.Status.CanTransitionTo(next) {
			return apperrors.InvalidTransition("Booking", string(booking.Status), string(next))
		}

		now := s.now().Truncate(time.Millisecond)
		expected := booking.Version
		if err := mutate(booking, now); err != nil {
			return err
		}
		booking.Status = next
		booking.UpdatedAt = now

		if err := s.repo.Update(ctx, booking, expected); err != nil {
			return mapBookingError(err, id)
		}
		updated = booking
		return nil
	})
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) && !apperrors.HasCode(err, apperrors.CodeNotFound) {
			s.cfg.Log.Error("Failed to update booking", "booking_id", id, "status", next, "error", err)
		}
		return nil, err
	}
	return updated, nil
}

func mapBookingError(err error, id string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrVersionConflict):
		return apperrors.ConcurrentModification("Booking", id)
	default:
		return apperrors.Internal("Failed to access booking", err)
	}
}
