package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	inventoryerrors "staybook/internal/inventory/errors"
	"staybook/internal/inventory/repository"
	"staybook/pkg/calendar"
	"staybook/pkg/config"
	apperrors "staybook/pkg/errors"
	"staybook/pkg/events"
	"staybook/pkg/keyedmutex"
	"staybook/pkg/model"
	"staybook/pkg/sealer"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "staybook/inventory"

// BookingUsage lists bookings that still consume room capacity.
type BookingUsage interface {
	FindCapacityOverlapping(ctx context.Context, roomID string, rng calendar.Range) ([]*model.Booking, error)
}

type AcquireLockInput struct {
	RoomID   string
	CheckIn  time.Time
	CheckOut time.Time
	Quantity int
	LockType model.LockType
	// TTL of zero uses the configured TTL for LockType.
	TTL           time.Duration
	ReservationID string
}

type LockManager interface {
	TryAcquireLock(ctx context.Context, in AcquireLockInput) (*model.LockHandle, error)
	ReleaseLock(ctx context.Context, lockID, reason string) error
	PromoteLock(ctx context.Context, lockID, bookingID string) error
	RenewLock(ctx context.Context, lockID string, expiresAt time.Time) error
	UpgradeToHard(ctx context.Context, lockID string, expiresAt time.Time) error
	GetLock(ctx context.Context, lockID string) (*model.AvailabilityLock, error)
	ResolveToken(ctx context.Context, token string) (*model.AvailabilityLock, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	Availability(ctx context.Context, roomID string, rng calendar.Range) ([]model.NightAvailability, error)
}

type lockManager struct {
	roomRepo     repository.RoomRepository
	overrideRepo repository.OverrideRepository
	lockRepo     repository.LockRepository
	bookings     BookingUsage
	sealer       *sealer.Sealer
	publisher    events.Publisher
	roomLocks    *keyedmutex.KeyedMutex
	tracer       trace.Tracer
	cfg          *config.Config
	now          func() time.Time
}

func NewLockManager(
	roomRepo repository.RoomRepository,
	overrideRepo repository.OverrideRepository,
	lockRepo repository.LockRepository,
	bookings BookingUsage,
	tokenSealer *sealer.Sealer,
	publisher events.Publisher,
	cfg *config.Config,
) LockManager {
	return &lockManager{
		roomRepo:     roomRepo,
		overrideRepo: overrideRepo,
		lockRepo:     lockRepo,
		bookings:     bookings,
		sealer:       tokenSealer,
		publisher:    publisher,
		roomLocks:    keyedmutex.New(),
		tracer:       otel.Tracer(tracerName),
		cfg:          cfg,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *lockManager) TryAcquireLock(ctx context.Context, in AcquireLockInput) (*model.LockHandle, error) {
	ctx, span := s.tracer.Start(ctx, "LockManager.TryAcquireLock", trace.WithAttributes(
		attribute.String("room_id", in.RoomID),
		attribute.Int("quantity", in.Quantity),
		attribute.String("lock_type", string(in.LockType)),
	))
	defer span.End()

	rng, err := s.validateAcquire(&in)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	unlock := s.roomLocks.Lock(in.RoomID)
	defer unlock()

	var lock *model.AvailabilityLock
	for attempt := 0; ; attempt++ {
		lock, err = s.acquireOnce(ctx, in, rng)
		if err == nil || !apperrors.HasCode(err, apperrors.CodeConcurrentModification) || attempt >= s.cfg.LockMaxRetries {
			break
		}
		s.cfg.Log.Warn("Room ledger changed during acquisition, retrying",
			"room_id", in.RoomID,
			"attempt", attempt+1,
		)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if apperrors.HasCode(err, apperrors.CodeCapacityExceeded) {
			s.cfg.Log.Info("Hold rejected, capacity exceeded",
				"room_id", in.RoomID,
				"check_in", calendar.Format(rng.CheckIn),
				"check_out", calendar.Format(rng.CheckOut),
				"quantity", in.Quantity,
			)
		} else {
			s.cfg.Log.Error("Failed to acquire availability lock", "room_id", in.RoomID, "error", err)
		}
		return nil, err
	}

	token, err := s.sealer.Seal(lock.RoomID, lock.ID)
	if err != nil {
		s.releaseAfterFailure(ctx, lock.ID)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.Internal("Failed to issue hold token", err)
	}
	span.SetAttributes(attribute.String("lock_id", lock.ID))

	s.cfg.Log.Info("Availability lock acquired",
		"lock_id", lock.ID,
		"room_id", lock.RoomID,
		"check_in", calendar.Format(lock.CheckIn),
		"check_out", calendar.Format(lock.CheckOut),
		"quantity", lock.Quantity,
		"lock_type", lock.LockType,
		"expires_at", lock.ExpiresAt,
	)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.New(events.TypeHoldAcquired, lock.RoomID, lock.ID, map[string]any{
		"check_in":       calendar.Format(lock.CheckIn),
		"check_out":      calendar.Format(lock.CheckOut),
		"quantity":       lock.Quantity,
		"lock_type":      lock.LockType,
		"reservation_id": lock.ReservationID,
	}))

	return &model.LockHandle{Lock: lock, Token: token}, nil
}

func (s *lockManager) validateAcquire(in *AcquireLockInput) (calendar.Range, error) {
	if in.RoomID == "" {
		return calendar.Range{}, apperrors.InvalidInput("Room ID cannot be empty")
	}
	rng, err := calendar.NewRange(in.CheckIn, in.CheckOut)
	if err != nil {
		return calendar.Range{}, apperrors.InvalidDateRange("check_out must be after check_in")
	}
	if in.Quantity <= 0 {
		return calendar.Range{}, apperrors.InvalidInput("Quantity must be greater than zero")
	}
	if in.LockType == "" {
		in.LockType = model.LockTypeSoft
	}
	if !in.LockType.Valid() {
		return calendar.Range{}, apperrors.InvalidInput(fmt.Sprintf("Unknown lock type %q", in.LockType))
	}
	if in.TTL < 0 {
		return calendar.Range{}, apperrors.InvalidInput("TTL cannot be negative")
	}
	return rng, nil
}

// expiryFor returns the zero time for holds without expiry.
func (s *lockManager) expiryFor(now time.Time, lockType model.LockType, ttl time.Duration) time.Time {
	if ttl == 0 {
		if lockType == model.LockTypeHard {
			ttl = s.cfg.HardHoldTTL
		} else {
			ttl = s.cfg.SoftHoldTTL
		}
	}
	if ttl == 0 {
		return time.Time{}
	}
	return now.Add(ttl).Truncate(time.Millisecond)
}

// acquireOnce runs the check-and-insert in one transaction. The room
// Version compare-and-swap makes a concurrent writer on the same room lose.
func (s *lockManager) acquireOnce(ctx context.Context, in AcquireLockInput, rng calendar.Range) (*model.AvailabilityLock, error) {
	var lock *model.AvailabilityLock

	err := s.roomRepo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		now := s.now()

		room, err := s.roomRepo.FindByID(ctx, in.RoomID)
		if err != nil {
			return s.roomError(err, in.RoomID)
		}

		expired, err := s.lockRepo.ExpireStale(ctx, room.ID, now)
		if err != nil {
			return apperrors.Internal("Failed to expire stale locks", err)
		}
		if expired > 0 {
			s.cfg.Log.Debug("Expired stale locks before acquisition", "room_id", room.ID, "count", expired)
		}

		nights, err := s.nightlyUsage(ctx, room, rng, now)
		if err != nil {
			return err
		}
		for _, night := range nights {
			if night.Remaining < in.Quantity {
				return apperrors.CapacityExceeded("Not enough units available for the requested dates", map[string]any{
					"room_id":   room.ID,
					"date":      calendar.Format(night.Date),
					"remaining": night.Remaining,
					"requested": in.Quantity,
				})
			}
		}

		lock = &model.AvailabilityLock{
			ID:            uuid.New().String(),
			RoomID:        room.ID,
			CheckIn:       rng.CheckIn,
			CheckOut:      rng.CheckOut,
			Quantity:      in.Quantity,
			LockType:      in.LockType,
			Status:        model.LockStatusActive,
			ExpiresAt:     s.expiryFor(now, in.LockType, in.TTL),
			ReservationID: in.ReservationID,
			CreatedAt:     now.Truncate(time.Millisecond),
		}
		if err := s.lockRepo.Create(ctx, lock); err != nil {
			return apperrors.Internal("Failed to store availability lock", err)
		}

		if err := s.roomRepo.BumpVersion(ctx, room.ID, room.Version); err != nil {
			if errors.Is(err, inventoryerrors.ErrVersionConflict) {
				return apperrors.ConcurrentModification("Room", room.ID)
			}
			return s.roomError(err, room.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// nightlyUsage computes capacity, usage and remaining units per night.
// Locks past their expiry are ignored with the same predicate the sweeper
// uses, so reads outside a transaction agree with acquisitions.
func (s *lockManager) nightlyUsage(ctx context.Context, room *model.Room, rng calendar.Range, now time.Time) ([]model.NightAvailability, error) {
	overrides, err := s.overrideRepo.FindByRoomRange(ctx, room.ID, rng.CheckIn, rng.CheckOut)
	if err != nil {
		return nil, apperrors.Internal("Failed to load availability overrides", err)
	}
	locks, err := s.lockRepo.FindActiveOverlapping(ctx, room.ID, rng)
	if err != nil {
		return nil, apperrors.Internal("Failed to load availability locks", err)
	}
	bookings, err := s.bookings.FindCapacityOverlapping(ctx, room.ID, rng)
	if err != nil {
		return nil, apperrors.Internal("Failed to load bookings", err)
	}

	byDate := make(map[int64]*model.AvailabilityOverride, len(overrides))
	for _, o := range overrides {
		byDate[calendar.Date(o.Date).Unix()] = o
	}

	dates := rng.Dates()
	nights := make([]model.NightAvailability, 0, len(dates))
	for _, d := range dates {
		capacity := model.EffectiveCapacity(room, byDate[d.Unix()])
		used := 0
		for _, l := range locks {
			if !l.IsExpired(now) && !d.Before(l.CheckIn) && d.Before(l.CheckOut) {
				used += l.Quantity
			}
		}
		for _, b := range bookings {
			if !d.Before(b.CheckIn) && d.Before(b.CheckOut) {
				used += b.Quantity
			}
		}
		nights = append(nights, model.NightAvailability{
			Date:      d,
			Capacity:  capacity,
			Used:      used,
			Remaining: max(0, capacity-used),
		})
	}
	return nights, nil
}

func (s *lockManager) ReleaseLock(ctx context.Context, lockID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "LockManager.ReleaseLock", trace.WithAttributes(
		attribute.String("lock_id", lockID),
		attribute.String("reason", reason),
	))
	defer span.End()

	if lockID == "" {
		return apperrors.InvalidInput("Lock ID cannot be empty")
	}
	if reason == "" {
		reason = model.ReleaseReasonCancelled
	}

	lock, changed, err := s.lockRepo.Release(ctx, lockID, reason, s.now().Truncate(time.Millisecond))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return s.lockError(err, lockID)
	}
	if !changed {
		s.cfg.Log.Debug("Availability lock already inactive", "lock_id", lockID, "status", lock.Status)
		return nil
	}

	s.cfg.Log.Info("Availability lock released", "lock_id", lockID, "room_id", lock.RoomID, "reason", reason)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.New(events.TypeHoldReleased, lock.RoomID, lock.ID, map[string]any{
		"reason":         reason,
		"reservation_id": lock.ReservationID,
	}))
	return nil
}

func (s *lockManager) PromoteLock(ctx context.Context, lockID, bookingID string) error {
	ctx, span := s.tracer.Start(ctx, "LockManager.PromoteLock", trace.WithAttributes(
		attribute.String("lock_id", lockID),
		attribute.String("booking_id", bookingID),
	))
	defer span.End()

	if bookingID == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	err := s.roomRepo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		lock, err := s.lockRepo.FindByID(ctx, lockID)
		if err != nil {
			return s.lockError(err, lockID)
		}
		if lock.Status == model.LockStatusPromoted && lock.BookingID == bookingID {
			return nil
		}
		if !lock.IsActive() || lock.IsExpired(s.now()) {
			return apperrors.LockExpired(lockID)
		}
		if err := s.lockRepo.Promote(ctx, lockID, bookingID); err != nil {
			return s.lockError(err, lockID)
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.cfg.Log.Info("Availability lock promoted", "lock_id", lockID, "booking_id", bookingID)
	return nil
}

func (s *lockManager) RenewLock(ctx context.Context, lockID string, expiresAt time.Time) error {
	return s.setExpiry(ctx, "LockManager.RenewLock", lockID, "", expiresAt)
}

func (s *lockManager) UpgradeToHard(ctx context.Context, lockID string, expiresAt time.Time) error {
	return s.setExpiry(ctx, "LockManager.UpgradeToHard", lockID, model.LockTypeHard, expiresAt)
}

// setExpiry keeps the current lock type when lockType is empty.
func (s *lockManager) setExpiry(ctx context.Context, spanName, lockID string, lockType model.LockType, expiresAt time.Time) error {
	ctx, span := s.tracer.Start(ctx, spanName, trace.WithAttributes(attribute.String("lock_id", lockID)))
	defer span.End()

	err := s.roomRepo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		lock, err := s.lockRepo.FindByID(ctx, lockID)
		if err != nil {
			return s.lockError(err, lockID)
		}
		if !lock.IsActive() || lock.IsExpired(s.now()) {
			return apperrors.LockExpired(lockID)
		}
		nextType := lockType
		if nextType == "" {
			nextType = lock.LockType
		}
		if err := s.lockRepo.SetExpiry(ctx, lockID, nextType, expiresAt.Truncate(time.Millisecond)); err != nil {
			return s.lockError(err, lockID)
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.cfg.Log.Info("Availability lock expiry updated", "lock_id", lockID, "lock_type", lockType, "expires_at", expiresAt)
	return nil
}

func (s *lockManager) GetLock(ctx context.Context, lockID string) (*model.AvailabilityLock, error) {
	if lockID == "" {
		return nil, apperrors.InvalidInput("Lock ID cannot be empty")
	}
	lock, err := s.lockRepo.FindByID(ctx, lockID)
	if err != nil {
		return nil, s.lockError(err, lockID)
	}
	return lock, nil
}

func (s *lockManager) ResolveToken(ctx context.Context, token string) (*model.AvailabilityLock, error) {
	roomID, lockID, err := s.sealer.Open(token)
	if err != nil {
		return nil, apperrors.InvalidInput("Invalid hold token")
	}
	lock, err := s.GetLock(ctx, lockID)
	if err != nil {
		return nil, err
	}
	if lock.RoomID != roomID {
		return nil, apperrors.InvalidInput("Invalid hold token")
	}
	return lock, nil
}

func (s *lockManager) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "LockManager.SweepExpired")
	defer span.End()

	count, err := s.lockRepo.ExpireStale(ctx, "", now)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.cfg.Log.Error("Failed to sweep expired locks", "error", err)
		return 0, apperrors.Internal("Failed to sweep expired locks", err)
	}
	span.SetAttributes(attribute.Int64("expired", count))
	if count > 0 {
		s.cfg.Log.Info("Expired availability locks swept", "count", count)
	}
	return count, nil
}

func (s *lockManager) Availability(ctx context.Context, roomID string, rng calendar.Range) ([]model.NightAvailability, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, s.roomError(err, roomID)
	}
	return s.nightlyUsage(ctx, room, rng, s.now())
}

// releaseAfterFailure frees a lock whose handle could not be returned.
func (s *lockManager) releaseAfterFailure(ctx context.Context, lockID string) {
	if _, _, err := s.lockRepo.Release(ctx, lockID, model.ReleaseReasonFailed, s.now()); err != nil {
		s.cfg.Log.Error("Failed to release orphaned lock", "lock_id", lockID, "error", err)
	}
}

func (s *lockManager) roomError(err error, roomID string) error {
	if errors.Is(err, inventoryerrors.ErrRoomNotFound) {
		return apperrors.NotFoundWithID("Room", roomID)
	}
	return apperrors.Internal("Failed to load room", err)
}

func (s *lockManager) lockError(err error, lockID string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, inventoryerrors.ErrLockNotFound):
		return apperrors.NotFoundWithID("AvailabilityLock", lockID)
	case errors.Is(err, inventoryerrors.ErrLockNotActive):
		return apperrors.LockExpired(lockID)
	default:
		return apperrors.Internal("Failed to update availability lock", err)
	}
}
