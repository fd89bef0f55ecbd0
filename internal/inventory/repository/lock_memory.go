package repository

import (
	"context"
	"fmt"
	"time"

	inventoryerrors "staybook/internal/inventory/errors"
	"staybook/pkg/calendar"
	"staybook/pkg/db/memory"
	"staybook/pkg/model"
)

type memoryLockRepository struct {
	locks *memory.Collection[model.AvailabilityLock]
}

func NewMemoryLockRepository(store *memory.DB) LockRepository {
	return &memoryLockRepository{
		locks: memory.NewCollection[model.AvailabilityLock](store),
	}
}

func (r *memoryLockRepository) Create(ctx context.Context, lock *model.AvailabilityLock) error {
	if err := r.locks.Insert(ctx, lock.ID, *lock); err != nil {
		return fmt.Errorf("failed to create availability lock: %w", err)
	}
	return nil
}

func (r *memoryLockRepository) FindByID(ctx context.Context, id string) (*model.AvailabilityLock, error) {
	lock, ok := r.locks.Get(ctx, id)
	if !ok {
		return nil, inventoryerrors.ErrLockNotFound
	}
	return &lock, nil
}

func (r *memoryLockRepository) FindActiveOverlapping(ctx context.Context, roomID string, rng calendar.Range) ([]*model.AvailabilityLock, error) {
	matches := r.locks.Find(ctx, func(l model.AvailabilityLock) bool {
		return l.RoomID == roomID && l.IsActive() && calendar.Overlaps(l.CheckIn, l.CheckOut, rng.CheckIn, rng.CheckOut)
	})
	locks := make([]*model.AvailabilityLock, len(matches))
	for i := range matches {
		locks[i] = &matches[i]
	}
	return locks, nil
}

func (r *memoryLockRepository) ExpireStale(ctx context.Context, roomID string, now time.Time) (int64, error) {
	n := r.locks.UpdateMany(ctx,
		func(l model.AvailabilityLock) bool {
			return (roomID == "" || l.RoomID == roomID) && l.IsExpired(now)
		},
		func(l *model.AvailabilityLock) {
			at := now
			l.Status = model.LockStatusExpired
			l.ReleasedAt = &at
			l.ReleaseReason = model.ReleaseReasonExpired
		},
	)
	return int64(n), nil
}

func (r *memoryLockRepository) Release(ctx context.Context, id, reason string, at time.Time) (*model.AvailabilityLock, bool, error) {
	var (
		result  model.AvailabilityLock
		changed bool
	)
	found, _ := r.locks.Update(ctx, id, func(l *model.AvailabilityLock) bool {
		switch l.Status {
		case model.LockStatusActive:
			released := at
			l.Status = model.LockStatusReleased
			l.ReleasedAt = &released
			l.ReleaseReason = reason
			changed = true
		case model.LockStatusReleased, model.LockStatusExpired:
			l.ReleaseReason = reason
		default:
			result = *l
			return false
		}
		result = *l
		return true
	})
	if !found {
		return nil, false, inventoryerrors.ErrLockNotFound
	}
	return &result, changed, nil
}

func (r *memoryLockRepository) Promote(ctx context.Context, id, bookingID string) error {
	return r.updateActive(ctx, id, func(l *model.AvailabilityLock) {
		l.Status = model.LockStatusPromoted
		l.BookingID = bookingID
		l.LockType = model.LockTypeHard
		l.ExpiresAt = time.Time{}
	})
}

func (r *memoryLockRepository) SetExpiry(ctx context.Context, id string, lockType model.LockType, expiresAt time.Time) error {
	return r.updateActive(ctx, id, func(l *model.AvailabilityLock) {
		l.LockType = lockType
		l.ExpiresAt = expiresAt
	})
}

func (r *memoryLockRepository) updateActive(ctx context.Context, id string, fn func(l *model.AvailabilityLock)) error {
	found, written := r.locks.Update(ctx, id, func(l *model.AvailabilityLock) bool {
		if !l.IsActive() {
			return false
		}
		fn(l)
		return true
	})
	if !found {
		return inventoryerrors.ErrLockNotFound
	}
	if !written {
		return inventoryerrors.ErrLockNotActive
	}
	return nil
}
