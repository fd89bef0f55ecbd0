package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	reservationserrors "staybook/internal/reservations/errors"
	"staybook/pkg/db"
	"staybook/pkg/db/memory"
	"staybook/pkg/model"
)

type memoryReservationRepository struct {
	store        *memory.DB
	reservations *memory.Collection[model.Reservation]
}

func NewMemoryReservationRepository(store *memory.DB) ReservationRepository {
	return &memoryReservationRepository{
		store:        store,
		reservations: memory.NewCollection[model.Reservation](store),
	}
}

func (r *memoryReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	stored := *reservation
	stored.HoldToken = ""
	if err := r.reservations.Insert(ctx, reservation.ID, stored); err != nil {
		return fmt.Errorf("%w: %s", reservationserrors.ErrDuplicateReservation, reservation.ID)
	}
	return nil
}

func (r *memoryReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	reservation, ok := r.reservations.Get(ctx, id)
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	return &reservation, nil
}

func (r *memoryReservationRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	matches := r.reservations.Find(ctx, func(res model.Reservation) bool {
		return res.UserID == userID
	})
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return page(matches, limit, offset), nil
}

func (r *memoryReservationRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	matches := r.reservations.Find(ctx, func(res model.Reservation) bool {
		return res.UserID == userID
	})
	return int64(len(matches)), nil
}

func (r *memoryReservationRepository) FindOpenExpired(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	matches := r.reservations.Find(ctx, func(res model.Reservation) bool {
		return res.IsPastDeadline(now)
	})
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ExpiresAt.Before(matches[j].ExpiresAt)
	})
	return page(matches, limit, 0), nil
}

func (r *memoryReservationRepository) Update(ctx context.Context, reservation *model.Reservation, expectedVersion int64) error {
	found, written := r.reservations.Update(ctx, reservation.ID, func(stored *model.Reservation) bool {
		if stored.Version != expectedVersion {
			return false
		}
		*stored = *reservation
		stored.HoldToken = ""
		stored.Version = expectedVersion + 1
		return true
	})
	switch {
	case !found:
		return reservationserrors.ErrNotFound
	case !written:
		return reservationserrors.ErrVersionConflict
	}
	reservation.Version = expectedVersion + 1
	return nil
}

func (r *memoryReservationRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.store.ExecuteTransaction(ctx, fn)
}

func page(matches []model.Reservation, limit int, offset int64) []*model.Reservation {
	start := min(int(offset), len(matches))
	end := len(matches)
	if limit > 0 {
		end = min(start+limit, len(matches))
	}
	reservations := make([]*model.Reservation, 0, end-start)
	for i := start; i < end; i++ {
		reservations = append(reservations, &matches[i])
	}
	return reservations
}
