package repository

import (
	"context"
	"fmt"
	"sort"

	bookingserrors "staybook/internal/bookings/errors"
	"staybook/pkg/calendar"
	"staybook/pkg/db"
	"staybook/pkg/db/memory"
	"staybook/pkg/model"
)

type memoryBookingRepository struct {
	store    *memory.DB
	bookings *memory.Collection[model.Booking]
}

func NewMemoryBookingRepository(store *memory.DB) BookingRepository {
	return &memoryBookingRepository{
		store:    store,
		bookings: memory.NewCollection[model.Booking](store),
	}
}

func (r *memoryBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.store.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.FindByReservation(ctx, booking.ReservationID); err == nil {
			return fmt.Errorf("%w: %s", bookingserrors.ErrDuplicateBooking, booking.ReservationID)
		}
		if err := r.bookings.Insert(ctx, booking.ID, *booking); err != nil {
			return fmt.Errorf("%w: %s", bookingserrors.ErrDuplicateBooking, booking.ID)
		}
		return nil
	})
}

func (r *memoryBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	booking, ok := r.bookings.Get(ctx, id)
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return &booking, nil
}

func (r *memoryBookingRepository) FindByReservation(ctx context.Context, reservationID string) (*model.Booking, error) {
	matches := r.bookings.Find(ctx, func(b model.Booking) bool {
		return reservationID != "" && b.ReservationID == reservationID
	})
	if len(matches) == 0 {
		return nil, bookingserrors.ErrNotFound
	}
	return &matches[0], nil
}

func (r *memoryBookingRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	matches := r.bookings.Find(ctx, func(b model.Booking) bool {
		return b.UserID == userID
	})
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CheckIn.Equal(matches[j].CheckIn) {
			return matches[i].CheckIn.After(matches[j].CheckIn)
		}
		return matches[i].ID < matches[j].ID
	})

	start := min(int(offset), len(matches))
	end := min(start+limit, len(matches))
	bookings := make([]*model.Booking, 0, end-start)
	for i := start; i < end; i++ {
		bookings = append(bookings, &matches[i])
	}
	return bookings, nil
}

func (r *memoryBookingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	matches := r.bookings.Find(ctx, func(b model.Booking) bool {
		return b.UserID == userID
	})
	return int64(len(matches)), nil
}

func (r *memoryBookingRepository) FindCapacityOverlapping(ctx context.Context, roomID string, rng calendar.Range) ([]*model.Booking, error) {
	matches := r.bookings.Find(ctx, func(b model.Booking) bool {
		return b.RoomID == roomID && b.Status.ConsumesCapacity() &&
			calendar.Overlaps(b.CheckIn, b.CheckOut, rng.CheckIn, rng.CheckOut)
	})
	bookings := make([]*model.Booking, len(matches))
	for i := range matches {
		bookings[i] = &matches[i]
	}
	return bookings, nil
}

func (r *memoryBookingRepository) Update(ctx context.Context, booking *model.Booking, expectedVersion int64) error {
	found, written := r.bookings.Update(ctx, booking.ID, func(stored *model.Booking) bool {
		if stored.Version != expectedVersion {
			return false
		}
		*stored = *booking
		stored.Version = expectedVersion + 1
		return true
	})
	switch {
	case !found:
		return bookingserrors.ErrNotFound
	case !written:
		return bookingserrors.ErrVersionConflict
	}
	booking.Version = expectedVersion + 1
	return nil
}

func (r *memoryBookingRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.store.ExecuteTransaction(ctx, fn)
}
