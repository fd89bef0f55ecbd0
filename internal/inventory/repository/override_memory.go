package repository

import (
	"context"
	"sort"
	"time"

	inventoryerrors "staybook/internal/inventory/errors"
	"staybook/pkg/calendar"
	"staybook/pkg/db/memory"
	"staybook/pkg/model"
)

type memoryOverrideRepository struct {
	store     *memory.DB
	overrides *memory.Collection[model.AvailabilityOverride]
}

func NewMemoryOverrideRepository(store *memory.DB) OverrideRepository {
	return &memoryOverrideRepository{
		store:     store,
		overrides: memory.NewCollection[model.AvailabilityOverride](store),
	}
}

// overrideKey mirrors the unique (room_id, date) index.
func overrideKey(roomID string, date time.Time) string {
	return roomID + "|" + calendar.Format(date)
}

func (r *memoryOverrideRepository) Upsert(ctx context.Context, override *model.AvailabilityOverride) (*model.AvailabilityOverride, error) {
	var stored model.AvailabilityOverride
	err := r.store.ExecuteTransaction(ctx, func(ctx context.Context) error {
		key := overrideKey(override.RoomID, override.Date)
		stored = *override
		if existing, ok := r.overrides.Get(ctx, key); ok {
			stored.ID = existing.ID
		}
		r.overrides.Put(ctx, key, stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *memoryOverrideRepository) Delete(ctx context.Context, roomID string, date time.Time) error {
	if !r.overrides.Delete(ctx, overrideKey(roomID, date)) {
		return inventoryerrors.ErrOverrideNotFound
	}
	return nil
}

func (r *memoryOverrideRepository) FindByRoomRange(ctx context.Context, roomID string, from, to time.Time) ([]*model.AvailabilityOverride, error) {
	matches := r.overrides.Find(ctx, func(o model.AvailabilityOverride) bool {
		return o.RoomID == roomID && !o.Date.Before(from) && o.Date.Before(to)
	})
	sort.Slice(matches, func(i, j int) bool { return matches[i].Date.Before(matches[j].Date) })

	overrides := make([]*model.AvailabilityOverride, len(matches))
	for i := range matches {
		overrides[i] = &matches[i]
	}
	return overrides, nil
}
