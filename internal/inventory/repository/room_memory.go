package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	inventoryerrors "staybook/internal/inventory/errors"
	"staybook/pkg/db"
	"staybook/pkg/db/memory"
	"staybook/pkg/model"
)

type memoryRoomRepository struct {
	store *memory.DB
	rooms *memory.Collection[model.Room]
}

func NewMemoryRoomRepository(store *memory.DB) RoomRepository {
	return &memoryRoomRepository{
		store: store,
		rooms: memory.NewCollection[model.Room](store),
	}
}

func (r *memoryRoomRepository) Create(ctx context.Context, room *model.Room) error {
	if err := r.rooms.Insert(ctx, room.ID, *room); err != nil {
		return fmt.Errorf("%w: %s", inventoryerrors.ErrDuplicateRoom, room.ID)
	}
	return nil
}

func (r *memoryRoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	room, ok := r.rooms.Get(ctx, id)
	if !ok {
		return nil, inventoryerrors.ErrRoomNotFound
	}
	return &room, nil
}

func (r *memoryRoomRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Room, error) {
	all := r.rooms.Find(ctx, nil)
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	var rooms []*model.Room
	for i := offset; i < int64(len(all)) && len(rooms) < limit; i++ {
		room := all[i]
		rooms = append(rooms, &room)
	}
	return rooms, nil
}

func (r *memoryRoomRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(r.rooms.Find(ctx, nil))), nil
}

func (r *memoryRoomRepository) Update(ctx context.Context, room *model.Room, expectedVersion int64, cacheDelta int64) error {
	found, written := r.rooms.Update(ctx, room.ID, func(stored *model.Room) bool {
		if stored.Version != expectedVersion {
			return false
		}
		stored.Name = room.Name
		stored.Category = room.Category
		stored.DefaultPrice = room.DefaultPrice
		stored.TotalUnits = room.TotalUnits
		stored.IsActive = room.IsActive
		stored.UpdatedAt = room.UpdatedAt
		stored.Version++
		stored.CacheVersion += cacheDelta
		return true
	})
	return casResult(found, written)
}

func (r *memoryRoomRepository) BumpVersion(ctx context.Context, id string, expected int64) error {
	found, written := r.rooms.Update(ctx, id, func(stored *model.Room) bool {
		if stored.Version != expected {
			return false
		}
		stored.Version++
		stored.UpdatedAt = time.Now().UTC()
		return true
	})
	return casResult(found, written)
}

func (r *memoryRoomRepository) BumpCacheVersion(ctx context.Context, id string, expected int64) error {
	found, written := r.rooms.Update(ctx, id, func(stored *model.Room) bool {
		if stored.CacheVersion != expected {
			return false
		}
		stored.CacheVersion++
		stored.UpdatedAt = time.Now().UTC()
		return true
	})
	return casResult(found, written)
}

func (r *memoryRoomRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.store.ExecuteTransaction(ctx, fn)
}

func casResult(found, written bool) error {
	if !found {
		return inventoryerrors.ErrRoomNotFound
	}
	if !written {
		return inventoryerrors.ErrVersionConflict
	}
	return nil
}
