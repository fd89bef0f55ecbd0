package repository

import (
	"context"
	"time"

	cacheerrors "staybook/internal/pricecache/errors"
	"staybook/pkg/db/memory"
	"staybook/pkg/model"
)

type memoryCacheRepository struct {
	entries *memory.Collection[model.PriceCacheEntry]
}

func NewMemoryCacheRepository(store *memory.DB) CacheRepository {
	return &memoryCacheRepository{
		entries: memory.NewCollection[model.PriceCacheEntry](store),
	}
}

func (r *memoryCacheRepository) Upsert(ctx context.Context, entry *model.PriceCacheEntry) error {
	r.entries.Put(ctx, entry.RoomID, *entry)
	return nil
}

func (r *memoryCacheRepository) FindByRoom(ctx context.Context, roomID string) (*model.PriceCacheEntry, error) {
	entry, ok := r.entries.Get(ctx, roomID)
	if !ok {
		return nil, cacheerrors.ErrEntryNotFound
	}
	return &entry, nil
}

func (r *memoryCacheRepository) FindExpired(ctx context.Context, now time.Time) ([]*model.PriceCacheEntry, error) {
	matches := r.entries.Find(ctx, func(e model.PriceCacheEntry) bool {
		return e.DataValidUntil.Before(now)
	})
	entries := make([]*model.PriceCacheEntry, len(matches))
	for i := range matches {
		entries[i] = &matches[i]
	}
	return entries, nil
}

func (r *memoryCacheRepository) Invalidate(ctx context.Context, roomID string, at time.Time) error {
	r.entries.Update(ctx, roomID, func(e *model.PriceCacheEntry) bool {
		if !e.DataValidUntil.After(at) {
			return false
		}
		e.DataValidUntil = at
		return true
	})
	return nil
}
