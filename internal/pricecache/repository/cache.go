package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	cacheerrors "staybook/internal/pricecache/errors"
	"staybook/pkg/config"
	mongotx "staybook/pkg/db/mongo"
	"staybook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	PriceCacheCollection = "PriceCache"
)

// CacheRepository stores one entry per room, keyed by room id.
type CacheRepository interface {
	Upsert(ctx context.Context, entry *model.PriceCacheEntry) error
	FindByRoom(ctx context.Context, roomID string) (*model.PriceCacheEntry, error)
	// FindExpired returns entries with DataValidUntil < now.
	FindExpired(ctx context.Context, now time.Time) ([]*model.PriceCacheEntry, error)
	// Invalidate moves DataValidUntil back to at. Missing entries are ignored.
	Invalidate(ctx context.Context, roomID string, at time.Time) error
}

type mongoCacheRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCacheRepository(cfg *config.Config) CacheRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCacheRepository{
		cfg:        cfg,
		collection: database.Collection(PriceCacheCollection),
	}
}

func (r *mongoCacheRepository) Upsert(ctx context.Context, entry *model.PriceCacheEntry) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": entry.RoomID}, entry, opts); err != nil {
		return fmt.Errorf("failed to upsert price cache entry: %w", err)
	}
	return nil
}

func (r *mongoCacheRepository) FindByRoom(ctx context.Context, roomID string) (*model.PriceCacheEntry, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var entry model.PriceCacheEntry
	if err := r.collection.FindOne(ctx, bson.M{"_id": roomID}).Decode(&entry); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cacheerrors.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to find price cache entry: %w", err)
	}
	return &entry, nil
}

func (r *mongoCacheRepository) FindExpired(ctx context.Context, now time.Time) ([]*model.PriceCacheEntry, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"data_valid_until": bson.M{"$lt": now}})
	if err != nil {
		return nil, fmt.Errorf("failed to find expired price cache entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*model.PriceCacheEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode price cache entries: %w", err)
	}
	return entries, nil
}

func (r *mongoCacheRepository) Invalidate(ctx context.Context, roomID string, at time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": roomID, "data_valid_until": bson.M{"$gt": at}}
	if _, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"data_valid_until": at}}); err != nil {
		return fmt.Errorf("failed to invalidate price cache entry: %w", err)
	}
	return nil
}
