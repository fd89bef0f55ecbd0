package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	inventoryerrors "staybook/internal/inventory/errors"
	"staybook/pkg/config"
	mongotx "staybook/pkg/db/mongo"
	"staybook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	OverridesCollection = "AvailabilityOverrides"
)

type OverrideRepository interface {
	// Upsert writes the override for (RoomID, Date). An existing row keeps
	// its ID.
	Upsert(ctx context.Context, override *model.AvailabilityOverride) (*model.AvailabilityOverride, error)
	Delete(ctx context.Context, roomID string, date time.Time) error
	// FindByRoomRange returns overrides with from <= Date < to, ordered by date.
	FindByRoomRange(ctx context.Context, roomID string, from, to time.Time) ([]*model.AvailabilityOverride, error)
}

type mongoOverrideRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoOverrideRepository(cfg *config.Config) OverrideRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoOverrideRepository{
		cfg:        cfg,
		collection: database.Collection(OverridesCollection),
	}
}

func (r *mongoOverrideRepository) Upsert(ctx context.Context, override *model.AvailabilityOverride) (*model.AvailabilityOverride, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set := bson.M{"note": override.Note, "updated_at": override.UpdatedAt}
	unset := bson.M{}
	if override.IsAvailable != nil {
		set["is_available"] = *override.IsAvailable
	} else {
		unset["is_available"] = ""
	}
	if override.AvailableCount != nil {
		set["available_count"] = *override.AvailableCount
	} else {
		unset["available_count"] = ""
	}
	if override.OverridePrice != nil {
		set["override_price"] = *override.OverridePrice
	} else {
		unset["override_price"] = ""
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"_id": override.ID},
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	filter := bson.M{"room_id": override.RoomID, "date": override.Date}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored model.AvailabilityOverride
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return nil, fmt.Errorf("failed to upsert availability override: %w", err)
	}
	return &stored, nil
}

func (r *mongoOverrideRepository) Delete(ctx context.Context, roomID string, date time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"room_id": roomID, "date": date})
	if err != nil {
		return fmt.Errorf("failed to delete availability override: %w", err)
	}
	if result.DeletedCount == 0 {
		return inventoryerrors.ErrOverrideNotFound
	}
	return nil
}

func (r *mongoOverrideRepository) FindByRoomRange(ctx context.Context, roomID string, from, to time.Time) ([]*model.AvailabilityOverride, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"room_id": roomID,
		"date":    bson.M{"$gte": from, "$lt": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find availability overrides: %w", err)
	}
	defer cursor.Close(ctx)

	var overrides []*model.AvailabilityOverride
	if err := cursor.All(ctx, &overrides); err != nil {
		return nil, fmt.Errorf("failed to decode availability overrides: %w", err)
	}
	return overrides, nil
}
