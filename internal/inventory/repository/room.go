package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	inventoryerrors "staybook/internal/inventory/errors"
	"staybook/pkg/config"
	"staybook/pkg/db"
	mongotx "staybook/pkg/db/mongo"
	"staybook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	RoomsCollection = "Rooms"
)

type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	FindByID(ctx context.Context, id string) (*model.Room, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Room, error)
	Count(ctx context.Context) (int64, error)
	// Update writes the editable fields when the stored Version equals
	// expectedVersion. Version is incremented and CacheVersion is raised by
	// cacheDelta in the same write.
	Update(ctx context.Context, room *model.Room, expectedVersion int64, cacheDelta int64) error
	// BumpVersion advances the capacity ledger token from expected to expected+1.
	BumpVersion(ctx context.Context, id string, expected int64) error
	// BumpCacheVersion advances the pricing token from expected to expected+1.
	BumpCacheVersion(ctx context.Context, id string, expected int64) error
	ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error
}

type mongoRoomRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  db.TransactionManager
}

func NewMongoRoomRepository(cfg *config.Config, txManager db.TransactionManager) RoomRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRoomRepository{
		cfg:        cfg,
		collection: database.Collection(RoomsCollection),
		txManager:  txManager,
	}
}

func (r *mongoRoomRepository) Create(ctx context.Context, room *model.Room) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, room); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", inventoryerrors.ErrDuplicateRoom, room.ID)
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (r *mongoRoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var room model.Room
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, inventoryerrors.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

func (r *mongoRoomRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Room, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find rooms: %w", err)
	}
	defer cursor.Close(ctx)

	var rooms []*model.Room
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}
	return rooms, nil
}

func (r *mongoRoomRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	return count, nil
}

func (r *mongoRoomRepository) Update(ctx context.Context, room *model.Room, expectedVersion int64, cacheDelta int64) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": room.ID, "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{
			"name":          room.Name,
			"category":      room.Category,
			"default_price": room.DefaultPrice,
			"total_units":   room.TotalUnits,
			"is_active":     room.IsActive,
			"updated_at":    room.UpdatedAt,
		},
		"$inc": bson.M{"version": 1, "cache_version": cacheDelta},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.conflictOrMissing(ctx, room.ID)
	}
	return nil
}

func (r *mongoRoomRepository) BumpVersion(ctx context.Context, id string, expected int64) error {
	return r.bump(ctx, id, "version", expected)
}

func (r *mongoRoomRepository) BumpCacheVersion(ctx context.Context, id string, expected int64) error {
	return r.bump(ctx, id, "cache_version", expected)
}

func (r *mongoRoomRepository) bump(ctx context.Context, id, field string, expected int64) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, field: expected}
	update := bson.M{
		"$inc": bson.M{field: 1},
		"$set": bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to bump room %s: %w", field, err)
	}
	if result.MatchedCount == 0 {
		return r.conflictOrMissing(ctx, id)
	}
	return nil
}

// conflictOrMissing tells a lost compare-and-swap apart from a missing room.
func (r *mongoRoomRepository) conflictOrMissing(ctx context.Context, id string) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check room existence: %w", err)
	}
	if count == 0 {
		return inventoryerrors.ErrRoomNotFound
	}
	return inventoryerrors.ErrVersionConflict
}

func (r *mongoRoomRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
