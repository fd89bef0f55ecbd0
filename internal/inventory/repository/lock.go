package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	inventoryerrors "staybook/internal/inventory/errors"
	"staybook/pkg/calendar"
	"staybook/pkg/config"
	mongotx "staybook/pkg/db/mongo"
	"staybook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	LocksCollection = "AvailabilityLocks"
)

type LockRepository interface {
	Create(ctx context.Context, lock *model.AvailabilityLock) error
	FindByID(ctx context.Context, id string) (*model.AvailabilityLock, error)
	// FindActiveOverlapping returns active locks of roomID whose range
	// overlaps rng.
	FindActiveOverlapping(ctx context.Context, roomID string, rng calendar.Range) ([]*model.AvailabilityLock, error)
	// ExpireStale marks every active lock with ExpiresAt < now as expired.
	// An empty roomID covers all rooms.
	ExpireStale(ctx context.Context, roomID string, now time.Time) (int64, error)
	// Release moves an active lock to released. For a lock that was already
	// released or expired only the reason is overwritten and changed is false.
	Release(ctx context.Context, id, reason string, at time.Time) (lock *model.AvailabilityLock, changed bool, err error)
	Promote(ctx context.Context, id, bookingID string) error
	// SetExpiry changes type and expiry of an active lock. A zero expiresAt
	// removes the expiry.
	SetExpiry(ctx context.Context, id string, lockType model.LockType, expiresAt time.Time) error
}

type mongoLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoLockRepository(cfg *config.Config) LockRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLockRepository{
		cfg:        cfg,
		collection: database.Collection(LocksCollection),
	}
}

func (r *mongoLockRepository) Create(ctx context.Context, lock *model.AvailabilityLock) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		return fmt.Errorf("failed to create availability lock: %w", err)
	}
	return nil
}

func (r *mongoLockRepository) FindByID(ctx context.Context, id string) (*model.AvailabilityLock, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var lock model.AvailabilityLock
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&lock); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, inventoryerrors.ErrLockNotFound
		}
		return nil, fmt.Errorf("failed to find availability lock: %w", err)
	}
	return &lock, nil
}

func (r *mongoLockRepository) FindActiveOverlapping(ctx context.Context, roomID string, rng calendar.Range) ([]*model.AvailabilityLock, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"room_id":   roomID,
		"status":    model.LockStatusActive,
		"check_in":  bson.M{"$lt": rng.CheckOut},
		"check_out": bson.M{"$gt": rng.CheckIn},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find availability locks: %w", err)
	}
	defer cursor.Close(ctx)

	var locks []*model.AvailabilityLock
	if err := cursor.All(ctx, &locks); err != nil {
		return nil, fmt.Errorf("failed to decode availability locks: %w", err)
	}
	return locks, nil
}

func (r *mongoLockRepository) ExpireStale(ctx context.Context, roomID string, now time.Time) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	// Locks without expires_at never match $lt.
	filter := bson.M{
		"status":     model.LockStatusActive,
		"expires_at": bson.M{"$lt": now},
	}
	if roomID != "" {
		filter["room_id"] = roomID
	}
	update := bson.M{"$set": bson.M{
		"status":         model.LockStatusExpired,
		"released_at":    now,
		"release_reason": model.ReleaseReasonExpired,
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to expire availability locks: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoLockRepository) Release(ctx context.Context, id, reason string, at time.Time) (*model.AvailabilityLock, bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var lock model.AvailabilityLock
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": model.LockStatusActive},
		bson.M{"$set": bson.M{
			"status":         model.LockStatusReleased,
			"released_at":    at,
			"release_reason": reason,
		}},
		opts,
	).Decode(&lock)
	if err == nil {
		return &lock, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to release availability lock: %w", err)
	}

	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": []model.LockStatus{model.LockStatusReleased, model.LockStatusExpired}}},
		bson.M{"$set": bson.M{"release_reason": reason}},
		opts,
	).Decode(&lock)
	if err == nil {
		return &lock, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to update availability lock release reason: %w", err)
	}

	// Promoted locks are left untouched.
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *mongoLockRepository) Promote(ctx context.Context, id, bookingID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.LockStatusActive},
		bson.M{
			"$set":   bson.M{"status": model.LockStatusPromoted, "booking_id": bookingID, "lock_type": model.LockTypeHard},
			"$unset": bson.M{"expires_at": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to promote availability lock: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.notActiveOrMissing(ctx, id)
	}
	return nil
}

func (r *mongoLockRepository) SetExpiry(ctx context.Context, id string, lockType model.LockType, expiresAt time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"lock_type": lockType}}
	if expiresAt.IsZero() {
		update["$unset"] = bson.M{"expires_at": ""}
	} else {
		update["$set"] = bson.M{"lock_type": lockType, "expires_at": expiresAt}
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": model.LockStatusActive}, update)
	if err != nil {
		return fmt.Errorf("failed to update availability lock expiry: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.notActiveOrMissing(ctx, id)
	}
	return nil
}

func (r *mongoLockRepository) notActiveOrMissing(ctx context.Context, id string) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check availability lock existence: %w", err)
	}
	if count == 0 {
		return inventoryerrors.ErrLockNotFound
	}
	return inventoryerrors.ErrLockNotActive
}
