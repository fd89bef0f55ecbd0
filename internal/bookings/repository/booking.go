package repository

import (
	"context"
	"errors"
	"fmt"

	bookingserrors "staybook/internal/bookings/errors"
	"staybook/pkg/calendar"
	"staybook/pkg/config"
	"staybook/pkg/db"
	mongotx "staybook/pkg/db/mongo"
	"staybook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByReservation(ctx context.Context, reservationID string) (*model.Booking, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	// FindCapacityOverlapping returns bookings in a capacity consuming
	// status whose stay overlaps rng.
	FindCapacityOverlapping(ctx context.Context, roomID string, rng calendar.Range) ([]*model.Booking, error)
	// Update replaces the booking if its stored Version equals expectedVersion
	// and writes it back with Version incremented.
	Update(ctx context.Context, booking *model.Booking, expectedVersion int64) error
	ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  db.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config, txManager db.TransactionManager) BookingRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: database.Collection(CollectionName),
		txManager:  txManager,
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", bookingserrors.ErrDuplicateBooking, booking.ReservationID)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoBookingRepository) FindByReservation(ctx context.Context, reservationID string) (*model.Booking, error) {
	return r.findOne(ctx, bson.M{"reservation_id": reservationID})
}

func (r *mongoBookingRepository) findOne(ctx context.Context, filter bson.M) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	if err := r.collection.FindOne(ctx, filter).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "check_in", Value: -1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) FindCapacityOverlapping(ctx context.Context, roomID string, rng calendar.Range) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"room_id":   roomID,
		"status":    bson.M{"$in": model.CapacityStatuses},
		"check_in":  bson.M{"$lt": rng.CheckOut},
		"check_out": bson.M{"$gt": rng.CheckIn},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) Update(ctx context.Context, booking *model.Booking, expectedVersion int64) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.Version = expectedVersion + 1
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": booking.ID, "version": expectedVersion}, booking)
	if err != nil {
		booking.Version = expectedVersion
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.MatchedCount == 0 {
		booking.Version = expectedVersion
		if _, err := r.FindByID(ctx, booking.ID); err != nil {
			return err
		}
		return bookingserrors.ErrVersionConflict
	}
	return nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
