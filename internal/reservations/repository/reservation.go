package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "staybook/internal/reservations/errors"
	"staybook/pkg/config"
	"staybook/pkg/db"
	mongotx "staybook/pkg/db/mongo"
	"staybook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reservations"
)

var openStatuses = []model.ReservationStatus{model.ReservationPending, model.ReservationAwaitingPayment}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	// FindOpenExpired returns up to limit open reservations whose deadline
	// passed before now, oldest deadline first.
	FindOpenExpired(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error)
	// Update replaces the reservation if its stored Version equals
	// expectedVersion and writes it back with Version incremented.
	Update(ctx context.Context, reservation *model.Reservation, expectedVersion int64) error
	ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error
}

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  db.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config, txManager db.TransactionManager) ReservationRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		collection: database.Collection(CollectionName),
		txManager:  txManager,
	}
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, reservation); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", reservationserrors.ErrDuplicateReservation, reservation.ID)
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var reservation model.Reservation
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&reservation); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &reservation, nil
}

func (r *mongoReservationRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

func (r *mongoReservationRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func (r *mongoReservationRepository) FindOpenExpired(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":     bson.M{"$in": openStatuses},
		"expires_at": bson.M{"$lt": now, "$gt": time.Time{}},
	}
	opts := options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "expires_at", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *mongoReservationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Reservation, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer func() {
		if closeErr := cursor.Close(ctx); closeErr != nil {
			r.cfg.Log.Warn("Failed to close cursor", "error", closeErr)
		}
	}()

	var reservations []*model.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

func (r *mongoReservationRepository) Update(ctx context.Context, reservation *model.Reservation, expectedVersion int64) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	reservation.Version = expectedVersion + 1
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": reservation.ID, "version": expectedVersion}, reservation)
	if err != nil {
		reservation.Version = expectedVersion
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		reservation.Version = expectedVersion
		if _, err := r.FindByID(ctx, reservation.ID); err != nil {
			return err
		}
		return reservationserrors.ErrVersionConflict
	}
	return nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
