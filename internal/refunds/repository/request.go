package repository

import (
	"context"
	"errors"
	"fmt"

	refundserrors "staybook/internal/refunds/errors"
	"staybook/pkg/config"
	"staybook/pkg/db"
	mongotx "staybook/pkg/db/mongo"
	"staybook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	RequestsCollection = "RefundRequests"
)

// openStatuses are the request statuses that block a new evaluation.
var openStatuses = []model.RefundStatus{model.RefundRequested, model.RefundEvaluated, model.RefundProcessed}

type RequestRepository interface {
	Create(ctx context.Context, request *model.RefundRequest) error
	FindByID(ctx context.Context, id string) (*model.RefundRequest, error)
	// FindOpenByBooking returns the newest request for the booking that was
	// not rejected.
	FindOpenByBooking(ctx context.Context, bookingID string) (*model.RefundRequest, error)
	// Update replaces the request if its stored status is still expected.
	Update(ctx context.Context, request *model.RefundRequest, expected model.RefundStatus) error
	ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error
}

type mongoRequestRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  db.TransactionManager
}

func NewMongoRequestRepository(cfg *config.Config, txManager db.TransactionManager) RequestRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRequestRepository{
		cfg:        cfg,
		collection: database.Collection(RequestsCollection),
		txManager:  txManager,
	}
}

func (r *mongoRequestRepository) Create(ctx context.Context, request *model.RefundRequest) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, request); err != nil {
		return fmt.Errorf("failed to create refund request: %w", err)
	}
	return nil
}

func (r *mongoRequestRepository) FindByID(ctx context.Context, id string) (*model.RefundRequest, error) {
	return r.findOne(ctx, bson.M{"_id": id}, options.FindOne())
}

func (r *mongoRequestRepository) FindOpenByBooking(ctx context.Context, bookingID string) (*model.RefundRequest, error) {
	filter := bson.M{"booking_id": bookingID, "status": bson.M{"$in": openStatuses}}
	return r.findOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *mongoRequestRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*model.RefundRequest, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var request model.RefundRequest
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&request); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, refundserrors.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to find refund request: %w", err)
	}
	return &request, nil
}

func (r *mongoRequestRepository) Update(ctx context.Context, request *model.RefundRequest, expected model.RefundStatus) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": request.ID, "status": expected}, request)
	if err != nil {
		return fmt.Errorf("failed to update refund request: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, request.ID); err != nil {
			return err
		}
		return refundserrors.ErrStatusConflict
	}
	return nil
}

func (r *mongoRequestRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
