package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	refundserrors "staybook/internal/refunds/errors"
	"staybook/pkg/config"
	mongotx "staybook/pkg/db/mongo"
	"staybook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	PoliciesCollection = "RefundPolicies"
)

type PolicyRepository interface {
	Create(ctx context.Context, policy *model.RefundPolicy) error
	FindByID(ctx context.Context, id string) (*model.RefundPolicy, error)
	// FindActiveByAccommodation returns the most recently updated active policy.
	FindActiveByAccommodation(ctx context.Context, accommodationID string) (*model.RefundPolicy, error)
	// DeactivateOthers turns off every active policy of the accommodation
	// except keepID.
	DeactivateOthers(ctx context.Context, accommodationID, keepID string, at time.Time) (int64, error)
}

type mongoPolicyRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoPolicyRepository(cfg *config.Config) PolicyRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPolicyRepository{
		cfg:        cfg,
		collection: database.Collection(PoliciesCollection),
	}
}

func (r *mongoPolicyRepository) Create(ctx context.Context, policy *model.RefundPolicy) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, policy); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", refundserrors.ErrDuplicatePolicy, policy.ID)
		}
		return fmt.Errorf("failed to create refund policy: %w", err)
	}
	return nil
}

func (r *mongoPolicyRepository) FindByID(ctx context.Context, id string) (*model.RefundPolicy, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

func (r *mongoPolicyRepository) FindActiveByAccommodation(ctx context.Context, accommodationID string) (*model.RefundPolicy, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	return r.findOne(ctx, bson.M{"accommodation_id": accommodationID, "is_active": true}, opts)
}

func (r *mongoPolicyRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*model.RefundPolicy, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if opts == nil {
		opts = options.FindOne()
	}
	var policy model.RefundPolicy
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&policy); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, refundserrors.ErrPolicyNotFound
		}
		return nil, fmt.Errorf("failed to find refund policy: %w", err)
	}
	return &policy, nil
}

func (r *mongoPolicyRepository) DeactivateOthers(ctx context.Context, accommodationID, keepID string, at time.Time) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"accommodation_id": accommodationID,
		"is_active":        true,
		"_id":              bson.M{"$ne": keepID},
	}
	update := bson.M{"$set": bson.M{"is_active": false, "updated_at": at}}
	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate refund policies: %w", err)
	}
	return result.ModifiedCount, nil
}
