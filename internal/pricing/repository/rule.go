package repository

import (
	"context"
	"errors"
	"fmt"

	pricingerrors "staybook/internal/pricing/errors"
	"staybook/pkg/config"
	"staybook/pkg/db"
	mongotx "staybook/pkg/db/mongo"
	"staybook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	RulesCollection = "PricingRules"
)

type RuleRepository interface {
	Create(ctx context.Context, rule *model.PricingRule) error
	FindByID(ctx context.Context, id string) (*model.PricingRule, error)
	// FindByRoom returns the room's rules ordered by priority, highest first.
	FindByRoom(ctx context.Context, roomID string, activeOnly bool) ([]*model.PricingRule, error)
	Update(ctx context.Context, rule *model.PricingRule) error
	ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error
}

type mongoRuleRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  db.TransactionManager
}

func NewMongoRuleRepository(cfg *config.Config, txManager db.TransactionManager) RuleRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRuleRepository{
		cfg:        cfg,
		collection: database.Collection(RulesCollection),
		txManager:  txManager,
	}
}

func (r *mongoRuleRepository) Create(ctx context.Context, rule *model.PricingRule) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, rule); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", pricingerrors.ErrDuplicateRule, rule.ID)
		}
		return fmt.Errorf("failed to create pricing rule: %w", err)
	}
	return nil
}

func (r *mongoRuleRepository) FindByID(ctx context.Context, id string) (*model.PricingRule, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var rule model.PricingRule
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rule); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, pricingerrors.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to find pricing rule: %w", err)
	}
	return &rule, nil
}

func (r *mongoRuleRepository) FindByRoom(ctx context.Context, roomID string, activeOnly bool) ([]*model.PricingRule, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"room_id": roomID}
	if activeOnly {
		filter["is_active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find pricing rules: %w", err)
	}
	defer cursor.Close(ctx)

	var rules []*model.PricingRule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode pricing rules: %w", err)
	}
	return rules, nil
}

func (r *mongoRuleRepository) Update(ctx context.Context, rule *model.PricingRule) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": rule.ID}, rule)
	if err != nil {
		return fmt.Errorf("failed to update pricing rule: %w", err)
	}
	if result.MatchedCount == 0 {
		return pricingerrors.ErrRuleNotFound
	}
	return nil
}

func (r *mongoRuleRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
