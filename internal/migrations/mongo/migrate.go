package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingsrepo "staybook/internal/bookings/repository"
	inventoryrepo "staybook/internal/inventory/repository"
	"staybook/internal/migrations/mongo/validators"
	pricecacherepo "staybook/internal/pricecache/repository"
	pricingrepo "staybook/internal/pricing/repository"
	refundsrepo "staybook/internal/refunds/repository"
	reservationsrepo "staybook/internal/reservations/repository"
	"staybook/pkg/logger"
)

var (
	RoomsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "accommodation_id", Value: 1}}},
		{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "created_at", Value: 1}}},
	}

	// One override per room and night.
	OverridesIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	LocksIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "room_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "check_in", Value: 1},
			{Key: "check_out", Value: 1},
		}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
		{Keys: bson.D{{Key: "reservation_id", Value: 1}}},
	}

	PricingRulesIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "room_id", Value: 1},
			{Key: "is_active", Value: 1},
			{Key: "priority", Value: -1},
		}},
	}

	PriceCacheIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "data_valid_until", Value: 1}}},
	}

	ReservationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	BookingsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reservation_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{
			{Key: "room_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "check_in", Value: 1},
		}},
	}

	RefundPoliciesIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "accommodation_id", Value: 1},
			{Key: "is_active", Value: 1},
			{Key: "updated_at", Value: -1},
		}},
	}

	RefundRequestsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "booking_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "created_at", Value: -1},
		}},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func collections() map[string]collectionDef {
	return map[string]collectionDef{
		inventoryrepo.RoomsCollection:     {Indexes: RoomsIndexes, Validator: validators.RoomValidator},
		inventoryrepo.OverridesCollection: {Indexes: OverridesIndexes, Validator: validators.OverrideValidator},
		inventoryrepo.LocksCollection:     {Indexes: LocksIndexes, Validator: validators.LockValidator},
		pricingrepo.RulesCollection:       {Indexes: PricingRulesIndexes, Validator: validators.PricingRuleValidator},
		pricecacherepo.PriceCacheCollection: {
			Indexes:   PriceCacheIndexes,
			Validator: validators.PriceCacheValidator,
		},
		reservationsrepo.CollectionName:   {Indexes: ReservationsIndexes, Validator: validators.ReservationValidator},
		bookingsrepo.CollectionName:       {Indexes: BookingsIndexes, Validator: validators.BookingValidator},
		refundsrepo.PoliciesCollection:    {Indexes: RefundPoliciesIndexes, Validator: validators.RefundPolicyValidator},
		refundsrepo.RequestsCollection:    {Indexes: RefundRequestsIndexes, Validator: validators.RefundRequestValidator},
	}
}

func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for name, def := range collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	coll := db.Collection(name)
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
