// Package platform assembles the storage backends and event publisher shared
// by the service binaries.
package platform

import (
	bookingsrepo "staybook/internal/bookings/repository"
	inventoryrepo "staybook/internal/inventory/repository"
	pricecacherepo "staybook/internal/pricecache/repository"
	pricingrepo "staybook/internal/pricing/repository"
	refundsrepo "staybook/internal/refunds/repository"
	reservationsrepo "staybook/internal/reservations/repository"
	"staybook/pkg/config"
	"staybook/pkg/db"
	"staybook/pkg/db/memory"
	mongotx "staybook/pkg/db/mongo"
	"staybook/pkg/events"
	"staybook/pkg/kafka"
	kafka_middleware "staybook/pkg/kafka/middleware"
)

// Stores holds one repository per collection, all backed by the same
// storage so transactions can span them.
type Stores struct {
	Tx           db.TransactionManager
	Rooms        inventoryrepo.RoomRepository
	Overrides    inventoryrepo.OverrideRepository
	Locks        inventoryrepo.LockRepository
	Rules        pricingrepo.RuleRepository
	PriceCache   pricecacherepo.CacheRepository
	Reservations reservationsrepo.ReservationRepository
	Bookings     bookingsrepo.BookingRepository
	Policies     refundsrepo.PolicyRepository
	Requests     refundsrepo.RequestRepository
}

// OpenStores connects Mongo when configured, otherwise builds a single
// in-process store.
func OpenStores(cfg *config.Config) *Stores {
	if cfg.UsesMongo() {
		if cfg.Client.Mongo == nil {
			cfg.SetMongo()
		}
		return mongoStores(cfg)
	}
	cfg.Log.Warn("Using in-memory storage, data is lost on restart")
	return MemoryStores(memory.New())
}

func mongoStores(cfg *config.Config) *Stores {
	txManager := mongotx.NewTransactionManager(cfg.Client.Mongo)
	cfg.Log.Info("Mongo repositories initialized", "database", cfg.MongoDatabaseName)
	return &Stores{
		Tx:           txManager,
		Rooms:        inventoryrepo.NewMongoRoomRepository(cfg, txManager),
		Overrides:    inventoryrepo.NewMongoOverrideRepository(cfg),
		Locks:        inventoryrepo.NewMongoLockRepository(cfg),
		Rules:        pricingrepo.NewMongoRuleRepository(cfg, txManager),
		PriceCache:   pricecacherepo.NewMongoCacheRepository(cfg),
		Reservations: reservationsrepo.NewMongoReservationRepository(cfg, txManager),
		Bookings:     bookingsrepo.NewMongoBookingRepository(cfg, txManager),
		Policies:     refundsrepo.NewMongoPolicyRepository(cfg),
		Requests:     refundsrepo.NewMongoRequestRepository(cfg, txManager),
	}
}

func MemoryStores(store *memory.DB) *Stores {
	return &Stores{
		Tx:           store,
		Rooms:        inventoryrepo.NewMemoryRoomRepository(store),
		Overrides:    inventoryrepo.NewMemoryOverrideRepository(store),
		Locks:        inventoryrepo.NewMemoryLockRepository(store),
		Rules:        pricingrepo.NewMemoryRuleRepository(store),
		PriceCache:   pricecacherepo.NewMemoryCacheRepository(store),
		Reservations: reservationsrepo.NewMemoryReservationRepository(store),
		Bookings:     bookingsrepo.NewMemoryBookingRepository(store),
		Policies:     refundsrepo.NewMemoryPolicyRepository(store),
		Requests:     refundsrepo.NewMemoryRequestRepository(store),
	}
}

// NewPublisher returns the Kafka publisher when Kafka is enabled and a
// logging publisher otherwise. local publishers receive every event in
// process as well.
func NewPublisher(cfg *config.Config, source string, local ...events.Publisher) events.Publisher {
	var primary events.Publisher
	if cfg.KafkaEnabled {
		if cfg.Client.Producer == nil {
			cfg.SetKafka()
		}
		primary = events.NewKafkaPublisher(cfg.Client.Producer, source, cfg.Log)
	} else {
		primary = events.NewLogPublisher(cfg.Log)
	}
	if len(local) == 0 {
		return primary
	}
	return append(events.Multi{primary}, local...)
}

// NewEventConsumer subscribes handler to the events topic. It returns nil
// when Kafka is disabled.
func NewEventConsumer(cfg *config.Config, handler kafka.MessageHandler) (*kafka.Consumer, error) {
	if !cfg.KafkaEnabled {
		return nil, nil
	}
	consumer, err := kafka.NewConsumer(cfg.Kafka, cfg.EventsTopic, cfg.EventsDLQ, handler, cfg.Log)
	if err != nil {
		return nil, err
	}
	if cfg.Kafka.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(kafka_middleware.MetricsConsumerMiddleware(cfg.Client.KafkaMetrics))
	}
	return consumer, nil
}
