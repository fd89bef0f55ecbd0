package main

import (
	inventoryservice "staybook/internal/inventory/service"
	inventoryvalidator "staybook/internal/inventory/validator"
	"staybook/internal/platform"
	cachehandler "staybook/internal/pricecache/handler"
	cacheservice "staybook/internal/pricecache/service"
	"staybook/internal/pricing/handler"
	"staybook/internal/pricing/service"
	"staybook/internal/pricing/validator"
	"staybook/internal/sweeper"
	"staybook/pkg/app"
	"staybook/pkg/config"
	"staybook/pkg/contracts"
	"staybook/pkg/events"
)

const ServiceName = "pricing"

type services struct {
	rooms   inventoryservice.RoomService
	pricing service.PricingService
	cache   cacheservice.PriceCacheService
	events  *cachehandler.EventHandler
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Pricing service")

	stores := platform.OpenStores(cfg)

	// Without Kafka the cache hears about pricing changes in process only.
	relay := &events.Multi{}
	publisher := platform.NewPublisher(cfg, ServiceName, relay)
	svc := initServices(cfg, stores, publisher)
	if !cfg.KafkaEnabled {
		*relay = append(*relay, svc.events)
	}

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, contracts.Handlers{
		handler.NewPricingHandler(svc.pricing, cfg.Log),
		cachehandler.NewCacheHandler(svc.cache, cfg.Log),
	})

	consumer, err := platform.NewEventConsumer(cfg, svc.events.HandleMessage)
	if err != nil {
		cfg.Log.Fatal("Failed to create pricing events consumer", "error", err)
	}
	if consumer != nil {
		serverApp.AddWorker("pricing-events-consumer", contracts.WorkerFunc(consumer.Start))
		serverApp.OnShutdown(func() {
			if err := consumer.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka consumer", "error", err)
			}
		})
	}

	serverApp.AddWorker("price-cache-sweeper", sweeper.New(cfg.SweepInterval, cfg.Log,
		sweeper.Job{Name: "stale-price-cache", Run: svc.cache.SweepStale},
	))
	serverApp.OnShutdown(svc.cache.Wait)
	serverApp.Run()
}

func initServices(cfg *config.Config, stores *platform.Stores, publisher events.Publisher) *services {
	rooms := inventoryservice.NewRoomService(
		stores.Rooms,
		stores.Overrides,
		inventoryvalidator.NewInventoryValidator(cfg.Log),
		publisher,
		cfg,
	)
	pricing := service.NewPricingService(
		stores.Rules,
		rooms,
		validator.NewRuleValidator(cfg.Log),
		publisher,
		cfg,
	)
	cache := cacheservice.NewPriceCacheService(stores.PriceCache, pricing, rooms, cfg)

	cfg.Log.Info("Pricing service initialized", "storage_driver", cfg.StorageDriver)
	return &services{
		rooms:   rooms,
		pricing: pricing,
		cache:   cache,
		events:  cachehandler.NewEventHandler(cache, cfg.Log),
	}
}
