package main

import (
	bookingsservice "staybook/internal/bookings/service"
	bookingsvalidator "staybook/internal/bookings/validator"
	inventoryhandler "staybook/internal/inventory/handler"
	inventoryservice "staybook/internal/inventory/service"
	inventoryvalidator "staybook/internal/inventory/validator"
	"staybook/internal/platform"
	pricingservice "staybook/internal/pricing/service"
	pricingvalidator "staybook/internal/pricing/validator"
	refundsservice "staybook/internal/refunds/service"
	refundsvalidator "staybook/internal/refunds/validator"
	"staybook/internal/reservations/handler"
	"staybook/internal/reservations/service"
	"staybook/internal/reservations/validator"
	"staybook/internal/sweeper"
	"staybook/pkg/app"
	"staybook/pkg/config"
	"staybook/pkg/contracts"
	"staybook/pkg/events"
	"staybook/pkg/sealer"
)

const ServiceName = "reservations"

type services struct {
	rooms        inventoryservice.RoomService
	locks        inventoryservice.LockManager
	reservations service.ReservationService
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Reservations service")

	stores := platform.OpenStores(cfg)
	publisher := platform.NewPublisher(cfg, ServiceName)
	svc := initServices(cfg, stores, publisher)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, contracts.Handlers{
		inventoryhandler.NewRoomHandler(svc.rooms, svc.locks, cfg.Log),
		handler.NewReservationHandler(svc.reservations, cfg.Log),
	})
	serverApp.AddWorker("expiry-sweeper", newSweeper(cfg, svc))
	serverApp.Run()
}

func initServices(cfg *config.Config, stores *platform.Stores, publisher events.Publisher) *services {
	tokenSealer, err := sealer.New(cfg.HoldTokenKey)
	if err != nil {
		cfg.Log.Fatal("Invalid hold token key", "error", err)
	}

	rooms := inventoryservice.NewRoomService(
		stores.Rooms,
		stores.Overrides,
		inventoryvalidator.NewInventoryValidator(cfg.Log),
		publisher,
		cfg,
	)
	locks := inventoryservice.NewLockManager(
		stores.Rooms,
		stores.Overrides,
		stores.Locks,
		stores.Bookings,
		tokenSealer,
		publisher,
		cfg,
	)
	pricing := pricingservice.NewPricingService(
		stores.Rules,
		rooms,
		pricingvalidator.NewRuleValidator(cfg.Log),
		publisher,
		cfg,
	)
	refunds := refundsservice.NewRefundService(
		stores.Policies,
		stores.Requests,
		stores.Bookings,
		refundsvalidator.NewRefundValidator(cfg.Log),
		publisher,
		cfg,
	)
	bookings := bookingsservice.NewBookingService(
		stores.Bookings,
		refunds,
		bookingsvalidator.NewBookingValidator(cfg.Log),
		publisher,
		cfg,
	)
	reservations := service.NewReservationService(
		stores.Reservations,
		locks,
		pricing,
		bookings,
		rooms,
		validator.NewReservationValidator(cfg.Log),
		publisher,
		cfg,
	)

	cfg.Log.Info("Reservation service initialized", "storage_driver", cfg.StorageDriver)
	return &services{rooms: rooms, locks: locks, reservations: reservations}
}

// newSweeper expires overdue reservations. The reservation sweep also
// reclaims holds whose reservation never made it to storage.
func newSweeper(cfg *config.Config, svc *services) *sweeper.Sweeper {
	return sweeper.New(cfg.SweepInterval, cfg.Log,
		sweeper.Job{Name: "reservations", Run: svc.reservations.SweepExpired},
	)
}
