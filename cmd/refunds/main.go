package main

import (
	bookingshandler "staybook/internal/bookings/handler"
	bookingsservice "staybook/internal/bookings/service"
	bookingsvalidator "staybook/internal/bookings/validator"
	"staybook/internal/platform"
	"staybook/internal/refunds/handler"
	"staybook/internal/refunds/service"
	"staybook/internal/refunds/validator"
	"staybook/pkg/app"
	"staybook/pkg/config"
	"staybook/pkg/contracts"
	"staybook/pkg/events"
)

const ServiceName = "refunds"

type services struct {
	bookings bookingsservice.BookingService
	refunds  service.RefundService
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Refunds service")

	stores := platform.OpenStores(cfg)
	publisher := platform.NewPublisher(cfg, ServiceName)
	svc := initServices(cfg, stores, publisher)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, contracts.Handlers{
		bookingshandler.NewBookingHandler(svc.bookings, cfg.Log),
		handler.NewRefundHandler(svc.refunds, cfg.Log),
	})
	serverApp.Run()
}

func initServices(cfg *config.Config, stores *platform.Stores, publisher events.Publisher) *services {
	refunds := service.NewRefundService(
		stores.Policies,
		stores.Requests,
		stores.Bookings,
		validator.NewRefundValidator(cfg.Log),
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

	cfg.Log.Info("Refund service initialized", "storage_driver", cfg.StorageDriver)
	return &services{bookings: bookings, refunds: refunds}
}
