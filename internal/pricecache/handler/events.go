package handler

import (
	"context"

	"staybook/internal/pricecache/service"
	apperrors "staybook/pkg/errors"
	"staybook/pkg/events"
	"staybook/pkg/kafka"
	"staybook/pkg/logger"
)

// EventHandler keeps the cache in step with room.pricing_changed events,
// either consumed from Kafka or published in process.
type EventHandler struct {
	service service.PriceCacheService
	log     *logger.Logger
}

func NewEventHandler(service service.PriceCacheService, log *logger.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		log:     log,
	}
}

// HandleMessage is a kafka.MessageHandler.
func (h *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	e, err := events.Decode(msg)
	if err != nil {
		return err
	}
	return h.handle(ctx, e)
}

// Publish lets the handler sit behind an events.Publisher when Kafka is off.
func (h *EventHandler) Publish(ctx context.Context, e events.Event) error {
	return h.handle(ctx, e)
}

func (h *EventHandler) handle(ctx context.Context, e events.Event) error {
	if e.Type != events.TypeRoomPricingChanged {
		return nil
	}
	if e.RoomID == "" {
		return kafka.NewPermanentError("pricing change without room id", nil).WithDetail("event_id", e.ID)
	}

	if err := h.service.Invalidate(ctx, e.RoomID); err != nil {
		return kafka.NewTransientError("invalidate price cache", err)
	}
	if _, err := h.service.Refresh(ctx, e.RoomID); err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			h.log.Warn("Pricing change for unknown room", "room_id", e.RoomID, "event_id", e.ID)
			return nil
		}
		return kafka.NewTransientError("refresh price cache", err)
	}

	h.log.Info("Price cache updated from event",
		"room_id", e.RoomID,
		"event_id", e.ID,
		"cause", e.Data["cause"],
	)
	return nil
}
