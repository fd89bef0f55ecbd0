// Package events publishes domain lifecycle events. Publishing is best
// effort: callers log failures and carry on.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"staybook/pkg/logger"

	"github.com/google/uuid"
)

const (
	TypeRoomPricingChanged   = "room.pricing_changed"
	TypeHoldAcquired         = "hold.acquired"
	TypeHoldReleased         = "hold.released"
	TypeReservationConfirmed = "reservation.confirmed"
	TypeReservationExpired   = "reservation.expired"
	TypeReservationCancelled = "reservation.cancelled"
	TypeBookingCancelled     = "booking.cancelled"
	TypeRefundEvaluated      = "refund.evaluated"
	TypeRefundProcessed      = "refund.processed"
)

const SchemaVersion = "1"

type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	RoomID     string         `json:"room_id"`
	EntityID   string         `json:"entity_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

func New(eventType, roomID, entityID string, data map[string]any) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		RoomID:     roomID,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Emit publishes e and logs instead of returning a failure.
func Emit(ctx context.Context, p Publisher, log *logger.Logger, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Warn("Failed to publish event",
			"event_type", e.Type,
			"event_id", e.ID,
			"room_id", e.RoomID,
			"entity_id", e.EntityID,
			"error", err,
		)
	}
}

// LogPublisher writes events to the service log. Used when Kafka is off.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.log.Info("Event",
		"event_type", e.Type,
		"event_id", e.ID,
		"room_id", e.RoomID,
		"entity_id", e.EntityID,
		"data", e.Data,
	)
	return nil
}

// Multi publishes every event to each of its publishers in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
