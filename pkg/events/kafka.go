package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/pkg/kafka"
	"staybook/pkg/logger"
	"staybook/pkg/middleware"

	"github.com/sony/gobreaker"
)

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher sends events through a circuit breaker so a broker outage
// fails fast instead of stalling every request on producer retries.
type KafkaPublisher struct {
	producer messagePublisher
	source   string
	cb       *gobreaker.CircuitBreaker
	log      *logger.Logger
}

func NewKafkaPublisher(producer messagePublisher, source string, log *logger.Logger) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		source:   source,
		log:      log,
	}
	p.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-events-" + source,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 2
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := kafka.NewMessage().
		WithKey(partitionKey(e)).
		WithValue(e).
		WithEventID(e.ID).
		WithEventType(e.Type).
		WithCorrelationID(middleware.RequestIDFrom(ctx)).
		WithSource(p.source).
		WithSchemaVersion(SchemaVersion).
		WithTimestamp(e.OccurredAt).
		BuildE()
	if err != nil {
		return err
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.producer.Publish(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("event publisher unavailable: %w", err)
	}
	return err
}

func (p *KafkaPublisher) State() gobreaker.State {
	return p.cb.State()
}

func partitionKey(e Event) string {
	if e.RoomID != "" {
		return e.RoomID
	}
	return e.EntityID
}

// Decode reads an event published by KafkaPublisher.
func Decode(msg kafka.Message) (Event, error) {
	var e Event
	if err := msg.DecodeValue(&e); err != nil {
		return e, kafka.NewPermanentError("decode event", err)
	}
	if e.Type == "" {
		e.Type = msg.GetEventType()
	}
	return e, nil
}
