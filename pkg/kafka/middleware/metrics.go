package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"staybook/pkg/kafka"
)

// Metrics counts publish and consume outcomes. The zero value is ready to use.
type Metrics struct {
	MessagesPublished       atomic.Int64
	MessagesPublishedFailed atomic.Int64
	PublishDurationTotal    atomic.Int64 // nanoseconds

	MessagesConsumed       atomic.Int64
	MessagesConsumedFailed atomic.Int64
	ConsumeDurationTotal   atomic.Int64 // nanoseconds
}

type Snapshot struct {
	Published          int64         `json:"published"`
	PublishFailed      int64         `json:"publish_failed"`
	AvgPublishDuration time.Duration `json:"avg_publish_duration"`
	Consumed           int64         `json:"consumed"`
	ConsumeFailed      int64         `json:"consume_failed"`
	AvgConsumeDuration time.Duration `json:"avg_consume_duration"`
}

func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Published:     m.MessagesPublished.Load(),
		PublishFailed: m.MessagesPublishedFailed.Load(),
		Consumed:      m.MessagesConsumed.Load(),
		ConsumeFailed: m.MessagesConsumedFailed.Load(),
	}
	if total := s.Published + s.PublishFailed; total > 0 {
		s.AvgPublishDuration = time.Duration(m.PublishDurationTotal.Load() / total)
	}
	if total := s.Consumed + s.ConsumeFailed; total > 0 {
		s.AvgConsumeDuration = time.Duration(m.ConsumeDurationTotal.Load() / total)
	}
	return s
}

func MetricsProducerMiddleware(m *Metrics) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		m.PublishDurationTotal.Add(int64(time.Since(start)))

		if err != nil {
			m.MessagesPublishedFailed.Add(1)
		} else {
			m.MessagesPublished.Add(1)
		}
		return err
	}
}

func MetricsConsumerMiddleware(m *Metrics) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		m.ConsumeDurationTotal.Add(int64(time.Since(start)))

		if err != nil {
			m.MessagesConsumedFailed.Add(1)
		} else {
			m.MessagesConsumed.Add(1)
		}
		return err
	}
}
