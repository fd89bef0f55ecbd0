package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_PublishRunsMiddlewareInOrder(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, "staybook.events", "", nil)

	var order []string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "first")
		return next(ctx, msg)
	})
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "second")
		return next(ctx, msg)
	})

	msg := NewMessage().WithKey("room-1").WithValue(map[string]string{"a": "b"}).WithEventType("hold.acquired").Build()
	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("unexpected middleware order %v", order)
	}
	if len(w.messages) != 1 || string(w.messages[0].Key) != "room-1" {
		t.Fatalf("unexpected written messages %+v", w.messages)
	}
	if header(w.messages[0], HeaderEventType) != "hold.acquired" {
		t.Error("event type header missing")
	}
}

func TestProducer_RejectsInvalidMessages(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, "t", "", nil)

	if err := p.Publish(context.Background(), Message{Value: []byte("x")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	if err := p.Publish(context.Background(), Message{Key: "k"}); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("expected ErrEmptyValue, got %v", err)
	}

	_ = p.Close()
	if err := p.Publish(context.Background(), Message{Key: "k", Value: []byte("x")}); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
}

func TestProducer_FailedWriteGoesToDLQ(t *testing.T) {
	w := &fakeWriter{err: errors.New("connection refused")}
	dlq := &fakeWriter{}
	p := newProducer(w, dlq, "staybook.events", "staybook.events.dlq", nil)

	msg := NewMessage().WithKey("room-1").WithRawValue([]byte(`{}`)).Build()
	err := p.Publish(context.Background(), msg)
	if err == nil {
		t.Fatal("expected publish error")
	}
	if ClassifyError(err) != ErrorTypeTransient {
		t.Errorf("publish failure should be transient, got %v", ClassifyError(err))
	}
	if len(dlq.messages) != 1 {
		t.Fatalf("expected message in DLQ, got %d", len(dlq.messages))
	}
	if header(dlq.messages[0], HeaderOriginalTopic) != "staybook.events" {
		t.Error("original topic header missing")
	}
	if _, ok := msg.Headers[HeaderDLQError]; ok {
		t.Error("DLQ headers must not leak into the caller's message")
	}
}

func TestMessage_RetryCount(t *testing.T) {
	msg := NewMessage().Build()
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	if msg.GetRetryCount() != 12 {
		t.Errorf("expected 12 retries, got %d", msg.GetRetryCount())
	}
}

func TestMessageBuilder_BuildEReportsEncodingErrors(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).BuildE()
	if err == nil || ClassifyError(err) != ErrorTypePermanent {
		t.Errorf("expected permanent encoding error, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"transient pattern", errors.New("dial tcp: i/o timeout"), ErrorTypeTransient},
		{"deadline", fmt.Errorf("write: %w", context.DeadlineExceeded), ErrorTypeTransient},
		{"business", NewBusinessError("room gone", nil), ErrorTypeBusiness},
		{"kafka temporary", kafka.LeaderNotAvailable, ErrorTypeTransient},
		{"kafka permanent", kafka.TopicAuthorizationFailed, ErrorTypePermanent},
		{"unknown", errors.New("boom"), ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeReader struct{}

func (fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}
func (fakeReader) CommitMessages(context.Context, ...kafka.Message) error { return nil }
func (fakeReader) Close() error                                           { return nil }

func TestConsumer_RetriesTransientThenDLQ(t *testing.T) {
	dlq := &fakeWriter{}
	calls := 0
	handler := func(ctx context.Context, msg Message) error {
		calls++
		return NewTransientError("refresh failed", errors.New("timeout"))
	}
	c := newConsumer(fakeReader{}, dlq, "staybook.events", "g", "dlq", 2, handler, nil)

	msg := Message{Key: "room-1", Value: []byte(`{}`), Headers: map[string]string{}}
	if err := c.processMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error after retries")
	}
	if calls != 3 {
		t.Errorf("expected 1 attempt + 2 retries, got %d", calls)
	}
	if len(dlq.messages) != 1 || header(dlq.messages[0], HeaderDLQGroup) != "g" {
		t.Errorf("expected DLQ message with group header, got %+v", dlq.messages)
	}
}

func TestConsumer_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, msg Message) error {
		calls++
		return NewPermanentError("bad payload", nil)
	}
	c := newConsumer(fakeReader{}, nil, "t", "g", "", 5, handler, nil)

	_ = c.processMessage(context.Background(), Message{Headers: map[string]string{}})
	if calls != 1 {
		t.Errorf("permanent errors must not be retried, got %d calls", calls)
	}
}

func TestConsumer_StartStopsOnCancel(t *testing.T) {
	c := newConsumer(fakeReader{}, nil, "t", "g", "", 0, func(context.Context, Message) error { return nil }, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
