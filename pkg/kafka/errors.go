package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

var (
	ErrProducerClosed = errors.New("kafka producer is closed")
	ErrConsumerClosed = errors.New("kafka consumer is closed")
	ErrInvalidMessage = errors.New("invalid message")
	ErrEmptyKey       = errors.New("message key cannot be empty")
	ErrEmptyValue     = errors.New("message value cannot be empty")
)

type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeTransient covers network issues and timeouts.
	ErrorTypeTransient
	// ErrorTypePermanent covers undecodable or invalid messages.
	ErrorTypePermanent
	// ErrorTypeBusiness is a domain rejection. It is never retried.
	ErrorTypeBusiness
)

type KafkaError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]any
}

func (e *KafkaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *KafkaError) Unwrap() error {
	return e.Err
}

func (e *KafkaError) IsTransient() bool {
	return e.Type == ErrorTypeTransient
}

func (e *KafkaError) IsPermanent() bool {
	return e.Type == ErrorTypePermanent
}

func newKafkaError(t ErrorType, message string, err error) *KafkaError {
	return &KafkaError{
		Type:    t,
		Message: message,
		Err:     err,
		Details: make(map[string]any),
	}
}

func NewTransientError(message string, err error) *KafkaError {
	return newKafkaError(ErrorTypeTransient, message, err)
}

func NewPermanentError(message string, err error) *KafkaError {
	return newKafkaError(ErrorTypePermanent, message, err)
}

func NewBusinessError(message string, err error) *KafkaError {
	return newKafkaError(ErrorTypeBusiness, message, err)
}

func (e *KafkaError) WithDetail(key string, value any) *KafkaError {
	e.Details[key] = value
	return e
}

var transientPatterns = []string{
	"connection refused",
	"timeout",
	"deadline exceeded",
	"no such host",
	"network is unreachable",
	"broken pipe",
	"connection reset",
	"temporary failure",
}

// ClassifyError decides whether err is worth retrying. Anything that cannot
// be classified is treated as permanent.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var kafkaErr *KafkaError
	if errors.As(err, &kafkaErr) {
		return kafkaErr.Type
	}

	var protoErr kafka.Error
	if errors.As(err, &protoErr) {
		if protoErr.Temporary() {
			return ErrorTypeTransient
		}
		return ErrorTypePermanent
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTransient
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return ErrorTypeTransient
		}
	}

	return ErrorTypePermanent
}

func ShouldRetry(err error, currentRetries, maxRetries int) bool {
	if err == nil || currentRetries >= maxRetries {
		return false
	}
	return ClassifyError(err) == ErrorTypeTransient
}
