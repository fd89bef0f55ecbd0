package kafka_config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Brokers:                []string{"localhost:9092"},
		GroupID:                DefaultGroupID,
		ProducerMaxAttempts:    DefaultProducerMaxAttempts,
		ProducerBatchTimeout:   DefaultProducerBatchTimeout,
		ProducerCompression:    DefaultProducerCompression,
		ConsumerMaxWait:        DefaultConsumerMaxWait,
		ConsumerCommitInterval: DefaultConsumerCommitInterval,
		ConsumerMaxRetries:     DefaultConsumerMaxRetries,
		ConsumerRetryBackoff:   DefaultConsumerRetryBackoff,
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg := validConfig()
	cfg.Brokers = []string{""}
	cfg.ProducerCompression = "brotli"
	cfg.ConsumerMaxWait = -time.Second
	cfg.ConsumerRetryBackoff = -time.Second

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"1. Broker 0", "ProducerCompression", "ConsumerMaxWait", "ConsumerRetryBackoff"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "k1:9092, k2:9092")
	t.Setenv(EnvKafkaGroupID, "pricing")
	t.Setenv(EnvKafkaProducerCompression, "GZIP")
	t.Setenv(EnvKafkaConsumerRetryBackoff, "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Brokers)
	}
	if cfg.GroupID != "pricing" {
		t.Errorf("unexpected group id %s", cfg.GroupID)
	}
	if cfg.ProducerCompression != "gzip" || cfg.ConsumerRetryBackoff != 250*time.Millisecond {
		t.Errorf("compression = %s, backoff = %s", cfg.ProducerCompression, cfg.ConsumerRetryBackoff)
	}
}
