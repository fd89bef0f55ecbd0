package kafka_config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the broker settings shared by the event producer and the
// price cache consumer. Producer acks are always all replicas and writes
// are synchronous, so a failed publish reaches the circuit breaker.
type Config struct {
	Brokers []string
	GroupID string

	ProducerMaxAttempts  int
	ProducerBatchTimeout time.Duration
	ProducerCompression  string // none, gzip, snappy, lz4, zstd

	ConsumerMaxWait        time.Duration
	ConsumerCommitInterval time.Duration
	ConsumerMaxRetries     int
	ConsumerRetryBackoff   time.Duration

	EnableMiddleware bool
}

var compressions = []string{"none", "gzip", "snappy", "lz4", "zstd"}

func Load() (*Config, error) {
	var brokers []string
	for _, b := range strings.Split(getEnvStr(EnvKafkaBrokers, DefaultKafkaBrokers), ",") {
		brokers = append(brokers, strings.TrimSpace(b))
	}

	cfg := &Config{
		Brokers:                brokers,
		GroupID:                getEnvStr(EnvKafkaGroupID, DefaultGroupID),
		ProducerMaxAttempts:    getEnvInt(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts),
		ProducerBatchTimeout:   getEnvDuration(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout),
		ProducerCompression:    strings.ToLower(getEnvStr(EnvKafkaProducerCompression, DefaultProducerCompression)),
		ConsumerMaxWait:        getEnvDuration(EnvKafkaConsumerMaxWait, DefaultConsumerMaxWait),
		ConsumerCommitInterval: getEnvDuration(EnvKafkaConsumerCommitInterval, DefaultConsumerCommitInterval),
		ConsumerMaxRetries:     getEnvInt(EnvKafkaConsumerMaxRetries, DefaultConsumerMaxRetries),
		ConsumerRetryBackoff:   getEnvDuration(EnvKafkaConsumerRetryBackoff, DefaultConsumerRetryBackoff),
		EnableMiddleware:       getEnvBool(EnvKafkaEnableMiddleware, DefaultEnableMiddleware),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	var problems []string
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got: %s", name, d))
		}
	}

	if len(cfg.Brokers) == 0 {
		problems = append(problems, "At least one Kafka broker is required")
	}
	for i, broker := range cfg.Brokers {
		if broker == "" {
			problems = append(problems, fmt.Sprintf("Broker %d cannot be empty", i))
		}
	}
	if cfg.GroupID == "" {
		problems = append(problems, "GroupID cannot be empty")
	}
	if cfg.ProducerMaxAttempts <= 0 {
		problems = append(problems, fmt.Sprintf("ProducerMaxAttempts must be positive, got: %d", cfg.ProducerMaxAttempts))
	}
	positive("ProducerBatchTimeout", cfg.ProducerBatchTimeout)
	if !validCompression(cfg.ProducerCompression) {
		problems = append(problems, fmt.Sprintf("ProducerCompression must be one of %v, got: %s", compressions, cfg.ProducerCompression))
	}
	positive("ConsumerMaxWait", cfg.ConsumerMaxWait)
	positive("ConsumerCommitInterval", cfg.ConsumerCommitInterval)
	if cfg.ConsumerMaxRetries < 0 {
		problems = append(problems, fmt.Sprintf("ConsumerMaxRetries cannot be negative, got: %d", cfg.ConsumerMaxRetries))
	}
	if cfg.ConsumerRetryBackoff < 0 {
		problems = append(problems, fmt.Sprintf("ConsumerRetryBackoff cannot be negative, got: %s", cfg.ConsumerRetryBackoff))
	}

	if len(problems) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("configuration validation failed:\n")
	for i, p := range problems {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, p)
	}
	return fmt.Errorf("%s", b.String())
}

func validCompression(name string) bool {
	for _, c := range compressions {
		if c == name {
			return true
		}
	}
	return false
}

func (cfg *Config) LogConfiguration(logFunc func(msg string, keysAndValues ...any)) {
	if logFunc == nil {
		return
	}
	logFunc("Kafka configuration loaded",
		"brokers", cfg.Brokers,
		"group_id", cfg.GroupID,
		"producer_max_attempts", cfg.ProducerMaxAttempts,
		"producer_batch_timeout", cfg.ProducerBatchTimeout,
		"producer_compression", cfg.ProducerCompression,
		"consumer_max_wait", cfg.ConsumerMaxWait,
		"consumer_commit_interval", cfg.ConsumerCommitInterval,
		"consumer_max_retries", cfg.ConsumerMaxRetries,
		"consumer_retry_backoff", cfg.ConsumerRetryBackoff,
		"enable_middleware", cfg.EnableMiddleware,
	)
}

func getEnvStr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
