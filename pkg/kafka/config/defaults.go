package kafka_config

import "time"

const (
	DefaultKafkaBrokers = "localhost:9092"
	DefaultGroupID      = "staybook-pricecache"

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerCompression  = "snappy"

	DefaultConsumerMaxWait        = 500 * time.Millisecond
	DefaultConsumerCommitInterval = 1 * time.Second
	DefaultConsumerMaxRetries     = 3
	DefaultConsumerRetryBackoff   = 1 * time.Second

	DefaultEnableMiddleware = true
)
