package client

import (
	"context"
	"time"

	"staybook/pkg/kafka"
	kafka_config "staybook/pkg/kafka/config"
	kafka_middleware "staybook/pkg/kafka/middleware"
	"staybook/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client holds the process wide connections. Fields stay nil for
// backends the service was not configured with.
type Client struct {
	Mongo        *mongo.Client
	Producer     *kafka.Producer
	KafkaMetrics *kafka_middleware.Metrics
}

func NewClient() *Client {
	return &Client{KafkaMetrics: &kafka_middleware.Metrics{}}
}

func (c *Client) SetMongo(log *logger.Logger, mongoURI string, mongoConnTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB")
	c.Mongo = client
}

func (c *Client) SetKafkaProducer(log *logger.Logger, cfg *kafka_config.Config, topic, dlqTopic string) {
	producer, err := kafka.NewProducer(cfg, topic, dlqTopic, log)
	if err != nil {
		log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if cfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware(c.KafkaMetrics))
	}

	log.Info("Kafka producer ready", "topic", topic, "brokers", cfg.Brokers)
	c.Producer = producer
}

func (c *Client) GracefulShutdown(log *logger.Logger) {
	if c.Producer != nil {
		if err := c.Producer.Close(); err != nil {
			log.Error("Failed to close Kafka producer", "error", err)
		}
	}
	if c.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Mongo.Disconnect(ctx); err != nil {
			log.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}
}
