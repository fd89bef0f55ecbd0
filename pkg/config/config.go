package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"staybook/pkg/client"
	kafka_config "staybook/pkg/kafka/config"
	"staybook/pkg/logger"
	"staybook/pkg/money"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	StorageDriver     string

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	ReservationWindow time.Duration
	SoftHoldTTL       time.Duration
	// HardHoldTTL of zero keeps payment holds until explicitly released.
	HardHoldTTL    time.Duration
	MaxExtensions  int
	LockMaxRetries int
	SweepInterval  time.Duration
	PriceCacheTTL  time.Duration
	PaymentURLTTL  time.Duration

	PriceBandCutoffs []money.Money
	TaxRate          money.Percent
	ServiceFeeRate   money.Percent
	HoldTokenKey     string

	KafkaEnabled bool
	EventsTopic  string
	EventsDLQ    string
	Kafka        *kafka_config.Config

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	log := logger.New(logger.Config{
		Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		StorageDriver:     getEnvStr(EnvStorageDriver, DefaultStorageDriver),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		ReservationWindow: getEnvDuration(EnvReservationWindow, DefaultReservationWindow),
		SoftHoldTTL:       getEnvDuration(EnvSoftHoldTTL, DefaultSoftHoldTTL),
		HardHoldTTL:       getEnvDuration(EnvHardHoldTTL, DefaultHardHoldTTL),
		MaxExtensions:     getEnvNum(EnvMaxExtensions, DefaultMaxExtensions),
		LockMaxRetries:    getEnvNum(EnvLockMaxRetries, DefaultLockMaxRetries),
		SweepInterval:     getEnvDuration(EnvSweepInterval, DefaultSweepInterval),
		PriceCacheTTL:     getEnvDuration(EnvPriceCacheTTL, DefaultPriceCacheTTL),
		PaymentURLTTL:     getEnvDuration(EnvPaymentURLTTL, DefaultPaymentURLTTL),

		HoldTokenKey: getEnvStr(EnvHoldTokenKey, DefaultHoldTokenKey),

		KafkaEnabled: getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		EventsTopic:  getEnvStr(EnvEventsTopic, DefaultEventsTopic),
		EventsDLQ:    getEnvStr(EnvEventsDLQ, DefaultEventsDLQ),

		Log:    log,
		Client: client.NewClient(),
	}

	var parseErrors []string
	var err error
	if cfg.PriceBandCutoffs, err = ParseCutoffs(getEnvStr(EnvPriceBandCutoffs, DefaultPriceBandCutoffs)); err != nil {
		parseErrors = append(parseErrors, err.Error())
	}
	if cfg.TaxRate, err = money.ParsePercent(getEnvStr(EnvTaxRate, DefaultTaxRate)); err != nil {
		parseErrors = append(parseErrors, fmt.Sprintf("TaxRate is not a decimal: %v", err))
	}
	if cfg.ServiceFeeRate, err = money.ParsePercent(getEnvStr(EnvServiceFeeRate, DefaultServiceFeeRate)); err != nil {
		parseErrors = append(parseErrors, fmt.Sprintf("ServiceFeeRate is not a decimal: %v", err))
	}
	if len(parseErrors) > 0 {
		log.Fatal("Configuration parsing failed", "errors", parseErrors)
	}

	if cfg.KafkaEnabled {
		kcfg, err := kafka_config.Load()
		if err != nil {
			log.Fatal(err.Error())
		}
		cfg.Kafka = kcfg
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetKafka connects the event producer when Kafka is enabled.
func (cfg *Config) SetKafka() {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, events will be logged only")
		return
	}
	cfg.Client.SetKafkaProducer(cfg.Log, cfg.Kafka, cfg.EventsTopic, cfg.EventsDLQ)
}

func (cfg *Config) UsesMongo() bool {
	return cfg.StorageDriver == StorageMongo
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageDriver {
	case StorageMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case StorageMemory:
	default:
		errors = append(errors, fmt.Sprintf("StorageDriver must be one of [mongo, memory], got: %s", cfg.StorageDriver))
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"ReservationWindow", cfg.ReservationWindow},
		{"SoftHoldTTL", cfg.SoftHoldTTL},
		{"SweepInterval", cfg.SweepInterval},
		{"PriceCacheTTL", cfg.PriceCacheTTL},
		{"PaymentURLTTL", cfg.PaymentURLTTL},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", p.name, p.value))
		}
	}

	if cfg.HardHoldTTL < 0 {
		errors = append(errors, fmt.Sprintf("HardHoldTTL cannot be negative, got: %s", cfg.HardHoldTTL))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.MaxExtensions < 0 {
		errors = append(errors, fmt.Sprintf("MaxExtensions cannot be negative, got: %d", cfg.MaxExtensions))
	}
	if cfg.LockMaxRetries < 1 {
		errors = append(errors, fmt.Sprintf("LockMaxRetries must be at least 1, got: %d", cfg.LockMaxRetries))
	}

	for i := 1; i < len(cfg.PriceBandCutoffs); i++ {
		if cfg.PriceBandCutoffs[i] <= cfg.PriceBandCutoffs[i-1] {
			errors = append(errors, "PriceBandCutoffs must be strictly ascending")
			break
		}
	}
	if len(cfg.PriceBandCutoffs) > 4 {
		errors = append(errors, fmt.Sprintf("PriceBandCutoffs allows at most 4 values, got: %d", len(cfg.PriceBandCutoffs)))
	}

	if !cfg.TaxRate.Valid() {
		errors = append(errors, fmt.Sprintf("TaxRate must be between 0 and 100, got: %s", cfg.TaxRate))
	}
	if !cfg.ServiceFeeRate.Valid() {
		errors = append(errors, fmt.Sprintf("ServiceFeeRate must be between 0 and 100, got: %s", cfg.ServiceFeeRate))
	}

	if key, err := base64.StdEncoding.DecodeString(cfg.HoldTokenKey); err != nil || (len(key) != 16 && len(key) != 24 && len(key) != 32) {
		errors = append(errors, "HoldTokenKey must be a base64 encoded 16, 24 or 32 byte key")
	}

	if cfg.KafkaEnabled {
		if cfg.Kafka == nil {
			errors = append(errors, "Kafka configuration missing while KafkaEnabled is set")
		}
		if cfg.EventsTopic == "" {
			errors = append(errors, "EventsTopic cannot be empty")
		}
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"storage_driver", cfg.StorageDriver,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"reservation_window", cfg.ReservationWindow,
		"soft_hold_ttl", cfg.SoftHoldTTL,
		"hard_hold_ttl", cfg.HardHoldTTL,
		"max_extensions", cfg.MaxExtensions,
		"lock_max_retries", cfg.LockMaxRetries,
		"sweep_interval", cfg.SweepInterval,
		"price_cache_ttl", cfg.PriceCacheTTL,
		"price_band_cutoffs", cfg.PriceBandCutoffs,
		"tax_rate", cfg.TaxRate.String(),
		"service_fee_rate", cfg.ServiceFeeRate.String(),
		"kafka_enabled", cfg.KafkaEnabled,
		"events_topic", cfg.EventsTopic,
	)
	if cfg.Kafka != nil {
		cfg.Kafka.LogConfiguration(cfg.Log.Info)
	}
}

// ParseCutoffs reads a comma separated list of decimal amounts.
func ParseCutoffs(s string) ([]money.Money, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	cutoffs := make([]money.Money, 0, len(parts))
	for _, p := range parts {
		m, err := money.Parse(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("PriceBandCutoffs contains invalid amount %q: %w", p, err)
		}
		cutoffs = append(cutoffs, m)
	}
	return cutoffs, nil
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}

// Default returns a configuration built from defaults only. It does not
// read the environment and does not connect anything.
func Default(log *logger.Logger) *Config {
	if log == nil {
		log = logger.Discard()
	}
	cutoffs, _ := ParseCutoffs(DefaultPriceBandCutoffs)
	taxRate, _ := money.ParsePercent(DefaultTaxRate)
	feeRate, _ := money.ParsePercent(DefaultServiceFeeRate)

	return &Config{
		MongoURI:          DefaultMongoURI,
		MongoDatabaseName: DefaultMongoDatabaseName,
		MongoConnTimeout:  DefaultMongoConnTimeout,
		StorageDriver:     StorageMemory,
		Port:              DefaultPort,
		RateLimitRequests: DefaultRateLimitRequests,
		RateLimitWindow:   DefaultRateLimitWindow,
		RequestTimeout:    DefaultRequestTimeout,
		IdempotencyTTL:    DefaultIdempotencyTTL,
		MaxRequestSize:    DefaultMaxRequestSize,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		ShutdownTimeout:   DefaultShutdownTimeout,
		ReservationWindow: DefaultReservationWindow,
		SoftHoldTTL:       DefaultSoftHoldTTL,
		HardHoldTTL:       DefaultHardHoldTTL,
		MaxExtensions:     DefaultMaxExtensions,
		LockMaxRetries:    DefaultLockMaxRetries,
		SweepInterval:     DefaultSweepInterval,
		PriceCacheTTL:     DefaultPriceCacheTTL,
		PaymentURLTTL:     DefaultPaymentURLTTL,
		PriceBandCutoffs:  cutoffs,
		TaxRate:           taxRate,
		ServiceFeeRate:    feeRate,
		HoldTokenKey:      DefaultHoldTokenKey,
		EventsTopic:       DefaultEventsTopic,
		EventsDLQ:         DefaultEventsDLQ,
		Log:               log,
		Client:            client.NewClient(),
	}
}
