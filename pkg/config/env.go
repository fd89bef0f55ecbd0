package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvStorageDriver     = "STORAGE_DRIVER"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvReservationWindow = "RESERVATION_WINDOW"
	EnvSoftHoldTTL       = "SOFT_HOLD_TTL"
	EnvHardHoldTTL       = "HARD_HOLD_TTL"
	EnvMaxExtensions     = "MAX_EXTENSIONS"
	EnvLockMaxRetries    = "LOCK_MAX_RETRIES"
	EnvSweepInterval     = "SWEEP_INTERVAL"
	EnvPriceCacheTTL     = "PRICE_CACHE_TTL"
	EnvPaymentURLTTL     = "PAYMENT_URL_TTL"

	EnvPriceBandCutoffs = "PRICE_BAND_CUTOFFS"
	EnvTaxRate          = "TAX_RATE"
	EnvServiceFeeRate   = "SERVICE_FEE_RATE"
	EnvHoldTokenKey     = "HOLD_TOKEN_KEY"

	EnvKafkaEnabled = "KAFKA_ENABLED"
	EnvEventsTopic  = "KAFKA_EVENTS_TOPIC"
	EnvEventsDLQ    = "KAFKA_EVENTS_DLQ_TOPIC"
)
