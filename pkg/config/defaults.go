package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "staybook"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultStorageDriver     = StorageMongo

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultReservationWindow = 15 * time.Minute
	DefaultSoftHoldTTL       = 15 * time.Minute
	DefaultHardHoldTTL       = 30 * time.Minute
	DefaultMaxExtensions     = 2
	DefaultLockMaxRetries    = 3
	DefaultSweepInterval     = 1 * time.Minute
	DefaultPriceCacheTTL     = 1 * time.Hour
	DefaultPaymentURLTTL     = 30 * time.Minute

	DefaultPriceBandCutoffs = "50.00,100.00,200.00,400.00"
	DefaultTaxRate          = "10.00"
	DefaultServiceFeeRate   = "5.00"

	// Development key only. Deployments set HOLD_TOKEN_KEY.
	DefaultHoldTokenKey = "lfQVRuulcL2iOhOJ2r8BYTweoSKwVAJnIF9U+AL+M60="

	DefaultKafkaEnabled = false
	DefaultEventsTopic  = "staybook.events"
	DefaultEventsDLQ    = "staybook.events.dlq"

	DefaultPaginationLimit = 100
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)
