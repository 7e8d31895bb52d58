package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	CRDBDSN      string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	OTLPEndpoint string
	InspectAddr  string

	// PollInterval is how often the processor scans for PENDING entries.
	PollInterval time.Duration
	// GlobalLeaseTimeout bounds the wait for the single poll lease.
	GlobalLeaseTimeout time.Duration
	// EntryLeaseTimeout bounds the wait for a per-entry lease.
	EntryLeaseTimeout time.Duration
	// ProductLeaseTimeout bounds the wait for a per-product lease.
	ProductLeaseTimeout time.Duration
	// LeaseTTL is the auto-expiry applied to every lease.
	LeaseTTL time.Duration

	DefaultCommissionRate decimal.Decimal
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		CRDBDSN:               os.Getenv("CRDB_DSN"),
		MongoURI:              os.Getenv("MONGO_URI"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RabbitURL:             os.Getenv("RABBIT_URL"),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		InspectAddr:           envOr("INSPECT_ADDR", ":8080"),
		PollInterval:          durationOr("POLL_INTERVAL", 10*time.Second),
		GlobalLeaseTimeout:    durationOr("GLOBAL_LEASE_TIMEOUT", 5*time.Second),
		EntryLeaseTimeout:     durationOr("ENTRY_LEASE_TIMEOUT", 3*time.Second),
		ProductLeaseTimeout:   durationOr("PRODUCT_LEASE_TIMEOUT", 5*time.Second),
		LeaseTTL:              durationOr("LEASE_TTL", 30*time.Second),
		DefaultCommissionRate: decimal.NewFromInt(5),
	}

	if raw := os.Getenv("DEFAULT_COMMISSION_RATE"); raw != "" {
		if rate, err := decimal.NewFromString(raw); err == nil {
			cfg.DefaultCommissionRate = rate
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d == 0 {
		return fallback
	}
	return d
}
