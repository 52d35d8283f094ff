package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config stores service-dispatch settings.
type Config struct {
	Port      int
	DB        DB
	Kafka     Kafka
	Geo       Geo
	Dispatch  Dispatch
	RateLimit RateLimit
	Pprof     Pprof
}

// DB stores Postgres connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN builds a Postgres connection string.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Pass, d.Host, d.Port, d.Name)
}

// Kafka stores order event stream settings. Empty brokers disable the
// consumer/producer.
type Kafka struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Geo stores distance provider (OSRM) settings.
type Geo struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Dispatch stores assignment engine knobs. The source system left these
// unspecified, so they are explicit configuration with documented defaults.
type Dispatch struct {
	// BatchSize is the number of couriers offered per round.
	BatchSize int
	// OfferTTL is the shared expiry deadline for a batch of offers.
	OfferTTL time.Duration
	// LocationStaleness is the maximum age of a courier location still
	// considered rankable.
	LocationStaleness time.Duration
	// MaxPickupDistanceKm cuts off candidates farther than this from pickup.
	MaxPickupDistanceKm float64
	// OperationTimeout bounds individual store operations.
	OperationTimeout time.Duration
	// PendingScanInterval is how often the worker resurrects parked
	// pending orders.
	PendingScanInterval time.Duration
}

// RateLimit stores the per-client HTTP budget.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Pprof stores the debug profiling server settings. Non-loopback access
// requires basic auth credentials.
type Pprof struct {
	Enabled bool
	Addr    string
	User    string
	Pass    string
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Port:      DefaultPort(),
		DB:        DefaultDB(),
		Kafka:     DefaultKafka(),
		Geo:       DefaultGeo(),
		Dispatch:  DefaultDispatch(),
		RateLimit: DefaultRateLimit(),
		Pprof:     DefaultPprof(),
	}

	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	readString(&cfg.DB.Host, "POSTGRES_HOST")
	readString(&cfg.DB.User, "POSTGRES_USER")
	readString(&cfg.DB.Pass, "POSTGRES_PASSWORD")
	readString(&cfg.DB.Name, "POSTGRES_DB")
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid POSTGRES_PORT: %w", err)
		}
		cfg.DB.Port = v
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	readString(&cfg.Kafka.Topic, "KAFKA_ORDERS_TOPIC")
	readString(&cfg.Kafka.GroupID, "KAFKA_GROUP_ID")

	readString(&cfg.Geo.BaseURL, "OSRM_BASE_URL")
	if err := readDuration(&cfg.Geo.Timeout, "OSRM_TIMEOUT"); err != nil {
		return nil, err
	}
	if err := readInt(&cfg.Geo.MaxRetries, "OSRM_MAX_RETRIES"); err != nil {
		return nil, err
	}

	if err := readInt(&cfg.Dispatch.BatchSize, "DISPATCH_BATCH_SIZE"); err != nil {
		return nil, err
	}
	if err := readDuration(&cfg.Dispatch.OfferTTL, "DISPATCH_OFFER_TTL"); err != nil {
		return nil, err
	}
	if err := readDuration(&cfg.Dispatch.LocationStaleness, "DISPATCH_LOCATION_STALENESS"); err != nil {
		return nil, err
	}
	if v := os.Getenv("DISPATCH_MAX_PICKUP_DISTANCE_KM"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid DISPATCH_MAX_PICKUP_DISTANCE_KM: %w", err)
		}
		cfg.Dispatch.MaxPickupDistanceKm = f
	}
	if err := readDuration(&cfg.Dispatch.PendingScanInterval, "DISPATCH_PENDING_SCAN_INTERVAL"); err != nil {
		return nil, err
	}

	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_ENABLED: %w", err)
		}
		cfg.RateLimit.Enabled = b
	}
	if v := os.Getenv("RATE_LIMIT_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RATE: %w", err)
		}
		cfg.RateLimit.Rate = f
	}
	if err := readInt(&cfg.RateLimit.Burst, "RATE_LIMIT_BURST"); err != nil {
		return nil, err
	}
	if err := readDuration(&cfg.RateLimit.TTL, "RATE_LIMIT_TTL"); err != nil {
		return nil, err
	}
	if err := readInt(&cfg.RateLimit.MaxBuckets, "RATE_LIMIT_MAX_BUCKETS"); err != nil {
		return nil, err
	}

	if v := os.Getenv("PPROF_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PPROF_ENABLED: %w", err)
		}
		cfg.Pprof.Enabled = b
	}
	readString(&cfg.Pprof.Addr, "PPROF_ADDR")
	readString(&cfg.Pprof.User, "PPROF_USER")
	readString(&cfg.Pprof.Pass, "PPROF_PASSWORD")

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Dispatch.BatchSize <= 0 {
		return fmt.Errorf("invalid dispatch batch size: %d", c.Dispatch.BatchSize)
	}
	if c.Dispatch.OfferTTL <= 0 {
		return fmt.Errorf("invalid offer ttl: %s", c.Dispatch.OfferTTL)
	}
	if c.Dispatch.LocationStaleness <= 0 {
		return fmt.Errorf("invalid location staleness: %s", c.Dispatch.LocationStaleness)
	}
	return nil
}

func readString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func readInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func readDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
