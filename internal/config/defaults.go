package config

import "time"

const defaultPort = 8080

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "driverlink",
	Pass: "driverlink",
	Name: "driverlink",
}

var defaultKafka = Kafka{
	Brokers: nil,
	Topic:   "orders.events",
	GroupID: "service-dispatch",
}

var defaultGeo = Geo{
	BaseURL:    "https://router.project-osrm.org",
	Timeout:    10 * time.Second,
	MaxRetries: 2,
	BaseDelay:  150 * time.Millisecond,
	MaxDelay:   500 * time.Millisecond,
}

var defaultDispatch = Dispatch{
	BatchSize:           5,
	OfferTTL:            30 * time.Second,
	LocationStaleness:   5 * time.Minute,
	MaxPickupDistanceKm: 50,
	OperationTimeout:    3 * time.Second,
	PendingScanInterval: time.Minute,
}

var defaultPprof = Pprof{
	Enabled: false,
	Addr:    "127.0.0.1:6060",
}

var defaultRateLimit = RateLimit{
	Enabled:    false,
	Rate:       20,
	Burst:      40,
	TTL:        10 * time.Minute,
	MaxBuckets: 100000,
}

// DefaultPort returns the default HTTP port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultKafka returns the default order event stream settings.
func DefaultKafka() Kafka {
	return defaultKafka
}

// DefaultGeo returns the default distance provider settings.
func DefaultGeo() Geo {
	return defaultGeo
}

// DefaultDispatch returns the default assignment engine settings.
func DefaultDispatch() Dispatch {
	return defaultDispatch
}

// DefaultRateLimit returns the default HTTP rate limit settings.
func DefaultRateLimit() RateLimit {
	return defaultRateLimit
}

// DefaultPprof returns the default profiling server settings.
func DefaultPprof() Pprof {
	return defaultPprof
}
