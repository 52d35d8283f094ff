package config_test

import (
	"io"
	"os"
	"testing"
	"time"

	"driverlink/internal/config"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func resetFlags(t *testing.T) {
	t.Helper()
	old := pflag.CommandLine
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	t.Cleanup(func() {
		pflag.CommandLine = old
	})
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT",
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
		"KAFKA_BROKERS", "KAFKA_ORDERS_TOPIC", "KAFKA_GROUP_ID",
		"OSRM_BASE_URL", "OSRM_TIMEOUT", "OSRM_MAX_RETRIES",
		"DISPATCH_BATCH_SIZE", "DISPATCH_OFFER_TTL", "DISPATCH_LOCATION_STALENESS",
		"DISPATCH_MAX_PICKUP_DISTANCE_KM", "DISPATCH_PENDING_SCAN_INTERVAL",
		"RATE_LIMIT_ENABLED", "RATE_LIMIT_RATE", "RATE_LIMIT_BURST", "RATE_LIMIT_TTL", "RATE_LIMIT_MAX_BUCKETS",
		"PPROF_ENABLED", "PPROF_ADDR", "PPROF_USER", "PPROF_PASSWORD",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	require.Equal(t, 8080, cfg.Port)

	require.Equal(t, "127.0.0.1", cfg.DB.Host)
	require.Equal(t, "5432", cfg.DB.Port)
	require.Equal(t, "driverlink", cfg.DB.User)
	require.Equal(t, "driverlink", cfg.DB.Name)

	require.Empty(t, cfg.Kafka.Brokers)
	require.Equal(t, "orders.events", cfg.Kafka.Topic)
	require.Equal(t, "service-dispatch", cfg.Kafka.GroupID)

	require.Equal(t, 5, cfg.Dispatch.BatchSize)
	require.Equal(t, 30*time.Second, cfg.Dispatch.OfferTTL)
	require.Equal(t, 5*time.Minute, cfg.Dispatch.LocationStaleness)
	require.InDelta(t, 50.0, cfg.Dispatch.MaxPickupDistanceKm, 1e-9)

	require.False(t, cfg.RateLimit.Enabled)
	require.False(t, cfg.Pprof.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	t.Setenv("PORT", "9090")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "15432")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "dispatch")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("DISPATCH_BATCH_SIZE", "3")
	t.Setenv("DISPATCH_OFFER_TTL", "45s")
	t.Setenv("DISPATCH_MAX_PICKUP_DISTANCE_KM", "12.5")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("PPROF_ENABLED", "true")
	t.Setenv("PPROF_ADDR", "127.0.0.1:7070")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "db", cfg.DB.Host)
	require.Equal(t, "15432", cfg.DB.Port)
	require.Equal(t, "postgres://u:p@db:15432/dispatch?sslmode=disable", cfg.DB.DSN())
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, 3, cfg.Dispatch.BatchSize)
	require.Equal(t, 45*time.Second, cfg.Dispatch.OfferTTL)
	require.InDelta(t, 12.5, cfg.Dispatch.MaxPickupDistanceKm, 1e-9)
	require.True(t, cfg.RateLimit.Enabled)
	require.True(t, cfg.Pprof.Enabled)
	require.Equal(t, "127.0.0.1:7070", cfg.Pprof.Addr)
}

func TestLoad_InvalidPort(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	t.Setenv("PORT", "70000")

	cfg, err := config.Load()
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestLoad_InvalidPostgresPort(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	t.Setenv("POSTGRES_PORT", "not-a-number")

	cfg, err := config.Load()
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestLoad_InvalidOfferTTL(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	t.Setenv("DISPATCH_OFFER_TTL", "bad-interval")

	cfg, err := config.Load()
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestLoad_ZeroBatchSizeRejected(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	t.Setenv("DISPATCH_BATCH_SIZE", "0")

	cfg, err := config.Load()
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestLoad_FlagsParseError(t *testing.T) {
	oldArgs := os.Args
	oldCommandLine := pflag.CommandLine

	defer func() {
		os.Args = oldArgs
		pflag.CommandLine = oldCommandLine
	}()

	clearEnv(t)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	pflag.CommandLine = fs
	os.Args = []string{"cmd", "--port=not-a-number"}

	cfg, err := config.Load()

	require.Error(t, err)
	require.Nil(t, cfg)
	require.Contains(t, err.Error(), "parse flags")
}
