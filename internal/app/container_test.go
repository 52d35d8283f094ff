package app

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"driverlink/internal/config"
	"driverlink/internal/http/handlers"
	"driverlink/internal/logx"
	"driverlink/internal/metrics"
)

func testConfig() *config.Config {
	return &config.Config{
		Port: 8080,
		Dispatch: config.Dispatch{
			BatchSize:           5,
			OfferTTL:            30 * time.Second,
			LocationStaleness:   5 * time.Minute,
			MaxPickupDistanceKm: 50,
			OperationTimeout:    3 * time.Second,
		},
	}
}

func setupTestContainer(t *testing.T, cfg *config.Config) *dig.Container {
	t.Helper()

	c := dig.New()

	providers := []struct {
		name     string
		provider any
	}{
		{"context", func() context.Context { return context.Background() }},
		{"logger", func() logx.Logger { return logx.Nop() }},
		{"config", func() *config.Config { return cfg }},
		{"pgxpool", func() *pgxpool.Pool { return &pgxpool.Pool{} }},
		{"metrics", metrics.NewRegistry},
	}

	for _, p := range providers {
		err := c.Provide(p.provider)
		require.NoErrorf(t, err, "provide %s", p.name)
	}

	require.NoError(t, registerDomain(c))
	require.NoError(t, registerHTTP(c))

	return c
}

func TestRegisterDomainAndHTTP_ProvidesServerAndHandlers(t *testing.T) {
	t.Parallel()

	c := setupTestContainer(t, testConfig())

	err := c.Invoke(func(
		srv *http.Server,
		base *handlers.Handlers,
		courierHandler *handlers.CourierHandler,
		orderHandler *handlers.OrderHandler,
	) {
		require.NotNil(t, srv, "http.Server is nil")
		require.Equal(t, ":8080", srv.Addr)
		require.Greater(t, srv.ReadHeaderTimeout, time.Duration(0))
		require.Greater(t, srv.ReadTimeout, time.Duration(0))
		require.Greater(t, srv.IdleTimeout, time.Duration(0))

		require.NotNil(t, base)
		require.NotNil(t, courierHandler)
		require.NotNil(t, orderHandler)
	})
	require.NoError(t, err)
}

type httpServersIn struct {
	dig.In

	Main  *http.Server
	Pprof *http.Server `name:"pprof_server" optional:"true"`
}

func TestRegisterHTTP_PprofDisabled_ReturnsNilPprofServer(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Pprof = config.Pprof{Enabled: false, Addr: "0.0.0.0:6060"}

	c := setupTestContainer(t, cfg)
	err := c.Invoke(func(in httpServersIn) {
		require.NotNil(t, in.Main)
		require.Nil(t, in.Pprof)
	})
	require.NoError(t, err)
}

func TestRegisterHTTP_PprofEnabled_ProvidesPprofServer(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Pprof = config.Pprof{Enabled: true, Addr: "127.0.0.1:6060", User: "u", Pass: "p"}

	c := setupTestContainer(t, cfg)
	err := c.Invoke(func(in httpServersIn) {
		require.NotNil(t, in.Main)
		require.NotNil(t, in.Pprof)
		require.Equal(t, "127.0.0.1:6060", in.Pprof.Addr)
		require.NotNil(t, in.Pprof.Handler)
	})
	require.NoError(t, err)
}

func TestNoKafkaConfig_DisablesProducerAndConsumer(t *testing.T) {
	t.Parallel()

	c := setupTestContainer(t, testConfig())

	err := c.Invoke(func(in runDeps) {
		require.Nil(t, in.Producer)
		require.Nil(t, in.Consumer)
	})
	require.NoError(t, err)
}

func TestProvideAll_Success(t *testing.T) {
	t.Parallel()

	c := dig.New()

	err := provideAll(c,
		func() context.Context { return context.Background() },
		func() time.Duration { return 3 * time.Second },
	)
	require.NoError(t, err)

	err = c.Invoke(func(ctx context.Context, d time.Duration) {
		require.NotNil(t, ctx)
		require.Equal(t, 3*time.Second, d)
	})
	require.NoError(t, err)
}

func TestProvideAll_InvalidProvider(t *testing.T) {
	t.Parallel()

	c := dig.New()

	type bad struct{}
	err := provideAll(c, bad{})
	require.Error(t, err)
}

func TestRegisterDb_UsesDbConnectAndProvidesPool(t *testing.T) {
	t.Parallel()

	c := dig.New()
	ctx := context.Background()

	cfg := &config.Config{
		DB: config.DB{
			Host: "localhost",
			Port: "5432",
			User: "user",
			Pass: "pass",
			Name: "db",
		},
	}

	require.NoError(t, c.Provide(func() context.Context { return ctx }))
	require.NoError(t, c.Provide(func() *config.Config { return cfg }))

	stubPool := &pgxpool.Pool{}

	stubConnect := func(
		gotCtx context.Context,
		dsn string,
		retries int,
		delay time.Duration,
	) (*pgxpool.Pool, error) {
		require.Equal(t, ctx, gotCtx)
		require.Equal(t, cfg.DB.DSN(), dsn)
		require.Equal(t, 10, retries)
		require.Equal(t, time.Second, delay)
		return stubPool, nil
	}

	err := registerDb(c, stubConnect)
	require.NoError(t, err)

	err = c.Invoke(func(pool *pgxpool.Pool) {
		require.Equal(t, stubPool, pool)
	})
	require.NoError(t, err)
}

func TestRegisterDb_ConnectError(t *testing.T) {
	t.Parallel()

	c := dig.New()

	require.NoError(t, c.Provide(func() context.Context { return context.Background() }))
	require.NoError(t, c.Provide(func() *config.Config { return testConfig() }))

	err := registerDb(c, func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error) {
		return nil, fmt.Errorf("db failed")
	})
	require.NoError(t, err)

	err = c.Invoke(func(pool *pgxpool.Pool) {
		_ = pool
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "db failed")
}

func TestContainerBuilder_WithOverridesKeepNonNil(t *testing.T) {
	t.Parallel()

	b := NewContainerBuilder().
		WithDBConnect(nil).
		WithLogFatalf(nil)

	require.NotNil(t, b.dbConnect)
	require.NotNil(t, b.logFatalf)
}
