package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"driverlink/internal/http/handlers"
	"driverlink/internal/http/router"
	testlog "driverlink/internal/testutil"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := testlog.New().Logger()
	return router.New(router.Deps{
		Base:     handlers.New(logger),
		Couriers: handlers.NewCourierHandler(nil, logger),
		Orders:   handlers.NewOrderHandler(nil, nil, logger),
		Gatherer: prometheus.NewRegistry(),
		WS: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusSwitchingProtocols)
		}),
	})
}

func TestRouter_Ping(t *testing.T) {
	r := newRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"message":"pong"}`, rr.Body.String())
}

func TestRouter_HealthcheckHead(t *testing.T) {
	r := newRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodHead, "/healthcheck", nil))

	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRouter_UnknownRouteIsJSON404(t *testing.T) {
	r := newRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.JSONEq(t, `{"error":"route not found"}`, rr.Body.String())
}

func TestRouter_MetricsMounted(t *testing.T) {
	r := newRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_WebsocketMounted(t *testing.T) {
	r := newRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws", nil))

	require.Equal(t, http.StatusSwitchingProtocols, rr.Code)
}

func TestRouter_ActorRequiredOnAPI(t *testing.T) {
	r := newRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders", nil))

	require.Equal(t, http.StatusForbidden, rr.Code)
}
