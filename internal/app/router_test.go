package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foodtruck-orders/internal/config"
	"github.com/noah-isme/foodtruck-orders/internal/events"
	"github.com/noah-isme/foodtruck-orders/internal/ratelimit"
)

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:         "test",
		BodyLimitBytes: 1 << 10,
		Order: config.OrderConfig{
			TotalToleranceCents: 1,
			DefaultStatus:       "pending",
		},
		Notify: config.NotifyConfig{EmailEnabled: true},
		Worker: config.WorkerConfig{Queue: "side_effects", MaxRetry: 3},
	}
}

func newTestRouter(t *testing.T, rate string) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.NewMemoryLimiter(rate)
	require.NoError(t, err)
	d := Dependencies{
		Config:  testConfig(),
		Logger:  zerolog.Nop(),
		Redis:   client,
		Limiter: limiter,
	}
	return NewRouter(d, NewOrderService(d, NewEventBus(d))), mr
}

func TestRouterHealthAndHeaders(t *testing.T) {
	router, _ := newTestRouter(t, "10-M")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouterOrderGuards(t *testing.T) {
	router, mr := newTestRouter(t, "2-M")

	post := func(body, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(body))
		req.RemoteAddr = "203.0.113.9:1234"
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := post("{", "order-1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, mr.Keys(), 1)

	rec = post("{", "order-1")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "IDEMPOTENT_REPLAY")

	rec = post("{", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestRouterBodyLimit(t *testing.T) {
	router, _ := newTestRouter(t, "10-M")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes/preview", bytes.NewReader(make([]byte, 2<<10))))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Contains(t, rec.Body.String(), "PAYLOAD_TOO_LARGE")
}

func TestNewEventBusWithoutQueue(t *testing.T) {
	bus := NewEventBus(Dependencies{Config: testConfig()})
	require.Nil(t, bus.Store)
	require.Empty(t, bus.Notifiers)

	evt, err := bus.Emit(t.Context(), events.TopicOrderCreated, "order-1", map[string]string{"orderId": "order-1"})
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderCreated, evt.Topic)
}
