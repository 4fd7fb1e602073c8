package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/foodtruck",
		"REDIS_URL":    "redis://localhost:6379/0",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "EUR", cfg.Order.Currency)
	require.Equal(t, int64(1), cfg.Order.TotalToleranceCents)
	require.Equal(t, 60*time.Second, cfg.Order.PickupSkew)
	require.Equal(t, int64(10), cfg.Order.AnomalyFactor)
	require.Equal(t, "pending", cfg.Order.DefaultStatus)
	require.Equal(t, "30-M", cfg.RateLimitOrders)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, "foodtruck", cfg.Obs.MetricsNamespace)
	require.True(t, cfg.Notify.EmailEnabled)
	require.False(t, cfg.Notify.PushEnabled)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = ":9090"
	env["ORDER_TOTAL_TOLERANCE_CENTS"] = "0"
	env["ORDER_DEFAULT_STATUS"] = "Confirmed"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, https://b.example"
	env["LOYALTY_ENABLED"] = "off"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, int64(0), cfg.Order.TotalToleranceCents)
	require.Equal(t, "confirmed", cfg.Order.DefaultStatus)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.False(t, cfg.Notify.LoyaltyEnabled)
}

func TestLoadValidation(t *testing.T) {
	_, err := LoadForTests(map[string]string{"DATABASE_URL": "", "REDIS_URL": "redis://x"})
	require.ErrorContains(t, err, "DATABASE_URL")

	env := baseEnv()
	env["ORDER_DEFAULT_STATUS"] = "shipped"
	_, err = LoadForTests(env)
	require.ErrorContains(t, err, "ORDER_DEFAULT_STATUS")

	env = baseEnv()
	env["NOTIFY_PUSH_ENABLED"] = "true"
	_, err = LoadForTests(env)
	require.ErrorContains(t, err, "PUSH_ENDPOINT")
}
