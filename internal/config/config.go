package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	BodyLimitBytes     int64
	IdempotencyTTL     time.Duration
	RateLimitOrders    string
	ShutdownTimeout    time.Duration

	Order  OrderConfig
	Notify NotifyConfig
	Worker WorkerConfig
	Obs    ObsConfig
}

// OrderConfig tunes the pricing engine.
type OrderConfig struct {
	Currency            string
	TotalToleranceCents int64
	PickupSkew          time.Duration
	AnomalyFactor       int64
	DefaultStatus       string
	PromoLockTTL        time.Duration
	PromoLockWait       time.Duration
}

// NotifyConfig toggles the best-effort side effects.
type NotifyConfig struct {
	EmailEnabled   bool
	EmailFrom      string
	PushEnabled    bool
	PushEndpoint   string
	PushSecret     string
	PushTimeout    time.Duration
	LoyaltyEnabled bool
	PointsPerEuro  int64
}

// WorkerConfig drives the asynq worker.
type WorkerConfig struct {
	Concurrency int
	Queue       string
	MaxRetry    int
}

// ObsConfig groups logging, metrics and tracing settings.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsEnabled   bool
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:     parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitOrders:    valueOrDefault(k.String("RATE_LIMIT_ORDERS"), "30-M"),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		Order: OrderConfig{
			Currency:            strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "EUR")),
			TotalToleranceCents: parseInt(k.String("ORDER_TOTAL_TOLERANCE_CENTS"), 1),
			PickupSkew:          parseDuration(k.String("ORDER_PICKUP_SKEW"), "60s"),
			AnomalyFactor:       parseInt(k.String("ORDER_OPTION_ANOMALY_FACTOR"), 10),
			DefaultStatus:       strings.ToLower(valueOrDefault(k.String("ORDER_DEFAULT_STATUS"), "pending")),
			PromoLockTTL:        parseDuration(k.String("PROMO_LOCK_TTL"), "10s"),
			PromoLockWait:       parseDuration(k.String("PROMO_LOCK_WAIT"), "3s"),
		},
		Notify: NotifyConfig{
			EmailEnabled:   parseBool(k.String("NOTIFY_EMAIL_ENABLED"), true),
			EmailFrom:      valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "commandes@foodtruck.local"),
			PushEnabled:    parseBool(k.String("NOTIFY_PUSH_ENABLED"), false),
			PushEndpoint:   strings.TrimSpace(k.String("PUSH_ENDPOINT")),
			PushSecret:     k.String("PUSH_SIGNING_SECRET"),
			PushTimeout:    parseDuration(k.String("PUSH_TIMEOUT"), "5s"),
			LoyaltyEnabled: parseBool(k.String("LOYALTY_ENABLED"), true),
			PointsPerEuro:  parseInt(k.String("LOYALTY_POINTS_PER_EURO"), 1),
		},
		Worker: WorkerConfig{
			Concurrency: int(parseInt(k.String("WORKER_CONCURRENCY"), 10)),
			Queue:       valueOrDefault(k.String("WORKER_QUEUE"), "side_effects"),
			MaxRetry:    int(parseInt(k.String("WORKER_MAX_RETRY"), 5)),
		},
		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "foodtruck"),
			MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), true),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     k.String("OBS_OTLP_ENDPOINT"),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	switch cfg.Order.DefaultStatus {
	case "pending", "confirmed":
	default:
		return nil, fmt.Errorf("ORDER_DEFAULT_STATUS must be pending or confirmed, got %q", cfg.Order.DefaultStatus)
	}
	if cfg.Order.TotalToleranceCents < 0 {
		return nil, errors.New("ORDER_TOTAL_TOLERANCE_CENTS must not be negative")
	}
	if cfg.Notify.PushEnabled && cfg.Notify.PushEndpoint == "" {
		return nil, errors.New("PUSH_ENDPOINT is required when NOTIFY_PUSH_ENABLED is set")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
