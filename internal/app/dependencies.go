package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/foodtruck-orders/internal/config"
	"github.com/noah-isme/foodtruck-orders/internal/db"
	"github.com/noah-isme/foodtruck-orders/internal/deal"
	"github.com/noah-isme/foodtruck-orders/internal/events"
	"github.com/noah-isme/foodtruck-orders/internal/lock"
	"github.com/noah-isme/foodtruck-orders/internal/menu"
	"github.com/noah-isme/foodtruck-orders/internal/notify"
	"github.com/noah-isme/foodtruck-orders/internal/obs"
	"github.com/noah-isme/foodtruck-orders/internal/offer"
	"github.com/noah-isme/foodtruck-orders/internal/order"
	"github.com/noah-isme/foodtruck-orders/internal/pricing"
	"github.com/noah-isme/foodtruck-orders/internal/promo"
	"github.com/noah-isme/foodtruck-orders/internal/ratelimit"
)

// Dependencies enumerates the infrastructure shared by the HTTP router and the order service.
type Dependencies struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Queries *db.Queries
	Tasks   notify.Enqueuer
	Metrics *obs.HTTPMetrics
	Limiter ratelimit.Limiter
}

// OpenPool connects to Postgres with query tracing enabled.
func OpenPool(ctx context.Context, cfg *config.Config, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenRedis connects to Redis and instruments the client.
func OpenRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if cfg.Obs.TracingEnabled {
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewEventBus persists order events and fans them out to the side-effect queue.
func NewEventBus(d Dependencies) *events.Bus {
	bus := &events.Bus{}
	if d.Queries != nil {
		bus.Store = d.Queries
	}
	if d.Tasks != nil {
		bus.Notifiers = append(bus.Notifiers, notify.TaskNotifier{
			Client:   d.Tasks,
			Email:    d.Config.Notify.EmailEnabled,
			Push:     d.Config.Notify.PushEnabled,
			Loyalty:  d.Config.Notify.LoyaltyEnabled,
			Queue:    d.Config.Worker.Queue,
			MaxRetry: d.Config.Worker.MaxRetry,
		})
	}
	return bus
}

// NewOrderService assembles the order pipeline over the Postgres queries.
func NewOrderService(d Dependencies, bus order.Emitter) *order.Service {
	cfg := d.Config.Order
	q := d.Queries
	svc := &order.Service{
		Menu:          menu.Loader{R: q},
		Promo:         &promo.Service{Q: q, Tolerance: cfg.TotalToleranceCents},
		Deals:         &deal.Validator{Q: q, Tolerance: cfg.TotalToleranceCents},
		Offers:        &offer.Validator{Q: q},
		Options:       pricing.OptionGuard{AnomalyFactor: cfg.AnomalyFactor},
		Store:         q,
		Orders:        q,
		Events:        bus,
		Tolerance:     cfg.TotalToleranceCents,
		PickupSkew:    cfg.PickupSkew,
		DefaultStatus: order.Status(cfg.DefaultStatus),
		LockTTL:       cfg.PromoLockTTL,
	}
	if d.Redis != nil {
		svc.Locker = lock.Locker{R: d.Redis, MaxWait: cfg.PromoLockWait}
	}
	return svc
}
