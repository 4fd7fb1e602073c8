package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/health"
	"github.com/noah-isme/foodtruck-orders/internal/obs"
	"github.com/noah-isme/foodtruck-orders/internal/order"
	"github.com/noah-isme/foodtruck-orders/internal/ratelimit"
	"github.com/noah-isme/foodtruck-orders/internal/security"
)

// NewRouter mounts the public order API, health probes and metrics.
func NewRouter(d Dependencies, svc *order.Service) http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obsMiddlewares(d)...)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key"},
		ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	healthHandler := health.Handler{Checker: health.Probes{DB: d.DB, Redis: d.Redis}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	orders := &order.Handler{Svc: svc, Promo: svc.Promo}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	limit := ratelimit.Handler{
		Limiter: d.Limiter,
		Key:     ratelimit.ByClientIP("orders"),
		OnError: func(err error) { d.Logger.Warn().Err(err).Msg("rate_limit_store_error") },
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		v.With(limit.Middleware, idem.Middleware).Post("/orders", orders.Create)
		v.Get("/orders/{orderId}", orders.Get)
		v.With(limit.Middleware).Post("/promo-codes/preview", orders.PreviewPromo)
	})
	return r
}

func obsMiddlewares(d Dependencies) []func(http.Handler) http.Handler {
	mws := []func(http.Handler) http.Handler{obs.RoutePatternMiddleware}
	if d.Config.Obs.TracingEnabled {
		mws = append(mws, obs.TracingMiddleware)
	}
	if d.Metrics != nil {
		mws = append(mws, obs.HTTPObs{Metrics: d.Metrics}.Middleware)
	}
	return append(mws, obs.RequestLogger{Logger: d.Logger}.Middleware)
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
