package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/foodtruck-orders/internal/app"
	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/config"
	"github.com/noah-isme/foodtruck-orders/internal/db"
	"github.com/noah-isme/foodtruck-orders/internal/notify"
	"github.com/noah-isme/foodtruck-orders/internal/obs"
	"github.com/noah-isme/foodtruck-orders/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := app.OpenPool(startCtx, cfg, "foodtruck-orders-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse asynq redis url")
	}

	handlers := notify.Handlers{}
	if cfg.Notify.EmailEnabled {
		handlers.Email = &notify.EmailHandler{Mail: common.LogEmailSender{Logger: logger}}
	}
	if cfg.Notify.PushEnabled {
		handlers.Push = &notify.PushHandler{
			Client:   resilience.NewHTTPClient("push", cfg.Notify.PushTimeout, 3),
			Endpoint: cfg.Notify.PushEndpoint,
			Secret:   cfg.Notify.PushSecret,
		}
	}
	if cfg.Notify.LoyaltyEnabled {
		handlers.Loyalty = &notify.LoyaltyHandler{Store: db.New(pool), PointsPerEuro: cfg.Notify.PointsPerEuro}
	}

	mux := asynq.NewServeMux()
	mux.Use(withLogger(logger))
	notify.RegisterHandlers(mux, handlers)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Worker.Concurrency,
		Queues:          map[string]int{cfg.Worker.Queue: 1},
		Logger:          asynqLogger{logger},
		ShutdownTimeout: cfg.ShutdownTimeout,
	})

	logger.Info().Str("queue", cfg.Worker.Queue).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

// withLogger scopes the task logger so handlers can use zerolog.Ctx.
func withLogger(logger zerolog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			id, _ := asynq.GetTaskID(ctx)
			scoped := logger.With().Str("task_type", t.Type()).Str("task_id", id).Logger()
			return next.ProcessTask(scoped.WithContext(ctx), t)
		})
	}
}

type asynqLogger struct {
	zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.Logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.Logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.Logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.Logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) {
	l.Logger.Error().Msg(fmt.Sprint(args...))
	os.Exit(1)
}
