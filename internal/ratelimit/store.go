package ratelimit

import (
	"fmt"
	"net/http"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/foodtruck-orders/internal/common"
)

// DefaultPrefix namespaces limiter counters in Redis.
const DefaultPrefix = "ratelimit"

// NewRedisLimiter builds a limiter sharing its counters through Redis. The rate uses
// the "<limit>-<period>" notation, e.g. "30-M".
func NewRedisLimiter(client *redis.Client, prefix, rate string) (*limiter.Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("limiter store: %w", err)
	}
	return limiter.New(store, r), nil
}

// NewMemoryLimiter builds a process-local limiter.
func NewMemoryLimiter(rate string) (*limiter.Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	return limiter.New(memory.NewStore(), r), nil
}

// ByClientIP keys requests by the caller address, scoped to a route name.
func ByClientIP(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		return scope + ":" + common.ClientIP(r)
	}
}
