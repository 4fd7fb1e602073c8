package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/foodtruck-orders/internal/common"
)

// Limiter counts one hit for key and reports the window state.
type Limiter interface {
	Get(ctx context.Context, key string) (limiter.Context, error)
}

// Handler enforces rate limits before delegating to the next handler.
type Handler struct {
	Limiter Limiter
	Key     func(*http.Request) string
	OnError func(error)
}

// Middleware implements the http.Handler middleware interface. Store failures let
// the request through.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil || h.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		state, err := h.Limiter.Get(r.Context(), h.Key(r))
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(state.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(state.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(state.Reset, 10))

		if state.Reached {
			retryAfter := int(time.Until(time.Unix(state.Reset, 0)).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED",
				"Trop de requêtes, réessayez plus tard", map[string]any{"retryAfterSeconds": retryAfter})
			return
		}

		next.ServeHTTP(w, r)
	})
}
