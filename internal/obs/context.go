package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type routeKey struct{}

// WithRoute records the chi pattern an order request matched, such as
// "/api/v1/orders/{id}", so metrics and access logs never carry raw order ids.
func WithRoute(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routeKey{}, pattern)
}

// RouteFrom returns the pattern stored by WithRoute, or "".
func RouteFrom(ctx context.Context) string {
	pattern, _ := ctx.Value(routeKey{}).(string)
	return pattern
}

// routeOf prefers the stored pattern, then the pattern chi is matching, then fallback.
func routeOf(r *http.Request, fallback string) string {
	if pattern := RouteFrom(r.Context()); pattern != "" {
		return pattern
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return fallback
}
