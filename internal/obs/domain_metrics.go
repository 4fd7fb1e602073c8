package obs

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	domainOnce sync.Once

	// OrdersCreatedTotal counts persisted orders by status.
	OrdersCreatedTotal *prometheus.CounterVec
	// OrderRejectionsTotal counts rejected order requests by error code.
	OrderRejectionsTotal *prometheus.CounterVec
	// OrderDiscountCentsTotal sums validated discounts by source (promo, deal, offers).
	OrderDiscountCentsTotal *prometheus.CounterVec
	// SideEffectsTotal counts best-effort post-order steps by kind and result.
	SideEffectsTotal *prometheus.CounterVec

	orderTotalHist metric.Int64Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersCreatedTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of orders persisted by status.",
		}, []string{"status"}))
		OrderRejectionsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_rejections_total",
			Help:      "Count of rejected order requests by error code.",
		}, []string{"code"}))
		OrderDiscountCentsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_discount_cents_total",
			Help:      "Sum of validated discounts in cents by source.",
		}, []string{"source"}))
		SideEffectsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effects_total",
			Help:      "Best-effort post-order steps by kind and result.",
		}, []string{"kind", "result"}))

		hist, err := otel.Meter("github.com/noah-isme/foodtruck-orders/order").Int64Histogram(
			"order.total",
			metric.WithUnit("{cent}"),
			metric.WithDescription("Reconciled order totals in cents."),
		)
		if err == nil {
			orderTotalHist = hist
		}
	})
}

// RecordOrderCreated tracks a persisted order and its reconciled total.
func RecordOrderCreated(ctx context.Context, status string, totalCents int64) {
	if OrdersCreatedTotal != nil {
		OrdersCreatedTotal.WithLabelValues(status).Inc()
	}
	if orderTotalHist != nil {
		orderTotalHist.Record(ctx, totalCents, metric.WithAttributes(attribute.String("status", status)))
	}
}

// RecordRejection tracks an order refused with code.
func RecordRejection(code string) {
	if OrderRejectionsTotal != nil {
		OrderRejectionsTotal.WithLabelValues(code).Inc()
	}
}

// RecordDiscount adds cents granted by source.
func RecordDiscount(source string, cents int64) {
	if OrderDiscountCentsTotal != nil && cents > 0 {
		OrderDiscountCentsTotal.WithLabelValues(source).Add(float64(cents))
	}
}

// RecordSideEffect tracks the outcome of a best-effort step.
func RecordSideEffect(kind string, err error) {
	if SideEffectsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	SideEffectsTotal.WithLabelValues(kind, result).Inc()
}

// registerOrReuse registers c, returning the already registered collector of the
// same descriptor when there is one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
	return c
}
