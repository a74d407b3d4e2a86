package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingQuoteTotal counts quote outcomes (ok, EMPTY_ORDER, UNKNOWN_ITEM, OUT_OF_RANGE, ...).
	PricingQuoteTotal *prometheus.CounterVec
	// GeoLookupTotal counts geocode and distance lookups by step and result.
	GeoLookupTotal *prometheus.CounterVec
	// OrdersCreatedTotal counts persisted orders.
	OrdersCreatedTotal prometheus.Counter
	// NotificationsTotal counts order confirmation deliveries by result.
	NotificationsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers the café domain collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingQuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_quote_total",
			Help:      "Count of order price quotes by result.",
		}, []string{"result"})
		GeoLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_lookup_total",
			Help:      "Count of geo provider lookups by step and result.",
		}, []string{"step", "result"})
		OrdersCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Number of orders placed.",
		})
		NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_notifications_total",
			Help:      "Order confirmation email outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, PricingQuoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PricingQuoteTotal = v
			}
		})
		mustRegisterCollector(reg, GeoLookupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				GeoLookupTotal = v
			}
		})
		mustRegisterCollector(reg, OrdersCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OrdersCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, NotificationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				NotificationsTotal = v
			}
		})
	})
}

// RecordQuote increments the quote counter when domain metrics are registered.
func RecordQuote(result string) {
	if PricingQuoteTotal != nil {
		PricingQuoteTotal.WithLabelValues(result).Inc()
	}
}

// RecordGeoLookup increments the geo lookup counter when domain metrics are registered.
func RecordGeoLookup(step, result string) {
	if GeoLookupTotal != nil {
		GeoLookupTotal.WithLabelValues(step, result).Inc()
	}
}

// RecordOrderCreated increments the order counter when domain metrics are registered.
func RecordOrderCreated() {
	if OrdersCreatedTotal != nil {
		OrdersCreatedTotal.Inc()
	}
}

// RecordNotification increments the notification counter when domain metrics are registered.
func RecordNotification(result string) {
	if NotificationsTotal != nil {
		NotificationsTotal.WithLabelValues(result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
