// Package metrics holds the Prometheus collectors of each service. Every
// method is nil-safe so components can run without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "decor"

// BookingMetrics covers availability reads and appointment writes.
type BookingMetrics struct {
	slotQueries  *prometheus.CounterVec
	bookings     *prometheus.CounterVec
	readDuration *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		slotQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "slot_queries_total",
			Help:      "Availability queries by kind and outcome",
		}, []string{"kind", "outcome"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Appointment submissions by outcome",
		}, []string{"outcome"}),
		readDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "availability_duration_seconds",
			Help:      "Latency of availability computations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "availability_cache_total",
			Help:      "Availability cache lookups by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotQueries, m.bookings, m.readDuration, m.cacheLookups)
	return m
}

func (m *BookingMetrics) ObserveSlotQuery(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.slotQueries.WithLabelValues(kind, outcome).Inc()
	m.readDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// BillingMetrics covers webhook reconciliation and invoice issuance.
type BillingMetrics struct {
	webhookEvents  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
	invoices       prometheus.Counter
	checkouts      *prometheus.CounterVec
	notifyFailures *prometheus.CounterVec
}

func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	m := &BillingMetrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Payment provider webhook events by type and outcome",
		}, []string{"event_type", "outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		invoices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "invoices_issued_total",
			Help:      "Invoices issued on settlement",
		}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "checkout_sessions_total",
			Help:      "Checkout sessions requested by kind and outcome",
		}, []string{"kind", "outcome"}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be handed off",
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookEvents, m.webhookLatency, m.invoices, m.checkouts, m.notifyFailures)
	return m
}

func (m *BillingMetrics) ObserveWebhook(eventType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
	m.webhookLatency.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

func (m *BillingMetrics) InvoiceIssued() {
	if m == nil {
		return
	}
	m.invoices.Inc()
}

func (m *BillingMetrics) ObserveCheckout(kind, outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(kind, outcome).Inc()
}

func (m *BillingMetrics) NotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(kind).Inc()
}

// NotificationMetrics covers e-mail delivery in notification-service.
type NotificationMetrics struct {
	deliveries *prometheus.CounterVec
}

func NewNotificationMetrics(reg prometheus.Registerer) *NotificationMetrics {
	m := &NotificationMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "deliveries_total",
			Help:      "E-mail deliveries by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.deliveries)
	return m
}

func (m *NotificationMetrics) ObserveDelivery(kind, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(kind, outcome).Inc()
}
