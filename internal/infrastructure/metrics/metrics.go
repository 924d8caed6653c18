package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Metrics groups the collectors exported by the order lifecycle core. All
// methods are safe on a nil receiver so services can run without metrics.
type Metrics struct {
	ordersCreated        *prometheus.CounterVec
	statusTransitions    *prometheus.CounterVec
	couponRejections     *prometheus.CounterVec
	notificationAttempts *prometheus.CounterVec
	notificationBatch    prometheus.Histogram
	deliveryQuotes       *prometheus.CounterVec
	reportRuns           *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders created, by initial status and payment method.",
		}, []string{"status", "payment_method"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Order status transitions, by source and target status.",
		}, []string{"from", "to"}),
		couponRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_rejections_total",
			Help:      "Coupon applications rejected, by reason.",
		}, []string{"reason"}),
		notificationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_attempts_total",
			Help:      "Notification send attempts, by type and outcome.",
		}, []string{"type", "outcome"}),
		notificationBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_batch_size",
			Help:      "Number of admin alerts coalesced per flushed batch.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		deliveryQuotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_quotes_total",
			Help:      "Delivery charge quotes, by zone.",
		}, []string{"zone"}),
		reportRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_runs_total",
			Help:      "Report generations, by mode and outcome.",
		}, []string{"mode", "outcome"}),
	}

	reg.MustRegister(
		m.ordersCreated,
		m.statusTransitions,
		m.couponRejections,
		m.notificationAttempts,
		m.notificationBatch,
		m.deliveryQuotes,
		m.reportRuns,
	)
	return m
}

func (m *Metrics) OrderCreated(status, paymentMethod string) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(status, paymentMethod).Inc()
}

func (m *Metrics) StatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) CouponRejected(reason string) {
	if m == nil {
		return
	}
	m.couponRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) NotificationAttempt(notificationType, outcome string) {
	if m == nil {
		return
	}
	m.notificationAttempts.WithLabelValues(notificationType, outcome).Inc()
}

func (m *Metrics) NotificationBatchFlushed(size int) {
	if m == nil {
		return
	}
	m.notificationBatch.Observe(float64(size))
}

func (m *Metrics) DeliveryQuoted(zone string) {
	if m == nil {
		return
	}
	m.deliveryQuotes.WithLabelValues(zone).Inc()
}

func (m *Metrics) ReportRun(mode, outcome string) {
	if m == nil {
		return
	}
	m.reportRuns.WithLabelValues(mode, outcome).Inc()
}
