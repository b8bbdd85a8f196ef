package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the backend collectors. A nil *Metrics records nothing.
type Metrics struct {
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	MessagesPosted       *prometheus.CounterVec
	FilterRejections     *prometheus.CounterVec
	NotificationFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visionmatch",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "visionmatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		MessagesPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visionmatch",
			Name:      "negotiation_messages_total",
			Help:      "Negotiation messages appended, by type.",
		}, []string{"type"}),
		FilterRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visionmatch",
			Name:      "content_filter_rejections_total",
			Help:      "Messages rejected for carrying contact details, by reason.",
		}, []string{"reason"}),
		NotificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visionmatch",
			Name:      "notification_failures_total",
			Help:      "E-mail notifications that could not be published.",
		}),
	}
	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.MessagesPosted, m.FilterRejections, m.NotificationFailures)
	return m
}

func (m *Metrics) MessagePosted(msgType string) {
	if m != nil {
		m.MessagesPosted.WithLabelValues(msgType).Inc()
	}
}

func (m *Metrics) FilterRejected(reason string) {
	if m != nil {
		m.FilterRejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) NotificationFailed() {
	if m != nil {
		m.NotificationFailures.Inc()
	}
}

func (m *Metrics) ObserveHTTP(route, method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, code).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(seconds)
}

// PollerMetrics counts client-side feed polling.
type PollerMetrics struct {
	Ticks  prometheus.Counter
	Errors prometheus.Counter
	Stale  prometheus.Counter
}

func NewPollerMetrics(reg prometheus.Registerer) *PollerMetrics {
	m := &PollerMetrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visionmatch",
			Subsystem: "poller",
			Name:      "ticks_total",
			Help:      "Feed fetches started by pollers.",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visionmatch",
			Subsystem: "poller",
			Name:      "errors_total",
			Help:      "Feed fetches that failed after the initial load.",
		}),
		Stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visionmatch",
			Subsystem: "poller",
			Name:      "stale_responses_total",
			Help:      "Feed responses discarded because a newer one was already applied.",
		}),
	}
	reg.MustRegister(m.Ticks, m.Errors, m.Stale)
	return m
}

func (m *PollerMetrics) Tick() {
	if m != nil {
		m.Ticks.Inc()
	}
}

func (m *PollerMetrics) Error() {
	if m != nil {
		m.Errors.Inc()
	}
}

func (m *PollerMetrics) Discarded() {
	if m != nil {
		m.Stale.Inc()
	}
}
