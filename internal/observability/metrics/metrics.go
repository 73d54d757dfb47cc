package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics exposes counters/histograms for the ingestion pipeline.
type WebhookMetrics struct {
	eventsTotal    *prometheus.CounterVec
	repliesTotal   *prometheus.CounterVec
	sendFailures   prometheus.Counter
	processLatency *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whatsapp_bot",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Inbound webhook events by message type",
		}, []string{"type"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whatsapp_bot",
			Subsystem: "webhook",
			Name:      "replies_total",
			Help:      "Outbound replies by source (generated, offline, fallback)",
		}, []string{"source"}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whatsapp_bot",
			Subsystem: "webhook",
			Name:      "send_failures_total",
			Help:      "Outbound sends that failed at the Cloud API",
		}),
		processLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "whatsapp_bot",
			Subsystem: "webhook",
			Name:      "process_latency_seconds",
			Help:      "Latency of per-event pipeline processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.repliesTotal, m.sendFailures, m.processLatency)
	return m
}

func (m *WebhookMetrics) ObserveEvent(msgType string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(msgType).Inc()
}

func (m *WebhookMetrics) ObserveReply(source string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(source).Inc()
}

func (m *WebhookMetrics) ObserveSendFailure() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

func (m *WebhookMetrics) ObserveProcessLatency(msgType string, seconds float64) {
	if m == nil {
		return
	}
	m.processLatency.WithLabelValues(msgType).Observe(seconds)
}
