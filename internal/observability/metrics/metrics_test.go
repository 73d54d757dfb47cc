package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWebhookMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)

	m.ObserveEvent("text")
	m.ObserveEvent("text")
	m.ObserveEvent("image")
	m.ObserveReply("generated")
	m.ObserveSendFailure()
	m.ObserveProcessLatency("text", 0.02)

	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues("text")); got != 2 {
		t.Fatalf("text events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.repliesTotal.WithLabelValues("generated")); got != 1 {
		t.Fatalf("generated replies = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.sendFailures); got != 1 {
		t.Fatalf("send failures = %v, want 1", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *WebhookMetrics
	m.ObserveEvent("text")
	m.ObserveReply("offline")
	m.ObserveSendFailure()
	m.ObserveProcessLatency("image", 0.1)
}
