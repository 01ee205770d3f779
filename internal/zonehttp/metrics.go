package zonehttp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the zone server's Prometheus instrumentation.
type Metrics struct {
	PollsTotal        *prometheus.CounterVec
	PublishesTotal    *prometheus.CounterVec
	PublishesRejected prometheus.Counter
	ReconcileSeconds  prometheus.Histogram
	PeerProbesTotal   *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
}

// NewMetrics registers and returns the zone server's metrics against reg.
// Pass prometheus.DefaultRegisterer unless a test needs isolation.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zoned_network_map_polls_total",
			Help: "Network-map GET requests, labeled by endpoint.",
		}, []string{"endpoint"}),
		PublishesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zoned_publishes_total",
			Help: "Node-info publish attempts, labeled by outcome.",
		}, []string{"outcome"}),
		PublishesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "zoned_publishes_rejected_total",
			Help: "Publishes rejected by the abuse scorer.",
		}),
		ReconcileSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "zoned_network_map_assembly_seconds",
			Help:    "Time to assemble and sign a network map response.",
			Buckets: prometheus.DefBuckets,
		}),
		PeerProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zoned_peer_probes_total",
			Help: "Peer health probes, labeled by outcome.",
		}, []string{"outcome"}),
		WebhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zoned_webhook_deliveries_total",
			Help: "Webhook delivery attempts, labeled by outcome.",
		}, []string{"outcome"}),
	}
}

// RecordPeerProbe adapts a bool success flag to the peerhealth.MetricsRecordFunc shape.
func (m *Metrics) RecordPeerProbe(success bool) {
	if success {
		m.PeerProbesTotal.WithLabelValues("success").Inc()
	} else {
		m.PeerProbesTotal.WithLabelValues("failure").Inc()
	}
}

// RecordWebhookDelivery adapts a bool success flag to webhooks.MetricsRecorder.
func (m *Metrics) RecordWebhookDelivery(success bool) {
	if success {
		m.WebhookDeliveries.WithLabelValues("success").Inc()
	} else {
		m.WebhookDeliveries.WithLabelValues("failure").Inc()
	}
}
