package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections is the number of live websocket connections on this node.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "studychat",
		Name:      "ws_active_connections",
		Help:      "Live websocket connections held by this node.",
	})

	// MessagesPersisted counts canonical writes by kind (plain, question, reply).
	MessagesPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studychat",
		Name:      "messages_persisted_total",
		Help:      "Canonical messages written to the store.",
	}, []string{"kind"})

	// Mutations counts edit/delete attempts by operation and outcome.
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studychat",
		Name:      "message_mutations_total",
		Help:      "Edit and delete attempts.",
	}, []string{"op", "outcome"})

	// AssistantCalls counts AI boundary calls by outcome (ok, error).
	AssistantCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studychat",
		Name:      "assistant_calls_total",
		Help:      "Calls to the AI boundary.",
	}, []string{"outcome"})

	// AssistantLatency observes AI boundary call duration.
	AssistantLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "studychat",
		Name:      "assistant_call_seconds",
		Help:      "AI boundary call latency.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// DeliveryMisses counts live pushes that could not be delivered.
	DeliveryMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studychat",
		Name:      "ws_delivery_misses_total",
		Help:      "Live pushes dropped because the recipient was offline or slow.",
	}, []string{"reason"})

	// InboundRateLimited counts client events rejected by the per-connection limiter.
	InboundRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "studychat",
		Name:      "ws_rate_limited_total",
		Help:      "Inbound websocket events rejected by the rate limiter.",
	})
)
