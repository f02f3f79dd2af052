package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ModelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isp_agent_model_calls_total",
		Help: "Language model calls by outcome.",
	}, []string{"outcome"})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isp_agent_tool_calls_total",
		Help: "Agent tool invocations by tool and outcome.",
	}, []string{"tool", "outcome"})

	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isp_agent_upstream_requests_total",
		Help: "Requests to billing and ACS upstreams by outcome.",
	}, []string{"upstream", "outcome"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "isp_agent_upstream_request_duration_seconds",
		Help:    "Upstream request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream"})

	PushMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isp_agent_push_messages_total",
		Help: "Push messages by delivery outcome.",
	}, []string{"outcome"})

	PushInvalidTokens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "isp_agent_push_invalid_tokens_total",
		Help: "Push tokens deactivated after a permanent delivery failure.",
	})
)

// ObserveUpstream records one upstream request.
func ObserveUpstream(upstream, outcome string, start time.Time) {
	UpstreamRequests.WithLabelValues(upstream, outcome).Inc()
	UpstreamDuration.WithLabelValues(upstream).Observe(time.Since(start).Seconds())
}
