package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Definition
var (
	consumedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smafilter_consumed_messages_total",
			Help: "Total number of Kafka messages read from the input topic.",
		},
	)
	parseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smafilter_parse_failures_total",
			Help: "Total number of input messages that could not be decoded as value lists.",
		},
	)
	publishedLists = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smafilter_published_value_lists_total",
			Help: "Total number of value lists written to the output topic.",
		},
	)
	publishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smafilter_publish_failures_total",
			Help: "Total number of value lists that could not be written to the output topic.",
		},
	)
	chainErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smafilter_chain_errors_total",
			Help: "Total number of value lists a target failed to apply to.",
		},
		[]string{"target"}, // Label: target rule name
	)
	evictedSeries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smafilter_evicted_series_total",
			Help: "Total number of idle series whose window state was released.",
		},
	)
	checkpointOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smafilter_checkpoint_operations_total",
			Help: "Total number of checkpoint loads and saves by outcome.",
		},
		[]string{"op", "result"}, // op: load, save; result: hit, miss, ok, error
	)
)
