package sma

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	valuesAveraged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smafilter_sma_values_averaged_total",
			Help: "Total number of gauge values replaced by their moving average.",
		},
		[]string{"target"},
	)
	unsupportedKinds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smafilter_sma_unsupported_kind_total",
			Help: "Total number of selected channels passed through because they are not gauges.",
		},
		[]string{"target", "kind"},
	)
	rejectedLists = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smafilter_sma_rejected_value_lists_total",
			Help: "Total number of value lists left unmodified because the call failed.",
		},
		[]string{"target", "reason"},
	)
	activeWindows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smafilter_sma_active_series",
			Help: "Number of series with allocated window state.",
		},
		[]string{"target"},
	)
)

const (
	reasonAllocation      = "allocation"
	reasonChannelMismatch = "channel_mismatch"
	reasonDestroyed       = "destroyed"
)
