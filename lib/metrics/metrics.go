// Package metrics holds the prometheus collectors of the service. They are registered in the default registry and
// served by cmd/server when the monitor flag is set.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	// Polls counts the ticks of every poller by provider kind and result.
	Polls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "addrprof_polls_total",
		Help: "Number of provider polls by kind and result.",
	}, []string{"kind", "result"})

	// Emissions counts the change events emitted by channel.
	Emissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "addrprof_emissions_total",
		Help: "Number of change events emitted by channel.",
	}, []string{"channel"})

	// Sessions is the number of live subscription sessions.
	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "addrprof_sessions_active",
		Help: "Number of active subscription sessions.",
	})

	// Upstream observes the latency of data source requests by endpoint.
	Upstream = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "addrprof_upstream_request_seconds",
		Help:    "Latency of upstream requests by endpoint.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// Secondary counts transactions added to a listing from token transfers and internal transactions.
	Secondary = promauto.NewCounter(prometheus.CounterOpts{
		Name: "addrprof_reconciled_secondary_total",
		Help: "Number of transactions merged from token transfer events and internal transactions.",
	})

	// PriceRefresh counts price refresh attempts by result.
	PriceRefresh = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "addrprof_price_refresh_total",
		Help: "Number of price refreshes by result.",
	}, []string{"result"})
)

// Result maps err to its label value.
func Result(err error) string {
	if err != nil {
		return ResultError
	}

	return ResultOK
}

// Timer starts timing a request to endpoint, the returned function records it.
func Timer(endpoint string) func() {
	t := prometheus.NewTimer(Upstream.WithLabelValues(endpoint))

	return func() { t.ObserveDuration() }
}
