// Package metrics exposes the Prometheus counters and gauges named in
// spec.md §7's observability surface: scanner lag, callback dispatcher
// outcomes, and the stream group's drop counter.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ScannerLag is the confirmed chain head minus the last committed
	// height, per network.
	ScannerLag = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "blockwatch_scanner_lag_blocks",
		Help: "Confirmed chain head height minus the Scanner's last committed height.",
	}, []string{"network"})

	// CallbackDeliveries counts terminal callback delivery outcomes.
	CallbackDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blockwatch_callback_deliveries_total",
		Help: "Terminal callback delivery outcomes by result.",
	}, []string{"result"}) // "success" | "dead_letter"

	// StreamingDropped mirrors the Event Bus's per-group dropped counter
	// for the lossy stream consumer group (spec.md §4.5, §4.8).
	StreamingDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockwatch_streaming_dropped_total",
		Help: "Events dropped from the stream consumer group's queue under load.",
	})

	// ActiveStreamSessions tracks the number of live WebSocket sessions.
	ActiveStreamSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blockwatch_active_stream_sessions",
		Help: "Number of currently connected stream sessions.",
	})
)

// Handler serves the Prometheus exposition format for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
